package retrieval

import (
	"errors"
	"math"
	"testing"

	pkgerrors "github.com/docugraph/docugraph/internal/pkg/errors"
)

func TestCosineSelfSimilarity(t *testing.T) {
	v := []float64{0.3, -1.2, 4.5, 0.01}
	sim, err := Cosine(v, v)
	if err != nil {
		t.Fatalf("Cosine returned error: %v", err)
	}
	if math.Abs(sim-1.0) > 1e-9 {
		t.Fatalf("self similarity = %v, want 1.0", sim)
	}
}

func TestCosineSymmetry(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{-2, 0.5, 7}
	ab, err := Cosine(a, b)
	if err != nil {
		t.Fatalf("Cosine(a, b) returned error: %v", err)
	}
	ba, err := Cosine(b, a)
	if err != nil {
		t.Fatalf("Cosine(b, a) returned error: %v", err)
	}
	if ab != ba {
		t.Fatalf("Cosine not symmetric: %v vs %v", ab, ba)
	}
}

func TestCosineOrthogonal(t *testing.T) {
	sim, err := Cosine([]float64{1, 0}, []float64{0, 1})
	if err != nil {
		t.Fatalf("Cosine returned error: %v", err)
	}
	if math.Abs(sim) > 1e-9 {
		t.Fatalf("orthogonal similarity = %v, want 0", sim)
	}
}

func TestCosineZeroVector(t *testing.T) {
	_, err := Cosine([]float64{0, 0, 0}, []float64{1, 2, 3})
	if !errors.Is(err, pkgerrors.ErrDegenerateVector) {
		t.Fatalf("zero vector: got %v, want ErrDegenerateVector", err)
	}
	_, err = Cosine([]float64{1, 2, 3}, []float64{0, 0, 0})
	if !errors.Is(err, pkgerrors.ErrDegenerateVector) {
		t.Fatalf("zero second operand: got %v, want ErrDegenerateVector", err)
	}
}

func TestCosineDimensionMismatch(t *testing.T) {
	_, err := Cosine([]float64{1, 2}, []float64{1, 2, 3})
	if !errors.Is(err, pkgerrors.ErrInvalidVectorShape) {
		t.Fatalf("dimension mismatch: got %v, want ErrInvalidVectorShape", err)
	}
	_, err = Cosine(nil, []float64{1})
	if !errors.Is(err, pkgerrors.ErrInvalidVectorShape) {
		t.Fatalf("empty operand: got %v, want ErrInvalidVectorShape", err)
	}
}

func TestCosineOfStringOperands(t *testing.T) {
	sim, err := CosineOf("[1, 0, 0]", "[1, 0, 0]")
	if err != nil {
		t.Fatalf("CosineOf returned error: %v", err)
	}
	if math.Abs(sim-1.0) > 1e-9 {
		t.Fatalf("similarity = %v, want 1.0", sim)
	}
}

func TestCosineOfMixedOperands(t *testing.T) {
	sim, err := CosineOf([]float32{0, 1}, "[0, 1]")
	if err != nil {
		t.Fatalf("CosineOf returned error: %v", err)
	}
	if math.Abs(sim-1.0) > 1e-9 {
		t.Fatalf("similarity = %v, want 1.0", sim)
	}
}

func TestParseVectorRejectsNested(t *testing.T) {
	_, err := ParseVector("[[1, 2], [3, 4]]")
	if !errors.Is(err, pkgerrors.ErrInvalidVectorShape) {
		t.Fatalf("nested JSON: got %v, want ErrInvalidVectorShape", err)
	}
}

func TestParseVectorRejectsGarbage(t *testing.T) {
	_, err := ParseVector("not json")
	if !errors.Is(err, pkgerrors.ErrInvalidVectorShape) {
		t.Fatalf("garbage string: got %v, want ErrInvalidVectorShape", err)
	}
	_, err = ParseVector(42)
	if !errors.Is(err, pkgerrors.ErrInvalidVectorShape) {
		t.Fatalf("unsupported type: got %v, want ErrInvalidVectorShape", err)
	}
}
