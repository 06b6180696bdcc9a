package retrieval

import (
	"encoding/json"
	"fmt"
	"math"

	pkgerrors "github.com/docugraph/docugraph/internal/pkg/errors"
)

// ParseVector normalizes a similarity operand into a numeric vector. Operands
// arrive either as numeric slices or as the JSON text a chunk's
// embedding_string holds.
func ParseVector(v any) ([]float64, error) {
	switch t := v.(type) {
	case []float64:
		return t, nil
	case []float32:
		out := make([]float64, len(t))
		for i, f := range t {
			out[i] = float64(f)
		}
		return out, nil
	case string:
		var out []float64
		if err := json.Unmarshal([]byte(t), &out); err != nil {
			return nil, fmt.Errorf("%w: not a one-dimensional JSON vector", pkgerrors.ErrInvalidVectorShape)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported operand type %T", pkgerrors.ErrInvalidVectorShape, v)
	}
}

// Cosine computes the cosine similarity of two vectors, in [-1, 1].
// Deterministic and side-effect free.
func Cosine(a, b []float64) (float64, error) {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("%w: dimensions %d and %d", pkgerrors.ErrInvalidVectorShape, len(a), len(b))
	}
	var dot, na, nb float64
	for i := 0; i < len(a); i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, pkgerrors.ErrDegenerateVector
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// CosineOf normalizes both operands and computes their cosine similarity.
func CosineOf(a, b any) (float64, error) {
	va, err := ParseVector(a)
	if err != nil {
		return 0, err
	}
	vb, err := ParseVector(b)
	if err != nil {
		return 0, err
	}
	return Cosine(va, vb)
}
