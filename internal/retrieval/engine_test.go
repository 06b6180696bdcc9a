package retrieval

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/docugraph/docugraph/internal/config"
	"github.com/docugraph/docugraph/internal/data/graph"
	"github.com/docugraph/docugraph/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

type fakeSource struct {
	text   []graph.ChunkEmbedding
	images []graph.ChunkEmbedding
	texts  map[string]string
}

func textKey(name string, element int64) string {
	return fmt.Sprintf("%s#%d", name, element)
}

func (f *fakeSource) ScanTextChunks(ctx context.Context) ([]graph.ChunkEmbedding, error) {
	return f.text, nil
}

func (f *fakeSource) ScanImageChunks(ctx context.Context) ([]graph.ChunkEmbedding, error) {
	return f.images, nil
}

func (f *fakeSource) ChunkText(ctx context.Context, name string, element int64) (string, bool, error) {
	text, ok := f.texts[textKey(name, element)]
	return text, ok, nil
}

// embAt builds a unit vector whose cosine similarity against query{1, 0} is
// exactly sim.
func embAt(sim float64) string {
	return fmt.Sprintf("[%g, %g]", sim, math.Sqrt(1-sim*sim))
}

var query = []float64{1, 0}

func newTestEngine(t *testing.T, src *fakeSource) *Engine {
	t.Helper()
	return NewEngine(src, testLogger(t), config.Default())
}

func TestRetrieveTextRankingAndFloor(t *testing.T) {
	src := &fakeSource{
		text: []graph.ChunkEmbedding{
			{Name: "a.pdf", Element: 1, EmbeddingString: embAt(0.55)},
			{Name: "b.pdf", Element: 0, EmbeddingString: embAt(0.9)},
			{Name: "c.pdf", Element: 2, EmbeddingString: embAt(0.4)},
			{Name: "d.pdf", Element: 1, EmbeddingString: embAt(0.7)},
		},
		texts: map[string]string{
			textKey("a.pdf", 1): "text-a",
			textKey("b.pdf", 0): "text-b",
			textKey("c.pdf", 2): "text-c",
			textKey("d.pdf", 1): "text-d",
		},
	}
	engine := newTestEngine(t, src)

	passages, lowest, err := engine.RetrieveText(context.Background(), query, 0)
	if err != nil {
		t.Fatalf("RetrieveText: %v", err)
	}
	want := []string{"text-b", "text-d", "text-a"}
	if len(passages) != len(want) {
		t.Fatalf("got %d passages %v, want %d", len(passages), passages, len(want))
	}
	for i := range want {
		if passages[i] != want[i] {
			t.Fatalf("passage[%d] = %q, want %q", i, passages[i], want[i])
		}
	}
	if math.Abs(lowest-0.55) > 1e-9 {
		t.Fatalf("lowest score = %v, want 0.55", lowest)
	}
}

func TestRetrieveTextCapsAtK(t *testing.T) {
	src := &fakeSource{texts: map[string]string{}}
	sims := []float64{0.95, 0.9, 0.85, 0.8, 0.75, 0.7}
	for i, sim := range sims {
		name := fmt.Sprintf("doc%d.pdf", i)
		src.text = append(src.text, graph.ChunkEmbedding{Name: name, Element: 0, EmbeddingString: embAt(sim)})
		src.texts[textKey(name, 0)] = name
	}
	engine := newTestEngine(t, src)

	passages, lowest, err := engine.RetrieveText(context.Background(), query, 0)
	if err != nil {
		t.Fatalf("RetrieveText: %v", err)
	}
	if len(passages) != 5 {
		t.Fatalf("got %d passages, want 5", len(passages))
	}
	if math.Abs(lowest-0.75) > 1e-9 {
		t.Fatalf("lowest score = %v, want 0.75 (score of the 5th kept result)", lowest)
	}
}

func TestRetrieveTextDeduplicates(t *testing.T) {
	src := &fakeSource{
		text: []graph.ChunkEmbedding{
			{Name: "a.pdf", Element: 1, EmbeddingString: embAt(0.8)},
			{Name: "a.pdf", Element: 1, EmbeddingString: embAt(0.8)},
			{Name: "a.pdf", Element: 2, EmbeddingString: embAt(0.7)},
		},
		texts: map[string]string{
			textKey("a.pdf", 1): "page-1",
			textKey("a.pdf", 2): "page-2",
		},
	}
	engine := newTestEngine(t, src)

	passages, _, err := engine.RetrieveText(context.Background(), query, 0)
	if err != nil {
		t.Fatalf("RetrieveText: %v", err)
	}
	if len(passages) != 2 {
		t.Fatalf("got %d passages %v, want 2 after dedupe", len(passages), passages)
	}
}

func TestRetrieveTextSkipsEmptyEmbedding(t *testing.T) {
	src := &fakeSource{
		text: []graph.ChunkEmbedding{
			{Name: "empty.pdf", Element: 0, EmbeddingString: ""},
			{Name: "bad.pdf", Element: 0, EmbeddingString: "not json"},
			{Name: "good.pdf", Element: 0, EmbeddingString: embAt(0.8)},
		},
		texts: map[string]string{
			textKey("good.pdf", 0): "good",
		},
	}
	engine := newTestEngine(t, src)

	passages, _, err := engine.RetrieveText(context.Background(), query, 0)
	if err != nil {
		t.Fatalf("RetrieveText: %v", err)
	}
	if len(passages) != 1 || passages[0] != "good" {
		t.Fatalf("got %v, want [good]", passages)
	}
}

func TestRetrieveTextNothingKept(t *testing.T) {
	src := &fakeSource{
		text: []graph.ChunkEmbedding{
			{Name: "a.pdf", Element: 0, EmbeddingString: embAt(0.3)},
		},
		texts: map[string]string{},
	}
	engine := newTestEngine(t, src)

	passages, lowest, err := engine.RetrieveText(context.Background(), query, 0)
	if err != nil {
		t.Fatalf("RetrieveText: %v", err)
	}
	if len(passages) != 0 {
		t.Fatalf("got %v, want no passages", passages)
	}
	if lowest != 0 {
		t.Fatalf("lowest score = %v, want 0 when nothing kept", lowest)
	}
}

func TestRetrieveImagesAppliesConfiguredFloor(t *testing.T) {
	src := &fakeSource{
		images: []graph.ChunkEmbedding{
			{Name: "img1.png", Element: -1, EmbeddingString: embAt(0.6)},
			{Name: "img2.png", Element: -1, EmbeddingString: embAt(0.52)},
		},
		texts: map[string]string{
			textKey("img1.png", -1): "desc-1",
			textKey("img2.png", -1): "desc-2",
		},
	}
	engine := newTestEngine(t, src)

	descs, names, err := engine.RetrieveImages(context.Background(), query, 0, 0)
	if err != nil {
		t.Fatalf("RetrieveImages: %v", err)
	}
	if len(descs) != 1 || descs[0] != "desc-1" {
		t.Fatalf("got %v, want only desc-1 (0.52 is below the 0.55 floor)", descs)
	}
	if len(names) != 1 || names[0] != "img1.png" {
		t.Fatalf("got names %v, want [img1.png]", names)
	}
}

func TestRetrieveImagesDerivedFloorDominates(t *testing.T) {
	src := &fakeSource{
		images: []graph.ChunkEmbedding{
			{Name: "img1.png", Element: -1, EmbeddingString: embAt(0.7)},
		},
		texts: map[string]string{
			textKey("img1.png", -1): "desc-1",
		},
	}
	engine := newTestEngine(t, src)

	descs, _, err := engine.RetrieveImages(context.Background(), query, 0.8, 0)
	if err != nil {
		t.Fatalf("RetrieveImages: %v", err)
	}
	if len(descs) != 0 {
		t.Fatalf("got %v, want no images when the derived floor is 0.8", descs)
	}
}

func TestRetrieveImagesCapsAtK(t *testing.T) {
	src := &fakeSource{texts: map[string]string{}}
	for i, sim := range []float64{0.95, 0.9, 0.85, 0.8} {
		name := fmt.Sprintf("img%d.png", i)
		src.images = append(src.images, graph.ChunkEmbedding{Name: name, Element: -1, EmbeddingString: embAt(sim)})
		src.texts[textKey(name, -1)] = name
	}
	engine := newTestEngine(t, src)

	descs, names, err := engine.RetrieveImages(context.Background(), query, 0, 0)
	if err != nil {
		t.Fatalf("RetrieveImages: %v", err)
	}
	if len(descs) != 3 || len(names) != 3 {
		t.Fatalf("got %d descriptions and %d names, want 3 each", len(descs), len(names))
	}
}

func TestRetrieveImagesNaNQuery(t *testing.T) {
	src := &fakeSource{
		images: []graph.ChunkEmbedding{
			{Name: "img1.png", Element: -1, EmbeddingString: embAt(0.9)},
		},
		texts: map[string]string{
			textKey("img1.png", -1): "desc-1",
		},
	}
	engine := newTestEngine(t, src)

	descs, names, err := engine.RetrieveImages(context.Background(), []float64{math.NaN(), 0}, 0, 0)
	if err != nil {
		t.Fatalf("RetrieveImages: %v", err)
	}
	if len(descs) != 0 || len(names) != 0 {
		t.Fatalf("got %v / %v, want nothing for a NaN-scoring query", descs, names)
	}
}

func TestRetrieveTextIdenticalEmbeddingRanksFirst(t *testing.T) {
	src := &fakeSource{
		text: []graph.ChunkEmbedding{
			{Name: "far.pdf", Element: 0, EmbeddingString: embAt(0.6)},
			{Name: "exact.pdf", Element: 0, EmbeddingString: "[1, 0]"},
		},
		texts: map[string]string{
			textKey("far.pdf", 0):   "far",
			textKey("exact.pdf", 0): "exact",
		},
	}
	engine := newTestEngine(t, src)

	passages, lowest, err := engine.RetrieveText(context.Background(), query, 0)
	if err != nil {
		t.Fatalf("RetrieveText: %v", err)
	}
	if len(passages) != 2 || passages[0] != "exact" {
		t.Fatalf("got %v, want the identical embedding ranked first", passages)
	}
	if math.Abs(lowest-0.6) > 1e-9 {
		t.Fatalf("lowest score = %v, want 0.6", lowest)
	}
}
