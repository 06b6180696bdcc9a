package retrieval

import (
	"context"
	"math"
	"sort"

	"github.com/docugraph/docugraph/internal/config"
	"github.com/docugraph/docugraph/internal/data/graph"
	"github.com/docugraph/docugraph/internal/platform/logger"
)

// ChunkSource is the slice of the chunk graph the engine reads.
type ChunkSource interface {
	ScanTextChunks(ctx context.Context) ([]graph.ChunkEmbedding, error)
	ScanImageChunks(ctx context.Context) ([]graph.ChunkEmbedding, error)
	ChunkText(ctx context.Context, name string, element int64) (string, bool, error)
}

// Engine ranks indexed chunks against a query embedding. Text and image
// retrieval are always invoked as a pair for one query: the lowest kept text
// score becomes the floor for image acceptance, so images are only surfaced
// when they compete with whatever the text corpus produced.
type Engine struct {
	source ChunkSource
	log    *logger.Logger
	cfg    config.Retrieval
}

func NewEngine(source ChunkSource, log *logger.Logger, cfg config.Retrieval) *Engine {
	return &Engine{
		source: source,
		log:    log.With("engine", "Retrieval"),
		cfg:    cfg,
	}
}

type scoredChunk struct {
	name    string
	element int64
	score   float64
}

type chunkKey struct {
	name    string
	element int64
}

// RetrieveText returns up to k passages ordered by descending similarity,
// deduplicated by (name, element), plus the score of the lowest-ranked kept
// result (0 when nothing was kept).
func (e *Engine) RetrieveText(ctx context.Context, queryEmbedding []float64, k int) ([]string, float64, error) {
	if k <= 0 {
		k = e.cfg.TextTopK
	}
	rows, err := e.source.ScanTextChunks(ctx)
	if err != nil {
		return nil, 0, err
	}

	scored := make([]scoredChunk, 0, len(rows))
	for _, row := range rows {
		sim, ok := e.scoreChunk("text", row, queryEmbedding)
		if !ok {
			continue
		}
		if sim > e.cfg.TextScoreFloor {
			scored = append(scored, scoredChunk{name: row.Name, element: row.Element, score: sim})
		}
	}

	top := selectTop(scored, k, math.Inf(-1))

	lowestScore := 0.0
	if len(top) > 0 {
		lowestScore = top[len(top)-1].score
	}

	passages := make([]string, 0, len(top))
	for _, c := range top {
		text, found, err := e.source.ChunkText(ctx, c.name, c.element)
		if err != nil {
			return nil, 0, err
		}
		if found {
			passages = append(passages, text)
		}
	}
	return passages, lowestScore, nil
}

// RetrieveImages returns up to k image descriptions and their bare chunk
// names. A candidate is kept only while its score clears
// max(derivedFloor, the configured image floor); the walk over the sorted
// candidates stops at the first score below that bar.
func (e *Engine) RetrieveImages(ctx context.Context, queryEmbedding []float64, derivedFloor float64, k int) ([]string, []string, error) {
	if k <= 0 {
		k = e.cfg.ImageTopK
	}
	rows, err := e.source.ScanImageChunks(ctx)
	if err != nil {
		return nil, nil, err
	}

	scored := make([]scoredChunk, 0, len(rows))
	for _, row := range rows {
		sim, ok := e.scoreChunk("image", row, queryEmbedding)
		if !ok {
			continue
		}
		// NaN would poison the descending sort; count it as below any floor.
		if math.IsNaN(sim) {
			continue
		}
		scored = append(scored, scoredChunk{name: row.Name, element: row.Element, score: sim})
	}

	floor := derivedFloor
	if floor < e.cfg.ImageScoreFloor {
		floor = e.cfg.ImageScoreFloor
	}
	top := selectTop(scored, k, floor)

	descriptions := make([]string, 0, len(top))
	names := make([]string, 0, len(top))
	for _, c := range top {
		text, found, err := e.source.ChunkText(ctx, c.name, c.element)
		if err != nil {
			return nil, nil, err
		}
		if found {
			descriptions = append(descriptions, text)
			names = append(names, c.name)
		}
	}
	return descriptions, names, nil
}

func (e *Engine) scoreChunk(kind string, row graph.ChunkEmbedding, queryEmbedding []float64) (float64, bool) {
	if row.EmbeddingString == "" {
		e.log.Warn("skipping chunk with empty embedding", "kind", kind, "chunk", row.Name, "element", row.Element)
		return 0, false
	}
	emb, err := ParseVector(row.EmbeddingString)
	if err != nil {
		e.log.Warn("skipping unscorable chunk", "kind", kind, "chunk", row.Name, "element", row.Element, "error", err)
		return 0, false
	}
	sim, err := Cosine(queryEmbedding, emb)
	if err != nil {
		e.log.Warn("skipping unscorable chunk", "kind", kind, "chunk", row.Name, "element", row.Element, "error", err)
		return 0, false
	}
	return sim, true
}

// selectTop sorts candidates by descending score (stable, so equal scores keep
// scan order), keeps the first occurrence of each (name, element), and stops
// once k results are collected or a candidate drops below floor.
func selectTop(scored []scoredChunk, k int, floor float64) []scoredChunk {
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	top := make([]scoredChunk, 0, k)
	seen := make(map[chunkKey]bool, len(scored))
	for _, c := range scored {
		if c.score < floor {
			break
		}
		key := chunkKey{name: c.name, element: c.element}
		if !seen[key] {
			top = append(top, c)
			seen[key] = true
		}
		if len(top) >= k {
			break
		}
	}
	return top
}
