package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/docugraph/docugraph/internal/platform/logger"
	"github.com/docugraph/docugraph/internal/platform/neo4jdb"
)

// Store persists the chunk graph: Chunk and Node entities plus the NEXT,
// PREVIOUS, PART_OF, IMAGE_OF and BELONGS_TO relationships. A chunk is
// identified by (name, folder, element); element 0 is a document's primary
// fragment, positive elements are subsequent page fragments, -1 marks an
// image fragment.
type Store struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewStore(client *neo4jdb.Client, log *logger.Logger) *Store {
	return &Store{
		client: client,
		log:    log.With("store", "ChunkGraph"),
	}
}

// ChunkEmbedding is one row of a retrieval eligibility scan.
type ChunkEmbedding struct {
	Name            string
	Element         int64
	EmbeddingString string
}

// ChunkAttrs resolves a bare chunk name back to its storage folder.
type ChunkAttrs struct {
	Name   string
	Folder string
}

// InitSchema creates the uniqueness constraints the store relies on.
// Best-effort: restricted users may not be allowed to touch schema.
func (s *Store) InitSchema(ctx context.Context) {
	session := s.client.WriteSession(ctx)
	defer session.Close(ctx)

	statements := []string{
		`CREATE CONSTRAINT unique_node IF NOT EXISTS FOR (n:Node) REQUIRE n.name IS UNIQUE`,
		`CREATE CONSTRAINT unique_chunk_name IF NOT EXISTS FOR (r:ChunkName) REQUIRE r.name IS UNIQUE`,
	}
	for _, stmt := range statements {
		if res, err := session.Run(ctx, stmt, nil); err != nil {
			s.log.Warn("schema init failed (continuing)", "error", err)
		} else {
			_, _ = res.Consume(ctx)
		}
	}
}

// UpsertChunk creates the chunk if it does not exist yet and returns its name.
// in_query is set only on first creation; re-running is a no-op fetch.
func (s *Store) UpsertChunk(ctx context.Context, name, folder string, element int, status string) (string, error) {
	session := s.client.WriteSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MERGE (c:Chunk {name: $name, folder: $folder, element: $element})
ON CREATE SET c.status = $status, c.in_query = true
RETURN c.name AS name`,
		map[string]any{
			"name":    name,
			"folder":  folder,
			"element": int64(element),
			"status":  status,
		})
	if err != nil {
		return "", fmt.Errorf("upsert chunk %s/%s[%d]: %w", folder, name, element, err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return "", fmt.Errorf("upsert chunk %s/%s[%d]: %w", folder, name, element, err)
	}
	out, _ := record.Get("name")
	chunkName, _ := out.(string)
	return chunkName, nil
}

// SetChunkContent overwrites the content fields of an existing chunk and, when
// parentName is set, merges an IMAGE_OF edge to the parent document chunk.
func (s *Store) SetChunkContent(ctx context.Context, name string, element int, chunkType, text, embeddingString, textShort, parentName string) error {
	session := s.client.WriteSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (c:Chunk {name: $name, element: $element})
SET c.chunk_type = $chunk_type, c.text = $text, c.embedding_string = $embedding_string, c.text_short = $text_short
RETURN c.name AS name`,
		map[string]any{
			"name":             name,
			"element":          int64(element),
			"chunk_type":       chunkType,
			"text":             text,
			"embedding_string": embeddingString,
			"text_short":       textShort,
		})
	if err != nil {
		return fmt.Errorf("set chunk content %s[%d]: %w", name, element, err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("set chunk content %s[%d]: %w", name, element, err)
	}

	if parentName == "" {
		return nil
	}
	res, err := session.Run(ctx,
		`MATCH (c:Chunk {name: $name}), (p:Chunk {name: $parent})
MERGE (c)-[:IMAGE_OF]->(p)`,
		map[string]any{"name": name, "parent": parentName})
	if err != nil {
		return fmt.Errorf("link image %s to %s: %w", name, parentName, err)
	}
	if _, err := res.Consume(ctx); err != nil {
		return fmt.Errorf("link image %s to %s: %w", name, parentName, err)
	}
	return nil
}

// LinkSequential reads all chunks for (folder, name) in ascending element
// order and merges NEXT/PREVIOUS edges between each consecutive pair. Merge
// semantics make re-runs idempotent.
func (s *Store) LinkSequential(ctx context.Context, folder, name string) error {
	session := s.client.WriteSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (c:Chunk {folder: $folder, name: $name})
RETURN c.element AS element ORDER BY c.element`,
		map[string]any{"folder": folder, "name": name})
	if err != nil {
		return fmt.Errorf("scan chunks for linking %s/%s: %w", folder, name, err)
	}
	var elements []int64
	for result.Next(ctx) {
		if v, ok := result.Record().Get("element"); ok {
			if el, ok := v.(int64); ok {
				elements = append(elements, el)
			}
		}
	}
	if err := result.Err(); err != nil {
		return fmt.Errorf("scan chunks for linking %s/%s: %w", folder, name, err)
	}

	for i := 0; i+1 < len(elements); i++ {
		params := map[string]any{
			"name":   name,
			"folder": folder,
			"first":  elements[i],
			"second": elements[i+1],
		}
		res, err := session.Run(ctx,
			`MATCH (c1:Chunk {name: $name, folder: $folder, element: $first}),
      (c2:Chunk {name: $name, folder: $folder, element: $second})
MERGE (c1)-[:NEXT]->(c2)
MERGE (c2)-[:PREVIOUS]->(c1)`,
			params)
		if err != nil {
			return fmt.Errorf("link chunks %s/%s [%d->%d]: %w", folder, name, elements[i], elements[i+1], err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return fmt.Errorf("link chunks %s/%s [%d->%d]: %w", folder, name, elements[i], elements[i+1], err)
		}
	}
	return nil
}

// LinkToNode attaches a chunk to a logical grouping Node, creating the Node on
// demand. Only primary fragments and standalone images (element 0 or -1) ever
// attach; page fragments are reachable through their primary chunk.
func (s *Store) LinkToNode(ctx context.Context, chunkName, nodeName string) error {
	session := s.client.WriteSession(ctx)
	defer session.Close(ctx)

	res, err := session.Run(ctx,
		`MERGE (n:Node {name: $node})
ON CREATE SET n.in_query = true`,
		map[string]any{"node": nodeName})
	if err != nil {
		return fmt.Errorf("merge node %s: %w", nodeName, err)
	}
	if _, err := res.Consume(ctx); err != nil {
		return fmt.Errorf("merge node %s: %w", nodeName, err)
	}

	res, err = session.Run(ctx,
		`MATCH (c:Chunk {name: $chunk}), (n:Node {name: $node})
WHERE c.element IN [0, -1]
MERGE (c)-[:PART_OF]->(n)`,
		map[string]any{"chunk": chunkName, "node": nodeName})
	if err != nil {
		return fmt.Errorf("link chunk %s to node %s: %w", chunkName, nodeName, err)
	}
	if _, err := res.Consume(ctx); err != nil {
		return fmt.Errorf("link chunk %s to node %s: %w", chunkName, nodeName, err)
	}
	return nil
}

// UniqueName reserves an unused chunk name for the given file name body and
// extension. Reservation is an atomic CREATE against the ChunkName uniqueness
// constraint; on conflict the next _N suffix is tried.
func (s *Store) UniqueName(ctx context.Context, body, extension string) (string, error) {
	session := s.client.WriteSession(ctx)
	defer session.Close(ctx)

	for counter := 0; ; counter++ {
		candidate := body + extension
		if counter > 0 {
			candidate = fmt.Sprintf("%s_%d%s", body, counter, extension)
		}
		res, err := session.Run(ctx,
			`CREATE (:ChunkName {name: $name})`,
			map[string]any{"name": candidate})
		if err == nil {
			_, err = res.Consume(ctx)
		}
		if err == nil {
			return candidate, nil
		}
		var neoErr *neo4j.Neo4jError
		if errors.As(err, &neoErr) && strings.Contains(neoErr.Code, "ConstraintValidationFailed") {
			continue
		}
		return "", fmt.Errorf("reserve chunk name %s: %w", candidate, err)
	}
}

// ListNodes returns every Node, with its BELONGS_TO parent rendered as
// "name (whose parent is parent)" when one exists.
func (s *Store) ListNodes(ctx context.Context) ([]string, error) {
	session := s.client.ReadSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (n:Node)
OPTIONAL MATCH (n)-[:BELONGS_TO]->(m)
RETURN n.name AS node, m.name AS parent`, nil)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	var nodes []string
	for result.Next(ctx) {
		record := result.Record()
		nodeVal, _ := record.Get("node")
		parentVal, _ := record.Get("parent")
		node, _ := nodeVal.(string)
		if parent, ok := parentVal.(string); ok && parent != "" {
			nodes = append(nodes, fmt.Sprintf("%s (whose parent is %s)", node, parent))
		} else {
			nodes = append(nodes, node)
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return nodes, nil
}

// ImageTextShort joins the one-sentence summaries of image chunks carrying the
// given name. Used to enrich the page chunk an image was extracted from.
func (s *Store) ImageTextShort(ctx context.Context, name string) (string, error) {
	session := s.client.ReadSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (c:Chunk {name: $name, element: $element})
RETURN c.text_short AS text_short`,
		map[string]any{"name": name, "element": int64(-1)})
	if err != nil {
		return "", fmt.Errorf("image summary for %s: %w", name, err)
	}
	var parts []string
	for result.Next(ctx) {
		if v, ok := result.Record().Get("text_short"); ok {
			if short, ok := v.(string); ok {
				parts = append(parts, short)
			}
		}
	}
	if err := result.Err(); err != nil {
		return "", fmt.Errorf("image summary for %s: %w", name, err)
	}
	return strings.Join(parts, "\n"), nil
}

// ScanTextChunks returns every chunk eligible for text retrieval:
// in_query and not an image fragment.
func (s *Store) ScanTextChunks(ctx context.Context) ([]ChunkEmbedding, error) {
	return s.scanChunks(ctx,
		`MATCH (c:Chunk)
WHERE c.in_query = true AND c.element <> -1
RETURN c.name AS name, c.element AS element, c.embedding_string AS embedding_string`)
}

// ScanImageChunks returns every chunk eligible for image retrieval: in_query
// and either an image fragment or a standalone image upload.
func (s *Store) ScanImageChunks(ctx context.Context) ([]ChunkEmbedding, error) {
	return s.scanChunks(ctx,
		`MATCH (c:Chunk)
WHERE c.in_query = true AND (c.element = -1 OR c.chunk_type = 'image')
RETURN c.name AS name, c.element AS element, c.embedding_string AS embedding_string`)
}

func (s *Store) scanChunks(ctx context.Context, query string) ([]ChunkEmbedding, error) {
	session := s.client.ReadSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("scan chunks: %w", err)
	}
	var rows []ChunkEmbedding
	for result.Next(ctx) {
		record := result.Record()
		var row ChunkEmbedding
		if v, ok := record.Get("name"); ok {
			row.Name, _ = v.(string)
		}
		if v, ok := record.Get("element"); ok {
			row.Element, _ = v.(int64)
		}
		if v, ok := record.Get("embedding_string"); ok {
			row.EmbeddingString, _ = v.(string)
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("scan chunks: %w", err)
	}
	return rows, nil
}

// ChunkText fetches the text payload of one chunk. The second return reports
// whether the chunk exists.
func (s *Store) ChunkText(ctx context.Context, name string, element int64) (string, bool, error) {
	session := s.client.ReadSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (c:Chunk {name: $name, element: $element})
RETURN c.text AS text`,
		map[string]any{"name": name, "element": element})
	if err != nil {
		return "", false, fmt.Errorf("fetch chunk text %s[%d]: %w", name, element, err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return "", false, fmt.Errorf("fetch chunk text %s[%d]: %w", name, element, err)
		}
		return "", false, nil
	}
	v, _ := result.Record().Get("text")
	text, _ := v.(string)
	return text, true, nil
}

// ChunkAttributes resolves chunk names to (name, folder) pairs so callers can
// locate the stored object behind an image chunk.
func (s *Store) ChunkAttributes(ctx context.Context, names []string) ([]ChunkAttrs, error) {
	if len(names) == 0 {
		return nil, nil
	}
	session := s.client.ReadSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (c:Chunk)
WHERE c.name IN $names
RETURN c.name AS name, c.folder AS folder`,
		map[string]any{"names": names})
	if err != nil {
		return nil, fmt.Errorf("chunk attributes: %w", err)
	}
	var attrs []ChunkAttrs
	for result.Next(ctx) {
		record := result.Record()
		var a ChunkAttrs
		if v, ok := record.Get("name"); ok {
			a.Name, _ = v.(string)
		}
		if v, ok := record.Get("folder"); ok {
			a.Folder, _ = v.(string)
		}
		attrs = append(attrs, a)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("chunk attributes: %w", err)
	}
	return attrs, nil
}
