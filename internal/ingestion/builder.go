package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/docugraph/docugraph/internal/config"
	pkgerrors "github.com/docugraph/docugraph/internal/pkg/errors"
	"github.com/docugraph/docugraph/internal/platform/logger"
)

const describeImagePrompt = `Give overall headline for the image and one line description. Then read the text in the image and output the text in detail. If the image is a spreadsheet then output what you see in JSON format and extract table info from the image. If you are not able to extract JSON then output only text.`

const describeImageShortPrompt = `Read the text of the image and create a one-sentence summary of the image's content.`

// GraphStore is the slice of the chunk graph the builder writes.
type GraphStore interface {
	UpsertChunk(ctx context.Context, name, folder string, element int, status string) (string, error)
	SetChunkContent(ctx context.Context, name string, element int, chunkType, text, embeddingString, textShort, parentName string) error
	LinkSequential(ctx context.Context, folder, name string) error
	UniqueName(ctx context.Context, body, extension string) (string, error)
	ImageTextShort(ctx context.Context, name string) (string, error)
}

// ModelClient embeds chunk text and describes images.
type ModelClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	DescribeImage(ctx context.Context, data []byte, mimeType string, prompt string) (string, error)
}

// ObjectStore is the slice of object storage the builder needs.
type ObjectStore interface {
	ObjectExists(ctx context.Context, key string) (bool, error)
	DownloadObject(ctx context.Context, key string) ([]byte, error)
	UploadObject(ctx context.Context, key string, r io.Reader) error
}

// ExtractedImage identifies one image pulled out of a document, anchored to
// its 1-based page number.
type ExtractedImage struct {
	Name string
	Page int
	data []byte
}

// Service turns one uploaded document into a graph-linked set of chunks.
type Service struct {
	log    *logger.Logger
	store  GraphStore
	bucket ObjectStore
	model  ModelClient
	cfg    config.Retrieval

	pageTexts      func(data []byte) ([]string, error)
	embeddedImages func(data []byte) ([]embeddedImage, error)
}

func NewService(log *logger.Logger, store GraphStore, bucket ObjectStore, model ModelClient, cfg config.Retrieval) *Service {
	return &Service{
		log:            log.With("service", "ChunkBuilder"),
		store:          store,
		bucket:         bucket,
		model:          model,
		cfg:            cfg,
		pageTexts:      pdfPageTexts,
		embeddedImages: extractEmbeddedImages,
	}
}

// IngestDocument builds the chunk graph for one stored object. The object must
// already live at folder/fileName in the bucket. Returns the document's chunk
// name, which may carry a _N suffix when the plain file name was taken.
func (s *Service) IngestDocument(ctx context.Context, folder, fileName string) (string, error) {
	fileName = strings.TrimSpace(strings.ToLower(fileName))
	ext := filepath.Ext(fileName)
	body := strings.TrimSuffix(fileName, ext)

	// Missing source fails before any chunk is written.
	exists, err := s.bucket.ObjectExists(ctx, folder+"/"+fileName)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: %s/%s", pkgerrors.ErrSourceNotFound, folder, fileName)
	}

	chunkName, err := s.store.UniqueName(ctx, body, ext)
	if err != nil {
		return "", err
	}
	if chunkName != fileName {
		s.log.Info("file name already indexed, chunk renamed", "file", fileName, "chunk", chunkName)
	}

	if _, err := s.store.UpsertChunk(ctx, chunkName, folder, 0, "new"); err != nil {
		return "", err
	}

	switch ext {
	case ".png", ".jpg", ".jpeg":
		if err := s.ingestStandaloneImage(ctx, folder, fileName, chunkName, ext); err != nil {
			return "", err
		}
	case ".pdf":
		images, err := s.ExtractImagesFromPDF(ctx, folder, fileName, body)
		if err != nil {
			return "", err
		}
		for _, img := range images {
			if err := s.ingestDocumentImage(ctx, folder, img, chunkName); err != nil {
				return "", err
			}
		}
		if err := s.SplitPDFToChunks(ctx, folder, fileName, chunkName, images); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unsupported file type %q", ext)
	}
	return chunkName, nil
}

// ingestStandaloneImage indexes an image uploaded on its own: default chunk
// type, element 0, no parent document.
func (s *Service) ingestStandaloneImage(ctx context.Context, folder, fileName, chunkName, ext string) error {
	key := folder + "/" + fileName
	data, err := s.readObject(ctx, key)
	if err != nil {
		return err
	}
	text, err := s.model.DescribeImage(ctx, data, mimeForExt(ext), describeImagePrompt)
	if err != nil {
		return fmt.Errorf("describe image %s: %w", key, err)
	}
	embedding, err := s.model.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed image description %s: %w", key, err)
	}
	return s.store.SetChunkContent(ctx, chunkName, 0, "image", text, encodeEmbedding(embedding), "", "")
}

// ingestDocumentImage indexes one image extracted from a document: element -1,
// long description as text, one-sentence summary as text_short, IMAGE_OF edge
// to the document's primary chunk.
func (s *Service) ingestDocumentImage(ctx context.Context, folder string, img ExtractedImage, parentName string) error {
	ext := filepath.Ext(img.Name)
	text, err := s.model.DescribeImage(ctx, img.data, mimeForExt(ext), describeImagePrompt)
	if err != nil {
		return fmt.Errorf("describe image %s: %w", img.Name, err)
	}
	textShort, err := s.model.DescribeImage(ctx, img.data, mimeForExt(ext), describeImageShortPrompt)
	if err != nil {
		return fmt.Errorf("summarize image %s: %w", img.Name, err)
	}
	embedding, err := s.model.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed image description %s: %w", img.Name, err)
	}
	imageName, err := s.store.UpsertChunk(ctx, img.Name, folder, -1, "new")
	if err != nil {
		return err
	}
	return s.store.SetChunkContent(ctx, imageName, -1, "pdf_image", text, encodeEmbedding(embedding), textShort, parentName)
}

// ExtractImagesFromPDF pulls every embedded image out of the stored document,
// uploads each next to the source, and reports their names and page anchors.
func (s *Service) ExtractImagesFromPDF(ctx context.Context, folder, fileName, body string) ([]ExtractedImage, error) {
	key := folder + "/" + fileName
	data, err := s.readObject(ctx, key)
	if err != nil {
		return nil, err
	}
	raw, err := s.embeddedImages(data)
	if err != nil {
		return nil, fmt.Errorf("extract images from %s: %w", key, err)
	}

	perPage := map[int]int{}
	images := make([]ExtractedImage, 0, len(raw))
	for _, img := range raw {
		perPage[img.PageNr]++
		name := fmt.Sprintf("%s_image_%d_%d.%s", body, img.PageNr, perPage[img.PageNr], img.FileType)
		if err := s.bucket.UploadObject(ctx, folder+"/"+name, bytes.NewReader(img.Data)); err != nil {
			return nil, err
		}
		images = append(images, ExtractedImage{Name: name, Page: img.PageNr, data: img.Data})
	}
	return images, nil
}

// SplitPDFToChunks builds one context-windowed chunk per page and links the
// page sequence. Image chunks must already be indexed so their short
// summaries can be folded into the pages they sit on.
func (s *Service) SplitPDFToChunks(ctx context.Context, folder, fileName, chunkName string, images []ExtractedImage) error {
	key := folder + "/" + fileName
	data, err := s.readObject(ctx, key)
	if err != nil {
		return err
	}
	pages, err := s.pageTexts(data)
	if err != nil {
		return fmt.Errorf("split %s: %w", key, err)
	}

	pageSummaries := map[int][]string{}
	for _, img := range images {
		summary, err := s.store.ImageTextShort(ctx, img.Name)
		if err != nil {
			s.log.Warn("image summary unavailable", "image", img.Name, "error", err)
			summary = ""
		}
		pageSummaries[img.Page] = append(pageSummaries[img.Page], summary)
	}

	for i := range pages {
		text := BuildPageWindow(pages, i, pageSummaries[i+1], s.cfg.ContextWindow)
		if _, err := s.store.UpsertChunk(ctx, chunkName, folder, i, "new"); err != nil {
			return err
		}
		embedding, err := s.model.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("embed page %d of %s: %w", i+1, key, err)
		}
		if err := s.store.SetChunkContent(ctx, chunkName, i, "text", text, encodeEmbedding(embedding), "", ""); err != nil {
			return err
		}
	}
	return s.store.LinkSequential(ctx, folder, chunkName)
}

// readObject verifies presence before reading so a missing source fails fast,
// before any chunk is written for it.
func (s *Service) readObject(ctx context.Context, key string) ([]byte, error) {
	exists, err := s.bucket.ObjectExists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", pkgerrors.ErrSourceNotFound, key)
	}
	return s.bucket.DownloadObject(ctx, key)
}

func encodeEmbedding(v []float32) string {
	if len(v) == 0 {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func mimeForExt(ext string) string {
	if ext == ".png" {
		return "image/png"
	}
	return "image/jpeg"
}
