package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/docugraph/docugraph/internal/data/graph"
	"github.com/docugraph/docugraph/internal/platform/logger"
)

// Retriever is the pair of ranked lookups backing one question.
type Retriever interface {
	RetrieveText(ctx context.Context, queryEmbedding []float64, k int) ([]string, float64, error)
	RetrieveImages(ctx context.Context, queryEmbedding []float64, derivedFloor float64, k int) ([]string, []string, error)
}

// Generator produces the final answer from the assembled prompt.
type Generator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// AttrSource resolves image chunk names to their storage folders.
type AttrSource interface {
	ChunkAttributes(ctx context.Context, names []string) ([]graph.ChunkAttrs, error)
}

// URLResolver renders a public URL for a stored object key.
type URLResolver interface {
	PublicURL(key string) string
}

// Turn is one prior exchange in the conversation. History is carried per
// request; the service keeps no state between calls.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type ImageRef struct {
	Name   string `json:"name"`
	Folder string `json:"folder"`
	URL    string `json:"url"`
}

type Answer struct {
	Text   string     `json:"text"`
	Images []ImageRef `json:"images"`
}

type Service struct {
	log       *logger.Logger
	retriever Retriever
	model     Generator
	attrs     AttrSource
	urls      URLResolver
}

func NewService(log *logger.Logger, retriever Retriever, model Generator, attrs AttrSource, urls URLResolver) *Service {
	return &Service{
		log:       log.With("service", "Chat"),
		retriever: retriever,
		model:     model,
		attrs:     attrs,
		urls:      urls,
	}
}

// Ask embeds the question, retrieves the most relevant passages and image
// descriptions, and prompts the generation model with both plus the supplied
// history.
func (s *Service) Ask(ctx context.Context, question string, history []Turn) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("empty question")
	}

	embedding, err := s.model.Embed(ctx, question)
	if err != nil {
		return Answer{}, fmt.Errorf("embed question: %w", err)
	}
	queryEmbedding := make([]float64, len(embedding))
	for i, f := range embedding {
		queryEmbedding[i] = float64(f)
	}

	passages, derivedFloor, err := s.retriever.RetrieveText(ctx, queryEmbedding, 0)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve passages: %w", err)
	}
	descriptions, imageNames, err := s.retriever.RetrieveImages(ctx, queryEmbedding, derivedFloor, 0)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve images: %w", err)
	}
	s.log.Debug("retrieval done",
		"passages", len(passages), "images", len(imageNames), "derived_floor", derivedFloor)

	prompt := BuildPrompt(passages, descriptions, history, question)
	text, err := s.model.GenerateText(ctx, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	images, err := s.resolveImages(ctx, imageNames)
	if err != nil {
		// The answer is already generated; missing attributes only degrade the
		// image references.
		s.log.Warn("image attribute lookup failed", "error", err)
	}
	return Answer{Text: text, Images: images}, nil
}

// BuildPrompt concatenates retrieved context, prior turns and the question.
func BuildPrompt(passages, imageDescriptions []string, history []Turn, question string) string {
	context := strings.Join(passages, "\n") + strings.Join(imageDescriptions, "\n")

	var turns []string
	for _, t := range history {
		turns = append(turns, fmt.Sprintf("%s: %s", t.Role, t.Text))
	}

	return fmt.Sprintf("CONTEXT: %s\n\nCONVERSATION HISTORY: %s\n\nQUESTION: %s",
		context, strings.Join(turns, "\n"), question)
}

func (s *Service) resolveImages(ctx context.Context, names []string) ([]ImageRef, error) {
	if len(names) == 0 {
		return nil, nil
	}
	attrs, err := s.attrs.ChunkAttributes(ctx, names)
	if err != nil {
		return nil, err
	}
	folderByName := make(map[string]string, len(attrs))
	for _, a := range attrs {
		folderByName[a.Name] = a.Folder
	}
	refs := make([]ImageRef, 0, len(names))
	for _, name := range names {
		folder, ok := folderByName[name]
		if !ok {
			continue
		}
		refs = append(refs, ImageRef{
			Name:   name,
			Folder: folder,
			URL:    s.urls.PublicURL(folder + "/" + name),
		})
	}
	return refs, nil
}

// StripParentSuffix reduces a rendered node label back to its bare name.
// Labels from the node listing look like "projects (whose parent is work)".
func StripParentSuffix(label string) string {
	if idx := strings.Index(label, "(whose parent is"); idx >= 0 {
		label = label[:idx]
	}
	return strings.ReplaceAll(label, " ", "")
}
