package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/docugraph/docugraph/internal/platform/logger"
)

// Retrieval holds the ranking and chunking knobs. Zero values are replaced by
// the defaults below so a partial yaml file only overrides what it names.
type Retrieval struct {
	// Minimum similarity (exclusive) for a text passage to be considered.
	TextScoreFloor float64 `yaml:"text_score_floor"`
	// Hard lower bound for image acceptance, regardless of the derived floor.
	ImageScoreFloor float64 `yaml:"image_score_floor"`
	TextTopK        int     `yaml:"text_top_k"`
	ImageTopK       int     `yaml:"image_top_k"`
	// Characters of neighboring page text appended on each side of a page chunk.
	ContextWindow int `yaml:"context_window"`
}

func Default() Retrieval {
	return Retrieval{
		TextScoreFloor:  0.5,
		ImageScoreFloor: 0.55,
		TextTopK:        5,
		ImageTopK:       3,
		ContextWindow:   1500,
	}
}

// LoadRetrieval reads the yaml file named by RETRIEVAL_CONFIG_PATH, if any.
func LoadRetrieval(log *logger.Logger) Retrieval {
	cfg := Default()
	path := strings.TrimSpace(os.Getenv("RETRIEVAL_CONFIG_PATH"))
	if path == "" {
		return cfg
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if log != nil {
			log.Warn("retrieval config unreadable, using defaults", "path", path, "error", err)
		}
		return cfg
	}
	var file Retrieval
	if err := yaml.Unmarshal(raw, &file); err != nil {
		if log != nil {
			log.Warn("retrieval config invalid, using defaults", "path", path, "error", err)
		}
		return cfg
	}
	cfg = merge(cfg, file)
	if log != nil {
		log.Info("retrieval config loaded", "path", path,
			"text_floor", cfg.TextScoreFloor, "image_floor", cfg.ImageScoreFloor,
			"text_top_k", cfg.TextTopK, "image_top_k", cfg.ImageTopK,
			"context_window", cfg.ContextWindow)
	}
	return cfg
}

func merge(base, override Retrieval) Retrieval {
	if override.TextScoreFloor > 0 {
		base.TextScoreFloor = override.TextScoreFloor
	}
	if override.ImageScoreFloor > 0 {
		base.ImageScoreFloor = override.ImageScoreFloor
	}
	if override.TextTopK > 0 {
		base.TextTopK = override.TextTopK
	}
	if override.ImageTopK > 0 {
		base.ImageTopK = override.ImageTopK
	}
	if override.ContextWindow > 0 {
		base.ContextWindow = override.ContextWindow
	}
	return base
}

func (r Retrieval) Validate() error {
	if r.ImageScoreFloor < r.TextScoreFloor {
		return fmt.Errorf("image_score_floor %.2f below text_score_floor %.2f", r.ImageScoreFloor, r.TextScoreFloor)
	}
	return nil
}
