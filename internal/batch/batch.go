// Package batch renders annotation overlays for every image of an annotation
// store in one pass.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/cocoseg/internal/coco"
	"github.com/MeKo-Tech/cocoseg/internal/render"
)

// ErrImageFileNotFound is returned when an image record's file_name matches
// no discovered image file.
var ErrImageFileNotFound = errors.New("image file not found")

// Config holds all configuration for batch rendering.
type Config struct {
	AnnotationsPath string
	ImagesDir       string
	OutputDir       string
	Render          render.Options

	// Workers is the number of images rendered concurrently (0 = 1).
	Workers int

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// ContinueOnError records per-image failures instead of aborting.
	ContinueOnError bool

	Progress ProgressCallback
	Logger   *slog.Logger
}

// ImageResult is the outcome for one image record.
type ImageResult struct {
	ImageID     int64         `json:"image_id"`
	FileName    string        `json:"file_name"`
	ImagePath   string        `json:"image_path,omitempty"`
	OutputPath  string        `json:"output_path,omitempty"`
	Annotations int           `json:"annotations"`
	Duration    time.Duration `json:"duration_ns"`
	Err         error         `json:"-"`
}

// Result holds the result of batch processing. Images follow store order.
type Result struct {
	AnnotationsPath string        `json:"annotations_path"`
	Mode            render.Mode   `json:"mode"`
	Images          []ImageResult `json:"images"`
	Duration        time.Duration `json:"duration_ns"`
	WorkerCount     int           `json:"workers"`
}

// Succeeded returns the number of images rendered without error.
func (r *Result) Succeeded() int {
	n := 0
	for _, img := range r.Images {
		if img.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of images that could not be rendered.
func (r *Result) Failed() int { return len(r.Images) - r.Succeeded() }

// Process loads the store named by cfg.AnnotationsPath and renders every image
// record whose file can be found under cfg.ImagesDir into cfg.OutputDir.
//
// Without ContinueOnError the first failure in store order is returned and
// the remaining work is cancelled; outputs already written stay on disk.
func Process(ctx context.Context, cfg Config) (*Result, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	mode, err := render.ParseMode(string(cfg.Render.Mode))
	if err != nil {
		return nil, err
	}
	cfg.Render.Mode = mode
	if err := render.ValidateAlpha(cfg.Render.Alpha); err != nil && mode == render.ModeMask {
		return nil, err
	}

	store, err := coco.Load(cfg.AnnotationsPath)
	if err != nil {
		return nil, err
	}

	files, err := discoverInDirectory(cfg.ImagesDir, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no image files found in %s", cfg.ImagesDir)
	}
	resolver := newFileResolver(cfg.ImagesDir, files)

	logger.Debug("Starting batch render",
		"images", len(store.Images), "files", len(files), "workers", cfg.Workers, "mode", mode)

	start := time.Now()
	results, err := renderAll(ctx, store, resolver, cfg, logger)
	if err != nil {
		return nil, err
	}

	res := &Result{
		AnnotationsPath: cfg.AnnotationsPath,
		Mode:            mode,
		Images:          results,
		Duration:        time.Since(start),
		WorkerCount:     cfg.Workers,
	}
	logger.Info("Batch render finished",
		"succeeded", res.Succeeded(), "failed", res.Failed(), "duration", res.Duration)
	return res, nil
}
