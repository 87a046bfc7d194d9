// Package synth converts bounding-box annotations into polygon segmentations.
package synth

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/cocoseg/internal/coco"
)

// Options controls a synthesis pass.
type Options struct {
	// Workers is the size of the worker pool (0 = runtime.NumCPU()).
	Workers int
	// Logger receives warnings about tolerated records (nil = slog.Default()).
	Logger *slog.Logger
}

// DefaultOptions returns options using every CPU.
func DefaultOptions() Options {
	return Options{Workers: runtime.NumCPU()}
}

// Stats summarises a synthesis pass.
type Stats struct {
	Annotations   int           `json:"annotations"`
	UnknownImages int           `json:"unknown_images"`
	Workers       int           `json:"workers"`
	Duration      time.Duration `json:"duration_ns"`
}

// BoxPolygon returns the single-ring polygon and area for bbox. A negative or
// non-finite size is rejected.
func BoxPolygon(b coco.BBox) ([]float64, float64, error) {
	for _, v := range []float64{b.X, b.Y, b.W, b.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, 0, fmt.Errorf("bbox has non-finite value %v", v)
		}
	}
	if b.W < 0 || b.H < 0 {
		return nil, 0, fmt.Errorf("bbox has negative size %gx%g", b.W, b.H)
	}
	return b.Polygon(), b.Area(), nil
}

// SynthesizeAnnotation replaces the segmentation and area of a with the
// polygon of its bounding box. index is used for error reporting only.
func SynthesizeAnnotation(index int, a *coco.Annotation) error {
	seg, area, err := synthesizeOne(index, a)
	if err != nil {
		return err
	}
	a.Segmentation = seg
	a.Area = area
	return nil
}

func synthesizeOne(index int, a *coco.Annotation) (*coco.Segmentation, float64, error) {
	if a.BBox == nil {
		return nil, 0, &coco.InvalidAnnotationError{Index: index, AnnotationID: a.ID, Reason: "missing bbox"}
	}
	ring, area, err := BoxPolygon(*a.BBox)
	if err != nil {
		return nil, 0, &coco.InvalidAnnotationError{Index: index, AnnotationID: a.ID, Reason: err.Error()}
	}
	return coco.NewPolygonSegmentation(ring), area, nil
}

// job and result carry one annotation through the worker pool.
type job struct {
	index int
	ann   *coco.Annotation
}

type result struct {
	index int
	seg   *coco.Segmentation
	area  float64
	err   error
}

// Synthesize gives every annotation of store a bbox-derived polygon
// segmentation and area. Records are processed in parallel but the store is
// only modified when every record succeeded; otherwise the error of the
// lowest-index failing record is returned and the store is unchanged.
// Annotations referencing unknown images are counted and logged, not rejected.
func Synthesize(ctx context.Context, store *coco.Store, opts Options) (Stats, error) {
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	n := len(store.Annotations)
	stats := Stats{Annotations: n, Workers: opts.Workers}
	if n == 0 {
		stats.Duration = time.Since(start)
		return stats, nil
	}

	var (
		results []result
		err     error
	)
	if n == 1 || opts.Workers == 1 {
		results, err = synthesizeSequential(ctx, store)
	} else {
		results, err = synthesizeParallel(ctx, store, opts.Workers)
	}
	if err != nil {
		return stats, err
	}

	for _, r := range results {
		if r.err != nil {
			return stats, r.err
		}
	}

	for _, r := range results {
		store.Annotations[r.index].Segmentation = r.seg
		store.Annotations[r.index].Area = r.area
	}

	idx := coco.NewIndex(store)
	for _, a := range store.Annotations {
		if !idx.HasImage(a.ImageID) {
			stats.UnknownImages++
			logger.Debug("Annotation references unknown image", "annotation_id", a.ID, "image_id", a.ImageID)
		}
	}
	if stats.UnknownImages > 0 {
		logger.Warn("Annotations reference images missing from the store", "count", stats.UnknownImages)
	}

	stats.Duration = time.Since(start)
	logger.Debug("Synthesized segmentations",
		"annotations", n, "workers", opts.Workers, "duration", stats.Duration)
	return stats, nil
}

func synthesizeSequential(ctx context.Context, store *coco.Store) ([]result, error) {
	results := make([]result, len(store.Annotations))
	for i := range store.Annotations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seg, area, err := synthesizeOne(i, &store.Annotations[i])
		results[i] = result{index: i, seg: seg, area: area, err: err}
	}
	return results, nil
}

func synthesizeParallel(ctx context.Context, store *coco.Store, workers int) ([]result, error) {
	n := len(store.Annotations)
	jobs := make(chan job, n)
	results := make(chan result, n)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go worker(ctx, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i := range store.Annotations {
			select {
			case jobs <- job{index: i, ann: &store.Annotations[i]}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]result, n)
	received := 0
	for r := range results {
		ordered[r.index] = r
		received++
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if received != n {
		return nil, fmt.Errorf("synthesis incomplete: %d of %d annotations processed", received, n)
	}
	return ordered, nil
}

func worker(ctx context.Context, jobs <-chan job, results chan<- result, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case j, ok := <-jobs:
			if !ok {
				return
			}
			seg, area, err := synthesizeOne(j.index, j.ann)
			select {
			case results <- result{index: j.index, seg: seg, area: area, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
