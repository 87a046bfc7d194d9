package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/cocoseg/internal/coco"
	"github.com/MeKo-Tech/cocoseg/internal/render"
	"github.com/MeKo-Tech/cocoseg/internal/utils"
)

// errSkipped marks images never attempted because an earlier failure aborted the run.
var errSkipped = errors.New("skipped after earlier failure")

// OutputPath returns where the overlay for an image at relPath (relative to
// the images directory) is written: <outputDir>/<rel dir>/<stem>_<mode>.png.
// Paths that leave the images directory keep only their base name.
func OutputPath(outputDir, relPath string, mode render.Mode) string {
	rel := filepath.Clean(filepath.FromSlash(relPath))
	dir := filepath.Dir(rel)
	if filepath.IsAbs(rel) || dir == ".." || strings.HasPrefix(dir, ".."+string(filepath.Separator)) {
		dir = "."
	}
	base := filepath.Base(rel)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, dir, stem+"_"+string(mode)+".png")
}

// target is the resolved input and planned output of one image record.
type target struct {
	imagePath  string
	outputPath string
}

// planOutputs resolves every record's input file and assigns each a distinct
// output path. When two records would write the same file (same file_name,
// or a basename fallback onto the same image), every record after the first
// gets its image id appended to the stem.
func planOutputs(store *coco.Store, resolver *fileResolver, cfg Config) []target {
	targets := make([]target, len(store.Images))
	claimed := make(map[string]bool, len(store.Images))
	for i, rec := range store.Images {
		path, ok := resolver.resolve(rec.FileName)
		if !ok {
			continue
		}
		rel, err := filepath.Rel(cfg.ImagesDir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		out := OutputPath(cfg.OutputDir, rel, cfg.Render.Mode)
		if claimed[out] {
			ext := filepath.Ext(out)
			out = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(out, ext), rec.ID, ext)
		}
		claimed[out] = true
		targets[i] = target{imagePath: path, outputPath: out}
	}
	return targets
}

// renderAll renders every image record of store on a fixed worker pool and
// returns one result per record in store order.
func renderAll(ctx context.Context, store *coco.Store, resolver *fileResolver, cfg Config,
	logger *slog.Logger,
) ([]ImageResult, error) {
	n := len(store.Images)
	results := make([]ImageResult, n)
	for i, rec := range store.Images {
		results[i] = ImageResult{ImageID: rec.ID, FileName: rec.FileName, Err: errSkipped}
	}

	progress := cfg.Progress
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	progress.OnStart(n)
	defer progress.OnComplete()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	idx := coco.NewIndex(store)
	targets := planOutputs(store, resolver, cfg)
	jobs := make(chan int)
	var (
		wg   sync.WaitGroup
		done atomic.Int64
	)

	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				r := renderOne(idx, store.Images[i], targets[i], cfg)
				results[i] = r
				current := int(done.Add(1))
				if r.Err != nil {
					logger.Warn("Failed to render image", "image_id", r.ImageID, "file", r.FileName, "error", r.Err)
					progress.OnError(current, r.Err)
					if !cfg.ContinueOnError {
						cancel()
					}
				}
				progress.OnProgress(current, n)
			}
		}()
	}

feed:
	for i := range n {
		select {
		case jobs <- i:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !cfg.ContinueOnError {
		for _, r := range results {
			if r.Err != nil && !errors.Is(r.Err, errSkipped) {
				return nil, fmt.Errorf("image %d (%s): %w", r.ImageID, r.FileName, r.Err)
			}
		}
	}
	return results, nil
}

// renderOne loads, renders and saves the overlay of one image record.
func renderOne(idx *coco.Index, rec coco.Image, tgt target, cfg Config) ImageResult {
	start := time.Now()
	res := ImageResult{ImageID: rec.ID, FileName: rec.FileName}
	finish := func(err error) ImageResult {
		res.Err = err
		res.Duration = time.Since(start)
		return res
	}

	path := tgt.imagePath
	if path == "" {
		return finish(fmt.Errorf("%w: %q", ErrImageFileNotFound, rec.FileName))
	}
	res.ImagePath = path
	res.Annotations = len(idx.Annotations(rec.ID))

	img, _, err := utils.LoadImage(path)
	if err != nil {
		return finish(err)
	}

	out, err := render.RenderImage(idx, rec.ID, img, cfg.Render)
	if err != nil {
		return finish(err)
	}

	outPath := tgt.outputPath
	if err := utils.SaveImage(outPath, out); err != nil {
		return finish(err)
	}
	res.OutputPath = outPath
	return finish(nil)
}
