// Package render composites decoded segmentation masks onto source images.
//
// Each annotation's segmentation is decoded to a binary mask, the masks are
// OR-combined, and the overlay colour is alpha-blended into every foreground
// pixel:
//
//	out = round(colour*alpha + pixel*(1-alpha))
//
// Background pixels are copied unchanged. Inputs are never modified.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"runtime"
	"sync"

	"github.com/MeKo-Tech/cocoseg/internal/coco"
	"github.com/MeKo-Tech/cocoseg/internal/mask"
	"github.com/MeKo-Tech/cocoseg/internal/utils"
)

// ErrInvalidAlpha is returned when Options.Alpha lies outside [0, 1].
var ErrInvalidAlpha = errors.New("alpha must be within [0, 1]")

// Mode selects what RenderImage draws.
type Mode string

const (
	// ModeMask alpha-blends the combined segmentation mask.
	ModeMask Mode = "mask"
	// ModeBoxes outlines each annotation's bounding box.
	ModeBoxes Mode = "boxes"
)

// ParseMode converts a mode name, accepting "" as ModeMask.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeMask:
		return ModeMask, nil
	case ModeBoxes:
		return ModeBoxes, nil
	default:
		return "", fmt.Errorf("unknown render mode %q (want %q or %q)", s, ModeMask, ModeBoxes)
	}
}

// DefaultAlpha is the overlay opacity used when none is configured.
const DefaultAlpha = 0.5

// DefaultColor is the overlay colour used when none is configured.
var DefaultColor = color.NRGBA{G: 255, A: 255}

// Options configures rendering.
type Options struct {
	Mode         Mode
	Alpha        float64
	Color        color.NRGBA
	BoxThickness int
	// Workers bounds the decode pool (0 = runtime.NumCPU()).
	Workers int
}

// DefaultOptions returns a half-transparent green mask overlay.
func DefaultOptions() Options {
	return Options{
		Mode:         ModeMask,
		Alpha:        DefaultAlpha,
		Color:        DefaultColor,
		BoxThickness: DefaultBoxThickness,
		Workers:      runtime.NumCPU(),
	}
}

// ValidateAlpha returns ErrInvalidAlpha unless 0 <= alpha <= 1.
func ValidateAlpha(alpha float64) error {
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidAlpha, alpha)
	}
	return nil
}

// Render decodes the segmentations of anns against img's size, OR-combines
// them and composites the result. The returned image has img's dimensions
// and at least three colour channels.
func Render(img image.Image, anns []coco.Annotation, opts Options) (*image.NRGBA, error) {
	if err := ValidateAlpha(opts.Alpha); err != nil {
		return nil, err
	}
	b := img.Bounds()
	m, err := CombinedMask(anns, b.Dx(), b.Dy(), opts.Workers)
	if err != nil {
		return nil, err
	}
	defer m.Release()
	return Composite(img, m, opts.Color, opts.Alpha)
}

// Composite blends c into the pixels of img selected by m.
func Composite(img image.Image, m *mask.Mask, c color.NRGBA, alpha float64) (*image.NRGBA, error) {
	if err := ValidateAlpha(alpha); err != nil {
		return nil, err
	}
	b := img.Bounds()
	if m.Width != b.Dx() || m.Height != b.Dy() {
		return nil, &coco.DimensionMismatchError{
			Operation:  "composite",
			WantWidth:  b.Dx(),
			WantHeight: b.Dy(),
			GotWidth:   m.Width,
			GotHeight:  m.Height,
		}
	}

	out := utils.ToNRGBA(img)
	for y := range m.Height {
		row := out.Pix[y*out.Stride:]
		for x := range m.Width {
			if m.Pix[y*m.Width+x] == 0 {
				continue
			}
			px := row[x*4 : x*4+3]
			px[0] = blend(c.R, px[0], alpha)
			px[1] = blend(c.G, px[1], alpha)
			px[2] = blend(c.B, px[2], alpha)
		}
	}
	return out, nil
}

func blend(overlay, pixel uint8, alpha float64) uint8 {
	v := math.Round(float64(overlay)*alpha + float64(pixel)*(1-alpha))
	return uint8(min(max(v, 0), 255))
}

// CombinedMask decodes every segmentation of anns to a width x height mask
// and returns their union. Decoding runs on up to workers goroutines, each
// folding its annotations into a private partial mask; the partials are
// OR-reduced once all workers finish. On failure the error of the first
// failing annotation in input order is returned, wrapped with its id.
func CombinedMask(anns []coco.Annotation, width, height, workers int) (*mask.Mask, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(anns))
	if workers <= 1 {
		combined := mask.New(width, height)
		for i := range anns {
			if err := accumulate(combined, &anns[i]); err != nil {
				return nil, err
			}
		}
		return combined, nil
	}

	type partial struct {
		m        *mask.Mask
		errIndex int
		err      error
	}
	partials := make([]partial, workers)
	chunk := (len(anns) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := range workers {
		lo := w * chunk
		hi := min(lo+chunk, len(anns))
		partials[w] = partial{m: mask.New(width, height)}
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(p *partial, lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				if err := accumulate(p.m, &anns[i]); err != nil {
					p.errIndex, p.err = i, err
					return
				}
			}
		}(&partials[w], lo, hi)
	}
	wg.Wait()

	// Chunks are contiguous, so the first failing chunk holds the lowest index.
	for _, p := range partials {
		if p.err != nil {
			return nil, p.err
		}
	}

	combined := partials[0].m
	for _, p := range partials[1:] {
		if err := combined.Or(p.m); err != nil {
			return nil, err
		}
		p.m.Release()
	}
	return combined, nil
}

func accumulate(dst *mask.Mask, a *coco.Annotation) error {
	m, err := mask.Decode(a.Segmentation, dst.Width, dst.Height)
	if err != nil {
		return fmt.Errorf("annotation %d: %w", a.ID, err)
	}
	defer m.Release()
	return dst.Or(m)
}
