package render

import (
	"errors"
	"image"

	"github.com/MeKo-Tech/cocoseg/internal/coco"
	"github.com/MeKo-Tech/cocoseg/internal/mask"
)

// ErrMaskNeedsMaskMode is returned when a combined mask is requested while
// drawing boxes. Box mode decodes no segmentations.
var ErrMaskNeedsMaskMode = errors.New("combined mask output requires mask mode")

// RenderImage renders the annotations of one image record. The record must
// exist (*coco.LookupError otherwise) and img must match its recorded size
// (*coco.DimensionMismatchError otherwise). opts.Mode selects a mask overlay
// or box outlines.
func RenderImage(idx *coco.Index, imageID int64, img image.Image, opts Options) (*image.NRGBA, error) {
	anns, mode, err := imageAnnotations(idx, imageID, img, opts)
	if err != nil {
		return nil, err
	}
	if mode == ModeBoxes {
		return DrawBoxes(img, anns, BoxOptions{Color: opts.Color, Thickness: opts.BoxThickness})
	}
	return Render(img, anns, opts)
}

// RenderImageWithMask is RenderImage in mask mode that also returns the
// combined mask behind the overlay, decoding every segmentation once. The
// caller releases the mask. Box mode yields ErrMaskNeedsMaskMode.
func RenderImageWithMask(idx *coco.Index, imageID int64, img image.Image, opts Options) (*image.NRGBA, *mask.Mask, error) {
	anns, mode, err := imageAnnotations(idx, imageID, img, opts)
	if err != nil {
		return nil, nil, err
	}
	if mode == ModeBoxes {
		return nil, nil, ErrMaskNeedsMaskMode
	}
	if err := ValidateAlpha(opts.Alpha); err != nil {
		return nil, nil, err
	}

	b := img.Bounds()
	m, err := CombinedMask(anns, b.Dx(), b.Dy(), opts.Workers)
	if err != nil {
		return nil, nil, err
	}
	out, err := Composite(img, m, opts.Color, opts.Alpha)
	if err != nil {
		m.Release()
		return nil, nil, err
	}
	return out, m, nil
}

func imageAnnotations(idx *coco.Index, imageID int64, img image.Image, opts Options) ([]coco.Annotation, Mode, error) {
	rec, err := idx.Image(imageID)
	if err != nil {
		return nil, "", err
	}
	b := img.Bounds()
	if rec.Width != b.Dx() || rec.Height != b.Dy() {
		return nil, "", &coco.DimensionMismatchError{
			Operation:  "render image",
			WantWidth:  rec.Width,
			WantHeight: rec.Height,
			GotWidth:   b.Dx(),
			GotHeight:  b.Dy(),
		}
	}

	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, "", err
	}
	return idx.Annotations(imageID), mode, nil
}
