package render

import (
	"image"
	"image/color"

	"github.com/MeKo-Tech/cocoseg/internal/coco"
	"github.com/MeKo-Tech/cocoseg/internal/utils"
)

// DefaultBoxThickness is the outline width used when none is configured.
const DefaultBoxThickness = 2

// BoxOptions configures DrawBoxes.
type BoxOptions struct {
	Color     color.NRGBA
	Thickness int
}

// DrawBoxes returns a copy of img with the bounding box of every annotation
// outlined. Box values are truncated to whole pixels, the far corner
// (x+w, y+h) is part of the outline and each edge is stroked centred on its
// line. Outlines are clipped to the image. Annotations without a bbox are skipped; a negative
// size is an *coco.InvalidAnnotationError.
func DrawBoxes(img image.Image, anns []coco.Annotation, opts BoxOptions) (*image.NRGBA, error) {
	if opts.Thickness <= 0 {
		opts.Thickness = DefaultBoxThickness
	}
	out := utils.ToNRGBA(img)
	for i, a := range anns {
		if a.BBox == nil {
			continue
		}
		b := *a.BBox
		if b.W < 0 || b.H < 0 {
			return nil, &coco.InvalidAnnotationError{Index: i, AnnotationID: a.ID, Reason: "bbox has negative size"}
		}
		p0, p1 := utils.BoxCorners(b.X, b.Y, b.W, b.H)
		utils.DrawRect(out, p0, p1, opts.Color, opts.Thickness)
	}
	return out, nil
}
