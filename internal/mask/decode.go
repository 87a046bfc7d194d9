package mask

import (
	"github.com/MeKo-Tech/cocoseg/internal/coco"
)

// Decode turns a segmentation into a width x height mask, dispatching on its
// kind. Polygons are filled with FillEvenOdd. An RLE whose size differs from
// the target yields a *coco.DimensionMismatchError; anything that is not a
// well-formed polygon or RLE yields a *coco.DecodeError.
func Decode(seg *coco.Segmentation, width, height int) (*Mask, error) {
	if err := seg.Validate(); err != nil {
		return nil, err
	}

	switch seg.Kind {
	case coco.SegmentationPolygon:
		return Rasterize(seg.Polygons, width, height), nil
	case coco.SegmentationRLE:
		if seg.RLE.Width() != width || seg.RLE.Height() != height {
			return nil, &coco.DimensionMismatchError{
				Operation:  "rle decode",
				WantWidth:  width,
				WantHeight: height,
				GotWidth:   seg.RLE.Width(),
				GotHeight:  seg.RLE.Height(),
			}
		}
		return DecodeRLE(*seg.RLE)
	default:
		return nil, &coco.DecodeError{Reason: "unsupported segmentation kind " + seg.Kind.String()}
	}
}
