package render

import (
	"testing"

	"github.com/MeKo-Tech/cocoseg/internal/coco"
	"github.com/MeKo-Tech/cocoseg/internal/testutil"
)

// pageAnnotations lays out n word boxes on an A4 page at 150 dpi.
func pageAnnotations(n int) []coco.Annotation {
	anns := make([]coco.Annotation, n)
	for i := range anns {
		box := coco.BBox{X: float64(40 + (i%10)*110), Y: float64(40 + (i/10)*30), W: 90, H: 18}
		anns[i] = coco.Annotation{ID: int64(i + 1), ImageID: 1, Segmentation: coco.NewPolygonSegmentation(box.Polygon())}
	}
	return anns
}

func BenchmarkCombinedMask_Page(b *testing.B) {
	anns := pageAnnotations(400)

	b.ResetTimer()
	for range b.N {
		m, err := CombinedMask(anns, 1240, 1754, 4)
		if err != nil {
			b.Fatal(err)
		}
		m.Release()
	}
}

func BenchmarkRender_Page(b *testing.B) {
	img := testutil.SolidImage(1240, 1754, testutil.Paper)
	anns := pageAnnotations(400)
	opts := DefaultOptions()

	b.ResetTimer()
	for range b.N {
		if _, err := Render(img, anns, opts); err != nil {
			b.Fatal(err)
		}
	}
}
