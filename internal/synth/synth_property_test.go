package synth

import (
	"context"
	"testing"

	"github.com/MeKo-Tech/cocoseg/internal/coco"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genBox() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 4000),
		gen.IntRange(0, 4000),
		gen.IntRange(0, 4000),
		gen.IntRange(0, 4000),
	).Map(func(vals []interface{}) coco.BBox {
		return coco.BBox{
			X: float64(vals[0].(int)),
			Y: float64(vals[1].(int)),
			W: float64(vals[2].(int)),
			H: float64(vals[3].(int)),
		}
	})
}

func TestSynthesize_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("four vertices with shoelace area w*h", prop.ForAll(
		func(b coco.BBox) bool {
			ring, area, err := BoxPolygon(b)
			if err != nil || len(ring) != 8 {
				return false
			}
			return coco.PolygonArea(ring) == b.W*b.H && area == b.W*b.H
		},
		genBox(),
	))

	properties.Property("resynthesizing from the polygon extent is idempotent", prop.ForAll(
		func(b coco.BBox) bool {
			store := storeWithBoxes(b)
			if _, err := Synthesize(context.Background(), store, Options{Workers: 1}); err != nil {
				return false
			}
			first := store.Annotations[0]
			derived := coco.BBoxFromPolygon(first.Segmentation.Polygons[0])
			store.Annotations[0].BBox = &derived
			if _, err := Synthesize(context.Background(), store, Options{Workers: 1}); err != nil {
				return false
			}
			second := store.Annotations[0]
			if second.Area != first.Area {
				return false
			}
			for i, v := range first.Segmentation.Polygons[0] {
				if second.Segmentation.Polygons[0][i] != v {
					return false
				}
			}
			return true
		},
		genBox(),
	))

	properties.TestingRun(t)
}
