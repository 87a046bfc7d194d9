package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/cocoseg/internal/coco"
	"github.com/stretchr/testify/require"
)

// SampleStore returns a two-page store with bbox-only annotations, the shape
// produced by the OCR and NER stages before mask synthesis.
func SampleStore() *coco.Store {
	bbox := func(x, y, w, h float64) *coco.BBox { return &coco.BBox{X: x, Y: y, W: w, H: h} }
	return &coco.Store{
		Images: []coco.Image{
			{ID: 1, Width: 40, Height: 30, FileName: "page-001.png"},
			{ID: 2, Width: 40, Height: 30, FileName: "scans/page-002.png"},
		},
		Categories: []coco.Category{
			{ID: 1, Name: "PERSON"},
			{ID: 2, Name: "DATE"},
		},
		Annotations: []coco.Annotation{
			{ID: 1, ImageID: 1, CategoryID: 1, BBox: bbox(2, 3, 10, 4)},
			{ID: 2, ImageID: 1, CategoryID: 2, BBox: bbox(20, 10, 8, 6)},
			{ID: 3, ImageID: 2, CategoryID: 1, BBox: bbox(0, 0, 5, 5)},
		},
	}
}

// Fixture is an annotation file plus matching page images on disk.
type Fixture struct {
	Dir             string
	AnnotationsPath string
	ImagesDir       string
	Store           *coco.Store
}

// WriteStore saves store as path (indented JSON).
func WriteStore(t *testing.T, path string, store *coco.Store) {
	t.Helper()
	require.NoError(t, coco.Save(path, store, true))
}

// NewFixture writes store to <dir>/annotations.json and a Paper-coloured PNG
// for every image record under <dir>/images, honouring file_name sub paths.
func NewFixture(t *testing.T, dir string, store *coco.Store) Fixture {
	t.Helper()

	fx := Fixture{
		Dir:             dir,
		AnnotationsPath: filepath.Join(dir, "annotations.json"),
		ImagesDir:       filepath.Join(dir, "images"),
		Store:           store,
	}
	require.NoError(t, os.MkdirAll(fx.ImagesDir, 0o750))
	WriteStore(t, fx.AnnotationsPath, store)
	for _, img := range store.Images {
		WritePNG(t, filepath.Join(fx.ImagesDir, filepath.FromSlash(img.FileName)), SolidImage(img.Width, img.Height, Paper))
	}
	return fx
}
