package support

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/cocoseg/internal/coco"
	"github.com/MeKo-Tech/cocoseg/internal/synth"
	"github.com/MeKo-Tech/cocoseg/internal/testutil"
	"github.com/MeKo-Tech/cocoseg/internal/utils"
	"github.com/cucumber/godog"
)

// aSampleAnnotationStore writes the two-page sample store to
// {tmp}/annotations.json plus a plain page image per record under {tmp}/images.
func (testCtx *TestContext) aSampleAnnotationStore() error {
	store := testutil.SampleStore()

	testCtx.AnnotationsPath = filepath.Join(testCtx.TempDir, "annotations.json")
	testCtx.ImagesDir = filepath.Join(testCtx.TempDir, "images")

	if err := coco.Save(testCtx.AnnotationsPath, store, true); err != nil {
		return err
	}
	for _, img := range store.Images {
		path := filepath.Join(testCtx.ImagesDir, filepath.FromSlash(img.FileName))
		if err := utils.SaveImage(path, testutil.SolidImage(img.Width, img.Height, testutil.Paper)); err != nil {
			return fmt.Errorf("write page image: %w", err)
		}
	}
	return nil
}

// updateStore loads the fixture store, applies fn and writes it back.
func (testCtx *TestContext) updateStore(fn func(*coco.Store) error) error {
	if testCtx.AnnotationsPath == "" {
		return fmt.Errorf("no annotation store in this scenario")
	}
	store, err := coco.Load(testCtx.AnnotationsPath)
	if err != nil {
		return err
	}
	if err := fn(store); err != nil {
		return err
	}
	return coco.Save(testCtx.AnnotationsPath, store, true)
}

func (testCtx *TestContext) theStoreHasBeenSynthesized() error {
	return testCtx.updateStore(func(store *coco.Store) error {
		_, err := synth.Synthesize(context.Background(), store, synth.Options{Workers: 1})
		return err
	})
}

func (testCtx *TestContext) annotationHasBBoxWidth(id int64, width float64) error {
	return testCtx.updateStore(func(store *coco.Store) error {
		for i := range store.Annotations {
			if store.Annotations[i].ID == id {
				store.Annotations[i].BBox.W = width
				return nil
			}
		}
		return fmt.Errorf("annotation %d not in store", id)
	})
}

func (testCtx *TestContext) annotationReferencesImage(id, imageID int64) error {
	return testCtx.updateStore(func(store *coco.Store) error {
		for i := range store.Annotations {
			if store.Annotations[i].ID == id {
				store.Annotations[i].ImageID = imageID
				return nil
			}
		}
		return fmt.Errorf("annotation %d not in store", id)
	})
}

func (testCtx *TestContext) thePageImageIsMissing(fileName string) error {
	return os.Remove(filepath.Join(testCtx.ImagesDir, filepath.FromSlash(fileName)))
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	path := testCtx.resolvePath(name)
	if !testutil.FileExists(path) {
		return fmt.Errorf("file %s does not exist", path)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldNotExist(name string) error {
	path := testCtx.resolvePath(name)
	if testutil.FileExists(path) {
		return fmt.Errorf("file %s exists but should not", path)
	}
	return nil
}

func (testCtx *TestContext) everyAnnotationShouldHaveAPolygon(name string) error {
	store, err := coco.Load(testCtx.resolvePath(name))
	if err != nil {
		return err
	}
	for _, a := range store.Annotations {
		if a.Segmentation == nil || a.Segmentation.Kind != coco.SegmentationPolygon {
			return fmt.Errorf("annotation %d has no polygon segmentation", a.ID)
		}
		if a.BBox == nil || coco.BBoxFromPolygon(a.Segmentation.Polygons[0]) != *a.BBox {
			return fmt.Errorf("annotation %d polygon does not match its bbox", a.ID)
		}
	}
	return nil
}

func (testCtx *TestContext) annotationShouldHaveArea(id int64, name string, area float64) error {
	store, err := coco.Load(testCtx.resolvePath(name))
	if err != nil {
		return err
	}
	for _, a := range store.Annotations {
		if a.ID == id {
			if math.Abs(a.Area-area) > 1e-9 {
				return fmt.Errorf("annotation %d has area %g, expected %g", id, a.Area, area)
			}
			return nil
		}
	}
	return fmt.Errorf("annotation %d not found in %s", id, name)
}

func (testCtx *TestContext) theImageShouldHaveSize(name string, width, height int) error {
	_, meta, err := utils.LoadImage(testCtx.resolvePath(name))
	if err != nil {
		return err
	}
	if meta.Width != width || meta.Height != height {
		return fmt.Errorf("image %s is %dx%d, expected %dx%d", name, meta.Width, meta.Height, width, height)
	}
	return nil
}

func (testCtx *TestContext) thePixelShouldBe(x, y int, name, hex string) error {
	img, _, err := utils.LoadImage(testCtx.resolvePath(name))
	if err != nil {
		return err
	}
	nrgba := utils.ToNRGBA(img)
	got := utils.FormatHexColor(nrgba.NRGBAAt(nrgba.Rect.Min.X+x, nrgba.Rect.Min.Y+y))
	if !strings.EqualFold(got, hex) {
		return fmt.Errorf("pixel (%d, %d) of %s is %s, expected %s", x, y, name, got, hex)
	}
	return nil
}

// RegisterFixtureSteps registers fixture setup and file assertion steps.
func (testCtx *TestContext) RegisterFixtureSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a sample annotation store with page images$`, testCtx.aSampleAnnotationStore)
	sc.Step(`^the annotation store has been synthesized$`, testCtx.theStoreHasBeenSynthesized)
	sc.Step(`^annotation (\d+) has a bbox width of (-?[\d.]+)$`, testCtx.annotationHasBBoxWidth)
	sc.Step(`^annotation (\d+) references image (\d+)$`, testCtx.annotationReferencesImage)
	sc.Step(`^the page image "([^"]*)" is missing$`, testCtx.thePageImageIsMissing)

	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^every annotation in "([^"]*)" should have a bbox polygon$`, testCtx.everyAnnotationShouldHaveAPolygon)
	sc.Step(`^annotation (\d+) in "([^"]*)" should have area ([\d.]+)$`, testCtx.annotationShouldHaveArea)
	sc.Step(`^the image "([^"]*)" should be (\d+)x(\d+) pixels$`, testCtx.theImageShouldHaveSize)
	sc.Step(`^pixel \((\d+), (\d+)\) of "([^"]*)" should be "([^"]*)"$`, testCtx.thePixelShouldBe)
}
