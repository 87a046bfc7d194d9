package cmd

import (
	"errors"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/cocoseg/internal/coco"
	"github.com/MeKo-Tech/cocoseg/internal/render"
	"github.com/MeKo-Tech/cocoseg/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCommand(t *testing.T) {
	fx := newCommandFixture(t, t.TempDir(), true)
	page := filepath.Join(fx.ImagesDir, "page-001.png")
	output := filepath.Join(fx.Dir, "overlay.png")
	maskOutput := filepath.Join(fx.Dir, "mask.png")

	out, _, err := executeCommand(t, "render", page, "1", fx.AnnotationsPath,
		"--alpha", "1", "--color", "#0000FF", "-o", output, "--mask-output", maskOutput)
	require.NoError(t, err)
	assert.Contains(t, out, "Rendered image 1 -> "+output)

	img := testutil.ReadPNG(t, output)
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, img.NRGBAAt(2, 3))
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, img.NRGBAAt(27, 15))
	assert.Equal(t, testutil.Paper, img.NRGBAAt(15, 3))

	m := testutil.ReadPNG(t, maskOutput)
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, m.NRGBAAt(2, 3))
	assert.Equal(t, color.NRGBA{A: 255}, m.NRGBAAt(15, 3))
}

func TestRenderCommand_DefaultOutputAndBlend(t *testing.T) {
	fx := newCommandFixture(t, t.TempDir(), true)
	page := filepath.Join(fx.ImagesDir, "page-001.png")

	_, _, err := executeCommand(t, "render", page, "1", fx.AnnotationsPath)
	require.NoError(t, err)

	img := testutil.ReadPNG(t, filepath.Join(fx.ImagesDir, "page-001_masked.png"))
	// default green at alpha 0.5 over paper (240,236,226)
	assert.Equal(t, color.NRGBA{R: 120, G: 246, B: 113, A: 255}, img.NRGBAAt(3, 4))
}

func TestRenderCommand_BoxesMode(t *testing.T) {
	fx := newCommandFixture(t, t.TempDir(), false)
	page := filepath.Join(fx.ImagesDir, "page-001.png")
	output := filepath.Join(fx.Dir, "boxes.png")

	_, _, err := executeCommand(t, "render", page, "1", fx.AnnotationsPath, "--mode", "boxes", "--box-thickness", "1", "-o", output)
	require.NoError(t, err)

	img := testutil.ReadPNG(t, output)
	assert.Equal(t, render.DefaultColor, img.NRGBAAt(20, 10))
	assert.Equal(t, testutil.Paper, img.NRGBAAt(21, 11))
}

func TestRenderCommand_Errors(t *testing.T) {
	fx := newCommandFixture(t, t.TempDir(), true)
	page := filepath.Join(fx.ImagesDir, "page-001.png")

	t.Run("alpha out of range", func(t *testing.T) {
		_, _, err := executeCommand(t, "render", page, "1", fx.AnnotationsPath, "--alpha", "1.5")
		require.ErrorIs(t, err, render.ErrInvalidAlpha)
	})

	t.Run("unknown image id", func(t *testing.T) {
		_, _, err := executeCommand(t, "render", page, "7", fx.AnnotationsPath)
		var le *coco.LookupError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, int64(7), le.ImageID)
	})

	t.Run("non-numeric image id", func(t *testing.T) {
		_, _, err := executeCommand(t, "render", page, "first", fx.AnnotationsPath)
		require.Error(t, err)
	})

	t.Run("bbox-only store has nothing to decode", func(t *testing.T) {
		plain := newCommandFixture(t, t.TempDir(), false)
		_, _, err := executeCommand(t, "render", filepath.Join(plain.ImagesDir, "page-001.png"), "1", plain.AnnotationsPath)
		var de *coco.DecodeError
		require.ErrorAs(t, err, &de)
	})

	t.Run("mask output in box mode", func(t *testing.T) {
		plain := newCommandFixture(t, t.TempDir(), false)
		maskOutput := filepath.Join(plain.Dir, "mask.png")
		_, _, err := executeCommand(t, "render", filepath.Join(plain.ImagesDir, "page-001.png"), "1", plain.AnnotationsPath,
			"--mode", "boxes", "--mask-output", maskOutput)
		require.ErrorIs(t, err, render.ErrMaskNeedsMaskMode)
		assert.Contains(t, err.Error(), "--mask-output")
		assert.False(t, testutil.FileExists(maskOutput))
	})

	t.Run("image size differs from the record", func(t *testing.T) {
		odd := filepath.Join(t.TempDir(), "odd.png")
		testutil.WritePNG(t, odd, testutil.SolidImage(10, 10, testutil.Paper))
		_, _, err := executeCommand(t, "render", odd, "1", fx.AnnotationsPath)
		var dm *coco.DimensionMismatchError
		require.ErrorAs(t, err, &dm)
		assert.False(t, errors.Is(err, render.ErrInvalidAlpha))
	})
}
