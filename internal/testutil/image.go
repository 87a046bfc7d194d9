package testutil

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Paper is the background colour of generated page images.
var Paper = color.NRGBA{R: 240, G: 236, B: 226, A: 255}

// SolidImage returns a w x h image filled with c.
func SolidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// WritePNG encodes img to path, creating parent directories.
func WritePNG(t *testing.T, path string, img image.Image) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	f, err := os.Create(path) //nolint:gosec // test path
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()
	require.NoError(t, png.Encode(f, img))
}

// ReadPNG decodes the PNG at path as NRGBA.
func ReadPNG(t *testing.T, path string) *image.NRGBA {
	t.Helper()

	f, err := os.Open(path) //nolint:gosec // test path
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()
	img, err := png.Decode(f)
	require.NoError(t, err)

	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Bounds().Min == (image.Point{}) {
		return nrgba
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		for x := range b.Dx() {
			out.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}
