package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	cases := []struct {
		path string
		ok   bool
	}{
		{"a.jpg", true},
		{"b.JPEG", true},
		{"c.png", true},
		{"d.bmp", true},
		{"e.tiff", true},
		{"f.webp", true},
		{"g.gif", false},
		{"annotations.json", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, IsSupportedImage(c.path), c.path)
	}
}

func writeTempPNG(t *testing.T, dir string, w, h int, col color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, col)
		}
	}
	path := filepath.Join(dir, "test.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestLoadImageAndMetadata(t *testing.T) {
	dir := t.TempDir()
	p := writeTempPNG(t, dir, 10, 20, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	img, meta, err := LoadImage(p)
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, 10, meta.Width)
	assert.Equal(t, 20, meta.Height)
	assert.Positive(t, meta.SizeBytes)
}

func TestLoadImage_Errors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o600))

	cases := map[string]struct {
		path string
		op   string
	}{
		"empty path":  {path: "", op: "load"},
		"unsupported": {path: filepath.Join(dir, "x.gif"), op: "load"},
		"missing":     {path: filepath.Join(dir, "missing.png"), op: "load"},
		"undecodable": {path: garbage, op: "decode"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := LoadImage(c.path)
			var ipe *ImageProcessingError
			require.ErrorAs(t, err, &ipe)
			assert.Equal(t, c.op, ipe.Operation)
		})
	}
}

func TestSaveImage_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(1, 1, color.NRGBA{R: 200, G: 10, B: 20, A: 255})

	path := filepath.Join(dir, "nested", "out.png")
	require.NoError(t, SaveImage(path, src))

	back, meta, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 3, meta.Width)
	assert.Equal(t, 2, meta.Height)
	assert.Equal(t, color.NRGBA{R: 200, G: 10, B: 20, A: 255}, ToNRGBA(back).NRGBAAt(1, 1))
}

func TestSaveImage_UnknownExtension(t *testing.T) {
	err := SaveImage(filepath.Join(t.TempDir(), "out.xyz"), image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	var ipe *ImageProcessingError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "save", ipe.Operation)
}

func TestEncodeDecodePNG(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, src))

	img, format, err := DecodeImage(&buf)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, src.Bounds(), img.Bounds())
}
