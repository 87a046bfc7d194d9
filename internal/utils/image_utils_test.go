package utils

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoxCorners(t *testing.T) {
	p0, p1 := BoxCorners(10.9, 5.2, 3.5, 2)
	assert.Equal(t, image.Pt(10, 5), p0)
	assert.Equal(t, image.Pt(13, 7), p1)

	p0, p1 = BoxCorners(0, 0, 4, 4)
	assert.Equal(t, image.Pt(0, 0), p0)
	assert.Equal(t, image.Pt(4, 4), p1, "far corner is inclusive")

	p0, p1 = BoxCorners(-1e300, 2, 1e300, math.NaN())
	assert.Equal(t, image.Pt(-maxCoord, 2), p0)
	assert.Equal(t, image.Pt(maxCoord, 0), p1, "huge and NaN values are clamped")
}

func TestDrawRect(t *testing.T) {
	green := color.NRGBA{G: 255, A: 255}

	t.Run("thickness 1 draws through both corners", func(t *testing.T) {
		img := image.NewNRGBA(image.Rect(0, 0, 12, 10))
		DrawRect(img, image.Pt(2, 2), image.Pt(8, 6), green, 1)

		assert.Equal(t, green, img.NRGBAAt(2, 2))
		assert.Equal(t, green, img.NRGBAAt(8, 6))
		assert.Equal(t, green, img.NRGBAAt(5, 6), "bottom edge")
		assert.Equal(t, color.NRGBA{}, img.NRGBAAt(3, 3), "interior untouched")
		assert.Equal(t, color.NRGBA{}, img.NRGBAAt(9, 6), "exterior untouched")
		assert.Equal(t, color.NRGBA{}, img.NRGBAAt(1, 1))
	})

	t.Run("thickness 2 is centred on the edge", func(t *testing.T) {
		img := image.NewNRGBA(image.Rect(0, 0, 12, 10))
		DrawRect(img, image.Pt(2, 2), image.Pt(8, 6), green, 2)

		for _, p := range []image.Point{{1, 1}, {2, 2}, {3, 3}, {5, 1}, {5, 3}, {9, 7}, {7, 4}, {9, 4}} {
			assert.Equal(t, green, img.NRGBAAt(p.X, p.Y), "stroke at %v", p)
		}
		for _, p := range []image.Point{{0, 0}, {4, 4}, {5, 4}, {10, 8}, {10, 4}} {
			assert.Equal(t, color.NRGBA{}, img.NRGBAAt(p.X, p.Y), "no stroke at %v", p)
		}
	})
}

func TestDrawRect_ClipsToImage(t *testing.T) {
	green := color.NRGBA{G: 255, A: 255}
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	assert.NotPanics(t, func() {
		DrawRect(img, image.Pt(-3, 1), image.Pt(10, 20), green, 0)
	})
	assert.Equal(t, green, img.NRGBAAt(0, 1), "top edge is inside the image")
	assert.Equal(t, color.NRGBA{}, img.NRGBAAt(0, 3), "left edge lies outside the image")
}
