package utils

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// maxCoord bounds pixel coordinates before integer conversion.
const maxCoord = 1 << 30

// BoxCorners converts a float box to the corners its outline passes through.
// Each value is truncated first and the far corner (x+w, y+h) is inclusive,
// so (10.9, 5.2, 3.5, 2) becomes (10,5)-(13,7).
func BoxCorners(x, y, w, h float64) (image.Point, image.Point) {
	x0, y0 := truncCoord(x), truncCoord(y)
	p0 := image.Pt(x0, y0)
	p1 := image.Pt(truncCoord(float64(x0)+math.Trunc(w)), truncCoord(float64(y0)+math.Trunc(h)))
	return p0, p1
}

func truncCoord(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Trunc(math.Max(-maxCoord, math.Min(maxCoord, v))))
}

// DrawRect draws the outline through the inclusive corners p0 and p1 into dst.
// Every edge is centred on its line and extends thickness/2 pixels to each
// side, so thickness 1 gives single-pixel edges and 2 gives three-pixel
// edges. Joins are square. The outline is clipped to dst's bounds.
func DrawRect(dst draw.Image, p0, p1 image.Point, col color.Color, thickness int) {
	half := max(thickness, 1) / 2
	bounds := dst.Bounds()
	band := func(x0, y0, x1, y1 int) {
		fillClipped(dst, bounds, image.Rect(x0-half, y0-half, x1+half+1, y1+half+1), col)
	}
	band(p0.X, p0.Y, p1.X, p0.Y) // top
	band(p0.X, p1.Y, p1.X, p1.Y) // bottom
	band(p0.X, p0.Y, p0.X, p1.Y) // left
	band(p1.X, p0.Y, p1.X, p1.Y) // right
}

func fillClipped(dst draw.Image, bounds, r image.Rectangle, col color.Color) {
	r = r.Intersect(bounds)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			dst.Set(x, y, col)
		}
	}
}
