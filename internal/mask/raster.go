package mask

import (
	"math"
	"slices"
)

// FillRule selects how a ring's self-overlaps are filled.
type FillRule int

const (
	// FillEvenOdd toggles inside/outside at every edge crossing.
	FillEvenOdd FillRule = iota
	// FillNonZero fills wherever the winding number is non-zero.
	FillNonZero
)

// Rasterize fills the rings into a width x height mask using FillEvenOdd.
// See RasterizeRule.
func Rasterize(rings [][]float64, width, height int) *Mask {
	return RasterizeRule(rings, width, height, FillEvenOdd)
}

// RasterizeRule fills each ring with the given rule and unions the rings.
//
// A pixel (x, y) is foreground when its centre (x+0.5, y+0.5) lies inside the
// ring, so left and top edges are inclusive and right and bottom edges are
// exclusive. Geometry outside the grid is clipped. Rings with fewer than three
// vertices are ignored.
func RasterizeRule(rings [][]float64, width, height int, rule FillRule) *Mask {
	m := New(width, height)
	for _, ring := range rings {
		fillRing(m, ring, rule)
	}
	return m
}

type crossing struct {
	x   float64
	dir int
}

func fillRing(m *Mask, ring []float64, rule FillRule) {
	n := len(ring) / 2
	if n < 3 {
		return
	}

	minY, maxY := math.Inf(1), math.Inf(-1)
	for i := range n {
		minY = math.Min(minY, ring[2*i+1])
		maxY = math.Max(maxY, ring[2*i+1])
	}
	y0 := centreIndex(minY, m.Height)
	y1 := centreIndex(maxY, m.Height)

	xs := make([]crossing, 0, n)
	for y := y0; y < y1; y++ {
		cy := float64(y) + 0.5
		xs = xs[:0]
		for i := range n {
			ax, ay := ring[2*i], ring[2*i+1]
			j := (i + 1) % n
			bx, by := ring[2*j], ring[2*j+1]
			// Half-open span so a vertex on the scanline is counted once.
			switch {
			case ay <= cy && cy < by:
				xs = append(xs, crossing{x: ax + (cy-ay)*(bx-ax)/(by-ay), dir: 1})
			case by <= cy && cy < ay:
				xs = append(xs, crossing{x: ax + (cy-ay)*(bx-ax)/(by-ay), dir: -1})
			}
		}
		if len(xs) < 2 {
			continue
		}
		slices.SortFunc(xs, func(a, b crossing) int {
			switch {
			case a.x < b.x:
				return -1
			case a.x > b.x:
				return 1
			default:
				return 0
			}
		})

		winding := 0
		for k := 0; k+1 < len(xs); k++ {
			winding += xs[k].dir
			inside := winding != 0
			if rule == FillEvenOdd {
				inside = (k+1)%2 == 1
			}
			if inside {
				fillSpan(m, y, xs[k].x, xs[k+1].x)
			}
		}
	}
}

// fillSpan sets the pixels of row y whose centres lie in [xa, xb).
func fillSpan(m *Mask, y int, xa, xb float64) {
	start := centreIndex(xa, m.Width)
	end := centreIndex(xb, m.Width)
	row := m.Pix[y*m.Width : (y+1)*m.Width]
	for x := start; x < end; x++ {
		row[x] = 1
	}
}

// centreIndex returns the first pixel whose centre lies at or after v,
// clamped to [0, limit]. v is clamped before conversion so huge or infinite
// coordinates stay well defined; NaN maps to 0.
func centreIndex(v float64, limit int) int {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Max(-1, math.Min(float64(limit)+1, v))
	return min(limit, max(0, int(math.Ceil(v-0.5))))
}
