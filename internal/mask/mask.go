// Package mask implements dense binary masks and the two segmentation
// encodings used by annotation stores: polygon rings and COCO run-length
// masks.
package mask

import (
	"image"

	"github.com/MeKo-Tech/cocoseg/internal/coco"
	"github.com/MeKo-Tech/cocoseg/internal/mempool"
)

// Mask is a row-major binary grid. A Pix value of 1 marks foreground.
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// New allocates an all-background mask.
func New(width, height int) *Mask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Mask{Width: width, Height: height, Pix: mempool.GetBytes(width * height)}
}

// Release hands the pixel buffer back for reuse. The mask is empty afterwards
// and must not be used again. Masks that are never released are simply
// garbage collected.
func (m *Mask) Release() {
	if m == nil {
		return
	}
	mempool.PutBytes(m.Pix)
	m.Pix = nil
	m.Width, m.Height = 0, 0
}

// At reports whether (x, y) is foreground. Out of range pixels are background.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x] != 0
}

// Set marks (x, y) as foreground or background.
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	if v {
		m.Pix[y*m.Width+x] = 1
	} else {
		m.Pix[y*m.Width+x] = 0
	}
}

// Or merges other into m. Both masks must have the same shape.
func (m *Mask) Or(other *Mask) error {
	if other.Width != m.Width || other.Height != m.Height {
		return &coco.DimensionMismatchError{
			Operation:  "mask union",
			WantWidth:  m.Width,
			WantHeight: m.Height,
			GotWidth:   other.Width,
			GotHeight:  other.Height,
		}
	}
	for i, v := range other.Pix {
		m.Pix[i] |= v
	}
	return nil
}

// Area returns the number of foreground pixels.
func (m *Mask) Area() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Bounds returns the smallest rectangle containing every foreground pixel,
// or an empty rectangle when the mask is empty.
func (m *Mask) Bounds() image.Rectangle {
	minX, minY := m.Width, m.Height
	maxX, maxY := -1, -1
	for y := range m.Height {
		row := m.Pix[y*m.Width : (y+1)*m.Width]
		for x, v := range row {
			if v == 0 {
				continue
			}
			minX = min(minX, x)
			maxX = max(maxX, x)
			minY = min(minY, y)
			maxY = max(maxY, y)
		}
	}
	if maxX < 0 {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// Gray converts the mask to a black and white image for saving.
func (m *Mask) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		if v != 0 {
			img.Pix[i] = 0xff
		}
	}
	return img
}

// Equal reports whether both masks have the same shape and pixels.
func (m *Mask) Equal(other *Mask) bool {
	if m.Width != other.Width || m.Height != other.Height {
		return false
	}
	for i, v := range m.Pix {
		if (v != 0) != (other.Pix[i] != 0) {
			return false
		}
	}
	return true
}
