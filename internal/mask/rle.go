package mask

import (
	"fmt"
	"math"
	"strings"

	"github.com/MeKo-Tech/cocoseg/internal/coco"
)

// DecodeRLE expands a run-length mask. Runs alternate background and
// foreground starting with background and walk the grid column by column,
// so pixel (x, y) is run position x*height + y. The counts must cover the
// grid exactly.
func DecodeRLE(r coco.RLE) (*Mask, error) {
	h, w := r.Height(), r.Width()
	if h <= 0 || w <= 0 {
		return nil, &coco.DecodeError{Reason: fmt.Sprintf("rle size must be positive, got [%d %d]", h, w)}
	}

	counts := r.Counts
	if r.Compressed() {
		var err error
		counts, err = DecompressCounts(r.CountsString)
		if err != nil {
			return nil, err
		}
	}

	total := uint64(h) * uint64(w)
	var sum uint64
	for _, c := range counts {
		sum += uint64(c)
	}
	if sum != total {
		return nil, &coco.DecodeError{Reason: fmt.Sprintf("rle counts sum to %d, want %d for size [%d %d]", sum, total, h, w)}
	}

	m := New(w, h)
	pos := 0
	for i, c := range counts {
		if i%2 == 0 {
			pos += int(c)
			continue
		}
		for end := pos + int(c); pos < end; pos++ {
			x, y := pos/h, pos%h
			m.Pix[y*w+x] = 1
		}
	}
	return m, nil
}

// EncodeRLE run-length encodes m column by column with uncompressed counts.
func EncodeRLE(m *Mask) coco.RLE {
	h, w := m.Height, m.Width
	counts := make([]uint32, 0, 8)
	var run uint32
	var cur uint8
	for x := range w {
		for y := range h {
			v := m.Pix[y*w+x]
			if v != 0 {
				v = 1
			}
			if v != cur {
				counts = append(counts, run)
				run = 0
				cur = v
			}
			run++
		}
	}
	counts = append(counts, run)
	return coco.RLE{Size: [2]int{h, w}, Counts: counts}
}

// CompressCounts encodes counts in the COCO compressed string form. From the
// third count on, each value is stored as the difference to the count two
// positions earlier. Values are written as little-endian groups of five bits
// in characters offset by 48; bit 0x20 marks a continuation and bit 0x10 of
// the final group carries the sign.
func CompressCounts(counts []uint32) string {
	var sb strings.Builder
	for i, c := range counts {
		x := int64(c)
		if i > 2 {
			x -= int64(counts[i-2])
		}
		for more := true; more; {
			b := x & 0x1f
			x >>= 5
			if b&0x10 != 0 {
				more = x != -1
			} else {
				more = x != 0
			}
			if more {
				b |= 0x20
			}
			sb.WriteByte(byte(b + 48))
		}
	}
	return sb.String()
}

// DecompressCounts parses the COCO compressed counts string.
func DecompressCounts(s string) ([]uint32, error) {
	counts := make([]uint32, 0, len(s))
	p := 0
	for p < len(s) {
		var x int64
		k := 0
		for more := true; more; {
			if p >= len(s) {
				return nil, &coco.DecodeError{Reason: "truncated compressed counts"}
			}
			if s[p] < 48 || s[p] > 48+0x3f {
				return nil, &coco.DecodeError{Reason: fmt.Sprintf("invalid byte %q in compressed counts", s[p])}
			}
			if k >= 12 {
				return nil, &coco.DecodeError{Reason: "compressed count overflows"}
			}
			c := int64(s[p]) - 48
			x |= (c & 0x1f) << (5 * k)
			more = c&0x20 != 0
			p++
			k++
			if !more && c&0x10 != 0 {
				x |= -1 << (5 * k)
			}
		}
		if m := len(counts); m > 2 {
			x += int64(counts[m-2])
		}
		if x < 0 || x > math.MaxUint32 {
			return nil, &coco.DecodeError{Reason: fmt.Sprintf("compressed count %d out of range", x)}
		}
		counts = append(counts, uint32(x))
	}
	return counts, nil
}
