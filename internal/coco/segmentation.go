package coco

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// SegmentationKind tags the representation held by a Segmentation.
type SegmentationKind int

const (
	// SegmentationNone is an empty segmentation ("[]").
	SegmentationNone SegmentationKind = iota
	// SegmentationPolygon holds one or more flat rings.
	SegmentationPolygon
	// SegmentationRLE holds a run-length encoded mask.
	SegmentationRLE
	// SegmentationUnknown holds a value that is neither; it is kept verbatim.
	SegmentationUnknown
)

func (k SegmentationKind) String() string {
	switch k {
	case SegmentationNone:
		return "none"
	case SegmentationPolygon:
		return "polygon"
	case SegmentationRLE:
		return "rle"
	default:
		return "unknown"
	}
}

// RLE is a column-major run-length mask. Size is [height, width]. Exactly one
// of Counts (uncompressed) and CountsString (COCO compressed) is set.
type RLE struct {
	Size         [2]int
	Counts       []uint32
	CountsString string
}

// Height returns Size[0].
func (r RLE) Height() int { return r.Size[0] }

// Width returns Size[1].
func (r RLE) Width() int { return r.Size[1] }

// Compressed reports whether counts use the compressed string form.
func (r RLE) Compressed() bool { return r.CountsString != "" }

// Segmentation is a tagged variant over the polygon and RLE encodings.
type Segmentation struct {
	Kind     SegmentationKind
	Polygons [][]float64
	RLE      *RLE

	raw json.RawMessage
}

// NewPolygonSegmentation returns a polygon segmentation holding rings.
func NewPolygonSegmentation(rings ...[]float64) *Segmentation {
	return &Segmentation{Kind: SegmentationPolygon, Polygons: rings}
}

// NewRLESegmentation returns an RLE segmentation.
func NewRLESegmentation(r RLE) *Segmentation {
	return &Segmentation{Kind: SegmentationRLE, RLE: &r}
}

// Raw returns the original bytes of an unknown segmentation.
func (s *Segmentation) Raw() json.RawMessage { return s.raw }

type rleJSON struct {
	Size   []int           `json:"size"`
	Counts json.RawMessage `json:"counts"`
}

func (s *Segmentation) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*s = Segmentation{}

	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		s.Kind = SegmentationNone
		return nil
	case trimmed[0] == '[':
		var rings [][]float64
		if err := json.Unmarshal(trimmed, &rings); err != nil {
			s.setUnknown(trimmed)
			return nil
		}
		if len(rings) == 0 {
			s.Kind = SegmentationNone
			return nil
		}
		s.Kind = SegmentationPolygon
		s.Polygons = rings
		return nil
	case trimmed[0] == '{':
		var obj rleJSON
		if err := json.Unmarshal(trimmed, &obj); err != nil || len(obj.Size) != 2 || len(obj.Counts) == 0 {
			s.setUnknown(trimmed)
			return nil
		}
		r := RLE{Size: [2]int{obj.Size[0], obj.Size[1]}}
		counts := bytes.TrimSpace(obj.Counts)
		switch counts[0] {
		case '"':
			if err := json.Unmarshal(counts, &r.CountsString); err != nil {
				s.setUnknown(trimmed)
				return nil
			}
		case '[':
			if err := json.Unmarshal(counts, &r.Counts); err != nil {
				s.setUnknown(trimmed)
				return nil
			}
			if r.Counts == nil {
				r.Counts = []uint32{}
			}
		default:
			s.setUnknown(trimmed)
			return nil
		}
		s.Kind = SegmentationRLE
		s.RLE = &r
		return nil
	default:
		s.setUnknown(trimmed)
		return nil
	}
}

func (s *Segmentation) setUnknown(data []byte) {
	s.Kind = SegmentationUnknown
	s.raw = append(json.RawMessage(nil), data...)
}

func (s Segmentation) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SegmentationNone:
		return []byte("[]"), nil
	case SegmentationPolygon:
		return json.Marshal(s.Polygons)
	case SegmentationRLE:
		if s.RLE == nil {
			return nil, errors.New("rle segmentation without mask")
		}
		obj := struct {
			Size   []int `json:"size"`
			Counts any   `json:"counts"`
		}{Size: []int{s.RLE.Size[0], s.RLE.Size[1]}}
		if s.RLE.Compressed() {
			obj.Counts = s.RLE.CountsString
		} else {
			counts := s.RLE.Counts
			if counts == nil {
				counts = []uint32{}
			}
			obj.Counts = counts
		}
		return json.Marshal(obj)
	default:
		if len(s.raw) == 0 {
			return []byte("null"), nil
		}
		return s.raw, nil
	}
}

// Validate checks the structure of the segmentation without decoding it.
func (s *Segmentation) Validate() error {
	if s == nil {
		return &DecodeError{Reason: "missing segmentation"}
	}
	switch s.Kind {
	case SegmentationNone:
		return &DecodeError{Reason: "empty segmentation"}
	case SegmentationPolygon:
		if len(s.Polygons) == 0 {
			return &DecodeError{Reason: "polygon without rings"}
		}
		for i, ring := range s.Polygons {
			if err := validateRing(ring); err != nil {
				return &DecodeError{Reason: fmt.Sprintf("polygon ring %d", i), Err: err}
			}
		}
		return nil
	case SegmentationRLE:
		r := s.RLE
		if r == nil {
			return &DecodeError{Reason: "rle without mask"}
		}
		if r.Height() <= 0 || r.Width() <= 0 {
			return &DecodeError{Reason: fmt.Sprintf("rle size must be positive, got [%d %d]", r.Height(), r.Width())}
		}
		if r.Compressed() && len(r.Counts) > 0 {
			return &DecodeError{Reason: "rle carries both compressed and uncompressed counts"}
		}
		if !r.Compressed() && len(r.Counts) == 0 {
			return &DecodeError{Reason: "rle has no counts"}
		}
		return nil
	default:
		return &DecodeError{Reason: "neither a polygon nor an rle mask"}
	}
}

func validateRing(ring []float64) error {
	if len(ring) < 6 {
		return fmt.Errorf("want at least 3 vertices, got %d values", len(ring))
	}
	if len(ring)%2 != 0 {
		return fmt.Errorf("odd number of coordinates (%d)", len(ring))
	}
	for _, v := range ring {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite coordinate %v", v)
		}
	}
	return nil
}
