// Package coco models COCO-style annotation stores: images, per-object
// annotations with polymorphic segmentations, and categories.
package coco

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Store is an in-memory annotation document. Keys other than images,
// annotations and categories are kept in Extra and written back unchanged.
type Store struct {
	Images      []Image      `json:"images"`
	Annotations []Annotation `json:"annotations"`
	Categories  []Category   `json:"categories"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Image describes one raster referenced by annotations.
type Image struct {
	ID       int64  `json:"id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileName string `json:"file_name"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Category is passed through unchanged.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Annotation is one object instance within one image.
type Annotation struct {
	ID           int64         `json:"id"`
	ImageID      int64         `json:"image_id"`
	CategoryID   int64         `json:"category_id"`
	BBox         *BBox         `json:"bbox,omitempty"`
	Segmentation *Segmentation `json:"segmentation,omitempty"`
	Area         float64       `json:"area"`
	IsCrowd      int           `json:"iscrowd"`

	Extra map[string]json.RawMessage `json:"-"`
}

// BBox is an axis-aligned box (x, y, width, height) with a top-left origin.
// It is serialized as a four element array.
type BBox struct {
	X, Y, W, H float64
}

// Polygon returns the four corners as a flat ring in the order
// top-left, top-right, bottom-right, bottom-left.
func (b BBox) Polygon() []float64 {
	return []float64{
		b.X, b.Y,
		b.X + b.W, b.Y,
		b.X + b.W, b.Y + b.H,
		b.X, b.Y + b.H,
	}
}

// Area returns w*h.
func (b BBox) Area() float64 { return b.W * b.H }

func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.X, b.Y, b.W, b.H})
}

func (b *BBox) UnmarshalJSON(data []byte) error {
	var vals []float64
	if err := json.Unmarshal(data, &vals); err != nil {
		return fmt.Errorf("bbox: %w", err)
	}
	if len(vals) != 4 {
		return fmt.Errorf("bbox: want 4 values, got %d", len(vals))
	}
	*b = BBox{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}
	return nil
}

// BBoxFromPolygon returns the bounding extent of a flat ring.
func BBoxFromPolygon(ring []float64) BBox {
	if len(ring) < 2 {
		return BBox{}
	}
	minX, minY := ring[0], ring[1]
	maxX, maxY := minX, minY
	for i := 2; i+1 < len(ring); i += 2 {
		minX = math.Min(minX, ring[i])
		maxX = math.Max(maxX, ring[i])
		minY = math.Min(minY, ring[i+1])
		maxY = math.Max(maxY, ring[i+1])
	}
	return BBox{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// PolygonArea computes the absolute shoelace area of a flat ring.
func PolygonArea(ring []float64) float64 {
	n := len(ring) / 2
	if n < 3 {
		return 0
	}
	var sum float64
	for i := range n {
		j := (i + 1) % n
		sum += ring[2*i]*ring[2*j+1] - ring[2*j]*ring[2*i+1]
	}
	return math.Abs(sum) / 2
}

var (
	storeKeys      = []string{"images", "annotations", "categories"}
	imageKeys      = []string{"id", "width", "height", "file_name"}
	categoryKeys   = []string{"id", "name"}
	annotationKeys = []string{"id", "image_id", "category_id", "bbox", "segmentation", "area", "iscrowd"}
)

func (s *Store) UnmarshalJSON(data []byte) error {
	type plain Store
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := splitExtra(data, storeKeys)
	if err != nil {
		return err
	}
	*s = Store(p)
	s.Extra = extra
	return nil
}

func (s Store) MarshalJSON() ([]byte, error) {
	type plain Store
	p := plain(s)
	if p.Images == nil {
		p.Images = []Image{}
	}
	if p.Annotations == nil {
		p.Annotations = []Annotation{}
	}
	if p.Categories == nil {
		p.Categories = []Category{}
	}
	return mergeExtra(p, s.Extra)
}

func (i *Image) UnmarshalJSON(data []byte) error {
	type plain Image
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := splitExtra(data, imageKeys)
	if err != nil {
		return err
	}
	*i = Image(p)
	i.Extra = extra
	return nil
}

func (i Image) MarshalJSON() ([]byte, error) {
	type plain Image
	return mergeExtra(plain(i), i.Extra)
}

func (c *Category) UnmarshalJSON(data []byte) error {
	type plain Category
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := splitExtra(data, categoryKeys)
	if err != nil {
		return err
	}
	*c = Category(p)
	c.Extra = extra
	return nil
}

func (c Category) MarshalJSON() ([]byte, error) {
	type plain Category
	return mergeExtra(plain(c), c.Extra)
}

func (a *Annotation) UnmarshalJSON(data []byte) error {
	type plain Annotation
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := splitExtra(data, annotationKeys)
	if err != nil {
		return err
	}
	*a = Annotation(p)
	a.Extra = extra
	return nil
}

func (a Annotation) MarshalJSON() ([]byte, error) {
	type plain Annotation
	return mergeExtra(plain(a), a.Extra)
}

// splitExtra returns the members of a JSON object not listed in known.
func splitExtra(data []byte, known []string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// mergeExtra marshals v and adds the extra members that v does not define.
func mergeExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return base, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(base, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("extra members on a non-object value")
	}
	for k, raw := range extra {
		if _, ok := obj[k]; !ok {
			obj[k] = raw
		}
	}
	return json.Marshal(obj)
}
