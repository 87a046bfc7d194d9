package coco

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Load reads an annotation document from path.
func Load(path string) (*Store, error) {
	f, err := os.Open(path) //nolint:gosec // G304: annotation path is supplied by the caller
	if err != nil {
		return nil, fmt.Errorf("open annotations: %w", err)
	}
	defer func() { _ = f.Close() }()

	store, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read annotations %s: %w", path, err)
	}
	return store, nil
}

// Read decodes an annotation document.
func Read(r io.Reader) (*Store, error) {
	var store Store
	dec := json.NewDecoder(r)
	if err := dec.Decode(&store); err != nil {
		return nil, err
	}
	return &store, nil
}

// Save writes the store to path, creating parent directories as needed.
func Save(path string, store *Store, indent bool) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path) //nolint:gosec // G304: output path is supplied by the caller
	if err != nil {
		return fmt.Errorf("create annotations file: %w", err)
	}
	if err := Write(f, store, indent); err != nil {
		_ = f.Close()
		return fmt.Errorf("write annotations %s: %w", path, err)
	}
	return f.Close()
}

// Write encodes the store as JSON.
func Write(w io.Writer, store *Store, indent bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(store)
}

// Index provides lookups over a store. It must be rebuilt if the store's
// image or annotation slices are reassigned.
type Index struct {
	store    *Store
	images   map[int64]int
	byImage  map[int64][]int
	category map[int64]int
}

// NewIndex builds lookup tables for store. When image ids repeat, the first
// record wins.
func NewIndex(store *Store) *Index {
	idx := &Index{
		store:    store,
		images:   make(map[int64]int, len(store.Images)),
		byImage:  make(map[int64][]int),
		category: make(map[int64]int, len(store.Categories)),
	}
	for i, img := range store.Images {
		if _, ok := idx.images[img.ID]; !ok {
			idx.images[img.ID] = i
		}
	}
	for i, c := range store.Categories {
		if _, ok := idx.category[c.ID]; !ok {
			idx.category[c.ID] = i
		}
	}
	for i, a := range store.Annotations {
		idx.byImage[a.ImageID] = append(idx.byImage[a.ImageID], i)
	}
	return idx
}

// Image returns the record for id or a *LookupError.
func (idx *Index) Image(id int64) (*Image, error) {
	i, ok := idx.images[id]
	if !ok {
		return nil, &LookupError{ImageID: id}
	}
	return &idx.store.Images[i], nil
}

// HasImage reports whether id names an image record.
func (idx *Index) HasImage(id int64) bool {
	_, ok := idx.images[id]
	return ok
}

// HasCategory reports whether id names a category record.
func (idx *Index) HasCategory(id int64) bool {
	_, ok := idx.category[id]
	return ok
}

// Annotations returns copies of the annotations of one image in input order.
func (idx *Index) Annotations(imageID int64) []Annotation {
	positions := idx.byImage[imageID]
	out := make([]Annotation, len(positions))
	for i, p := range positions {
		out[i] = idx.store.Annotations[p]
	}
	return out
}
