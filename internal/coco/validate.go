package coco

import (
	"fmt"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding of Validate.
type Issue struct {
	Severity     Severity `json:"severity"`
	ImageID      int64    `json:"image_id,omitempty"`
	AnnotationID int64    `json:"annotation_id,omitempty"`
	Message      string   `json:"message"`
}

func (i Issue) String() string {
	switch {
	case i.AnnotationID != 0:
		return fmt.Sprintf("%s: annotation %d: %s", i.Severity, i.AnnotationID, i.Message)
	case i.ImageID != 0:
		return fmt.Sprintf("%s: image %d: %s", i.Severity, i.ImageID, i.Message)
	default:
		return fmt.Sprintf("%s: %s", i.Severity, i.Message)
	}
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks the store against the annotation invariants: unique ids,
// resolvable references and geometry inside the referenced image. It reports
// problems and never modifies the store.
func Validate(store *Store) []Issue {
	var issues []Issue
	add := func(sev Severity, imageID, annID int64, format string, args ...any) {
		issues = append(issues, Issue{
			Severity:     sev,
			ImageID:      imageID,
			AnnotationID: annID,
			Message:      fmt.Sprintf(format, args...),
		})
	}

	seenImages := make(map[int64]bool, len(store.Images))
	for _, img := range store.Images {
		if seenImages[img.ID] {
			add(SeverityError, img.ID, 0, "duplicate image id")
		}
		seenImages[img.ID] = true
		if img.Width <= 0 || img.Height <= 0 {
			add(SeverityError, img.ID, 0, "non-positive size %dx%d", img.Width, img.Height)
		}
	}

	seenCategories := make(map[int64]bool, len(store.Categories))
	for _, c := range store.Categories {
		if seenCategories[c.ID] {
			add(SeverityError, 0, 0, "duplicate category id %d", c.ID)
		}
		seenCategories[c.ID] = true
	}

	idx := NewIndex(store)
	seenAnnotations := make(map[int64]bool, len(store.Annotations))
	for _, a := range store.Annotations {
		if seenAnnotations[a.ID] {
			add(SeverityWarning, a.ImageID, a.ID, "duplicate annotation id")
		}
		seenAnnotations[a.ID] = true

		if !idx.HasCategory(a.CategoryID) && len(store.Categories) > 0 {
			add(SeverityWarning, a.ImageID, a.ID, "unknown category %d", a.CategoryID)
		}
		if a.Area < 0 {
			add(SeverityError, a.ImageID, a.ID, "negative area %g", a.Area)
		}

		img, err := idx.Image(a.ImageID)
		if err != nil {
			add(SeverityWarning, a.ImageID, a.ID, "%v", err)
		}
		issues = append(issues, checkBBox(a, img)...)
		issues = append(issues, checkSegmentation(a, img)...)
	}

	return issues
}

func checkBBox(a Annotation, img *Image) []Issue {
	if a.BBox == nil {
		return []Issue{{Severity: SeverityWarning, ImageID: a.ImageID, AnnotationID: a.ID, Message: "missing bbox"}}
	}
	b := *a.BBox
	if b.W < 0 || b.H < 0 {
		return []Issue{{
			Severity: SeverityError, ImageID: a.ImageID, AnnotationID: a.ID,
			Message: fmt.Sprintf("bbox has negative size %gx%g", b.W, b.H),
		}}
	}
	if img == nil {
		return nil
	}
	if b.X < 0 || b.Y < 0 || b.X+b.W > float64(img.Width) || b.Y+b.H > float64(img.Height) {
		return []Issue{{
			Severity: SeverityError, ImageID: a.ImageID, AnnotationID: a.ID,
			Message: fmt.Sprintf("bbox [%g %g %g %g] exceeds image %dx%d", b.X, b.Y, b.W, b.H, img.Width, img.Height),
		}}
	}
	return nil
}

func checkSegmentation(a Annotation, img *Image) []Issue {
	if a.Segmentation == nil || a.Segmentation.Kind == SegmentationNone {
		return nil
	}
	issue := func(msg string) []Issue {
		return []Issue{{Severity: SeverityError, ImageID: a.ImageID, AnnotationID: a.ID, Message: msg}}
	}
	if err := a.Segmentation.Validate(); err != nil {
		return issue(err.Error())
	}
	if img == nil {
		return nil
	}

	switch a.Segmentation.Kind {
	case SegmentationPolygon:
		w, h := float64(img.Width), float64(img.Height)
		for ri, ring := range a.Segmentation.Polygons {
			for i := 0; i+1 < len(ring); i += 2 {
				x, y := ring[i], ring[i+1]
				if x < 0 || y < 0 || x > w || y > h {
					return issue(fmt.Sprintf("polygon ring %d vertex (%g,%g) outside image %dx%d", ri, x, y, img.Width, img.Height))
				}
			}
		}
	case SegmentationRLE:
		r := a.Segmentation.RLE
		if r.Width() != img.Width || r.Height() != img.Height {
			err := &DimensionMismatchError{
				Operation: "rle size", WantWidth: img.Width, WantHeight: img.Height,
				GotWidth: r.Width(), GotHeight: r.Height(),
			}
			return issue(err.Error())
		}
	}
	return nil
}
