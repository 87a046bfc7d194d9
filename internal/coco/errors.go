package coco

import (
	"errors"
	"fmt"
)

// InvalidAnnotationError reports an annotation record that is malformed upstream,
// for example a bounding box with a negative width or height.
type InvalidAnnotationError struct {
	Index        int
	AnnotationID int64
	Reason       string
}

func (e *InvalidAnnotationError) Error() string {
	return fmt.Sprintf("invalid annotation %d (index %d): %s", e.AnnotationID, e.Index, e.Reason)
}

// DecodeError reports a segmentation that is neither a well-formed polygon
// nor a well-formed run-length mask.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("segmentation decode error: %s: %v", e.Reason, e.Err)
	}
	return "segmentation decode error: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DimensionMismatchError reports a mask or image whose shape disagrees with the target.
type DimensionMismatchError struct {
	Operation  string
	WantWidth  int
	WantHeight int
	GotWidth   int
	GotHeight  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch in %s: want %dx%d, got %dx%d",
		e.Operation, e.WantWidth, e.WantHeight, e.GotWidth, e.GotHeight)
}

// LookupError reports an image_id without a matching image record.
type LookupError struct {
	ImageID int64
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("image %d not found in annotation store", e.ImageID)
}

// IsLookup reports whether err is or wraps a *LookupError.
func IsLookup(err error) bool {
	var le *LookupError
	return errors.As(err, &le)
}
