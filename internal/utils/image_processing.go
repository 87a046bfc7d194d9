package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ToNRGBA returns a copy of img as a zero-origin NRGBA image. Grayscale and
// paletted inputs are promoted to three colour channels; the input is never
// modified.
func ToNRGBA(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// ParseHexColor parses "#RRGGBB", "RRGGBB", "#RGB" or "#RRGGBBAA" into an
// opaque (unless alpha is given) NRGBA colour.
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 && len(hex) != 8 {
		return color.NRGBA{}, &ImageProcessingError{
			Operation: "parse color",
			Err:       fmt.Errorf("invalid hex colour %q", s),
		}
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, &ImageProcessingError{
			Operation: "parse color",
			Err:       errors.Join(fmt.Errorf("invalid hex colour %q", s), err),
		}
	}
	if len(hex) == 6 {
		v = v<<8 | 0xff
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// FormatHexColor is the inverse of ParseHexColor for opaque colours.
func FormatHexColor(c color.NRGBA) string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
}
