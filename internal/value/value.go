// Package value holds the small value types shared by every part of the review
// state: colors, normalized points and their range validation.
package value

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidArgument is returned when a numeric value is outside its documented range.
var ErrInvalidArgument = errors.New("invalid argument")

var validate = validator.New()

// Color is an RGBA color with every channel in [0,1].
type Color struct {
	R float64 `json:"r" validate:"gte=0,lte=1"`
	G float64 `json:"g" validate:"gte=0,lte=1"`
	B float64 `json:"b" validate:"gte=0,lte=1"`
	A float64 `json:"a" validate:"gte=0,lte=1"`
}

// NewColor builds a Color and validates its channels.
func NewColor(r, g, b, a float64) (Color, error) {
	c := Color{R: r, G: g, B: b, A: a}
	if err := c.Validate(); err != nil {
		return Color{}, err
	}
	return c, nil
}

// Validate reports ErrInvalidArgument when any channel is outside [0,1] or NaN.
func (c Color) Validate() error {
	for _, v := range []float64{c.R, c.G, c.B, c.A} {
		if math.IsNaN(v) {
			return fmt.Errorf("%w: color channel is NaN", ErrInvalidArgument)
		}
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: color %v: %v", ErrInvalidArgument, c, err)
	}
	return nil
}

// Slice returns the channels as a flat slice in RGBA order.
func (c Color) Slice() []float64 {
	return []float64{c.R, c.G, c.B, c.A}
}

// ColorFromSlice reads up to four channels; missing alpha defaults to 1.
func ColorFromSlice(v []float64) Color {
	c := Color{A: 1}
	if len(v) > 0 {
		c.R = v[0]
	}
	if len(v) > 1 {
		c.G = v[1]
	}
	if len(v) > 2 {
		c.B = v[2]
	}
	if len(v) > 3 {
		c.A = v[3]
	}
	return c
}

var (
	White = Color{R: 1, G: 1, B: 1, A: 1}
	Black = Color{A: 1}
	Gray  = Color{R: 0.5, G: 0.5, B: 0.5, A: 1}
)

// Point is a position normalized to clip image space, 0..1 on both axes.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Equal compares two points within tolerance.
func (p Point) Equal(o Point, tol float64) bool {
	return math.Abs(p.X-o.X) <= tol && math.Abs(p.Y-o.Y) <= tol
}

// RangeInt validates that v lies in [lo, hi].
func RangeInt(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s=%d outside [%d,%d]", ErrInvalidArgument, name, v, lo, hi)
	}
	return nil
}

// RangeFloat validates that v lies in [lo, hi].
func RangeFloat(name string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return fmt.Errorf("%w: %s=%v outside [%v,%v]", ErrInvalidArgument, name, v, lo, hi)
	}
	return nil
}
