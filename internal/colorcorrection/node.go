// Package colorcorrection implements the per-clip color-correction stack:
// CDL-style color timers, lift/gamma/gain grades, shape regions and the
// ordering, muting and locking rules that apply to them.
package colorcorrection

import (
	"fmt"

	"github.com/rpa-review/sessioncore/internal/value"
)

// Vec3 is an RGB triple.
type Vec3 [3]float64

func (v Vec3) slice() []float64 { return []float64{v[0], v[1], v[2]} }

func vec3From(name string, v []float64) (Vec3, error) {
	switch len(v) {
	case 1:
		return Vec3{v[0], v[0], v[0]}, nil
	case 3:
		return Vec3{v[0], v[1], v[2]}, nil
	}
	return Vec3{}, fmt.Errorf("%w: %s expects 1 or 3 values, got %d", value.ErrInvalidArgument, name, len(v))
}

// Node class tags, also stored in state records.
const (
	ClassColorTimer = "ColorTimer"
	ClassGrade      = "Grade"
)

// Node is one operator of a color correction: a *ColorTimer or a *Grade.
type Node interface {
	Class() string
	// TypeTag is the shader-side discriminator.
	TypeTag() float32
	IsModified() bool
	Muted() bool
	SetMute(bool)
	// Values returns every field keyed by name.
	Values() map[string][]float64
	// SetValue assigns one field by name.
	SetValue(name string, v []float64) error
	// Pack returns the node's shader fields in declaration order with the
	// type tag first and mute last.
	Pack() []float32
	Clone() Node
}

// NewNode returns a default node of the given class.
func NewNode(class string) (Node, error) {
	switch class {
	case ClassColorTimer:
		return NewColorTimer(), nil
	case ClassGrade:
		return NewGrade(), nil
	}
	return nil, fmt.Errorf("%w: unknown node class %q", value.ErrInvalidArgument, class)
}

func packMute(muted bool) float32 {
	if muted {
		return 0
	}
	return 1
}

func appendVec(out []float32, vs ...Vec3) []float32 {
	for _, v := range vs {
		out = append(out, float32(v[0]), float32(v[1]), float32(v[2]))
	}
	return out
}

// ColorTimer is an ASC CDL operator.
type ColorTimer struct {
	Slope      Vec3
	Offset     Vec3
	Power      Vec3
	Saturation float64
	Mute       bool
}

// NewColorTimer returns an identity color timer.
func NewColorTimer() *ColorTimer {
	return &ColorTimer{
		Slope:      Vec3{1, 1, 1},
		Power:      Vec3{1, 1, 1},
		Saturation: 1,
	}
}

// Class returns ClassColorTimer.
func (c *ColorTimer) Class() string { return ClassColorTimer }

// TypeTag is 0 for color timers.
func (c *ColorTimer) TypeTag() float32 { return 0 }

// Muted reports whether the timer is bypassed.
func (c *ColorTimer) Muted() bool { return c.Mute }

// SetMute bypasses or restores the timer.
func (c *ColorTimer) SetMute(m bool) { c.Mute = m }

// IsModified reports whether any field is off identity. Mute is ignored.
func (c *ColorTimer) IsModified() bool {
	return *c != ColorTimer{Slope: Vec3{1, 1, 1}, Power: Vec3{1, 1, 1}, Saturation: 1, Mute: c.Mute}
}

// Values returns slope, offset, power and saturation.
func (c *ColorTimer) Values() map[string][]float64 {
	return map[string][]float64{
		"slope":      c.Slope.slice(),
		"offset":     c.Offset.slice(),
		"power":      c.Power.slice(),
		"saturation": {c.Saturation},
	}
}

// SetValue assigns slope, offset or power from one or three values, or
// saturation or mute from one.
func (c *ColorTimer) SetValue(name string, v []float64) error {
	var err error
	switch name {
	case "slope":
		c.Slope, err = vec3From(name, v)
	case "offset":
		c.Offset, err = vec3From(name, v)
	case "power":
		c.Power, err = vec3From(name, v)
	case "saturation":
		if len(v) != 1 {
			return fmt.Errorf("%w: saturation expects 1 value", value.ErrInvalidArgument)
		}
		c.Saturation = v[0]
	case "mute":
		if len(v) != 1 {
			return fmt.Errorf("%w: mute expects 1 value", value.ErrInvalidArgument)
		}
		c.Mute = v[0] != 0
	default:
		return fmt.Errorf("%w: color timer has no field %q", value.ErrInvalidArgument, name)
	}
	return err
}

// Pack lays out the type tag, slope, offset, power, saturation and mute.
func (c *ColorTimer) Pack() []float32 {
	out := make([]float32, 0, 12)
	out = append(out, c.TypeTag())
	out = appendVec(out, c.Slope, c.Offset, c.Power)
	return append(out, float32(c.Saturation), packMute(c.Mute))
}

// Clone returns a copy.
func (c *ColorTimer) Clone() Node {
	n := *c
	return &n
}

// Grade is a lift/gamma/gain operator with black and white points.
type Grade struct {
	Blackpoint Vec3
	Whitepoint Vec3
	Lift       Vec3
	Gain       Vec3
	Multiply   Vec3
	Gamma      Vec3
	Mute       bool
}

// NewGrade returns an identity grade.
func NewGrade() *Grade {
	return &Grade{
		Whitepoint: Vec3{1, 1, 1},
		Gain:       Vec3{1, 1, 1},
		Multiply:   Vec3{1, 1, 1},
		Gamma:      Vec3{1, 1, 1},
	}
}

// Class returns ClassGrade.
func (g *Grade) Class() string { return ClassGrade }

// TypeTag is 1 for grades.
func (g *Grade) TypeTag() float32 { return 1 }

// Muted reports whether the grade is bypassed.
func (g *Grade) Muted() bool { return g.Mute }

// SetMute bypasses or restores the grade.
func (g *Grade) SetMute(m bool) { g.Mute = m }

// IsModified reports whether any field is off identity. Mute is ignored.
func (g *Grade) IsModified() bool {
	d := NewGrade()
	d.Mute = g.Mute
	return *g != *d
}

// Values returns the six vector fields by name.
func (g *Grade) Values() map[string][]float64 {
	return map[string][]float64{
		"blackpoint": g.Blackpoint.slice(),
		"whitepoint": g.Whitepoint.slice(),
		"lift":       g.Lift.slice(),
		"gain":       g.Gain.slice(),
		"multiply":   g.Multiply.slice(),
		"gamma":      g.Gamma.slice(),
	}
}

// SetValue assigns a vector field from one or three values, or mute from one.
func (g *Grade) SetValue(name string, v []float64) error {
	var err error
	switch name {
	case "blackpoint":
		g.Blackpoint, err = vec3From(name, v)
	case "whitepoint":
		g.Whitepoint, err = vec3From(name, v)
	case "lift":
		g.Lift, err = vec3From(name, v)
	case "gain":
		g.Gain, err = vec3From(name, v)
	case "multiply":
		g.Multiply, err = vec3From(name, v)
	case "gamma":
		g.Gamma, err = vec3From(name, v)
	case "mute":
		if len(v) != 1 {
			return fmt.Errorf("%w: mute expects 1 value", value.ErrInvalidArgument)
		}
		g.Mute = v[0] != 0
	default:
		return fmt.Errorf("%w: grade has no field %q", value.ErrInvalidArgument, name)
	}
	return err
}

// Pack lays out the type tag, the six vectors in declaration order and mute.
func (g *Grade) Pack() []float32 {
	out := make([]float32, 0, 20)
	out = append(out, g.TypeTag())
	out = appendVec(out, g.Blackpoint, g.Whitepoint, g.Lift, g.Gain, g.Multiply, g.Gamma)
	return append(out, packMute(g.Mute))
}

// Clone returns a copy.
func (g *Grade) Clone() Node {
	n := *g
	return &n
}
