// Package interp expands sparse keyframe tables into dense per-frame values.
//
// Interior values come from a degree-1 B-spline, which is piecewise linear
// between consecutive keys. Outside the keyed range values clamp to the first
// or last key. Rotation tables are unwrapped to the shortest arc before
// interpolation and folded back into [0,360) afterwards.
package interp

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rpa-review/sessioncore/internal/value"
)

// ErrInvalidKeyTable is returned when keys and values disagree in length.
var ErrInvalidKeyTable = errors.New("invalid key table")

// MaxDegree is the highest spline degree supported.
const MaxDegree = 1

// Interpolator evaluates a keyed scalar table.
type Interpolator struct {
	xs       []float64
	ys       []float64
	fallback float64
	degree   int
	rotation bool
}

// New builds a scalar interpolator. fallback is returned when the table is empty.
// degree is reduced to min(MaxDegree, len(xs)-1).
func New(xs, ys []float64, degree int, fallback float64) (*Interpolator, error) {
	return build(xs, ys, degree, fallback, false)
}

// NewRotation builds an interpolator for angles in degrees. The caller's
// values are unwrapped into a copy and never modified.
func NewRotation(xs, ys []float64, degree int, fallback float64) (*Interpolator, error) {
	return build(xs, ys, degree, fallback, true)
}

func build(xs, ys []float64, degree int, fallback float64, rotation bool) (*Interpolator, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("%w: %d keys, %d values", ErrInvalidKeyTable, len(xs), len(ys))
	}
	for i := range xs {
		if !finite(xs[i]) || !finite(ys[i]) {
			return nil, fmt.Errorf("%w: key %v has value %v", value.ErrInvalidArgument, xs[i], ys[i])
		}
	}

	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	sx := make([]float64, len(xs))
	sy := make([]float64, len(ys))
	for i, j := range idx {
		sx[i] = xs[j]
		sy[i] = ys[j]
	}

	if rotation {
		unwrap(sy)
	}

	d := degree
	if d > MaxDegree {
		d = MaxDegree
	}
	if n := len(sx) - 1; d > n {
		d = n
	}
	if d < 0 {
		d = 0
	}

	return &Interpolator{
		xs:       sx,
		ys:       sy,
		fallback: fallback,
		degree:   d,
		rotation: rotation,
	}, nil
}

// unwrap shifts each value by whole turns so it lies within 180 degrees of its predecessor.
func unwrap(ys []float64) {
	for i := 1; i < len(ys); i++ {
		ys[i] = ys[i-1] + math.Remainder(ys[i]-ys[i-1], 360)
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Degree returns the effective spline degree.
func (in *Interpolator) Degree() int {
	return in.degree
}

// Len returns the number of keys.
func (in *Interpolator) Len() int {
	return len(in.xs)
}

// Get evaluates the table at x.
func (in *Interpolator) Get(x float64) float64 {
	v := in.eval(x)
	if in.rotation && len(in.xs) > 0 {
		v = math.Mod(v, 360)
		if v < 0 {
			v += 360
		}
	}
	return v
}

func (in *Interpolator) eval(x float64) float64 {
	n := len(in.xs)
	switch {
	case n == 0:
		return in.fallback
	case n == 1:
		return in.ys[0]
	case x <= in.xs[0]:
		return in.ys[0]
	case x >= in.xs[n-1]:
		return in.ys[n-1]
	}

	// first key strictly greater than x
	i := sort.SearchFloat64s(in.xs, x)
	if i < n && in.xs[i] == x {
		return in.ys[i]
	}
	x0, x1 := in.xs[i-1], in.xs[i]
	y0, y1 := in.ys[i-1], in.ys[i]
	if x1 == x0 {
		return y1
	}
	t := (x - x0) / (x1 - x0)
	return y0 + t*(y1-y0)
}

// FrameValues rebuilds the dense table for integer frame keys, covering
// min(keys)..max(keys) inclusive. An empty key table yields an empty result.
func FrameValues(keys map[int]float64, rotation bool) (map[int]float64, error) {
	out := make(map[int]float64)
	if len(keys) == 0 {
		return out, nil
	}

	frames := make([]int, 0, len(keys))
	for f := range keys {
		frames = append(frames, f)
	}
	sort.Ints(frames)

	xs := make([]float64, len(frames))
	ys := make([]float64, len(frames))
	for i, f := range frames {
		xs[i] = float64(f)
		ys[i] = keys[f]
	}

	var (
		in  *Interpolator
		err error
	)
	if rotation {
		in, err = NewRotation(xs, ys, MaxDegree, 0)
	} else {
		in, err = New(xs, ys, MaxDegree, 0)
	}
	if err != nil {
		return nil, err
	}

	for f := frames[0]; f <= frames[len(frames)-1]; f++ {
		out[f] = in.Get(float64(f))
	}
	return out, nil
}
