// Package geo converts between the coordinate spaces the review core deals
// with: host (rv) space, normalized clip image space (itview), source pixel
// space and viewport screen pixels. It also answers geometric questions about
// region shapes.
package geo

import (
	"errors"
	"math"

	"github.com/rpa-review/sessioncore/internal/value"
)

// ErrDegenerateQuad is returned when an image-geometry quad has no area.
var ErrDegenerateQuad = errors.New("degenerate image geometry")

// RVToItview maps host image space, centered and height-normalized, to
// normalized image space for an image of w by h pixels.
func RVToItview(w, h, x, y float64) (float64, float64) {
	return x*h/w + 0.5, y + 0.5
}

// ItviewToRV is the inverse of RVToItview.
func ItviewToRV(w, h, x, y float64) (float64, float64) {
	return (x - 0.5) * w / h, y - 0.5
}

// TranslateItviewToRV converts a pixel translation to host units.
func TranslateItviewToRV(v, h float64) float64 {
	return v / h
}

// Quad is the on-screen geometry of the current clip image in viewport
// pixels, corner by corner.
type Quad struct {
	BL, BR, TR, TL value.Point
}

// QuadFromCorners reads the host's corner list, bottom-left first and
// counter-clockwise.
func QuadFromCorners(c [4]value.Point) Quad {
	return Quad{BL: c[0], BR: c[1], TR: c[2], TL: c[3]}
}

// IsZero reports whether the quad was never set.
func (q Quad) IsZero() bool {
	return q == Quad{}
}

// Equal compares quads within tol, used to dedupe geometry updates.
func (q Quad) Equal(o Quad, tol float64) bool {
	return q.BL.Equal(o.BL, tol) && q.BR.Equal(o.BR, tol) && q.TR.Equal(o.TR, tol) && q.TL.Equal(o.TL, tol)
}

// ItviewToScreen maps a normalized image point onto the quad, treating it as
// the parallelogram spanned from the bottom-left corner.
func ItviewToScreen(q Quad, x, y float64) (float64, float64) {
	ux, uy := q.BR.X-q.BL.X, q.BR.Y-q.BL.Y
	vx, vy := q.TL.X-q.BL.X, q.TL.Y-q.BL.Y
	return q.BL.X + x*ux + y*vx, q.BL.Y + x*uy + y*vy
}

// ScreenToItview inverts ItviewToScreen.
func ScreenToItview(q Quad, x, y float64) (float64, float64, error) {
	ux, uy := q.BR.X-q.BL.X, q.BR.Y-q.BL.Y
	vx, vy := q.TL.X-q.BL.X, q.TL.Y-q.BL.Y
	det := ux*vy - uy*vx
	if math.Abs(det) < 1e-12 {
		return 0, 0, ErrDegenerateQuad
	}
	dx, dy := x-q.BL.X, y-q.BL.Y
	return (dx*vy - dy*vx) / det, (ux*dy - uy*dx) / det, nil
}

// ItviewLengthToScreen scales a length in image heights to screen pixels.
func ItviewLengthToScreen(q Quad, v float64) float64 {
	return v * math.Hypot(q.TL.X-q.BL.X, q.TL.Y-q.BL.Y)
}

// ScreenToViewport normalizes a screen point by the viewport size.
func ScreenToViewport(vw, vh, x, y float64) (float64, float64) {
	if vw == 0 || vh == 0 {
		return 0, 0
	}
	return x / vw, y / vh
}
