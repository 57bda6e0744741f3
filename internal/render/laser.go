package render

import (
	"math"

	"github.com/rpa-review/sessioncore/internal/annotation"
	"github.com/rpa-review/sessioncore/internal/geo"
	"github.com/rpa-review/sessioncore/internal/session"
	"github.com/rpa-review/sessioncore/internal/value"
)

const (
	circleSegments = 32
	crossHairArm   = 10
	caretWidth     = 3
	caretScale     = 5
	diffuseAlpha   = 0.15
	innerScale     = 0.35
	flairScale     = 1.6
	flairWaist     = 0.2
)

var innerDark = value.Color{R: 0.05, G: 0.05, B: 0.05, A: 0.9}

func circle(cx, cy, r float64) []value.Point {
	out := make([]value.Point, circleSegments)
	for i := range out {
		a := 2 * math.Pi * float64(i) / circleSegments
		out[i] = value.Point{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)}
	}
	return out
}

func fan(cx, cy, r float64) []value.Point {
	return append([]value.Point{{X: cx, Y: cy}}, append(circle(cx, cy, r), value.Point{X: cx + r, Y: cy})...)
}

// flair is an eight-point star around the center.
func flair(cx, cy, r float64) []value.Point {
	w := r * flairWaist
	pts := []value.Point{{X: cx, Y: cy}}
	for i := 0; i <= 8; i++ {
		a := math.Pi / 4 * float64(i)
		d := r
		if i%2 == 1 {
			d = w
		}
		pts = append(pts, value.Point{X: cx + d*math.Cos(a), Y: cy + d*math.Sin(a)})
	}
	return pts
}

func toScreen(q geo.Quad, p value.Point) value.Point {
	x, y := geo.ItviewToScreen(q, p.X, p.Y)
	return value.Point{X: x, Y: y}
}

// drawLaser draws the fading trail then the pointer itself.
func drawLaser(gl GL, q geo.Quad, l *session.Laser) {
	radius := geo.ItviewLengthToScreen(q, l.Radius)
	if n := len(l.Trail); n > 1 {
		verts := make([]Vertex, n)
		for i, s := range l.Trail {
			p := toScreen(q, s.Point)
			c := l.Color
			c.A = 1 - float64(n-1-i)/float64(n)
			verts[i] = Vertex{X: p.X, Y: p.Y, Color: c}
		}
		gl.SetBlend(BlendAdditive)
		gl.LineWidth(float32(2 * radius))
		gl.Draw(LineStrip, verts)
	}

	c := toScreen(q, l.Point)
	outer := l.Color
	outer.A = diffuseAlpha
	gl.SetBlend(BlendAlpha)
	gl.Draw(TriangleFan, solid(outer, fan(c.X, c.Y, radius)...))
	gl.Draw(TriangleFan, solid(l.Color, flair(c.X, c.Y, radius*flairScale)...))
	gl.SetBlend(BlendOver)
	gl.Draw(TriangleFan, solid(innerDark, fan(c.X, c.Y, radius*innerScale)...))
	gl.SetBlend(BlendNone)
	gl.LineWidth(1)
}

// drawPenPreview outlines the brush; erasers get a dashed outline.
func drawPenPreview(gl GL, q geo.Quad, pen *session.PenPreview) {
	c := toScreen(q, pen.Point)
	r := geo.ItviewLengthToScreen(q, pen.Width)
	if pen.Mode == annotation.ModeEraser {
		gl.LineStipple(1, StippleEraser)
	}
	gl.SetBlend(BlendAlpha)
	gl.Draw(LineLoop, solid(pen.Color, circle(c.X, c.Y, r)...))
	if pen.Mode == annotation.ModeEraser {
		gl.LineStipple(1, 0)
	}
	gl.SetBlend(BlendNone)
}

func drawCrossHair(gl GL, q geo.Quad, p value.Point) {
	c := toScreen(q, p)
	gl.Draw(Lines, solid(value.White,
		value.Point{X: c.X - crossHairArm, Y: c.Y}, value.Point{X: c.X + crossHairArm, Y: c.Y},
		value.Point{X: c.X, Y: c.Y - crossHairArm}, value.Point{X: c.X, Y: c.Y + crossHairArm},
	))
}

func drawTextCursor(gl GL, q geo.Quad, tc *session.TextCursor) {
	c := toScreen(q, tc.Position)
	gl.LineWidth(caretWidth)
	gl.Draw(Lines, solid(value.White, c, value.Point{X: c.X, Y: c.Y + tc.Size*caretScale}))
	gl.LineWidth(1)
}
