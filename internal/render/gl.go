// Package render drives the GL side of a review frame: region masks and
// their falloff blur, the color-correction storage buffer, HTML overlays,
// laser pointers, brush previews and cursors.
//
// Everything goes through the GL interface so the bridge can run against the
// host's context or a recording fake.
package render

import (
	"github.com/rpa-review/sessioncore/internal/value"
)

// Primitive is a GL draw mode.
type Primitive int

const (
	Triangles Primitive = iota
	TriangleFan
	Lines
	LineStrip
	LineLoop
)

func (p Primitive) String() string {
	switch p {
	case Triangles:
		return "TRIANGLES"
	case TriangleFan:
		return "TRIANGLE_FAN"
	case Lines:
		return "LINES"
	case LineStrip:
		return "LINE_STRIP"
	case LineLoop:
		return "LINE_LOOP"
	}
	return "UNKNOWN"
}

// TextureFormat selects the internal format of a texture.
type TextureFormat int

const (
	// RGBA32F is the float format used for masks.
	RGBA32F TextureFormat = iota
	// Depth24Stencil8 backs the stencil used to fill regions.
	Depth24Stencil8
	// BGRA8 holds uploaded images.
	BGRA8
)

// CompareFunc is a stencil test.
type CompareFunc int

const (
	Always CompareFunc = iota
	Equal
)

// StencilOp is applied when a fragment passes the stencil test.
type StencilOp int

const (
	StencilKeep StencilOp = iota
	StencilInvert
)

// Blend is a blending setup.
type Blend int

const (
	BlendNone Blend = iota
	// BlendAlpha is SRC_ALPHA, ONE_MINUS_SRC_ALPHA.
	BlendAlpha
	// BlendAdditive is SRC_ALPHA, ONE.
	BlendAdditive
	// BlendOver is ONE, ONE_MINUS_SRC_ALPHA.
	BlendOver
)

// BufferUsage is a buffer data usage hint.
type BufferUsage int

const (
	StaticDraw BufferUsage = iota
	DynamicDraw
)

// StippleEraser is the dash pattern of an eraser outline.
const StippleEraser uint16 = 0xAAAA

// Vertex is a colored 2D position. Coordinates are in the space of the bound
// target: viewport pixels for the default framebuffer, normalized image
// coordinates for mask framebuffers.
type Vertex struct {
	X, Y  float64
	Color value.Color
}

// GL is the subset of the GL API the bridge uses.
type GL interface {
	NewTexture(format TextureFormat, width, height int, pixels []byte) uint32
	DeleteTexture(id uint32)
	NewFramebuffer(color, depthStencil uint32) uint32
	DeleteFramebuffer(id uint32)
	// BindFramebuffer binds a framebuffer; 0 is the host's.
	BindFramebuffer(id uint32)
	Viewport(x, y, width, height int)
	Clear(c value.Color, stencil bool)

	EnableStencil(on bool)
	StencilFunc(fn CompareFunc, ref int, mask uint32)
	StencilOp(op StencilOp)
	ColorMask(on bool)

	CompileProgram(vertex, fragment string) (uint32, error)
	DeleteProgram(id uint32)
	UseProgram(id uint32)
	Uniform(program uint32, name string, v ...float32)
	BindTextureUnit(unit int, texture uint32)

	NewBuffer(data []byte, usage BufferUsage) uint32
	BindBufferBase(binding int, buffer uint32)
	DeleteBuffer(id uint32)

	SetBlend(b Blend)
	LineWidth(w float32)
	// LineStipple enables a dash pattern; pattern 0 disables stippling.
	LineStipple(factor int, pattern uint16)
	Draw(mode Primitive, verts []Vertex)
	// DrawTextured draws texture over quad, given BL, BR, TR, TL.
	DrawTextured(texture uint32, quad [4]value.Point)
}

func solid(c value.Color, points ...value.Point) []Vertex {
	out := make([]Vertex, len(points))
	for i, p := range points {
		out[i] = Vertex{X: p.X, Y: p.Y, Color: c}
	}
	return out
}
