package render

import (
	"math"

	"github.com/rpa-review/sessioncore/internal/colorcorrection"
	"github.com/rpa-review/sessioncore/internal/value"
)

// Blur radius bounds, in pixels.
const (
	MinBlurRadius = 2
	MaxBlurRadius = 256
)

const blurVertex = `#version 430
layout(location = 0) in vec2 aPos;
out vec2 vUV;
void main() {
	vUV = aPos;
	gl_Position = vec4(aPos * 2.0 - 1.0, 0.0, 1.0);
}
`

const blurFragment = `#version 430
in vec2 vUV;
out vec4 fragColor;
uniform sampler2D uMask;
uniform vec2 uDirection;
uniform vec2 uTexel;
uniform float uDiameter;
void main() {
	float radius = clamp(uDiameter / 2.0, 2.0, 256.0);
	int r = int(radius);
	vec4 sum = vec4(0.0);
	for (int i = -r; i <= r; i++) {
		float w = smoothstep(0.0, 1.0, 1.0 - abs(float(i)) / radius);
		sum += w * texture(uMask, vUV + float(i) * uDirection * uTexel);
	}
	fragColor = sum / radius;
}
`

// fullImage is the image quad in normalized coordinates.
var fullImage = []value.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}

// sentinel covers past the image bounds so blurring keeps the edges solid.
var sentinel = []value.Point{{X: -1, Y: -1}, {X: 2, Y: -1}, {X: 2, Y: 2}, {X: -1, Y: 2}}

// BlurRadius returns the blur radius for a falloff in pixels.
func BlurRadius(falloff float64) float64 {
	return math.Min(math.Max(falloff/2, MinBlurRadius), MaxBlurRadius)
}

// BlurWeights returns the tap weights the blur shader uses for falloff,
// from -radius to +radius, each already divided by the radius.
func BlurWeights(falloff float64) []float64 {
	radius := BlurRadius(falloff)
	r := int(radius)
	out := make([]float64, 0, 2*r+1)
	for i := -r; i <= r; i++ {
		out = append(out, smoothstep(1-math.Abs(float64(i))/radius)/radius)
	}
	return out
}

func smoothstep(x float64) float64 {
	x = math.Min(math.Max(x, 0), 1)
	return x * x * (3 - 2*x)
}

// mask is one region mask with its framebuffer and blur scratch target.
type mask struct {
	ccID         string
	texture      uint32
	scratch      uint32
	fbo          uint32
	scratchFBO   uint32
	depthStencil uint32
	unit         int
}

func (m *mask) release(gl GL) {
	gl.DeleteFramebuffer(m.fbo)
	gl.DeleteFramebuffer(m.scratchFBO)
	gl.DeleteTexture(m.texture)
	gl.DeleteTexture(m.scratch)
}

// rasterize fills the region into the bound framebuffer by inverting one
// stencil bit per polygon and painting where the bit is set, which gives an
// odd-winding fill with holes.
func rasterize(gl GL, region *colorcorrection.Region) {
	white := value.White
	gl.Clear(value.Color{}, true)
	if region == nil || len(region.Shapes) == 0 {
		gl.Draw(TriangleFan, solid(white, sentinel...))
		return
	}
	gl.EnableStencil(true)
	gl.ColorMask(false)
	gl.StencilFunc(Always, 0, 1)
	gl.StencilOp(StencilInvert)
	for _, shape := range region.Shapes {
		if len(shape.Points) < 3 {
			continue
		}
		gl.Draw(TriangleFan, solid(white, shape.Points...))
	}
	gl.ColorMask(true)
	gl.StencilFunc(Equal, 1, 1)
	gl.StencilOp(StencilKeep)
	gl.Draw(TriangleFan, solid(white, fullImage...))
	gl.EnableStencil(false)
}

// blur runs the vertical then horizontal pass, leaving the result in
// m.texture.
func blur(gl GL, program uint32, m *mask, falloff float64, width, height int) {
	passes := []struct {
		src, dst uint32
		dir      [2]float32
	}{
		{m.texture, m.scratchFBO, [2]float32{0, 1}},
		{m.scratch, m.fbo, [2]float32{1, 0}},
	}
	gl.UseProgram(program)
	gl.Uniform(program, "uDiameter", float32(falloff))
	gl.Uniform(program, "uTexel", 1/float32(width), 1/float32(height))
	for _, p := range passes {
		gl.BindFramebuffer(p.dst)
		gl.BindTextureUnit(0, p.src)
		gl.Uniform(program, "uMask", 0)
		gl.Uniform(program, "uDirection", p.dir[0], p.dir[1])
		gl.Draw(TriangleFan, solid(value.White, fullImage...))
	}
	gl.UseProgram(0)
}
