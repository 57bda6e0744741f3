package render

import (
	"errors"
	"sync"

	"github.com/rpa-review/sessioncore/internal/value"
)

// Call is one recorded GL call.
type Call struct {
	Name string
	Args []any
}

// RecordingGL is a GL that records every call and tracks live objects.
// It backs headless runs and tests.
type RecordingGL struct {
	mu sync.Mutex

	Calls []Call
	// FailCompile makes CompileProgram return an error.
	FailCompile bool

	next         uint32
	textures     map[uint32]TextureFormat
	framebuffers map[uint32]bool
	buffers      map[uint32][]byte
	programs     map[uint32]bool
	units        map[int]uint32
	bindings     map[int]uint32
}

// NewRecordingGL returns an empty recorder.
func NewRecordingGL() *RecordingGL {
	return &RecordingGL{
		textures:     make(map[uint32]TextureFormat),
		framebuffers: make(map[uint32]bool),
		buffers:      make(map[uint32][]byte),
		programs:     make(map[uint32]bool),
		units:        make(map[int]uint32),
		bindings:     make(map[int]uint32),
	}
}

func (g *RecordingGL) record(name string, args ...any) {
	g.Calls = append(g.Calls, Call{Name: name, Args: args})
}

func (g *RecordingGL) id() uint32 {
	g.next++
	return g.next
}

// Live reports how many objects of each kind are allocated.
type Live struct {
	Textures, Framebuffers, Buffers, Programs int
}

// Live returns the live object counts.
func (g *RecordingGL) Live() Live {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Live{
		Textures:     len(g.textures),
		Framebuffers: len(g.framebuffers),
		Buffers:      len(g.buffers),
		Programs:     len(g.programs),
	}
}

// Count returns how many times a call was made.
func (g *RecordingGL) Count(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.Calls {
		if c.Name == name {
			n++
		}
	}
	return n
}

// Find returns the recorded calls with the given name.
func (g *RecordingGL) Find(name string) []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Call
	for _, c := range g.Calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets the recorded calls but keeps live objects.
func (g *RecordingGL) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls = nil
}

// BoundBuffer returns the contents of the buffer bound at binding.
func (g *RecordingGL) BoundBuffer(binding int) ([]byte, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	data, ok := g.buffers[g.bindings[binding]]
	return data, ok
}

// TextureAt returns the texture bound to unit.
func (g *RecordingGL) TextureAt(unit int) uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.units[unit]
}

func (g *RecordingGL) NewTexture(format TextureFormat, width, height int, pixels []byte) uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.id()
	g.textures[id] = format
	g.record("NewTexture", id, format, width, height, len(pixels))
	return id
}

func (g *RecordingGL) DeleteTexture(id uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.textures, id)
	g.record("DeleteTexture", id)
}

func (g *RecordingGL) NewFramebuffer(color, depthStencil uint32) uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.id()
	g.framebuffers[id] = true
	g.record("NewFramebuffer", id, color, depthStencil)
	return id
}

func (g *RecordingGL) DeleteFramebuffer(id uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.framebuffers, id)
	g.record("DeleteFramebuffer", id)
}

func (g *RecordingGL) BindFramebuffer(id uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("BindFramebuffer", id)
}

func (g *RecordingGL) Viewport(x, y, width, height int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("Viewport", x, y, width, height)
}

func (g *RecordingGL) Clear(c value.Color, stencil bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("Clear", c, stencil)
}

func (g *RecordingGL) EnableStencil(on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("EnableStencil", on)
}

func (g *RecordingGL) StencilFunc(fn CompareFunc, ref int, mask uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("StencilFunc", fn, ref, mask)
}

func (g *RecordingGL) StencilOp(op StencilOp) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("StencilOp", op)
}

func (g *RecordingGL) ColorMask(on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("ColorMask", on)
}

func (g *RecordingGL) CompileProgram(vertex, fragment string) (uint32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.FailCompile {
		g.record("CompileProgram", uint32(0))
		return 0, errors.New("compile failed")
	}
	if vertex == "" || fragment == "" {
		return 0, errors.New("empty shader source")
	}
	id := g.id()
	g.programs[id] = true
	g.record("CompileProgram", id)
	return id, nil
}

func (g *RecordingGL) DeleteProgram(id uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.programs, id)
	g.record("DeleteProgram", id)
}

func (g *RecordingGL) UseProgram(id uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("UseProgram", id)
}

func (g *RecordingGL) Uniform(program uint32, name string, v ...float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("Uniform", program, name, append([]float32(nil), v...))
}

func (g *RecordingGL) BindTextureUnit(unit int, texture uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.units[unit] = texture
	g.record("BindTextureUnit", unit, texture)
}

func (g *RecordingGL) NewBuffer(data []byte, usage BufferUsage) uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.id()
	g.buffers[id] = append([]byte(nil), data...)
	g.record("NewBuffer", id, len(data), usage)
	return id
}

func (g *RecordingGL) BindBufferBase(binding int, buffer uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bindings[binding] = buffer
	g.record("BindBufferBase", binding, buffer)
}

func (g *RecordingGL) DeleteBuffer(id uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.buffers, id)
	for b, buf := range g.bindings {
		if buf == id {
			delete(g.bindings, b)
		}
	}
	g.record("DeleteBuffer", id)
}

func (g *RecordingGL) SetBlend(b Blend) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("SetBlend", b)
}

func (g *RecordingGL) LineWidth(w float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("LineWidth", w)
}

func (g *RecordingGL) LineStipple(factor int, pattern uint16) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("LineStipple", factor, pattern)
}

func (g *RecordingGL) Draw(mode Primitive, verts []Vertex) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("Draw", mode, append([]Vertex(nil), verts...))
}

func (g *RecordingGL) DrawTextured(texture uint32, quad [4]value.Point) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("DrawTextured", texture, quad)
}
