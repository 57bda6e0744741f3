package colorcorrection

import (
	"github.com/rpa-review/sessioncore/internal/geo"
	"github.com/rpa-review/sessioncore/internal/value"
)

// Shape is one closed polygon of a region in normalized image coordinates.
type Shape struct {
	Points []value.Point
}

// Region masks a color correction. Falloff is the blur width in pixels.
// A region without shapes covers the whole image.
type Region struct {
	Falloff float64
	Shapes  []Shape
}

// IsModified reports whether the region differs from an empty one.
func (r *Region) IsModified() bool {
	return r != nil && (len(r.Shapes) > 0 || r.Falloff != 0)
}

// Contains reports whether the region masks in the normalized image point p.
// Overlapping shapes cancel out in pairs, and a region without shapes covers
// the whole image.
func (r *Region) Contains(p value.Point) bool {
	if r == nil {
		return true
	}
	shapes := make([][]value.Point, len(r.Shapes))
	for i, s := range r.Shapes {
		shapes[i] = s.Points
	}
	return geo.RegionContains(shapes, p)
}

func (r *Region) clone() *Region {
	if r == nil {
		return nil
	}
	c := &Region{Falloff: r.Falloff, Shapes: make([]Shape, len(r.Shapes))}
	for i, s := range r.Shapes {
		c.Shapes[i] = Shape{Points: append([]value.Point(nil), s.Points...)}
	}
	return c
}

// ColorCorrection is a named, ordered list of nodes with an optional region.
type ColorCorrection struct {
	ID       string
	Name     string
	Nodes    []Node
	Region   *Region
	Mute     bool
	ReadOnly bool
}

// NewColorCorrection returns an empty correction. An empty id is filled in
// by the stack on append.
func NewColorCorrection(id, name string, nodes ...Node) *ColorCorrection {
	return &ColorCorrection{ID: id, Name: name, Nodes: nodes}
}

// IsModified reports whether any node is off its defaults or the region is set.
func (c *ColorCorrection) IsModified() bool {
	if c.Region.IsModified() {
		return true
	}
	for _, n := range c.Nodes {
		if n.IsModified() {
			return true
		}
	}
	return false
}

// IsRegion reports whether the correction is masked.
func (c *ColorCorrection) IsRegion() bool {
	return c.Region != nil
}

// SetMute mutes the correction and every node in it.
func (c *ColorCorrection) SetMute(m bool) {
	c.Mute = m
	for _, n := range c.Nodes {
		n.SetMute(m)
	}
}

// Clone deep-copies the correction.
func (c *ColorCorrection) Clone() *ColorCorrection {
	out := &ColorCorrection{
		ID:       c.ID,
		Name:     c.Name,
		Region:   c.Region.clone(),
		Mute:     c.Mute,
		ReadOnly: c.ReadOnly,
		Nodes:    make([]Node, len(c.Nodes)),
	}
	for i, n := range c.Nodes {
		out.Nodes[i] = n.Clone()
	}
	return out
}

// Pack returns the shader fields of the correction: the region flag, the
// node count, then every node.
func (c *ColorCorrection) Pack() []float32 {
	isRegion := float32(0)
	if c.IsRegion() {
		isRegion = 1
	}
	out := []float32{isRegion, float32(len(c.Nodes))}
	for _, n := range c.Nodes {
		out = append(out, n.Pack()...)
	}
	return out
}
