package hostsync

import (
	"strconv"
	"strings"

	"github.com/rpa-review/sessioncore/internal/annotation"
	"github.com/rpa-review/sessioncore/internal/attr"
	"github.com/rpa-review/sessioncore/internal/geo"
	"github.com/rpa-review/sessioncore/internal/session"
	"github.com/rpa-review/sessioncore/internal/value"
	"github.com/rpa-review/sessioncore/pkg/hostinterface"
)

// PaintNode returns the paint node of a clip's source group, or "".
func PaintNode(c *session.Clip) string {
	if sg := SourceGroup(c); sg != "" {
		return sg + "_paint"
	}
	return ""
}

// HostFrame converts a source frame to the 1-based frame the paint node uses.
func HostFrame(c *session.Clip, frame int) int {
	return frame - c.Int(attr.MediaStartFrame) + 1
}

func orderName(paint string, hostFrame int) string {
	return hostinterface.PropertyName(paint, "frame:"+strconv.Itoa(hostFrame), "order")
}

// imageSize returns the clip's pixel size, falling back to a square unit
// image when the media size is unknown.
func imageSize(c *session.Clip) (float64, float64) {
	w, h := c.Float(attr.Width), c.Float(attr.Height)
	if w <= 0 || h <= 0 {
		return 1, 1
	}
	return w, h
}

func (s *Syncer) order(paint string, hostFrame int) []string {
	name := orderName(paint, hostFrame)
	if !s.host.PropertyExists(name) {
		return nil
	}
	names, err := s.host.StringProperty(name)
	if s.suppress("StringProperty", err, "property", name) {
		return nil
	}
	return names
}

func (s *Syncer) setOrder(paint string, hostFrame int, names []string) {
	name := orderName(paint, hostFrame)
	if names == nil {
		names = []string{}
	}
	s.set(name, names)
}

// nextDrawID bumps paint.nextId and returns the id to use.
func (s *Syncer) nextDrawID(paint string) int {
	name := hostinterface.PropertyName(paint, "paint", "nextId")
	id := 0
	if s.host.PropertyExists(name) {
		v, err := hostinterface.IntValue(s.host, name)
		if !s.suppress("IntProperty", err, "property", name) {
			id = v
		}
	}
	s.set(name, id+1)
	return id
}

func (s *Syncer) deleteDrawing(paint, draw string) {
	prefix := paint + "." + draw + "."
	for _, p := range s.host.Properties(paint) {
		if strings.HasPrefix(p, prefix) {
			s.suppress("DeleteProperty", hostinterface.DeleteProperty(s.host, p), "property", p)
		}
	}
}

// WriteAnnotations replaces the committed drawings on the clip's paint node
// for frame with what the ledger shows there, honoring the feedback toggles.
// Transient strokes are left in place.
func (s *Syncer) WriteAnnotations(c *session.Clip, frame int, fb session.Feedback) {
	paint := PaintNode(c)
	if paint == "" || !s.host.NodeExists(paint) {
		return
	}
	hf := HostFrame(c, frame)
	var keep []string
	for _, name := range s.order(paint, hf) {
		if annotation.IsTransient(name) {
			keep = append(keep, name)
			continue
		}
		s.deleteDrawing(paint, name)
	}

	w, h := imageSize(c)
	var written []string
	for _, a := range c.Annotations.Shown(frame) {
		for _, d := range a.Drawings {
			switch x := d.(type) {
			case *annotation.Stroke:
				if !fb.All || !fb.Strokes {
					continue
				}
				name := annotation.DrawName(annotation.PenPrefix, s.nextDrawID(paint), hf, a.Creator)
				s.writeStroke(paint, name, x, w, h)
				written = append(written, name)
			case *annotation.Text:
				if !fb.All || !fb.Texts {
					continue
				}
				name := annotation.DrawName(annotation.TextPrefix, s.nextDrawID(paint), hf, a.Creator)
				s.writeText(paint, name, x, w, h)
				written = append(written, name)
			}
		}
	}
	s.setOrder(paint, hf, append(written, keep...))
	s.set(hostinterface.PropertyName(paint, "paint", "show"), 1)
}

func rvPoints(points []value.Point, w, h float64) []float64 {
	out := make([]float64, 0, 2*len(points))
	for _, p := range points {
		x, y := geo.ItviewToRV(w, h, p.X, p.Y)
		out = append(out, x, y)
	}
	return out
}

func (s *Syncer) writeStroke(paint, name string, st *annotation.Stroke, w, h float64) {
	s.setN(hostinterface.PropertyName(paint, name, "points"), rvPoints(st.Points, w, h), 2)
	s.set(hostinterface.PropertyName(paint, name, "width"), st.Width)
	s.setN(hostinterface.PropertyName(paint, name, "color"), st.Color.Slice(), 4)
	s.set(hostinterface.PropertyName(paint, name, "brush"), string(st.Brush))
	s.set(hostinterface.PropertyName(paint, name, "mode"), int(st.Mode))
}

func (s *Syncer) writeText(paint, name string, t *annotation.Text, w, h float64) {
	s.set(hostinterface.PropertyName(paint, name, "text"), t.Text)
	s.setN(hostinterface.PropertyName(paint, name, "color"), t.Color.Slice(), 4)
	s.setN(hostinterface.PropertyName(paint, name, "position"), rvPoints([]value.Point{t.Position}, w, h), 2)
	s.set(hostinterface.PropertyName(paint, name, "size"), t.Size)
}

func (s *Syncer) transientName(paint string, hf int, token string) string {
	marker := annotation.TransientMarker(token)
	for _, name := range s.order(paint, hf) {
		if strings.HasSuffix(name, marker) {
			return name
		}
	}
	return ""
}

// AppendTransientPoint extends the live stroke bound to token with the last
// point of st. With isLine the stroke keeps only its first point and the new
// one. The stroke's width, color, brush and mode are written on creation.
func (s *Syncer) AppendTransientPoint(c *session.Clip, frame int, token string, st *annotation.Stroke, isLine bool) bool {
	paint := PaintNode(c)
	if paint == "" || len(st.Points) == 0 || !s.host.NodeExists(paint) {
		return false
	}
	hf := HostFrame(c, frame)
	w, h := imageSize(c)
	point := rvPoints(st.Points[len(st.Points)-1:], w, h)

	name := s.transientName(paint, hf, token)
	if name == "" {
		name = annotation.TransientName(s.nextDrawID(paint), hf, token)
		s.suppress("InsertStringProperty",
			hostinterface.AppendProperty(s.host, orderName(paint, hf), name, 1), "draw", name)
		first := *st
		first.Points = nil
		s.writeStroke(paint, name, &first, w, h)
	}

	points := hostinterface.PropertyName(paint, name, "points")
	if isLine && s.host.PropertyExists(points) {
		cur, err := s.host.FloatProperty(points)
		if s.suppress("FloatProperty", err, "property", points) {
			return false
		}
		if len(cur) >= 2 {
			s.setN(points, append(cur[:2:2], point...), 2)
			s.set(hostinterface.PropertyName(paint, "paint", "show"), 1)
			return true
		}
	}
	err := hostinterface.AppendProperty(s.host, points, point, 2)
	if s.suppress("InsertFloatProperty", err, "property", points) {
		return false
	}
	s.set(hostinterface.PropertyName(paint, "paint", "show"), 1)
	return true
}

// TransientStroke reads the live stroke bound to token back in normalized
// image space. It returns nil when there is none.
func (s *Syncer) TransientStroke(c *session.Clip, frame int, token string) *annotation.Stroke {
	paint := PaintNode(c)
	if paint == "" {
		return nil
	}
	name := s.transientName(paint, HostFrame(c, frame), token)
	if name == "" {
		return nil
	}
	w, h := imageSize(c)
	st := &annotation.Stroke{Brush: annotation.BrushCircle, Color: value.White}

	if flat, err := s.host.FloatProperty(hostinterface.PropertyName(paint, name, "points")); err == nil {
		for _, xy := range hostinterface.Reshape(flat, 2) {
			x, y := geo.RVToItview(w, h, xy[0], xy[1])
			st.Points = append(st.Points, value.Point{X: x, Y: y})
		}
	}
	if v, err := s.host.FloatProperty(hostinterface.PropertyName(paint, name, "width")); err == nil && len(v) > 0 {
		st.Width = v[0]
	}
	if v, err := s.host.FloatProperty(hostinterface.PropertyName(paint, name, "color")); err == nil {
		st.Color = value.ColorFromSlice(v)
	}
	if v, err := hostinterface.StringValue(s.host, hostinterface.PropertyName(paint, name, "brush")); err == nil {
		if b, err := annotation.ParseBrush(v); err == nil {
			st.Brush = b
		}
	}
	if v, err := hostinterface.IntValue(s.host, hostinterface.PropertyName(paint, name, "mode")); err == nil {
		st.Mode = annotation.Mode(v)
	}
	return st
}

// DeleteTransientPoints removes every live stroke bound to token on frame.
func (s *Syncer) DeleteTransientPoints(c *session.Clip, frame int, token string) bool {
	paint := PaintNode(c)
	if paint == "" || !s.host.NodeExists(paint) {
		return false
	}
	hf := HostFrame(c, frame)
	marker := annotation.TransientMarker(token)
	removed := false
	var keep []string
	for _, name := range s.order(paint, hf) {
		if strings.Contains(name, marker) {
			removed = true
			continue
		}
		keep = append(keep, name)
	}
	for _, p := range s.host.Properties(paint) {
		if strings.Contains(p, marker) {
			s.suppress("DeleteProperty", hostinterface.DeleteProperty(s.host, p), "property", p)
			removed = true
		}
	}
	if removed {
		s.setOrder(paint, hf, keep)
	}
	return removed
}
