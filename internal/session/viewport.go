package session

import (
	"fmt"
	"sort"
	"time"

	"github.com/rpa-review/sessioncore/internal/annotation"
	"github.com/rpa-review/sessioncore/internal/geo"
	"github.com/rpa-review/sessioncore/internal/value"
)

// BgMode is how the background playlist is composited with the foreground.
type BgMode int

const (
	BgNone BgMode = iota
	BgWipe
	BgSideBySide
	BgTopBottom
	BgPIP
)

var bgModeNames = []string{"NONE", "WIPE", "SIDE_BY_SIDE", "TOP_BOTTOM", "PIP"}

func (m BgMode) String() string {
	if int(m) < len(bgModeNames) && m >= 0 {
		return bgModeNames[m]
	}
	return "UNKNOWN"
}

// ParseBgMode converts a mode name.
func ParseBgMode(s string) (BgMode, error) {
	for i, n := range bgModeNames {
		if n == s {
			return BgMode(i), nil
		}
	}
	return BgNone, fmt.Errorf("%w: background mode %q", value.ErrInvalidArgument, s)
}

// Channel selects which color channel the viewport shows.
type Channel int

const (
	ChannelRGB Channel = iota
	ChannelRed
	ChannelGreen
	ChannelBlue
	ChannelAlpha
	ChannelLuminance
)

// Feedback toggles which review layers are drawn.
type Feedback struct {
	Strokes   bool
	Texts     bool
	ClipCCs   bool
	FrameCCs  bool
	RegionCCs bool
	All       bool
}

// DefaultFeedback shows everything.
func DefaultFeedback() Feedback {
	return Feedback{Strokes: true, Texts: true, ClipCCs: true, FrameCCs: true, RegionCCs: true, All: true}
}

// TextCursor is the caret shown while typing a text annotation.
type TextCursor struct {
	Position value.Point
	Size     float64
}

// Overlay is an HTML snippet drawn over the viewport. X and Y are the
// viewport-normalized center; Width and Height are pixels.
type Overlay struct {
	ID        string
	HTML      string
	X, Y      float64
	Width     float64
	Height    float64
	BgOpacity float64
	Visible   bool
	// Revision increases on every content change so textures can be refreshed.
	Revision int
}

// Hovered reports whether a viewport-normalized point lies inside the overlay.
func (o *Overlay) Hovered(p value.Point, viewW, viewH float64) bool {
	if viewW == 0 || viewH == 0 {
		return false
	}
	hw := o.Width / viewW / 2
	hh := o.Height / viewH / 2
	return p.X >= o.X-hw && p.X <= o.X+hw && p.Y >= o.Y-hh && p.Y <= o.Y+hh
}

// LaserSample is one position of a laser pointer.
type LaserSample struct {
	Point value.Point
	At    time.Time
}

// Laser is a live pointer with its fading trail.
type Laser struct {
	ID     string
	Point  value.Point
	Color  value.Color
	Radius float64
	At     time.Time
	Trail  []LaserSample
}

// PenPreview outlines the brush around the cursor.
type PenPreview struct {
	Point value.Point
	Width float64
	Color value.Color
	Mode  annotation.Mode
}

// Message is a transient on-screen notice.
type Message struct {
	Text    string
	Expires time.Time
}

// Viewport is the viewport sub-state of a session.
type Viewport struct {
	FgID          string
	BgID          string
	CurrentClipID string
	BgMode        BgMode
	Feedback      Feedback
	Channel       Channel
	Exposure      float64
	Gamma         float64
	TextCursor    *TextCursor
	CrossHair     *value.Point
	// Geometry is the cached on-screen quad of the current clip image.
	Geometry   geo.Quad
	PenPreview *PenPreview
	Message    *Message

	overlays     map[string]*Overlay
	overlayOrder []string
	lasers       map[string]*Laser
}

func newViewport() *Viewport {
	return &Viewport{
		Feedback: DefaultFeedback(),
		Gamma:    1,
		overlays: make(map[string]*Overlay),
		lasers:   make(map[string]*Laser),
	}
}

// SetOverlay adds or replaces an overlay.
func (v *Viewport) SetOverlay(o *Overlay) {
	if old, ok := v.overlays[o.ID]; ok {
		o.Revision = old.Revision + 1
	} else {
		v.overlayOrder = append(v.overlayOrder, o.ID)
	}
	v.overlays[o.ID] = o
}

// Overlay returns an overlay by id.
func (v *Viewport) Overlay(id string) *Overlay {
	return v.overlays[id]
}

// Overlays returns the overlays in creation order.
func (v *Viewport) Overlays() []*Overlay {
	out := make([]*Overlay, 0, len(v.overlayOrder))
	for _, id := range v.overlayOrder {
		out = append(out, v.overlays[id])
	}
	return out
}

// DeleteOverlays removes overlays by id, or all of them when ids is empty.
func (v *Viewport) DeleteOverlays(ids []string) []string {
	if len(ids) == 0 {
		ids = append([]string(nil), v.overlayOrder...)
	}
	var out []string
	for _, id := range ids {
		if _, ok := v.overlays[id]; !ok {
			continue
		}
		delete(v.overlays, id)
		out = append(out, id)
	}
	order := v.overlayOrder[:0]
	for _, id := range v.overlayOrder {
		if _, ok := v.overlays[id]; ok {
			order = append(order, id)
		}
	}
	v.overlayOrder = order
	return out
}

// SetLaser moves pointer id and appends a trail sample.
func (v *Viewport) SetLaser(id string, p value.Point, c value.Color, radius float64, at time.Time) *Laser {
	l, ok := v.lasers[id]
	if !ok {
		l = &Laser{ID: id}
		v.lasers[id] = l
	}
	l.Point, l.Color, l.Radius, l.At = p, c, radius, at
	l.Trail = append(l.Trail, LaserSample{Point: p, At: at})
	return l
}

// Lasers returns the live pointers sorted by id.
func (v *Viewport) Lasers() []*Laser {
	out := make([]*Laser, 0, len(v.lasers))
	for _, l := range v.lasers {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ExpireLasers drops pointers last moved more than pointDelay before now and
// trail samples older than trailDelay, keeping at most maxTrail samples.
func (v *Viewport) ExpireLasers(now time.Time, pointDelay, trailDelay time.Duration, maxTrail int) {
	for id, l := range v.lasers {
		if now.Sub(l.At) > pointDelay {
			delete(v.lasers, id)
			continue
		}
		trail := l.Trail[:0]
		for _, s := range l.Trail {
			if now.Sub(s.At) <= trailDelay {
				trail = append(trail, s)
			}
		}
		if len(trail) > maxTrail {
			trail = trail[len(trail)-maxTrail:]
		}
		l.Trail = trail
	}
}

// ActiveMessage returns the message text while it has not expired.
func (v *Viewport) ActiveMessage(now time.Time) (string, bool) {
	if v.Message == nil {
		return "", false
	}
	if !now.Before(v.Message.Expires) {
		v.Message = nil
		return "", false
	}
	return v.Message.Text, true
}
