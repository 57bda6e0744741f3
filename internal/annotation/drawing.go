// Package annotation holds per-clip drawings: the read-only layers, the single
// read-write layer with its undo/redo/clear history, and the host names used
// for committed and transient strokes.
package annotation

import (
	"fmt"
	"time"

	"github.com/rpa-review/sessioncore/internal/value"
)

// Mode says whether a stroke paints or erases.
type Mode int

const (
	ModePen Mode = iota
	ModeEraser
)

func (m Mode) String() string {
	if m == ModeEraser {
		return "eraser"
	}
	return "pen"
}

// Brush is the stroke tip shape.
type Brush string

const (
	BrushCircle Brush = "circle"
	BrushGauss  Brush = "gauss"
)

// ParseBrush converts a host brush name.
func ParseBrush(s string) (Brush, error) {
	switch Brush(s) {
	case BrushCircle, BrushGauss:
		return Brush(s), nil
	}
	return "", fmt.Errorf("%w: unknown brush %q", value.ErrInvalidArgument, s)
}

// Drawing is one element of an annotation: a *Stroke or a *Text.
type Drawing interface {
	Kind() string
	Clone() Drawing
}

// Drawing kinds, also used as the class tag in state records.
const (
	KindStroke = "Stroke"
	KindText   = "Text"
)

// Stroke is a freehand line through normalized points.
type Stroke struct {
	Mode   Mode
	Brush  Brush
	Width  float64
	Color  value.Color
	Points []value.Point
}

// Kind implements Drawing.
func (s *Stroke) Kind() string { return KindStroke }

// Clone implements Drawing.
func (s *Stroke) Clone() Drawing {
	c := *s
	c.Points = append([]value.Point(nil), s.Points...)
	return &c
}

// Validate checks the color and width of the stroke.
func (s *Stroke) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil stroke", value.ErrInvalidArgument)
	}
	if err := s.Color.Validate(); err != nil {
		return err
	}
	if s.Width < 0 {
		return fmt.Errorf("%w: negative stroke width %v", value.ErrInvalidArgument, s.Width)
	}
	if s.Mode != ModePen && s.Mode != ModeEraser {
		return fmt.Errorf("%w: stroke mode %d", value.ErrInvalidArgument, s.Mode)
	}
	return nil
}

// Text is a label anchored at a normalized position.
type Text struct {
	Text     string
	Position value.Point
	Color    value.Color
	Size     float64
}

// Kind implements Drawing.
func (t *Text) Kind() string { return KindText }

// Clone implements Drawing.
func (t *Text) Clone() Drawing {
	c := *t
	return &c
}

// Validate checks the color and size of the text.
func (t *Text) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil text", value.ErrInvalidArgument)
	}
	if err := t.Color.Validate(); err != nil {
		return err
	}
	if t.Size <= 0 {
		return fmt.Errorf("%w: text size %v", value.ErrInvalidArgument, t.Size)
	}
	return nil
}

// Annotation is an ordered list of drawings by one creator on one frame.
type Annotation struct {
	Drawings  []Drawing
	Creator   string
	Timestamp time.Time
	Visible   bool

	// read-write edit history
	cleared []Drawing
	redo    []Drawing
}

// New returns a visible, empty annotation.
func New(creator string, ts time.Time) *Annotation {
	return &Annotation{Creator: creator, Timestamp: ts, Visible: true}
}

// Clone deep-copies the annotation including its edit history.
func (a *Annotation) Clone() *Annotation {
	c := &Annotation{
		Creator:   a.Creator,
		Timestamp: a.Timestamp,
		Visible:   a.Visible,
		Drawings:  cloneAll(a.Drawings),
		cleared:   cloneAll(a.cleared),
		redo:      cloneAll(a.redo),
	}
	return c
}

func cloneAll(ds []Drawing) []Drawing {
	if ds == nil {
		return nil
	}
	out := make([]Drawing, len(ds))
	for i, d := range ds {
		out[i] = d.Clone()
	}
	return out
}

// Strokes returns the stroke drawings in order.
func (a *Annotation) Strokes() []*Stroke {
	var out []*Stroke
	for _, d := range a.Drawings {
		if s, ok := d.(*Stroke); ok {
			out = append(out, s)
		}
	}
	return out
}

// Texts returns the text drawings in order.
func (a *Annotation) Texts() []*Text {
	var out []*Text
	for _, d := range a.Drawings {
		if t, ok := d.(*Text); ok {
			out = append(out, t)
		}
	}
	return out
}

// Cleared returns the stash kept by the last clear.
func (a *Annotation) Cleared() []Drawing { return a.cleared }

// RedoStack returns the drawings available to redo, last popped at the end.
func (a *Annotation) RedoStack() []Drawing { return a.redo }

// clear moves every drawing into the stash. Clearing an empty annotation
// keeps the existing stash.
func (a *Annotation) clear() bool {
	if len(a.Drawings) == 0 {
		return false
	}
	a.cleared = a.Drawings
	a.Drawings = nil
	return true
}

// restore returns stashed drawings ahead of anything drawn after the clear.
func (a *Annotation) restore() bool {
	if len(a.cleared) == 0 {
		return false
	}
	a.Drawings = append(a.cleared, a.Drawings...)
	a.cleared = nil
	return true
}

func (a *Annotation) undo() bool {
	if a.restore() {
		return true
	}
	n := len(a.Drawings)
	if n == 0 {
		return false
	}
	a.redo = append(a.redo, a.Drawings[n-1])
	a.Drawings = a.Drawings[:n-1]
	return true
}

func (a *Annotation) redoOne() bool {
	if a.restore() {
		return true
	}
	n := len(a.redo)
	if n == 0 {
		return false
	}
	a.Drawings = append(a.Drawings, a.redo[n-1])
	a.redo = a.redo[:n-1]
	return true
}
