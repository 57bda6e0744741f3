package annotation

import (
	"fmt"
	"sort"
	"time"

	"github.com/rpa-review/sessioncore/internal/value"
)

// DrawingRecord is the primitive-only state of a drawing. Class tells
// strokes and texts apart on load.
type DrawingRecord struct {
	Class    string        `json:"class"`
	Mode     int           `json:"mode,omitempty"`
	Brush    string        `json:"brush,omitempty"`
	Width    float64       `json:"width,omitempty"`
	Points   []value.Point `json:"points,omitempty"`
	Text     string        `json:"text,omitempty"`
	Position *value.Point  `json:"position,omitempty"`
	Size     float64       `json:"size,omitempty"`
	Color    value.Color   `json:"color"`
}

// Record converts a drawing to its state record.
func Record(d Drawing) DrawingRecord {
	switch v := d.(type) {
	case *Stroke:
		return DrawingRecord{
			Class:  KindStroke,
			Mode:   int(v.Mode),
			Brush:  string(v.Brush),
			Width:  v.Width,
			Points: append([]value.Point(nil), v.Points...),
			Color:  v.Color,
		}
	case *Text:
		pos := v.Position
		return DrawingRecord{
			Class:    KindText,
			Text:     v.Text,
			Position: &pos,
			Size:     v.Size,
			Color:    v.Color,
		}
	}
	return DrawingRecord{}
}

// FromRecord rebuilds a drawing from its state record.
func FromRecord(r DrawingRecord) (Drawing, error) {
	switch r.Class {
	case KindStroke:
		brush := Brush(r.Brush)
		if brush == "" {
			brush = BrushCircle
		}
		return &Stroke{
			Mode:   Mode(r.Mode),
			Brush:  brush,
			Width:  r.Width,
			Points: append([]value.Point(nil), r.Points...),
			Color:  r.Color,
		}, nil
	case KindText:
		t := &Text{Text: r.Text, Size: r.Size, Color: r.Color}
		if r.Position != nil {
			t.Position = *r.Position
		}
		return t, nil
	}
	return nil, fmt.Errorf("unknown drawing class %q", r.Class)
}

// AnnotationRecord is the primitive-only state of an annotation.
type AnnotationRecord struct {
	Drawings  []DrawingRecord `json:"drawings"`
	Creator   string          `json:"creator"`
	Timestamp string          `json:"timestamp"`
	Visible   bool            `json:"visible"`
}

// State returns the annotation's state record. Edit history is not persisted.
func (a *Annotation) State() AnnotationRecord {
	r := AnnotationRecord{
		Drawings:  make([]DrawingRecord, 0, len(a.Drawings)),
		Creator:   a.Creator,
		Timestamp: a.Timestamp.UTC().Format(time.RFC3339Nano),
		Visible:   a.Visible,
	}
	for _, d := range a.Drawings {
		r.Drawings = append(r.Drawings, Record(d))
	}
	return r
}

// AnnotationFromState rebuilds an annotation from its state record.
func AnnotationFromState(r AnnotationRecord) (*Annotation, error) {
	a := &Annotation{Creator: r.Creator, Visible: r.Visible}
	if r.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("parsing annotation timestamp: %w", err)
		}
		a.Timestamp = ts
	}
	for _, dr := range r.Drawings {
		d, err := FromRecord(dr)
		if err != nil {
			return nil, err
		}
		a.Drawings = append(a.Drawings, d)
	}
	return a, nil
}

// LedgerRecord is the state of a whole ledger.
type LedgerRecord struct {
	RO map[int][]AnnotationRecord `json:"ro"`
	RW map[int]AnnotationRecord   `json:"rw"`
}

// State returns the ledger's state record.
func (l *Ledger) State() LedgerRecord {
	r := LedgerRecord{
		RO: make(map[int][]AnnotationRecord, len(l.ro)),
		RW: make(map[int]AnnotationRecord, len(l.rw)),
	}
	for f, anns := range l.ro {
		for _, a := range anns {
			r.RO[f] = append(r.RO[f], a.State())
		}
	}
	for f, a := range l.rw {
		r.RW[f] = a.State()
	}
	return r
}

// SetState replaces the ledger contents from a state record.
func (l *Ledger) SetState(r LedgerRecord) error {
	ro := make(map[int][]*Annotation, len(r.RO))
	rw := make(map[int]*Annotation, len(r.RW))

	frames := make([]int, 0, len(r.RO))
	for f := range r.RO {
		frames = append(frames, f)
	}
	sort.Ints(frames)
	for _, f := range frames {
		for _, ar := range r.RO[f] {
			a, err := AnnotationFromState(ar)
			if err != nil {
				return fmt.Errorf("read-only frame %d: %w", f, err)
			}
			ro[f] = append(ro[f], a)
		}
	}
	for f, ar := range r.RW {
		a, err := AnnotationFromState(ar)
		if err != nil {
			return fmt.Errorf("read-write frame %d: %w", f, err)
		}
		rw[f] = a
	}

	l.ro = ro
	l.rw = rw
	return nil
}
