package annotation

import (
	"math"
	"sort"
	"time"
)

// Ledger holds every annotation of one clip keyed by source frame.
type Ledger struct {
	ro   map[int][]*Annotation
	rw   map[int]*Annotation
	user string
	now  func() time.Time
}

// NewLedger creates an empty ledger; new read-write annotations are credited to user.
func NewLedger(user string) *Ledger {
	return &Ledger{
		ro:   make(map[int][]*Annotation),
		rw:   make(map[int]*Annotation),
		user: user,
		now:  time.Now,
	}
}

// SetClock replaces the timestamp source.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// User returns the creator recorded on new read-write annotations.
func (l *Ledger) User() string { return l.user }

// SetUser changes the creator recorded on new read-write annotations.
func (l *Ledger) SetUser(user string) { l.user = user }

func (l *Ledger) rwOrCreate(frame int) *Annotation {
	a, ok := l.rw[frame]
	if !ok {
		a = New(l.user, l.now())
		l.rw[frame] = a
	}
	return a
}

// AppendStrokes adds strokes to the read-write annotation at frame, creating
// it when needed. Nil entries are skipped. The redo stack is left as is.
func (l *Ledger) AppendStrokes(frame int, strokes []*Stroke) {
	a := l.rwOrCreate(frame)
	for _, s := range strokes {
		if s != nil {
			a.Drawings = append(a.Drawings, s)
		}
	}
	a.Timestamp = l.now()
}

// AppendTexts adds texts to the read-write annotation at frame.
func (l *Ledger) AppendTexts(frame int, texts []*Text) {
	a := l.rwOrCreate(frame)
	for _, t := range texts {
		if t != nil {
			a.Drawings = append(a.Drawings, t)
		}
	}
	a.Timestamp = l.now()
}

// SetText edits the text at the same position in place or appends it.
// It returns true when an existing text was overwritten.
func (l *Ledger) SetText(frame int, t *Text) bool {
	a := l.rwOrCreate(frame)
	a.Timestamp = l.now()
	for _, d := range a.Drawings {
		existing, ok := d.(*Text)
		if !ok || !samePosition(existing, t) {
			continue
		}
		*existing = *t
		return true
	}
	a.Drawings = append(a.Drawings, t)
	return false
}

func samePosition(a, b *Text) bool {
	const tol = 1e-9
	return math.Abs(a.Position.X-b.Position.X) <= tol && math.Abs(a.Position.Y-b.Position.Y) <= tol
}

// SetRW replaces the read-write annotation at frame outright. A nil annotation deletes it.
func (l *Ledger) SetRW(frame int, a *Annotation) {
	if a == nil {
		delete(l.rw, frame)
		return
	}
	l.rw[frame] = a
}

// RW returns the read-write annotation at frame or nil.
func (l *Ledger) RW(frame int) *Annotation {
	return l.rw[frame]
}

// DeleteRW removes the read-write annotation at frame.
func (l *Ledger) DeleteRW(frame int) bool {
	if _, ok := l.rw[frame]; !ok {
		return false
	}
	delete(l.rw, frame)
	return true
}

// SetRO replaces the read-only list at frame. An empty list removes the frame.
func (l *Ledger) SetRO(frame int, anns []*Annotation) {
	if len(anns) == 0 {
		delete(l.ro, frame)
		return
	}
	l.ro[frame] = append([]*Annotation(nil), anns...)
}

// RO returns the read-only annotations at frame.
func (l *Ledger) RO(frame int) []*Annotation {
	return l.ro[frame]
}

// DeleteROAll removes every read-only annotation.
func (l *Ledger) DeleteROAll() {
	l.ro = make(map[int][]*Annotation)
}

// Clear stashes the read-write drawings at frame.
func (l *Ledger) Clear(frame int) bool {
	a, ok := l.rw[frame]
	if !ok {
		return false
	}
	return a.clear()
}

// Undo restores a clear, or moves the last drawing to the redo stack.
func (l *Ledger) Undo(frame int) bool {
	a, ok := l.rw[frame]
	if !ok {
		return false
	}
	return a.undo()
}

// Redo restores a clear, or re-appends the last undone drawing.
func (l *Ledger) Redo(frame int) bool {
	a, ok := l.rw[frame]
	if !ok {
		return false
	}
	return a.redoOne()
}

// RWFrames returns frames that hold a read-write annotation with drawings.
func (l *Ledger) RWFrames() []int {
	var out []int
	for f, a := range l.rw {
		if len(a.Drawings) > 0 {
			out = append(out, f)
		}
	}
	sort.Ints(out)
	return out
}

// ROFrames returns frames that hold read-only annotations.
func (l *Ledger) ROFrames() []int {
	out := make([]int, 0, len(l.ro))
	for f := range l.ro {
		out = append(out, f)
	}
	sort.Ints(out)
	return out
}

// Visible returns the drawings to show at frame: read-only layers first, in
// creator order, then the read-write layer.
func (l *Ledger) Visible(frame int) []Drawing {
	var out []Drawing
	for _, a := range l.Shown(frame) {
		out = append(out, a.Drawings...)
	}
	return out
}

// Shown returns the visible annotations on frame, read-only ones first.
func (l *Ledger) Shown(frame int) []*Annotation {
	var out []*Annotation
	for _, a := range l.ro[frame] {
		if a.Visible {
			out = append(out, a)
		}
	}
	if a, ok := l.rw[frame]; ok && a.Visible {
		out = append(out, a)
	}
	return out
}
