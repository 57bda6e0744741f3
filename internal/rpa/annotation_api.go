package rpa

import (
	"github.com/rpa-review/sessioncore/internal/annotation"
	"github.com/rpa-review/sessioncore/internal/delegate"
	"github.com/rpa-review/sessioncore/internal/session"
	"github.com/rpa-review/sessioncore/internal/signal"
)

// ROAnnotations is the read-only layer of one clip frame.
type ROAnnotations struct {
	ClipID      string
	Frame       int
	Annotations []*annotation.Annotation
}

// AnnotationAPI edits the per-frame annotations of clips. Frames are source
// frames of the clip.
type AnnotationAPI struct {
	*delegate.Manager
	c *Core
}

// edited repaints the clip frame and announces the change.
func (a *AnnotationAPI) edited(c *session.Clip, frame int) {
	a.c.repaint(c, frame)
	f := frame
	a.c.emit(signal.Event{Kind: signal.AnnotationsModified, PlaylistID: c.PlaylistID, ClipIDs: []string{c.ID}, Frame: &f})
}

// AppendStrokes adds strokes to the read-write layer.
func (a *AnnotationAPI) AppendStrokes(clipID string, frame int, strokes []*annotation.Stroke) (bool, error) {
	return delegate.CallErr(a.Manager, "AppendStrokes", false, func() (bool, error) {
		c := a.c.Session.Clip(clipID)
		if c == nil || len(strokes) == 0 {
			return false, nil
		}
		for _, s := range strokes {
			if err := s.Validate(); err != nil {
				return false, err
			}
		}
		c.Annotations.AppendStrokes(frame, strokes)
		a.edited(c, frame)
		return true, nil
	}, clipID, frame, strokes)
}

// AppendTexts adds texts to the read-write layer.
func (a *AnnotationAPI) AppendTexts(clipID string, frame int, texts []*annotation.Text) (bool, error) {
	return delegate.CallErr(a.Manager, "AppendTexts", false, func() (bool, error) {
		c := a.c.Session.Clip(clipID)
		if c == nil || len(texts) == 0 {
			return false, nil
		}
		for _, t := range texts {
			if err := t.Validate(); err != nil {
				return false, err
			}
		}
		c.Annotations.AppendTexts(frame, texts)
		a.edited(c, frame)
		return true, nil
	}, clipID, frame, texts)
}

// SetText edits the text at the same position in place, or appends it.
func (a *AnnotationAPI) SetText(clipID string, frame int, text *annotation.Text) (bool, error) {
	return delegate.CallErr(a.Manager, "SetText", false, func() (bool, error) {
		c := a.c.Session.Clip(clipID)
		if c == nil {
			return false, nil
		}
		if err := text.Validate(); err != nil {
			return false, err
		}
		c.Annotations.SetText(frame, text)
		a.edited(c, frame)
		return true, nil
	}, clipID, frame, text)
}

// SetRWAnnotation replaces the read-write annotation of a frame.
func (a *AnnotationAPI) SetRWAnnotation(clipID string, frame int, ann *annotation.Annotation) bool {
	return delegate.Call(a.Manager, "SetRWAnnotation", false, func() bool {
		c := a.c.Session.Clip(clipID)
		if c == nil {
			return false
		}
		c.Annotations.SetRW(frame, ann)
		a.edited(c, frame)
		return true
	}, clipID, frame, ann)
}

// GetRWAnnotation returns the read-write annotation of a frame, or nil.
func (a *AnnotationAPI) GetRWAnnotation(clipID string, frame int) *annotation.Annotation {
	c := a.c.Session.Clip(clipID)
	if c == nil {
		return nil
	}
	return c.Annotations.RW(frame)
}

// SetROAnnotations replaces read-only layers, one clip frame at a time with
// progress emitted per entry.
func (a *AnnotationAPI) SetROAnnotations(entries []ROAnnotations) bool {
	return delegate.Call(a.Manager, "SetROAnnotations", false, func() bool {
		s := a.c.Session
		var clipIDs []string
		seen := make(map[string]bool)
		a.c.Signals.EmitProgress(len(entries), func(i int) {
			e := entries[i]
			c := s.Clip(e.ClipID)
			if c == nil {
				return
			}
			c.Annotations.SetRO(e.Frame, e.Annotations)
			if !seen[c.ID] {
				seen[c.ID] = true
				clipIDs = append(clipIDs, c.ID)
			}
		})
		if len(clipIDs) == 0 {
			return false
		}
		a.c.repaintCurrent()
		a.c.emit(signal.Event{Kind: signal.AnnotationsModified, ClipIDs: clipIDs})
		return true
	}, entries)
}

// GetROAnnotations returns the read-only annotations of a frame.
func (a *AnnotationAPI) GetROAnnotations(clipID string, frame int) []*annotation.Annotation {
	c := a.c.Session.Clip(clipID)
	if c == nil {
		return nil
	}
	return c.Annotations.RO(frame)
}

// DeleteRW removes the read-write annotation of a frame.
func (a *AnnotationAPI) DeleteRW(clipID string, frame int) bool {
	return a.frameOp("DeleteRW", clipID, frame, (*annotation.Ledger).DeleteRW)
}

// DeleteROAll removes every read-only annotation of the given clips.
func (a *AnnotationAPI) DeleteROAll(clipIDs []string) bool {
	return delegate.Call(a.Manager, "DeleteROAll", false, func() bool {
		var done []string
		for _, id := range clipIDs {
			if c := a.c.Session.Clip(id); c != nil {
				c.Annotations.DeleteROAll()
				done = append(done, id)
			}
		}
		if len(done) == 0 {
			return false
		}
		a.c.repaintCurrent()
		a.c.emit(signal.Event{Kind: signal.AnnotationsModified, ClipIDs: done})
		return true
	}, clipIDs)
}

// Clear stashes the read-write drawings of a frame so Undo can bring them back.
func (a *AnnotationAPI) Clear(clipID string, frame int) bool {
	return a.frameOp("Clear", clipID, frame, (*annotation.Ledger).Clear)
}

// Undo restores a clear, or takes back the last drawing.
func (a *AnnotationAPI) Undo(clipID string, frame int) bool {
	return a.frameOp("Undo", clipID, frame, (*annotation.Ledger).Undo)
}

// Redo restores a clear, or re-applies the last undone drawing.
func (a *AnnotationAPI) Redo(clipID string, frame int) bool {
	return a.frameOp("Redo", clipID, frame, (*annotation.Ledger).Redo)
}

func (a *AnnotationAPI) frameOp(method, clipID string, frame int, op func(*annotation.Ledger, int) bool) bool {
	return delegate.Call(a.Manager, method, false, func() bool {
		c := a.c.Session.Clip(clipID)
		if c == nil || !op(c.Annotations, frame) {
			return false
		}
		a.edited(c, frame)
		return true
	}, clipID, frame)
}

// AppendTransientPoint extends the live stroke of a gesture token with the
// last point of stroke. With isLine only the first and latest points are kept.
func (a *AnnotationAPI) AppendTransientPoint(clipID string, frame int, token string, stroke *annotation.Stroke, isLine bool) bool {
	return delegate.Call(a.Manager, "AppendTransientPoint", false, func() bool {
		c := a.c.Session.Clip(clipID)
		if c == nil {
			return false
		}
		if !a.c.Sync.AppendTransientPoint(c, frame, token, stroke, isLine) {
			return false
		}
		a.c.Sync.Redraw()
		return true
	}, clipID, frame, token, stroke, isLine)
}

// GetTransientStroke returns the live stroke of a token in normalized image
// space, or nil.
func (a *AnnotationAPI) GetTransientStroke(clipID string, frame int, token string) *annotation.Stroke {
	c := a.c.Session.Clip(clipID)
	if c == nil {
		return nil
	}
	return a.c.Sync.TransientStroke(c, frame, token)
}

// DeleteTransientPoints drops the live stroke of a token.
func (a *AnnotationAPI) DeleteTransientPoints(clipID string, frame int, token string) bool {
	return delegate.Call(a.Manager, "DeleteTransientPoints", false, func() bool {
		c := a.c.Session.Clip(clipID)
		if c == nil || !a.c.Sync.DeleteTransientPoints(c, frame, token) {
			return false
		}
		a.c.Sync.Redraw()
		return true
	}, clipID, frame, token)
}

// GetRWFrames returns the frames of a clip with read-write drawings.
func (a *AnnotationAPI) GetRWFrames(clipID string) []int {
	c := a.c.Session.Clip(clipID)
	if c == nil {
		return nil
	}
	return c.Annotations.RWFrames()
}

// GetROFrames returns the frames of a clip with read-only annotations.
func (a *AnnotationAPI) GetROFrames(clipID string) []int {
	c := a.c.Session.Clip(clipID)
	if c == nil {
		return nil
	}
	return c.Annotations.ROFrames()
}
