package rpa

import (
	"errors"

	"github.com/rpa-review/sessioncore/internal/colorcorrection"
	"github.com/rpa-review/sessioncore/internal/delegate"
	"github.com/rpa-review/sessioncore/internal/geo"
	"github.com/rpa-review/sessioncore/internal/session"
	"github.com/rpa-review/sessioncore/internal/signal"
	"github.com/rpa-review/sessioncore/internal/value"
)

// ColorAPI edits the color-correction stacks of clips. A nil frame means the
// clip-wide list.
type ColorAPI struct {
	*delegate.Manager
	c *Core
}

func (a *ColorAPI) modified(c *session.Clip, ccID string) {
	a.c.Sync.Redraw()
	a.c.emit(signal.Event{Kind: signal.CCModified, PlaylistID: c.PlaylistID, ClipIDs: []string{c.ID}, CCID: ccID})
}

// editable returns a correction that may be changed, or nil when the clip or
// correction is missing or the correction is locked.
func (a *ColorAPI) editable(clipID, ccID string) (*session.Clip, *colorcorrection.ColorCorrection) {
	c := a.c.Session.Clip(clipID)
	if c == nil {
		return nil, nil
	}
	cc := c.CCs.Get(ccID)
	if cc == nil || cc.ReadOnly {
		return nil, nil
	}
	return c, cc
}

// AppendCCs adds corrections to a clip and returns their ids. Corrections
// without an id get one from the session's generator; a supplied id already
// in use adds nothing.
func (a *ColorAPI) AppendCCs(clipID string, frame *int, ccs []*colorcorrection.ColorCorrection) []string {
	return delegate.Call(a.Manager, "AppendCCs", []string(nil), func() []string {
		c := a.c.Session.Clip(clipID)
		if c == nil {
			return nil
		}
		out, err := c.CCs.Append(frame, ccs)
		if errors.Is(err, colorcorrection.ErrDuplicateID) {
			a.c.log.Debug("color corrections not appended", "clip", clipID, "error", err)
			return nil
		}
		a.modified(c, "")
		return out
	}, clipID, frame, ccs)
}

// DeleteCCs removes corrections from a clip.
func (a *ColorAPI) DeleteCCs(clipID string, ids []string) []string {
	return delegate.Call(a.Manager, "DeleteCCs", []string(nil), func() []string {
		c := a.c.Session.Clip(clipID)
		if c == nil {
			return nil
		}
		out := c.CCs.Delete(ids)
		if len(out) > 0 {
			a.modified(c, "")
		}
		return out
	}, clipID, ids)
}

// MoveCC reorders a correction within its list.
func (a *ColorAPI) MoveCC(clipID string, from, to int, frame *int) bool {
	return delegate.Call(a.Manager, "MoveCC", false, func() bool {
		c := a.c.Session.Clip(clipID)
		if c == nil || !c.CCs.Move(from, to, frame) {
			return false
		}
		a.modified(c, "")
		return true
	}, clipID, from, to, frame)
}

// MuteAll mutes or unmutes every correction of a clip.
func (a *ColorAPI) MuteAll(clipID string, mute bool) bool {
	return delegate.Call(a.Manager, "MuteAll", false, func() bool {
		c := a.c.Session.Clip(clipID)
		if c == nil {
			return false
		}
		c.CCs.MuteAll(mute)
		a.modified(c, "")
		return true
	}, clipID, mute)
}

// IsMuteAll reports a clip's mute-all flag.
func (a *ColorAPI) IsMuteAll(clipID string) bool {
	c := a.c.Session.Clip(clipID)
	return c != nil && c.CCs.IsMuteAll()
}

// SetCCMute mutes one correction and its nodes. The stack flag is left alone.
func (a *ColorAPI) SetCCMute(clipID, ccID string, mute bool) bool {
	return delegate.Call(a.Manager, "SetCCMute", false, func() bool {
		c := a.c.Session.Clip(clipID)
		if c == nil {
			return false
		}
		cc := c.CCs.Get(ccID)
		if cc == nil {
			return false
		}
		cc.SetMute(mute)
		a.modified(c, ccID)
		return true
	}, clipID, ccID, mute)
}

// SetCCName renames a correction.
func (a *ColorAPI) SetCCName(clipID, ccID, name string) bool {
	return delegate.Call(a.Manager, "SetCCName", false, func() bool {
		c, cc := a.editable(clipID, ccID)
		if cc == nil {
			return false
		}
		cc.Name = name
		a.modified(c, ccID)
		return true
	}, clipID, ccID, name)
}

// SetReadOnly locks or unlocks a correction.
func (a *ColorAPI) SetReadOnly(clipID, ccID string, readOnly bool) bool {
	return delegate.Call(a.Manager, "SetReadOnly", false, func() bool {
		c := a.c.Session.Clip(clipID)
		if c == nil {
			return false
		}
		cc := c.CCs.Get(ccID)
		if cc == nil {
			return false
		}
		cc.ReadOnly = readOnly
		a.modified(c, ccID)
		return true
	}, clipID, ccID, readOnly)
}

// SetNodeProperties assigns node fields by name, e.g. "slope" or "gamma".
// Values are validated before any is applied.
func (a *ColorAPI) SetNodeProperties(clipID, ccID string, nodeIndex int, values map[string][]float64) (bool, error) {
	return delegate.CallErr(a.Manager, "SetNodeProperties", false, func() (bool, error) {
		c, cc := a.editable(clipID, ccID)
		if cc == nil || nodeIndex < 0 || nodeIndex >= len(cc.Nodes) {
			return false, nil
		}
		trial := cc.Nodes[nodeIndex].Clone()
		for name, v := range values {
			if err := trial.SetValue(name, v); err != nil {
				return false, err
			}
		}
		cc.Nodes[nodeIndex] = trial
		a.c.Sync.Redraw()
		a.c.emit(signal.Event{
			Kind:       signal.CCNodeModified,
			PlaylistID: c.PlaylistID,
			ClipIDs:    []string{c.ID},
			CCID:       ccID,
			NodeIndex:  nodeIndex,
		})
		return true, nil
	}, clipID, ccID, nodeIndex, values)
}

// AppendNodes adds default nodes of the given classes to a correction.
func (a *ColorAPI) AppendNodes(clipID, ccID string, classes []string) (bool, error) {
	return delegate.CallErr(a.Manager, "AppendNodes", false, func() (bool, error) {
		c, cc := a.editable(clipID, ccID)
		if cc == nil {
			return false, nil
		}
		nodes := make([]colorcorrection.Node, 0, len(classes))
		for _, class := range classes {
			n, err := colorcorrection.NewNode(class)
			if err != nil {
				return false, err
			}
			n.SetMute(cc.Mute)
			nodes = append(nodes, n)
		}
		cc.Nodes = append(cc.Nodes, nodes...)
		a.modified(c, ccID)
		return true, nil
	}, clipID, ccID, classes)
}

// DeleteNode removes one node from a correction.
func (a *ColorAPI) DeleteNode(clipID, ccID string, nodeIndex int) bool {
	return delegate.Call(a.Manager, "DeleteNode", false, func() bool {
		c, cc := a.editable(clipID, ccID)
		if cc == nil || nodeIndex < 0 || nodeIndex >= len(cc.Nodes) {
			return false
		}
		cc.Nodes = append(cc.Nodes[:nodeIndex], cc.Nodes[nodeIndex+1:]...)
		a.modified(c, ccID)
		return true
	}, clipID, ccID, nodeIndex)
}

// SetRegion gives a correction a region with the given falloff, keeping
// existing shapes. A negative falloff is refused.
func (a *ColorAPI) SetRegion(clipID, ccID string, falloff float64) (bool, error) {
	return delegate.CallErr(a.Manager, "SetRegion", false, func() (bool, error) {
		if err := value.RangeFloat("falloff", falloff, 0, 1e6); err != nil {
			return false, err
		}
		c, cc := a.editable(clipID, ccID)
		if cc == nil {
			return false, nil
		}
		if cc.Region == nil {
			cc.Region = &colorcorrection.Region{}
		}
		cc.Region.Falloff = falloff
		a.modified(c, ccID)
		return true, nil
	}, clipID, ccID, falloff)
}

// ClearRegion removes a correction's region so it applies to the full image.
func (a *ColorAPI) ClearRegion(clipID, ccID string) bool {
	return delegate.Call(a.Manager, "ClearRegion", false, func() bool {
		c, cc := a.editable(clipID, ccID)
		if cc == nil || cc.Region == nil {
			return false
		}
		cc.Region = nil
		a.modified(c, ccID)
		return true
	}, clipID, ccID)
}

// AppendShape adds a polygon to a correction's region, creating the region
// when needed. Polygons need at least three points.
func (a *ColorAPI) AppendShape(clipID, ccID string, points []value.Point) (bool, error) {
	return delegate.CallErr(a.Manager, "AppendShape", false, func() (bool, error) {
		if _, err := geo.ShapePolygon(points); err != nil {
			return false, err
		}
		c, cc := a.editable(clipID, ccID)
		if cc == nil {
			return false, nil
		}
		if cc.Region == nil {
			cc.Region = &colorcorrection.Region{}
		}
		cc.Region.Shapes = append(cc.Region.Shapes, colorcorrection.Shape{Points: append([]value.Point(nil), points...)})
		a.modified(c, ccID)
		return true, nil
	}, clipID, ccID, points)
}

// SetROCCs replaces the read-only corrections of a clip. A supplied id that
// repeats or belongs to another clip replaces nothing.
func (a *ColorAPI) SetROCCs(clipID string, placed []colorcorrection.Placed) ([]string, error) {
	return a.replace("SetROCCs", clipID, placed, (*colorcorrection.Stack).SetROCCs)
}

// SetRWCCs replaces the editable corrections of a clip.
func (a *ColorAPI) SetRWCCs(clipID string, placed []colorcorrection.Placed) ([]string, error) {
	return a.replace("SetRWCCs", clipID, placed, (*colorcorrection.Stack).SetRWCCs)
}

func (a *ColorAPI) replace(method, clipID string, placed []colorcorrection.Placed, op func(*colorcorrection.Stack, []colorcorrection.Placed) ([]string, error)) ([]string, error) {
	return delegate.CallErr(a.Manager, method, []string(nil), func() ([]string, error) {
		c := a.c.Session.Clip(clipID)
		if c == nil {
			return nil, nil
		}
		var out []string
		var err error
		a.c.Signals.EmitProgress(1, func(int) {
			out, err = op(c.CCs, placed)
		})
		if errors.Is(err, colorcorrection.ErrDuplicateID) {
			a.c.log.Debug("color corrections not replaced", "clip", clipID, "error", err)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		a.modified(c, "")
		return out, nil
	}, clipID, placed)
}

// GetCCs returns the ordered corrections of the clip list or a frame list.
func (a *ColorAPI) GetCCs(clipID string, frame *int) []*colorcorrection.ColorCorrection {
	c := a.c.Session.Clip(clipID)
	if c == nil {
		return nil
	}
	return c.CCs.CCs(frame)
}

// GetCC returns one correction, or nil.
func (a *ColorAPI) GetCC(clipID, ccID string) *colorcorrection.ColorCorrection {
	c := a.c.Session.Clip(clipID)
	if c == nil {
		return nil
	}
	return c.CCs.Get(ccID)
}

// GetRWFrames returns frames holding a modified editable correction.
func (a *ColorAPI) GetRWFrames(clipID string) []int {
	c := a.c.Session.Clip(clipID)
	if c == nil {
		return []int{}
	}
	return c.CCs.RWFrames()
}

// GetROFrames returns frames holding a modified read-only correction.
func (a *ColorAPI) GetROFrames(clipID string) []int {
	c := a.c.Session.Clip(clipID)
	if c == nil {
		return []int{}
	}
	return c.CCs.ROFrames()
}
