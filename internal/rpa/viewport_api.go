package rpa

import (
	"fmt"
	"time"

	"github.com/rpa-review/sessioncore/internal/delegate"
	"github.com/rpa-review/sessioncore/internal/session"
	"github.com/rpa-review/sessioncore/internal/signal"
	"github.com/rpa-review/sessioncore/internal/value"
)

// ViewportAPI edits what the viewport shows on top of the image.
type ViewportAPI struct {
	*delegate.Manager
	c *Core
}

func (a *ViewportAPI) vp() *session.Viewport {
	return a.c.Session.Viewport
}

func (a *ViewportAPI) modified() {
	a.c.Sync.Redraw()
	a.c.emit(signal.Event{Kind: signal.ViewportModified})
}

// SetBgMode changes how the background playlist is composited.
func (a *ViewportAPI) SetBgMode(mode session.BgMode) (bool, error) {
	return delegate.CallErr(a.Manager, "SetBgMode", false, func() (bool, error) {
		if err := value.RangeInt("background mode", int(mode), int(session.BgNone), int(session.BgPIP)); err != nil {
			return false, err
		}
		s := a.c.Session
		s.Viewport.BgMode = mode
		a.c.Sync.ApplyBgMode(mode, s.Fg(), s.Bg())
		a.modified()
		return true, nil
	}, mode)
}

// SetFeedbackVisibility toggles which review layers are drawn.
func (a *ViewportAPI) SetFeedbackVisibility(fb session.Feedback) bool {
	return delegate.Call(a.Manager, "SetFeedbackVisibility", false, func() bool {
		a.vp().Feedback = fb
		a.c.repaintCurrent()
		a.c.emit(signal.Event{Kind: signal.ViewportModified})
		return true
	}, fb)
}

// SetChannel selects the displayed color channel.
func (a *ViewportAPI) SetChannel(ch session.Channel) (bool, error) {
	return delegate.CallErr(a.Manager, "SetChannel", false, func() (bool, error) {
		if err := value.RangeInt("channel", int(ch), int(session.ChannelRGB), int(session.ChannelLuminance)); err != nil {
			return false, err
		}
		a.vp().Channel = ch
		a.modified()
		return true, nil
	}, ch)
}

// SetExposure sets the viewport exposure in f-stops.
func (a *ViewportAPI) SetExposure(fstop float64) (bool, error) {
	return delegate.CallErr(a.Manager, "SetExposure", false, func() (bool, error) {
		if err := value.RangeFloat("exposure", fstop, -100, 100); err != nil {
			return false, err
		}
		a.vp().Exposure = fstop
		a.modified()
		return true, nil
	}, fstop)
}

// SetGamma sets the viewport display gamma.
func (a *ViewportAPI) SetGamma(gamma float64) (bool, error) {
	return delegate.CallErr(a.Manager, "SetGamma", false, func() (bool, error) {
		if err := value.RangeFloat("gamma", gamma, 0.01, 100); err != nil {
			return false, err
		}
		a.vp().Gamma = gamma
		a.modified()
		return true, nil
	}, gamma)
}

// SetTextCursor shows the text caret; nil hides it.
func (a *ViewportAPI) SetTextCursor(tc *session.TextCursor) bool {
	return delegate.Call(a.Manager, "SetTextCursor", false, func() bool {
		a.vp().TextCursor = tc
		a.modified()
		return true
	}, tc)
}

// SetCrossHairCursor shows the cross-hair; nil hides it.
func (a *ViewportAPI) SetCrossHairCursor(p *value.Point) bool {
	return delegate.Call(a.Manager, "SetCrossHairCursor", false, func() bool {
		a.vp().CrossHair = p
		a.modified()
		return true
	}, p)
}

// SetHTMLOverlay adds or replaces an overlay and returns its id. An empty id
// is generated.
func (a *ViewportAPI) SetHTMLOverlay(o session.Overlay) (string, error) {
	return delegate.CallErr(a.Manager, "SetHTMLOverlay", "", func() (string, error) {
		if err := value.RangeFloat("overlay opacity", o.BgOpacity, 0, 1); err != nil {
			return "", err
		}
		if o.Width < 0 || o.Height < 0 {
			return "", fmt.Errorf("%w: overlay size %vx%v", value.ErrInvalidArgument, o.Width, o.Height)
		}
		if o.ID == "" {
			o.ID = a.c.Session.NextOverlayID()
		}
		a.vp().SetOverlay(&o)
		a.modified()
		return o.ID, nil
	}, o)
}

// GetHTMLOverlays returns the overlays in creation order.
func (a *ViewportAPI) GetHTMLOverlays() []*session.Overlay {
	return a.vp().Overlays()
}

// DeleteHTMLOverlays removes overlays, or all of them when ids is empty.
func (a *ViewportAPI) DeleteHTMLOverlays(ids []string) []string {
	return delegate.Call(a.Manager, "DeleteHTMLOverlays", []string(nil), func() []string {
		out := a.vp().DeleteOverlays(ids)
		if len(out) > 0 {
			a.modified()
		}
		return out
	}, ids)
}

// SetLaserPointer moves a laser pointer, adding a trail sample. Pointers
// expire when not moved for a second.
func (a *ViewportAPI) SetLaserPointer(id string, p value.Point, c value.Color, radius float64) (bool, error) {
	return delegate.CallErr(a.Manager, "SetLaserPointer", false, func() (bool, error) {
		if err := c.Validate(); err != nil {
			return false, err
		}
		a.vp().SetLaser(id, p, c, radius, a.c.now())
		a.c.Sync.Redraw()
		return true, nil
	}, id, p, c, radius)
}

// SetPenPreview outlines the brush at the cursor; nil hides it.
func (a *ViewportAPI) SetPenPreview(pen *session.PenPreview) bool {
	return delegate.Call(a.Manager, "SetPenPreview", false, func() bool {
		a.vp().PenPreview = pen
		a.c.Sync.Redraw()
		return true
	}, pen)
}

// DisplayMsg shows a transient message; a zero duration uses the default.
func (a *ViewportAPI) DisplayMsg(text string, d time.Duration) bool {
	return delegate.Call(a.Manager, "DisplayMsg", false, func() bool {
		if d <= 0 {
			d = DefaultMessageDuration
		}
		a.vp().Message = &session.Message{Text: text, Expires: a.c.now().Add(d)}
		a.c.Sync.Redraw()
		return true
	}, text, d)
}
