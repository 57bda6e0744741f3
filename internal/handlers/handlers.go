package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/rpa-review/sessioncore/internal/dispatcher"
	"github.com/rpa-review/sessioncore/internal/geo"
	"github.com/rpa-review/sessioncore/internal/hostsync"
	"github.com/rpa-review/sessioncore/internal/render"
	"github.com/rpa-review/sessioncore/internal/session"
	"github.com/rpa-review/sessioncore/internal/signal"
	"github.com/rpa-review/sessioncore/internal/thumbnail"
	"github.com/rpa-review/sessioncore/internal/value"
)

// Host event names.
const (
	EventFrameChanged = "frame-changed"
	EventPlayStart    = "play-start"
	EventPlayStop     = "play-stop"
	EventPreRender    = "pre-render"
	EventRender       = "render"
	EventPostRender   = "post-render"
	EventPointerMove  = "pointer-move"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Session    *session.Session
	Sync       *hostsync.Syncer
	Bridge     *render.Bridge
	Signals    *signal.Bus
	Thumbnails *thumbnail.Loader
	Logger     *slog.Logger
}

// frameKey is what a frame-changed event is deduplicated on.
type frameKey struct {
	seq      int
	clipID   string
	geometry geo.Quad
}

// Service answers host events against the session.
type Service struct {
	deps Dependencies
	log  *slog.Logger

	last       frameKey
	seen       bool
	renderPass int
	hovered    []string
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{deps: deps, log: log.With("component", "handlers")}
}

// Register adds every host event handler to d. Render phases are guarded
// because delegates may dispatch again from inside a pass.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(EventFrameChanged, s.handleFrameChanged, dispatcher.Logged())
	d.Register(EventPlayStart, s.handlePlay(true), dispatcher.Logged())
	d.Register(EventPlayStop, s.handlePlay(false), dispatcher.Logged())
	d.Register(EventPreRender, s.handlePreRender, dispatcher.Guarded())
	d.Register(EventRender, s.handleRender, dispatcher.Guarded())
	d.Register(EventPostRender, s.handlePostRender, dispatcher.Guarded())
	d.Register(EventPointerMove, s.handlePointerMove)
}

// Invalidate forgets the last handled frame so the next frame-changed event
// is processed even when nothing moved.
func (s *Service) Invalidate() {
	s.seen = false
}

func (s *Service) handleFrameChanged(e dispatcher.Event) (any, error) {
	if len(e.Args) > 0 {
		seq, err := strconv.Atoi(e.Args[0])
		if err != nil {
			return nil, fmt.Errorf("%w: frame %q", value.ErrInvalidArgument, e.Args[0])
		}
		s.FrameChanged(seq)
	} else {
		s.FrameChanged(s.deps.Session.Timeline.Current())
	}
	return nil, nil
}

// FrameChanged moves to seq and refreshes everything derived from the
// current frame. It returns false when neither the frame, the current clip
// nor the image geometry moved since the last call.
func (s *Service) FrameChanged(seq int) bool {
	sess := s.deps.Session
	clipChanged := sess.GotoFrame(seq)
	cf := sess.Timeline.CurrentClipFrame()

	var quad geo.Quad
	c := sess.CurrentClip()
	if c != nil && s.deps.Sync != nil {
		quad, _ = s.deps.Sync.ImageGeometry(c)
	}
	key := frameKey{seq: sess.Timeline.Current(), clipID: cf.ClipID, geometry: quad}
	s.drainThumbnails()
	if s.seen && key == s.last {
		return false
	}
	s.last, s.seen = key, true
	sess.Viewport.Geometry = quad

	if c != nil && s.deps.Sync != nil {
		s.deps.Sync.WriteDynamicTransform(c, cf.Frame)
		s.deps.Sync.WriteAnnotations(c, cf.Frame, sess.Viewport.Feedback)
	}
	if clipChanged {
		s.emit(signal.Event{Kind: signal.CurrentClipChanged, ClipIDs: clipIDs(c)})
	}
	frame := key.seq
	s.emit(signal.Event{Kind: signal.FrameChanged, Frame: &frame})
	return true
}

func clipIDs(c *session.Clip) []string {
	if c == nil {
		return nil
	}
	return []string{c.ID}
}

func (s *Service) drainThumbnails() {
	if s.deps.Thumbnails == nil {
		return
	}
	updated := s.deps.Thumbnails.Drain(s.deps.Session)
	if len(updated) == 0 {
		return
	}
	changes := make([]signal.AttrChange, 0, len(updated))
	for _, id := range updated {
		c := s.deps.Session.Clip(id)
		changes = append(changes, signal.AttrChange{
			PlaylistID: c.PlaylistID,
			ClipID:     id,
			AttrID:     session.CustomThumbnail,
			Value:      c.Custom[session.CustomThumbnail],
		})
	}
	s.emit(signal.Event{Kind: signal.AttrValuesChanged, Attrs: changes})
}

func (s *Service) handlePlay(playing bool) dispatcher.HandlerFunc {
	return func(dispatcher.Event) (any, error) {
		tl := s.deps.Session.Timeline
		if tl.Playing == playing {
			return nil, nil
		}
		tl.Playing = playing
		s.emit(signal.Event{Kind: signal.PlayStatusChanged, Playing: playing})
		return nil, nil
	}
}

// Frame assembles what the render bridge needs for the current frame.
func (s *Service) Frame() render.Frame {
	sess := s.deps.Session
	f := render.Frame{
		Clip:        sess.CurrentClip(),
		SourceFrame: sess.Timeline.CurrentClipFrame().Frame,
		Viewport:    sess.Viewport,
	}
	if s.deps.Sync != nil {
		f.ViewWidth, f.ViewHeight = s.deps.Sync.Host().ViewSize()
	}
	return f
}

func (s *Service) handlePreRender(e dispatcher.Event) (any, error) {
	s.renderPass = 0
	if s.deps.Bridge == nil {
		return nil, nil
	}
	s.deps.Bridge.PreRender(context.Background(), s.Frame())
	return nil, nil
}

// handleRender runs the pass named in the first argument, or else the
// annotation pass first and the viewport pass second after each pre-render.
func (s *Service) handleRender(e dispatcher.Event) (any, error) {
	pass := render.PassAnnotation
	switch {
	case len(e.Args) > 0 && e.Args[0] == render.PassViewport.String():
		pass = render.PassViewport
	case len(e.Args) > 0 && e.Args[0] == render.PassAnnotation.String():
	case len(e.Args) > 0:
		return nil, fmt.Errorf("%w: render pass %q", value.ErrInvalidArgument, e.Args[0])
	case s.renderPass > 0:
		pass = render.PassViewport
	}
	s.renderPass++
	if s.deps.Bridge == nil {
		return nil, nil
	}
	s.deps.Bridge.Render(context.Background(), pass, s.Frame())
	return nil, nil
}

func (s *Service) handlePostRender(e dispatcher.Event) (any, error) {
	if s.deps.Bridge != nil {
		s.deps.Bridge.PostRender()
	}
	return nil, nil
}

// handlePointerMove takes a viewport-normalized x and y and updates the
// hover opacity of every overlay.
func (s *Service) handlePointerMove(e dispatcher.Event) (any, error) {
	if len(e.Args) < 2 {
		return nil, fmt.Errorf("%w: pointer-move needs x and y", value.ErrInvalidArgument)
	}
	x, errX := strconv.ParseFloat(e.Args[0], 64)
	y, errY := strconv.ParseFloat(e.Args[1], 64)
	if errX != nil || errY != nil {
		return nil, fmt.Errorf("%w: pointer position %v", value.ErrInvalidArgument, e.Args[:2])
	}
	return s.PointerMoved(value.Point{X: x, Y: y}), nil
}

// PointerMoved applies hover opacity and tracks the region corrections under
// the pointer. It reports whether any overlay or the hovered set changed.
func (s *Service) PointerMoved(p value.Point) bool {
	f := s.Frame()
	changed := false
	for _, o := range f.Viewport.Overlays() {
		op := render.HoverOpacityAt(o, p, f.ViewWidth, f.ViewHeight)
		if op != o.BgOpacity {
			o.BgOpacity = op
			changed = true
		}
	}
	if hovered := s.regionsAt(f, p); !slices.Equal(hovered, s.hovered) {
		s.hovered = hovered
		changed = true
	}
	if changed && s.deps.Sync != nil {
		s.deps.Sync.Redraw()
	}
	return changed
}

// HoveredRegions returns the ids of the region corrections of the current
// clip frame under the pointer, in stack order.
func (s *Service) HoveredRegions() []string {
	return s.hovered
}

// regionsAt maps a viewport-normalized point through the image geometry and
// hit-tests it against every unmuted region correction on the frame.
func (s *Service) regionsAt(f render.Frame, p value.Point) []string {
	q := f.Viewport.Geometry
	if f.Clip == nil || q.IsZero() {
		return nil
	}
	x, y, err := geo.ScreenToItview(q, p.X*f.ViewWidth, p.Y*f.ViewHeight)
	if err != nil {
		return nil
	}
	if x < 0 || x > 1 || y < 0 || y > 1 {
		return nil
	}
	pt := value.Point{X: x, Y: y}
	var out []string
	for _, cc := range f.Clip.CCs.Applicable(f.SourceFrame) {
		if cc.IsRegion() && !cc.Mute && cc.Region.Contains(pt) {
			out = append(out, cc.ID)
		}
	}
	return out
}

func (s *Service) emit(ev signal.Event) {
	if s.deps.Signals != nil {
		s.deps.Signals.Emit(ev)
	}
}
