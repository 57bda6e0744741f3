// Package rpa is the public surface of the review core. Each API component
// hooks its methods through a delegate manager, mutates the session, mirrors
// the change into the host and then emits its notifications.
package rpa

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rpa-review/sessioncore/internal/config"
	"github.com/rpa-review/sessioncore/internal/delegate"
	"github.com/rpa-review/sessioncore/internal/dispatcher"
	"github.com/rpa-review/sessioncore/internal/handlers"
	"github.com/rpa-review/sessioncore/internal/hostsync"
	"github.com/rpa-review/sessioncore/internal/render"
	"github.com/rpa-review/sessioncore/internal/session"
	"github.com/rpa-review/sessioncore/internal/signal"
	"github.com/rpa-review/sessioncore/internal/thumbnail"
	"github.com/rpa-review/sessioncore/pkg/hostinterface"
)

// Version is reported to the host on the version event.
const Version = "1.0.0"

// DefaultMessageDuration is how long DisplayMsg shows a message when no
// duration is given.
const DefaultMessageDuration = 2 * time.Second

// Dependencies holds what a Core needs. GL may be nil for hosts without a
// render context; the render events then do nothing.
type Dependencies struct {
	Host   hostinterface.Host
	GL     render.GL
	Logger *slog.Logger
	// DispatcherLogger receives event logs; nil disables them.
	DispatcherLogger dispatcher.Logger
	Seeds            session.Seeds
	User             string
	Render           render.Config
	HTTPClient       *http.Client
	ThumbnailTimeout time.Duration
	MaxPending       int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Core wires the session to the host and exposes the API components.
type Core struct {
	Session    *session.Session
	Signals    *signal.Bus
	Sync       *hostsync.Syncer
	Bridge     *render.Bridge
	Thumbnails *thumbnail.Loader
	Dispatcher *dispatcher.Dispatcher
	Surface    *hostinterface.Surface
	Handlers   *handlers.Service

	SessionAPI  *SessionAPI
	Annotations *AnnotationAPI
	Color       *ColorAPI
	Timeline    *TimelineAPI
	Viewport    *ViewportAPI

	log *slog.Logger
	now func() time.Time
}

// New builds a core around a fresh session.
func New(deps Dependencies) (*Core, error) {
	return NewWithSession(deps, session.New(deps.Seeds, deps.User))
}

// NewWithSession builds a core around an existing session, creating host
// nodes for all of its playlists and clips.
func NewWithSession(deps Dependencies, s *session.Session) (*Core, error) {
	if deps.Host == nil {
		return nil, errors.New("core needs a host")
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	c := &Core{
		Session: s,
		Signals: signal.NewBus(),
		Sync:    hostsync.New(hostsync.Dependencies{Host: deps.Host, Logger: log}),
		log:     log.With("component", "rpa"),
		now:     now,
	}

	var err error
	if deps.GL != nil {
		c.Bridge, err = render.NewBridge(render.Dependencies{GL: deps.GL, Logger: log, Config: deps.Render, Now: now})
		if err != nil {
			return nil, fmt.Errorf("creating render bridge: %w", err)
		}
	}
	c.Thumbnails, err = thumbnail.New(thumbnail.Dependencies{
		Client:     deps.HTTPClient,
		Logger:     log,
		Timeout:    deps.ThumbnailTimeout,
		MaxPending: deps.MaxPending,
	})
	if err != nil {
		return nil, fmt.Errorf("creating thumbnail loader: %w", err)
	}
	c.Dispatcher, err = dispatcher.New(deps.DispatcherLogger)
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}

	c.Handlers = handlers.NewService(handlers.Dependencies{
		Session:    s,
		Sync:       c.Sync,
		Bridge:     c.Bridge,
		Signals:    c.Signals,
		Thumbnails: c.Thumbnails,
		Logger:     log,
	})
	c.Handlers.Register(c.Dispatcher)
	c.Surface = hostinterface.NewSurface(Version, c.Dispatcher)

	c.SessionAPI = &SessionAPI{Manager: delegate.NewManager(), c: c}
	c.Annotations = &AnnotationAPI{Manager: delegate.NewManager(), c: c}
	c.Color = &ColorAPI{Manager: delegate.NewManager(), c: c}
	c.Timeline = &TimelineAPI{Manager: delegate.NewManager(), c: c}
	c.Viewport = &ViewportAPI{Manager: delegate.NewManager(), c: c}

	c.mirror()
	return c, nil
}

// mirror creates host nodes for everything already in the session.
func (c *Core) mirror() {
	for _, p := range append(c.Session.Playlists(), c.Session.DeletedPlaylists()...) {
		c.Sync.PlaylistCreated(p)
		for _, clip := range p.Clips() {
			c.Sync.ClipCreated(clip)
		}
		c.Sync.SyncInputs(p)
	}
	c.Sync.ApplyBgMode(c.Session.Viewport.BgMode, c.Session.Fg(), c.Session.Bg())
	c.Session.RebuildTimeline()
}

// HandleEvent is the host's single entry point.
func (c *Core) HandleEvent(name string, args []string) string {
	return c.Surface.HandleEvent(name, args, nil)
}

// Close releases GL resources and waits for thumbnail fetches.
func (c *Core) Close() {
	if c.Bridge != nil {
		c.Bridge.Close()
	}
	c.Thumbnails.Wait()
}

// SessionID implements logging.SessionState.
func (c *Core) SessionID() string { return c.Session.ID }

// CurrentFrame implements logging.SessionState.
func (c *Core) CurrentFrame() int { return c.Session.Timeline.Current() }

// FgPlaylistID implements logging.SessionState.
func (c *Core) FgPlaylistID() string { return c.Session.Viewport.FgID }

func (c *Core) emit(ev signal.Event) {
	c.Signals.Emit(ev)
}

// refreshTimeline rebuilds the sequence after an active-set or key range
// change and re-announces the frame.
func (c *Core) refreshTimeline() {
	changed := c.Session.RebuildTimeline()
	c.emit(signal.Event{Kind: signal.TimelineModified})
	if changed {
		var ids []string
		if id := c.Session.Viewport.CurrentClipID; id != "" {
			ids = []string{id}
		}
		c.emit(signal.Event{Kind: signal.CurrentClipChanged, ClipIDs: ids})
	}
	c.Handlers.Invalidate()
	c.Handlers.FrameChanged(c.Session.Timeline.Current())
}

// repaint rewrites the host paint of clip at the source frame.
func (c *Core) repaint(clip *session.Clip, frame int) {
	c.Sync.WriteAnnotations(clip, frame, c.Session.Viewport.Feedback)
	c.Sync.Redraw()
}

// repaintCurrent rewrites the paint of the frame on screen.
func (c *Core) repaintCurrent() {
	clip := c.Session.CurrentClip()
	if clip == nil {
		c.Sync.Redraw()
		return
	}
	c.repaint(clip, c.Session.Timeline.CurrentClipFrame().Frame)
}

// RenderConfig converts the render and laser config sections into bridge
// settings.
func RenderConfig(r config.RenderConfig, l config.LaserConfig) render.Config {
	return render.Config{
		DebugMasks:     r.DebugMasks,
		MaskUnitBase:   r.MaskUnitBase,
		SSBOBinding:    r.SSBOBinding,
		PointDelay:     l.PointDelay,
		TrailDelay:     l.TrailDelay,
		TrailMaxPoints: l.TrailMaxPoints,
	}
}
