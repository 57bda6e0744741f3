// Package hostsync mirrors session changes into the host node graph: one
// source and stack group per clip, one sequence group per playlist, the
// default stack and layout used by background modes, and the paint-node
// properties that carry annotations.
package hostsync

import (
	"errors"
	"log/slog"

	"github.com/rpa-review/sessioncore/internal/attr"
	"github.com/rpa-review/sessioncore/internal/geo"
	"github.com/rpa-review/sessioncore/internal/session"
	"github.com/rpa-review/sessioncore/pkg/hostinterface"
)

// Host node and property names.
const (
	DefaultStack  = "defaultStack"
	DefaultLayout = "defaultLayout"

	clipIDFamily = "custom"
	clipIDField  = "rpa_clip_id"
)

// Dependencies holds what a Syncer needs.
type Dependencies struct {
	Host   hostinterface.Host
	Logger *slog.Logger
}

// Syncer writes session state into the host. Host failures are logged at
// Debug and otherwise ignored; host properties are optional.
type Syncer struct {
	host hostinterface.Host
	log  *slog.Logger

	pipTransforms []string
}

// New returns a Syncer.
func New(deps Dependencies) *Syncer {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{host: deps.Host, log: log.With("component", "hostsync")}
}

// Host returns the host the syncer writes to.
func (s *Syncer) Host() hostinterface.Host {
	return s.host
}

// suppress logs a host failure and reports whether err was one.
func (s *Syncer) suppress(op string, err error, args ...any) bool {
	if err == nil {
		return false
	}
	if !errors.Is(err, hostinterface.ErrHostCall) {
		s.log.Warn("unexpected host error", append([]any{"op", op, "error", err}, args...)...)
		return true
	}
	s.log.Debug("host call suppressed", append([]any{"op", op, "error", err}, args...)...)
	return true
}

func customString(c map[string]any, key string) string {
	v, _ := c[key].(string)
	return v
}

// SourceGroup returns the host source group of a clip, or "".
func SourceGroup(c *session.Clip) string {
	return customString(c.Custom, session.CustomSourceGroup)
}

// StackGroup returns the host stack group wrapping a clip, or "".
func StackGroup(c *session.Clip) string {
	return customString(c.Custom, session.CustomStackGroup)
}

// SequenceGroup returns the host sequence group of a playlist, or "".
func SequenceGroup(p *session.Playlist) string {
	return customString(p.Custom, session.CustomSequenceGroup)
}

// ClipCreated loads the clip's media, wraps it in a stack group and copies
// the media metadata onto the clip. It returns false when the host refused.
func (s *Syncer) ClipCreated(c *session.Clip) bool {
	sg, err := s.host.AddSource(c.Path())
	if s.suppress("AddSource", err, "clip", c.ID, "path", c.Path()) {
		return false
	}
	c.Custom[session.CustomSourceGroup] = sg

	stack, err := s.host.NewNode(hostinterface.NodeStackGroup, "")
	if !s.suppress("NewNode", err, "clip", c.ID) {
		c.Custom[session.CustomStackGroup] = stack
		s.suppress("SetNodeInputs", s.host.SetNodeInputs(stack, []string{sg}), "node", stack)
	}

	err = hostinterface.SetProperty(s.host, hostinterface.PropertyName(sg, clipIDFamily, clipIDField), c.ID, 1)
	s.suppress("SetProperty", err, "clip", c.ID)

	s.readMedia(c, sg)
	return true
}

func (s *Syncer) readMedia(c *session.Clip, sg string) {
	info, err := s.host.SourceMedia(sg)
	if s.suppress("SourceMedia", err, "source", sg) {
		return
	}
	set := func(id string, v any) {
		if err := c.SetAttr(id, v, true); err != nil {
			s.log.Debug("media attribute rejected", "clip", c.ID, "attr", id, "error", err)
		}
	}
	set(attr.MediaStartFrame, info.StartFrame)
	set(attr.MediaEndFrame, info.EndFrame)
	set(attr.Width, info.Width)
	set(attr.Height, info.Height)
	set(attr.FPS, info.FPS)
}

// ClipDeleted removes the clip's host nodes.
func (s *Syncer) ClipDeleted(c *session.Clip) {
	for _, node := range []string{StackGroup(c), SourceGroup(c)} {
		if node == "" || !s.host.NodeExists(node) {
			continue
		}
		s.suppress("DeleteNode", s.host.DeleteNode(node), "node", node)
	}
}

// ClipIDForSource looks a clip id up from its host source group.
func (s *Syncer) ClipIDForSource(sourceGroup string) (string, bool) {
	v, err := hostinterface.StringValue(s.host, hostinterface.PropertyName(sourceGroup, clipIDFamily, clipIDField))
	if s.suppress("StringProperty", err, "source", sourceGroup) {
		return "", false
	}
	return v, true
}

// PlaylistCreated creates the playlist's sequence group.
func (s *Syncer) PlaylistCreated(p *session.Playlist) {
	if SequenceGroup(p) != "" && s.host.NodeExists(SequenceGroup(p)) {
		return
	}
	seq, err := s.host.NewNode(hostinterface.NodeSequenceGroup, "")
	if s.suppress("NewNode", err, "playlist", p.ID) {
		return
	}
	p.Custom[session.CustomSequenceGroup] = seq
	s.SyncInputs(p)
}

// PlaylistDestroyed removes the playlist's sequence group. Soft-deleted
// playlists keep theirs so a restore has nothing to rebuild.
func (s *Syncer) PlaylistDestroyed(p *session.Playlist) {
	seq := SequenceGroup(p)
	if seq == "" || !s.host.NodeExists(seq) {
		return
	}
	s.suppress("DeleteNode", s.host.DeleteNode(seq), "node", seq)
}

// SyncInputs rewrites a sequence group's inputs from the active clip order.
func (s *Syncer) SyncInputs(p *session.Playlist) {
	seq := SequenceGroup(p)
	if seq == "" {
		return
	}
	var inputs []string
	for _, c := range p.ActiveClips() {
		if node := StackGroup(c); node != "" {
			inputs = append(inputs, node)
		}
	}
	s.suppress("SetNodeInputs", s.host.SetNodeInputs(seq, inputs), "node", seq)
}

// ImageGeometry returns the clip image's on-screen quad.
func (s *Syncer) ImageGeometry(c *session.Clip) (geo.Quad, bool) {
	sg := SourceGroup(c)
	if sg == "" {
		return geo.Quad{}, false
	}
	corners, err := s.host.ImageGeometry(sg)
	if s.suppress("ImageGeometry", err, "source", sg) {
		return geo.Quad{}, false
	}
	return geo.QuadFromCorners(corners), true
}

// Redraw asks the host to repaint.
func (s *Syncer) Redraw() {
	s.host.Redraw()
}
