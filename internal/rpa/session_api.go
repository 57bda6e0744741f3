package rpa

import (
	"context"
	"errors"

	"github.com/rpa-review/sessioncore/internal/attr"
	"github.com/rpa-review/sessioncore/internal/delegate"
	"github.com/rpa-review/sessioncore/internal/hostsync"
	"github.com/rpa-review/sessioncore/internal/session"
	"github.com/rpa-review/sessioncore/internal/signal"
	"github.com/rpa-review/sessioncore/internal/value"
)

// AttrValue is one attribute assignment of SetAttrValues.
type AttrValue = signal.AttrChange

// SessionAPI manages playlists, clips and clip attributes.
type SessionAPI struct {
	*delegate.Manager
	c *Core
}

// CreatePlaylists adds playlists at index (-1 appends) and returns their ids.
// ids may be nil. A supplied id already in use creates nothing.
func (a *SessionAPI) CreatePlaylists(names []string, index int, ids []string) ([]string, error) {
	return delegate.CallErr(a.Manager, "CreatePlaylists", []string(nil), func() ([]string, error) {
		s := a.c.Session
		out, err := s.CreatePlaylists(names, index, ids)
		if errors.Is(err, session.ErrDuplicateID) {
			a.c.log.Debug("playlist not created", "error", err)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		for _, id := range out {
			a.c.Sync.PlaylistCreated(s.Playlist(id))
		}
		a.c.emit(signal.Event{Kind: signal.PlaylistsModified})
		return out, nil
	}, names, index, ids)
}

// DeletePlaylists moves playlists to the deleted bin and returns the ids
// actually moved.
func (a *SessionAPI) DeletePlaylists(ids []string) []string {
	return delegate.Call(a.Manager, "DeletePlaylists", []string(nil), func() []string {
		s := a.c.Session
		fg := s.Viewport.FgID
		out := s.DeletePlaylists(ids)
		if len(out) == 0 {
			return nil
		}
		a.c.syncNewPlaylists()
		a.c.Sync.ApplyBgMode(s.Viewport.BgMode, s.Fg(), s.Bg())
		a.c.emit(signal.Event{Kind: signal.PlaylistsModified})
		if fg != s.Viewport.FgID {
			a.c.refreshTimeline()
		}
		return out
	}, ids)
}

// RestorePlaylists moves deleted playlists back at index.
func (a *SessionAPI) RestorePlaylists(ids []string, index int) []string {
	return delegate.Call(a.Manager, "RestorePlaylists", []string(nil), func() []string {
		out := a.c.Session.RestorePlaylists(ids, index)
		if len(out) == 0 {
			return nil
		}
		for _, id := range out {
			p := a.c.Session.Playlist(id)
			a.c.Sync.PlaylistCreated(p)
			a.c.Sync.SyncInputs(p)
		}
		a.c.emit(signal.Event{Kind: signal.PlaylistsModified})
		return out
	}, ids, index)
}

// ClearPlaylists destroys every playlist and clip and returns the id of the
// empty playlist that replaces them.
func (a *SessionAPI) ClearPlaylists() string {
	return delegate.Call(a.Manager, "ClearPlaylists", "", func() string {
		s := a.c.Session
		var clipIDs []string
		for _, p := range append(s.Playlists(), s.DeletedPlaylists()...) {
			for _, c := range p.Clips() {
				a.c.Sync.ClipDeleted(c)
				clipIDs = append(clipIDs, c.ID)
			}
			a.c.Sync.PlaylistDestroyed(p)
		}
		id := s.ClearPlaylists()
		a.c.syncNewPlaylists()
		a.c.Sync.ApplyBgMode(s.Viewport.BgMode, s.Fg(), s.Bg())
		if len(clipIDs) > 0 {
			a.c.emit(signal.Event{Kind: signal.ClipsDeleted, ClipIDs: clipIDs})
		}
		a.c.emit(signal.Event{Kind: signal.PlaylistsModified})
		a.c.refreshTimeline()
		return id
	})
}

// syncNewPlaylists creates host nodes for playlists the session made on its
// own to stay non-empty.
func (c *Core) syncNewPlaylists() {
	for _, p := range c.Session.Playlists() {
		if hostsync.SequenceGroup(p) == "" {
			c.Sync.PlaylistCreated(p)
		}
	}
}

// SetPlaylistName renames a playlist.
func (a *SessionAPI) SetPlaylistName(id, name string) bool {
	return delegate.Call(a.Manager, "SetPlaylistName", false, func() bool {
		if !a.c.Session.SetPlaylistName(id, name) {
			return false
		}
		a.c.emit(signal.Event{Kind: signal.PlaylistModified, PlaylistID: id})
		return true
	}, id, name)
}

// GetPlaylists returns the active playlist ids in order.
func (a *SessionAPI) GetPlaylists() []string {
	return a.c.Session.PlaylistIDs()
}

// GetDeletedPlaylists returns the ids in the deleted bin.
func (a *SessionAPI) GetDeletedPlaylists() []string {
	return a.c.Session.DeletedPlaylistIDs()
}

// GetPlaylistName returns a playlist's name, or "".
func (a *SessionAPI) GetPlaylistName(id string) string {
	for _, p := range append(a.c.Session.Playlists(), a.c.Session.DeletedPlaylists()...) {
		if p.ID == id {
			return p.Name
		}
	}
	return ""
}

// SetFgPlaylist shows a playlist in the foreground.
func (a *SessionAPI) SetFgPlaylist(id string) bool {
	return delegate.Call(a.Manager, "SetFgPlaylist", false, func() bool {
		s := a.c.Session
		if s.Viewport.FgID == id {
			return true
		}
		if !s.SetFg(id) {
			return false
		}
		a.c.Sync.ApplyBgMode(s.Viewport.BgMode, s.Fg(), s.Bg())
		a.c.emit(signal.Event{Kind: signal.ViewportModified, PlaylistID: id})
		a.c.refreshTimeline()
		return true
	}, id)
}

// SetBgPlaylist sets the background playlist; "" clears it.
func (a *SessionAPI) SetBgPlaylist(id string) bool {
	return delegate.Call(a.Manager, "SetBgPlaylist", false, func() bool {
		s := a.c.Session
		if !s.SetBg(id) {
			return false
		}
		a.c.Sync.ApplyBgMode(s.Viewport.BgMode, s.Fg(), s.Bg())
		a.c.emit(signal.Event{Kind: signal.ViewportModified, PlaylistID: id})
		return true
	}, id)
}

// GetFgPlaylist returns the foreground playlist id.
func (a *SessionAPI) GetFgPlaylist() string {
	return a.c.Session.Viewport.FgID
}

// GetBgPlaylist returns the background playlist id, or "".
func (a *SessionAPI) GetBgPlaylist() string {
	return a.c.Session.Viewport.BgID
}

// CreateClips loads paths into a playlist at index (-1 appends). Progress is
// emitted per clip; clips the host refuses stay in the model without nodes.
func (a *SessionAPI) CreateClips(playlistID string, paths []string, index int) ([]string, error) {
	return delegate.CallErr(a.Manager, "CreateClips", []string(nil), func() ([]string, error) {
		s := a.c.Session
		p := s.Playlist(playlistID)
		if p == nil {
			return nil, nil
		}
		var out []string
		var firstErr error
		a.c.Signals.EmitProgress(len(paths), func(i int) {
			if firstErr != nil {
				return
			}
			at := index
			if at >= 0 {
				at = index + i
			}
			c, err := s.CreateClip(playlistID, paths[i], "", at)
			if err != nil {
				firstErr = err
				return
			}
			if !a.c.Sync.ClipCreated(c) {
				a.c.log.Warn("host refused clip", "clip", c.ID, "path", paths[i])
			}
			a.c.Thumbnails.RequestClip(context.Background(), c)
			out = append(out, c.ID)
		})
		if len(out) > 0 {
			a.c.Sync.SyncInputs(p)
			a.c.emit(signal.Event{Kind: signal.PlaylistModified, PlaylistID: playlistID, ClipIDs: out})
			if playlistID == s.Viewport.FgID {
				a.c.refreshTimeline()
			}
		}
		return out, firstErr
	}, playlistID, paths, index)
}

// DeleteClips destroys clips and returns the ids that existed.
func (a *SessionAPI) DeleteClips(ids []string) []string {
	return delegate.Call(a.Manager, "DeleteClips", []string(nil), func() []string {
		s := a.c.Session
		touched := make(map[string]bool)
		for _, id := range ids {
			if c := s.Clip(id); c != nil {
				a.c.Sync.ClipDeleted(c)
				touched[c.PlaylistID] = true
			}
		}
		out := s.DeleteClips(ids)
		if len(out) == 0 {
			return nil
		}
		a.c.afterClipMove(touched)
		a.c.emit(signal.Event{Kind: signal.ClipsDeleted, ClipIDs: out})
		if touched[s.Viewport.FgID] {
			a.c.refreshTimeline()
		}
		return out
	}, ids)
}

// afterClipMove rewires and announces every playlist in touched.
func (c *Core) afterClipMove(touched map[string]bool) {
	for _, p := range c.Session.Playlists() {
		if touched[p.ID] {
			c.Sync.SyncInputs(p)
			c.emit(signal.Event{Kind: signal.PlaylistModified, PlaylistID: p.ID})
		}
	}
}

// MoveClips moves clips to index of a playlist keeping their ids.
func (a *SessionAPI) MoveClips(playlistID string, index int, ids []string) []string {
	return delegate.Call(a.Manager, "MoveClips", []string(nil), func() []string {
		s := a.c.Session
		touched := map[string]bool{playlistID: true}
		for _, id := range ids {
			if c := s.Clip(id); c != nil {
				touched[c.PlaylistID] = true
			}
		}
		out, err := s.MoveClips(playlistID, index, ids)
		if err != nil {
			a.c.log.Debug("clips not moved", "error", err)
			return nil
		}
		a.c.afterClipMove(touched)
		if touched[s.Viewport.FgID] {
			a.c.refreshTimeline()
		}
		return out
	}, playlistID, index, ids)
}

// CopyClips duplicates clips into a playlist and returns the new ids.
func (a *SessionAPI) CopyClips(playlistID string, index int, ids []string) []string {
	return delegate.Call(a.Manager, "CopyClips", []string(nil), func() []string {
		s := a.c.Session
		out, err := s.CopyClips(playlistID, index, ids)
		if err != nil {
			a.c.log.Debug("clips not copied", "error", err)
			return nil
		}
		for _, id := range out {
			a.c.Sync.ClipCreated(s.Clip(id))
		}
		a.c.afterClipMove(map[string]bool{playlistID: true})
		if playlistID == s.Viewport.FgID {
			a.c.refreshTimeline()
		}
		return out
	}, playlistID, index, ids)
}

// GetClips returns a playlist's clip ids in order.
func (a *SessionAPI) GetClips(playlistID string) []string {
	p := a.c.Session.Playlist(playlistID)
	if p == nil {
		return nil
	}
	return p.ClipIDs()
}

// SetActiveClips replaces a playlist's active set. An empty set makes every
// clip active.
func (a *SessionAPI) SetActiveClips(playlistID string, ids []string) bool {
	return delegate.Call(a.Manager, "SetActiveClips", false, func() bool {
		s := a.c.Session
		if !s.SetActiveClips(playlistID, ids) {
			return false
		}
		p := s.Playlist(playlistID)
		a.c.Sync.SyncInputs(p)
		a.c.emit(signal.Event{Kind: signal.ActiveClipsChanged, PlaylistID: playlistID, ClipIDs: p.ActiveIDs()})
		if playlistID == s.Viewport.FgID {
			a.c.refreshTimeline()
		}
		return true
	}, playlistID, ids)
}

// GetActiveClips returns the active clip ids in play order.
func (a *SessionAPI) GetActiveClips(playlistID string) []string {
	p := a.c.Session.Playlist(playlistID)
	if p == nil {
		return nil
	}
	clips := p.ActiveClips()
	out := make([]string, len(clips))
	for i, c := range clips {
		out[i] = c.ID
	}
	return out
}

// SetAttrValues assigns attribute values and emits one batched change for
// those that were applied. Unknown clips and read-only attributes are skipped;
// a value of the wrong type fails the call before anything is applied.
func (a *SessionAPI) SetAttrValues(values []AttrValue) error {
	_, err := delegate.CallErr(a.Manager, "SetAttrValues", false, func() (bool, error) {
		s := a.c.Session
		for _, v := range values {
			c := s.Clip(v.ClipID)
			if c == nil {
				continue
			}
			d, ok := s.Attrs.Get(v.AttrID)
			if !ok {
				continue
			}
			if err := d.Check(normalizeAttr(d, v.Value)); err != nil {
				return false, err
			}
		}

		var applied []AttrValue
		retime := false
		for _, v := range values {
			c := s.Clip(v.ClipID)
			if c == nil {
				continue
			}
			if err := c.SetAttr(v.AttrID, v.Value, false); err != nil {
				a.c.log.Debug("attribute not set", "clip", v.ClipID, "attr", v.AttrID, "error", err)
				continue
			}
			v.PlaylistID = c.PlaylistID
			v.Value, _ = c.Attr(v.AttrID)
			applied = append(applied, v)
			switch v.AttrID {
			case attr.KeyIn, attr.KeyOut:
				retime = retime || c.PlaylistID == s.Viewport.FgID
			case attr.ThumbnailURL:
				a.c.Thumbnails.RequestClip(context.Background(), c)
			}
		}
		if len(applied) == 0 {
			return false, nil
		}
		a.c.emit(signal.Event{Kind: signal.AttrValuesChanged, Attrs: applied})
		if retime {
			a.c.refreshTimeline()
		}
		return true, nil
	}, values)
	return err
}

func normalizeAttr(d attr.Descriptor, v any) any {
	if n, ok := v.(float64); ok && d.Type == attr.Int && n == float64(int(n)) {
		return int(n)
	}
	return v
}

// GetAttrValue returns a clip attribute, or nil.
func (a *SessionAPI) GetAttrValue(clipID, attrID string) any {
	c := a.c.Session.Clip(clipID)
	if c == nil {
		return nil
	}
	v, _ := c.Attr(attrID)
	return v
}

// GetAttrValueAt returns a clip attribute at a source frame.
func (a *SessionAPI) GetAttrValueAt(clipID, attrID string, frame int) any {
	c := a.c.Session.Clip(clipID)
	if c == nil {
		return nil
	}
	v, _ := c.AttrAt(attrID, frame)
	return v
}

// SetAttrKeys replaces the key table of a keyable attribute.
func (a *SessionAPI) SetAttrKeys(clipID, attrID string, keys map[int]float64) error {
	_, err := delegate.CallErr(a.Manager, "SetAttrKeys", false, func() (bool, error) {
		c := a.c.Session.Clip(clipID)
		if c == nil {
			return false, nil
		}
		if err := c.SetAttrKeys(attrID, keys); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		a.c.emit(signal.Event{Kind: signal.AttrValuesChanged, Attrs: []AttrValue{{
			PlaylistID: c.PlaylistID,
			ClipID:     clipID,
			AttrID:     attrID,
			Value:      c.Keyed(attrID).KeyValues,
		}}})
		return true, nil
	}, clipID, attrID, keys)
	return err
}

// SetCustomAttr stores a custom value on a clip.
func (a *SessionAPI) SetCustomAttr(clipID, key string, v any) bool {
	return delegate.Call(a.Manager, "SetCustomAttr", false, func() bool {
		c := a.c.Session.Clip(clipID)
		if c == nil {
			return false
		}
		c.Custom[key] = v
		a.c.emit(signal.Event{Kind: signal.AttrValuesChanged, Attrs: []AttrValue{{
			PlaylistID: c.PlaylistID, ClipID: clipID, AttrID: key, Value: v,
		}}})
		return true
	}, clipID, key, v)
}

// GetCustomAttr returns a clip's custom value, or nil.
func (a *SessionAPI) GetCustomAttr(clipID, key string) any {
	c := a.c.Session.Clip(clipID)
	if c == nil {
		return nil
	}
	return c.Custom[key]
}

// SetSessionAttr stores a session-scoped custom value.
func (a *SessionAPI) SetSessionAttr(key string, v any) {
	delegate.Call(a.Manager, "SetSessionAttr", false, func() bool {
		a.c.Session.Custom[key] = v
		return true
	}, key, v)
}

// AddAttr registers a user-defined attribute.
func (a *SessionAPI) AddAttr(d attr.Descriptor) bool {
	return delegate.Call(a.Manager, "AddAttr", false, func() bool {
		return a.c.Session.Attrs.Add(d)
	}, d)
}

// SetCurrentFrameMode changes how the current frame follows sequence changes.
// Modes outside the known range are refused.
func (a *SessionAPI) SetCurrentFrameMode(mode session.FrameMode) (bool, error) {
	return delegate.CallErr(a.Manager, "SetCurrentFrameMode", false, func() (bool, error) {
		if err := value.RangeInt("frame mode", int(mode), int(session.SequenceDefault), int(session.ActiveClipOnly)); err != nil {
			return false, err
		}
		a.c.Session.FrameMode = mode
		a.c.refreshTimeline()
		return true, nil
	}, mode)
}

// GetCurrentClip returns the id of the clip under the current frame.
func (a *SessionAPI) GetCurrentClip() string {
	return a.c.Session.Viewport.CurrentClipID
}
