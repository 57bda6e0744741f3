// Package session is the authoritative review state: playlists of clips with
// their attributes, annotations and color corrections, plus the viewport and
// timeline sub-states. It performs no host calls and emits no notifications;
// the API layer does both after each mutation.
package session

import (
	"errors"
	"fmt"

	"github.com/rpa-review/sessioncore/internal/attr"
	"github.com/rpa-review/sessioncore/internal/cache"
	"github.com/rpa-review/sessioncore/internal/colorcorrection"
	"github.com/rpa-review/sessioncore/internal/timeline"
	"github.com/rpa-review/sessioncore/internal/uid"
	"github.com/rpa-review/sessioncore/internal/value"
)

var (
	// ErrNotFound is returned when a requested id is absent.
	ErrNotFound = errors.New("not found")
	// ErrReadOnly is returned when writing a read-only attribute.
	ErrReadOnly = errors.New("attribute is read-only")
	// ErrDuplicateID is returned when a caller-supplied id is already in use.
	ErrDuplicateID = errors.New("duplicate id")
)

// DefaultPlaylistName is used for playlists created to keep the session non-empty.
const DefaultPlaylistName = "New Playlist"

// FrameMode decides which frame becomes current when the sequence changes.
type FrameMode int

const (
	SequenceDefault FrameMode = iota
	FirstClip
	ActiveClipOnly
)

var frameModeNames = []string{"SEQUENCE_DEFAULT", "FIRST_CLIP", "ACTIVE_CLIP_ONLY"}

func (m FrameMode) String() string {
	if m >= 0 && int(m) < len(frameModeNames) {
		return frameModeNames[m]
	}
	return "UNKNOWN"
}

// ParseFrameMode converts a mode name.
func ParseFrameMode(s string) (FrameMode, error) {
	for i, n := range frameModeNames {
		if n == s {
			return FrameMode(i), nil
		}
	}
	return SequenceDefault, fmt.Errorf("%w: frame mode %q", value.ErrInvalidArgument, s)
}

// Seeds holds the deterministic id seeds. Empty seeds mean random ids.
type Seeds struct {
	Playlist    string
	CC          string
	HTMLOverlay string
	Session     string
}

// Session is the top-level container.
type Session struct {
	ID        string
	Viewport  *Viewport
	Timeline  *timeline.Index
	Attrs     *attr.Registry
	Custom    map[string]any
	FrameMode FrameMode

	user      string
	playlists []*Playlist
	deleted   []*Playlist
	clips     *cache.Index[string, *Clip]

	ids        *uid.Registry
	ccIDs      *uid.Registry
	idGen      *uid.Generator
	ccGen      *uid.Generator
	overlayGen *uid.Generator
}

// New returns a session holding one empty playlist in the foreground.
func New(seeds Seeds, user string) *Session {
	s := &Session{
		Viewport:   newViewport(),
		Timeline:   timeline.New(),
		Attrs:      attr.NewRegistry(),
		Custom:     make(map[string]any),
		user:       user,
		clips:      cache.NewIndex[string, *Clip](),
		ids:        uid.NewRegistry(),
		ccIDs:      uid.NewRegistry(),
		idGen:      uid.NewGenerator(seeds.Playlist),
		ccGen:      uid.NewGenerator(seeds.CC),
		overlayGen: uid.NewGenerator(seeds.HTMLOverlay),
	}
	switch {
	case uid.Valid(seeds.Session):
		s.ID = seeds.Session
	case seeds.Session != "":
		s.ID = uid.NewGenerator(seeds.Session).Next()
	default:
		s.ID = uid.Random()
	}
	s.ensurePlaylist()
	return s
}

// User returns the creator recorded on new annotations.
func (s *Session) User() string { return s.user }

// SetUser changes the creator for new annotations on every clip.
func (s *Session) SetUser(user string) {
	s.user = user
	for _, p := range s.allPlaylists() {
		for _, c := range p.clips {
			c.Annotations.SetUser(user)
		}
	}
}

func (s *Session) allPlaylists() []*Playlist {
	return append(append([]*Playlist(nil), s.playlists...), s.deleted...)
}

func (s *Session) nextID() string {
	for {
		id := s.idGen.Next()
		if s.ids.Reserve(id) {
			return id
		}
	}
}

// NextOverlayID returns the next HTML overlay id.
func (s *Session) NextOverlayID() string {
	return s.overlayGen.Next()
}

// ensurePlaylist keeps at least one active playlist and a valid foreground.
// It returns the id of a playlist it had to create, or "".
func (s *Session) ensurePlaylist() string {
	created := ""
	if len(s.playlists) == 0 {
		p := newPlaylist(s.nextID(), DefaultPlaylistName)
		s.playlists = append(s.playlists, p)
		created = p.ID
	}
	if s.Playlist(s.Viewport.FgID) == nil {
		s.Viewport.FgID = s.playlists[0].ID
	}
	if s.Viewport.BgID != "" && (s.Viewport.BgID == s.Viewport.FgID || s.Playlist(s.Viewport.BgID) == nil) {
		s.Viewport.BgID = ""
	}
	return created
}

// Playlists returns the active playlists in order.
func (s *Session) Playlists() []*Playlist {
	return append([]*Playlist(nil), s.playlists...)
}

// PlaylistIDs returns the active playlist ids in order.
func (s *Session) PlaylistIDs() []string {
	return playlistIDs(s.playlists)
}

// DeletedPlaylists returns the soft-deleted playlists in deletion order.
func (s *Session) DeletedPlaylists() []*Playlist {
	return append([]*Playlist(nil), s.deleted...)
}

// DeletedPlaylistIDs returns the soft-deleted playlist ids.
func (s *Session) DeletedPlaylistIDs() []string {
	return playlistIDs(s.deleted)
}

func playlistIDs(ps []*Playlist) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

// Playlist returns an active playlist by id.
func (s *Session) Playlist(id string) *Playlist {
	for _, p := range s.playlists {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Fg returns the foreground playlist.
func (s *Session) Fg() *Playlist {
	return s.Playlist(s.Viewport.FgID)
}

// Bg returns the background playlist, or nil.
func (s *Session) Bg() *Playlist {
	if s.Viewport.BgID == "" {
		return nil
	}
	return s.Playlist(s.Viewport.BgID)
}

func insertPlaylists(list []*Playlist, index int, ps []*Playlist) []*Playlist {
	if index < 0 || index > len(list) {
		index = len(list)
	}
	tail := append([]*Playlist(nil), list[index:]...)
	return append(append(list[:index], ps...), tail...)
}

// CreatePlaylists adds playlists at index and returns their ids. ids may be
// nil or hold one entry per name; an empty entry is generated. Nothing is
// created when a supplied id is already in use.
func (s *Session) CreatePlaylists(names []string, index int, ids []string) ([]string, error) {
	if ids != nil && len(ids) != len(names) {
		return nil, fmt.Errorf("%w: %d names but %d ids", value.ErrInvalidArgument, len(names), len(ids))
	}
	seen := make(map[string]bool)
	for _, id := range ids {
		if id == "" {
			continue
		}
		if seen[id] || s.ids.Taken(id) {
			return nil, fmt.Errorf("%w: playlist %s", ErrDuplicateID, id)
		}
		seen[id] = true
	}
	created := make([]*Playlist, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		id := ""
		if ids != nil {
			id = ids[i]
		}
		if id == "" {
			id = s.nextID()
		} else {
			s.ids.Reserve(id)
		}
		created[i] = newPlaylist(id, name)
		out[i] = id
	}
	s.playlists = insertPlaylists(s.playlists, index, created)
	return out, nil
}

// SetPlaylistName renames an active or deleted playlist.
func (s *Session) SetPlaylistName(id, name string) bool {
	for _, p := range s.allPlaylists() {
		if p.ID == id {
			p.Name = name
			return true
		}
	}
	return false
}

// DeletePlaylists moves playlists to the deleted bin and returns the ids that
// were active. The last playlist is replaced by a new empty one.
func (s *Session) DeletePlaylists(ids []string) []string {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var out []string
	kept := s.playlists[:0]
	for _, p := range s.playlists {
		if drop[p.ID] {
			s.deleted = append(s.deleted, p)
			out = append(out, p.ID)
			continue
		}
		kept = append(kept, p)
	}
	s.playlists = kept
	s.ensurePlaylist()
	return out
}

// RestorePlaylists moves deleted playlists back to the active list at index.
// Their clips come back untouched.
func (s *Session) RestorePlaylists(ids []string, index int) []string {
	var restored []*Playlist
	for _, id := range ids {
		for i, p := range s.deleted {
			if p.ID == id {
				restored = append(restored, p)
				s.deleted = append(s.deleted[:i], s.deleted[i+1:]...)
				break
			}
		}
	}
	s.playlists = insertPlaylists(s.playlists, index, restored)
	return playlistIDs(restored)
}

// ClearPlaylists destroys every playlist, active and deleted, with their
// clips, and returns the id of the replacement playlist.
func (s *Session) ClearPlaylists() string {
	for _, p := range s.allPlaylists() {
		s.destroyClips(p.clips)
		s.ids.Release(p.ID)
	}
	s.playlists = nil
	s.deleted = nil
	s.Viewport.CurrentClipID = ""
	return s.ensurePlaylist()
}

// SetFg makes an active playlist the foreground. A background equal to it is
// cleared.
func (s *Session) SetFg(id string) bool {
	if s.Playlist(id) == nil {
		return false
	}
	s.Viewport.FgID = id
	if s.Viewport.BgID == id {
		s.Viewport.BgID = ""
	}
	return true
}

// SetBg sets the background playlist; "" clears it. The foreground cannot
// also be the background.
func (s *Session) SetBg(id string) bool {
	if id == "" {
		s.Viewport.BgID = ""
		return true
	}
	if id == s.Viewport.FgID || s.Playlist(id) == nil {
		return false
	}
	s.Viewport.BgID = id
	return true
}

// Clip returns any live clip by id.
func (s *Session) Clip(id string) *Clip {
	c, _ := s.clips.Get(id)
	return c
}

// ClipCount returns the number of live clips.
func (s *Session) ClipCount() int {
	return s.clips.Len()
}

func (s *Session) newStack() *colorcorrection.Stack {
	return colorcorrection.NewStack(s.ccGen, s.ccIDs)
}

// CreateClip adds one clip for path at index of playlist. An empty id is
// generated from the playlist seed.
func (s *Session) CreateClip(playlistID, path, id string, index int) (*Clip, error) {
	p := s.Playlist(playlistID)
	if p == nil {
		return nil, fmt.Errorf("%w: playlist %s", ErrNotFound, playlistID)
	}
	if id == "" {
		id = s.nextID()
	} else if !s.ids.Reserve(id) {
		return nil, fmt.Errorf("%w: clip %s", ErrDuplicateID, id)
	}
	c := newClip(id, p.ID, path, s.Attrs, s.newStack(), s.user)
	s.clips.Put(id, c)
	p.insert(index, []*Clip{c})
	return c, nil
}

// CreateClips adds clips for paths in order starting at index.
func (s *Session) CreateClips(playlistID string, paths []string, index int) ([]*Clip, error) {
	out := make([]*Clip, 0, len(paths))
	for i, path := range paths {
		at := index
		if at >= 0 {
			at = index + i
		}
		c, err := s.CreateClip(playlistID, path, "", at)
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}

// DeleteClips destroys clips and removes them from the clip index.
func (s *Session) DeleteClips(ids []string) []string {
	var out []string
	for _, id := range ids {
		c := s.Clip(id)
		if c == nil {
			continue
		}
		if p := s.owner(c); p != nil {
			p.remove([]string{id})
		}
		s.destroyClips([]*Clip{c})
		out = append(out, id)
	}
	return out
}

func (s *Session) destroyClips(clips []*Clip) {
	for _, c := range clips {
		c.CCs.Release()
		s.clips.Delete(c.ID)
		s.ids.Release(c.ID)
		if s.Viewport.CurrentClipID == c.ID {
			s.Viewport.CurrentClipID = ""
		}
	}
}

func (s *Session) owner(c *Clip) *Playlist {
	for _, p := range s.allPlaylists() {
		if p.ID == c.PlaylistID {
			return p
		}
	}
	return nil
}

// MoveClips moves clips, in the given order, to index of playlist. The clip
// objects and their ids are kept.
func (s *Session) MoveClips(playlistID string, index int, ids []string) ([]string, error) {
	dst := s.Playlist(playlistID)
	if dst == nil {
		return nil, fmt.Errorf("%w: playlist %s", ErrNotFound, playlistID)
	}
	var moving []*Clip
	for _, id := range ids {
		c := s.Clip(id)
		if c == nil {
			continue
		}
		if c.PlaylistID == dst.ID {
			if i := dst.indexOf(id); i >= 0 && i < index {
				index--
			}
		}
		if p := s.owner(c); p != nil {
			p.remove([]string{id})
		}
		moving = append(moving, c)
	}
	dst.insert(index, moving)
	out := make([]string, len(moving))
	for i, c := range moving {
		out[i] = c.ID
	}
	return out, nil
}

// CopyClips duplicates clips into playlist at index and returns the new ids.
func (s *Session) CopyClips(playlistID string, index int, ids []string) ([]string, error) {
	dst := s.Playlist(playlistID)
	if dst == nil {
		return nil, fmt.Errorf("%w: playlist %s", ErrNotFound, playlistID)
	}
	var copies []*Clip
	for _, id := range ids {
		c := s.Clip(id)
		if c == nil {
			continue
		}
		n := c.clone(s.nextID(), dst.ID, s.newStack())
		s.clips.Put(n.ID, n)
		copies = append(copies, n)
	}
	dst.insert(index, copies)
	out := make([]string, len(copies))
	for i, c := range copies {
		out[i] = c.ID
	}
	return out, nil
}

// SetActiveClips replaces the active set of a playlist.
func (s *Session) SetActiveClips(playlistID string, ids []string) bool {
	p := s.Playlist(playlistID)
	if p == nil {
		return false
	}
	p.setActive(ids)
	return true
}

// CurrentClip returns the clip under the current frame, or nil.
func (s *Session) CurrentClip() *Clip {
	return s.Clip(s.Viewport.CurrentClipID)
}

// RebuildTimeline renumbers the sequence from the foreground's active clips
// and updates the current clip. It returns true when the current clip changed.
func (s *Session) RebuildTimeline() bool {
	var ranges []timeline.ClipRange
	if fg := s.Fg(); fg != nil {
		active := fg.ActiveClips()
		if s.FrameMode == ActiveClipOnly && len(active) > 0 {
			pick := active[0]
			for _, c := range active {
				if c.ID == s.Viewport.CurrentClipID {
					pick = c
				}
			}
			active = []*Clip{pick}
		}
		for _, c := range active {
			in, out := c.KeyRange()
			ranges = append(ranges, timeline.ClipRange{ID: c.ID, KeyIn: in, KeyOut: out})
		}
	}
	s.Timeline.Rebuild(ranges)
	if s.FrameMode == FirstClip {
		s.Timeline.Goto(1)
	}
	return s.syncCurrentClip()
}

// GotoFrame moves the timeline and returns true when the current clip changed.
func (s *Session) GotoFrame(seq int) bool {
	s.Timeline.Goto(seq)
	return s.syncCurrentClip()
}

func (s *Session) syncCurrentClip() bool {
	id := s.Timeline.CurrentClipFrame().ClipID
	if id == s.Viewport.CurrentClipID {
		return false
	}
	s.Viewport.CurrentClipID = id
	return true
}
