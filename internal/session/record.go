package session

import (
	"fmt"

	"github.com/rpa-review/sessioncore/internal/annotation"
	"github.com/rpa-review/sessioncore/internal/attr"
	"github.com/rpa-review/sessioncore/internal/colorcorrection"
	"github.com/rpa-review/sessioncore/internal/timeline"
	"github.com/rpa-review/sessioncore/internal/uid"
)

// KeyedRecord is the state of a keyable attribute.
type KeyedRecord struct {
	Value float64         `json:"value"`
	Keys  map[int]float64 `json:"key_values,omitempty"`
}

// ClipRecord is the primitive-only state of a clip.
type ClipRecord struct {
	ID          string                      `json:"id"`
	Attrs       map[string]any              `json:"attrs"`
	Keyed       map[string]KeyedRecord      `json:"keyed,omitempty"`
	Custom      map[string]any              `json:"custom,omitempty"`
	CCs         colorcorrection.StackRecord `json:"color_corrections"`
	Annotations annotation.LedgerRecord     `json:"annotations"`
}

// PlaylistRecord is the primitive-only state of a playlist.
type PlaylistRecord struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Clips  []ClipRecord   `json:"clips"`
	Active []string       `json:"active_clips,omitempty"`
	Custom map[string]any `json:"custom,omitempty"`
}

// AttrRecord is a user-defined attribute descriptor.
type AttrRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	ReadOnly bool   `json:"read_only,omitempty"`
	Keyable  bool   `json:"keyable,omitempty"`
	Default  any    `json:"default"`
}

// TimelineRecord is the persisted part of the timeline sub-state.
type TimelineRecord struct {
	Current int    `json:"current_frame"`
	Mode    string `json:"playback_mode"`
	Volume  int    `json:"volume"`
	Mute    bool   `json:"mute"`
}

// SessionRecord is the whole persisted session.
type SessionRecord struct {
	ID        string           `json:"id"`
	Playlists []PlaylistRecord `json:"playlists"`
	Deleted   []PlaylistRecord `json:"deleted_playlists,omitempty"`
	FgID      string           `json:"fg"`
	BgID      string           `json:"bg,omitempty"`
	BgMode    string           `json:"bg_mode"`
	FrameMode string           `json:"frame_mode"`
	Custom    map[string]any   `json:"custom,omitempty"`
	Attrs     []AttrRecord     `json:"user_attrs,omitempty"`
	Timeline  TimelineRecord   `json:"timeline"`
}

// State returns the clip's state record.
func (c *Clip) State() ClipRecord {
	r := ClipRecord{
		ID:          c.ID,
		Attrs:       make(map[string]any, len(c.attrs)),
		Custom:      make(map[string]any, len(c.Custom)),
		CCs:         c.CCs.State(),
		Annotations: c.Annotations.State(),
	}
	for k, v := range c.attrs {
		r.Attrs[k] = v
	}
	if len(c.keyed) > 0 {
		r.Keyed = make(map[string]KeyedRecord, len(c.keyed))
		for k, v := range c.keyed {
			r.Keyed[k] = KeyedRecord{Value: v.Value, Keys: v.KeyValues}
		}
	}
	for k, v := range c.Custom {
		r.Custom[k] = v
	}
	return r
}

// State returns the playlist's state record.
func (p *Playlist) State() PlaylistRecord {
	r := PlaylistRecord{ID: p.ID, Name: p.Name, Active: p.ActiveIDs(), Custom: p.Custom}
	for _, c := range p.clips {
		r.Clips = append(r.Clips, c.State())
	}
	return r
}

// State returns the session's state record.
func (s *Session) State() SessionRecord {
	r := SessionRecord{
		ID:        s.ID,
		FgID:      s.Viewport.FgID,
		BgID:      s.Viewport.BgID,
		BgMode:    s.Viewport.BgMode.String(),
		FrameMode: s.FrameMode.String(),
		Custom:    s.Custom,
		Timeline: TimelineRecord{
			Current: s.Timeline.Current(),
			Mode:    s.Timeline.Mode.String(),
			Volume:  s.Timeline.Audio.Volume,
			Mute:    s.Timeline.Audio.Mute,
		},
	}
	for _, p := range s.playlists {
		r.Playlists = append(r.Playlists, p.State())
	}
	for _, p := range s.deleted {
		r.Deleted = append(r.Deleted, p.State())
	}
	for _, id := range s.Attrs.IDs() {
		d, _ := s.Attrs.Get(id)
		if d.Category != attr.CategoryUserDefined {
			continue
		}
		r.Attrs = append(r.Attrs, AttrRecord{
			ID: d.ID, Name: d.Name, Type: string(d.Type),
			ReadOnly: d.ReadOnly, Keyable: d.Keyable, Default: d.Default,
		})
	}
	return r
}

// FromState rebuilds a session from its state record. Generators start from
// seeds; restored ids are reserved so new ids never collide with them.
func FromState(r SessionRecord, seeds Seeds, user string) (*Session, error) {
	s := New(Seeds{Playlist: seeds.Playlist, CC: seeds.CC, HTMLOverlay: seeds.HTMLOverlay, Session: r.ID}, user)
	if r.ID != "" {
		s.ID = r.ID
	}
	s.playlists = nil
	s.ids = uid.NewRegistry()
	s.ccIDs = uid.NewRegistry()

	for _, ar := range r.Attrs {
		s.Attrs.Add(attr.Descriptor{
			ID: ar.ID, Name: ar.Name, Type: attr.DataType(ar.Type),
			ReadOnly: ar.ReadOnly, Keyable: ar.Keyable, Default: ar.Default,
		})
	}

	var err error
	if s.playlists, err = s.restorePlaylists(r.Playlists); err != nil {
		return nil, err
	}
	if s.deleted, err = s.restorePlaylists(r.Deleted); err != nil {
		return nil, err
	}

	s.Viewport.FgID = r.FgID
	s.Viewport.BgID = r.BgID
	if r.BgMode != "" {
		if s.Viewport.BgMode, err = ParseBgMode(r.BgMode); err != nil {
			return nil, err
		}
	}
	if r.FrameMode != "" {
		if s.FrameMode, err = ParseFrameMode(r.FrameMode); err != nil {
			return nil, err
		}
	}
	if r.Timeline.Mode != "" {
		if s.Timeline.Mode, err = timeline.ParsePlaybackMode(r.Timeline.Mode); err != nil {
			return nil, err
		}
	}
	if err := s.Timeline.SetVolume(r.Timeline.Volume); err != nil {
		return nil, err
	}
	s.Timeline.Audio.Mute = r.Timeline.Mute
	for k, v := range r.Custom {
		s.Custom[k] = v
	}

	s.ensurePlaylist()
	s.RebuildTimeline()
	s.GotoFrame(r.Timeline.Current)
	return s, nil
}

func (s *Session) restorePlaylists(records []PlaylistRecord) ([]*Playlist, error) {
	var out []*Playlist
	for _, pr := range records {
		if !s.ids.Reserve(pr.ID) {
			return nil, fmt.Errorf("%w: playlist %s", ErrDuplicateID, pr.ID)
		}
		p := newPlaylist(pr.ID, pr.Name)
		for k, v := range pr.Custom {
			p.Custom[k] = v
		}
		for _, cr := range pr.Clips {
			c, err := s.restoreClip(p.ID, cr)
			if err != nil {
				return nil, fmt.Errorf("playlist %s: %w", pr.ID, err)
			}
			p.clips = append(p.clips, c)
		}
		p.renumber()
		p.setActive(pr.Active)
		out = append(out, p)
	}
	return out, nil
}

func (s *Session) restoreClip(playlistID string, r ClipRecord) (*Clip, error) {
	if !s.ids.Reserve(r.ID) {
		return nil, fmt.Errorf("%w: clip %s", ErrDuplicateID, r.ID)
	}
	path, _ := r.Attrs[attr.MediaPath].(string)
	c := newClip(r.ID, playlistID, path, s.Attrs, s.newStack(), s.user)
	for k, v := range r.Attrs {
		if k == attr.PlayOrder {
			continue
		}
		if err := c.SetAttr(k, v, true); err != nil {
			return nil, fmt.Errorf("clip %s: %w", r.ID, err)
		}
	}
	for k, kr := range r.Keyed {
		if err := c.SetAttr(k, kr.Value, true); err != nil {
			return nil, fmt.Errorf("clip %s: %w", r.ID, err)
		}
		if len(kr.Keys) > 0 {
			if err := c.SetAttrKeys(k, kr.Keys); err != nil {
				return nil, fmt.Errorf("clip %s: %w", r.ID, err)
			}
		}
	}
	for k, v := range r.Custom {
		c.Custom[k] = v
	}
	if err := c.CCs.SetState(r.CCs); err != nil {
		return nil, fmt.Errorf("clip %s: %w", r.ID, err)
	}
	if err := c.Annotations.SetState(r.Annotations); err != nil {
		return nil, fmt.Errorf("clip %s: %w", r.ID, err)
	}
	s.clips.Put(c.ID, c)
	return c, nil
}
