package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpa-review/sessioncore/internal/annotation"
	"github.com/rpa-review/sessioncore/internal/attr"
	"github.com/rpa-review/sessioncore/internal/colorcorrection"
	"github.com/rpa-review/sessioncore/internal/uid"
	"github.com/rpa-review/sessioncore/internal/value"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return New(Seeds{Playlist: "pl-seed", CC: "cc-seed", HTMLOverlay: "ov-seed"}, "reviewer")
}

func TestNew_HasForegroundPlaylist(t *testing.T) {
	s := newTestSession(t)

	require.Len(t, s.Playlists(), 1)
	assert.Equal(t, DefaultPlaylistName, s.Playlists()[0].Name)
	assert.Equal(t, s.Playlists()[0].ID, s.Viewport.FgID)
	assert.Empty(t, s.Viewport.BgID)
	assert.True(t, uid.Valid(s.ID))
}

func TestNew_DeterministicIDs(t *testing.T) {
	a := newTestSession(t)
	b := newTestSession(t)
	assert.Equal(t, a.PlaylistIDs(), b.PlaylistIDs())

	sid := New(Seeds{Session: "0123456789abcdef0123456789abcdef"}, "")
	assert.Equal(t, "0123456789abcdef0123456789abcdef", sid.ID)
}

func TestCreateClips_SeedsPlayOrder(t *testing.T) {
	s := newTestSession(t)
	ids, err := s.CreatePlaylists([]string{"dailies"}, -1, nil)
	require.NoError(t, err)

	clips, err := s.CreateClips(ids[0], []string{"a", "b", "c"}, -1)
	require.NoError(t, err)
	require.Len(t, clips, 3)

	for i, c := range clips {
		assert.Equal(t, i+1, c.Int(attr.PlayOrder))
		assert.Same(t, c, s.Clip(c.ID))
		assert.Equal(t, ids[0], c.PlaylistID)
	}
	assert.Equal(t, "b", clips[1].Path())
	assert.Equal(t, 3, s.ClipCount())
}

func TestCreateClip_InsertRenumbers(t *testing.T) {
	s := newTestSession(t)
	pl := s.Viewport.FgID
	clips, err := s.CreateClips(pl, []string{"a", "b"}, -1)
	require.NoError(t, err)

	c, err := s.CreateClip(pl, "first", "", 0)
	require.NoError(t, err)

	assert.Equal(t, 1, c.Int(attr.PlayOrder))
	assert.Equal(t, 2, clips[0].Int(attr.PlayOrder))
	assert.Equal(t, 3, clips[1].Int(attr.PlayOrder))
}

func TestCreateClip_Errors(t *testing.T) {
	s := newTestSession(t)
	_, err := s.CreateClip("missing", "a", "", -1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.CreateClip(s.Viewport.FgID, "a", "clip-1", -1)
	require.NoError(t, err)
	_, err = s.CreateClip(s.Viewport.FgID, "b", "clip-1", -1)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestDeletePlaylists_KeepsOneActive(t *testing.T) {
	s := newTestSession(t)
	only := s.Viewport.FgID

	deleted := s.DeletePlaylists([]string{only})

	assert.Equal(t, []string{only}, deleted)
	require.Len(t, s.Playlists(), 1)
	assert.NotEqual(t, only, s.Playlists()[0].ID)
	assert.Equal(t, DefaultPlaylistName, s.Playlists()[0].Name)
	assert.Equal(t, s.Playlists()[0].ID, s.Viewport.FgID)
	assert.Equal(t, []string{only}, s.DeletedPlaylistIDs())
}

func TestDeleteRestore_RelinksClips(t *testing.T) {
	s := newTestSession(t)
	ids, err := s.CreatePlaylists([]string{"one", "two"}, -1, nil)
	require.NoError(t, err)
	clips, err := s.CreateClips(ids[0], []string{"a", "b"}, -1)
	require.NoError(t, err)
	require.True(t, s.SetBg(ids[0]))

	s.DeletePlaylists([]string{ids[0]})
	assert.Empty(t, s.Viewport.BgID, "deleted background is cleared")
	assert.Same(t, clips[0], s.Clip(clips[0].ID), "clips in the bin stay indexed")

	restored := s.RestorePlaylists([]string{ids[0]}, 0)
	assert.Equal(t, []string{ids[0]}, restored)
	assert.Equal(t, ids[0], s.PlaylistIDs()[0])
	p := s.Playlist(ids[0])
	require.NotNil(t, p)
	assert.Same(t, clips[0], p.Clips()[0])
	assert.Empty(t, s.DeletedPlaylistIDs())
}

func TestClearPlaylists(t *testing.T) {
	s := newTestSession(t)
	clips, err := s.CreateClips(s.Viewport.FgID, []string{"a"}, -1)
	require.NoError(t, err)
	s.DeletePlaylists(s.PlaylistIDs())

	id := s.ClearPlaylists()

	assert.NotEmpty(t, id)
	assert.Equal(t, []string{id}, s.PlaylistIDs())
	assert.Empty(t, s.DeletedPlaylistIDs())
	assert.Nil(t, s.Clip(clips[0].ID))
	assert.Equal(t, 0, s.ClipCount())
}

func TestFgBgInvariant(t *testing.T) {
	s := newTestSession(t)
	ids, err := s.CreatePlaylists([]string{"b"}, -1, nil)
	require.NoError(t, err)
	fg := s.Viewport.FgID

	assert.False(t, s.SetBg(fg), "background cannot equal foreground")
	assert.True(t, s.SetBg(ids[0]))
	assert.True(t, s.SetFg(ids[0]))
	assert.Empty(t, s.Viewport.BgID, "promoting the background clears it")
	assert.False(t, s.SetFg("missing"))
	assert.True(t, s.SetBg(""))
}

func TestCreatePlaylists_DuplicateIDs(t *testing.T) {
	s := newTestSession(t)
	_, err := s.CreatePlaylists([]string{"a"}, -1, []string{s.Viewport.FgID})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Len(t, s.Playlists(), 1)

	_, err = s.CreatePlaylists([]string{"a", "b"}, -1, []string{"x"})
	assert.ErrorIs(t, err, value.ErrInvalidArgument)

	ids, err := s.CreatePlaylists([]string{"a", "b"}, 0, []string{"x", ""})
	require.NoError(t, err)
	assert.Equal(t, "x", ids[0])
	assert.Equal(t, []string{"x", ids[1]}, s.PlaylistIDs()[:2])
}

func TestSetActiveClips_SortedByPlayOrder(t *testing.T) {
	s := newTestSession(t)
	pl := s.Fg()
	clips, err := s.CreateClips(pl.ID, []string{"a", "b", "c"}, -1)
	require.NoError(t, err)

	assert.Len(t, pl.ActiveClips(), 3, "empty active set means all clips")

	require.True(t, s.SetActiveClips(pl.ID, []string{clips[2].ID, "foreign", clips[0].ID}))
	assert.Equal(t, []string{clips[0].ID, clips[2].ID}, pl.ActiveIDs())

	s.DeleteClips([]string{clips[0].ID})
	assert.Equal(t, []string{clips[2].ID}, pl.ActiveIDs())
	assert.Equal(t, 2, clips[2].Int(attr.PlayOrder))
}

func TestMoveClips(t *testing.T) {
	s := newTestSession(t)
	src := s.Viewport.FgID
	dstIDs, err := s.CreatePlaylists([]string{"dst"}, -1, nil)
	require.NoError(t, err)
	clips, err := s.CreateClips(src, []string{"a", "b", "c"}, -1)
	require.NoError(t, err)

	moved, err := s.MoveClips(dstIDs[0], -1, []string{clips[1].ID})
	require.NoError(t, err)
	assert.Equal(t, []string{clips[1].ID}, moved)
	assert.Equal(t, dstIDs[0], clips[1].PlaylistID)
	assert.Equal(t, []string{clips[0].ID, clips[2].ID}, s.Playlist(src).ClipIDs())
	assert.Equal(t, 2, clips[2].Int(attr.PlayOrder))

	// reorder within a playlist
	_, err = s.MoveClips(src, 0, []string{clips[2].ID})
	require.NoError(t, err)
	assert.Equal(t, []string{clips[2].ID, clips[0].ID}, s.Playlist(src).ClipIDs())
	assert.Equal(t, 1, clips[2].Int(attr.PlayOrder))

	_, err = s.MoveClips("missing", 0, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCopyClips(t *testing.T) {
	s := newTestSession(t)
	clips, err := s.CreateClips(s.Viewport.FgID, []string{"a"}, -1)
	require.NoError(t, err)
	orig := clips[0]
	require.NoError(t, orig.SetAttr(attr.Comment, "look", false))
	orig.Annotations.AppendTexts(3, []*annotation.Text{{Text: "x", Color: value.White, Size: 10}})
	frame := 3
	_, err = orig.CCs.Append(&frame, []*colorcorrection.ColorCorrection{colorcorrection.NewColorCorrection("", "f")})
	require.NoError(t, err)

	ids, err := s.CopyClips(s.Viewport.FgID, -1, []string{orig.ID})
	require.NoError(t, err)
	require.Len(t, ids, 1)
	cp := s.Clip(ids[0])
	require.NotNil(t, cp)

	assert.NotEqual(t, orig.ID, cp.ID)
	v, _ := cp.Attr(attr.Comment)
	assert.Equal(t, "look", v)
	assert.Equal(t, []int{3}, cp.Annotations.RWFrames())
	require.Len(t, cp.CCs.IDs(&frame), 1)
	assert.NotEqual(t, orig.CCs.IDs(&frame)[0], cp.CCs.IDs(&frame)[0], "copied corrections get new ids")
	assert.Equal(t, 2, cp.Int(attr.PlayOrder))
}

func TestClipAttrs(t *testing.T) {
	s := newTestSession(t)
	c, err := s.CreateClip(s.Viewport.FgID, "/a.exr", "", -1)
	require.NoError(t, err)

	tests := []struct {
		name  string
		id    string
		v     any
		force bool
		err   error
	}{
		{"read only refused", attr.PlayOrder, 9, false, ErrReadOnly},
		{"forced media frame", attr.MediaStartFrame, 1001, true, nil},
		{"integral float to int", attr.KeyIn, float64(1005), false, nil},
		{"wrong type", attr.Comment, 3, false, value.ErrInvalidArgument},
		{"unknown", "nope", 1, false, ErrNotFound},
		{"keyable plain value", attr.DynamicScaleX, 2.0, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.SetAttr(tt.id, tt.v, tt.force)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			assert.NoError(t, err)
		})
	}

	assert.Equal(t, 1005, c.Int(attr.KeyIn))
	assert.Equal(t, 2.0, c.Float(attr.DynamicScaleX))
	v, ok := c.Attr(attr.Comment)
	assert.True(t, ok)
	assert.Equal(t, "", v, "unset attributes return their default")
}

func TestClipKeyedAttr(t *testing.T) {
	s := newTestSession(t)
	c, err := s.CreateClip(s.Viewport.FgID, "/a.exr", "", -1)
	require.NoError(t, err)

	require.NoError(t, c.SetAttrKeys(attr.DynamicTranslateX, map[int]float64{10: 0, 20: 10}))
	v, _ := c.AttrAt(attr.DynamicTranslateX, 15)
	assert.InDelta(t, 5.0, v, 1e-9)
	v, _ = c.AttrAt(attr.DynamicTranslateX, 1)
	assert.InDelta(t, 0.0, v, 1e-9)

	k := c.Keyed(attr.DynamicTranslateX)
	require.NotNil(t, k)
	assert.Len(t, k.FrameValues, 11)

	assert.ErrorIs(t, c.SetAttrKeys(attr.Comment, map[int]float64{1: 1}), value.ErrInvalidArgument)
}

func TestRebuildTimeline(t *testing.T) {
	s := newTestSession(t)
	pl := s.Viewport.FgID
	clips, err := s.CreateClips(pl, []string{"A", "B"}, -1)
	require.NoError(t, err)
	require.NoError(t, clips[0].SetAttr(attr.KeyIn, 1001, false))
	require.NoError(t, clips[0].SetAttr(attr.KeyOut, 1010, false))
	require.NoError(t, clips[1].SetAttr(attr.KeyIn, 2005, false))
	require.NoError(t, clips[1].SetAttr(attr.KeyOut, 2007, false))

	assert.True(t, s.RebuildTimeline())
	assert.Equal(t, clips[0].ID, s.Viewport.CurrentClipID)
	assert.Equal(t, 13, s.Timeline.Len())

	assert.True(t, s.GotoFrame(11))
	assert.Equal(t, clips[1].ID, s.CurrentClip().ID)
	assert.False(t, s.GotoFrame(12))

	s.FrameMode = FirstClip
	s.RebuildTimeline()
	assert.Equal(t, 1, s.Timeline.Current())

	s.FrameMode = ActiveClipOnly
	s.GotoFrame(11)
	s.RebuildTimeline()
	assert.Equal(t, 3, s.Timeline.Len())
	assert.Equal(t, clips[1].ID, s.Viewport.CurrentClipID)
}

func TestKeyRange_FallsBackToMedia(t *testing.T) {
	s := newTestSession(t)
	c, err := s.CreateClip(s.Viewport.FgID, "a", "", -1)
	require.NoError(t, err)
	require.NoError(t, c.SetAttr(attr.MediaStartFrame, 1, true))
	require.NoError(t, c.SetAttr(attr.MediaEndFrame, 48, true))

	in, out := c.KeyRange()
	assert.Equal(t, 1, in)
	assert.Equal(t, 48, out)
}

func TestViewport_Overlays(t *testing.T) {
	v := newViewport()
	v.SetOverlay(&Overlay{ID: "a", HTML: "<b>a</b>", X: 0.5, Y: 0.5, Width: 200, Height: 100})
	v.SetOverlay(&Overlay{ID: "b"})
	v.SetOverlay(&Overlay{ID: "a", HTML: "<b>A</b>", X: 0.5, Y: 0.5, Width: 200, Height: 100})

	require.Len(t, v.Overlays(), 2)
	assert.Equal(t, "a", v.Overlays()[0].ID)
	assert.Equal(t, 1, v.Overlay("a").Revision)

	assert.True(t, v.Overlay("a").Hovered(value.Point{X: 0.55, Y: 0.5}, 1000, 1000))
	assert.False(t, v.Overlay("a").Hovered(value.Point{X: 0.7, Y: 0.5}, 1000, 1000))

	assert.Equal(t, []string{"b"}, v.DeleteOverlays([]string{"b", "zzz"}))
	assert.Equal(t, []string{"a"}, v.DeleteOverlays(nil))
	assert.Empty(t, v.Overlays())
}

func TestViewport_LaserExpiry(t *testing.T) {
	v := newViewport()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v.SetLaser("p", value.Point{X: 0.5, Y: 0.5}, value.White, 0.01, t0)

	v.ExpireLasers(t0.Add(500*time.Millisecond), time.Second, 50*time.Millisecond, 1000)
	require.Len(t, v.Lasers(), 1)
	assert.Empty(t, v.Lasers()[0].Trail)

	v.ExpireLasers(t0.Add(1200*time.Millisecond), time.Second, 50*time.Millisecond, 1000)
	assert.Empty(t, v.Lasers())
}

func TestViewport_LaserTrailCap(t *testing.T) {
	v := newViewport()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		v.SetLaser("p", value.Point{X: float64(i) / 10}, value.White, 0.01, t0)
	}
	v.ExpireLasers(t0, time.Second, time.Second, 4)
	trail := v.Lasers()[0].Trail
	require.Len(t, trail, 4)
	assert.InDelta(t, 0.9, trail[3].Point.X, 1e-12)
}

func TestViewport_Message(t *testing.T) {
	v := newViewport()
	now := time.Now()
	v.Message = &Message{Text: "saved", Expires: now.Add(2 * time.Second)}

	msg, ok := v.ActiveMessage(now)
	assert.True(t, ok)
	assert.Equal(t, "saved", msg)

	_, ok = v.ActiveMessage(now.Add(3 * time.Second))
	assert.False(t, ok)
	assert.Nil(t, v.Message)
}

func TestParseModes(t *testing.T) {
	for _, m := range []BgMode{BgNone, BgWipe, BgSideBySide, BgTopBottom, BgPIP} {
		got, err := ParseBgMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseBgMode("OVERLAY")
	assert.ErrorIs(t, err, value.ErrInvalidArgument)

	fm, err := ParseFrameMode("ACTIVE_CLIP_ONLY")
	require.NoError(t, err)
	assert.Equal(t, ActiveClipOnly, fm)
}

func TestSessionState_RoundTrip(t *testing.T) {
	s := newTestSession(t)
	pl := s.Viewport.FgID
	clips, err := s.CreateClips(pl, []string{"/a.exr", "/b.exr"}, -1)
	require.NoError(t, err)
	require.NoError(t, clips[0].SetAttr(attr.KeyIn, 5, false))
	require.NoError(t, clips[0].SetAttr(attr.KeyOut, 9, false))
	require.NoError(t, clips[1].SetAttr(attr.KeyIn, 1, false))
	require.NoError(t, clips[1].SetAttr(attr.KeyOut, 2, false))
	require.NoError(t, clips[0].SetAttrKeys(attr.DynamicRotation, map[int]float64{5: 350, 9: 10}))
	clips[0].Custom["note"] = "hero"
	s.SetActiveClips(pl, []string{clips[1].ID})
	require.True(t, s.Attrs.Add(attr.Descriptor{ID: "shot", Name: "Shot", Type: attr.String, Default: ""}))
	require.NoError(t, clips[1].SetAttr("shot", "sh010", false))
	s.Viewport.BgMode = BgPIP

	raw, err := json.Marshal(s.State())
	require.NoError(t, err)
	var rec SessionRecord
	require.NoError(t, json.Unmarshal(raw, &rec))

	got, err := FromState(rec, Seeds{Playlist: "pl-seed"}, "someone")
	require.NoError(t, err)

	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, s.PlaylistIDs(), got.PlaylistIDs())
	assert.Equal(t, BgPIP, got.Viewport.BgMode)
	gc := got.Clip(clips[0].ID)
	require.NotNil(t, gc)
	assert.Equal(t, "/a.exr", gc.Path())
	assert.Equal(t, 5, gc.Int(attr.KeyIn))
	assert.Equal(t, 1, gc.Int(attr.PlayOrder))
	assert.Equal(t, "hero", gc.Custom["note"])
	k := gc.Keyed(attr.DynamicRotation)
	require.NotNil(t, k)
	assert.Len(t, k.FrameValues, 5)
	assert.Equal(t, []string{clips[1].ID}, got.Fg().ActiveIDs())
	v, _ := got.Clip(clips[1].ID).Attr("shot")
	assert.Equal(t, "sh010", v)
	assert.Equal(t, 2, got.Timeline.Len(), "timeline follows the restored active set")

	_, err = got.CreateClip(pl, "/c.exr", clips[0].ID, -1)
	assert.ErrorIs(t, err, ErrDuplicateID, "restored ids stay reserved")
}
