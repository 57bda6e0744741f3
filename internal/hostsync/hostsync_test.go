package hostsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpa-review/sessioncore/internal/annotation"
	"github.com/rpa-review/sessioncore/internal/attr"
	"github.com/rpa-review/sessioncore/internal/session"
	"github.com/rpa-review/sessioncore/internal/value"
	"github.com/rpa-review/sessioncore/pkg/hostinterface"
)

func setup(t *testing.T) (*Syncer, *hostinterface.MemoryHost, *session.Session) {
	t.Helper()
	h := hostinterface.NewMemoryHost()
	s := session.New(session.Seeds{Playlist: "p", CC: "c"}, "alice")
	return New(Dependencies{Host: h}), h, s
}

func newClip(t *testing.T, sy *Syncer, s *session.Session, path string) *session.Clip {
	t.Helper()
	c, err := s.CreateClip(s.Fg().ID, path, "", -1)
	require.NoError(t, err)
	require.True(t, sy.ClipCreated(c))
	return c
}

func stringProp(t *testing.T, h hostinterface.Host, name string) []string {
	t.Helper()
	v, err := h.StringProperty(name)
	require.NoError(t, err)
	return v
}

func TestClipCreated(t *testing.T) {
	sy, h, s := setup(t)
	h.SetMedia("/shots/a.exr", hostinterface.MediaInfo{Width: 2048, Height: 858, StartFrame: 1001, EndFrame: 1010, FPS: 25})

	c := newClip(t, sy, s, "/shots/a.exr")
	sg := SourceGroup(c)
	require.NotEmpty(t, sg)
	require.NotEmpty(t, StackGroup(c))

	inputs, err := h.NodeInputs(StackGroup(c))
	require.NoError(t, err)
	assert.Equal(t, []string{sg}, inputs)

	id, ok := sy.ClipIDForSource(sg)
	require.True(t, ok)
	assert.Equal(t, c.ID, id)

	assert.Equal(t, 1001, c.Int(attr.MediaStartFrame))
	assert.Equal(t, 1010, c.Int(attr.MediaEndFrame))
	assert.Equal(t, 2048, c.Int(attr.Width))
	assert.Equal(t, 25.0, c.Float(attr.FPS))

	sy.ClipDeleted(c)
	assert.False(t, h.NodeExists(sg))
	assert.False(t, h.NodeExists(StackGroup(c)))
	_, ok = sy.ClipIDForSource(sg)
	assert.False(t, ok)
}

func TestClipCreated_HostFailure(t *testing.T) {
	sy, h, s := setup(t)
	c, err := s.CreateClip(s.Fg().ID, "/a.exr", "", -1)
	require.NoError(t, err)

	h.Fail("AddSource", true)
	assert.False(t, sy.ClipCreated(c))
	assert.Empty(t, SourceGroup(c))

	h.Fail("AddSource", false)
	h.Fail("NewNode", true)
	assert.True(t, sy.ClipCreated(c), "a missing stack group is not fatal")
	assert.NotEmpty(t, SourceGroup(c))
	assert.Empty(t, StackGroup(c))
}

func TestPlaylistSync(t *testing.T) {
	sy, h, s := setup(t)
	p := s.Fg()
	sy.PlaylistCreated(p)
	seq := SequenceGroup(p)
	require.NotEmpty(t, seq)

	a := newClip(t, sy, s, "/a.exr")
	b := newClip(t, sy, s, "/b.exr")
	sy.SyncInputs(p)
	inputs, err := h.NodeInputs(seq)
	require.NoError(t, err)
	assert.Equal(t, []string{StackGroup(a), StackGroup(b)}, inputs)

	require.True(t, s.SetActiveClips(p.ID, []string{b.ID}))
	sy.SyncInputs(p)
	inputs, err = h.NodeInputs(seq)
	require.NoError(t, err)
	assert.Equal(t, []string{StackGroup(b)}, inputs)

	sy.PlaylistCreated(p)
	assert.Equal(t, seq, SequenceGroup(p), "existing sequence group is kept")

	sy.PlaylistDestroyed(p)
	assert.False(t, h.NodeExists(seq))
}

func TestApplyBgMode(t *testing.T) {
	tests := []struct {
		mode     session.BgMode
		view     string
		audio    string
		layout   string
		wipes    int
		pipScale float64
	}{
		{session.BgNone, "", AudioAll, "", 0, 1},
		{session.BgWipe, DefaultStack, AudioFirst, "", 1, 1},
		{session.BgSideBySide, DefaultLayout, AudioFirst, "row", 0, 1},
		{session.BgTopBottom, DefaultLayout, AudioFirst, "column", 0, 1},
		{session.BgPIP, DefaultLayout, AudioFirst, "static", 0, PIPScale},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			sy, h, s := setup(t)
			fg := s.Fg()
			ids, err := s.CreatePlaylists([]string{"bg"}, -1, nil)
			require.NoError(t, err)
			bg := s.Playlist(ids[0])
			sy.PlaylistCreated(fg)
			sy.PlaylistCreated(bg)
			bc, err := s.CreateClip(bg.ID, "/bg.exr", "", -1)
			require.NoError(t, err)
			require.True(t, sy.ClipCreated(bc))

			sy.ApplyBgMode(tt.mode, fg, bg)

			view := tt.view
			if view == "" {
				view = SequenceGroup(fg)
			}
			assert.Equal(t, view, h.ViewNode())

			audioNode := DefaultStack
			if tt.layout != "" {
				audioNode = DefaultLayout
			}
			assert.Equal(t, []string{tt.audio}, stringProp(t, h, audioNode+".stack.chosenAudioInput"))

			wipes, err := hostinterface.IntValue(h, DefaultStack+".ui.wipes")
			require.NoError(t, err)
			assert.Equal(t, tt.wipes, wipes)

			if tt.layout != "" {
				assert.Equal(t, []string{tt.layout}, stringProp(t, h, DefaultLayout+".layout.mode"))
				inputs, err := h.NodeInputs(DefaultLayout)
				require.NoError(t, err)
				assert.Equal(t, []string{SequenceGroup(fg), SequenceGroup(bg)}, inputs)
			}

			scale := TransformNode(bc) + ".transform.scale"
			if tt.mode == session.BgPIP {
				v, err := h.FloatProperty(scale)
				require.NoError(t, err)
				assert.Equal(t, []float64{tt.pipScale, tt.pipScale}, v)

				sy.ApplyBgMode(session.BgNone, fg, bg)
				v, err = h.FloatProperty(scale)
				require.NoError(t, err)
				assert.Equal(t, []float64{1, 1}, v, "leaving PIP restores the transform")
			} else {
				assert.False(t, h.PropertyExists(scale))
			}
		})
	}
}

func TestApplyBgMode_NoBackground(t *testing.T) {
	sy, h, s := setup(t)
	fg := s.Fg()
	sy.PlaylistCreated(fg)
	sy.ApplyBgMode(session.BgWipe, fg, nil)
	assert.Equal(t, SequenceGroup(fg), h.ViewNode())
}

func stroke(points ...value.Point) *annotation.Stroke {
	return &annotation.Stroke{Brush: annotation.BrushCircle, Width: 0.01, Color: value.White, Points: points}
}

func TestWriteAnnotations(t *testing.T) {
	sy, h, s := setup(t)
	h.SetMedia("/a.exr", hostinterface.MediaInfo{Width: 200, Height: 100, StartFrame: 1, EndFrame: 10, FPS: 24})
	c := newClip(t, sy, s, "/a.exr")
	paint := PaintNode(c)

	c.Annotations.AppendStrokes(3, []*annotation.Stroke{stroke(value.Point{X: 0.5, Y: 0.5}, value.Point{X: 1, Y: 1})})
	c.Annotations.AppendTexts(3, []*annotation.Text{{Text: "fix", Position: value.Point{X: 0.25, Y: 0.5}, Color: value.White, Size: 1}})
	sy.WriteAnnotations(c, 3, session.DefaultFeedback())

	order := stringProp(t, h, paint+".frame:3.order")
	require.Len(t, order, 2)
	assert.Equal(t, "pen:0:3:alice", order[0])
	assert.Equal(t, "text:1:3:alice", order[1])

	points, err := h.FloatProperty(paint + ".pen:0:3:alice.points")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0, 1, 0.5}, points, 1e-9)
	pos, err := h.FloatProperty(paint + ".text:1:3:alice.position")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-0.5, 0}, pos, 1e-9)

	show, err := hostinterface.IntValue(h, paint+".paint.show")
	require.NoError(t, err)
	assert.Equal(t, 1, show)

	require.True(t, c.Annotations.Clear(3))
	sy.WriteAnnotations(c, 3, session.DefaultFeedback())
	assert.Empty(t, stringProp(t, h, paint+".frame:3.order"))
	assert.False(t, h.PropertyExists(paint+".pen:0:3:alice.points"))

	next, err := hostinterface.IntValue(h, paint+".paint.nextId")
	require.NoError(t, err)
	assert.Equal(t, 2, next, "ids are never reused")
}

func TestWriteAnnotations_Creators(t *testing.T) {
	sy, h, s := setup(t)
	c := newClip(t, sy, s, "/a.exr")

	ro := annotation.New("bob", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ro.Drawings = append(ro.Drawings, stroke(value.Point{X: 0.5, Y: 0.5}))
	c.Annotations.SetRO(3, []*annotation.Annotation{ro})
	c.Annotations.AppendStrokes(3, []*annotation.Stroke{stroke(value.Point{X: 0.25, Y: 0.25})})
	sy.WriteAnnotations(c, 3, session.DefaultFeedback())

	assert.Equal(t, []string{"pen:0:3:bob", "pen:1:3:alice"}, stringProp(t, h, PaintNode(c)+".frame:3.order"))
}

func TestHostFrame(t *testing.T) {
	tests := []struct {
		name  string
		start int
		frame int
		want  int
	}{
		{"starts at one", 1, 1, 1},
		{"starts at zero", 0, 0, 1},
		{"zero based later frame", 0, 9, 10},
		{"offset start", 1001, 1001, 1},
		{"offset later frame", 1001, 1010, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sy, h, s := setup(t)
			h.SetMedia("/a.exr", hostinterface.MediaInfo{Width: 10, Height: 10, StartFrame: tt.start, EndFrame: tt.start + 20, FPS: 24})
			c := newClip(t, sy, s, "/a.exr")
			assert.Equal(t, tt.start, c.Int(attr.MediaStartFrame))
			assert.Equal(t, tt.want, HostFrame(c, tt.frame))
		})
	}
}

func TestWriteAnnotations_Feedback(t *testing.T) {
	sy, h, s := setup(t)
	c := newClip(t, sy, s, "/a.exr")
	c.Annotations.AppendStrokes(1, []*annotation.Stroke{stroke(value.Point{X: 0.5, Y: 0.5})})
	c.Annotations.AppendTexts(1, []*annotation.Text{{Text: "t", Color: value.White, Size: 1}})

	fb := session.DefaultFeedback()
	fb.Strokes = false
	sy.WriteAnnotations(c, 1, fb)
	order := stringProp(t, h, PaintNode(c)+".frame:1.order")
	require.Len(t, order, 1)
	assert.Contains(t, order[0], "text:")

	fb.All = false
	sy.WriteAnnotations(c, 1, fb)
	assert.Empty(t, stringProp(t, h, PaintNode(c)+".frame:1.order"))
}

func TestTransientPoints(t *testing.T) {
	sy, h, s := setup(t)
	h.SetMedia("/a.exr", hostinterface.MediaInfo{Width: 100, Height: 100, StartFrame: 1, EndFrame: 10, FPS: 24})
	c := newClip(t, sy, s, "/a.exr")
	paint := PaintNode(c)

	pts := []value.Point{{X: 0.1, Y: 0.1}, {X: 0.2, Y: 0.2}, {X: 0.3, Y: 0.3}}
	for _, p := range pts {
		require.True(t, sy.AppendTransientPoint(c, 2, "tok", stroke(p), false))
	}
	got := sy.TransientStroke(c, 2, "tok")
	require.NotNil(t, got)
	require.Len(t, got.Points, 3)
	for i, p := range pts {
		assert.InDelta(t, p.X, got.Points[i].X, 1e-9)
		assert.InDelta(t, p.Y, got.Points[i].Y, 1e-9)
	}
	assert.Equal(t, 0.01, got.Width)

	order := stringProp(t, h, paint+".frame:2.order")
	require.Len(t, order, 1)
	assert.Equal(t, annotation.TransientName(0, 2, "tok"), order[0])

	c.Annotations.AppendStrokes(2, []*annotation.Stroke{stroke(value.Point{X: 0.5, Y: 0.5})})
	sy.WriteAnnotations(c, 2, session.DefaultFeedback())
	assert.Len(t, stringProp(t, h, paint+".frame:2.order"), 2, "transient strokes survive a rewrite")

	assert.True(t, sy.DeleteTransientPoints(c, 2, "tok"))
	assert.Nil(t, sy.TransientStroke(c, 2, "tok"))
	assert.Len(t, stringProp(t, h, paint+".frame:2.order"), 1)
	assert.False(t, sy.DeleteTransientPoints(c, 2, "tok"))
}

func TestTransientPoints_Line(t *testing.T) {
	sy, _, s := setup(t)
	c := newClip(t, sy, s, "/a.exr")

	for _, p := range []value.Point{{X: 0, Y: 0}, {X: 0.5, Y: 0.5}, {X: 1, Y: 1}} {
		require.True(t, sy.AppendTransientPoint(c, 1, "line", stroke(p), true))
	}
	got := sy.TransientStroke(c, 1, "line")
	require.NotNil(t, got)
	require.Len(t, got.Points, 2)
	assert.InDelta(t, 0, got.Points[0].X, 1e-9)
	assert.InDelta(t, 1, got.Points[1].X, 1e-9)
}

func TestHostErrorsAreSuppressed(t *testing.T) {
	sy, h, s := setup(t)
	c := newClip(t, sy, s, "/a.exr")
	c.Annotations.AppendStrokes(1, []*annotation.Stroke{stroke(value.Point{X: 0.5, Y: 0.5})})

	for _, m := range []string{"NewProperty", "SetFloatProperty", "SetStringProperty", "SetIntProperty", "InsertFloatProperty"} {
		h.Fail(m, true)
	}
	assert.NotPanics(t, func() {
		sy.WriteAnnotations(c, 1, session.DefaultFeedback())
		sy.AppendTransientPoint(c, 1, "x", stroke(value.Point{X: 0.1, Y: 0.1}), false)
		sy.ApplyBgMode(session.BgPIP, s.Fg(), nil)
	})

	h.Fail("ImageGeometry", true)
	_, ok := sy.ImageGeometry(c)
	assert.False(t, ok)
	h.Fail("ImageGeometry", false)
	q, ok := sy.ImageGeometry(c)
	require.True(t, ok)
	assert.Equal(t, 1280.0, q.BR.X)
}

func TestDynamicTransformAt(t *testing.T) {
	sy, h, s := setup(t)
	h.SetMedia("/a.exr", hostinterface.MediaInfo{Width: 400, Height: 200, StartFrame: 1, EndFrame: 10, FPS: 25})
	c := newClip(t, sy, s, "/a.exr")

	got := DynamicTransformAt(c, 3)
	assert.Equal(t, DynamicTransform{Translate: [2]float64{0, 0}, Scale: [2]float64{1, 1}, FPS: 25}, got, "defaults with media rate")

	require.NoError(t, c.SetAttrKeys(attr.DynamicTranslateY, map[int]float64{1: 0, 3: -50}))
	require.NoError(t, c.SetAttrKeys(attr.FPSOverride, map[int]float64{3: 12}))
	got = DynamicTransformAt(c, 3)
	assert.InDelta(t, -0.25, got.Translate[1], 1e-12)
	assert.Equal(t, 12.0, got.FPS)

	require.True(t, sy.WriteDynamicTransform(c, 3))
	rot, err := h.FloatProperty(TransformNode(c) + ".transform.rotate")
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, rot)
}
