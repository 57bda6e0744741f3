package hostinterface

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpa-review/sessioncore/internal/dispatcher"
)

func TestFormatResponse(t *testing.T) {
	tests := []struct {
		name     string
		event    string
		result   any
		err      error
		expected string
	}{
		{"nil result", "frame-changed", nil, nil, `["ok","frame-changed"]`},
		{"string result", ":VERSION:", "1.0.0", nil, `["ok",":VERSION:","1.0.0"]`},
		{"int slice", "get-frames", []int{1, 2, 3}, nil, `["ok","get-frames",[1,2,3]]`},
		{"map", "stats", map[string]int{"clips": 2}, nil, `["ok","stats",{"clips":2}]`},
		{"error", "render", nil, errors.New("no current clip"), `["error","render","no current clip"]`},
		{"quotes are escaped", "render", nil, errors.New(`bad "x"`), `["error","render","bad \"x\""]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatResponse(tt.event, tt.result, tt.err))
		})
	}
}

func TestSurface_HandleEvent(t *testing.T) {
	d, err := dispatcher.New(nil)
	require.NoError(t, err)
	var got dispatcher.Event
	d.Register("frame-changed", func(e dispatcher.Event) (any, error) {
		got = e
		return nil, nil
	})

	s := NewSurface("2.1.0", d)
	s.now = func() time.Time { return time.Unix(0, 42) }

	assert.Equal(t, `["ok","frame-changed"]`, s.HandleEvent("frame-changed", []string{"7"}, nil))
	assert.Equal(t, []string{"7"}, got.Args)
	assert.Equal(t, `["ok",":VERSION:","2.1.0"]`, s.HandleEvent(EventVersion, nil, nil))
	assert.Equal(t, `["ok",":TIMESTAMP:","42"]`, s.HandleEvent(EventTimestamp, nil, nil))
	assert.Equal(t, `["error","key-down--q","no handler registered"]`, s.HandleEvent("key-down--q", nil, nil))

	for _, r := range []string{s.HandleEvent("frame-changed", nil, nil), s.HandleEvent("nope", nil, nil)} {
		assert.True(t, strings.HasPrefix(r, `["ok"`) || strings.HasPrefix(r, `["error"`))
	}
}

func TestSplitPropertyName(t *testing.T) {
	tests := []struct {
		in                   string
		node, family, field  string
		ok                   bool
	}{
		{"sourceGroup000000_paint.pen:3:12:alice.points", "sourceGroup000000_paint", "pen:3:12:alice", "points", true},
		{"paint.nextId", "", "", "", false},
		{"a.b.c", "a", "b", "c", true},
		{"nodots", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			node, family, field, ok := SplitPropertyName(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.node, node)
			assert.Equal(t, tt.family, family)
			assert.Equal(t, tt.field, field)
		})
	}
}

func TestPropertyHelpers(t *testing.T) {
	h := NewMemoryHost()
	_, err := h.NewNode(NodePaint, "p")
	require.NoError(t, err)

	require.NoError(t, SetProperty(h, "p.paint.nextId", 3, 1))
	n, err := IntValue(h, "p.paint.nextId")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, AppendProperty(h, "p.pen:1:1:u.points", []float64{0, 0}, 2))
	require.NoError(t, AppendProperty(h, "p.pen:1:1:u.points", []float64{1, 1}, 2))
	v, err := GetProperty(h, "p.pen:1:1:u.points")
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 0}, {1, 1}}, Reshape(v.([]float64), 2))
	info, err := h.PropertyInfo("p.pen:1:1:u.points")
	require.NoError(t, err)
	assert.Equal(t, PropertyInfo{Type: FloatType, Dim: 2, Size: 4}, info)

	err = SetProperty(h, "p.paint.nextId", "x", 1)
	assert.ErrorIs(t, err, ErrHostCall, "type mismatch")

	require.NoError(t, SetProperty(h, "p.frame:1.order", []string{"pen:1:1:u"}, 1))
	s, err := StringValue(h, "p.frame:1.order")
	require.NoError(t, err)
	assert.Equal(t, "pen:1:1:u", s)

	assert.NoError(t, DeleteProperty(h, "p.missing.prop"))
	require.NoError(t, DeleteProperty(h, "p.frame:1.order"))
	assert.False(t, h.PropertyExists("p.frame:1.order"))

	err = SetProperty(h, "nonode.a.b", 1, 1)
	assert.ErrorIs(t, err, ErrHostCall)
}

func TestMemoryHost_Nodes(t *testing.T) {
	h := NewMemoryHost()
	h.SetMedia("/shots/a.exr", MediaInfo{Width: 2048, Height: 858, StartFrame: 1001, EndFrame: 1010, FPS: 24})

	sg, err := h.AddSource("/shots/a.exr")
	require.NoError(t, err)
	assert.True(t, h.NodeExists(sg+"_paint"))
	info, err := h.SourceMedia(sg)
	require.NoError(t, err)
	assert.Equal(t, 1001, info.StartFrame)
	assert.Equal(t, "/shots/a.exr", info.Path)

	seq, err := h.NewNode(NodeSequenceGroup, "")
	require.NoError(t, err)
	require.NoError(t, h.SetNodeInputs(seq, []string{sg}))
	assert.ErrorIs(t, h.SetNodeInputs(seq, []string{"ghost"}), ErrHostCall)

	require.NoError(t, SetProperty(h, sg+".custom.rpa_clip_id", "c1", 1))
	require.NoError(t, h.DeleteNode(sg))
	inputs, err := h.NodeInputs(seq)
	require.NoError(t, err)
	assert.Empty(t, inputs)
	assert.False(t, h.PropertyExists(sg+".custom.rpa_clip_id"))

	h.Fail("AddSource", true)
	_, err = h.AddSource("/b.exr")
	assert.ErrorIs(t, err, ErrHostCall)
}

func TestReshape(t *testing.T) {
	assert.Equal(t, [][]int{{1, 2}, {3, 4}}, Reshape([]int{1, 2, 3, 4, 5}, 2))
	assert.Nil(t, Reshape([]int{1}, 0))
	assert.Empty(t, Reshape([]int{}, 3))
}
