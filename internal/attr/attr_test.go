package attr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpa-review/sessioncore/internal/value"
)

func TestNewRegistry_Seeds(t *testing.T) {
	r := NewRegistry()

	po, ok := r.Get(PlayOrder)
	require.True(t, ok)
	assert.Equal(t, Int, po.Type)
	assert.True(t, po.ReadOnly)
	assert.Equal(t, CategoryCore, po.Category)

	c, ok := r.Get(Comment)
	require.True(t, ok)
	assert.Equal(t, String, c.Type)
	assert.False(t, c.ReadOnly)
	assert.Equal(t, CategorySession, c.Category)

	assert.Contains(t, r.Keyable(), DynamicRotation)
	assert.NotContains(t, r.Keyable(), PlayOrder)
}

func TestRegistry_AddRemove(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Add(Descriptor{ID: "shot_status", Type: String, Default: "wip"}))
	assert.False(t, r.Add(Descriptor{ID: "shot_status", Type: Int}))

	d, ok := r.Get("shot_status")
	require.True(t, ok)
	assert.Equal(t, CategoryUserDefined, d.Category)
	assert.Equal(t, String, d.Type)

	assert.False(t, r.Remove(PlayOrder))
	assert.True(t, r.Remove("shot_status"))
	_, ok = r.Get("shot_status")
	assert.False(t, ok)
}

func TestDescriptor_Check(t *testing.T) {
	tests := []struct {
		name    string
		typ     DataType
		v       any
		wantErr bool
	}{
		{"int ok", Int, 3, false},
		{"int from string", Int, "3", true},
		{"float accepts int", Float, 3, false},
		{"float ok", Float, 3.5, false},
		{"string ok", String, "x", false},
		{"bool from int", Bool, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Descriptor{ID: "a", Type: tt.typ}.Check(tt.v)
			if tt.wantErr {
				assert.ErrorIs(t, err, value.ErrInvalidArgument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKeyed_FrameValuesCoverKeyRange(t *testing.T) {
	k := NewKeyed(5, false)
	assert.Empty(t, k.FrameValues)
	assert.Equal(t, 5.0, k.At(100))

	require.NoError(t, k.SetKeys(map[int]float64{10: 0, 20: 10}))
	assert.Len(t, k.FrameValues, 11)
	assert.InDelta(t, 5, k.At(15), 1e-9)
	assert.InDelta(t, 0, k.At(1), 1e-9)
	assert.InDelta(t, 10, k.At(99), 1e-9)

	require.NoError(t, k.SetKey(30, 0))
	assert.Len(t, k.FrameValues, 21)
	assert.Equal(t, []int{10, 20, 30}, k.Frames())

	require.NoError(t, k.DeleteKey(30))
	assert.Len(t, k.FrameValues, 11)

	k.ClearKeys()
	assert.False(t, k.IsKeyed())
	assert.Empty(t, k.FrameValues)
}

func TestKeyed_Angular(t *testing.T) {
	k := NewKeyed(0, true)
	require.NoError(t, k.SetKeys(map[int]float64{1: 350, 3: 10}))
	assert.InDelta(t, 0, k.At(2), 1e-9)
}

func TestKeyed_RejectsNonFinite(t *testing.T) {
	k := NewKeyed(0, true)
	require.NoError(t, k.SetKeys(map[int]float64{1: 10, 5: 20}))

	err := k.SetKey(3, math.Inf(1))
	assert.ErrorIs(t, err, value.ErrInvalidArgument)
	assert.Equal(t, map[int]float64{1: 10, 5: 20}, k.KeyValues, "keys unchanged after a rejected key")

	require.NoError(t, k.SetKey(9, 1e13))
	assert.InDelta(t, 280, k.At(9), 1e-6)
}
