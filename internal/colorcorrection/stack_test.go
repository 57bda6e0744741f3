package colorcorrection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpa-review/sessioncore/internal/uid"
	"github.com/rpa-review/sessioncore/internal/value"
)

func frame(f int) *int { return &f }

func newTestStack() *Stack {
	return NewStack(uid.NewGenerator("cc-seed"), uid.NewRegistry())
}

func TestNewStack_DefaultClipCC(t *testing.T) {
	s := newTestStack()

	ccs := s.CCs(nil)
	require.Len(t, ccs, 1)
	cc := ccs[0]
	assert.Equal(t, DefaultName, cc.Name)
	require.Len(t, cc.Nodes, 2)

	ct, ok := cc.Nodes[0].(*ColorTimer)
	require.True(t, ok)
	assert.Equal(t, Vec3{1, 1, 1}, ct.Slope)
	assert.Equal(t, Vec3{0, 0, 0}, ct.Offset)
	assert.Equal(t, Vec3{1, 1, 1}, ct.Power)
	assert.Equal(t, 1.0, ct.Saturation)
	assert.IsType(t, &Grade{}, cc.Nodes[1])

	assert.False(t, cc.IsModified())
	assert.True(t, uid.Valid(cc.ID))
}

func TestDefaultClipCC_ModifiedButNoFrames(t *testing.T) {
	s := newTestStack()
	cc := s.CCs(nil)[0]

	require.NoError(t, cc.Nodes[0].SetValue("slope", []float64{2, 1, 1}))

	assert.True(t, cc.IsModified())
	assert.Equal(t, []int{}, s.RWFrames())
}

func TestNodeIsModified(t *testing.T) {
	tests := []struct {
		name  string
		node  Node
		field string
		v     []float64
	}{
		{"timer offset", NewColorTimer(), "offset", []float64{0.1}},
		{"timer power", NewColorTimer(), "power", []float64{1, 1, 0.5}},
		{"timer saturation", NewColorTimer(), "saturation", []float64{0}},
		{"grade lift", NewGrade(), "lift", []float64{0.05, 0, 0}},
		{"grade gamma", NewGrade(), "gamma", []float64{2}},
		{"grade whitepoint", NewGrade(), "whitepoint", []float64{0.9, 0.9, 0.9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.node.IsModified())
			tt.node.SetMute(true)
			assert.False(t, tt.node.IsModified(), "mute is not a modification")
			require.NoError(t, tt.node.SetValue(tt.field, tt.v))
			assert.True(t, tt.node.IsModified())
		})
	}
}

func TestNodeSetValue_Invalid(t *testing.T) {
	assert.ErrorIs(t, NewColorTimer().SetValue("slope", []float64{1, 2}), value.ErrInvalidArgument)
	assert.ErrorIs(t, NewGrade().SetValue("hue", []float64{1}), value.ErrInvalidArgument)
	_, err := NewNode("Blur")
	assert.ErrorIs(t, err, value.ErrInvalidArgument)
}

func TestStack_AppendGeneratesDeterministicIDs(t *testing.T) {
	a := newTestStack()
	b := newTestStack()

	idsA, err := a.Append(nil, []*ColorCorrection{NewColorCorrection("", "one"), NewColorCorrection("", "two")})
	require.NoError(t, err)
	idsB, err := b.Append(nil, []*ColorCorrection{NewColorCorrection("", "one"), NewColorCorrection("", "two")})
	require.NoError(t, err)

	assert.Equal(t, idsA, idsB)
	assert.Len(t, a.IDs(nil), 3)
}

func TestStack_AppendDuplicate(t *testing.T) {
	reg := uid.NewRegistry()
	gen := uid.NewGenerator("x")
	a := NewStack(gen, reg)
	b := NewStack(gen, reg)

	_, err := a.Append(frame(3), []*ColorCorrection{NewColorCorrection("dup", "a")})
	require.NoError(t, err)

	ids, err := b.Append(nil, []*ColorCorrection{NewColorCorrection("fresh", "b"), NewColorCorrection("dup", "c")})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Nil(t, ids)
	assert.Nil(t, b.Get("fresh"), "nothing is added when one id collides")

	_, err = b.Append(nil, []*ColorCorrection{NewColorCorrection("same", "a"), NewColorCorrection("same", "b")})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestStack_Delete(t *testing.T) {
	s := newTestStack()
	ids, err := s.Append(frame(5), []*ColorCorrection{NewColorCorrection("f1", "frame")})
	require.NoError(t, err)

	assert.Equal(t, ids, s.Delete([]string{"f1", "missing"}))
	assert.Empty(t, s.IDs(frame(5)))
	assert.Empty(t, s.Frames())

	_, err = s.Append(nil, []*ColorCorrection{NewColorCorrection("f1", "again")})
	assert.NoError(t, err, "deleted ids are released")
}

func TestStack_Move(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []string
		moved    bool
	}{
		{"to front", 2, 0, []string{"c", "a", "b"}, true},
		{"past end appends", 0, 10, []string{"b", "c", "a"}, true},
		{"to end index", 0, 3, []string{"b", "c", "a"}, true},
		{"same place", 1, 1, []string{"a", "b", "c"}, true},
		{"from out of range", 3, 0, []string{"a", "b", "c"}, false},
		{"negative from", -1, 0, []string{"a", "b", "c"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStack()
			_, err := s.Append(frame(1), []*ColorCorrection{
				NewColorCorrection("a", "a"), NewColorCorrection("b", "b"), NewColorCorrection("c", "c"),
			})
			require.NoError(t, err)

			assert.Equal(t, tt.moved, s.Move(tt.from, tt.to, frame(1)))
			assert.Equal(t, tt.want, s.IDs(frame(1)))
		})
	}
}

func TestStack_MuteAll(t *testing.T) {
	s := newTestStack()
	_, err := s.Append(frame(2), []*ColorCorrection{NewColorCorrection("f", "f", NewGrade())})
	require.NoError(t, err)

	s.MuteAll(true)
	assert.True(t, s.IsMuteAll())
	for _, cc := range append(s.CCs(nil), s.CCs(frame(2))...) {
		assert.True(t, cc.Mute)
		for _, n := range cc.Nodes {
			assert.True(t, n.Muted())
		}
	}

	s.Get("f").SetMute(false)
	assert.True(t, s.IsMuteAll(), "single unmute leaves the stack flag")
	assert.False(t, s.Get("f").Nodes[0].Muted())
}

func TestStack_FrameClassification(t *testing.T) {
	s := newTestStack()

	modified := NewColorCorrection("rw", "rw", NewColorTimer())
	require.NoError(t, modified.Nodes[0].SetValue("offset", []float64{0.2}))
	_, err := s.Append(frame(10), []*ColorCorrection{modified})
	require.NoError(t, err)

	_, err = s.Append(frame(20), []*ColorCorrection{NewColorCorrection("clean", "clean", NewGrade())})
	require.NoError(t, err)

	locked := NewColorCorrection("ro", "ro")
	locked.Region = &Region{Falloff: 4, Shapes: []Shape{{Points: []value.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}}}}
	_, err = s.SetROCCs([]Placed{{Frame: frame(30), CC: locked}})
	require.NoError(t, err)

	assert.Equal(t, []int{10}, s.RWFrames())
	assert.Equal(t, []int{30}, s.ROFrames())
	assert.True(t, s.Get("ro").ReadOnly)
}

func TestStack_SetRWCCsReplacesSubset(t *testing.T) {
	s := newTestStack()
	defaultID := s.IDs(nil)[0]
	_, err := s.SetROCCs([]Placed{{CC: NewColorCorrection("lock", "lock")}})
	require.NoError(t, err)

	ids, err := s.SetRWCCs([]Placed{
		{CC: NewColorCorrection("foreign", "clip")},
		{Frame: frame(4), CC: NewColorCorrection("", "frame")},
	})
	require.NoError(t, err)

	require.Len(t, ids, 2)
	assert.Equal(t, "foreign", ids[0])
	assert.Nil(t, s.Get(defaultID), "old editable corrections are replaced")
	assert.NotNil(t, s.Get("lock"), "read-only subset is untouched")
	assert.Equal(t, []string{"lock", "foreign"}, s.IDs(nil))
	assert.Equal(t, []string{ids[1]}, s.IDs(frame(4)))
}

func TestStack_ReplaceIDCollisions(t *testing.T) {
	ids := uid.NewRegistry()
	gen := uid.NewGenerator("seed")
	other := NewStack(gen, ids)
	_, err := other.Append(nil, []*ColorCorrection{NewColorCorrection("taken", "other clip")})
	require.NoError(t, err)

	tests := []struct {
		name    string
		placed  []Placed
		wantErr error
	}{
		{"held by another stack", []Placed{{CC: NewColorCorrection("taken", "mine")}}, ErrDuplicateID},
		{"repeated in the batch", []Placed{{CC: NewColorCorrection("twice", "a")}, {CC: NewColorCorrection("twice", "b")}}, ErrDuplicateID},
		{"nil correction", []Placed{{CC: nil}}, value.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStack(gen, ids)
			before := s.IDs(nil)
			got, err := s.SetRWCCs(tt.placed)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)
			assert.Equal(t, before, s.IDs(nil), "stack unchanged")
			assert.Equal(t, "other clip", other.Get("taken").Name)
		})
	}

	s := NewStack(gen, ids)
	got, err := s.SetROCCs([]Placed{{CC: NewColorCorrection("adopted", "ro")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"adopted"}, got)
	assert.True(t, ids.Taken("adopted"), "adopted ids are registered")
	_, err = other.Append(nil, []*ColorCorrection{NewColorCorrection("adopted", "late")})
	assert.ErrorIs(t, err, ErrDuplicateID)

	s.Release()
	assert.False(t, ids.Taken("adopted"))
}

func TestStack_SetStateRejectsForeignIDs(t *testing.T) {
	ids := uid.NewRegistry()
	gen := uid.NewGenerator("seed")
	other := NewStack(gen, ids)
	_, err := other.Append(nil, []*ColorCorrection{NewColorCorrection("taken", "other clip")})
	require.NoError(t, err)

	donor := NewStack(uid.NewGenerator("donor"), uid.NewRegistry())
	_, err = donor.Append(nil, []*ColorCorrection{NewColorCorrection("taken", "copy")})
	require.NoError(t, err)

	s := NewStack(gen, ids)
	before := s.IDs(nil)
	assert.ErrorIs(t, s.SetState(donor.State()), ErrDuplicateID)
	assert.Equal(t, before, s.IDs(nil))
}

func TestStack_ApplicableAndLocate(t *testing.T) {
	s := newTestStack()
	clipID := s.IDs(nil)[0]
	_, err := s.Append(frame(7), []*ColorCorrection{NewColorCorrection("f7", "f7")})
	require.NoError(t, err)

	got := s.Applicable(7)
	require.Len(t, got, 2)
	assert.Equal(t, clipID, got[0].ID)
	assert.Equal(t, "f7", got[1].ID)
	assert.Len(t, s.Applicable(8), 1)

	f, idx, ok := s.Locate("f7")
	require.True(t, ok)
	require.NotNil(t, f)
	assert.Equal(t, 7, *f)
	assert.Equal(t, 0, idx)

	f, _, ok = s.Locate(clipID)
	assert.True(t, ok)
	assert.Nil(t, f)
}

func TestColorCorrection_Pack(t *testing.T) {
	cc := NewColorCorrection("p", "p", NewColorTimer(), NewGrade())
	cc.Nodes[1].SetMute(true)

	packed := cc.Pack()
	// is_region, node_count, timer (1+9+1+1), grade (1+18+1)
	require.Len(t, packed, 2+12+20)
	assert.Equal(t, float32(0), packed[0])
	assert.Equal(t, float32(2), packed[1])
	assert.Equal(t, float32(0), packed[2], "color timer tag")
	assert.Equal(t, float32(1), packed[13], "timer unmuted packs 1")
	assert.Equal(t, float32(1), packed[14], "grade tag")
	assert.Equal(t, float32(0), packed[len(packed)-1], "grade muted packs 0")

	cc.Region = &Region{}
	assert.Equal(t, float32(1), cc.Pack()[0])
}

func TestStackState_RoundTrip(t *testing.T) {
	s := newTestStack()
	cc := NewColorCorrection("r1", "region", NewGrade())
	require.NoError(t, cc.Nodes[0].SetValue("gain", []float64{1.5, 1, 1}))
	cc.Region = &Region{Falloff: 12, Shapes: []Shape{{Points: []value.Point{{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.1}, {X: 0.5, Y: 0.8}}}}}
	_, err := s.Append(frame(3), []*ColorCorrection{cc})
	require.NoError(t, err)
	s.MuteAll(true)

	raw, err := json.Marshal(s.State())
	require.NoError(t, err)
	var rec StackRecord
	require.NoError(t, json.Unmarshal(raw, &rec))

	restored := NewStack(uid.NewGenerator("other"), uid.NewRegistry())
	require.NoError(t, restored.SetState(rec))

	assert.Equal(t, s.IDs(nil), restored.IDs(nil))
	assert.Equal(t, []string{"r1"}, restored.IDs(frame(3)))
	assert.True(t, restored.IsMuteAll())
	got := restored.Get("r1")
	require.NotNil(t, got)
	assert.Equal(t, cc.Region, got.Region)
	assert.Equal(t, Vec3{1.5, 1, 1}, got.Nodes[0].(*Grade).Gain)
	assert.True(t, got.Nodes[0].Muted())
}

func TestRegion_Contains(t *testing.T) {
	tri := Shape{Points: []value.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}}
	tests := []struct {
		name   string
		region *Region
		p      value.Point
		want   bool
	}{
		{"no region", nil, value.Point{X: 0.9, Y: 0.9}, true},
		{"no shapes", &Region{}, value.Point{X: 0.9, Y: 0.9}, true},
		{"inside", &Region{Shapes: []Shape{tri}}, value.Point{X: 0.2, Y: 0.2}, true},
		{"outside", &Region{Shapes: []Shape{tri}}, value.Point{X: 0.9, Y: 0.9}, false},
		{"overlap cancels", &Region{Shapes: []Shape{tri, tri}}, value.Point{X: 0.2, Y: 0.2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.region.Contains(tt.p))
		})
	}
}
