package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_EmitOrder(t *testing.T) {
	b := NewBus()
	var got []string
	b.Subscribe(CCModified, func(Event) { got = append(got, "first") })
	b.Subscribe(CCModified, func(Event) { got = append(got, "second") })
	b.Subscribe(ClipsDeleted, func(Event) { got = append(got, "other") })

	b.Emit(Event{Kind: CCModified, CCID: "x"})

	assert.Equal(t, []string{"first", "second"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()
	calls := 0
	cancel := b.Subscribe(TimelineModified, func(Event) { calls++ })

	b.Emit(Event{Kind: TimelineModified})
	cancel()
	b.Emit(Event{Kind: TimelineModified})

	assert.Equal(t, 1, calls)
}

func TestBus_ReentrantEmit(t *testing.T) {
	b := NewBus()
	var order []Kind
	b.Subscribe(PlaylistModified, func(ev Event) {
		order = append(order, ev.Kind)
		b.Emit(Event{Kind: PlaylistsModified})
	})
	b.Subscribe(PlaylistsModified, func(ev Event) {
		order = append(order, ev.Kind)
		b.Subscribe(PlaylistsModified, func(Event) { order = append(order, CCModified) })
	})

	b.Emit(Event{Kind: PlaylistModified})

	assert.Equal(t, []Kind{PlaylistModified, PlaylistsModified}, order)
}

func TestBus_EmitProgress(t *testing.T) {
	b := NewBus()
	var seen []string
	for _, k := range []Kind{ProgressStarted, ProgressUpdated, ProgressCompleted} {
		b.Subscribe(k, func(ev Event) { seen = append(seen, ev.Kind.String()) })
	}

	b.EmitProgress(2, func(i int) { seen = append(seen, "item") })

	assert.Equal(t, []string{
		"progress-started",
		"item", "progress-updated",
		"item", "progress-updated",
		"progress-completed",
	}, seen)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "active-clips-changed", ActiveClipsChanged.String())
	assert.Equal(t, "unknown", Kind(999).String())
}

func TestKinds(t *testing.T) {
	kinds := Kinds()
	assert.Len(t, kinds, len(kindNames))
	assert.Equal(t, PlaylistsModified, kinds[0])
	for _, k := range kinds {
		assert.NotEqual(t, "unknown", k.String())
	}
}
