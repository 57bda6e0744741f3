// Package signal carries the coarse-grained notifications emitted after model
// mutations. Delivery is synchronous on the caller's goroutine.
package signal

import (
	"sync"
)

// Kind identifies a notification.
type Kind int

const (
	PlaylistsModified Kind = iota
	PlaylistModified
	ActiveClipsChanged
	CurrentClipChanged
	ClipsDeleted
	AttrValuesChanged
	CCModified
	CCNodeModified
	TimelineModified
	AnnotationsModified
	FrameChanged
	PlayStatusChanged
	ViewportModified
	ProgressStarted
	ProgressUpdated
	ProgressCompleted
)

var kindNames = map[Kind]string{
	PlaylistsModified:   "playlists-modified",
	PlaylistModified:    "playlist-modified",
	ActiveClipsChanged:  "active-clips-changed",
	CurrentClipChanged:  "current-clip-changed",
	ClipsDeleted:        "clips-deleted",
	AttrValuesChanged:   "attr-values-changed",
	CCModified:          "cc-modified",
	CCNodeModified:      "cc-node-modified",
	TimelineModified:    "timeline-modified",
	AnnotationsModified: "annotations-modified",
	FrameChanged:        "frame-changed",
	PlayStatusChanged:   "play-status-changed",
	ViewportModified:    "viewport-modified",
	ProgressStarted:     "progress-started",
	ProgressUpdated:     "progress-updated",
	ProgressCompleted:   "progress-completed",
}

// Kinds returns every notification kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindNames))
	for k := PlaylistsModified; k <= ProgressCompleted; k++ {
		out = append(out, k)
	}
	return out
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// AttrChange is one entry of a batched attr-values-changed notification.
type AttrChange struct {
	PlaylistID string
	ClipID     string
	AttrID     string
	Value      any
}

// Event is the payload of a notification. Fields not relevant to Kind are zero.
type Event struct {
	Kind       Kind
	PlaylistID string
	ClipIDs    []string
	CCID       string
	NodeIndex  int
	Frame      *int
	Attrs      []AttrChange
	// Progress is the current step and Total the step count of a batched operation.
	Progress int
	Total    int
	Playing  bool
}

// Handler receives events.
type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// Bus fans events out to subscribers in subscription order.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[Kind][]subscription
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Kind][]subscription)}
}

// Subscribe registers fn for kind and returns a function that removes it.
func (b *Bus) Subscribe(kind Kind, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscription{id: id, fn: fn})
	return func() { b.unsubscribe(kind, id) }
}

func (b *Bus) unsubscribe(kind Kind, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[kind]
	for i, s := range list {
		if s.id == id {
			b.subs[kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Emit delivers ev to every subscriber of ev.Kind. Handlers may emit or
// subscribe again; they see the subscriber list as it was when Emit began.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	list := append([]subscription(nil), b.subs[ev.Kind]...)
	b.mu.Unlock()
	for _, s := range list {
		s.fn(ev)
	}
}

// EmitProgress emits started, then runs each item followed by its update,
// then completed.
func (b *Bus) EmitProgress(total int, each func(i int)) {
	b.Emit(Event{Kind: ProgressStarted, Total: total})
	for i := 0; i < total; i++ {
		each(i)
		b.Emit(Event{Kind: ProgressUpdated, Progress: i + 1, Total: total})
	}
	b.Emit(Event{Kind: ProgressCompleted, Progress: total, Total: total})
}
