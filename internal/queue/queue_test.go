package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetched struct {
	ClipID string
	Size   int
}

func TestQueue_TryPop(t *testing.T) {
	q := New[fetched](0)

	_, ok := q.TryPop()
	assert.False(t, ok)

	q.Push(fetched{ClipID: "a"}, fetched{ClipID: "b"})
	got, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, "a", got.ClipID)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_Drain(t *testing.T) {
	q := New[fetched](0)
	assert.Empty(t, q.Drain())

	q.Push(fetched{ClipID: "a"}, fetched{ClipID: "b"})
	items := q.Drain()

	assert.Equal(t, []fetched{{ClipID: "a"}, {ClipID: "b"}}, items)
	assert.Equal(t, 0, q.Len())

	q.Push(fetched{ClipID: "c"})
	assert.Len(t, items, 2, "drained slice is not reused")
}

func TestQueue_Limit(t *testing.T) {
	tests := []struct {
		name    string
		limit   int
		push    int
		dropped int
		first   int
	}{
		{"unbounded", 0, 5, 0, 0},
		{"under limit", 10, 5, 0, 0},
		{"over limit keeps newest", 3, 5, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New[fetched](tt.limit)
			items := make([]fetched, tt.push)
			for i := range items {
				items[i] = fetched{Size: i}
			}
			assert.Equal(t, tt.dropped, q.Push(items...))
			first, ok := q.TryPop()
			require.True(t, ok)
			assert.Equal(t, tt.first, first.Size)
		})
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[fetched](0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			q.Push(fetched{Size: n})
		}(i)
	}
	wg.Wait()
	assert.Len(t, q.Drain(), 50)
}
