package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clipEntry struct {
	ID   string
	Path string
}

func TestIndex_PutAndGet(t *testing.T) {
	idx := NewIndex[string, clipEntry]()

	idx.Put("a", clipEntry{ID: "a", Path: "/media/a.exr"})

	got, ok := idx.Get("a")
	require.True(t, ok, "expected to find clip a")
	assert.Equal(t, "/media/a.exr", got.Path)
	assert.Equal(t, 1, idx.Len())
}

func TestIndex_Get_NotFound(t *testing.T) {
	idx := NewIndex[string, clipEntry]()

	_, ok := idx.Get("missing")
	assert.False(t, ok)
}

func TestIndex_PutNew(t *testing.T) {
	idx := NewIndex[string, int]()

	assert.True(t, idx.PutNew("x", 1))
	assert.False(t, idx.PutNew("x", 2))

	v, _ := idx.Get("x")
	assert.Equal(t, 1, v)
}

func TestIndex_DeleteAndReset(t *testing.T) {
	idx := NewIndex[int, string]()
	idx.Put(1, "one")
	idx.Put(2, "two")

	idx.Delete(1)
	assert.Equal(t, 1, idx.Len())

	idx.Reset()
	assert.Equal(t, 0, idx.Len())
}

func TestIndex_Keys(t *testing.T) {
	idx := NewIndex[int, string]()
	for _, k := range []int{3, 1, 2} {
		idx.Put(k, "")
	}

	assert.Equal(t, []int{1, 2, 3}, idx.Keys(func(a, b int) bool { return a < b }))
}

func TestIndex_Concurrent(t *testing.T) {
	idx := NewIndex[int, int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			idx.Put(n, n*n)
			idx.Get(n)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, idx.Len())
}

func TestSafeCounter(t *testing.T) {
	var c SafeCounter
	assert.Equal(t, 1, c.Inc())
	assert.Equal(t, 2, c.Inc())
	c.Set(10)
	assert.Equal(t, 10, c.Value())
}
