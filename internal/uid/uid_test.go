package uid

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_SeededChainIsReproducible(t *testing.T) {
	a := NewGenerator("playlist-seed")
	b := NewGenerator("playlist-seed")

	for i := 0; i < 5; i++ {
		idA, idB := a.Next(), b.Next()
		assert.Equal(t, idA, idB)
		assert.Len(t, idA, Length)
		assert.True(t, Valid(idA))
	}
}

func TestGenerator_ChainFollowsSHA256(t *testing.T) {
	g := NewGenerator("seed")

	first := sha256.Sum256([]byte("seed"))
	want1 := hex.EncodeToString(first[:])[:Length]
	second := sha256.Sum256([]byte(want1))
	want2 := hex.EncodeToString(second[:])[:Length]

	assert.Equal(t, want1, g.Next())
	assert.Equal(t, want2, g.Next())

	g.Reset()
	assert.Equal(t, want1, g.Next())
}

func TestGenerator_RandomWithoutSeed(t *testing.T) {
	g := NewGenerator("")
	require.False(t, g.Seeded())

	a, b := g.Next(), g.Next()
	assert.NotEqual(t, a, b)
	assert.True(t, Valid(a))
	assert.True(t, Valid(b))
}

func TestValid(t *testing.T) {
	assert.False(t, Valid("short"))
	assert.False(t, Valid("zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"))
	assert.True(t, Valid("0123456789abcdef0123456789abcdef"))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Reserve("a"))
	assert.False(t, r.Reserve("a"))
	assert.True(t, r.Taken("a"))

	r.Release("a")
	assert.False(t, r.Taken("a"))
	assert.True(t, r.Reserve("a"))
}
