// Package uid generates the 32-character hex identifiers used for sessions,
// playlists, clips, color corrections and HTML overlays.
package uid

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/google/uuid"
)

// Length is the number of hex characters in every identifier.
const Length = 32

// Generator yields identifiers either randomly or from a deterministic chain.
// A chain starts at a seed string; each call hashes the previous value with
// SHA-256 and keeps the first 32 hex characters, so the same seed always
// reproduces the same sequence.
type Generator struct {
	mu    sync.Mutex
	state string
	seed  string
}

// NewGenerator returns a chained generator for a non-empty seed and a random
// generator otherwise.
func NewGenerator(seed string) *Generator {
	return &Generator{state: seed, seed: seed}
}

// Seeded reports whether the generator is deterministic.
func (g *Generator) Seeded() bool {
	return g.seed != ""
}

// Next returns the next identifier.
func (g *Generator) Next() string {
	if g.seed == "" {
		return Random()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	sum := sha256.Sum256([]byte(g.state))
	g.state = hex.EncodeToString(sum[:])[:Length]
	return g.state
}

// Reset rewinds a chained generator to its seed.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = g.seed
}

// Random returns a random identifier.
func Random() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// Valid reports whether s looks like an identifier this package produces.
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Registry tracks identifiers claimed within one session so caller-supplied
// ids can be checked for uniqueness.
type Registry struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]struct{})}
}

// Reserve claims id and returns false when it was already taken.
func (r *Registry) Reserve(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; ok {
		return false
	}
	r.ids[id] = struct{}{}
	return true
}

// Taken reports whether id is claimed.
func (r *Registry) Taken(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[id]
	return ok
}

// Release frees id.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ids, id)
}
