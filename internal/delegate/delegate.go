// Package delegate lets callers hook public API methods. Permission hooks can
// veto a call, pre hooks run before the body and may rewrite arguments passed
// by pointer, and post hooks see the return value.
package delegate

import (
	"sync"
)

// Permission returns false to suppress the call.
type Permission func(args ...any) bool

// Pre runs before the method body.
type Pre func(args ...any)

// Post runs after the method body with its return value.
type Post func(ret any, args ...any)

type hooks struct {
	perm []Permission
	pre  []Pre
	post []Post
}

// Manager holds the hooks of one API component keyed by method name.
type Manager struct {
	mu      sync.RWMutex
	methods map[string]*hooks
}

// NewManager returns a manager with no hooks.
func NewManager() *Manager {
	return &Manager{methods: make(map[string]*hooks)}
}

func (m *Manager) get(method string) *hooks {
	h, ok := m.methods[method]
	if !ok {
		h = &hooks{}
		m.methods[method] = h
	}
	return h
}

func (m *Manager) AddPermission(method string, fn Permission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.get(method)
	h.perm = append(h.perm, fn)
}

func (m *Manager) AddPre(method string, fn Pre) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.get(method)
	h.pre = append(h.pre, fn)
}

func (m *Manager) AddPost(method string, fn Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.get(method)
	h.post = append(h.post, fn)
}

// Clear removes every hook of method.
func (m *Manager) Clear(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.methods, method)
}

func (m *Manager) snapshot(method string) hooks {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.methods[method]
	if !ok {
		return hooks{}
	}
	return hooks{
		perm: append([]Permission(nil), h.perm...),
		pre:  append([]Pre(nil), h.pre...),
		post: append([]Post(nil), h.post...),
	}
}

// Allowed runs every permission hook of method. All hooks run even after one
// refuses.
func (m *Manager) Allowed(method string, args ...any) bool {
	ok := true
	for _, fn := range m.snapshot(method).perm {
		if !fn(args...) {
			ok = false
		}
	}
	return ok
}

// Call runs body wrapped in the hooks of method. When a permission hook
// refuses, body and the other hooks are skipped and fallback is returned.
// A nil manager runs body alone.
func Call[R any](m *Manager, method string, fallback R, body func() R, args ...any) R {
	if m == nil {
		return body()
	}
	h := m.snapshot(method)
	for _, fn := range h.perm {
		if !fn(args...) {
			return fallback
		}
	}
	for _, fn := range h.pre {
		fn(args...)
	}
	ret := body()
	for _, fn := range h.post {
		fn(ret, args...)
	}
	return ret
}

// CallErr is Call for bodies that can fail. Post hooks run only on success.
func CallErr[R any](m *Manager, method string, fallback R, body func() (R, error), args ...any) (R, error) {
	if m == nil {
		return body()
	}
	h := m.snapshot(method)
	for _, fn := range h.perm {
		if !fn(args...) {
			return fallback, nil
		}
	}
	for _, fn := range h.pre {
		fn(args...)
	}
	ret, err := body()
	if err != nil {
		return ret, err
	}
	for _, fn := range h.post {
		fn(ret, args...)
	}
	return ret, nil
}
