package host

import (
	"context"
	"slices"
	"sync"
)

// Memory is an in-process Host. Put and Remove notify subscribers
// synchronously on the calling goroutine. It is safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	order     []string
	artifacts map[string]*Artifact
	registry
}

// NewMemory returns a Memory host seeded with the given artifacts. Seeding
// does not notify subscribers.
func NewMemory(artifacts ...*Artifact) *Memory {
	m := &Memory{artifacts: make(map[string]*Artifact)}
	for _, a := range artifacts {
		if a == nil {
			continue
		}
		if _, ok := m.artifacts[a.Path]; !ok {
			m.order = append(m.order, a.Path)
		}
		m.artifacts[a.Path] = a.Clone()
	}
	return m
}

// Enumerate returns artifacts in the order they were first added.
func (m *Memory) Enumerate(ctx context.Context) ([]ArtifactRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	refs := make([]ArtifactRef, 0, len(m.order))
	for _, p := range m.order {
		refs = append(refs, m.artifacts[p].Ref())
	}
	return refs, nil
}

// Read returns a copy of the stored snapshot.
func (m *Memory) Read(ctx context.Context, path string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.artifacts[path]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

// Subscribe registers lifecycle callbacks.
func (m *Memory) Subscribe(h Handlers) (Subscription, error) {
	return m.subscribe(h), nil
}

// Unsubscribe removes callbacks registered by Subscribe.
func (m *Memory) Unsubscribe(s Subscription) error {
	return m.unsubscribe(s)
}

// Put stores a snapshot and fires OnAdded for a new path or OnUpdated for an
// existing one.
func (m *Memory) Put(a *Artifact) {
	if a == nil {
		return
	}
	m.mu.Lock()
	_, exists := m.artifacts[a.Path]
	if !exists {
		m.order = append(m.order, a.Path)
	}
	m.artifacts[a.Path] = a.Clone()
	m.mu.Unlock()

	kind := added
	if exists {
		kind = updated
	}
	m.fire(kind, Event{Path: a.Path, Class: a.Class})
}

// Remove deletes a snapshot and fires OnRemoved. It reports whether the path
// existed.
func (m *Memory) Remove(path string) bool {
	m.mu.Lock()
	a, ok := m.artifacts[path]
	if ok {
		delete(m.artifacts, path)
		if i := slices.Index(m.order, path); i >= 0 {
			m.order = slices.Delete(m.order, i, i+1)
		}
	}
	m.mu.Unlock()

	if ok {
		m.fire(removed, Event{Path: path, Class: a.Class})
	}
	return ok
}

// Len returns the number of stored artifacts.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.artifacts)
}

var _ Host = (*Memory)(nil)
