package sink

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Memory keeps documents in memory. It is used by tests and dry runs.
type Memory struct {
	mu      sync.Mutex
	docs    map[string][]byte
	index   []byte
	fail    map[string]error
	writes  int
	indexes int
	removes int
}

// NewMemory returns an empty Memory sink.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte), fail: make(map[string]error)}
}

// Name returns "memory".
func (m *Memory) Name() string { return "memory" }

// Write stores a copy of doc.
func (m *Memory) Write(ctx context.Context, path string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[path]; err != nil {
		return err
	}
	m.docs[path] = slices.Clone(doc)
	m.writes++
	return nil
}

// WriteIndex stores a copy of the index.
func (m *Memory) WriteIndex(ctx context.Context, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = slices.Clone(doc)
	m.indexes++
	return nil
}

// Remove deletes a document.
func (m *Memory) Remove(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[path]; ok {
		delete(m.docs, path)
		m.removes++
	}
	return nil
}

// ReadIndex returns the last written index.
func (m *Memory) ReadIndex(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index == nil {
		return nil, ErrNoIndex
	}
	return slices.Clone(m.index), nil
}

// Fail makes every Write for path return err. A nil err clears it.
func (m *Memory) Fail(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, path)
		return
	}
	m.fail[path] = err
}

// Get returns the stored document for path.
func (m *Memory) Get(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[path]
	return slices.Clone(doc), ok
}

// Paths returns the stored artifact paths, sorted.
func (m *Memory) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.docs))
}

// Index returns the last written index, or nil.
func (m *Memory) Index() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.index)
}

// MemoryStats counts operations on a Memory sink.
type MemoryStats struct {
	Writes      int
	IndexWrites int
	Removes     int
}

// Stats returns operation counts.
func (m *Memory) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MemoryStats{Writes: m.writes, IndexWrites: m.indexes, Removes: m.removes}
}

var (
	_ Sink        = (*Memory)(nil)
	_ IndexReader = (*Memory)(nil)
)
