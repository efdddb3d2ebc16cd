package sink

import (
	"context"
	"errors"
)

// ErrNoIndex is returned by ReadIndex when no index has been written.
var ErrNoIndex = errors.New("no index")

// indexID is the row or document ID of the index in database sinks. It
// cannot collide with an artifact path, which always starts with "/".
const indexID = "@index"

// Sink is a document destination. Implementations must be safe for
// concurrent use.
type Sink interface {
	// Write stores the document for an artifact, replacing any previous one.
	Write(ctx context.Context, path string, doc []byte) error

	// WriteIndex stores the index document.
	WriteIndex(ctx context.Context, doc []byte) error

	// Remove deletes the document for an artifact. Removing a missing
	// document is not an error.
	Remove(ctx context.Context, path string) error
}

// IndexReader is implemented by sinks that can read back their index.
type IndexReader interface {
	// ReadIndex returns the last written index, or ErrNoIndex.
	ReadIndex(ctx context.Context) ([]byte, error)
}

// Namer is implemented by sinks that report a short name for logs.
type Namer interface {
	Name() string
}

// Name returns s's name, or "sink" if it does not implement Namer.
func Name(s Sink) string {
	if n, ok := s.(Namer); ok {
		return n.Name()
	}
	return "sink"
}

// ReadIndex reads the index from s if it implements IndexReader.
func ReadIndex(ctx context.Context, s Sink) ([]byte, error) {
	r, ok := s.(IndexReader)
	if !ok {
		return nil, ErrNoIndex
	}
	return r.ReadIndex(ctx)
}
