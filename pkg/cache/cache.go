// Package cache stores the content hashes of written documents so unchanged
// documents are not rewritten.
//
// Exports are deterministic: an artifact that did not change serializes to
// the same bytes. The cached sink (pkg/sink.Cached) hashes every document
// before writing and skips the write when the hash matches the one recorded
// here. Keeping the hashes outside the process lets a fresh `bpdoc export`
// skip the whole unchanged corpus.
//
// # Backends
//
//   - [FileCache]: one small file per key under a directory (CLI default)
//   - [RedisCache]: a shared Redis instance, for several exporters writing
//     to the same destination
//   - [NullCache]: stores nothing (--no-cache)
//
// # Keys
//
// A [Keyer] maps artifact paths to cache keys. Wrap it in a [ScopedKeyer]
// when one cache serves several destinations:
//
//	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "out:"+cache.Hash([]byte(outDir))[:12]+":")
//	key := keyer.DocumentKey("/Game/Props/BP_Door")
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with optional expiry.
type Cache interface {
	// Get returns the value for key. A missing or expired key is a miss,
	// not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl <= 0 never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer generates cache keys.
type Keyer interface {
	// DocumentKey is the key holding the hash of an artifact's document.
	DocumentKey(artifactPath string) string

	// IndexKey is the key holding the hash of the index document.
	IndexKey() string
}

// DefaultKeyer generates unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// DocumentKey returns "doc:<sha256(path)>".
func (DefaultKeyer) DocumentKey(artifactPath string) string {
	return hashKey("doc", artifactPath)
}

// IndexKey returns "index".
func (DefaultKeyer) IndexKey() string { return "index" }
