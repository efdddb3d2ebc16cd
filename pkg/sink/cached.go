package sink

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/matzehuels/bpdoc/pkg/cache"
	"github.com/matzehuels/bpdoc/pkg/observability"
)

// DefaultMemoSize is the number of document hashes Cached keeps in memory.
const DefaultMemoSize = 4096

// Cached skips writes whose content is identical to the last successful
// write of the same document. Hashes are memoized in an LRU and persisted in
// a cache.Cache so the skip also applies across runs.
//
// Cache failures never fail a write; they are logged and the write goes
// through.
type Cached struct {
	// TTL is the lifetime of persisted hashes. Zero keeps them until the
	// cache is cleared.
	TTL time.Duration

	next   Sink
	cache  cache.Cache
	keyer  cache.Keyer
	memo   *lru.Cache[string, string]
	logger *log.Logger

	skipped      atomic.Int64 // document writes
	skippedIndex atomic.Int64
}

// NewCached wraps next. A nil keyer uses cache.NewDefaultKeyer(); a nil
// logger uses log.Default().
func NewCached(next Sink, c cache.Cache, keyer cache.Keyer, logger *log.Logger) (*Cached, error) {
	if next == nil {
		return nil, fmt.Errorf("cached sink: next sink is nil")
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	memo, err := lru.New[string, string](DefaultMemoSize)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, cache: c, keyer: keyer, memo: memo, logger: logger}, nil
}

// Name returns the wrapped sink's name.
func (c *Cached) Name() string { return Name(c.next) }

// Unwrap returns the wrapped sink.
func (c *Cached) Unwrap() Sink { return c.next }

// Skipped returns the number of document writes skipped so far. Skipped
// index writes are counted by SkippedIndex.
func (c *Cached) Skipped() int { return int(c.skipped.Load()) }

// SkippedIndex returns the number of index writes skipped so far.
func (c *Cached) SkippedIndex() int { return int(c.skippedIndex.Load()) }

// Write forwards doc unless its hash matches the recorded one.
func (c *Cached) Write(ctx context.Context, path string, doc []byte) error {
	return c.write(ctx, path, c.keyer.DocumentKey(path), doc, &c.skipped, func() error {
		return c.next.Write(ctx, path, doc)
	})
}

// WriteIndex forwards the index unless its hash matches the recorded one.
func (c *Cached) WriteIndex(ctx context.Context, doc []byte) error {
	return c.write(ctx, "index", c.keyer.IndexKey(), doc, &c.skippedIndex, func() error {
		return c.next.WriteIndex(ctx, doc)
	})
}

// Remove forwards the removal and forgets the recorded hash.
func (c *Cached) Remove(ctx context.Context, path string) error {
	if err := c.next.Remove(ctx, path); err != nil {
		return err
	}
	key := c.keyer.DocumentKey(path)
	c.memo.Remove(key)
	if err := c.cache.Delete(ctx, key); err != nil {
		c.logger.Warn("hash cache delete failed", "path", path, "error", err)
	}
	return nil
}

// ReadIndex reads the index from the wrapped sink.
func (c *Cached) ReadIndex(ctx context.Context) ([]byte, error) {
	return ReadIndex(ctx, c.next)
}

func (c *Cached) write(ctx context.Context, label, key string, doc []byte, skipped *atomic.Int64, forward func() error) error {
	hash := cache.Hash(doc)
	if c.unchanged(ctx, key, hash) {
		skipped.Add(1)
		observability.Sink().OnSkip(ctx, c.Name(), label)
		return nil
	}
	if err := forward(); err != nil {
		return err
	}
	c.memo.Add(key, hash)
	if err := c.cache.Set(ctx, key, []byte(hash), c.TTL); err != nil {
		c.logger.Warn("hash cache write failed", "path", label, "error", err)
	}
	return nil
}

func (c *Cached) unchanged(ctx context.Context, key, hash string) bool {
	if h, ok := c.memo.Get(key); ok {
		return h == hash
	}
	stored, hit, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("hash cache read failed", "key", key, "error", err)
		return false
	}
	if !hit {
		return false
	}
	c.memo.Add(key, string(stored))
	return string(stored) == hash
}

var (
	_ Sink        = (*Cached)(nil)
	_ IndexReader = (*Cached)(nil)
)
