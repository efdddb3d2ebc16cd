package export

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/bpdoc/pkg/document"
	"github.com/matzehuels/bpdoc/pkg/errors"
	"github.com/matzehuels/bpdoc/pkg/host"
	"github.com/matzehuels/bpdoc/pkg/observability"
	"github.com/matzehuels/bpdoc/pkg/serialize"
	"github.com/matzehuels/bpdoc/pkg/sink"
)

// Coordinator runs exports against one host and one sink. Runs must not
// overlap; Index and Len may be called concurrently with a run.
type Coordinator struct {
	Host       host.Host
	Sink       sink.Sink
	Serializer *serialize.Serializer
	Logger     *log.Logger

	opts Options

	mu    sync.RWMutex
	index map[string]document.IndexEntry
	dirty bool // index changed since the last successful WriteIndex
}

// NewCoordinator returns a coordinator. A nil logger uses log.Default().
func NewCoordinator(h host.Host, s sink.Sink, opts Options, logger *log.Logger) (*Coordinator, error) {
	if h == nil {
		return nil, fmt.Errorf("host is nil")
	}
	if s == nil {
		return nil, fmt.Errorf("sink is nil")
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{
		Host:       h,
		Sink:       s,
		Serializer: serialize.New(logger),
		Logger:     logger,
		opts:       opts,
		index:      make(map[string]document.IndexEntry),
	}, nil
}

// Options returns the effective options.
func (c *Coordinator) Options() Options { return c.opts }

// =============================================================================
// Runs
// =============================================================================

// ExportAll exports every artifact the host enumerates and rewrites the
// index. Documents of artifacts that were indexed before but are no longer
// enumerated are removed.
func (c *Coordinator) ExportAll(ctx context.Context) (*Result, error) {
	start := time.Now()
	refs, err := c.Host.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate: %w", err)
	}
	paths := make([]string, 0, len(refs))
	for _, r := range refs {
		paths = append(paths, r.Path)
	}
	paths = dedupe(paths)

	res := &Result{Mode: ModeFull, Total: len(paths)}
	observability.Export().OnExportStart(ctx, string(ModeFull), res.Total)
	c.Logger.Info("starting full export", "artifacts", res.Total)

	previous := c.snapshotIndex()
	owners := make(map[string]string, len(paths))
	for _, p := range paths {
		if _, ok := previous[p]; ok {
			claim(owners, p)
		}
	}
	for _, p := range paths {
		claim(owners, p)
	}
	owner := func(path string) string {
		if o := owners[document.OutputPath(path)]; o != path {
			return o
		}
		return ""
	}

	fresh := make(map[string]document.IndexEntry, len(paths))
	err = c.run(ctx, paths, res, owner, func(p *prepared) {
		switch {
		case p.entry != nil:
			fresh[p.path] = *p.entry
		case p.err != nil && !p.conflict:
			// The previous document, if any, is still in the sink.
			if old, ok := previous[p.path]; ok {
				fresh[p.path] = old
			}
		}
	})
	if err != nil {
		return c.finish(ctx, res, start, err)
	}

	enumerated := make(map[string]bool, len(paths))
	for _, p := range paths {
		enumerated[p] = true
	}
	for _, p := range sortedKeys(previous) {
		if enumerated[p] {
			continue
		}
		if owner(p) != "" {
			// Its document location now belongs to a live artifact.
			continue
		}
		if err := c.Sink.Remove(ctx, p); err != nil {
			res.Failures = append(res.Failures, Failure{Path: p, Err: errors.Wrap(errors.ErrCodeSinkFailure, err, "remove stale document")})
			fresh[p] = previous[p]
			continue
		}
		res.Removed++
	}

	c.mu.Lock()
	c.index = fresh
	c.dirty = true
	c.mu.Unlock()
	return c.finish(ctx, res, start, c.writeIndex(ctx))
}

// ExportIncremental re-exports paths. Paths whose artifact no longer exists
// are retired. An empty input does nothing.
func (c *Coordinator) ExportIncremental(ctx context.Context, paths []string) (*Result, error) {
	res := &Result{Mode: ModeIncremental}
	paths = dedupe(paths)
	if len(paths) == 0 {
		return res, nil
	}
	start := time.Now()
	res.Total = len(paths)
	observability.Export().OnExportStart(ctx, string(ModeIncremental), res.Total)

	err := c.run(ctx, paths, res, c.indexedOwner, func(p *prepared) {
		if p.entry == nil && !p.removed {
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		old, had := c.index[p.path]
		if p.removed {
			if had {
				delete(c.index, p.path)
				c.dirty = true
			}
			return
		}
		if !had || old != *p.entry {
			c.index[p.path] = *p.entry
			c.dirty = true
		}
	})
	if err == nil && c.Dirty() {
		err = c.writeIndex(ctx)
	}
	return c.finish(ctx, res, start, err)
}

// Retire removes the documents and index entries of paths and writes the
// index once.
func (c *Coordinator) Retire(ctx context.Context, paths ...string) (*Result, error) {
	res := &Result{Mode: ModeRetire}
	paths = dedupe(paths)
	if len(paths) == 0 {
		return res, nil
	}
	start := time.Now()
	res.Total = len(paths)

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return c.finish(ctx, res, start, err)
		}
		if other := c.indexedOwner(p); other != "" {
			c.Logger.Debug("document kept", "path", p, "owner", other)
		} else if err := c.remove(ctx, p); err != nil {
			res.Failures = append(res.Failures, Failure{Path: p, Err: err})
			continue
		} else {
			res.Removed++
		}
		c.mu.Lock()
		if _, ok := c.index[p]; ok {
			delete(c.index, p)
			c.dirty = true
		}
		c.mu.Unlock()
	}
	var err error
	if c.Dirty() {
		err = c.writeIndex(ctx)
	}
	return c.finish(ctx, res, start, err)
}

// LoadIndex seeds the in-memory index from the sink. Sinks without a
// readable index leave it empty. It returns the number of entries loaded.
func (c *Coordinator) LoadIndex(ctx context.Context) (int, error) {
	data, err := sink.ReadIndex(ctx, c.Sink)
	if stderrors.Is(err, sink.ErrNoIndex) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeSinkFailure, err, "read index")
	}
	idx, err := document.UnmarshalIndex(data)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeSinkFailure, err, "decode index")
	}

	entries := make(map[string]document.IndexEntry, len(idx.Artifacts))
	for _, e := range idx.Artifacts {
		entries[e.Path] = e
	}
	c.mu.Lock()
	c.index = entries
	c.dirty = false
	c.mu.Unlock()
	return len(entries), nil
}

// Index returns the current index.
func (c *Coordinator) Index() document.Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries := make([]document.IndexEntry, 0, len(c.index))
	for _, e := range c.index {
		entries = append(entries, e)
	}
	return document.NewIndex(entries)
}

// Dirty reports whether the in-memory index has changes the sink has not
// stored yet. The next run that touches the index writes it.
func (c *Coordinator) Dirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty
}

// Len returns the number of indexed documents.
func (c *Coordinator) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.index)
}

// =============================================================================
// Internal Implementation
// =============================================================================

// prepared is one artifact read and serialized, ready to write.
type prepared struct {
	path     string
	data     []byte
	entry    *document.IndexEntry // Set once the document is written
	warnings []errors.Warning
	removed  bool // Artifact no longer exists; document retired
	shared   bool // Removed, but its document location belongs to another artifact
	conflict bool // Its document location belongs to another artifact
	err      error
	elapsed  time.Duration
}

// run processes paths in chunks and calls apply for each artifact in order.
// owner returns the other artifact whose document shares a path's output
// location, or "". It returns ctx.Err() if the context is cancelled.
func (c *Coordinator) run(ctx context.Context, paths []string, res *Result, owner func(string) string, apply func(*prepared)) error {
	for lo := 0; lo < len(paths); lo += c.opts.ChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		hi := min(lo+c.opts.ChunkSize, len(paths))
		batch := c.prepare(ctx, paths[lo:hi])

		for _, p := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			if other := owner(p.path); other != "" {
				markConflict(p, other)
			}
			c.commit(ctx, p)
			c.record(ctx, res, p)
			apply(p)
		}
		runtime.Gosched()
	}
	return nil
}

// prepare reads and serializes a chunk with a bounded worker pool. The
// result preserves input order.
func (c *Coordinator) prepare(ctx context.Context, paths []string) []*prepared {
	out := make([]*prepared, len(paths))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for range min(c.opts.Workers, len(paths)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = c.serialize(ctx, paths[i])
			}
		}()
	}
	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return out
}

func (c *Coordinator) serialize(ctx context.Context, path string) *prepared {
	start := time.Now()
	p := &prepared{path: path}
	defer func() { p.elapsed = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		p.err = err
		return p
	}
	a, err := c.Host.Read(ctx, path)
	if stderrors.Is(err, host.ErrNotFound) {
		p.removed = true
		return p
	}
	if err != nil {
		p.err = errors.Wrap(errors.ErrCodeInternal, err, "read snapshot")
		return p
	}
	doc, warnings, err := c.Serializer.Serialize(a)
	p.warnings = warnings
	if err != nil {
		p.err = err
		return p
	}
	if p.data, err = document.Marshal(doc); err != nil {
		p.err = errors.Wrap(errors.ErrCodeInternal, err, "marshal document")
		return p
	}
	entry := document.EntryFor(doc)
	p.entry = &entry
	return p
}

// commit writes a prepared document, or retires a vanished one.
func (c *Coordinator) commit(ctx context.Context, p *prepared) {
	if p.err != nil {
		return
	}
	start := time.Now()
	if p.removed {
		if p.shared {
			return
		}
		if err := c.remove(ctx, p.path); err != nil {
			p.removed = false
			p.err = err
		}
		return
	}
	err := c.opts.Backoff.Retry(ctx, func() error {
		return c.Sink.Write(ctx, p.path, p.data)
	})
	observability.Sink().OnWrite(ctx, sink.Name(c.Sink), p.path, len(p.data), err)
	if err != nil {
		p.entry = nil
		p.err = errors.Wrap(errors.ErrCodeSinkFailure, err, "write document")
	}
	p.elapsed += time.Since(start)
}

// markConflict fails p because other already owns its document location.
// A vanished artifact is still retired, but the shared location is left
// alone.
func markConflict(p *prepared, other string) {
	switch {
	case p.removed:
		p.shared = true
	case p.err == nil:
		p.data, p.entry, p.conflict = nil, nil, true
		p.err = errors.New(errors.ErrCodeInvalidArtifact,
			"document %s already belongs to %s", document.OutputPath(p.path), other)
	}
}

func (c *Coordinator) record(ctx context.Context, res *Result, p *prepared) {
	res.Warnings = append(res.Warnings, p.warnings...)
	switch {
	case p.err != nil:
		res.Failures = append(res.Failures, Failure{Path: p.path, Err: p.err})
		c.Logger.Warn("export failed", "path", p.path, "error", p.err)
	case p.removed:
		res.Removed++
		c.Logger.Debug("retired", "path", p.path)
	default:
		res.Exported++
		c.Logger.Debug("exported", "path", p.path, "warnings", len(p.warnings), "duration", p.elapsed)
	}
	observability.Export().OnArtifactExported(ctx, p.path, p.elapsed, p.err)
}

func (c *Coordinator) remove(ctx context.Context, path string) error {
	err := c.opts.Backoff.Retry(ctx, func() error {
		return c.Sink.Remove(ctx, path)
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeSinkFailure, err, "remove document")
	}
	return nil
}

func (c *Coordinator) writeIndex(ctx context.Context) error {
	data, err := document.MarshalIndex(c.Index())
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "marshal index")
	}
	err = c.opts.Backoff.Retry(ctx, func() error {
		return c.Sink.WriteIndex(ctx, data)
	})
	observability.Sink().OnWrite(ctx, sink.Name(c.Sink), document.IndexFile, len(data), err)
	if err != nil {
		return errors.Wrap(errors.ErrCodeSinkFailure, err, "write index")
	}
	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
	return nil
}

// finish stamps the result, logs the summary and reports completion.
func (c *Coordinator) finish(ctx context.Context, res *Result, start time.Time, err error) (*Result, error) {
	res.Duration = time.Since(start)
	res.Cancelled = err != nil && ctx.Err() != nil
	observability.Export().OnExportComplete(ctx, string(res.Mode), res.Exported, res.Failed(), res.Duration)
	if err != nil {
		c.Logger.Warn(res.Summary(), "error", err)
		return res, err
	}
	c.Logger.Info(res.Summary())
	return res, nil
}

// indexedOwner returns the indexed artifact, other than path, whose document
// has the same output location as path's.
func (c *Coordinator) indexedOwner(path string) string {
	out := document.OutputPath(path)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for p := range c.index {
		if p != path && document.OutputPath(p) == out {
			return p
		}
	}
	return ""
}

func claim(owners map[string]string, path string) {
	out := document.OutputPath(path)
	if _, ok := owners[out]; !ok {
		owners[out] = path
	}
}

func (c *Coordinator) snapshotIndex() map[string]document.IndexEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]document.IndexEntry, len(c.index))
	for k, v := range c.index {
		out[k] = v
	}
	return out
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func sortedKeys(m map[string]document.IndexEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
