package export

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/bpdoc/pkg/document"
	"github.com/matzehuels/bpdoc/pkg/errors"
	"github.com/matzehuels/bpdoc/pkg/host"
	"github.com/matzehuels/bpdoc/pkg/sink"
	"github.com/matzehuels/bpdoc/pkg/walker"
)

var fastRetry = sink.Backoff{Attempts: 3, Delay: time.Millisecond}

func artifact(path string, calls ...string) *host.Artifact {
	name := path[strings.LastIndex(path, "/")+1:]
	g := &host.Graph{Name: "EventGraph"}
	for i, owner := range calls {
		g.Nodes = append(g.Nodes, host.Node{ID: fmt.Sprintf("Call_%d", i), Class: walker.ClassCallFunction, FunctionOwner: owner})
	}
	return &host.Artifact{Path: path, Name: name, Class: host.DefaultKind, EventGraphs: []*host.Graph{g}}
}

func corpus(n int) *host.Memory {
	h := host.NewMemory()
	for i := range n {
		h.Put(artifact(fmt.Sprintf("/Game/BP_%02d", i), "/Script/Engine.Actor"))
	}
	return h
}

func newCoordinator(t *testing.T, h host.Host, s sink.Sink, opts Options) *Coordinator {
	t.Helper()
	if opts.Backoff.Attempts == 0 {
		opts.Backoff = fastRetry
	}
	c, err := NewCoordinator(h, s, opts, nil)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	return c
}

func TestExportAll(t *testing.T) {
	ctx := context.Background()
	out := sink.NewMemory()
	c := newCoordinator(t, corpus(5), out, Options{ChunkSize: 2})

	res, err := c.ExportAll(ctx)
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	if res.Exported != 5 || res.Failed() != 0 || res.Total != 5 {
		t.Errorf("result = %+v", res)
	}
	stats := out.Stats()
	if stats.Writes != 5 || stats.IndexWrites != 1 {
		t.Errorf("sink stats = %+v, want 5 writes and 1 index write", stats)
	}

	idx, err := document.UnmarshalIndex(out.Index())
	if err != nil {
		t.Fatal(err)
	}
	if idx.Count != 5 || idx.Artifacts[0].Path != "/Game/BP_00" || idx.Artifacts[0].Dependencies != 1 {
		t.Errorf("index = %+v", idx)
	}
	if !strings.Contains(res.Summary(), "full export: 5 exported") {
		t.Errorf("Summary = %q", res.Summary())
	}
}

func TestExportAllDeterministic(t *testing.T) {
	ctx := context.Background()
	h := corpus(3)
	var runs [][]byte
	for range 2 {
		out := sink.NewMemory()
		c := newCoordinator(t, h, out, Options{Workers: 3})
		if _, err := c.ExportAll(ctx); err != nil {
			t.Fatal(err)
		}
		doc, _ := out.Get("/Game/BP_01")
		runs = append(runs, append(doc, out.Index()...))
	}
	if !bytes.Equal(runs[0], runs[1]) {
		t.Error("two full exports of an unchanged corpus differ")
	}
}

func TestExportIncrementalEmpty(t *testing.T) {
	ctx := context.Background()
	out := sink.NewMemory()
	c := newCoordinator(t, corpus(2), out, Options{})
	if _, err := c.ExportAll(ctx); err != nil {
		t.Fatal(err)
	}
	before := out.Stats()
	indexBefore := out.Index()

	res, err := c.ExportIncremental(ctx, nil)
	if err != nil {
		t.Fatalf("ExportIncremental: %v", err)
	}
	if res.Exported != 0 || res.Removed != 0 {
		t.Errorf("result = %+v", res)
	}
	if out.Stats() != before || !bytes.Equal(out.Index(), indexBefore) {
		t.Error("empty incremental export touched the sink")
	}
}

func TestExportIncremental(t *testing.T) {
	ctx := context.Background()
	h := corpus(3)
	out := sink.NewMemory()
	c := newCoordinator(t, h, out, Options{})
	if _, err := c.ExportAll(ctx); err != nil {
		t.Fatal(err)
	}

	h.Put(artifact("/Game/BP_01", "/Script/Engine.Actor", "/Game/BP_00"))
	h.Remove("/Game/BP_02")
	h.Put(artifact("/Game/BP_New"))

	res, err := c.ExportIncremental(ctx, []string{"/Game/BP_01", "/Game/BP_02", "/Game/BP_New", "/Game/BP_01"})
	if err != nil {
		t.Fatalf("ExportIncremental: %v", err)
	}
	if res.Exported != 2 || res.Removed != 1 || res.Failed() != 0 {
		t.Errorf("result = %+v", res)
	}
	if got := out.Stats(); got.IndexWrites != 2 {
		t.Errorf("index writes = %d, want 2 (full + one incremental)", got.IndexWrites)
	}
	if _, ok := out.Get("/Game/BP_02"); ok {
		t.Error("removed artifact still has a document")
	}

	idx := c.Index()
	var paths []string
	for _, e := range idx.Artifacts {
		paths = append(paths, e.Path)
		if e.Path == "/Game/BP_01" && e.Dependencies != 2 {
			t.Errorf("BP_01 dependencies = %d, want 2", e.Dependencies)
		}
	}
	if got := strings.Join(paths, ","); got != "/Game/BP_00,/Game/BP_01,/Game/BP_New" {
		t.Errorf("index paths = %s", got)
	}
}

func TestExportIncrementalUnchangedSkipsIndex(t *testing.T) {
	ctx := context.Background()
	out := sink.NewMemory()
	c := newCoordinator(t, corpus(2), out, Options{})
	if _, err := c.ExportAll(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ExportIncremental(ctx, []string{"/Game/BP_00"}); err != nil {
		t.Fatal(err)
	}
	if got := out.Stats().IndexWrites; got != 1 {
		t.Errorf("index writes = %d, want 1", got)
	}
}

func TestExportFailuresDoNotAbort(t *testing.T) {
	ctx := context.Background()
	h := corpus(3)
	h.Put(&host.Artifact{Path: "/Game/Nameless", Class: host.DefaultKind})
	out := sink.NewMemory()
	out.Fail("/Game/BP_01", stderrors.New("disk full"))
	c := newCoordinator(t, h, out, Options{ChunkSize: 1})

	res, err := c.ExportAll(ctx)
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	if res.Exported != 2 || res.Failed() != 2 {
		t.Fatalf("result = %+v", res)
	}
	byPath := map[string]error{}
	for _, f := range res.Failures {
		byPath[f.Path] = f.Err
	}
	if !errors.Is(byPath["/Game/BP_01"], errors.ErrCodeSinkFailure) {
		t.Errorf("BP_01 error = %v, want SINK_FAILURE", byPath["/Game/BP_01"])
	}
	if !errors.Is(byPath["/Game/Nameless"], errors.ErrCodeInvalidArtifact) {
		t.Errorf("Nameless error = %v, want INVALID_ARTIFACT", byPath["/Game/Nameless"])
	}
	if c.Len() != 2 {
		t.Errorf("index has %d entries, want 2", c.Len())
	}
}

// flaky fails the first write of each path with a retryable error.
type flaky struct {
	*sink.Memory
	mu   sync.Mutex
	seen map[string]bool
}

func (f *flaky) Write(ctx context.Context, path string, doc []byte) error {
	f.mu.Lock()
	first := !f.seen[path]
	f.seen[path] = true
	f.mu.Unlock()
	if first {
		return sink.Retryable(stderrors.New("connection reset"))
	}
	return f.Memory.Write(ctx, path, doc)
}

func TestExportRetriesTransientWrites(t *testing.T) {
	out := &flaky{Memory: sink.NewMemory(), seen: map[string]bool{}}
	c := newCoordinator(t, corpus(2), out, Options{})
	res, err := c.ExportAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Exported != 2 || res.Failed() != 0 {
		t.Errorf("result = %+v", res)
	}
}

// cancelling cancels the run after n document writes.
type cancelling struct {
	*sink.Memory
	cancel context.CancelFunc
	mu     sync.Mutex
	left   int
}

func (s *cancelling) Write(ctx context.Context, path string, doc []byte) error {
	if err := s.Memory.Write(ctx, path, doc); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.left--; s.left == 0 {
		s.cancel()
	}
	return nil
}

func TestExportAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &cancelling{Memory: sink.NewMemory(), cancel: cancel, left: 3}
	c := newCoordinator(t, corpus(10), out, Options{ChunkSize: 2})

	res, err := c.ExportAll(ctx)
	if !stderrors.Is(err, context.Canceled) {
		t.Fatalf("ExportAll error = %v, want context.Canceled", err)
	}
	if res == nil || res.Exported != 3 || !res.Cancelled {
		t.Fatalf("result = %+v, want 3 exported and cancelled", res)
	}
	if out.Stats().IndexWrites != 0 {
		t.Error("cancelled export wrote the index")
	}
	if !strings.Contains(res.Summary(), "(cancelled)") {
		t.Errorf("Summary = %q", res.Summary())
	}
}

func TestExportAllRemovesStale(t *testing.T) {
	ctx := context.Background()
	h := corpus(3)
	out := sink.NewMemory()
	first := newCoordinator(t, h, out, Options{})
	if _, err := first.ExportAll(ctx); err != nil {
		t.Fatal(err)
	}

	h.Remove("/Game/BP_00")
	second := newCoordinator(t, h, out, Options{})
	n, err := second.LoadIndex(ctx)
	if err != nil || n != 3 {
		t.Fatalf("LoadIndex = %d, %v", n, err)
	}
	res, err := second.ExportAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Removed != 1 || res.Exported != 2 {
		t.Errorf("result = %+v", res)
	}
	if _, ok := out.Get("/Game/BP_00"); ok {
		t.Error("stale document not removed")
	}
}

func TestRetire(t *testing.T) {
	ctx := context.Background()
	out := sink.NewMemory()
	c := newCoordinator(t, corpus(3), out, Options{})
	if _, err := c.ExportAll(ctx); err != nil {
		t.Fatal(err)
	}
	res, err := c.Retire(ctx, "/Game/BP_00", "/Game/BP_01")
	if err != nil {
		t.Fatal(err)
	}
	if res.Removed != 2 || c.Len() != 1 {
		t.Errorf("Removed = %d, Len = %d", res.Removed, c.Len())
	}
	if got := out.Stats().IndexWrites; got != 2 {
		t.Errorf("index writes = %d, want 2", got)
	}
}

// indexOutage fails the next n index writes.
type indexOutage struct {
	*sink.Memory
	mu   sync.Mutex
	left int
}

func (s *indexOutage) WriteIndex(ctx context.Context, doc []byte) error {
	s.mu.Lock()
	fail := s.left > 0
	if fail {
		s.left--
	}
	s.mu.Unlock()
	if fail {
		return stderrors.New("bucket unavailable")
	}
	return s.Memory.WriteIndex(ctx, doc)
}

func indexedPaths(t *testing.T, out *sink.Memory) string {
	t.Helper()
	idx, err := document.UnmarshalIndex(out.Index())
	if err != nil {
		t.Fatal(err)
	}
	var paths []string
	for _, e := range idx.Artifacts {
		paths = append(paths, e.Path)
	}
	return strings.Join(paths, ",")
}

func TestIndexRewrittenAfterFailedWrite(t *testing.T) {
	ctx := context.Background()
	h := host.NewMemory()
	h.Put(artifact("/Game/BP_A"))
	out := &indexOutage{Memory: sink.NewMemory()}
	c := newCoordinator(t, h, out, Options{})
	if _, err := c.ExportAll(ctx); err != nil {
		t.Fatal(err)
	}

	h.Put(artifact("/Game/BP_B"))
	out.left = 1
	if _, err := c.ExportIncremental(ctx, []string{"/Game/BP_B"}); !errors.Is(err, errors.ErrCodeSinkFailure) {
		t.Fatalf("ExportIncremental error = %v, want SINK_FAILURE", err)
	}
	if !c.Dirty() {
		t.Error("Dirty = false after a failed index write")
	}

	if _, err := c.ExportIncremental(ctx, []string{"/Game/BP_B"}); err != nil {
		t.Fatalf("ExportIncremental: %v", err)
	}
	if got := indexedPaths(t, out.Memory); got != "/Game/BP_A,/Game/BP_B" {
		t.Errorf("sink index = %s, want both artifacts", got)
	}
	if c.Dirty() {
		t.Error("Dirty = true after a successful index write")
	}
}

func TestRetireRewritesIndexAfterFailedWrite(t *testing.T) {
	ctx := context.Background()
	out := &indexOutage{Memory: sink.NewMemory()}
	c := newCoordinator(t, corpus(3), out, Options{})
	if _, err := c.ExportAll(ctx); err != nil {
		t.Fatal(err)
	}

	out.left = 1
	if _, err := c.Retire(ctx, "/Game/BP_00"); err == nil {
		t.Fatal("Retire succeeded, want index write failure")
	}
	if _, err := c.Retire(ctx, "/Game/BP_00"); err != nil {
		t.Fatalf("Retire: %v", err)
	}
	if got := indexedPaths(t, out.Memory); got != "/Game/BP_01,/Game/BP_02" {
		t.Errorf("sink index = %s", got)
	}
}

func TestSharedOutputLocation(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	out, err := sink.NewFile(root)
	if err != nil {
		t.Fatal(err)
	}
	h := host.NewMemory()
	h.Put(artifact("/Game/Props/BP_Door"))
	h.Put(artifact("/Props/BP_Door"))
	h.Put(artifact("/Game/Props/BP_Door.BP_Door"))
	c := newCoordinator(t, h, out, Options{})

	res, err := c.ExportAll(ctx)
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	if res.Exported != 2 || res.Failed() != 1 {
		t.Fatalf("result = %+v, want 2 exported and 1 failed", res)
	}
	if f := res.Failures[0]; f.Path != "/Game/Props/BP_Door.BP_Door" || !errors.Is(f.Err, errors.ErrCodeInvalidArtifact) {
		t.Errorf("failure = %s: %v", f.Path, f.Err)
	}
	for _, rel := range []string{"Props/BP_Door.json", "_mounts/Props/BP_Door.json"} {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel))); err != nil {
			t.Errorf("%s: %v", rel, err)
		}
	}

	if _, err := c.Retire(ctx, "/Game/Props/BP_Door.BP_Door"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(root, "Props", "BP_Door.json"))
	if err != nil {
		t.Fatalf("live document removed: %v", err)
	}
	if !bytes.Contains(data, []byte(`"path": "/Game/Props/BP_Door"`)) {
		t.Errorf("document overwritten:\n%s", data)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}

	res, err = c.ExportIncremental(ctx, []string{"/Game/Props/BP_Door.BP_Door"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed() != 1 || c.Len() != 2 {
		t.Errorf("incremental result = %+v, Len = %d", res, c.Len())
	}
}

func TestLoadIndexWithoutIndex(t *testing.T) {
	c := newCoordinator(t, corpus(1), sink.NewMemory(), Options{})
	n, err := c.LoadIndex(context.Background())
	if err != nil || n != 0 {
		t.Errorf("LoadIndex = %d, %v", n, err)
	}
}

func TestOptionsValidate(t *testing.T) {
	if _, err := NewCoordinator(host.NewMemory(), sink.NewMemory(), Options{ChunkSize: -1}, nil); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("negative chunk size error = %v", err)
	}
	o := Options{}
	o.SetDefaults()
	if o.ChunkSize != DefaultChunkSize || o.Workers != DefaultWorkers || o.Backoff != sink.DefaultBackoff {
		t.Errorf("defaults = %+v", o)
	}
}
