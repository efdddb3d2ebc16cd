package sink

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/matzehuels/bpdoc/pkg/cache"
)

func TestFile(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	f, err := NewFile(root)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	if err := f.Write(ctx, "/Game/Props/Doors/BP_Door", []byte("{}\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "Props", "Doors", "BP_Door.json"))
	if err != nil || string(data) != "{}\n" {
		t.Fatalf("document file = %q, %v", data, err)
	}

	if _, err := f.ReadIndex(ctx); !errors.Is(err, ErrNoIndex) {
		t.Errorf("ReadIndex before write = %v, want ErrNoIndex", err)
	}
	if err := f.WriteIndex(ctx, []byte(`{"count":0}`)); err != nil {
		t.Fatal(err)
	}
	if idx, err := f.ReadIndex(ctx); err != nil || string(idx) != `{"count":0}` {
		t.Errorf("ReadIndex = %q, %v", idx, err)
	}

	if err := f.Remove(ctx, "/Game/Props/Doors/BP_Door"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "Props")); !os.IsNotExist(err) {
		t.Error("empty directories were not pruned")
	}
	if _, err := os.Stat(root); err != nil {
		t.Error("root was pruned")
	}
	if err := f.Remove(ctx, "/Game/Props/Doors/BP_Door"); err != nil {
		t.Errorf("Remove missing: %v", err)
	}

	entries, _ := os.ReadDir(root)
	for _, e := range entries {
		if e.Name() != "index.json" {
			t.Errorf("leftover file %s", e.Name())
		}
	}
}

func TestFileRejectsEscape(t *testing.T) {
	f, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"/Game/../../etc/passwd", ""} {
		if err := f.Write(context.Background(), p, []byte("x")); err == nil {
			t.Errorf("Write(%q) succeeded, want error", p)
		}
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("boom")
	m.Fail("/Game/B", boom)

	if err := m.Write(ctx, "/Game/A", []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := m.Write(ctx, "/Game/B", []byte("b")); !errors.Is(err, boom) {
		t.Errorf("Write(/Game/B) = %v, want boom", err)
	}
	if err := m.Remove(ctx, "/Game/A"); err != nil {
		t.Fatal(err)
	}
	if err := m.Remove(ctx, "/Game/A"); err != nil {
		t.Fatal(err)
	}
	if got := m.Stats(); got != (MemoryStats{Writes: 1, Removes: 1}) {
		t.Errorf("Stats = %+v", got)
	}
	if len(m.Paths()) != 0 {
		t.Errorf("Paths = %v", m.Paths())
	}

	ctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := m.Write(ctx, "/Game/C", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Write after cancel = %v", err)
	}
}

func TestCachedSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	c, err := NewCached(mem, cache.NewNullCache(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	for range 3 {
		if err := c.Write(ctx, "/Game/A", []byte("v1")); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Write(ctx, "/Game/A", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	if got := mem.Stats().Writes; got != 2 {
		t.Errorf("forwarded writes = %d, want 2", got)
	}
	if c.Skipped() != 2 {
		t.Errorf("Skipped = %d, want 2", c.Skipped())
	}

	if err := c.Remove(ctx, "/Game/A"); err != nil {
		t.Fatal(err)
	}
	if err := c.Write(ctx, "/Game/A", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	if got := mem.Stats().Writes; got != 3 {
		t.Errorf("write after Remove was skipped")
	}
}

func TestCachedAcrossRuns(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	first := NewMemory()
	c1, _ := NewCached(first, fc, nil, nil)
	if err := c1.Write(ctx, "/Game/A", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := c1.WriteIndex(ctx, []byte("idx")); err != nil {
		t.Fatal(err)
	}

	second := NewMemory()
	c2, _ := NewCached(second, fc, nil, nil)
	if err := c2.Write(ctx, "/Game/A", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := c2.WriteIndex(ctx, []byte("idx")); err != nil {
		t.Fatal(err)
	}
	if got := second.Stats(); got.Writes != 0 || got.IndexWrites != 0 {
		t.Errorf("second run forwarded %+v, want nothing", got)
	}
	if c2.Skipped() != 1 || c2.SkippedIndex() != 1 {
		t.Errorf("Skipped = %d, SkippedIndex = %d, want 1 each", c2.Skipped(), c2.SkippedIndex())
	}
}

func TestCachedFailedWriteNotRecorded(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	c, _ := NewCached(mem, nil, nil, nil)
	mem.Fail("/Game/A", errors.New("disk full"))
	if err := c.Write(ctx, "/Game/A", []byte("v1")); err == nil {
		t.Fatal("Write succeeded, want error")
	}
	mem.Fail("/Game/A", nil)
	if err := c.Write(ctx, "/Game/A", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if _, ok := mem.Get("/Game/A"); !ok {
		t.Error("retry after failure was skipped")
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()
	b := Backoff{Attempts: 3, Delay: time.Millisecond}
	transient := errors.New("transient")

	calls := 0
	err := b.Retry(ctx, func() error {
		calls++
		if calls < 3 {
			return Retryable(transient)
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("Retry = %v after %d calls", err, calls)
	}

	calls = 0
	permanent := errors.New("permanent")
	if err := b.Retry(ctx, func() error { calls++; return permanent }); err != permanent || calls != 1 {
		t.Errorf("non-retryable: %v after %d calls", err, calls)
	}

	calls = 0
	err = b.Retry(ctx, func() error { calls++; return Retryable(transient) })
	if !errors.Is(err, transient) || !IsRetryable(err) || calls != 3 {
		t.Errorf("exhausted: %v after %d calls", err, calls)
	}

	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := b.Retry(cctx, func() error { return Retryable(transient) }); err != context.Canceled {
		t.Errorf("cancelled = %v", err)
	}
}

func TestNewS3(t *testing.T) {
	tests := []struct {
		name    string
		cfg     S3Config
		wantErr bool
	}{
		{"missing endpoint", S3Config{AccessKey: "a", SecretKey: "s", Bucket: "b"}, true},
		{"missing keys", S3Config{Endpoint: "localhost:9000", Bucket: "b"}, true},
		{"missing bucket", S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}, true},
		{"ok", S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "b", Prefix: "/docs/"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewS3(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewS3 error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if got := s.Key("/Game/Props/BP_Door"); got != "docs/Props/BP_Door.json" {
					t.Errorf("Key = %q", got)
				}
			}
		})
	}
}

func TestNewPostgresFromDB(t *testing.T) {
	db, err := sql.Open("pgx", "postgres://localhost:1/none")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := NewPostgresFromDB(db, "docs; DROP TABLE x"); err == nil {
		t.Error("accepted unsafe table name")
	}
	p, err := NewPostgresFromDB(db, "")
	if err != nil {
		t.Fatal(err)
	}
	if p.table != DefaultTable {
		t.Errorf("table = %q", p.table)
	}
	if _, err := NewPostgres(context.Background(), " ", ""); err == nil {
		t.Error("NewPostgres accepted empty dsn")
	}
}

// fakeDB is a database/sql connector whose first failing Execs return a
// connection error.
type fakeDB struct {
	mu    sync.Mutex
	fail  int
	execs []string
}

func (f *fakeDB) Connect(context.Context) (driver.Conn, error) { return &fakeConn{db: f}, nil }
func (f *fakeDB) Driver() driver.Driver { return fakeDriver{db: f} }

type fakeDriver struct{ db *fakeDB }

func (d fakeDriver) Open(string) (driver.Conn, error) { return &fakeConn{db: d.db}, nil }

type fakeConn struct{ db *fakeDB }

func (c *fakeConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) { return nil, errors.New("not supported") }

func (c *fakeConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	c.db.execs = append(c.db.execs, query)
	if c.db.fail > 0 {
		c.db.fail--
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	}
	return driver.RowsAffected(1), nil
}

func TestPostgresSchemaRetried(t *testing.T) {
	ctx := context.Background()
	fake := &fakeDB{fail: 1}
	db := sql.OpenDB(fake)
	defer db.Close()
	p, err := NewPostgresFromDB(db, "")
	if err != nil {
		t.Fatal(err)
	}

	err = p.Write(ctx, "/Game/BP_Door", []byte(`{}`))
	if err == nil || !IsRetryable(err) {
		t.Fatalf("first Write = %v, want retryable error", err)
	}

	b := Backoff{Attempts: 2, Delay: time.Millisecond}
	if err := b.Retry(ctx, func() error { return p.Write(ctx, "/Game/BP_Door", []byte(`{}`)) }); err != nil {
		t.Fatalf("Write after outage: %v", err)
	}
	if err := p.WriteIndex(ctx, []byte(`{}`)); err != nil {
		t.Fatalf("WriteIndex: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	creates := 0
	for _, q := range fake.execs {
		if strings.Contains(q, "CREATE TABLE") {
			creates++
		}
	}
	if len(fake.execs) != 4 || creates != 2 {
		t.Errorf("execs = %d (%d CREATE TABLE), want failed create, create, two upserts", len(fake.execs), creates)
	}
}

func TestSetupRetriesAfterFailure(t *testing.T) {
	var s setup
	calls := 0
	fail := errors.New("bucket unavailable")
	step := func() error {
		calls++
		if calls == 1 {
			return fail
		}
		return nil
	}
	if err := s.run(step); err != fail {
		t.Fatalf("first run = %v, want %v", err, fail)
	}
	for range 2 {
		if err := s.run(step); err != nil {
			t.Fatalf("run = %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestS3ErrorRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, true},
		{"server", minio.ErrorResponse{StatusCode: 503, Code: "SlowDown"}, true},
		{"denied", minio.ErrorResponse{StatusCode: 403, Code: "AccessDenied"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(s3Error(tt.err)); got != tt.want {
				t.Errorf("IsRetryable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewMongoValidation(t *testing.T) {
	ctx := context.Background()
	if _, err := NewMongo(ctx, MongoConfig{Database: "db"}); err == nil {
		t.Error("accepted empty uri")
	}
	if _, err := NewMongo(ctx, MongoConfig{URI: "mongodb://localhost"}); err == nil {
		t.Error("accepted empty database")
	}
}

func TestName(t *testing.T) {
	c, _ := NewCached(NewMemory(), nil, nil, nil)
	if Name(c) != "memory" {
		t.Errorf("Name = %q", Name(c))
	}
}
