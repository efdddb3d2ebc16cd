package sink

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/matzehuels/bpdoc/pkg/document"
)

// DefaultTable is the Postgres table used when none is configured.
const DefaultTable = "bpdoc_documents"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Postgres stores one row per document:
//
//	path TEXT PRIMARY KEY   artifact path ("@index" for the index)
//	file TEXT               relative output path
//	body JSONB              the document
type Postgres struct {
	db     *sql.DB
	table  string
	schema setup
}

// NewPostgres opens dsn with the pgx driver and verifies the connection. An
// empty table uses DefaultTable.
func NewPostgres(ctx context.Context, dsn, table string) (*Postgres, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p, err := NewPostgresFromDB(db, table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgresFromDB wraps an open database handle.
func NewPostgresFromDB(db *sql.DB, table string) (*Postgres, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Postgres{db: db, table: table}, nil
}

// Name returns "postgres".
func (p *Postgres) Name() string { return "postgres" }

// Table returns the table documents are stored in.
func (p *Postgres) Table() string { return p.table }

// Close closes the database handle.
func (p *Postgres) Close() error { return p.db.Close() }

// Write upserts a document row.
func (p *Postgres) Write(ctx context.Context, path string, doc []byte) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is required")
	}
	return p.upsert(ctx, path, document.OutputPath(path), doc)
}

// WriteIndex upserts the index row.
func (p *Postgres) WriteIndex(ctx context.Context, doc []byte) error {
	return p.upsert(ctx, indexID, document.IndexFile, doc)
}

// Remove deletes a document row.
func (p *Postgres) Remove(ctx context.Context, path string) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE path = $1`, p.table), path)
	return pgError(err)
}

// ReadIndex returns the index row.
func (p *Postgres) ReadIndex(ctx context.Context) ([]byte, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	var body string
	err := p.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT body::text FROM %s WHERE path = $1`, p.table), indexID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoIndex
	}
	if err != nil {
		return nil, pgError(err)
	}
	return []byte(body), nil
}

func (p *Postgres) upsert(ctx context.Context, path, file string, doc []byte) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (path, file, body)
VALUES ($1, $2, $3::jsonb)
ON CONFLICT (path) DO UPDATE SET
	file = EXCLUDED.file,
	body = EXCLUDED.body`, p.table), path, file, string(doc))
	return pgError(err)
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	return p.schema.run(func() error {
		_, err := p.db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	path TEXT PRIMARY KEY,
	file TEXT NOT NULL,
	body JSONB NOT NULL
)`, p.table))
		if err != nil {
			return fmt.Errorf("ensure schema: %w", pgError(err))
		}
		return nil
	})
}

// pgError marks connection failures retryable.
func pgError(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return Retryable(err)
	}
	return err
}

var (
	_ Sink        = (*Postgres)(nil)
	_ IndexReader = (*Postgres)(nil)
)
