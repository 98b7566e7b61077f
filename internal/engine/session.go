// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package engine wraps the embedded DuckDB database in the execution context an
// ingestion run works against. A Session pins a single connection so every
// table and view created during the run is visible to every later step.
package engine

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/marcboeker/go-duckdb/v2"

	"github.com/cardinalhq/avroingest/internal/dataset"
	"github.com/cardinalhq/avroingest/internal/duckdbx"
	"github.com/cardinalhq/avroingest/internal/idgen"
)

// ErrClosed is returned by every Session method once Close has been called.
var ErrClosed = errors.New("engine: session is closed")

// Session is the live execution context of one ingestion run.
type Session struct {
	conn    *sql.Conn
	release func()
	ownedDB *duckdbx.DB

	scratchDir string

	mu     sync.Mutex
	closed bool
}

type sessionConfig struct {
	scratchBase string
	db          *duckdbx.DB
	dbOpts      []duckdbx.DBOption
}

// SessionOption configures Open.
type SessionOption func(*sessionConfig)

// WithDB runs the session on an existing database. The caller keeps ownership
// and must close it after the session.
func WithDB(db *duckdbx.DB) SessionOption {
	return func(c *sessionConfig) {
		c.db = db
	}
}

// WithDBOptions passes options to the database the session creates for itself.
// Ignored when WithDB is used.
func WithDBOptions(opts ...duckdbx.DBOption) SessionOption {
	return func(c *sessionConfig) {
		c.dbOpts = append(c.dbOpts, opts...)
	}
}

// WithScratchBase sets the parent directory of the per-session scratch directory.
func WithScratchBase(dir string) SessionOption {
	return func(c *sessionConfig) {
		c.scratchBase = dir
	}
}

// Open starts a session. Downloads and sink output are staged in a scratch
// directory that Close removes.
func Open(ctx context.Context, opts ...SessionOption) (*Session, error) {
	cfg := &sessionConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Session{}

	db := cfg.db
	if db == nil {
		var err error
		db, err = duckdbx.NewDB(cfg.dbOpts...)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		s.ownedDB = db
	}

	conn, release, err := db.GetConnection(ctx)
	if err != nil {
		if s.ownedDB != nil {
			_ = s.ownedDB.Close()
		}
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	s.conn = conn
	s.release = release

	scratch, err := os.MkdirTemp(cfg.scratchBase, "avroingest-run-")
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	s.scratchDir = scratch

	return s, nil
}

// Close releases the connection, removes the scratch directory, and closes the
// database if the session created it. Handles created on this session become invalid.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var result *multierror.Error
	if s.release != nil {
		s.release()
	}
	if s.scratchDir != "" {
		if err := os.RemoveAll(s.scratchDir); err != nil {
			result = multierror.Append(result, fmt.Errorf("remove scratch dir: %w", err))
		}
	}
	if s.ownedDB != nil {
		if err := s.ownedDB.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close database: %w", err))
		}
	}
	return result.ErrorOrNil()
}

// ScratchDir is a directory private to this session.
func (s *Session) ScratchDir() string {
	return s.scratchDir
}

// NewRelationName returns a fresh relation name starting with prefix.
func (s *Session) NewRelationName(prefix string) string {
	return prefix + "_" + idgen.NextBase32ID()
}

func (s *Session) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Exec runs a statement that returns no rows.
func (s *Session) Exec(ctx context.Context, query string, args ...any) error {
	if err := s.check(); err != nil {
		return err
	}
	_, err := s.conn.ExecContext(ctx, query, args...)
	return err
}

// Query runs a statement and returns its rows. The caller closes them.
func (s *Session) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.conn.QueryContext(ctx, query, args...)
}

// Describe returns the ordered columns of a table or view.
func (s *Session) Describe(ctx context.Context, relation string) (dataset.Schema, error) {
	rows, err := s.Query(ctx, "DESCRIBE SELECT * FROM "+QuoteIdentifier(relation))
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", relation, err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(cols) < 2 {
		return nil, fmt.Errorf("describe %s: unexpected result with %d columns", relation, len(cols))
	}

	var schema dataset.Schema
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		schema = append(schema, dataset.Column{
			Name: fmt.Sprint(vals[0]),
			Type: fmt.Sprint(vals[1]),
		})
	}
	return schema, rows.Err()
}

// RelationExists reports whether a table or view with the given name exists.
func (s *Session) RelationExists(ctx context.Context, relation string) (bool, error) {
	rows, err := s.Query(ctx, "SELECT count(*) FROM information_schema.tables WHERE table_name = ?", relation)
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return false, err
		}
	}
	return n > 0, rows.Err()
}

// CreateView creates or replaces a view over selectSQL.
func (s *Session) CreateView(ctx context.Context, name, selectSQL string) error {
	return s.Exec(ctx, fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s", QuoteIdentifier(name), selectSQL))
}

// CreateTableAs materializes selectSQL into a new table. Temporary tables are
// kept in memory and vanish when the session closes.
func (s *Session) CreateTableAs(ctx context.Context, name, selectSQL string, temp bool) error {
	kind := "TABLE"
	if temp {
		kind = "TEMP TABLE"
	}
	return s.Exec(ctx, fmt.Sprintf("CREATE %s %s AS %s", kind, QuoteIdentifier(name), selectSQL))
}

// DropView drops a view if it exists.
func (s *Session) DropView(ctx context.Context, name string) error {
	return s.Exec(ctx, "DROP VIEW IF EXISTS "+QuoteIdentifier(name))
}

// DropTable drops a table if it exists.
func (s *Session) DropTable(ctx context.Context, name string) error {
	return s.Exec(ctx, "DROP TABLE IF EXISTS "+QuoteIdentifier(name))
}

// Checkpoint flushes the write-ahead log into the database file.
func (s *Session) Checkpoint(ctx context.Context) error {
	return s.Exec(ctx, "CHECKPOINT")
}

// Count returns the number of rows in a relation.
func (s *Session) Count(ctx context.Context, relation string) (int64, error) {
	rows, err := s.Query(ctx, "SELECT count(*) FROM "+QuoteIdentifier(relation))
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

// Sample returns up to n rows of a relation rendered as strings, in scan order.
func (s *Session) Sample(ctx context.Context, relation string, n int) ([][]string, error) {
	rows, err := s.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", QuoteIdentifier(relation), n))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out [][]string
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = FormatValue(v)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// FormatValue renders a scanned value the way sample rows are logged.
func FormatValue(v any) string {
	switch tv := v.(type) {
	case nil:
		return "null"
	case []byte:
		return fmt.Sprintf("%x", tv)
	case string:
		return tv
	default:
		return strings.TrimSpace(fmt.Sprint(tv))
	}
}

// RowAppender appends rows to a table in column order.
type RowAppender interface {
	AppendRow(args ...driver.Value) error
}

// WithAppender opens a DuckDB appender on table in the main schema, calls fn,
// and flushes the appended rows when fn returns without error.
func (s *Session) WithAppender(ctx context.Context, table string, fn func(RowAppender) error) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.conn.Raw(func(raw any) error {
		driverConn, ok := raw.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected raw conn type %T", raw)
		}

		appender, err := duckdb.NewAppenderFromConn(driverConn, "", table)
		if err != nil {
			return fmt.Errorf("create appender for %s: %w", table, err)
		}

		if err := fn(appender); err != nil {
			if cerr := appender.Close(); cerr != nil {
				slog.Debug("appender close after failure", slog.String("table", table), slog.Any("error", cerr))
			}
			return err
		}
		if err := appender.Close(); err != nil {
			return fmt.Errorf("flush appender for %s: %w", table, err)
		}
		return nil
	})
}
