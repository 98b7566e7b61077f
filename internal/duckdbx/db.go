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

// Package duckdbx owns the embedded DuckDB database used by an ingestion run.
package duckdbx

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb/v2"
)

// DB manages a pool of DuckDB connections to a single on-disk database.
// Every connection opens the same file and shares one in-process instance.
type DB struct {
	dbPath         string
	cleanupOnClose bool

	poolSize int
	dsn      string

	pool *connectionPool

	metricsPeriod time.Duration
	metricsCtx    context.Context
	metricsCancel context.CancelFunc
}

type connectionPool struct {
	parent *DB
	size   int

	db        *sql.DB
	dbOnce    sync.Once
	dbErr     error
	connector *duckdb.Connector
}

// DuckDBSettings holds the knobs that go into the DSN.
// This mirrors config.DuckDBConfig to avoid an import cycle.
type DuckDBSettings struct {
	MemoryLimitMB        int64  // 0 = unlimited
	TempDirectory        string // spill directory
	MaxTempDirectorySize string // e.g. "10GB"
	PoolSize             int    // 0 = default
	Threads              int    // 0 = GOMAXPROCS
}

type dbConfig struct {
	dbPath        *string
	metricsPeriod time.Duration
	metricsCtx    context.Context
	duckdb        *DuckDBSettings
}

// DBOption is a functional option for configuring DB
type DBOption func(*dbConfig)

// WithDatabasePath sets the database file. The path must not be empty.
func WithDatabasePath(path string) DBOption {
	return func(cfg *dbConfig) {
		if path == "" {
			panic("WithDatabasePath: path must not be empty")
		}
		cfg.dbPath = &path
	}
}

// WithMetrics enables periodic polling of DuckDB memory metrics.
// If period is 0, uses default of 30 seconds.
func WithMetrics(period time.Duration) DBOption {
	return func(cfg *dbConfig) {
		if period == 0 {
			period = 30 * time.Second
		}
		cfg.metricsPeriod = period
	}
}

// WithMetricsContext sets the context used for metrics polling.
func WithMetricsContext(ctx context.Context) DBOption {
	return func(cfg *dbConfig) {
		cfg.metricsCtx = ctx
	}
}

// WithDuckDBSettings sets DuckDB-specific configuration for DSN construction.
func WithDuckDBSettings(settings DuckDBSettings) DBOption {
	return func(cfg *dbConfig) {
		cfg.duckdb = &settings
	}
}

// NewDB creates a DB. Without WithDatabasePath a database file is created in a
// fresh temporary directory that Close removes again.
func NewDB(opts ...DBOption) (*DB, error) {
	cfg := &dbConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var dbPath string
	var cleanupOnClose bool
	if cfg.dbPath != nil {
		dbPath = *cfg.dbPath
	} else {
		dbDir, err := os.MkdirTemp("", "avroingest-duckdb-")
		if err != nil {
			return nil, fmt.Errorf("create temp dir for DB: %w", err)
		}
		dbPath = filepath.Join(dbDir, "ingest.ddb")
		cleanupOnClose = true
	}

	settings := cfg.duckdb
	if settings == nil {
		settings = &DuckDBSettings{}
	}

	poolSize := settings.PoolSize
	if poolSize <= 0 {
		poolSize = min(8, max(2, runtime.GOMAXPROCS(0)/2))
	}

	threads := settings.Threads
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}

	dsn := buildDSN(dbPath, settings, threads)

	slog.Debug("duckdbx: opening database",
		slog.String("dbPath", dbPath),
		slog.String("dsn", dsn),
		slog.Int("poolSize", poolSize),
		slog.Int("threads", threads),
	)

	d := &DB{
		dbPath:         dbPath,
		cleanupOnClose: cleanupOnClose,
		poolSize:       poolSize,
		dsn:            dsn,
		metricsPeriod:  cfg.metricsPeriod,
	}
	d.pool = &connectionPool{parent: d, size: poolSize}

	if cfg.metricsPeriod > 0 {
		ctx := cfg.metricsCtx
		if ctx == nil {
			ctx = context.Background()
		}
		d.metricsCtx, d.metricsCancel = context.WithCancel(ctx)
		go d.pollMemoryMetrics(d.metricsCtx)
	}

	return d, nil
}

func (d *DB) Close() error {
	if d.metricsCancel != nil {
		d.metricsCancel()
	}

	var err error
	if d.pool != nil {
		err = d.pool.closeAll()
	}

	// Never remove user-provided paths.
	if d.cleanupOnClose && d.dbPath != "" {
		_ = os.RemoveAll(filepath.Dir(d.dbPath))
	}
	return err
}

// GetDatabasePath returns the path to the database file.
func (d *DB) GetDatabasePath() string {
	return d.dbPath
}

// GetConnection returns a pooled connection and the function that releases it.
func (d *DB) GetConnection(ctx context.Context) (*sql.Conn, func(), error) {
	return d.pool.acquire(ctx)
}

func (p *connectionPool) ensureDB(ctx context.Context) error {
	p.dbOnce.Do(func() {
		connector, err := duckdb.NewConnector(p.parent.dsn, nil)
		if err != nil {
			p.dbErr = fmt.Errorf("create connector: %w", err)
			return
		}
		p.connector = connector

		db := sql.OpenDB(connector)
		db.SetMaxOpenConns(p.size)
		db.SetMaxIdleConns(p.size)
		p.db = db

		if err := p.parent.applyPostConnectSettings(ctx, db); err != nil {
			p.dbErr = err
			return
		}
	})
	return p.dbErr
}

func (p *connectionPool) acquire(ctx context.Context) (*sql.Conn, func(), error) {
	if err := p.ensureDB(ctx); err != nil {
		return nil, nil, err
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, nil, err
	}

	return conn, func() { _ = conn.Close() }, nil
}

func (p *connectionPool) closeAll() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

// buildDSN constructs a DuckDB DSN with the provided settings.
// See https://duckdb.org/docs/api/go.html for supported parameters.
func buildDSN(dbPath string, settings *DuckDBSettings, threads int) string {
	params := []string{"allow_unsigned_extensions=true"}

	if settings.MemoryLimitMB > 0 {
		params = append(params, fmt.Sprintf("memory_limit=%dMB", settings.MemoryLimitMB))
	}

	params = append(params, fmt.Sprintf("threads=%d", threads))

	if settings.TempDirectory != "" {
		params = append(params, "temp_directory="+settings.TempDirectory)
	}

	if settings.MaxTempDirectorySize != "" {
		params = append(params, "max_temp_directory_size="+settings.MaxTempDirectorySize)
	}

	return dbPath + "?" + strings.Join(params, "&")
}

// applyPostConnectSettings applies settings that cannot be set via DSN.
func (d *DB) applyPostConnectSettings(ctx context.Context, db *sql.DB) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn for setup: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, fmt.Sprintf("SET home_directory='%s';", EscapeSingle(filepath.Dir(d.dbPath)))); err != nil {
		slog.Warn("Failed to set home_directory", slog.Any("error", err))
	}

	if _, err := conn.ExecContext(ctx, "PRAGMA enable_object_cache;"); err != nil {
		return fmt.Errorf("enable_object_cache: %w", err)
	}

	return nil
}

// EscapeSingle doubles single quotes so s can sit inside a SQL string literal.
func EscapeSingle(s string) string {
	return strings.ReplaceAll(s, `'`, `''`)
}
