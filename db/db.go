// Package db is the SQL-first access layer used by the employee records.
// It wraps *sql.DB with context-aware helpers, hook dispatch, unified error
// mapping and per-dialect placeholder rebinding. It is NOT an ORM: every
// statement is written by the caller.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config holds all options for opening and managing the connection.
type Config struct {
	// DSN is the driver-specific data-source name.
	DSN string

	// DriverName is "postgres", "pgx", "mysql", "sqlite3" or "sqlite".
	DriverName string

	// Pool settings. For in-memory SQLite MaxOpenConns defaults to 1 so that
	// every statement sees the same database.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Default statement timeout applied when the context has no deadline.
	// Zero means no default timeout.
	DefaultTimeout time.Duration

	// Hooks executed around every statement (logging, metrics, tracing).
	// nil entries are skipped.
	Hooks []Hook
}

// ─────────────────────────────────────────────────────────────────────────────
// DB
// ─────────────────────────────────────────────────────────────────────────────

// DB is a thin wrapper around *sql.DB. The underlying handle is reachable
// through Raw().
type DB struct {
	sqldb   *sql.DB
	cfg     Config
	dialect Dialect
	hooks   hookChain
	errMap  ErrorMapper
}

// Open opens the database described by cfg and verifies connectivity with Ping.
func Open(cfg Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("employee-records/db: DSN must not be empty")
	}
	if cfg.DriverName == "" {
		return nil, fmt.Errorf("employee-records/db: DriverName must not be empty")
	}

	sqldb, err := sql.Open(cfg.DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("employee-records/db: open: %w", err)
	}

	d := New(sqldb, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("employee-records/db: ping: %w", err)
	}

	return d, nil
}

// MustOpen is like Open but panics on error.
func MustOpen(cfg Config) *DB {
	d, err := Open(cfg)
	if err != nil {
		panic(err)
	}
	return d
}

// New wraps an already opened *sql.DB. cfg.DriverName selects the dialect;
// unknown names fall back to "?" placeholders. Pool settings in cfg are
// applied to sqldb.
func New(sqldb *sql.DB, cfg Config) *DB {
	dialect := DialectFor(cfg.DriverName)

	maxOpen := cfg.MaxOpenConns
	if maxOpen == 0 && dialect.Embedded && isMemoryDSN(cfg.DSN) {
		maxOpen = 1
	}
	if maxOpen > 0 {
		sqldb.SetMaxOpenConns(maxOpen)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	errMap := DefaultErrorMapper()
	if drv, err := LookupDriver(cfg.DriverName); err == nil {
		errMap = ChainMapper(drv.ErrorMapper(), DefaultErrorMapper())
	}

	return &DB{
		sqldb:   sqldb,
		cfg:     cfg,
		dialect: dialect,
		hooks:   newHookChain(cfg.Hooks),
		errMap:  errMap,
	}
}

// Raw returns the underlying *sql.DB.
func (d *DB) Raw() *sql.DB { return d.sqldb }

// Dialect reports the SQL dialect the handle was opened with.
func (d *DB) Dialect() Dialect { return d.dialect }

// SetErrorMapper replaces the error mapper.
func (d *DB) SetErrorMapper(m ErrorMapper) { d.errMap = m }

// Close closes the connection pool.
func (d *DB) Close() error { return d.sqldb.Close() }

// Ping verifies that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := d.applyDefaultTimeout(ctx)
	defer cancel()
	return d.mapErr(d.sqldb.PingContext(ctx))
}

// Stats returns pool statistics.
func (d *DB) Stats() sql.DBStats { return d.sqldb.Stats() }

// ─────────────────────────────────────────────────────────────────────────────
// Statement execution
// ─────────────────────────────────────────────────────────────────────────────

// Exec runs a statement that returns no rows (INSERT, UPDATE, DELETE, DDL).
// Placeholders are written as "?" and rebound for the dialect.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := d.applyDefaultTimeout(ctx)
	defer cancel()

	var res sql.Result
	err := d.observe(ctx, query, args, func(q string) (err error) {
		res, err = d.sqldb.ExecContext(ctx, q, args...)
		return err
	})
	return res, err
}

// Query runs a statement that returns rows. The caller MUST close the
// returned *sql.Rows. The default timeout is not applied because the rows
// outlive this call.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	var rows *sql.Rows
	err := d.observe(ctx, query, args, func(q string) (err error) {
		rows, err = d.sqldb.QueryContext(ctx, q, args...)
		return err
	})
	return rows, err
}

// QueryRow runs a statement expected to return at most one row. Errors,
// including ErrNotFound, surface from Row.Scan.
func (d *DB) QueryRow(ctx context.Context, query string, args ...any) *Row {
	var raw *sql.Row
	// The driver error is only known at Scan, so hooks see nil here.
	_ = d.observe(ctx, query, args, func(q string) error {
		raw = d.sqldb.QueryRowContext(ctx, q, args...)
		return nil
	})
	return &Row{raw: raw, errMap: d.errMap}
}

// observe rebinds query for the dialect, runs call between the hooks and
// maps the error it returns.
func (d *DB) observe(ctx context.Context, query string, args []any, call func(rebound string) error) error {
	query = d.dialect.Rebind(query)
	start := time.Now()
	d.hooks.BeforeQuery(ctx, query, args)
	err := d.mapErr(call(query))
	d.hooks.AfterQuery(ctx, query, args, time.Since(start), err)
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

func (d *DB) applyDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.DefaultTimeout == 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.cfg.DefaultTimeout)
}

func (d *DB) mapErr(err error) error {
	if err == nil {
		return nil
	}
	return d.errMap.Map(err)
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory") || strings.HasPrefix(dsn, "file::memory:")
}

// ─────────────────────────────────────────────────────────────────────────────
// Row
// ─────────────────────────────────────────────────────────────────────────────

// Row wraps *sql.Row and maps errors through the unified error mapper.
type Row struct {
	raw    *sql.Row
	errMap ErrorMapper
}

// Scan copies columns from the matched row into dest values.
// ErrNotFound is returned when no row was found.
func (r *Row) Scan(dest ...any) error {
	err := r.raw.Scan(dest...)
	if err == nil {
		return nil
	}
	return r.errMap.Map(err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Querier
// ─────────────────────────────────────────────────────────────────────────────

// Querier is the connection surface the repositories depend on.
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *Row
	Dialect() Dialect
}

var _ Querier = (*DB)(nil)
