// db/db_test.go: unit tests for the access layer.
// Uses in-memory SQLite through both drivers; no external services required.
//
// Run:  go test ./db/... -v -race
package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Skryldev/employee-records/db"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test helpers
// ─────────────────────────────────────────────────────────────────────────────

func newTestDB(t *testing.T, driver string) *db.DB {
	t.Helper()
	d, err := db.Open(db.Config{
		DSN:        ":memory:",
		DriverName: driver,
		Hooks: []db.Hook{
			db.NewLogHook(db.LogHookConfig{LogArgs: true}),
		},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	_, err = d.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS employee (
			id         INTEGER PRIMARY KEY NOT NULL,
			first_name TEXT,
			last_name  TEXT,
			pay        REAL
		)`)
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return d
}

func forEachSQLite(t *testing.T, fn func(t *testing.T, d *db.DB)) {
	for _, name := range []string{"sqlite3", "sqlite"} {
		t.Run(name, func(t *testing.T) { fn(t, newTestDB(t, name)) })
	}
}

const insertEmployee = `INSERT INTO employee (id, first_name, last_name, pay) VALUES (?, ?, ?, ?)`

// ─────────────────────────────────────────────────────────────────────────────
// Open / Ping
// ─────────────────────────────────────────────────────────────────────────────

func TestOpen(t *testing.T) {
	forEachSQLite(t, func(t *testing.T, d *db.DB) {
		if err := d.Ping(context.Background()); err != nil {
			t.Fatalf("ping failed: %v", err)
		}
		if !d.Dialect().Embedded {
			t.Fatalf("expected embedded dialect, got %+v", d.Dialect())
		}
	})
}

func TestOpen_InvalidDSN(t *testing.T) {
	_, err := db.Open(db.Config{DSN: "", DriverName: "sqlite3"})
	if err == nil {
		t.Fatal("expected error for empty DSN")
	}
	_, err = db.Open(db.Config{DSN: ":memory:"})
	if err == nil {
		t.Fatal("expected error for empty driver name")
	}
}

func TestOpen_MemoryPinsSingleConnection(t *testing.T) {
	forEachSQLite(t, func(t *testing.T, d *db.DB) {
		if got := d.Stats().MaxOpenConnections; got != 1 {
			t.Fatalf("expected MaxOpenConnections=1 for :memory:, got %d", got)
		}
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Exec / QueryRow
// ─────────────────────────────────────────────────────────────────────────────

func TestExec_Insert(t *testing.T) {
	forEachSQLite(t, func(t *testing.T, d *db.DB) {
		res, err := d.Exec(context.Background(), insertEmployee, 1, "Alice", "Smith", 1200.5)
		if err != nil {
			t.Fatalf("exec: %v", err)
		}
		n, _ := res.RowsAffected()
		if n != 1 {
			t.Fatalf("expected 1 row affected, got %d", n)
		}
	})
}

func TestQueryRow_Scan(t *testing.T) {
	forEachSQLite(t, func(t *testing.T, d *db.DB) {
		ctx := context.Background()
		if _, err := d.Exec(ctx, insertEmployee, 2, "Bob", "Jones", 900.0); err != nil {
			t.Fatalf("insert: %v", err)
		}

		var first, last string
		var pay float64
		err := d.QueryRow(ctx, `SELECT first_name, last_name, pay FROM employee WHERE id = ?`, 2).
			Scan(&first, &last, &pay)
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		if first != "Bob" || last != "Jones" || pay != 900.0 {
			t.Fatalf("unexpected values: first=%q last=%q pay=%v", first, last, pay)
		}
	})
}

func TestQueryRow_NotFound(t *testing.T) {
	forEachSQLite(t, func(t *testing.T, d *db.DB) {
		var first string
		err := d.QueryRow(context.Background(), `SELECT first_name FROM employee WHERE id = ?`, 99999).Scan(&first)
		if !db.IsNotFound(err) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Query, multiple rows
// ─────────────────────────────────────────────────────────────────────────────

func TestQuery_MultipleRows(t *testing.T) {
	forEachSQLite(t, func(t *testing.T, d *db.DB) {
		ctx := context.Background()
		for i, name := range []string{"Alice", "Bob", "Carol"} {
			if _, err := d.Exec(ctx, insertEmployee, i+1, name, "Q", 1.0); err != nil {
				t.Fatalf("insert %s: %v", name, err)
			}
		}

		rows, err := d.Query(ctx, `SELECT first_name FROM employee ORDER BY first_name`)
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		defer rows.Close()

		var names []string
		for rows.Next() {
			var n string
			if err := rows.Scan(&n); err != nil {
				t.Fatalf("scan: %v", err)
			}
			names = append(names, n)
		}
		if err := rows.Err(); err != nil {
			t.Fatalf("rows.Err: %v", err)
		}
		if len(names) != 3 {
			t.Fatalf("expected 3 rows, got %d", len(names))
		}
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Error mapping
// ─────────────────────────────────────────────────────────────────────────────

func TestErrorMapper_DuplicateKey(t *testing.T) {
	forEachSQLite(t, func(t *testing.T, d *db.DB) {
		ctx := context.Background()
		insert := func() error {
			_, err := d.Exec(ctx, insertEmployee, 1001, "John", "Doe", 1000.0)
			return err
		}

		if err := insert(); err != nil {
			t.Fatalf("first insert: %v", err)
		}
		err := insert() // primary key collision
		if !db.IsDuplicateKey(err) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}
		var dbe *db.DBError
		if !errors.As(err, &dbe) || dbe.Cause == nil {
			t.Fatalf("expected *DBError with driver cause, got %#v", err)
		}
	})
}

func TestErrorMapper_CheckViolation(t *testing.T) {
	forEachSQLite(t, func(t *testing.T, d *db.DB) {
		ctx := context.Background()
		if _, err := d.Exec(ctx, `CREATE TABLE positive (n INTEGER CHECK (n > 0))`); err != nil {
			t.Fatalf("create: %v", err)
		}
		_, err := d.Exec(ctx, `INSERT INTO positive (n) VALUES (?)`, -1)
		if !db.IsCheckViolation(err) {
			t.Fatalf("expected ErrCheckViolation, got %v", err)
		}
	})
}

func TestErrorMapper_UnknownPassesThrough(t *testing.T) {
	forEachSQLite(t, func(t *testing.T, d *db.DB) {
		_, err := d.Exec(context.Background(), `INSERT INTO missing_table VALUES (1)`)
		if err == nil {
			t.Fatal("expected error for missing table")
		}
		var dbe *db.DBError
		if errors.As(err, &dbe) {
			t.Fatalf("unclassified error should not be wrapped, got %v", err)
		}
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Hooks
// ─────────────────────────────────────────────────────────────────────────────

type countingHook struct {
	before  int
	after   int
	lastErr error
}

func (h *countingHook) BeforeQuery(_ context.Context, _ string, _ []any) { h.before++ }
func (h *countingHook) AfterQuery(_ context.Context, _ string, _ []any, _ time.Duration, err error) {
	h.after++
	h.lastErr = err
}

type panickingHook struct{}

func (panickingHook) BeforeQuery(context.Context, string, []any) { panic("before") }
func (panickingHook) AfterQuery(context.Context, string, []any, time.Duration, error) {
	panic("after")
}

func TestHooks_CalledOnExec(t *testing.T) {
	hook := &countingHook{}
	d, err := db.Open(db.Config{
		DSN:        ":memory:",
		DriverName: "sqlite3",
		Hooks:      []db.Hook{panickingHook{}, nil, hook},
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	ctx := context.Background()
	_, _ = d.Exec(ctx, `SELECT 1`)

	if hook.before != 1 || hook.after != 1 {
		t.Fatalf("hook not called: before=%d after=%d", hook.before, hook.after)
	}

	_, _ = d.Exec(ctx, `SELECT * FROM nowhere`)
	if hook.lastErr == nil {
		t.Fatal("expected AfterQuery to receive the statement error")
	}
}

func TestCompositeHook(t *testing.T) {
	a, b := &countingHook{}, &countingHook{}
	h := db.CompositeHook(a, b)
	h.BeforeQuery(context.Background(), "SELECT 1", nil)
	h.AfterQuery(context.Background(), "SELECT 1", nil, time.Millisecond, nil)
	if a.before != 1 || b.after != 1 {
		t.Fatalf("composite did not fan out: a=%+v b=%+v", a, b)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Context timeout
// ─────────────────────────────────────────────────────────────────────────────

func TestContextCancellation(t *testing.T) {
	d := newTestDB(t, "sqlite3")
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately

	_, err := d.Exec(ctx, `SELECT 1`)
	if err == nil {
		// SQLite may execute trivially fast before noticing cancellation.
		t.Log("SQLite executed before context was observed (acceptable)")
		return
	}
	if !db.IsTimeout(err) {
		t.Fatalf("expected ErrTimeout for cancelled context, got %v", err)
	}
}
