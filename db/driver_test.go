package db_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/employee-records/db"
)

func TestDialect_Rebind(t *testing.T) {
	pg := db.DialectFor("postgres")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no placeholders", "SELECT 1", "SELECT 1"},
		{"update", "UPDATE employee SET pay = ? WHERE id = ?", "UPDATE employee SET pay = $1 WHERE id = $2"},
		{"insert", "INSERT INTO employee VALUES (?, ?, ?, ?)", "INSERT INTO employee VALUES ($1, $2, $3, $4)"},
		{"quoted literal", "SELECT '?' , ? FROM employee WHERE last_name = 'O''Neil?'", "SELECT '?' , $1 FROM employee WHERE last_name = 'O''Neil?'"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, pg.Rebind(tc.in))
		})
	}

	q := "UPDATE employee SET pay = ? WHERE id = ?"
	assert.Equal(t, q, db.DialectFor("sqlite3").Rebind(q))
	assert.Equal(t, q, db.DialectFor("mysql").Rebind(q))
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver    string
		floatType string
		embedded  bool
	}{
		{"sqlite3", "REAL", true},
		{"sqlite", "REAL", true},
		{"postgres", "DOUBLE PRECISION", false},
		{"pgx", "DOUBLE PRECISION", false},
		{"mysql", "DOUBLE", false},
		{"unknown", "REAL", false},
	}
	for _, tc := range tests {
		t.Run(tc.driver, func(t *testing.T) {
			d := db.DialectFor(tc.driver)
			assert.Equal(t, tc.floatType, d.FloatType)
			assert.Equal(t, tc.embedded, d.Embedded)
		})
	}
}

func TestDriverDSN(t *testing.T) {
	opts := db.DriverOptions{
		Host: "localhost", Port: 5433,
		User: "hr", Password: "secret", Database: "records",
		Extra: map[string]string{"connect_timeout": "5", "application_name": "employee"},
	}

	kv, err := mustDriver(t, "postgres").DSN(opts)
	require.NoError(t, err)
	assert.Equal(t, "host=localhost port=5433 user=hr password=secret dbname=records sslmode=disable application_name=employee connect_timeout=5", kv)

	pgx, err := mustDriver(t, "pgx").DSN(db.DriverOptions{Host: "db", User: "hr", Password: "secret", Database: "records", SSLMode: "require"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://hr:secret@db:5432/records?sslmode=require", pgx)

	my, err := mustDriver(t, "mysql").DSN(db.DriverOptions{Host: "db", User: "hr", Password: "secret", Database: "records"})
	require.NoError(t, err)
	assert.Contains(t, my, "hr:secret@tcp(db:3306)/records")
	assert.Contains(t, my, "parseTime=true")

	lite, err := mustDriver(t, "sqlite").DSN(db.DriverOptions{Database: "file:hr.db", Extra: map[string]string{"_pragma": "busy_timeout(5000)", "cache": "shared"}})
	require.NoError(t, err)
	assert.Equal(t, "file:hr.db?_pragma=busy_timeout(5000)&cache=shared", lite)

	for _, name := range []string{"postgres", "pgx", "mysql"} {
		_, err := mustDriver(t, name).DSN(db.DriverOptions{})
		assert.Error(t, err, name)
	}
	_, err = mustDriver(t, "sqlite3").DSN(db.DriverOptions{})
	assert.Error(t, err)
}

func TestLookupDriver_Unknown(t *testing.T) {
	_, err := db.LookupDriver("oracle")
	assert.Error(t, err)
}

func TestRegisterDriver_PanicsOnCollision(t *testing.T) {
	assert.Panics(t, func() { db.RegisterDriver(db.SQLiteDriver{}) })
}

func mustDriver(t *testing.T, name string) db.Driver {
	t.Helper()
	d, err := db.LookupDriver(name)
	require.NoError(t, err)
	return d
}

// ─────────────────────────────────────────────────────────────────────────────
// Typed error mappers
// ─────────────────────────────────────────────────────────────────────────────

func TestDriverErrorMappers(t *testing.T) {
	tests := []struct {
		driver   string
		err      error
		sentinel error
	}{
		{"postgres", &pq.Error{Code: "23505"}, db.ErrDuplicateKey},
		{"postgres", &pq.Error{Code: "40P01"}, db.ErrDeadlock},
		{"pgx", &pgconn.PgError{Code: "23505"}, db.ErrDuplicateKey},
		{"pgx", &pgconn.PgError{Code: "23514"}, db.ErrCheckViolation},
		{"mysql", &mysql.MySQLError{Number: 1062}, db.ErrDuplicateKey},
		{"mysql", &mysql.MySQLError{Number: 1213}, db.ErrDeadlock},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("%s/%v", tc.driver, tc.err), func(t *testing.T) {
			mapped := mustDriver(t, tc.driver).ErrorMapper().Map(tc.err)
			assert.ErrorIs(t, mapped, tc.sentinel)
			assert.ErrorIs(t, mapped, tc.err, "driver error must stay reachable")
		})
	}
}

func TestDefaultErrorMapper(t *testing.T) {
	m := db.DefaultErrorMapper()

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"pq message", errors.New(`pq: duplicate key value violates unique constraint "employee_pkey" (SQLSTATE 23505)`), db.ErrDuplicateKey},
		{"pgx duck typed", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"}), db.ErrDuplicateKey},
		{"mysql message", errors.New("Error 1062: Duplicate entry '1001' for key 'PRIMARY'"), db.ErrDuplicateKey},
		{"sqlite unique", errors.New("UNIQUE constraint failed: employee.id"), db.ErrDuplicateKey},
		{"sqlite locked", errors.New("database is locked"), db.ErrDeadlock},
		{"sqlite fk", errors.New("FOREIGN KEY constraint failed"), db.ErrForeignKeyViolation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, m.Map(tc.err), tc.sentinel)
		})
	}

	plain := errors.New("disk I/O error")
	assert.Same(t, plain, m.Map(plain))
	assert.Nil(t, m.Map(nil))
}

func TestChainMapper_FirstChangeWins(t *testing.T) {
	custom := errors.New("custom")
	first := db.ErrorMapperFunc(func(err error) error { return err })
	second := db.ErrorMapperFunc(func(error) error { return custom })
	third := db.ErrorMapperFunc(func(error) error { return errors.New("unreachable") })

	got := db.ChainMapper(first, second, third).Map(errors.New("x"))
	assert.Same(t, custom, got)
}
