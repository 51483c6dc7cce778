package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sentinel errors
// ─────────────────────────────────────────────────────────────────────────────

var (
	// ErrNotFound is returned when a query matches no rows.
	ErrNotFound = errors.New("employee-records/db: record not found")

	// ErrDuplicateKey is returned on primary key and unique constraint violations.
	ErrDuplicateKey = errors.New("employee-records/db: duplicate key")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated.
	ErrForeignKeyViolation = errors.New("employee-records/db: foreign key violation")

	// ErrDeadlock is returned when the database detects a deadlock or the
	// file is locked.
	ErrDeadlock = errors.New("employee-records/db: deadlock detected")

	// ErrTimeout is returned when a statement exceeds its deadline.
	ErrTimeout = errors.New("employee-records/db: query timeout")

	// ErrCheckViolation is returned when a CHECK constraint is violated.
	ErrCheckViolation = errors.New("employee-records/db: check constraint violation")

	// ErrConnectionFailed is returned when the driver cannot reach the server.
	ErrConnectionFailed = errors.New("employee-records/db: connection failed")
)

func IsNotFound(err error) bool            { return errors.Is(err, ErrNotFound) }
func IsDuplicateKey(err error) bool        { return errors.Is(err, ErrDuplicateKey) }
func IsForeignKeyViolation(err error) bool { return errors.Is(err, ErrForeignKeyViolation) }
func IsDeadlock(err error) bool            { return errors.Is(err, ErrDeadlock) }
func IsTimeout(err error) bool             { return errors.Is(err, ErrTimeout) }
func IsCheckViolation(err error) bool      { return errors.Is(err, ErrCheckViolation) }

// ─────────────────────────────────────────────────────────────────────────────
// DBError
// ─────────────────────────────────────────────────────────────────────────────

// DBError pairs a sentinel with the original driver error. errors.Is matches
// the sentinel; errors.As/Unwrap reach the driver error.
type DBError struct {
	// Sentinel is one of the package-level Err* variables.
	Sentinel error
	// Cause is the original driver error.
	Cause error
	// Message is an optional human-readable hint.
	Message string
}

func (e *DBError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Sentinel, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (cause: %v)", e.Sentinel, e.Cause)
}

func (e *DBError) Is(target error) bool { return errors.Is(e.Sentinel, target) }
func (e *DBError) Unwrap() error        { return e.Cause }

// ─────────────────────────────────────────────────────────────────────────────
// ErrorMapper
// ─────────────────────────────────────────────────────────────────────────────

// ErrorMapper translates raw driver errors into the package sentinels.
// Errors it does not recognise are returned unchanged.
type ErrorMapper interface {
	Map(err error) error
}

// ErrorMapperFunc adapts a function to ErrorMapper.
type ErrorMapperFunc func(error) error

func (f ErrorMapperFunc) Map(err error) error { return f(err) }

// DefaultErrorMapper handles PostgreSQL (lib/pq, pgx), MySQL and both SQLite
// drivers without importing any of them.
func DefaultErrorMapper() ErrorMapper {
	return ErrorMapperFunc(defaultMap)
}

func defaultMap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return classify(ErrNotFound, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return classify(ErrTimeout, err)
	}

	var dbe *DBError
	if errors.As(err, &dbe) {
		return err
	}

	for _, sentinel := range []error{
		pgSentinel(err),
		mysqlCodes[mysqlNumberFromString(err.Error())],
		sqliteSentinel(err),
	} {
		if sentinel != nil {
			return classify(sentinel, err)
		}
	}
	return err
}

// classify wraps cause under sentinel, or returns nil when there is no
// sentinel so callers can fall through.
func classify(sentinel, cause error) error {
	if sentinel == nil {
		return nil
	}
	return &DBError{Sentinel: sentinel, Cause: cause}
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL
// ─────────────────────────────────────────────────────────────────────────────

// SQLSTATE classes, https://www.postgresql.org/docs/current/errcodes-appendix.html
var pgCodes = map[string]error{
	"23505": ErrDuplicateKey, // unique_violation
	"23503": ErrForeignKeyViolation,
	"23514": ErrCheckViolation,
	"40P01": ErrDeadlock,
	"57014": ErrTimeout, // query_canceled (statement_timeout)
	"08000": ErrConnectionFailed,
	"08001": ErrConnectionFailed,
	"08003": ErrConnectionFailed,
	"08004": ErrConnectionFailed,
	"08006": ErrConnectionFailed,
	"08007": ErrConnectionFailed,
	"08P01": ErrConnectionFailed,
}

// pgSentinel reads the SQLSTATE from anything exposing SQLState() (pgconn,
// recent lib/pq) and falls back to the "(SQLSTATE XXXXX)" suffix lib/pq puts
// in its messages. The typed errors are handled by the driver mappers.
func pgSentinel(err error) error {
	var st interface{ SQLState() string }
	if errors.As(err, &st) {
		return pgCodes[st.SQLState()]
	}
	return pgCodes[pqCodeFromString(err.Error())]
}

func pqCodeFromString(s string) string {
	const marker = "(SQLSTATE "
	idx := strings.LastIndex(s, marker)
	if idx < 0 {
		return ""
	}
	code, _, _ := strings.Cut(s[idx+len(marker):], ")")
	return code
}

// ─────────────────────────────────────────────────────────────────────────────
// MySQL
// ─────────────────────────────────────────────────────────────────────────────

var mysqlCodes = map[uint16]error{
	1062: ErrDuplicateKey, // ER_DUP_ENTRY
	1216: ErrForeignKeyViolation,
	1217: ErrForeignKeyViolation,
	1452: ErrForeignKeyViolation,
	1213: ErrDeadlock,
	3024: ErrTimeout,
	1045: ErrConnectionFailed,
	2002: ErrConnectionFailed,
	2003: ErrConnectionFailed,
	2006: ErrConnectionFailed,
	2013: ErrConnectionFailed,
}

// mysqlNumberFromString parses "Error 1062 (23000): ..." and the older
// "Error 1062: ...". The typed *mysql.MySQLError is handled by MySQLDriver.
func mysqlNumberFromString(s string) uint16 {
	var n uint16
	if _, err := fmt.Sscanf(s, "Error %d", &n); err != nil {
		return 0
	}
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// SQLite
// ─────────────────────────────────────────────────────────────────────────────

// Extended result codes, https://www.sqlite.org/rescode.html
var sqliteCodes = map[int]error{
	1555: ErrDuplicateKey, // SQLITE_CONSTRAINT_PRIMARYKEY
	2067: ErrDuplicateKey, // SQLITE_CONSTRAINT_UNIQUE
	787:  ErrForeignKeyViolation,
	275:  ErrCheckViolation,
	5:    ErrDeadlock, // SQLITE_BUSY
	6:    ErrDeadlock, // SQLITE_LOCKED
}

var sqliteMessages = []struct {
	fragment string
	sentinel error
}{
	{"UNIQUE constraint failed", ErrDuplicateKey},
	{"PRIMARY KEY constraint failed", ErrDuplicateKey},
	{"FOREIGN KEY constraint failed", ErrForeignKeyViolation},
	{"CHECK constraint failed", ErrCheckViolation},
	{"database is locked", ErrDeadlock},
}

// sqliteSentinel uses Code() when the error has one (modernc.org/sqlite) and
// the message text otherwise (mattn/go-sqlite3 keeps codes in fields).
func sqliteSentinel(err error) error {
	var c interface{ Code() int }
	if errors.As(err, &c) {
		if sentinel := sqliteCodes[c.Code()]; sentinel != nil {
			return sentinel
		}
	}
	msg := err.Error()
	for _, m := range sqliteMessages {
		if strings.Contains(msg, m.fragment) {
			return m.sentinel
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ChainMapper
// ─────────────────────────────────────────────────────────────────────────────

// ChainMapper tries each mapper in order and returns the first result that
// differs from the input.
func ChainMapper(mappers ...ErrorMapper) ErrorMapper {
	return ErrorMapperFunc(func(err error) error {
		if err == nil {
			return nil
		}
		for _, m := range mappers {
			if mapped := m.Map(err); mapped != err {
				return mapped
			}
		}
		return err
	})
}
