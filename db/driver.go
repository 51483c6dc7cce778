package db

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// ─────────────────────────────────────────────────────────────────────────────
// Dialect
// ─────────────────────────────────────────────────────────────────────────────

// PlaceholderStyle is how bound parameters are spelled in SQL text.
type PlaceholderStyle int

const (
	// PlaceholderQuestion is "?" (SQLite, MySQL).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar is "$1, $2, ..." (PostgreSQL).
	PlaceholderDollar
)

// Dialect captures the per-engine differences statements have to respect.
type Dialect struct {
	Name        string
	Placeholder PlaceholderStyle
	// FloatType is the column type for an 8-byte float.
	FloatType string
	// Embedded is true for in-process engines (SQLite).
	Embedded bool
}

// Rebind rewrites "?" placeholders to the dialect's style. Question marks
// inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d.Placeholder != PlaceholderDollar || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

var genericDialect = Dialect{Name: "generic", Placeholder: PlaceholderQuestion, FloatType: "REAL"}

// DialectFor returns the dialect of a registered driver, or a generic
// "?"-style dialect when name is unknown.
func DialectFor(name string) Dialect {
	drv, err := LookupDriver(name)
	if err != nil {
		return genericDialect
	}
	return drv.Dialect()
}

// ─────────────────────────────────────────────────────────────────────────────
// Driver interface
// ─────────────────────────────────────────────────────────────────────────────

// Driver encapsulates database-specific behaviour: DSN construction, SQL
// dialect and error classification.
type Driver interface {
	// Name returns the name the driver is registered under in database/sql.
	Name() string

	// DSN converts structured options into a driver DSN string.
	DSN(opts DriverOptions) (string, error)

	// Dialect describes placeholder and type differences.
	Dialect() Dialect

	// ErrorMapper returns a mapper tuned to this driver's error types.
	ErrorMapper() ErrorMapper
}

// DriverOptions carries the common connection parameters in a structured,
// driver-agnostic form.
type DriverOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-full", etc.
	// Extra holds driver-specific key/value parameters.
	Extra map[string]string
}

// ─────────────────────────────────────────────────────────────────────────────
// Driver registry
// ─────────────────────────────────────────────────────────────────────────────

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// RegisterDriver adds a Driver to the registry. It panics on a name collision.
func RegisterDriver(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, ok := drivers[d.Name()]; ok {
		panic(fmt.Sprintf("employee-records/db: driver %q already registered", d.Name()))
	}
	drivers[d.Name()] = d
}

// LookupDriver returns the registered Driver by name.
func LookupDriver(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("employee-records/db: driver %q not registered", name)
	}
	return d, nil
}

// OpenWithDriver opens a DB from structured options instead of a raw DSN.
//
//	d, err := db.OpenWithDriver("pgx", db.DriverOptions{
//	    Host: "localhost", Port: 5432,
//	    User: "app", Password: "secret", Database: "hr",
//	}, db.Config{})
func OpenWithDriver(driverName string, driverOpts DriverOptions, cfg Config) (*DB, error) {
	drv, err := LookupDriver(driverName)
	if err != nil {
		return nil, err
	}

	dsn, err := drv.DSN(driverOpts)
	if err != nil {
		return nil, fmt.Errorf("employee-records/db: DSN construction failed: %w", err)
	}

	cfg.DriverName = drv.Name()
	cfg.DSN = dsn
	return Open(cfg)
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL (lib/pq)
// ─────────────────────────────────────────────────────────────────────────────

// PostgresDriver is the lib/pq adapter.
type PostgresDriver struct{}

func (PostgresDriver) Name() string { return "postgres" }

func (PostgresDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("postgres driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 5432
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		o.Host, port, o.User, o.Password, o.Database, sslMode,
	)
	for _, k := range sortedKeys(o.Extra) {
		dsn += fmt.Sprintf(" %s=%s", k, o.Extra[k])
	}
	return dsn, nil
}

func (PostgresDriver) Dialect() Dialect {
	return Dialect{Name: "postgres", Placeholder: PlaceholderDollar, FloatType: "DOUBLE PRECISION"}
}

func (PostgresDriver) ErrorMapper() ErrorMapper {
	return ErrorMapperFunc(func(err error) error {
		var pe *pq.Error
		if errors.As(err, &pe) {
			if mapped := classify(pgCodes[string(pe.Code)], err); mapped != nil {
				return mapped
			}
		}
		return err
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL (jackc/pgx stdlib)
// ─────────────────────────────────────────────────────────────────────────────

// PgxDriver is the github.com/jackc/pgx/v5/stdlib adapter.
type PgxDriver struct{}

func (PgxDriver) Name() string { return "pgx" }

func (PgxDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("pgx driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 5432
	}
	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", o.Host, port),
		Path:   o.Database,
	}
	if o.Password != "" {
		u.User = url.UserPassword(o.User, o.Password)
	} else if o.User != "" {
		u.User = url.User(o.User)
	}
	q := u.Query()
	if o.SSLMode != "" {
		q.Set("sslmode", o.SSLMode)
	}
	for k, v := range o.Extra {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (PgxDriver) Dialect() Dialect {
	return Dialect{Name: "pgx", Placeholder: PlaceholderDollar, FloatType: "DOUBLE PRECISION"}
}

func (PgxDriver) ErrorMapper() ErrorMapper {
	return ErrorMapperFunc(func(err error) error {
		var pge *pgconn.PgError
		if errors.As(err, &pge) {
			if mapped := classify(pgCodes[pge.Code], err); mapped != nil {
				return mapped
			}
		}
		return err
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// MySQL
// ─────────────────────────────────────────────────────────────────────────────

// MySQLDriver is the go-sql-driver/mysql adapter.
type MySQLDriver struct{}

func (MySQLDriver) Name() string { return "mysql" }

func (MySQLDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("mysql driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = o.User
	cfg.Passwd = o.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", o.Host, port)
	cfg.DBName = o.Database
	cfg.ParseTime = true
	if len(o.Extra) > 0 {
		cfg.Params = make(map[string]string, len(o.Extra))
		for k, v := range o.Extra {
			cfg.Params[k] = v
		}
	}
	return cfg.FormatDSN(), nil
}

func (MySQLDriver) Dialect() Dialect {
	// MySQL REAL is DOUBLE unless REAL_AS_FLOAT is set.
	return Dialect{Name: "mysql", Placeholder: PlaceholderQuestion, FloatType: "DOUBLE"}
}

func (MySQLDriver) ErrorMapper() ErrorMapper {
	return ErrorMapperFunc(func(err error) error {
		var me *mysql.MySQLError
		if errors.As(err, &me) {
			if mapped := classify(mysqlCodes[me.Number], err); mapped != nil {
				return mapped
			}
		}
		return err
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// SQLite (mattn/go-sqlite3, cgo)
// ─────────────────────────────────────────────────────────────────────────────

// SQLiteDriver is the mattn/go-sqlite3 adapter. The driver itself is not
// imported here so that this package builds without cgo; blank-import
// github.com/mattn/go-sqlite3 in the binary.
type SQLiteDriver struct{}

func (SQLiteDriver) Name() string { return "sqlite3" }

func (SQLiteDriver) DSN(o DriverOptions) (string, error) {
	return sqliteDSN("sqlite3", o)
}

func (SQLiteDriver) Dialect() Dialect {
	return Dialect{Name: "sqlite3", Placeholder: PlaceholderQuestion, FloatType: "REAL", Embedded: true}
}

func (SQLiteDriver) ErrorMapper() ErrorMapper { return DefaultErrorMapper() }

// ─────────────────────────────────────────────────────────────────────────────
// SQLite (modernc.org/sqlite, pure Go)
// ─────────────────────────────────────────────────────────────────────────────

// ModernSQLiteDriver is the modernc.org/sqlite adapter.
type ModernSQLiteDriver struct{}

func (ModernSQLiteDriver) Name() string { return "sqlite" }

func (ModernSQLiteDriver) DSN(o DriverOptions) (string, error) {
	return sqliteDSN("sqlite", o)
}

func (ModernSQLiteDriver) Dialect() Dialect {
	return Dialect{Name: "sqlite", Placeholder: PlaceholderQuestion, FloatType: "REAL", Embedded: true}
}

func (ModernSQLiteDriver) ErrorMapper() ErrorMapper {
	return ErrorMapperFunc(func(err error) error {
		var se *sqlite.Error
		if !errors.As(err, &se) {
			return err
		}
		switch se.Code() {
		case sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlitelib.SQLITE_CONSTRAINT_UNIQUE:
			return &DBError{Sentinel: ErrDuplicateKey, Cause: err}
		case sqlitelib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return &DBError{Sentinel: ErrForeignKeyViolation, Cause: err}
		case sqlitelib.SQLITE_CONSTRAINT_CHECK:
			return &DBError{Sentinel: ErrCheckViolation, Cause: err}
		case sqlitelib.SQLITE_BUSY, sqlitelib.SQLITE_LOCKED:
			return &DBError{Sentinel: ErrDeadlock, Cause: err}
		}
		return err
	})
}

func sqliteDSN(name string, o DriverOptions) (string, error) {
	if o.Database == "" {
		return "", fmt.Errorf("%s driver: Database (file path or :memory:) is required", name)
	}
	dsn := o.Database
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, k := range sortedKeys(o.Extra) {
		dsn += sep + k + "=" + o.Extra[k]
		sep = "&"
	}
	return dsn, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	RegisterDriver(PostgresDriver{})
	RegisterDriver(PgxDriver{})
	RegisterDriver(MySQLDriver{})
	RegisterDriver(SQLiteDriver{})
	RegisterDriver(ModernSQLiteDriver{})
}
