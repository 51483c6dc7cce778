package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Skryldev/employee-records/db"
)

// DBConfig holds the connection and pool settings for the employee store.
// URL is a driver DSN; when it is empty the DSN is built by the driver from
// the structured Host/Port/User/Password/Name/SSLMode fields.
type DBConfig struct {
	Driver             string
	URL                string
	Host               string
	Port               int
	User               string
	Password           string
	Name               string
	SSLMode            string
	MigrateURL         string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	DefaultTimeout     time.Duration
	SlowQueryThreshold time.Duration
	LogArgs            bool
}

// AppConfig is the centralized configuration for the binaries.
// It is populated from environment variables.
type AppConfig struct {
	Database       DBConfig
	LogLevel       slog.Level
	MigrationsPath string
}

// Load reads configuration from environment variables. Each file in files is
// loaded with godotenv first; missing files are skipped and variables that
// are already set win over file values.
func Load(files ...string) (*AppConfig, error) {
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &AppConfig{
		Database: DBConfig{
			Driver:             getEnv("DB_DRIVER", "sqlite3"),
			URL:                getEnv("DATABASE_URL", ""),
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnvInt("DB_PORT", 0),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", ""),
			MigrateURL:         getEnv("MIGRATE_DATABASE_URL", ""),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 0),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 0),
			ConnMaxLifetime:    getEnvDuration("DB_CONN_MAX_LIFETIME", 0),
			DefaultTimeout:     getEnvDuration("DB_DEFAULT_TIMEOUT", 5*time.Second),
			SlowQueryThreshold: getEnvDuration("DB_SLOW_QUERY_THRESHOLD", 200*time.Millisecond),
			LogArgs:            getEnvBool("DB_LOG_ARGS", false),
		},
		LogLevel:       getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		MigrationsPath: getEnv("MIGRATIONS_PATH", ""),
	}
	if d := &cfg.Database; d.URL == "" && d.Host == "" && d.Name == "" {
		d.URL = ":memory:"
	}
	return cfg, nil
}

// ToDB converts the settings into a db.Config carrying hooks.
func (c DBConfig) ToDB(hooks ...db.Hook) db.Config {
	return db.Config{
		DSN:             c.URL,
		DriverName:      c.Driver,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		DefaultTimeout:  c.DefaultTimeout,
		Hooks:           hooks,
	}
}

// Options returns the structured connection parameters for db.OpenWithDriver.
func (c DBConfig) Options() db.DriverOptions {
	return db.DriverOptions{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Database: c.Name,
		SSLMode:  c.SSLMode,
	}
}

// Open connects to the employee store, preferring URL over the structured
// options.
func (c DBConfig) Open(hooks ...db.Hook) (*db.DB, error) {
	if c.URL != "" {
		return db.Open(c.ToDB(hooks...))
	}
	return db.OpenWithDriver(c.Driver, c.Options(), c.ToDB(hooks...))
}

// DSN returns URL, or the DSN the driver builds from the structured options.
func (c DBConfig) DSN() (string, error) {
	if c.URL != "" {
		return c.URL, nil
	}
	drv, err := db.LookupDriver(c.Driver)
	if err != nil {
		return "", err
	}
	return drv.DSN(c.Options())
}

// migrateSchemes maps database/sql driver names to golang-migrate schemes.
var migrateSchemes = map[string]string{
	"sqlite3":  "sqlite3",
	"sqlite":   "sqlite",
	"mysql":    "mysql",
	"postgres": "postgres",
	"pgx":      "pgx5",
}

// MigrationURL returns the golang-migrate URL for this store: MigrateURL when
// set, otherwise one derived from Driver and the connection DSN.
func (c DBConfig) MigrationURL() (string, error) {
	if c.MigrateURL != "" {
		return c.MigrateURL, nil
	}
	scheme, ok := migrateSchemes[c.Driver]
	if !ok {
		return "", fmt.Errorf("config: no migration scheme for driver %q; set MIGRATE_DATABASE_URL", c.Driver)
	}

	dsn := c.URL
	if dsn == "" && c.Driver == "postgres" {
		// lib/pq builds key/value DSNs; golang-migrate needs the URL form.
		dsn, _ = db.PgxDriver{}.DSN(c.Options())
	}
	if dsn == "" {
		var err error
		if dsn, err = c.DSN(); err != nil {
			return "", err
		}
	}

	if _, rest, found := strings.Cut(dsn, "://"); found {
		return scheme + "://" + rest, nil
	}
	if scheme == "postgres" || scheme == "pgx5" {
		return "", fmt.Errorf("config: cannot derive a migration URL from a key/value %s DSN; set MIGRATE_DATABASE_URL", c.Driver)
	}
	return scheme + "://" + dsn, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("250ms") or plain seconds ("30").
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if s, err := strconv.Atoi(v); err == nil {
		return time.Duration(s) * time.Second
	}
	return def
}

func getEnvLevel(key string, def slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		return def
	}
	return l
}
