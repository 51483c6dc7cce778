package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/spf13/cobra"

	"github.com/Skryldev/employee-records/config"
	"github.com/Skryldev/employee-records/migrations"
)

var (
	// Global flags
	dbURL          string
	migrationsPath string
	envFile        string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// newRootCmd builds the command tree and resets the global flags.
func newRootCmd() *cobra.Command {
	dbURL, migrationsPath, envFile = "", "", ".env"

	root := &cobra.Command{
		Use:   "migrate",
		Short: "Apply versioned schema migrations to the employee store",
		Long: `Apply versioned schema migrations to the employee store.

The embedded migrations are used unless --path (or MIGRATIONS_PATH) points
at a directory. Without --database the URL comes from MIGRATE_DATABASE_URL,
or is derived from DB_DRIVER and DATABASE_URL (or the DB_HOST/DB_NAME
options). The database URL uses golang-migrate schemes:

  sqlite3://hr.db                  mattn/go-sqlite3
  sqlite://hr.db                   modernc.org/sqlite
  postgres://user:pw@host/db       lib/pq
  pgx5://user:pw@host/db           jackc/pgx
  mysql://user:pw@tcp(host)/db     go-sql-driver/mysql`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel})))

			if dbURL == "" {
				if dbURL, err = cfg.Database.MigrationURL(); err != nil {
					return err
				}
			}
			if migrationsPath == "" {
				migrationsPath = cfg.MigrationsPath
			}
			if !strings.Contains(dbURL, "://") {
				return fmt.Errorf("database URL %q has no scheme; pass --database or set MIGRATE_DATABASE_URL", dbURL)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&dbURL, "database", "", "Database URL (default: MIGRATE_DATABASE_URL, else derived from DB_DRIVER and DATABASE_URL)")
	root.PersistentFlags().StringVar(&migrationsPath, "path", "", "Migrations directory (default: embedded migrations)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional .env file to load")

	root.AddCommand(upCmd(), downCmd(), versionCmd(), forceCmd(), dropCmd())
	return root
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrate(func(m *migrate.Migrate) error {
				if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return fmt.Errorf("up failed: %w", err)
				}
				slog.Info("migrations: up completed")
				return nil
			})
		},
	}
}

func downCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down [N]",
		Short: "Roll back N migrations (default: 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) > 0 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("down: invalid steps argument %q", args[0])
				}
				steps = n
			}
			return withMigrate(func(m *migrate.Migrate) error {
				if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
					return fmt.Errorf("down failed: %w", err)
				}
				slog.Info("migrations: down completed", "steps", steps)
				return nil
			})
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrate(func(m *migrate.Migrate) error {
				v, dirty, err := m.Version()
				if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
					return fmt.Errorf("version failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version: %d  dirty: %v\n", v, dirty)
				return nil
			})
		},
	}
}

func forceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force V",
		Short: "Force the migration version (clears the dirty flag)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("force: invalid version %q", args[0])
			}
			return withMigrate(func(m *migrate.Migrate) error {
				if err := m.Force(v); err != nil {
					return fmt.Errorf("force failed: %w", err)
				}
				slog.Info("migrations: forced", "version", v)
				return nil
			})
		},
	}
}

func dropCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop everything in the database (dev only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("drop destroys all tables; re-run with --yes to confirm")
			}
			return withMigrate(func(m *migrate.Migrate) error {
				if err := m.Drop(); err != nil {
					return fmt.Errorf("drop failed: %w", err)
				}
				slog.Info("migrations: all tables dropped")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm dropping all tables")
	return cmd
}

// ─────────────────────────────────────────────────────────────────────────────

func withMigrate(fn func(*migrate.Migrate) error) error {
	m, err := newMigrate(dbURL, migrationsPath)
	if err != nil {
		return fmt.Errorf("migration init failed: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			slog.Warn("migrations: close", "source_error", srcErr, "database_error", dbErr)
		}
	}()
	m.Log = &migrateLogger{}
	return fn(m)
}

// newMigrate reads from path when set and from the embedded files otherwise.
func newMigrate(databaseURL, path string) (*migrate.Migrate, error) {
	if path != "" {
		return migrate.New("file://"+path, databaseURL)
	}
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, err
	}
	return migrate.NewWithSourceInstance("iofs", src, databaseURL)
}

type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...any) {
	slog.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
func (l *migrateLogger) Verbose() bool { return false }
