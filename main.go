// main.go: employee record accessor demo
// ============================================================
// Opens the configured store (in-memory SQLite by default), creates
// employee 1001, loads it again by id and prints whether both handles
// compare equal.
//
//  1. Configuration (.env + environment)
//  2. Structured logger
//  3. DB initialisation with logging, metrics and tracing hooks
//  4. Construct + GetExisting + Equals
// ============================================================
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/Skryldev/employee-records/config"
	"github.com/Skryldev/employee-records/db"
	"github.com/Skryldev/employee-records/models"
	"github.com/Skryldev/employee-records/repo"

	// lib/pq, go-sql-driver/mysql and modernc.org/sqlite register through
	// the db package. These two are opt-in.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	// ── 1. Configuration ─────────────────────────────────────────────────
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Structured logger ─────────────────────────────────────────────
	// Logs go to stderr so stdout carries only the comparison result.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	// ── 3. DB initialisation ─────────────────────────────────────────────
	metrics, err := db.NewPrometheusCollector(prometheus.DefaultRegisterer)
	if err != nil {
		fatalf("metrics: %v", err)
	}

	database, err := cfg.Database.Open(
		db.NewLogHook(db.LogHookConfig{
			Logger:             logger,
			SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
			LogArgs:            cfg.Database.LogArgs,
		}),
		db.NewMetricsHook(metrics),
		db.NewTracingHook(db.NewOTelTracer(otel.Tracer("employee-records"), cfg.Database.Driver)),
	)
	if err != nil {
		fatalf("open %s: %v", cfg.Database.Driver, err)
	}
	defer database.Close()

	slog.Debug("database connected", "driver", cfg.Database.Driver, "dialect", database.Dialect().Name)

	// ── 4. Construct + GetExisting + Equals ──────────────────────────────
	ctx := context.Background()

	e1, err := repo.NewEmployee(ctx, database, models.Employee{
		ID:        1001,
		FirstName: "John",
		LastName:  "Doe",
		Pay:       1000.0,
	})
	if err != nil {
		fatalf("construct employee: %v", err)
	}

	e2, err := repo.GetExisting(ctx, database, 1001)
	if err != nil {
		fatalf("load employee: %v", err)
	}

	equal, err := e1.Equals(ctx, e2)
	if err != nil {
		fatalf("compare employees: %v", err)
	}
	fmt.Println(equal)
}

func fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
