package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Hook observes every statement the DB sends to the driver.
//
// Implementations MUST be goroutine-safe and SHOULD be non-blocking.
// A panicking hook is recovered and logged; the statement still runs.
type Hook interface {
	// BeforeQuery runs right before the driver call.
	BeforeQuery(ctx context.Context, query string, args []any)

	// AfterQuery runs once the driver returns. err is already mapped and is
	// nil on success. For QueryRow err is always nil since failures only
	// surface at Scan.
	AfterQuery(ctx context.Context, query string, args []any, duration time.Duration, err error)
}

// HookFuncs adapts plain functions to Hook. Nil fields are no-ops.
type HookFuncs struct {
	Before func(ctx context.Context, query string, args []any)
	After  func(ctx context.Context, query string, args []any, duration time.Duration, err error)
}

func (f HookFuncs) BeforeQuery(ctx context.Context, query string, args []any) {
	if f.Before != nil {
		f.Before(ctx, query, args)
	}
}

func (f HookFuncs) AfterQuery(ctx context.Context, query string, args []any, d time.Duration, err error) {
	if f.After != nil {
		f.After(ctx, query, args, d, err)
	}
}

// hookChain runs hooks in registration order, isolating each from the others'
// panics. It is itself a Hook, which is what CompositeHook returns.
type hookChain []Hook

func newHookChain(hooks []Hook) hookChain {
	chain := make(hookChain, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			chain = append(chain, h)
		}
	}
	return chain
}

func (c hookChain) BeforeQuery(ctx context.Context, query string, args []any) {
	for _, h := range c {
		c.guard(ctx, h, "BeforeQuery", func() { h.BeforeQuery(ctx, query, args) })
	}
}

func (c hookChain) AfterQuery(ctx context.Context, query string, args []any, d time.Duration, err error) {
	for _, h := range c {
		c.guard(ctx, h, "AfterQuery", func() { h.AfterQuery(ctx, query, args, d, err) })
	}
}

func (hookChain) guard(ctx context.Context, h Hook, phase string, call func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "employee-records/db: hook panic",
				"hook", fmt.Sprintf("%T", h), "phase", phase, "panic", r)
		}
	}()
	call()
}

// CompositeHook combines multiple hooks into one. Nil hooks are dropped.
func CompositeHook(hooks ...Hook) Hook { return newHookChain(hooks) }

// ── Logging hook ─────────────────────────────────────────────────────────────

// LogHookConfig configures the structured logging hook.
type LogHookConfig struct {
	// Logger defaults to slog.Default() if nil.
	Logger *slog.Logger

	// SlowQueryThreshold promotes successful statements slower than this to
	// WARN. Zero disables the check.
	SlowQueryThreshold time.Duration

	// LogArgs includes bound parameters in log entries. Names and pay are
	// personal data, so by default only the argument count is logged.
	LogArgs bool
}

// NewLogHook returns a Hook that logs every statement through slog: DEBUG on
// success, WARN when slow, ERROR on failure.
func NewLogHook(cfg LogHookConfig) Hook {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return HookFuncs{After: func(ctx context.Context, query string, args []any, d time.Duration, err error) {
		attrs := []any{
			slog.String("verb", statementVerb(query)),
			slog.String("query", trimQuery(query)),
			slog.Duration("duration", d),
		}
		if cfg.LogArgs {
			attrs = append(attrs, slog.Any("args", args))
		} else {
			attrs = append(attrs, slog.Int("arg_count", len(args)))
		}

		switch {
		case err != nil:
			logger.ErrorContext(ctx, "employee-records/db: statement failed", append(attrs, slog.Any("error", err))...)
		case cfg.SlowQueryThreshold > 0 && d > cfg.SlowQueryThreshold:
			logger.WarnContext(ctx, "employee-records/db: slow statement", attrs...)
		default:
			logger.DebugContext(ctx, "employee-records/db: statement", attrs...)
		}
	}}
}

const maxLoggedQuery = 500

func trimQuery(q string) string {
	if len(q) > maxLoggedQuery {
		return q[:maxLoggedQuery] + "…"
	}
	return q
}

// ── Metrics hook ─────────────────────────────────────────────────────────────

// MetricsCollector receives one observation per statement.
type MetricsCollector interface {
	RecordQuery(query string, duration time.Duration, success bool)
}

// NewMetricsHook feeds every statement into collector.
func NewMetricsHook(collector MetricsCollector) Hook {
	return HookFuncs{After: func(_ context.Context, query string, _ []any, d time.Duration, err error) {
		collector.RecordQuery(query, d, err == nil)
	}}
}

// ── Tracing hook ─────────────────────────────────────────────────────────────

// Tracer records one span per statement. start is when the statement was
// sent; StartSpan is only called once the driver has returned.
type Tracer interface {
	StartSpan(ctx context.Context, query string, start time.Time) context.Context
	EndSpan(ctx context.Context, err error)
}

// NewTracingHook back-dates a span to the statement start and ends it with
// the statement's outcome.
func NewTracingHook(t Tracer) Hook {
	return HookFuncs{After: func(ctx context.Context, query string, _ []any, d time.Duration, err error) {
		t.EndSpan(t.StartSpan(ctx, query, time.Now().Add(-d)), err)
	}}
}
