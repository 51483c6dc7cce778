package db

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ─────────────────────────────────────────────────────────────────────────────
// Prometheus collector
// ─────────────────────────────────────────────────────────────────────────────

// PrometheusCollector implements MetricsCollector with a histogram labelled
// by statement verb and outcome.
type PrometheusCollector struct {
	duration *prometheus.HistogramVec
}

// NewPrometheusCollector registers db_query_duration_seconds on reg.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	c := &PrometheusCollector{
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of SQL statements issued by the employee store.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"verb", "status"},
		),
	}
	if err := reg.Register(c.duration); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *PrometheusCollector) RecordQuery(query string, d time.Duration, success bool) {
	status := "ok"
	if !success {
		status = "error"
	}
	c.duration.WithLabelValues(statementVerb(query), status).Observe(d.Seconds())
}

var _ MetricsCollector = (*PrometheusCollector)(nil)

// statementVerb returns the upper-cased leading keyword, e.g. "SELECT".
func statementVerb(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	return strings.ToUpper(fields[0])
}

// ─────────────────────────────────────────────────────────────────────────────
// OpenTelemetry tracer
// ─────────────────────────────────────────────────────────────────────────────

// OTelTracer implements Tracer on top of an OpenTelemetry trace.Tracer.
type OTelTracer struct {
	tracer trace.Tracer
	system string
}

// NewOTelTracer returns a Tracer that records one client span per statement.
// system is the db.system attribute value, e.g. "sqlite".
func NewOTelTracer(t trace.Tracer, system string) *OTelTracer {
	return &OTelTracer{tracer: t, system: system}
}

func (o *OTelTracer) StartSpan(ctx context.Context, query string, start time.Time) context.Context {
	ctx, _ = o.tracer.Start(ctx, "db "+statementVerb(query),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(start),
		trace.WithAttributes(
			attribute.String("db.system", o.system),
			attribute.String("db.statement", trimQuery(query)),
		),
	)
	return ctx
}

func (o *OTelTracer) EndSpan(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

var _ Tracer = (*OTelTracer)(nil)
