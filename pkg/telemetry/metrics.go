package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Request outcomes recorded against the OpenTelemetry meter.
const (
	OutcomeSuccess = "success"
	OutcomeBlocked = "blocked"
	OutcomeError   = "error"
)

var (
	metricsOnce             sync.Once
	metricsInitErr          error
	requestCounter          metric.Int64Counter
	requestRetryCounter     metric.Int64Counter
	requestBlockedCounter   metric.Int64Counter
	requestLatencyHistogram metric.Float64Histogram
)

// RequestMetrics captures the fields needed to record one governed request.
// Cache hits never reach the network and are counted by the cache observer,
// not here.
type RequestMetrics struct {
	Operation  string
	Outcome    string
	StatusCode int
	Duration   time.Duration
	Attempts   int
}

// RecordRequestMetrics emits counters and histograms describing one request
// through the governance pipeline.
func RecordRequestMetrics(ctx context.Context, m RequestMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("request.operation", m.Operation),
		attribute.String("request.outcome", m.Outcome),
	}
	if m.StatusCode > 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", m.StatusCode))
	}

	requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if m.Duration > 0 {
		requestLatencyHistogram.Record(ctx, float64(m.Duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}

	if m.Attempts > 1 {
		requestRetryCounter.Add(ctx, int64(m.Attempts-1), metric.WithAttributes(attrs...))
	}

	if m.Outcome == OutcomeBlocked {
		requestBlockedCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordPolicyEvent attaches a coarse-grained policy decision to the span
// active in ctx without leaking prompt or response content. Only the denial
// shape is recorded: whether the request was blocked, the stated reason, and
// how many policies were evaluated.
func RecordPolicyEvent(ctx context.Context, blocked bool, reason string, policies int) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Bool("policy.blocked", blocked),
		attribute.Int("policy.evaluated.count", policies),
	}
	if reason != "" {
		attrs = append(attrs, attribute.String("policy.block_reason", reason))
	}

	span.AddEvent("policy.decision", trace.WithAttributes(attrs...))
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("axonflow.client")

		requestCounter, metricsInitErr = meter.Int64Counter(
			"axonflow.client.requests_total",
			metric.WithDescription("Governed requests partitioned by operation and outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		requestRetryCounter, metricsInitErr = meter.Int64Counter(
			"axonflow.client.retries_total",
			metric.WithDescription("Retry attempts performed beyond the first try"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		requestBlockedCounter, metricsInitErr = meter.Int64Counter(
			"axonflow.client.blocked_total",
			metric.WithDescription("Requests denied by governance policy"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		requestLatencyHistogram, metricsInitErr = meter.Float64Histogram(
			"axonflow.client.request_duration_ms",
			metric.WithDescription("End-to-end request latency including retries"),
			metric.WithUnit("ms"),
		)
	})
	return metricsInitErr
}
