package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// resetMetrics clears the cached instruments so each test initializes them
// against its own MeterProvider.
func resetMetrics() {
	metricsOnce = sync.Once{}
	metricsInitErr = nil
	requestCounter = nil
	requestRetryCounter = nil
	requestBlockedCounter = nil
	requestLatencyHistogram = nil
}

func setupTestMeter(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("meter provider shutdown: %v", err)
		}
	})

	resetMetrics()
	return reader
}

func collectMetrics(ctx context.Context, t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}
	metrics := map[string]metricdata.Metrics{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			metrics[m.Name] = m
		}
	}
	return metrics
}

func TestRecordRequestMetrics(t *testing.T) {
	ctx := context.Background()
	reader := setupTestMeter(t)

	RecordRequestMetrics(ctx, RequestMetrics{
		Operation:  "execute_query",
		Outcome:    OutcomeSuccess,
		StatusCode: 200,
		Duration:   150 * time.Millisecond,
		Attempts:   3,
	})

	metrics := collectMetrics(ctx, t, reader)

	requests, ok := metrics["axonflow.client.requests_total"]
	if !ok {
		t.Fatalf("missing requests_total metric")
	}
	requestData, ok := requests.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type for requests metric")
	}
	if len(requestData.DataPoints) != 1 {
		t.Fatalf("expected 1 datapoint, got %d", len(requestData.DataPoints))
	}
	if requestData.DataPoints[0].Value != 1 {
		t.Fatalf("expected request count 1, got %d", requestData.DataPoints[0].Value)
	}
	if value, ok := requestData.DataPoints[0].Attributes.Value(attribute.Key("request.operation")); !ok || value.AsString() != "execute_query" {
		t.Fatalf("expected operation attribute execute_query, got %v", value)
	}
	if value, ok := requestData.DataPoints[0].Attributes.Value(attribute.Key("request.outcome")); !ok || value.AsString() != OutcomeSuccess {
		t.Fatalf("expected outcome attribute success, got %v", value)
	}
	if value, ok := requestData.DataPoints[0].Attributes.Value(attribute.Key("http.response.status_code")); !ok || value.AsInt64() != 200 {
		t.Fatalf("expected status code attribute 200, got %v", value)
	}
	if _, ok := requestData.DataPoints[0].Attributes.Value(attribute.Key("request.cache_hit")); ok {
		t.Fatalf("cache hits are counted by the cache observer, not as request attributes")
	}

	retries, ok := metrics["axonflow.client.retries_total"]
	if !ok {
		t.Fatalf("missing retries_total metric")
	}
	retryData := retries.Data.(metricdata.Sum[int64])
	if retryData.DataPoints[0].Value != 2 {
		t.Fatalf("expected 2 retries beyond the first attempt, got %d", retryData.DataPoints[0].Value)
	}

	hist, ok := metrics["axonflow.client.request_duration_ms"]
	if !ok {
		t.Fatalf("missing request_duration_ms metric")
	}
	histData := hist.Data.(metricdata.Histogram[float64])
	if histData.DataPoints[0].Count != 1 {
		t.Fatalf("expected histogram count 1, got %d", histData.DataPoints[0].Count)
	}
	if histData.DataPoints[0].Sum != 150 {
		t.Fatalf("expected histogram sum 150, got %v", histData.DataPoints[0].Sum)
	}

	if _, ok := metrics["axonflow.client.blocked_total"]; ok {
		t.Fatalf("blocked_total must not be recorded for successful requests")
	}
}

func TestRecordRequestMetricsBlocked(t *testing.T) {
	ctx := context.Background()
	reader := setupTestMeter(t)

	RecordRequestMetrics(ctx, RequestMetrics{
		Operation:  "execute_query",
		Outcome:    OutcomeBlocked,
		StatusCode: 403,
		Duration:   10 * time.Millisecond,
		Attempts:   1,
	})

	metrics := collectMetrics(ctx, t, reader)

	blocked, ok := metrics["axonflow.client.blocked_total"]
	if !ok {
		t.Fatalf("missing blocked_total metric")
	}
	blockedData := blocked.Data.(metricdata.Sum[int64])
	if blockedData.DataPoints[0].Value != 1 {
		t.Fatalf("expected blocked count 1, got %d", blockedData.DataPoints[0].Value)
	}

	if _, ok := metrics["axonflow.client.retries_total"]; ok {
		t.Fatalf("retries_total must not be recorded for single-attempt requests")
	}
}

func TestRecordPolicyEvent(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider()
	tp.RegisterSpanProcessor(recorder)
	tracer := tp.Tracer("test")

	ctx, span := tracer.Start(context.Background(), "execute_query")
	RecordPolicyEvent(ctx, true, "Sensitive data detected", 3)
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	events := spans[0].Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 policy event, got %d", len(events))
	}
	event := events[0]
	if event.Name != "policy.decision" {
		t.Fatalf("unexpected event name %q", event.Name)
	}

	attrs := attribute.NewSet(event.Attributes...)
	if value, ok := attrs.Value(attribute.Key("policy.blocked")); !ok || !value.AsBool() {
		t.Fatalf("expected policy.blocked attribute true")
	}
	if value, ok := attrs.Value(attribute.Key("policy.block_reason")); !ok || value.AsString() != "Sensitive data detected" {
		t.Fatalf("unexpected block_reason: %v", value)
	}
	if value, ok := attrs.Value(attribute.Key("policy.evaluated.count")); !ok || value.AsInt64() != 3 {
		t.Fatalf("unexpected evaluated count: %v", value)
	}

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown tracer provider: %v", err)
	}
}

func TestRecordPolicyEventNoRecordingSpan(t *testing.T) {
	// Must be a no-op when ctx carries no recording span.
	RecordPolicyEvent(context.Background(), true, "blocked", 1)
}

func TestRecordRequestMetricsOmitsZeroValues(t *testing.T) {
	ctx := context.Background()
	reader := setupTestMeter(t)

	// Connection failures have no status code or measurable duration.
	RecordRequestMetrics(ctx, RequestMetrics{
		Operation: "execute_query",
		Outcome:   OutcomeError,
		Attempts:  1,
	})

	metrics := collectMetrics(ctx, t, reader)

	requests := metrics["axonflow.client.requests_total"]
	requestData := requests.Data.(metricdata.Sum[int64])
	if _, ok := requestData.DataPoints[0].Attributes.Value(attribute.Key("http.response.status_code")); ok {
		t.Fatalf("status code attribute must be omitted when unknown")
	}

	if _, ok := metrics["axonflow.client.request_duration_ms"]; ok {
		t.Fatalf("duration histogram must not be recorded for zero durations")
	}
}
