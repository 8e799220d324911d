package instrumentation

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()

	provider := metric.NewMeterProvider(metric.WithReader(metric.NewManualReader()))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewMetrics(provider.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	return m
}

func TestMetricsRecordingDoesNotPanic(t *testing.T) {
	m := newTestMetrics(t)
	ctx := context.Background()

	m.RecordHTTPRequest(ctx, "POST", "/api/respond", 200, 50*time.Millisecond)
	m.RecordModelCall(ctx, "initial", StatusSuccess, 800*time.Millisecond)
	m.RecordModelCall(ctx, "followup", StatusError, 2*time.Second)
	m.RecordToolDispatch(ctx, "get_current_availability", StatusSuccess, 120*time.Millisecond)
	m.RecordSyncBatch(ctx, StatusSuccess, 3)
	m.RecordSyncBatch(ctx, StatusError, 0)
	m.RecordTokenRefresh(ctx, StatusSuccess)
}

func TestZeroMetricsIsNoOp(t *testing.T) {
	var m Metrics
	ctx := context.Background()

	// Must not panic when instrumentation was never initialized.
	m.RecordHTTPRequest(ctx, "GET", "/healthz", 200, time.Millisecond)
	m.RecordModelCall(ctx, "initial", StatusSuccess, time.Second)
	m.RecordToolDispatch(ctx, "send_email", StatusSuccess, time.Millisecond)
	m.RecordSyncBatch(ctx, StatusSuccess, 1)
	m.RecordTokenRefresh(ctx, StatusError)
}

func TestDisabledProviderReturnsNoOpMetrics(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if provider.Enabled() {
		t.Error("Enabled() = true, want false")
	}
	if provider.Metrics() == nil {
		t.Fatal("Metrics() = nil, want no-op recorder")
	}

	// No-op recorder and shutdown must be safe to use.
	provider.Metrics().RecordHTTPRequest(context.Background(), "GET", "/", 200, time.Millisecond)
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
