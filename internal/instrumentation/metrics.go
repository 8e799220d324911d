package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrMethod = "method"
	attrPath   = "path"
	attrStatus = "status"
	attrPhase  = "phase"
	attrTool   = "tool"
	attrResult = "result"
)

// Metrics provides methods for recording observability metrics. A zero
// Metrics records nothing.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	// Model call metrics
	modelCallsTotal   metric.Int64Counter
	modelCallDuration metric.Float64Histogram

	// Tool dispatch metrics
	toolDispatchesTotal metric.Int64Counter
	toolDuration        metric.Float64Histogram

	// Mailbox sync metrics
	syncBatchesTotal      metric.Int64Counter
	syncMessagesForwarded metric.Int64Counter

	// OAuth metrics
	tokenRefreshTotal metric.Int64Counter
}

// NewMetrics creates a Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration_seconds histogram: %w", err)
	}

	m.modelCallsTotal, err = meter.Int64Counter(
		"model_calls_total",
		metric.WithDescription("Total number of language model calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create model_calls_total counter: %w", err)
	}

	m.modelCallDuration, err = meter.Float64Histogram(
		"model_call_duration_seconds",
		metric.WithDescription("Language model call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0),
	)
	if err != nil {
		return nil, fmt.Errorf("create model_call_duration_seconds histogram: %w", err)
	}

	m.toolDispatchesTotal, err = meter.Int64Counter(
		"tool_dispatches_total",
		metric.WithDescription("Total number of tool dispatches"),
		metric.WithUnit("{dispatch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create tool_dispatches_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"tool_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("create tool_duration_seconds histogram: %w", err)
	}

	m.syncBatchesTotal, err = meter.Int64Counter(
		"mailbox_sync_batches_total",
		metric.WithDescription("Total number of mailbox sync batches processed"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create mailbox_sync_batches_total counter: %w", err)
	}

	m.syncMessagesForwarded, err = meter.Int64Counter(
		"mailbox_sync_messages_forwarded_total",
		metric.WithDescription("Total number of messages forwarded to conversations"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create mailbox_sync_messages_forwarded_total counter: %w", err)
	}

	m.tokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refresh attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create oauth_token_refresh_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, route, status code
// and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordModelCall records one language model call.
// Phase is "initial" or "followup"; status is "success" or "error".
func (m *Metrics) RecordModelCall(ctx context.Context, phase, status string, duration time.Duration) {
	if m.modelCallsTotal == nil || m.modelCallDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrPhase, phase),
		attribute.String(attrStatus, status),
	}

	m.modelCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.modelCallDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordToolDispatch records one tool execution with its outcome.
func (m *Metrics) RecordToolDispatch(ctx context.Context, toolName, status string, duration time.Duration) {
	if m.toolDispatchesTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	m.toolDispatchesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSyncBatch records one processed mailbox sync batch and how many
// messages it forwarded.
func (m *Metrics) RecordSyncBatch(ctx context.Context, status string, forwarded int) {
	if m.syncBatchesTotal == nil || m.syncMessagesForwarded == nil {
		return
	}

	m.syncBatchesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
	if forwarded > 0 {
		m.syncMessagesForwarded.Add(ctx, int64(forwarded))
	}
}

// RecordTokenRefresh records an OAuth token refresh attempt.
// Result should be one of: "success", "failure".
func (m *Metrics) RecordTokenRefresh(ctx context.Context, result string) {
	if m.tokenRefreshTotal == nil {
		return
	}

	m.tokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}
