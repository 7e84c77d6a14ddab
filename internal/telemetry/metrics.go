// Package telemetry exposes the service's domain metrics.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the counters the decision path emits. A nil *Metrics is a
// valid no-op receiver, so tests and tooling can skip metric wiring.
type Metrics struct {
	decisions     metric.Int64Counter
	auditFailures metric.Int64Counter
	replays       metric.Int64Counter
}

// NewMetrics registers the service's instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	decisions, err := meter.Int64Counter("access_decisions_total",
		metric.WithDescription("Gate decisions by outcome and reason."))
	if err != nil {
		return nil, err
	}
	auditFailures, err := meter.Int64Counter("audit_write_failures_total",
		metric.WithDescription("Access log appends that failed and went to the retry queue."))
	if err != nil {
		return nil, err
	}
	replays, err := meter.Int64Counter("token_replays_total",
		metric.WithDescription("Repeat presentations of a token within its validity window."))
	if err != nil {
		return nil, err
	}
	return &Metrics{decisions: decisions, auditFailures: auditFailures, replays: replays}, nil
}

// RecordDecision counts one decision with its outcome and reason.
func (m *Metrics) RecordDecision(ctx context.Context, outcome, reason string) {
	if m == nil {
		return
	}
	m.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("reason", reason),
	))
}

// RecordAuditWriteFailure counts one failed access log append.
func (m *Metrics) RecordAuditWriteFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.auditFailures.Add(ctx, 1)
}

// RecordReplay counts one idempotent replay hit.
func (m *Metrics) RecordReplay(ctx context.Context) {
	if m == nil {
		return
	}
	m.replays.Add(ctx, 1)
}
