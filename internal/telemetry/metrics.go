package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/domain"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/ports"
)

// Metrics records pipeline counters. It implements ports.Observer and the
// attempt/alert hooks of the dispatchers.
type Metrics struct {
	accepted   metric.Int64Counter
	completed  metric.Int64Counter
	duration   metric.Float64Histogram
	deliveries metric.Int64Counter
	attempts   metric.Int64Counter
	alerts     metric.Int64Counter
}

// NewMetrics creates instruments on meter. A nil meter uses the global
// meter provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	m := &Metrics{}
	var err error
	if m.accepted, err = meter.Int64Counter("stepservice.operations.accepted",
		metric.WithDescription("Operations accepted on the synchronous path")); err != nil {
		return nil, fmt.Errorf("create accepted counter: %w", err)
	}
	if m.completed, err = meter.Int64Counter("stepservice.operations.completed",
		metric.WithDescription("Operations that reached a terminal state")); err != nil {
		return nil, fmt.Errorf("create completed counter: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("stepservice.operations.duration",
		metric.WithDescription("Time from acceptance to terminal state"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	if m.deliveries, err = meter.Int64Counter("stepservice.webhook.deliveries",
		metric.WithDescription("Logical webhook deliveries by kind and outcome")); err != nil {
		return nil, fmt.Errorf("create deliveries counter: %w", err)
	}
	if m.attempts, err = meter.Int64Counter("stepservice.webhook.attempts",
		metric.WithDescription("Individual webhook HTTP attempts")); err != nil {
		return nil, fmt.Errorf("create attempts counter: %w", err)
	}
	if m.alerts, err = meter.Int64Counter("stepservice.alerts",
		metric.WithDescription("Operator alerts by outcome")); err != nil {
		return nil, fmt.Errorf("create alerts counter: %w", err)
	}
	return m, nil
}

func (m *Metrics) OperationAccepted(op *domain.Operation) {
	m.accepted.Add(context.Background(), 1)
}

func (m *Metrics) OperationTransitioned(op *domain.Operation, from domain.State) {
	if !op.State.Terminal() {
		return
	}
	attrs := metric.WithAttributes(attribute.String("state", string(op.State)))
	m.completed.Add(context.Background(), 1, attrs)
	m.duration.Record(context.Background(), op.Duration().Seconds(), attrs)
}

func (m *Metrics) DeliveryCompleted(op *domain.Operation, kind ports.DeliveryKind, err error) {
	outcome := "delivered"
	if err != nil {
		outcome = "failed"
	}
	m.deliveries.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("outcome", outcome),
	))
}

// AttemptCompleted records one webhook HTTP attempt.
func (m *Metrics) AttemptCompleted(statusCode int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.attempts.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Int("status_code", statusCode),
	))
}

// AlertCompleted records one alert notification outcome.
func (m *Metrics) AlertCompleted(outcome string) {
	m.alerts.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

var _ ports.Observer = (*Metrics)(nil)
