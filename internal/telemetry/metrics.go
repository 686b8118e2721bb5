package telemetry

import (
	"context"
	"errors"
	"time"

	"bookstore-web/internal/core/model"
	"bookstore-web/internal/core/state"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "bookstore-web"

// Metrics holds the storefront's own instruments. A zero Metrics is not
// usable; build it with NewMetrics after the meter provider is installed.
type Metrics struct {
	backendCalls    metric.Int64Counter
	backendDuration metric.Float64Histogram
	staleDropped    metric.Int64Counter
	sessions        metric.Int64UpDownCounter
}

func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	calls, err := meter.Int64Counter("bookstore.backend.calls",
		metric.WithDescription("Calls to the bookstore API by operation and outcome"))
	if err != nil {
		return nil, err
	}
	dur, err := meter.Float64Histogram("bookstore.backend.duration",
		metric.WithDescription("Latency of calls to the bookstore API"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	stale, err := meter.Int64Counter("storefront.responses.stale",
		metric.WithDescription("Responses dropped because a newer request of the same scope was issued"))
	if err != nil {
		return nil, err
	}
	sessions, err := meter.Int64UpDownCounter("storefront.sessions.active",
		metric.WithDescription("Visitor sessions currently held in memory"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		backendCalls:    calls,
		backendDuration: dur,
		staleDropped:    stale,
		sessions:        sessions,
	}, nil
}

// Outcome buckets an API error for the calls counter.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrValidation):
		return "invalid"
	default:
		return "failed"
	}
}

// ObserveCall records one bookstore API call.
func (m *Metrics) ObserveCall(ctx context.Context, op string, took time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", Outcome(err)),
	)
	m.backendCalls.Add(ctx, 1, attrs)
	m.backendDuration.Record(ctx, took.Seconds(), metric.WithAttributes(attribute.String("op", op)))
}

func (m *Metrics) StaleDropped(scope state.Scope) {
	m.staleDropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("scope", string(scope))))
}

func (m *Metrics) SessionOpened() { m.sessions.Add(context.Background(), 1) }

func (m *Metrics) SessionClosed() { m.sessions.Add(context.Background(), -1) }
