package jobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"drop2print/internal/storage"
)

type metrics struct {
	created  metric.Int64Counter
	outcomes metric.Int64Counter
	dispatch metric.Float64Histogram
}

func newMetrics(m metric.Meter) (*metrics, error) {
	created, err := m.Int64Counter("print_jobs_created_total",
		metric.WithDescription("Print jobs recorded, by submission source."))
	if err != nil {
		return nil, err
	}
	outcomes, err := m.Int64Counter("print_jobs_finished_total",
		metric.WithDescription("Print jobs that reached a terminal status."))
	if err != nil {
		return nil, err
	}
	dispatch, err := m.Float64Histogram("print_dispatch_duration_seconds",
		metric.WithDescription("Time spent in the external print command."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &metrics{created: created, outcomes: outcomes, dispatch: dispatch}, nil
}

func (m *metrics) submitted(ctx context.Context, src Source) {
	m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(src))))
}

func (m *metrics) finished(ctx context.Context, src Source, status storage.JobStatus, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("source", string(src)),
		attribute.String("status", string(status)),
	)
	m.outcomes.Add(ctx, 1, attrs)
	m.dispatch.Record(ctx, d.Seconds(), attrs)
}
