package metrics

import (
	"context"
	"database/sql"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PoolStatsFunc reports database/sql statistics keyed by environment name.
type PoolStatsFunc func() map[string]sql.DBStats

// QueryMetrics records per-statement counts and latency, and exposes pool
// occupancy as observable gauges.
type QueryMetrics struct {
	service string

	count   metric.Int64Counter
	latency metric.Float64Histogram
}

func NewQueryMetrics(service string, stats PoolStatsFunc) (*QueryMetrics, error) {
	return NewQueryMetricsWithProvider(otel.GetMeterProvider(), service, stats)
}

func NewQueryMetricsWithProvider(mp metric.MeterProvider, service string, stats PoolStatsFunc) (*QueryMetrics, error) {
	m := mp.Meter("dbgate/" + service)

	count, err := m.Int64Counter(
		"db.query.count",
		metric.WithDescription("Statements executed, by environment, operation and outcome"),
		metric.WithUnit("{statement}"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := m.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Statement duration including connection borrow"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	if stats != nil {
		if err := registerPoolGauges(m, stats); err != nil {
			return nil, err
		}
	}

	return &QueryMetrics{
		service: service,
		count:   count,
		latency: latency,
	}, nil
}

func registerPoolGauges(m metric.Meter, stats PoolStatsFunc) error {
	open, err := m.Int64ObservableGauge(
		"db.pool.open",
		metric.WithDescription("Open connections per environment pool"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}
	inUse, err := m.Int64ObservableGauge(
		"db.pool.in_use",
		metric.WithDescription("Borrowed connections per environment pool"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}
	idle, err := m.Int64ObservableGauge(
		"db.pool.idle",
		metric.WithDescription("Idle connections per environment pool"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}
	waits, err := m.Int64ObservableCounter(
		"db.pool.wait_count",
		metric.WithDescription("Borrows that had to wait for a free connection"),
		metric.WithUnit("{wait}"),
	)
	if err != nil {
		return err
	}

	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for name, st := range stats() {
			attrs := metric.WithAttributes(attribute.String("db.environment", name))
			o.ObserveInt64(open, int64(st.OpenConnections), attrs)
			o.ObserveInt64(inUse, int64(st.InUse), attrs)
			o.ObserveInt64(idle, int64(st.Idle), attrs)
			o.ObserveInt64(waits, st.WaitCount, attrs)
		}
		return nil
	}, open, inUse, idle, waits)
	return err
}

// ObserveQuery records one executed statement.
func (q *QueryMetrics) ObserveQuery(ctx context.Context, environment, op, outcome string, d time.Duration) {
	if q == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("service.name", q.service),
		attribute.String("db.environment", environment),
		attribute.String("db.operation", op),
		attribute.String("outcome", outcome),
	)
	q.count.Add(ctx, 1, attrs)
	q.latency.Record(ctx, d.Seconds(), attrs)
}
