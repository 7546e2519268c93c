package otel

import (
	"context"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitMetricsPrometheus installs a global MeterProvider backed by a dedicated
// Prometheus registry and returns its /metrics handler and a shutdown function.
func InitMetricsPrometheus(
	ctx context.Context,
	serviceName string,
	extraAttrs ...attribute.KeyValue,
) (http.Handler, func(context.Context) error, error) {

	res, err := resource.New(
		ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
		resource.WithAttributes(extraAttrs...),
	)
	if err != nil {
		return nil, nil, err
	}

	reg := prom.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	exp, err := otelprom.New(
		otelprom.WithRegisterer(reg),
		otelprom.WithNamespace("dbgate"),
	)
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exp),
	)
	otel.SetMeterProvider(mp)
	if err := runtime.Start(
		runtime.WithMinimumReadMemStatsInterval(10 * time.Second),
	); err != nil {
		return nil, nil, err
	}

	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})

	return h, mp.Shutdown, nil
}
