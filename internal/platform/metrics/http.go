package metrics

import (
	"net/http"
	"strconv"
	"time"

	"dbgate/internal/platform/httpmw"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPServerMetrics provides low-cardinality HTTP server metrics for the API listener.
type HTTPServerMetrics struct {
	service string

	inflight metric.Int64UpDownCounter
	errors   metric.Int64Counter
	rejected metric.Int64Counter
	latency  metric.Float64Histogram
}

func NewHTTPServerMetrics(service string) (*HTTPServerMetrics, error) {
	return NewHTTPServerMetricsWithProvider(otel.GetMeterProvider(), service)
}

func NewHTTPServerMetricsWithProvider(mp metric.MeterProvider, service string) (*HTTPServerMetrics, error) {
	m := mp.Meter("dbgate/" + service)

	inflight, err := m.Int64UpDownCounter(
		"http.server.inflight",
		metric.WithDescription("In-flight HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	errors, err := m.Int64Counter(
		"http.server.errors",
		metric.WithDescription("HTTP 5xx responses"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}
	rejected, err := m.Int64Counter(
		"http.server.rejected",
		metric.WithDescription("Requests shed by the rate or in-flight limit"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := m.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP server duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPServerMetrics{
		service:  service,
		inflight: inflight,
		errors:   errors,
		rejected: rejected,
		latency:  latency,
	}, nil
}

func (h *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	if h == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusCapturingResponseWriter{ResponseWriter: w, status: http.StatusOK}

		attrs := []attribute.KeyValue{
			attribute.String("service.name", h.service),
			attribute.String("http.method", r.Method),
			attribute.String("http.route", httpmw.Route(r.URL.Path)),
		}

		h.inflight.Add(r.Context(), 1, metric.WithAttributes(attrs...))
		defer h.inflight.Add(r.Context(), -1, metric.WithAttributes(attrs...))

		next.ServeHTTP(sw, r)

		attrs = append(attrs, attribute.String("http.status_code", strconv.Itoa(sw.status)))
		set := metric.WithAttributes(attrs...)

		h.latency.Record(r.Context(), time.Since(start).Seconds(), set)

		switch {
		case sw.status == http.StatusTooManyRequests, sw.status == http.StatusServiceUnavailable:
			h.rejected.Add(r.Context(), 1, set)
		case sw.status >= 500:
			h.errors.Add(r.Context(), 1, set)
		}
	})
}

type statusCapturingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

var _ http.ResponseWriter = (*statusCapturingResponseWriter)(nil)
