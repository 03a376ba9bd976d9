package httpmiddleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Instrument records otelhttp spans and metrics for every request.
func Instrument(
	operation string,
	meterProvider metric.MeterProvider,
	tracerProvider trace.TracerProvider,
	propagator propagation.TextMapPropagator,
) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, operation,
			otelhttp.WithMeterProvider(meterProvider),
			otelhttp.WithTracerProvider(tracerProvider),
			otelhttp.WithPropagators(propagator),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
}
