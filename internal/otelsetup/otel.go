package otelsetup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"drop2print/internal/version"

	"go.opentelemetry.io/otel"
	mSdk "go.opentelemetry.io/otel/sdk/metric" // SDK
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
)

const serviceName = "drop2print"

// InitOTel installs global tracer and meter providers. Spans and metrics go to
// the OTLP HTTP endpoint when OTEL_EXPORTER_OTLP_ENDPOINT is set and are
// written to w otherwise. The returned function flushes and shuts both down.
func InitOTel(ctx context.Context, w io.Writer, logger *slog.Logger) (func(context.Context) error, error) {
	useOTLP := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""

	// ---------- RESOURCE ----------
	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version.Version),
		),
	)
	if err != nil {
		return nil, err
	}

	// ---------- TRACING ----------
	var traceExp trace.SpanExporter
	if useOTLP {
		traceExp, err = otlptracehttp.New(ctx)
	} else {
		traceExp, err = stdouttrace.New(stdouttrace.WithWriter(w))
	}
	if err != nil {
		return nil, err
	}
	tracerProvider := trace.NewTracerProvider(
		trace.WithBatcher(traceExp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)

	// ---------- METRICS ----------
	var metricExp mSdk.Exporter
	if useOTLP {
		metricExp, err = otlpmetrichttp.New(ctx)
	} else {
		metricExp, err = stdoutmetric.New(stdoutmetric.WithWriter(w))
	}
	if err != nil {
		return nil, errors.Join(err, tracerProvider.Shutdown(ctx))
	}

	meterProvider := mSdk.NewMeterProvider(
		mSdk.WithReader(mSdk.NewPeriodicReader(metricExp)),
		mSdk.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	logger.Info("OTel tracing + metrics initialized", "component", "otel")

	// ---------- SHUTDOWN ----------
	return func(ctx context.Context) error {
		return errors.Join(
			tracerProvider.Shutdown(ctx),
			meterProvider.Shutdown(ctx),
		)
	}, nil
}
