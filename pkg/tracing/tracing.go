// Package tracing is a thin wrapper around OpenTelemetry. When tracing is
// disabled the global provider stays the otel no-op one and every helper
// here still works.
package tracing

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashpect/itemstream/pkg/config"
)

const instrumentationName = "github.com/ashpect/itemstream"

// ShutdownFunc flushes and stops the installed provider.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// swapped in tests
var (
	createOutput    = func(path string) (io.WriteCloser, error) { return os.Create(path) }
	installExporter = InstallExporter
)

// Setup installs a stdout exporter backed provider as the global one when
// cfg.Enabled is set. Traces go to cfg.Output, or stdout when empty.
func Setup(cfg config.TracingCfg, serviceName, serviceVersion string) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	var w io.Writer = os.Stdout
	var closer io.Closer
	if cfg.Output != "" {
		f, err := createOutput(cfg.Output)
		if err != nil {
			return nil, err
		}
		w, closer = f, f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, err
	}

	tp, err := installExporter(serviceName, serviceVersion, exporter)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, err
	}
	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if closer != nil {
			if cerr := closer.Close(); err == nil {
				err = cerr
			}
		}
		return err
	}, nil
}

// InstallExporter registers a provider using exporter as the global one and
// returns it so callers can shut it down.
func InstallExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// StartSpan starts a span on the global provider.
func StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, trace.Span) {
	kv := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kv = append(kv, attribute.String(k, v))
	}
	return otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(kv...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
