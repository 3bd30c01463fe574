// Package telemetry wires OpenTelemetry tracing for the service.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName names the tracer used by the todo service.
const TracerName = "github.com/Tomlord1122/todo-store"

// Config selects the exporter.
type Config struct {
	ServiceName string
	Exporter    string // "none" or "stdout"
	Writer      io.Writer
}

// Setup installs a global tracer provider and returns the tracer plus a
// shutdown function that flushes pending spans.
func Setup(cfg Config) (trace.Tracer, func(context.Context) error, error) {
	if cfg.Exporter == "" || cfg.Exporter == "none" {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp.Tracer(TracerName), func(context.Context) error { return nil }, nil
	}
	if cfg.Exporter != "stdout" {
		return nil, nil, fmt.Errorf("unknown tracing exporter %q", cfg.Exporter)
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Tracer(TracerName), tp.Shutdown, nil
}
