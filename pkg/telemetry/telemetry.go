// Package telemetry provides the tracing helpers used around model calls.
package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/cexll/qwen-go"

// sensitiveKeys are attribute keys that must never leave the process.
var sensitiveKeys = []string{"api_key", "authorization", "token", "secret"}

// StartSpan begins a span on the package tracer. It is a no-op unless a
// tracer provider has been installed via Setup (or by the host application).
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// EndSpan records err (if any) and ends the span.
func EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// SanitizeAttributes drops attributes whose keys look credential-bearing.
func SanitizeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		key := strings.ToLower(string(attr.Key))
		sensitive := false
		for _, needle := range sensitiveKeys {
			if strings.Contains(key, needle) {
				sensitive = true
				break
			}
		}
		if !sensitive {
			out = append(out, attr)
		}
	}
	return out
}

// Setup installs an OTLP/HTTP trace exporter as the global tracer provider
// and returns a shutdown func. serviceName tags exported spans; endpoint is
// the collector host:port (empty uses the exporter's default).
func Setup(ctx context.Context, serviceName, endpoint string) (func(context.Context) error, error) {
	clientOpts := []otlptracehttp.Option{}
	if endpoint != "" {
		clientOpts = append(clientOpts, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(clientOpts...))
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}
