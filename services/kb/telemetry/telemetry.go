// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry configures the OpenTelemetry tracer provider for the
// service binaries.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// shutdownTimeout bounds the final span flush on exit.
const shutdownTimeout = 5 * time.Second

// Setup installs the global tracer provider and W3C propagators.
//
// # Description
//
// When OTEL_EXPORTER_OTLP_ENDPOINT is set, spans export over OTLP gRPC.
// With debug true and no endpoint, spans pretty-print to stderr. With
// neither, tracing stays on the no-op provider and Setup only installs
// propagators.
//
// # Outputs
//
//   - func(): Shutdown hook flushing pending spans. Never nil.
//   - error: Exporter construction failure.
func Setup(ctx context.Context, serviceName string, debug bool, logger *slog.Logger) (func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	var exporter sdktrace.SpanExporter
	switch {
	case endpoint != "":
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
		if err != nil {
			return func() {}, fmt.Errorf("create otlp exporter: %w", err)
		}
		exporter = exp
		logger.Info("tracing to OTLP endpoint", slog.String("endpoint", endpoint))
	case debug:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return func() {}, fmt.Errorf("create stdout exporter: %w", err)
		}
		exporter = exp
	default:
		return func() {}, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return func() {}, fmt.Errorf("build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}, nil
}
