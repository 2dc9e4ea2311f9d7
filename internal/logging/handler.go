// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

// Package logging provides structured logging with OpenTelemetry trace context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

// traceHandler decorates a slog.Handler with process identity and the trace
// context of the calling span, when present.
type traceHandler struct {
	base     slog.Handler
	identity []slog.Attr
}

func newTraceHandler(base slog.Handler, service, version string) *traceHandler {
	return &traceHandler{
		base: base,
		identity: []slog.Attr{
			slog.String("service", service),
			slog.String("version", version),
		},
	}
}

// Handle stamps the record with identity and trace attributes before
// delegating to the base handler.
func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(h.identity...)

	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.HasTraceID() {
		r.AddAttrs(slog.String("trace_id", spanCtx.TraceID().String()))
		if spanCtx.HasSpanID() {
			r.AddAttrs(slog.String("span_id", spanCtx.SpanID().String()))
		}
	}

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.base.Handle(ctx, r)
}

func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{base: h.base.WithAttrs(attrs), identity: h.identity}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{base: h.base.WithGroup(name), identity: h.identity}
}

// Setup creates a configured slog.Logger. The format is "json" or "text";
// anything else falls back to JSON. A nil writer means os.Stderr.
func Setup(service, version, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: slog.LevelDebug}

	var base slog.Handler
	switch format {
	case "text":
		base = slog.NewTextHandler(w, opts)
	default:
		base = slog.NewJSONHandler(w, opts)
	}

	return slog.New(newTraceHandler(base, service, version))
}

// SetDefault installs a configured logger as the process default.
func SetDefault(service, version, format string) {
	slog.SetDefault(Setup(service, version, format, nil))
}
