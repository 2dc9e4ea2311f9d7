// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

// Package errutil provides helpers for logging and asserting on structured
// oops errors.
package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// Attrs extracts structured log attributes from err. Oops errors contribute
// their code and context as separate attributes; any other error becomes a
// single "error" attribute.
func Attrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}

	attrs := []any{"error", oopsErr.Error()}
	if code := oopsErr.Code(); code != nil {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}

// LogError logs err at error level with whatever structured context it
// carries.
func LogError(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, Attrs(err)...)
}
