// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package rank

import "context"

type externalOriginKey struct{}

// WithExternalOrigin returns a context marking the in-flight call as a
// reapplication of an external-authority change. Manager operations carrying
// this mark update local state but do not push back to the bridge, which is
// what prevents an inbound external change from echoing outward again.
//
// The mark is scoped to the call, not to process-wide state, so concurrent
// local operations on other goroutines are never suppressed by accident.
func WithExternalOrigin(ctx context.Context) context.Context {
	return context.WithValue(ctx, externalOriginKey{}, true)
}

// IsExternalOrigin reports whether the context was marked via
// WithExternalOrigin.
func IsExternalOrigin(ctx context.Context) bool {
	v, ok := ctx.Value(externalOriginKey{}).(bool)
	return ok && v
}
