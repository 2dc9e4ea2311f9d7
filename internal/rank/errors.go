// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package rank

import "errors"

// Sentinel errors returned across the manager's public API. Callers match
// with errors.Is; oops wrapping adds codes and context for logging.
var (
	// ErrRankNotFound is returned when a referenced rank id is unknown.
	ErrRankNotFound = errors.New("rank not found")

	// ErrPlayerNotFound is returned when a player record does not exist.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrCannotDeleteDefault is returned when deleting the current default rank.
	ErrCannotDeleteDefault = errors.New("cannot delete the default rank")

	// ErrNotFound is returned by repositories when a requested record is absent.
	ErrNotFound = errors.New("not found")
)
