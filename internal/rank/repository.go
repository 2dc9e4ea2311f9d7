// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package rank

import "context"

// RankRepository manages rank persistence.
//
//nolint:revive // Name matches the persistence contract; stutter is intentional.
type RankRepository interface {
	// FindAll returns every persisted rank.
	FindAll(ctx context.Context) ([]*Rank, error)

	// FindByID returns the rank with the given id, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*Rank, error)

	// Save upserts a rank definition.
	Save(ctx context.Context, r *Rank) error

	// Delete removes a rank by id.
	Delete(ctx context.Context, id string) error
}

// PlayerRepository manages player rank-assignment persistence.
type PlayerRepository interface {
	// FindByID returns the player with the given id, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*Player, error)

	// Save upserts a player's rank assignment state.
	Save(ctx context.Context, p *Player) error
}
