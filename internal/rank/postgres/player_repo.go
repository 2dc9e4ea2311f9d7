// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/rankcore/rankcore/internal/rank"
)

// PlayerRepository implements rank.PlayerRepository using PostgreSQL.
type PlayerRepository struct {
	pool db
}

// NewPlayerRepository creates a new PlayerRepository.
func NewPlayerRepository(pool db) *PlayerRepository {
	return &PlayerRepository{pool: pool}
}

// FindByID retrieves a player's rank assignment state.
func (r *PlayerRepository) FindByID(ctx context.Context, id string) (*rank.Player, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, primary_rank, ranks, updated_at
		FROM players
		WHERE id = $1
	`, id)

	var (
		player    rank.Player
		ranksJSON []byte
	)
	err := row.Scan(&player.ID, &player.PrimaryRank, &ranksJSON, &player.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PLAYER_NOT_FOUND").
			With("id", id).
			Wrap(rank.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PLAYER_FIND_BY_ID_FAILED").
			With("id", id).
			Wrap(err)
	}

	if err := json.Unmarshal(ranksJSON, &player.Ranks); err != nil {
		return nil, oops.Code("PLAYER_FIND_BY_ID_FAILED").
			With("operation", "unmarshal ranks").
			With("id", id).
			Wrap(err)
	}
	return &player, nil
}

// Save upserts a player's rank assignment state.
func (r *PlayerRepository) Save(ctx context.Context, player *rank.Player) error {
	ranksJSON, err := json.Marshal(player.Ranks)
	if err != nil {
		return oops.Code("PLAYER_SAVE_FAILED").
			With("operation", "marshal ranks").
			With("id", player.ID).
			Wrap(err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO players (id, primary_rank, ranks, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			primary_rank = $2, ranks = $3, updated_at = $4
	`,
		player.ID,
		player.PrimaryRank,
		ranksJSON,
		player.UpdatedAt,
	)
	if err != nil {
		return oops.Code("PLAYER_SAVE_FAILED").
			With("id", player.ID).
			Wrap(err)
	}
	return nil
}
