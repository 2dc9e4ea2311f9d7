// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/rankcore/rankcore/internal/rank"
)

// RankRepository implements rank.RankRepository using PostgreSQL.
//
//nolint:revive // Name matches the interface it implements.
type RankRepository struct {
	pool db
}

// NewRankRepository creates a new RankRepository.
func NewRankRepository(pool db) *RankRepository {
	return &RankRepository{pool: pool}
}

const rankColumns = `id, display_name, prefix, suffix, weight, permissions,
	       inheritance, is_default, is_staff, metadata, created_at, updated_at`

// FindAll returns every persisted rank.
func (r *RankRepository) FindAll(ctx context.Context) ([]*rank.Rank, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+rankColumns+`
		FROM ranks
		ORDER BY weight DESC, id
	`)
	if err != nil {
		return nil, oops.Code("RANK_FIND_ALL_FAILED").
			With("operation", "query ranks").
			Wrap(err)
	}
	defer rows.Close()

	var ranks []*rank.Rank
	for rows.Next() {
		rec, scanErr := scanRank(rows)
		if scanErr != nil {
			return nil, oops.Code("RANK_FIND_ALL_FAILED").
				With("operation", "scan rank row").
				Wrap(scanErr)
		}
		ranks = append(ranks, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("RANK_FIND_ALL_FAILED").
			With("operation", "iterate ranks").
			Wrap(err)
	}
	return ranks, nil
}

// FindByID retrieves a rank by id.
func (r *RankRepository) FindByID(ctx context.Context, id string) (*rank.Rank, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+rankColumns+`
		FROM ranks
		WHERE id = $1
	`, id)

	rec, err := scanRank(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RANK_NOT_FOUND").
			With("id", id).
			Wrap(rank.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("RANK_FIND_BY_ID_FAILED").
			With("id", id).
			Wrap(err)
	}
	return rec, nil
}

// Save upserts a rank definition.
func (r *RankRepository) Save(ctx context.Context, rec *rank.Rank) error {
	permsJSON, err := json.Marshal(rec.Permissions)
	if err != nil {
		return oops.Code("RANK_SAVE_FAILED").
			With("operation", "marshal permissions").
			Wrap(err)
	}
	inheritJSON, err := json.Marshal(rec.Inheritance)
	if err != nil {
		return oops.Code("RANK_SAVE_FAILED").
			With("operation", "marshal inheritance").
			Wrap(err)
	}
	metaJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return oops.Code("RANK_SAVE_FAILED").
			With("operation", "marshal metadata").
			Wrap(err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO ranks (
			id, display_name, prefix, suffix, weight, permissions,
			inheritance, is_default, is_staff, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			display_name = $2, prefix = $3, suffix = $4, weight = $5,
			permissions = $6, inheritance = $7, is_default = $8,
			is_staff = $9, metadata = $10, updated_at = $12
	`,
		rec.ID,
		rec.DisplayName,
		rec.Prefix,
		rec.Suffix,
		rec.Weight,
		permsJSON,
		inheritJSON,
		rec.IsDefault,
		rec.IsStaff,
		metaJSON,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
			return oops.Code("RANK_CONFLICT").
				With("id", rec.ID).
				With("constraint", pgErr.ConstraintName).
				Wrap(err)
		}
		return oops.Code("RANK_SAVE_FAILED").
			With("id", rec.ID).
			Wrap(err)
	}
	return nil
}

// Delete removes a rank by id.
func (r *RankRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ranks WHERE id = $1`, id)
	if err != nil {
		return oops.Code("RANK_DELETE_FAILED").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("RANK_NOT_FOUND").
			With("id", id).
			Wrap(rank.ErrNotFound)
	}
	return nil
}

// scanRank scans one rank row.
func scanRank(row pgx.Row) (*rank.Rank, error) {
	var (
		rec         rank.Rank
		permsJSON   []byte
		inheritJSON []byte
		metaJSON    []byte
	)
	err := row.Scan(
		&rec.ID,
		&rec.DisplayName,
		&rec.Prefix,
		&rec.Suffix,
		&rec.Weight,
		&permsJSON,
		&inheritJSON,
		&rec.IsDefault,
		&rec.IsStaff,
		&metaJSON,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(permsJSON, &rec.Permissions); err != nil {
		return nil, oops.With("operation", "unmarshal permissions").Wrap(err)
	}
	if err := json.Unmarshal(inheritJSON, &rec.Inheritance); err != nil {
		return nil, oops.With("operation", "unmarshal inheritance").Wrap(err)
	}
	if err := json.Unmarshal(metaJSON, &rec.Metadata); err != nil {
		return nil, oops.With("operation", "unmarshal metadata").Wrap(err)
	}
	return &rec, nil
}
