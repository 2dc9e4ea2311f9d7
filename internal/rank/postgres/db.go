// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

// Package postgres implements the rank repository contract on PostgreSQL.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// db is the subset of pgxpool.Pool the repositories use. pgxmock's pool
// interface satisfies it, so unit tests run without a database.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
