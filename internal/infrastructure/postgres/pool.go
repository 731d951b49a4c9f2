// Package postgres is the relational profile store. Uniqueness of auth_id and
// email is enforced by the schema, so concurrent provisioning converges on
// one row without application locks.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of *pgxpool.Pool the repos use; pgxmock pools satisfy it too.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool connects to databaseURL with a few retries and pings it.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	var pool *pgxpool.Pool
	for attempt := 0; attempt < 3; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		slog.Warn("database connection attempt failed", "attempt", attempt+1, "err", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect database: %w", ctx.Err())
		case <-time.After(time.Duration(1<<attempt) * time.Second):
		}
	}
	return nil, fmt.Errorf("connect database: %w", err)
}

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	auth_id           TEXT PRIMARY KEY,
	profile_id        TEXT NOT NULL,
	email             TEXT NOT NULL UNIQUE,
	first_name        TEXT NOT NULL DEFAULT '',
	last_name         TEXT NOT NULL DEFAULT '',
	usn               TEXT NOT NULL DEFAULT '',
	branch            TEXT NOT NULL DEFAULT '',
	branch_code       TEXT NOT NULL DEFAULT '',
	cohort_start      INTEGER NOT NULL DEFAULT 0,
	cohort_end        INTEGER NOT NULL DEFAULT 0,
	bio               TEXT,
	linkedin_url      TEXT,
	github_url        TEXT,
	website           TEXT,
	skills            TEXT[] NOT NULL DEFAULT '{}',
	company           TEXT,
	designation       TEXT,
	location          TEXT,
	phone             TEXT,
	avatar_url        TEXT,
	profile_completed BOOLEAN NOT NULL DEFAULT FALSE,
	is_deleted        BOOLEAN NOT NULL DEFAULT FALSE,
	deleted_at        TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Bootstrap creates the profiles table if it does not exist.
func Bootstrap(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create profiles table: %w", err)
	}
	return nil
}
