package db

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		level INT NOT NULL DEFAULT 1,
		total_score BIGINT NOT NULL DEFAULT 0,
		total_distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
		progress JSONB NOT NULL,
		quests JSONB NOT NULL DEFAULT '{}'::jsonb,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		run_date TIMESTAMPTZ NOT NULL,
		distance_km DOUBLE PRECISION NOT NULL,
		duration_seconds BIGINT NOT NULL,
		avg_speed_kmh DOUBLE PRECISION NOT NULL,
		calories BIGINT NOT NULL,
		score_earned BIGINT NOT NULL,
		exp_earned BIGINT NOT NULL,
		coins_earned BIGINT NOT NULL,
		reputation_earned BIGINT NOT NULL,
		quest_exp DOUBLE PRECISION NOT NULL DEFAULT 0,
		quest_coins BIGINT NOT NULL DEFAULT 0,
		path JSONB NOT NULL DEFAULT '[]'::jsonb
	)`,
	`CREATE INDEX IF NOT EXISTS runs_user_date_idx ON runs (user_id, run_date DESC)`,
	`CREATE INDEX IF NOT EXISTS profiles_score_idx ON profiles (total_score DESC)`,
}

// EnsureSchema creates the tables the services use. Every statement is idempotent.
func EnsureSchema(ctx context.Context, q Querier) error {
	for i, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
