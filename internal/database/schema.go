package database

import (
	"context"
	"fmt"
)

// EnsureSchema creates the match store objects when they are missing. The
// UNIQUE pair constraint is the enforcement point for at-most-one match per
// (subject, opportunity); CreateIfAbsent relies on it.
func EnsureSchema(ctx context.Context, db DB) error {
	if db == nil {
		return fmt.Errorf("nil db")
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			id                  UUID PRIMARY KEY,
			subject_id          UUID NOT NULL,
			opportunity_id      UUID NOT NULL,
			score               INT NOT NULL,
			factor_skill        INT NOT NULL,
			factor_experience   INT NOT NULL,
			factor_availability INT NOT NULL,
			factor_location     INT NOT NULL,
			factor_interest     INT NOT NULL,
			reasons             TEXT[] NOT NULL DEFAULT '{}',
			status              TEXT NOT NULL DEFAULT 'pending',
			feedback_rating     INT,
			feedback_comment    TEXT,
			feedback_helpful    BOOLEAN,
			created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT matches_pair_unique UNIQUE (subject_id, opportunity_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_subject ON matches (subject_id, score DESC, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_opportunity ON matches (opportunity_id, score DESC, created_at DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
