package store

import (
	"context"
	"fmt"
)

// schema is applied at startup. Every statement is idempotent.
//
// code holds the canonical form (trimmed, uppercased). Older rows may still
// contain inner whitespace, so lookups go through normalizedCode, which
// matches core.NormalizeCode.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS courses (
		id         UUID PRIMARY KEY,
		code       TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS courses_normalized_code_idx
		ON courses ((upper(regexp_replace(code, '\s', '', 'g'))))`,
}

// normalizedCode is the SQL counterpart of core.NormalizeCode.
const normalizedCode = `upper(regexp_replace(code, '\s', '', 'g'))`

// Migrate creates the courses table and its indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
