package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the required tables and indexes when they do not exist.
// It is idempotent and safe to run on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS baseline_profiles (
		    user_id     TEXT PRIMARY KEY,
		    profile     JSONB NOT NULL,
		    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS session_entries (
		    id          BIGSERIAL PRIMARY KEY,
		    session_id  TEXT NOT NULL,
		    request_id  TEXT NOT NULL,
		    results     JSONB NOT NULL,
		    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_session_entries_session_time
		    ON session_entries (session_id, created_at DESC);`

	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
