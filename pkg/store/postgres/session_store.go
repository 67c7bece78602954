package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"

	"github.com/submit4201/candor/pkg/store"
)

// AppendEntry implements [store.SessionStore].
func (s *Store) AppendEntry(ctx context.Context, entry store.SessionEntry) error {
	if entry.SessionID == "" {
		return fmt.Errorf("session store: entry must carry a session id")
	}
	resultsJSON, err := sonic.Marshal(entry.Results)
	if err != nil {
		return fmt.Errorf("session store: marshal results: %w", err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	const q = `
		INSERT INTO session_entries (session_id, request_id, results, created_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := s.pool.Exec(ctx, q, entry.SessionID, entry.RequestID, resultsJSON, createdAt); err != nil {
		return fmt.Errorf("session store: append: %w", err)
	}
	return nil
}

// History implements [store.SessionStore]. Entries come back in chronological
// order, truncated to the limit newest turns.
func (s *Store) History(ctx context.Context, sessionID string, limit int) ([]store.SessionEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	const q = `
		SELECT session_id, request_id, results, created_at
		FROM (
		    SELECT session_id, request_id, results, created_at
		    FROM   session_entries
		    WHERE  session_id = $1
		    ORDER  BY created_at DESC
		    LIMIT  $2
		) newest
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("session store: history: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.SessionEntry, error) {
		var (
			entry       store.SessionEntry
			resultsJSON []byte
		)
		if err := row.Scan(&entry.SessionID, &entry.RequestID, &resultsJSON, &entry.CreatedAt); err != nil {
			return entry, err
		}
		if err := sonic.Unmarshal(resultsJSON, &entry.Results); err != nil {
			return entry, fmt.Errorf("unmarshal results: %w", err)
		}
		return entry, nil
	})
	if err != nil {
		return nil, fmt.Errorf("session store: history: %w", err)
	}
	return entries, nil
}

// Summary implements [store.SessionStore].
func (s *Store) Summary(ctx context.Context, sessionID string) (map[string]any, error) {
	entries, err := s.History(ctx, sessionID, defaultHistoryLimit)
	if err != nil {
		return nil, err
	}
	return store.BuildSummary(entries), nil
}
