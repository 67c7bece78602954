package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"

	"github.com/submit4201/candor/internal/analysis"
)

// SaveBaseline implements [store.BaselineStore]. An existing profile for the
// same user is completely replaced and its updated_at timestamp refreshed.
func (s *Store) SaveBaseline(ctx context.Context, profile *analysis.BaselineProfile) error {
	if profile == nil || profile.UserID == "" {
		return errors.New("baseline store: profile must carry a user id")
	}
	profileJSON, err := sonic.Marshal(profile)
	if err != nil {
		return fmt.Errorf("baseline store: marshal profile: %w", err)
	}

	const q = `
		INSERT INTO baseline_profiles (user_id, profile, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
		    profile    = EXCLUDED.profile,
		    updated_at = now()`

	if _, err := s.pool.Exec(ctx, q, profile.UserID, profileJSON); err != nil {
		return fmt.Errorf("baseline store: save: %w", err)
	}
	return nil
}

// GetBaseline implements [store.BaselineStore]. Returns (nil, nil) when the
// user has no stored profile.
func (s *Store) GetBaseline(ctx context.Context, userID string) (*analysis.BaselineProfile, error) {
	const q = `
		SELECT profile
		FROM   baseline_profiles
		WHERE  user_id = $1`

	var profileJSON []byte
	err := s.pool.QueryRow(ctx, q, userID).Scan(&profileJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("baseline store: get: %w", err)
	}

	var profile analysis.BaselineProfile
	if err := sonic.Unmarshal(profileJSON, &profile); err != nil {
		return nil, fmt.Errorf("baseline store: unmarshal profile: %w", err)
	}
	return &profile, nil
}

// DeleteBaseline implements [store.BaselineStore].
func (s *Store) DeleteBaseline(ctx context.Context, userID string) error {
	const q = `DELETE FROM baseline_profiles WHERE user_id = $1`
	if _, err := s.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("baseline store: delete: %w", err)
	}
	return nil
}
