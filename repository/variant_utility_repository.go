package repository

import (
	"context"
	"fmt"

	"casecite-backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VariantUtilityRepository persists variant utility snapshots by canonical key.
// Concurrent writers race and the last write wins.
type VariantUtilityRepository struct {
	db *pgxpool.Pool
}

// NewVariantUtilityRepository creates a new variant utility repository
func NewVariantUtilityRepository(db *pgxpool.Pool) *VariantUtilityRepository {
	return &VariantUtilityRepository{db: db}
}

// Load returns the stored snapshots for the given keys
func (r *VariantUtilityRepository) Load(ctx context.Context, keys []string) (map[string]models.VariantUtilitySnapshot, error) {
	out := make(map[string]models.VariantUtilitySnapshot, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	query := `
		SELECT canonical_key, attempts, mean_utility, case_like_rate,
			statute_like_rate, challenge_rate, timeout_rate
		FROM variant_utility
		WHERE canonical_key = ANY($1)`

	rows, err := r.db.Query(ctx, query, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to query variant utility: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.VariantUtilitySnapshot
		err := rows.Scan(
			&s.CanonicalKey,
			&s.Attempts,
			&s.MeanUtility,
			&s.CaseLikeRate,
			&s.StatuteRate,
			&s.ChallengeRate,
			&s.TimeoutRate,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variant utility: %w", err)
		}
		out[s.CanonicalKey] = s
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating variant utility: %w", err)
	}
	return out, nil
}

// Save upserts snapshots, replacing whatever was stored for each key
func (r *VariantUtilityRepository) Save(ctx context.Context, snapshots []models.VariantUtilitySnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range snapshots {
		if s.CanonicalKey == "" {
			continue
		}
		batch.Queue(`
			INSERT INTO variant_utility (
				canonical_key, attempts, mean_utility, case_like_rate,
				statute_like_rate, challenge_rate, timeout_rate, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
			ON CONFLICT (canonical_key) DO UPDATE SET
				attempts = EXCLUDED.attempts,
				mean_utility = EXCLUDED.mean_utility,
				case_like_rate = EXCLUDED.case_like_rate,
				statute_like_rate = EXCLUDED.statute_like_rate,
				challenge_rate = EXCLUDED.challenge_rate,
				timeout_rate = EXCLUDED.timeout_rate,
				updated_at = NOW()`,
			s.CanonicalKey, s.Attempts, s.MeanUtility, s.CaseLikeRate,
			s.StatuteRate, s.ChallengeRate, s.TimeoutRate,
		)
	}
	if batch.Len() == 0 {
		return nil
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save variant utility: %w", err)
	}
	return nil
}
