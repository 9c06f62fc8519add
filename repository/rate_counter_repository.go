package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RateCounterRepository keeps fixed-window request counters shared
// across server instances
type RateCounterRepository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewRateCounterRepository creates a new rate counter repository
func NewRateCounterRepository(db *pgxpool.Pool) *RateCounterRepository {
	return &RateCounterRepository{db: db, now: time.Now}
}

// windowStart truncates t to the start of its fixed window
func windowStart(t time.Time, windowSeconds int) time.Time {
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	return t.UTC().Truncate(time.Duration(windowSeconds) * time.Second)
}

// Increment bumps the counter for key in the current window and returns
// the new count
func (r *RateCounterRepository) Increment(ctx context.Context, key string, windowSeconds int) (int64, error) {
	start := windowStart(r.now(), windowSeconds)

	query := `
		INSERT INTO rate_counters (counter_key, window_start, hits)
		VALUES ($1, $2, 1)
		ON CONFLICT (counter_key, window_start)
		DO UPDATE SET hits = rate_counters.hits + 1
		RETURNING hits`

	var hits int64
	if err := r.db.QueryRow(ctx, query, key, start).Scan(&hits); err != nil {
		return 0, fmt.Errorf("failed to increment rate counter: %w", err)
	}
	return hits, nil
}

// PurgeBefore deletes windows that started before cutoff
func (r *RateCounterRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM rate_counters WHERE window_start < $1", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge rate counters: %w", err)
	}
	return tag.RowsAffected(), nil
}
