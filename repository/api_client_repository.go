package repository

import (
	"context"
	"errors"
	"fmt"

	"casecite-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrAPIClientNotFound = errors.New("api client not found")

// APIClientRepository handles database operations for API clients
type APIClientRepository struct {
	db *pgxpool.Pool
}

// NewAPIClientRepository creates a new API client repository
func NewAPIClientRepository(db *pgxpool.Pool) *APIClientRepository {
	return &APIClientRepository{db: db}
}

// Create creates a new API client record
func (r *APIClientRepository) Create(ctx context.Context, client *models.APIClient) error {
	query := `
		INSERT INTO api_clients (
			name, key_prefix, key_hash, rate_limit_per_min, disabled
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRow(
		ctx, query,
		client.Name,
		client.KeyPrefix,
		client.KeyHash,
		client.RateLimitPerMin,
		client.Disabled,
	).Scan(&client.ID, &client.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create api client: %w", err)
	}
	return nil
}

// GetByKeyPrefix retrieves an API client by the public prefix of its key
func (r *APIClientRepository) GetByKeyPrefix(ctx context.Context, prefix string) (*models.APIClient, error) {
	client := &models.APIClient{}
	query := `
		SELECT id, name, key_prefix, key_hash, rate_limit_per_min, disabled, created_at, last_used_at
		FROM api_clients
		WHERE key_prefix = $1`

	err := r.db.QueryRow(ctx, query, prefix).Scan(
		&client.ID,
		&client.Name,
		&client.KeyPrefix,
		&client.KeyHash,
		&client.RateLimitPerMin,
		&client.Disabled,
		&client.CreatedAt,
		&client.LastUsedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAPIClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}
	return client, nil
}

// TouchLastUsed records that a client just made a request
func (r *APIClientRepository) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, "UPDATE api_clients SET last_used_at = NOW() WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to update api client: %w", err)
	}
	return nil
}

// SetDisabled enables or disables a client
func (r *APIClientRepository) SetDisabled(ctx context.Context, id uuid.UUID, disabled bool) error {
	tag, err := r.db.Exec(ctx, "UPDATE api_clients SET disabled = $2 WHERE id = $1", id, disabled)
	if err != nil {
		return fmt.Errorf("failed to update api client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAPIClientNotFound
	}
	return nil
}
