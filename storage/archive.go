package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"casecite-backend/models"

	"github.com/google/uuid"
)

// TraceArchive stores debug search responses as JSON documents
type TraceArchive struct {
	store Storage
}

// NewTraceArchive wraps a storage backend. A nil backend disables archiving.
func NewTraceArchive(store Storage) *TraceArchive {
	return &TraceArchive{store: store}
}

// Enabled reports whether traces are persisted
func (a *TraceArchive) Enabled() bool {
	return a != nil && a.store != nil
}

// Save writes the response under a new trace id and returns the id
func (a *TraceArchive) Save(ctx context.Context, resp *models.SearchResponse) (uuid.UUID, error) {
	if !a.Enabled() {
		return uuid.Nil, ErrNotFound
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal trace: %w", err)
	}
	id := uuid.New()
	if _, err := a.store.Upload(ctx, id, bytes.NewReader(data)); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Load reads an archived response
func (a *TraceArchive) Load(ctx context.Context, id uuid.UUID) (*models.SearchResponse, error) {
	if !a.Enabled() {
		return nil, ErrNotFound
	}
	body, err := a.store.Download(ctx, id)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp models.SearchResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode trace: %w", err)
	}
	return &resp, nil
}
