package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"casecite-backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EmbeddingDimensions is the width of the judgment_chunks.embedding column
const EmbeddingDimensions = 768

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// JudgmentChunkRepository handles database operations for judgment chunks.
// It doubles as the pgvector-backed semantic vector store.
type JudgmentChunkRepository struct {
	db *pgxpool.Pool
}

// NewJudgmentChunkRepository creates a new judgment chunk repository
func NewJudgmentChunkRepository(db *pgxpool.Pool) *JudgmentChunkRepository {
	return &JudgmentChunkRepository{db: db}
}

// IsConfigured reports whether a database pool is attached
func (r *JudgmentChunkRepository) IsConfigured() bool {
	return r != nil && r.db != nil
}

// formatVector formats an embedding vector as a pgvector literal
func formatVector(embedding []float32) string {
	if len(embedding) == 0 {
		return "[]"
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = fmt.Sprintf("%.6f", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// buildSearchQuery renders the nearest-neighbour query for a filter.
// $1 is always the query vector and the last placeholder is the limit.
func buildSearchQuery(vector string, topK int, filter models.VectorFilter) (string, []interface{}) {
	args := []interface{}{vector}
	var where []string

	switch filter.Court {
	case models.CourtSC, models.CourtHC:
		args = append(args, string(filter.Court))
		where = append(where, fmt.Sprintf("court = $%d", len(args)))
	}
	if filter.FromYear != 0 {
		args = append(args, filter.FromYear)
		where = append(where, fmt.Sprintf("EXTRACT(YEAR FROM judgment_date) >= $%d", len(args)))
	}
	if filter.ToYear != 0 {
		args = append(args, filter.ToYear)
		where = append(where, fmt.Sprintf("EXTRACT(YEAR FROM judgment_date) <= $%d", len(args)))
	}
	args = append(args, topK)

	whereClause := "embedding IS NOT NULL"
	if len(where) > 0 {
		whereClause += "\n\t\t\tAND " + strings.Join(where, "\n\t\t\tAND ")
	}

	query := fmt.Sprintf(`
		SELECT
			id,
			doc_id,
			chunk_index,
			chunk_text,
			title,
			url,
			court,
			judgment_date,
			citations,
			source_version,
			embedding <=> $1::vector AS distance
		FROM judgment_chunks
		WHERE
			%s
		ORDER BY
			embedding <=> $1::vector
		LIMIT $%d`, whereClause, len(args))

	return query, args
}

// Search returns the chunks nearest to the embedding
func (r *JudgmentChunkRepository) Search(
	ctx context.Context,
	embedding []float32,
	topK int,
	filter models.VectorFilter,
) ([]models.JudgmentChunk, error) {
	if len(embedding) != EmbeddingDimensions {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrDimensionMismatch, EmbeddingDimensions, len(embedding))
	}
	if topK <= 0 {
		return nil, nil
	}

	query, args := buildSearchQuery(formatVector(embedding), topK, filter)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query judgment chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.JudgmentChunk
	for rows.Next() {
		var chunk models.JudgmentChunk
		err := rows.Scan(
			&chunk.ID,
			&chunk.DocID,
			&chunk.ChunkIndex,
			&chunk.Text,
			&chunk.Title,
			&chunk.URL,
			&chunk.Court,
			&chunk.JudgmentDate,
			&chunk.Citations,
			&chunk.SourceVersion,
			&chunk.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan judgment chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating judgment chunks: %w", err)
	}

	return chunks, nil
}

// Query implements the semantic vector collaborator
func (r *JudgmentChunkRepository) Query(
	ctx context.Context,
	embedding []float32,
	topK int,
	filter models.VectorFilter,
) ([]models.VectorHit, error) {
	chunks, err := r.Search(ctx, embedding, topK, filter)
	if err != nil {
		return nil, err
	}
	hits := make([]models.VectorHit, 0, len(chunks))
	for _, c := range chunks {
		hits = append(hits, c.ToHit())
	}
	return hits, nil
}

// CountByDoc returns how many chunks are stored for a document
func (r *JudgmentChunkRepository) CountByDoc(ctx context.Context, docID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM judgment_chunks WHERE doc_id = $1", docID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count judgment chunks: %w", err)
	}
	return count, nil
}

// UpsertBatch stores chunks with their embeddings in one transaction.
// A chunk is keyed by (doc_id, chunk_index).
func (r *JudgmentChunkRepository) UpsertBatch(ctx context.Context, chunks []models.JudgmentChunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("mismatch: %d embeddings for %d chunks", len(embeddings), len(chunks))
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i, chunk := range chunks {
		if len(embeddings[i]) != EmbeddingDimensions {
			return fmt.Errorf("chunk %s/%d: %w", chunk.DocID, chunk.ChunkIndex, ErrDimensionMismatch)
		}
		batch.Queue(`
			INSERT INTO judgment_chunks (
				id, doc_id, chunk_index, chunk_text, title, url, court,
				judgment_date, citations, source_version, metadata, embedding
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::vector)
			ON CONFLICT (doc_id, chunk_index) DO UPDATE SET
				chunk_text = EXCLUDED.chunk_text,
				title = EXCLUDED.title,
				url = EXCLUDED.url,
				court = EXCLUDED.court,
				judgment_date = EXCLUDED.judgment_date,
				citations = EXCLUDED.citations,
				source_version = EXCLUDED.source_version,
				metadata = EXCLUDED.metadata,
				embedding = EXCLUDED.embedding,
				updated_at = NOW()`,
			chunk.ID, chunk.DocID, chunk.ChunkIndex, chunk.Text, chunk.Title, chunk.URL, chunk.Court,
			chunk.JudgmentDate, chunk.Citations, chunk.SourceVersion, chunk.Metadata, formatVector(embeddings[i]),
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert judgment chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
