package ingest

import (
	"context"
	"fmt"

	"casecite-backend/models"
)

// PGVectorStore is the pgvector side of the index
type PGVectorStore interface {
	CountByDoc(ctx context.Context, docID string) (int, error)
	UpsertBatch(ctx context.Context, chunks []models.JudgmentChunk, embeddings [][]float32) error
}

// WeaviateUpserter is the Weaviate side of the index
type WeaviateUpserter interface {
	Upsert(ctx context.Context, chunks []models.JudgmentChunk, embeddings [][]float32) (int, error)
}

// PGVectorSink stores chunks in Postgres and skips indexed documents
type PGVectorSink struct {
	Repo PGVectorStore
}

func (s PGVectorSink) CountByDoc(ctx context.Context, docID string) (int, error) {
	return s.Repo.CountByDoc(ctx, docID)
}

func (s PGVectorSink) Store(ctx context.Context, chunks []models.JudgmentChunk, embeddings [][]float32) error {
	return s.Repo.UpsertBatch(ctx, chunks, embeddings)
}

// WeaviateSink stores chunks in Weaviate. Object ids are deterministic,
// so re-ingesting a document overwrites it.
type WeaviateSink struct {
	Upserter WeaviateUpserter
}

func (s WeaviateSink) Store(ctx context.Context, chunks []models.JudgmentChunk, embeddings [][]float32) error {
	n, err := s.Upserter.Upsert(ctx, chunks, embeddings)
	if err != nil {
		return err
	}
	if n != len(chunks) {
		return fmt.Errorf("weaviate accepted %d of %d chunks", n, len(chunks))
	}
	return nil
}
