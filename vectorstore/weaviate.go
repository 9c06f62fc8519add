// Package vectorstore is the Weaviate-backed semantic vector collaborator
package vectorstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"casecite-backend/models"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	wvmodels "github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"
)

// DefaultClassName is the Weaviate class holding judgment chunks
const DefaultClassName = "JudgmentChunk"

var ErrNotConfigured = errors.New("weaviate not configured")

// WeaviateStore answers nearest-neighbour queries over judgment chunks
type WeaviateStore struct {
	client    *weaviate.Client
	className string
	logger    *zap.Logger
}

// Option is a functional option for WeaviateStore
type Option func(*WeaviateStore)

// WithClassName overrides the class name
func WithClassName(name string) Option {
	return func(s *WeaviateStore) {
		if name != "" {
			s.className = name
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *WeaviateStore) {
		s.logger = l
	}
}

// NewWeaviateStore wraps an existing client
func NewWeaviateStore(client *weaviate.Client, opts ...Option) *WeaviateStore {
	s := &WeaviateStore{client: client, className: DefaultClassName, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewWeaviateStoreFromURL creates a client for a service URL such as
// http://localhost:8080
func NewWeaviateStoreFromURL(rawURL string, opts ...Option) (*WeaviateStore, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid weaviate url %q", rawURL)
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: parsed.Host, Scheme: parsed.Scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	return NewWeaviateStore(client, opts...), nil
}

// IsConfigured reports whether a client is attached
func (s *WeaviateStore) IsConfigured() bool {
	return s != nil && s.client != nil
}

// EnsureSchema creates the chunk class if it does not exist
func (s *WeaviateStore) EnsureSchema(ctx context.Context) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	if _, err := s.client.Schema().ClassGetter().WithClassName(s.className).Do(ctx); err == nil {
		return nil
	}
	if err := s.client.Schema().ClassCreator().WithClass(chunkClass(s.className)).Do(ctx); err != nil {
		return fmt.Errorf("failed to create %s schema: %w", s.className, err)
	}
	s.logger.Info("created weaviate class", zap.String("class", s.className))
	return nil
}

func chunkClass(name string) *wvmodels.Class {
	text := []string{"text"}
	return &wvmodels.Class{
		Class:       name,
		Description: "A chunk of judgment text with its court and date",
		Vectorizer:  "none",
		Properties: []*wvmodels.Property{
			{Name: "doc_id", DataType: text},
			{Name: "chunk_index", DataType: []string{"int"}},
			{Name: "text", DataType: text},
			{Name: "title", DataType: text},
			{Name: "url", DataType: text},
			{Name: "court", DataType: text},
			{Name: "judgment_year", DataType: []string{"int"}},
			{Name: "judgment_date", DataType: text},
			{Name: "source_version", DataType: text},
		},
	}
}

// buildWhere turns a vector filter into a Weaviate where clause; nil means no filter
func buildWhere(filter models.VectorFilter) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder
	switch filter.Court {
	case models.CourtSC, models.CourtHC:
		operands = append(operands, filters.Where().
			WithPath([]string{"court"}).
			WithOperator(filters.Equal).
			WithValueString(string(filter.Court)))
	}
	if filter.FromYear != 0 {
		operands = append(operands, filters.Where().
			WithPath([]string{"judgment_year"}).
			WithOperator(filters.GreaterThanEqual).
			WithValueInt(int64(filter.FromYear)))
	}
	if filter.ToYear != 0 {
		operands = append(operands, filters.Where().
			WithPath([]string{"judgment_year"}).
			WithOperator(filters.LessThanEqual).
			WithValueInt(int64(filter.ToYear)))
	}
	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	}
	return filters.Where().WithOperator(filters.And).WithOperands(operands)
}

// Query returns the hits nearest to the embedding
func (s *WeaviateStore) Query(ctx context.Context, embedding []float32, topK int, filter models.VectorFilter) ([]models.VectorHit, error) {
	if !s.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if topK <= 0 {
		return nil, nil
	}

	fields := []graphql.Field{
		{Name: "doc_id"},
		{Name: "text"},
		{Name: "title"},
		{Name: "url"},
		{Name: "court"},
		{Name: "judgment_date"},
		{Name: "source_version"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "id"},
			{Name: "certainty"},
		}},
	}

	get := s.client.GraphQL().Get().
		WithClassName(s.className).
		WithFields(fields...).
		WithNearVector(s.client.GraphQL().NearVectorArgBuilder().WithVector(embedding)).
		WithLimit(topK)
	if where := buildWhere(filter); where != nil {
		get = get.WithWhere(where)
	}

	result, err := get.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search error: %s", result.Errors[0].Message)
	}
	return parseHits(result.Data, s.className), nil
}

// parseHits reads Get.<class> objects out of a GraphQL response.
// Malformed objects are skipped.
func parseHits(data map[string]wvmodels.JSONObject, className string) []models.VectorHit {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := get[className].([]interface{})
	if !ok {
		return nil
	}

	hits := make([]models.VectorHit, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		hit := models.VectorHit{
			DocID:         stringField(m, "doc_id"),
			Text:          stringField(m, "text"),
			Title:         stringField(m, "title"),
			URL:           stringField(m, "url"),
			Court:         stringField(m, "court"),
			JudgmentDate:  stringField(m, "judgment_date"),
			SourceVersion: stringField(m, "source_version"),
		}
		if add, ok := m["_additional"].(map[string]interface{}); ok {
			hit.ChunkID = stringField(add, "id")
			if c, ok := add["certainty"].(float64); ok {
				hit.Score = c
			}
		}
		if hit.DocID == "" {
			continue
		}
		hits = append(hits, hit)
	}
	return hits
}

func stringField(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// ObjectID is the deterministic Weaviate id for a chunk
func ObjectID(docID string, chunkIndex int) strfmt.UUID {
	hash := sha256.Sum256([]byte(docID + "#" + strconv.Itoa(chunkIndex)))
	id, _ := uuid.FromBytes(hash[:16])
	return strfmt.UUID(id.String())
}

// Upsert imports chunks with their embeddings in one batch.
// It returns how many objects Weaviate accepted.
func (s *WeaviateStore) Upsert(ctx context.Context, chunks []models.JudgmentChunk, embeddings [][]float32) (int, error) {
	if !s.IsConfigured() {
		return 0, ErrNotConfigured
	}
	if len(chunks) != len(embeddings) {
		return 0, fmt.Errorf("mismatch: %d embeddings for %d chunks", len(embeddings), len(chunks))
	}

	objects := make([]*wvmodels.Object, len(chunks))
	for i, c := range chunks {
		props := map[string]interface{}{
			"doc_id":         c.DocID,
			"chunk_index":    c.ChunkIndex,
			"text":           c.Text,
			"title":          c.Title,
			"url":            c.URL,
			"court":          c.Court,
			"source_version": c.SourceVersion,
		}
		if c.JudgmentDate != nil {
			props["judgment_date"] = c.JudgmentDate.Format("2006-01-02")
			props["judgment_year"] = c.JudgmentDate.Year()
		}
		objects[i] = &wvmodels.Object{
			Class:      s.className,
			ID:         ObjectID(c.DocID, c.ChunkIndex),
			Vector:     embeddings[i],
			Properties: props,
		}
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to save objects to weaviate: %w", err)
	}

	accepted := 0
	for _, item := range resp {
		if item.Result != nil && item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
			s.logger.Warn("weaviate rejected object", zap.String("id", string(item.ID)),
				zap.String("error", item.Result.Errors.Error[0].Message))
			continue
		}
		accepted++
	}
	return accepted, nil
}
