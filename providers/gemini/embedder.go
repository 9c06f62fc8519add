// Package gemini wires the Gemini API into the retrieval pipeline as the
// embedding collaborator and the proposition planner.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

const (
	DefaultEmbeddingModel = "text-embedding-004"
	maxRetries            = 3
	initialBackoff        = time.Second
	maxBatchSize          = 100
)

var (
	ErrEmbeddingFailed = errors.New("failed to generate embedding")
	ErrEmptyInput      = errors.New("empty embedding input")
)

type embedFunc func(ctx context.Context, text string) ([]float32, error)

type batchFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Embedder produces L2-normalized embeddings with retry and backoff
type Embedder struct {
	embed   embedFunc
	batch   batchFunc
	retries int
	backoff time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *zap.Logger
}

// EmbedderOption is a functional option for Embedder
type EmbedderOption func(*Embedder)

// EmbedWithRetries sets the attempt count per call
func EmbedWithRetries(n int, backoff time.Duration) EmbedderOption {
	return func(e *Embedder) {
		if n > 0 {
			e.retries = n
		}
		e.backoff = backoff
	}
}

// EmbedWithLogger sets the logger
func EmbedWithLogger(l *zap.Logger) EmbedderOption {
	return func(e *Embedder) {
		e.logger = l
	}
}

// NewEmbedder creates an embedder on a Gemini embedding model.
// taskType is genai.TaskTypeRetrievalQuery at query time and
// genai.TaskTypeRetrievalDocument when indexing.
func NewEmbedder(client *genai.Client, modelName string, taskType genai.TaskType, opts ...EmbedderOption) *Embedder {
	if modelName == "" {
		modelName = DefaultEmbeddingModel
	}
	model := client.EmbeddingModel(modelName)
	model.TaskType = taskType

	single := func(ctx context.Context, text string) ([]float32, error) {
		resp, err := model.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp == nil || resp.Embedding == nil {
			return nil, ErrEmbeddingFailed
		}
		return resp.Embedding.Values, nil
	}
	batch := func(ctx context.Context, texts []string) ([][]float32, error) {
		b := model.NewBatch()
		for _, t := range texts {
			b.AddContent(genai.Text(t))
		}
		resp, err := model.BatchEmbedContents(ctx, b)
		if err != nil {
			return nil, err
		}
		out := make([][]float32, len(resp.Embeddings))
		for i, emb := range resp.Embeddings {
			if emb != nil {
				out[i] = emb.Values
			}
		}
		return out, nil
	}
	return newEmbedder(single, batch, opts...)
}

func newEmbedder(single embedFunc, batch batchFunc, opts ...EmbedderOption) *Embedder {
	e := &Embedder{
		embed:   single,
		batch:   batch,
		retries: maxRetries,
		backoff: initialBackoff,
		sleep:   sleepContext,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed returns the normalized embedding for one text
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	var out []float32
	err := e.withRetry(ctx, func() error {
		values, err := e.embed(ctx, text)
		if err != nil {
			return err
		}
		if len(values) == 0 {
			return ErrEmbeddingFailed
		}
		out = values
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Normalize(out), nil
}

// EmbedBatch embeds texts in order, splitting into API-sized batches
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		part := texts[start:end]

		var vectors [][]float32
		err := e.withRetry(ctx, func() error {
			v, err := e.batch(ctx, part)
			if err != nil {
				return err
			}
			if len(v) != len(part) {
				return fmt.Errorf("mismatch: got %d embeddings for %d inputs", len(v), len(part))
			}
			vectors = v
			return nil
		})
		if err != nil {
			return nil, err
		}
		for i, v := range vectors {
			if len(v) == 0 {
				return nil, fmt.Errorf("%w: empty embedding for input %d", ErrEmbeddingFailed, start+i)
			}
			out = append(out, Normalize(v))
		}
	}
	return out, nil
}

func (e *Embedder) withRetry(ctx context.Context, call func() error) error {
	backoff := e.backoff
	var lastErr error
	for attempt := 0; attempt < e.retries; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, backoff); err != nil {
				return err
			}
			backoff *= 2
		}
		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return fmt.Errorf("%w: %v", ErrEmbeddingFailed, lastErr)
		}
		e.logger.Warn("embedding call failed, retrying", zap.Int("attempt", attempt+1), zap.Error(lastErr))
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrEmbeddingFailed, e.retries, lastErr)
}

// retryable reports whether an API error is worth another attempt.
// Bad requests and auth failures are not.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return false
		}
	}
	return true
}

// Normalize scales v to unit L2 norm. Zero vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
