// Package rerank calls a cross-encoder reranking endpoint over HTTP
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"casecite-backend/models"
	"casecite-backend/textutil"

	"go.uber.org/zap"
)

const (
	defaultTimeout  = 5 * time.Second
	maxDocumentRune = 1200
)

var (
	ErrNotConfigured = errors.New("reranker not configured")
	ErrBadResponse   = errors.New("unexpected rerank response")
)

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

// Client is a reranker backed by an HTTP cross-encoder service
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option is a functional option for Client
type Option func(*Client)

// WithModel sets the model name sent with each request
func WithModel(m string) Option {
	return func(c *Client) {
		c.model = m
	}
}

// WithHTTPClient sets the HTTP client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a rerank client for endpoint
func NewClient(endpoint, apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rerank scores candidates against the query and returns them best first.
// Candidates the service leaves out keep their relative order at the tail.
func (c *Client) Rerank(ctx context.Context, query string, candidates []models.CaseCandidate, topN int) (models.RerankOutcome, error) {
	if c == nil || c.endpoint == "" {
		return models.RerankOutcome{}, ErrNotConfigured
	}
	if len(candidates) == 0 {
		return models.RerankOutcome{}, nil
	}
	if topN <= 0 || topN > len(candidates) {
		topN = len(candidates)
	}

	docs := make([]string, len(candidates))
	for i, cand := range candidates {
		docs[i] = documentText(cand)
	}
	body, err := json.Marshal(rerankRequest{Model: c.model, Query: query, Documents: docs, TopN: topN})
	if err != nil {
		return models.RerankOutcome{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.RerankOutcome{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.RerankOutcome{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.RerankOutcome{}, fmt.Errorf("API error: %d - %s", resp.StatusCode, string(msg))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return models.RerankOutcome{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	ordered, err := applyScores(candidates, parsed.Results)
	if err != nil {
		return models.RerankOutcome{}, err
	}
	return models.RerankOutcome{Candidates: ordered, Applied: true}, nil
}

// applyScores copies candidates into score order and records rerank scores
func applyScores(candidates []models.CaseCandidate, results []rerankResult) ([]models.CaseCandidate, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no results", ErrBadResponse)
	}
	sorted := append([]rerankResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].RelevanceScore != sorted[j].RelevanceScore {
			return sorted[i].RelevanceScore > sorted[j].RelevanceScore
		}
		return sorted[i].Index < sorted[j].Index
	})

	out := make([]models.CaseCandidate, 0, len(candidates))
	used := make(map[int]bool, len(candidates))
	for _, r := range sorted {
		if r.Index < 0 || r.Index >= len(candidates) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrBadResponse, r.Index)
		}
		if used[r.Index] {
			continue
		}
		used[r.Index] = true
		c := candidates[r.Index].Clone()
		if c.Provenance == nil {
			c.Provenance = &models.Provenance{}
		}
		score := r.RelevanceScore
		c.Provenance.RerankScore = &score
		out = append(out, c)
	}
	for i, c := range candidates {
		if !used[i] {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func documentText(c models.CaseCandidate) string {
	text := c.Title
	if c.Court != "" {
		text += " (" + c.Court + ")"
	}
	body := c.Snippet
	if c.DetailText != "" {
		body = c.DetailText
	}
	return textutil.Truncate(textutil.CollapseSpace(text+". "+body), maxDocumentRune)
}
