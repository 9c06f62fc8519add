package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"casecite-backend/models"
	"casecite-backend/ratelimit"
	"casecite-backend/repository"
	"casecite-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockSearcher struct {
	lastReq  models.CaseSearchRequest
	resp     *models.SearchResponse
	err      error
	trace    *models.SearchResponse
	traceErr error
}

func (m *mockSearcher) Search(ctx context.Context, req models.CaseSearchRequest) (*models.SearchResponse, error) {
	m.lastReq = req
	return m.resp, m.err
}

func (m *mockSearcher) Trace(ctx context.Context, id string) (*models.SearchResponse, error) {
	return m.trace, m.traceErr
}

type mockClientStore struct {
	clients map[string]*models.APIClient
	touched []uuid.UUID
}

func (m *mockClientStore) GetByKeyPrefix(ctx context.Context, prefix string) (*models.APIClient, error) {
	c, ok := m.clients[prefix]
	if !ok {
		return nil, repository.ErrAPIClientNotFound
	}
	return c, nil
}

func (m *mockClientStore) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	m.touched = append(m.touched, id)
	return nil
}

type mockCounter struct {
	mu   sync.Mutex
	hits map[string]int64
}

func (m *mockCounter) Increment(ctx context.Context, key string, windowSeconds int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hits == nil {
		m.hits = make(map[string]int64)
	}
	m.hits[key]++
	return m.hits[key], nil
}

type envelope struct {
	Success bool                   `json:"success"`
	Data    *models.SearchResponse `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func newClient(t *testing.T, secret string, limit int) *models.APIClient {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.APIClient{
		ID:              uuid.New(),
		Name:            "firm",
		KeyPrefix:       "abcd1234",
		KeyHash:         string(hash),
		RateLimitPerMin: limit,
	}
}

func TestSearch_OK(t *testing.T) {
	s := &mockSearcher{resp: &models.SearchResponse{SchemaVersion: models.SearchResponseVersion, Query: "bail"}}
	r := NewRouter(RouterConfig{Search: NewSearchHandler(s, nil)})

	w, env := doJSON(t, r, http.MethodPost, "/api/search", map[string]any{
		"query":               "bail",
		"max_results":         5,
		"debug":               true,
		"client_blocked_kind": "rate_limit",
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	require.NotNil(t, env.Data)
	assert.Equal(t, "bail", env.Data.Query)
	assert.Equal(t, 5, s.lastReq.MaxResults)
	assert.True(t, s.lastReq.Debug)
	assert.Equal(t, "rate_limit", s.lastReq.ClientBlockedKind)
}

func TestSearch_Errors(t *testing.T) {
	cases := []struct {
		name   string
		body   any
		err    error
		status int
		code   string
	}{
		{"missing query", map[string]any{"debug": true}, nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"blank query", map[string]any{"query": " "}, service.ErrEmptyQuery, http.StatusBadRequest, "EMPTY_QUERY"},
		{"unavailable", map[string]any{"query": "x"}, service.ErrRetrievalUnavailable, http.StatusServiceUnavailable, "RETRIEVAL_UNAVAILABLE"},
		{"internal", map[string]any{"query": "x"}, errors.New("boom"), http.StatusInternalServerError, "SEARCH_FAILED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRouter(RouterConfig{Search: NewSearchHandler(&mockSearcher{err: tc.err}, nil)})
			w, env := doJSON(t, r, http.MethodPost, "/api/search", tc.body, nil)
			assert.Equal(t, tc.status, w.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestGetTrace(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"found", nil, http.StatusOK},
		{"bad id", service.ErrInvalidTraceID, http.StatusBadRequest},
		{"missing", service.ErrTraceNotFound, http.StatusNotFound},
		{"disabled", service.ErrTracesDisabled, http.StatusNotFound},
		{"failure", errors.New("disk"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &mockSearcher{trace: &models.SearchResponse{TraceID: "t-1"}, traceErr: tc.err}
			r := NewRouter(RouterConfig{Search: NewSearchHandler(s, nil)})
			w, env := doJSON(t, r, http.MethodGet, "/api/traces/t-1", nil, nil)
			assert.Equal(t, tc.status, w.Code)
			if tc.err == nil {
				require.NotNil(t, env.Data)
				assert.Equal(t, "t-1", env.Data.TraceID)
			}
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r := NewRouter(RouterConfig{Search: NewSearchHandler(&mockSearcher{}, nil)})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	client := newClient(t, "s3cret", 0)
	store := &mockClientStore{clients: map[string]*models.APIClient{client.KeyPrefix: client}}
	s := &mockSearcher{resp: &models.SearchResponse{}}
	r := NewRouter(RouterConfig{Search: NewSearchHandler(s, nil), Clients: store, AuthEnabled: true})
	body := map[string]any{"query": "bail"}

	w, env := doJSON(t, r, http.MethodPost, "/api/search", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/search", body, map[string]string{"X-API-Key": "abcd1234.wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/search", body, map[string]string{"X-API-Key": "ffff0000.s3cret"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/search", body, map[string]string{"Authorization": "Bearer abcd1234.s3cret"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []uuid.UUID{client.ID}, store.touched)

	client.Disabled = true
	w, env = doJSON(t, r, http.MethodPost, "/api/search", body, map[string]string{"X-API-Key": "abcd1234.s3cret"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "CLIENT_DISABLED", env.Error.Code)
}

func TestRateLimit_PerClient(t *testing.T) {
	client := newClient(t, "s3cret", 2)
	store := &mockClientStore{clients: map[string]*models.APIClient{client.KeyPrefix: client}}
	r := NewRouter(RouterConfig{
		Search:       NewSearchHandler(&mockSearcher{resp: &models.SearchResponse{}}, nil),
		Clients:      store,
		AuthEnabled:  true,
		Limiter:      ratelimit.NewLimiter(&mockCounter{}, nil),
		DefaultLimit: 100,
	})
	headers := map[string]string{"X-API-Key": "abcd1234.s3cret"}
	body := map[string]any{"query": "bail"}

	for i := 0; i < 2; i++ {
		w, _ := doJSON(t, r, http.MethodPost, "/api/search", body, headers)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, env := doJSON(t, r, http.MethodPost, "/api/search", body, headers)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRateLimit_AnonymousDefault(t *testing.T) {
	r := NewRouter(RouterConfig{
		Search:       NewSearchHandler(&mockSearcher{resp: &models.SearchResponse{}}, nil),
		Limiter:      ratelimit.NewLimiter(&mockCounter{}, nil),
		DefaultLimit: 1,
	})
	body := map[string]any{"query": "bail"}

	w, _ := doJSON(t, r, http.MethodPost, "/api/search", body, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, r, http.MethodPost, "/api/search", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestSplitAPIKey(t *testing.T) {
	p, s, ok := SplitAPIKey(" abcd.efgh.ij ")
	assert.True(t, ok)
	assert.Equal(t, "abcd", p)
	assert.Equal(t, "efgh.ij", s)

	_, _, ok = SplitAPIKey("nodot")
	assert.False(t, ok)
	_, _, ok = SplitAPIKey(".secret")
	assert.False(t, ok)
}
