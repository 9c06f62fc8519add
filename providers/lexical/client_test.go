package lexical

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"casecite-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageOne = `{"found":"1 - 2 of 3","docs":[
 {"tid":1001,"title":"Rajesh Sharma vs State of U.P.","headline":"anticipatory <b>bail</b> under Section 304B","docsource":"Supreme Court of India","publishdate":"2018-07-27","numcites":45,"citation":"(2018) 10 SCC 472"},
 {"tid":1002,"title":"Arnesh Kumar vs State of Bihar","headline":"arrest under Section 498A","docsource":"Supreme Court of India","publishdate":"2014-07-02","numcites":300}
]}`

const pageTwo = `{"found":"3 - 3 of 3","docs":[
 {"tid":1002,"title":"Arnesh Kumar vs State of Bihar","headline":"duplicate","docsource":"Supreme Court of India"},
 {"tid":1003,"title":"Sushila Aggarwal vs State (NCT of Delhi)","headline":"duration of anticipatory bail","docsource":"Supreme Court of India","publishdate":"2020-01-29"}
]}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("secret", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()), WithMaxPages(3))
}

func TestSearch_ParsesPages(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		switch r.URL.Query().Get("pagenum") {
		case "0":
			w.Write([]byte(pageOne))
		case "1":
			w.Write([]byte(pageTwo))
		default:
			w.Write([]byte(`{"docs":[]}`))
		}
	})

	res, err := client.Search(context.Background(), models.SearchRequest{Query: "anticipatory bail 304B", Limit: 10})
	require.NoError(t, err)

	require.Len(t, res.Candidates, 3)
	first := res.Candidates[0]
	assert.Equal(t, "Rajesh Sharma vs State of U.P.", first.Title)
	assert.Equal(t, "https://indiankanoon.org/doc/1001/", first.URL)
	assert.Equal(t, "anticipatory bail under Section 304B", first.Snippet)
	assert.Equal(t, "Supreme Court of India", first.Court)
	assert.Equal(t, "2018-07-27", first.JudgmentDate)
	assert.Equal(t, 45, first.CiteCount)
	assert.Equal(t, []string{"(2018) 10 SCC 472"}, first.EquivalentCitations)
	assert.Equal(t, models.SourceLexical, first.Source)
	assert.Equal(t, "https://indiankanoon.org/doc/1003/", res.Candidates[2].URL)

	assert.Equal(t, 3, res.Debug.Pages)
	assert.Equal(t, http.StatusOK, res.Debug.HTTPStatus)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSearch_StopsAtLimit(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(pageOne))
	})

	res, err := client.Search(context.Background(), models.SearchRequest{Query: "bail", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSearch_DirectivePageCap(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(pageOne))
	})

	_, err := client.Search(context.Background(), models.SearchRequest{
		Query:      "bail",
		Limit:      50,
		Directives: models.RetrievalDirectives{MaxPages: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSearch_RateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.Search(context.Background(), models.SearchRequest{Query: "bail"})
	var perr *models.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.IsRateLimit())
	assert.False(t, perr.IsChallenge())
	assert.Equal(t, 7*time.Second, perr.RetryAfter)
	assert.Equal(t, http.StatusTooManyRequests, perr.Status)
}

func TestSearch_CloudflareChallenge(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`<!DOCTYPE html><html><title>Just a moment...</title><script src="/cdn-cgi/challenge-platform/x.js"></script></html>`))
	})

	_, err := client.Search(context.Background(), models.SearchRequest{Query: "bail"})
	var perr *models.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.IsChallenge())
	assert.True(t, perr.Cloudflare)
	assert.Equal(t, http.StatusForbidden, perr.Status)
	assert.Equal(t, "html", perr.ParserMode)
}

func TestSearch_PlainForbiddenIsNotChallenge(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"invalid token"}`))
	})

	_, err := client.Search(context.Background(), models.SearchRequest{Query: "bail"})
	var perr *models.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.False(t, perr.IsChallenge())
	assert.False(t, perr.IsRateLimit())
}

func TestSearch_CloudflareOutageIsNotChallenge(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.Header().Set("CF-RAY", "8a1b2c3d4e5f-BOM")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`<html><body>Service temporarily unavailable</body></html>`))
	})

	_, err := client.Search(context.Background(), models.SearchRequest{Query: "bail"})
	var perr *models.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusServiceUnavailable, perr.Status)
	assert.False(t, perr.Challenge)
	assert.False(t, perr.Cloudflare)
	assert.False(t, perr.IsChallenge())
	assert.False(t, perr.IsRateLimit())
}

func TestSearch_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Search(context.Background(), models.SearchRequest{Query: "bail"})
	var perr *models.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusInternalServerError, perr.Status)
	assert.Contains(t, err.Error(), "status 500")
}

func TestSearch_HTMLBodyWithOK(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>cf-chl-bypass</body></html>`))
	})

	_, err := client.Search(context.Background(), models.SearchRequest{Query: "bail"})
	var perr *models.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.ErrorIs(t, err, ErrBadResponse)
	assert.Equal(t, "html", perr.ParserMode)
	assert.True(t, perr.IsChallenge())
}

func TestSearch_LaterPageFailureKeepsResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pagenum") == "0" {
			w.Write([]byte(pageOne))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	})

	res, err := client.Search(context.Background(), models.SearchRequest{Query: "bail", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 2)
	assert.Equal(t, 1, res.Debug.Pages)
}

func TestBuildFormInput(t *testing.T) {
	tests := []struct {
		name string
		req  models.SearchRequest
		want string
	}{
		{
			name: "plain relaxed",
			req:  models.SearchRequest{Query: "dowry death bail"},
			want: "dowry death bail",
		},
		{
			name: "strict phrase quoted",
			req:  models.SearchRequest{Query: "dowry death", Strict: true},
			want: `"dowry death"`,
		},
		{
			name: "strict single word unquoted",
			req:  models.SearchRequest{Query: "dowry", Strict: true},
			want: "dowry",
		},
		{
			name: "court scope and dates",
			req: models.SearchRequest{
				Query:      "bail",
				CourtScope: models.CourtSC,
				Directives: models.RetrievalDirectives{DateFrom: 2010, DateTo: 2020},
			},
			want: "bail doctypes: supremecourt fromdate: 1-1-2010 todate: 31-12-2020",
		},
		{
			name: "explicit doctypes and exclusions",
			req: models.SearchRequest{
				Query:      "bail",
				CourtScope: models.CourtSC,
				Exclude:    []string{"murder"},
				Directives: models.RetrievalDirectives{DocTypes: []string{"highcourts"}},
			},
			want: "bail ANDNOT murder doctypes: highcourts",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildFormInput(tt.req))
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 30*time.Second, ParseRetryAfter("30", now))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("", now))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("-4", now))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("soon", now))

	date := now.Add(90 * time.Second).Format(http.TimeFormat)
	assert.Equal(t, 90*time.Second, ParseRetryAfter(date, now))
}

func TestSearch_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pageOne))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Search(ctx, models.SearchRequest{Query: "bail"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestToCandidate_URLPrefix(t *testing.T) {
	c := NewClient("", WithDocURL("https://example.test/doc/"))
	cand := c.toCandidate(searchDoc{TID: 42, Title: "<b>A</b> vs B"})
	assert.Equal(t, "https://example.test/doc/"+strconv.Itoa(42)+"/", cand.URL)
	assert.Equal(t, "A vs B", cand.Title)
}
