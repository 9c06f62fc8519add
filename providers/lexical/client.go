// Package lexical is an HTTP client for an Indian Kanoon style judgment
// search API.
package lexical

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"casecite-backend/models"
	"casecite-backend/textutil"

	"go.uber.org/zap"
)

const (
	ProviderName     = "indiankanoon"
	DefaultBaseURL   = "https://api.indiankanoon.org"
	DefaultDocURL    = "https://indiankanoon.org/doc/"
	defaultTimeout   = 10 * time.Second
	defaultMaxPages  = 2
	maxBodyBytes     = 4 << 20
	parserModeJSON   = "json"
	parserModeHTML   = "html"
	parserModeNoBody = "empty"
)

var (
	ErrNotConfigured = errors.New("lexical provider not configured")
	ErrBadResponse   = errors.New("unexpected search response")
)

var (
	tagPattern       = regexp.MustCompile(`<[^>]+>`)
	challengeMarkers = []string{
		"cf-chl",
		"challenge-platform",
		"just a moment",
		"attention required",
		"cf-browser-verification",
	}
)

// searchResponse is the wire shape of one result page
type searchResponse struct {
	Docs  []searchDoc `json:"docs"`
	Found string      `json:"found"`
}

type searchDoc struct {
	TID         int64  `json:"tid"`
	Title       string `json:"title"`
	Headline    string `json:"headline"`
	DocSource   string `json:"docsource"`
	PublishDate string `json:"publishdate"`
	NumCites    int    `json:"numcites"`
	Citation    string `json:"citation"`
	DocSize     int    `json:"docsize"`
}

// Client searches the lexical judgment index
type Client struct {
	baseURL    string
	docURL     string
	apiToken   string
	httpClient *http.Client
	maxPages   int
	logger     *zap.Logger
}

// Option is a functional option for Client
type Option func(*Client)

// WithBaseURL overrides the API base URL
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithDocURL overrides the public document URL prefix
func WithDocURL(u string) Option {
	return func(c *Client) {
		c.docURL = u
	}
}

// WithHTTPClient sets the HTTP client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithMaxPages caps pages fetched per request
func WithMaxPages(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a lexical search client
func NewClient(apiToken string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		docURL:     DefaultDocURL,
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxPages:   defaultMaxPages,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs one variant against the index, following pages until the
// request limit or the page cap is reached
func (c *Client) Search(ctx context.Context, req models.SearchRequest) (*models.ProviderResult, error) {
	if c == nil || c.baseURL == "" {
		return nil, &models.ProviderError{Provider: ProviderName, Err: ErrNotConfigured}
	}

	pages := c.maxPages
	if req.Directives.MaxPages > 0 && req.Directives.MaxPages < pages {
		pages = req.Directives.MaxPages
	}
	formInput := BuildFormInput(req)

	result := &models.ProviderResult{
		Debug: models.AttemptDebug{Provider: ProviderName, ParserMode: parserModeJSON},
	}
	seen := make(map[string]bool)

	for page := 0; page < pages; page++ {
		resp, status, err := c.fetchPage(ctx, formInput, page)
		result.Debug.HTTPStatus = status
		if err != nil {
			// later pages failing keep what earlier pages found
			if page > 0 && len(result.Candidates) > 0 {
				c.logger.Warn("lexical page failed, keeping earlier pages",
					zap.Int("page", page), zap.Error(err))
				break
			}
			return nil, err
		}
		result.Debug.Pages = page + 1

		for _, doc := range resp.Docs {
			cand := c.toCandidate(doc)
			key := textutil.URLKey(cand.URL)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			result.Candidates = append(result.Candidates, cand)
		}
		if len(resp.Docs) == 0 || (req.Limit > 0 && len(result.Candidates) >= req.Limit) {
			break
		}
	}

	if req.Limit > 0 && len(result.Candidates) > req.Limit {
		result.Candidates = result.Candidates[:req.Limit]
	}
	return result, nil
}

func (c *Client) fetchPage(ctx context.Context, formInput string, page int) (*searchResponse, int, error) {
	form := url.Values{}
	form.Set("formInput", formInput)
	form.Set("pagenum", strconv.Itoa(page))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search/?"+form.Encode(), nil)
	if err != nil {
		return nil, 0, &models.ProviderError{Provider: ProviderName, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.apiToken != "" {
		httpReq.Header.Set("Authorization", "Token "+c.apiToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, &models.ProviderError{Provider: ProviderName, Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, &models.ProviderError{
			Provider: ProviderName,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("failed to read response: %w", err),
		}
	}

	if perr := classifyStatus(resp, body); perr != nil {
		return nil, resp.StatusCode, perr
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		mode := parserModeJSON
		if len(strings.TrimSpace(string(body))) == 0 {
			mode = parserModeNoBody
		} else if looksLikeHTML(body) {
			mode = parserModeHTML
		}
		return nil, resp.StatusCode, &models.ProviderError{
			Provider:   ProviderName,
			Status:     resp.StatusCode,
			ParserMode: mode,
			Challenge:  mode == parserModeHTML && hasChallengeMarker(body),
			Err:        fmt.Errorf("%w: %v", ErrBadResponse, err),
		}
	}
	return &parsed, resp.StatusCode, nil
}

// classifyStatus turns throttling and error responses into provider errors
func classifyStatus(resp *http.Response, body []byte) *models.ProviderError {
	cloudflare := isCloudflare(resp)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &models.ProviderError{
			Provider:    ProviderName,
			Status:      resp.StatusCode,
			RateLimited: true,
			Cloudflare:  cloudflare,
			RetryAfter:  ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			Err:         errors.New("rate limited"),
		}
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable:
		challenge := hasChallengeMarker(body) || resp.Header.Get("cf-mitigated") == "challenge"
		return &models.ProviderError{
			Provider:   ProviderName,
			Status:     resp.StatusCode,
			ParserMode: parserModeHTML,
			Challenge:  challenge,
			Cloudflare: cloudflare && challenge,
			RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			Err:        fmt.Errorf("blocked with status %d", resp.StatusCode),
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &models.ProviderError{
			Provider: ProviderName,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("API error: %d", resp.StatusCode),
		}
	}
	return nil
}

func (c *Client) toCandidate(doc searchDoc) models.CaseCandidate {
	snippet := textutil.CollapseSpace(stripTags(doc.Headline))
	cand := models.CaseCandidate{
		Source:       models.SourceLexical,
		Title:        textutil.CollapseSpace(stripTags(doc.Title)),
		URL:          c.docURL + strconv.FormatInt(doc.TID, 10) + "/",
		Snippet:      snippet,
		Court:        strings.TrimSpace(doc.DocSource),
		JudgmentDate: strings.TrimSpace(doc.PublishDate),
		CiteCount:    doc.NumCites,
		Evidence: &models.EvidenceFlags{
			SnippetOnly: true,
		},
	}
	if cite := strings.TrimSpace(doc.Citation); cite != "" {
		cand.EquivalentCitations = []string{cite}
	}
	return cand
}

// BuildFormInput renders a search request in the index's query syntax
func BuildFormInput(req models.SearchRequest) string {
	var b strings.Builder
	query := strings.TrimSpace(req.Query)
	if req.Strict && strings.Contains(query, " ") {
		b.WriteString(`"` + strings.ReplaceAll(query, `"`, "") + `"`)
	} else {
		b.WriteString(query)
	}
	for _, ex := range req.Exclude {
		if ex = strings.TrimSpace(ex); ex != "" {
			b.WriteString(" ANDNOT " + ex)
		}
	}

	docTypes := req.Directives.DocTypes
	if len(docTypes) == 0 {
		switch req.CourtScope {
		case models.CourtSC:
			docTypes = []string{"supremecourt"}
		case models.CourtHC:
			docTypes = []string{"highcourts"}
		}
	}
	if len(docTypes) > 0 {
		b.WriteString(" doctypes: " + strings.Join(docTypes, ","))
	}
	if req.Directives.DateFrom > 0 {
		b.WriteString(fmt.Sprintf(" fromdate: 1-1-%d", req.Directives.DateFrom))
	}
	if req.Directives.DateTo > 0 {
		b.WriteString(fmt.Sprintf(" todate: 31-12-%d", req.Directives.DateTo))
	}
	return b.String()
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP date
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}

func isCloudflare(resp *http.Response) bool {
	return strings.EqualFold(resp.Header.Get("Server"), "cloudflare") || resp.Header.Get("CF-RAY") != ""
}

func hasChallengeMarker(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, m := range challengeMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func looksLikeHTML(body []byte) bool {
	lower := strings.ToLower(strings.TrimSpace(string(body)))
	return strings.HasPrefix(lower, "<!doctype html") || strings.HasPrefix(lower, "<html")
}

func stripTags(s string) string {
	return tagPattern.ReplaceAllString(s, " ")
}
