package models

import (
	"fmt"
	"net/http"
	"time"
)

// ProviderError is a retrieval failure that still carries debug metadata,
// so the attempt can be logged even though no candidates came back
type ProviderError struct {
	Provider    string
	Status      int
	ParserMode  string
	Challenge   bool
	Cloudflare  bool
	RateLimited bool
	RetryAfter  time.Duration
	Err         error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s provider error", e.Provider)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRateLimit reports whether the provider asked us to slow down
func (e *ProviderError) IsRateLimit() bool {
	return e.RateLimited || e.Status == http.StatusTooManyRequests
}

// IsChallenge reports whether the provider served a bot challenge
func (e *ProviderError) IsChallenge() bool {
	return e.Challenge
}

// Debug converts the error into attempt debug metadata
func (e *ProviderError) Debug() AttemptDebug {
	return AttemptDebug{
		Provider:   e.Provider,
		HTTPStatus: e.Status,
		ParserMode: e.ParserMode,
		Challenge:  e.Challenge,
		Cloudflare: e.Cloudflare,
		RetryAfter: int(e.RetryAfter / time.Second),
	}
}
