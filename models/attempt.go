package models

import "time"

// StopReason explains why a scheduler run ended
type StopReason string

const (
	StopEnoughCandidates StopReason = "enough_candidates"
	StopBudgetExhausted  StopReason = "budget_exhausted"
	StopBlocked          StopReason = "blocked"
	StopCompleted        StopReason = "completed"
)

// BlockedKind names the throttling condition behind a blocked run
type BlockedKind string

const (
	BlockedNone      BlockedKind = ""
	BlockedCooldown  BlockedKind = "local_cooldown"
	BlockedChallenge BlockedKind = "cloudflare_challenge"
	BlockedRateLimit BlockedKind = "rate_limit"
)

// ParseBlockedKind maps client-supplied text onto a known blocked kind
func ParseBlockedKind(s string) BlockedKind {
	switch BlockedKind(s) {
	case BlockedCooldown, BlockedChallenge, BlockedRateLimit:
		return BlockedKind(s)
	default:
		return BlockedNone
	}
}

// AttemptStatus is the outcome of one retrieval attempt
type AttemptStatus string

const (
	AttemptOK          AttemptStatus = "ok"
	AttemptEmpty       AttemptStatus = "empty"
	AttemptError       AttemptStatus = "error"
	AttemptTimeout     AttemptStatus = "timeout"
	AttemptRateLimited AttemptStatus = "rate_limited"
	AttemptChallenge   AttemptStatus = "challenge"
	AttemptCooldown    AttemptStatus = "cooldown"
)

// RetrievalAttempt is one logged retrieval call
type RetrievalAttempt struct {
	VariantID     string        `json:"variant_id"`
	CanonicalKey  string        `json:"canonical_key"`
	Phase         Phase         `json:"phase"`
	Phrase        string        `json:"phrase"`
	Status        AttemptStatus `json:"status"`
	Mode          string        `json:"mode,omitempty"`
	ParsedCount   int           `json:"parsed_count"`
	NewCount      int           `json:"new_count"`
	CaseLikeCount int           `json:"case_like_count"`
	StatuteCount  int           `json:"statute_like_count"`
	HTTPStatus    int           `json:"http_status,omitempty"`
	Challenge     bool          `json:"challenge,omitempty"`
	Cloudflare    bool          `json:"cloudflare,omitempty"`
	RetryAfter    time.Duration `json:"retry_after,omitempty"`
	RetryOf       int           `json:"retry_of,omitempty"`
	Utility       float64       `json:"utility"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Error         string        `json:"error,omitempty"`
	SemanticError string        `json:"semantic_error,omitempty"`
	RerankApplied bool          `json:"rerank_applied,omitempty"`
}

// VariantUtilitySnapshot is the running utility record for one canonical key.
// Paraphrase-equivalent variants share a snapshot.
type VariantUtilitySnapshot struct {
	CanonicalKey  string    `json:"canonical_key"`
	Attempts      int       `json:"attempts"`
	MeanUtility   float64   `json:"mean_utility"`
	CaseLikeRate  float64   `json:"case_like_rate"`
	StatuteRate   float64   `json:"statute_like_rate"`
	ChallengeRate float64   `json:"challenge_rate"`
	TimeoutRate   float64   `json:"timeout_rate"`
	Samples       []float64 `json:"-"`
}
