package scheduler

import (
	"time"

	"casecite-backend/classifier"
	"casecite-backend/models"
	"casecite-backend/textutil"
)

// CarryState is the per-request accumulator of a scheduler run.
// A guarantee pass may resume from it.
type CarryState struct {
	Seen              map[string]bool
	AttemptsUsed      int
	BlockedCount      int
	BlockedKind       models.BlockedKind
	RetryAfter        time.Duration
	Attempts          []models.RetrievalAttempt
	Pool              []models.ClassifiedCandidate
	SkippedDuplicates int
	Utility           *Tracker

	poolIndex map[string]int
}

// NewCarryState creates an empty carry state
func NewCarryState() *CarryState {
	return &CarryState{
		Seen:      make(map[string]bool),
		Utility:   NewTracker(),
		poolIndex: make(map[string]int),
	}
}

// AddCandidates appends candidates whose normalized URL is new to the pool
// and returns how many were added
func (c *CarryState) AddCandidates(cands []models.ClassifiedCandidate) int {
	added := 0
	for _, cand := range cands {
		key := textutil.URLKey(cand.URL)
		if key == "" {
			continue
		}
		if _, ok := c.poolIndex[key]; ok {
			continue
		}
		c.poolIndex[key] = len(c.Pool)
		c.Pool = append(c.Pool, cand)
		added++
	}
	return added
}

// CaseLikeCount is the number of distinct case-like candidates in the pool
func (c *CarryState) CaseLikeCount() int {
	n := 0
	for _, cand := range c.Pool {
		if classifier.IsCaseLike(cand.Kind) {
			n++
		}
	}
	return n
}

// RecordBlocked counts one blocked signal. The latest kind wins and the
// largest retry-after is kept.
func (c *CarryState) RecordBlocked(kind models.BlockedKind, retryAfter time.Duration) {
	if kind == models.BlockedNone {
		return
	}
	c.BlockedCount++
	c.BlockedKind = kind
	if retryAfter > c.RetryAfter {
		c.RetryAfter = retryAfter
	}
}

// Durations returns attempt durations in milliseconds
func (c *CarryState) Durations() []float64 {
	out := make([]float64, 0, len(c.Attempts))
	for _, a := range c.Attempts {
		out = append(out, float64(a.Duration.Milliseconds()))
	}
	return out
}
