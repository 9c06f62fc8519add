package scheduler

import (
	"math"
	"sort"

	"casecite-backend/models"

	"github.com/montanaflynn/stats"
)

const maxUtilitySamples = 32

// Utility weights for one attempt
const (
	utilityHTTPOK      = 0.2
	utilityVolume      = 0.3
	utilityVolumeScale = 10.0
	utilityCaseLike    = 0.5
	utilityStatute     = 0.3
	utilityChallenge   = 0.6
	utilityTimeout     = 0.4
	utilityRateLimit   = 0.3
	utilityCooldown    = 0.3
	utilityError       = 0.2
)

// AttemptUtility scores one attempt in [-1, 1]. Case-like volume is
// rewarded; statute-heavy, blocked and timed-out attempts are penalized.
func AttemptUtility(a models.RetrievalAttempt) float64 {
	u := 0.0
	switch {
	case a.HTTPStatus >= 200 && a.HTTPStatus < 300:
		u += utilityHTTPOK
	case a.HTTPStatus == 0 && (a.Status == models.AttemptOK || a.Status == models.AttemptEmpty):
		u += utilityHTTPOK
	}
	if a.ParsedCount > 0 {
		u += utilityVolume * math.Min(1, float64(a.ParsedCount)/utilityVolumeScale)
		u += utilityCaseLike * float64(a.CaseLikeCount) / float64(a.ParsedCount)
		u -= utilityStatute * float64(a.StatuteCount) / float64(a.ParsedCount)
	}
	switch a.Status {
	case models.AttemptChallenge:
		u -= utilityChallenge
	case models.AttemptTimeout:
		u -= utilityTimeout
	case models.AttemptRateLimited:
		u -= utilityRateLimit
	case models.AttemptCooldown:
		u -= utilityCooldown
	case models.AttemptError:
		u -= utilityError
	}
	return clamp(u, -1, 1)
}

// Tracker holds running utility statistics per canonical key.
// It is owned by one request and needs no locking.
type Tracker struct {
	snapshots map[string]*models.VariantUtilitySnapshot
	touched   map[string]bool
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{
		snapshots: make(map[string]*models.VariantUtilitySnapshot),
		touched:   make(map[string]bool),
	}
}

// Seed installs prior snapshots for keys the tracker has not seen yet.
// Persisted snapshots carry no samples, so the prior mean becomes one sample.
func (t *Tracker) Seed(prior map[string]models.VariantUtilitySnapshot) {
	for key, snap := range prior {
		if _, ok := t.snapshots[key]; ok || snap.Attempts <= 0 {
			continue
		}
		s := snap
		s.CanonicalKey = key
		if len(s.Samples) == 0 {
			s.Samples = []float64{s.MeanUtility}
		} else {
			s.Samples = append([]float64(nil), snap.Samples...)
		}
		t.snapshots[key] = &s
	}
}

// Record merges one attempt into the snapshot for its canonical key
func (t *Tracker) Record(a models.RetrievalAttempt) {
	key := a.CanonicalKey
	s, ok := t.snapshots[key]
	if !ok {
		s = &models.VariantUtilitySnapshot{CanonicalKey: key}
		t.snapshots[key] = s
	}
	t.touched[key] = true

	s.Attempts++
	s.Samples = append(s.Samples, a.Utility)
	if len(s.Samples) > maxUtilitySamples {
		s.Samples = s.Samples[len(s.Samples)-maxUtilitySamples:]
	}
	if mean, err := stats.Mean(s.Samples); err == nil {
		s.MeanUtility = mean
	}

	caseRatio, statuteRatio := 0.0, 0.0
	if a.ParsedCount > 0 {
		caseRatio = float64(a.CaseLikeCount) / float64(a.ParsedCount)
		statuteRatio = float64(a.StatuteCount) / float64(a.ParsedCount)
	}
	n := float64(s.Attempts)
	s.CaseLikeRate = runningMean(s.CaseLikeRate, caseRatio, n)
	s.StatuteRate = runningMean(s.StatuteRate, statuteRatio, n)
	s.ChallengeRate = runningMean(s.ChallengeRate, indicator(a.Status == models.AttemptChallenge), n)
	s.TimeoutRate = runningMean(s.TimeoutRate, indicator(a.Status == models.AttemptTimeout), n)
}

// Snapshot returns the snapshot for a key
func (t *Tracker) Snapshot(key string) (models.VariantUtilitySnapshot, bool) {
	s, ok := t.snapshots[key]
	if !ok {
		return models.VariantUtilitySnapshot{}, false
	}
	return *s, true
}

// Boost is the bounded priority adjustment earned by a key's history
func (t *Tracker) Boost(key string) float64 {
	s, ok := t.Snapshot(key)
	if !ok || s.Attempts == 0 {
		return 0
	}
	b := 0.6*s.MeanUtility + 0.4*s.CaseLikeRate - 0.3*s.StatuteRate - 0.4*s.ChallengeRate - 0.3*s.TimeoutRate
	return clamp(b, -1, 1)
}

// Snapshots returns all snapshots sorted by key
func (t *Tracker) Snapshots() []models.VariantUtilitySnapshot {
	out := make([]models.VariantUtilitySnapshot, 0, len(t.snapshots))
	for _, s := range t.snapshots {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalKey < out[j].CanonicalKey })
	return out
}

// Touched returns the snapshots updated during this request
func (t *Tracker) Touched() []models.VariantUtilitySnapshot {
	var out []models.VariantUtilitySnapshot
	for _, s := range t.Snapshots() {
		if t.touched[s.CanonicalKey] {
			out = append(out, s)
		}
	}
	return out
}

func runningMean(prev, x, n float64) float64 {
	if n <= 1 {
		return x
	}
	return prev + (x-prev)/n
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
