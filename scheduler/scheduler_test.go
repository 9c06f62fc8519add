package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"casecite-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockRetriever struct {
	mu    sync.Mutex
	calls []string
	fn    func(call int, v models.QueryVariant) (*models.RetrievalBatch, error)
}

func (m *mockRetriever) Retrieve(ctx context.Context, v models.QueryVariant) (*models.RetrievalBatch, error) {
	m.mu.Lock()
	call := len(m.calls)
	m.calls = append(m.calls, v.ID)
	m.mu.Unlock()
	return m.fn(call, v)
}

func (m *mockRetriever) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type mockCooldown struct {
	allow bool
	wait  time.Duration
}

func (m *mockCooldown) Allow(ctx context.Context, key string) (bool, time.Duration) {
	return m.allow, m.wait
}

type mockUtilityStore struct {
	prior map[string]models.VariantUtilitySnapshot
	saved []models.VariantUtilitySnapshot
}

func (m *mockUtilityStore) Load(ctx context.Context, keys []string) (map[string]models.VariantUtilitySnapshot, error) {
	return m.prior, nil
}

func (m *mockUtilityStore) Save(ctx context.Context, snapshots []models.VariantUtilitySnapshot) error {
	m.saved = append(m.saved, snapshots...)
	return nil
}

func caseBatch(prefix string, n int) *models.RetrievalBatch {
	b := &models.RetrievalBatch{Mode: models.ModeLexicalOnly, Debug: models.AttemptDebug{HTTPStatus: http.StatusOK}}
	for i := 0; i < n; i++ {
		b.Candidates = append(b.Candidates, models.CaseCandidate{
			Title: fmt.Sprintf("Ramesh Kumar v. State of Kerala %s %d", prefix, i),
			URL:   fmt.Sprintf("https://indiankanoon.org/doc/%s%d/", prefix, i),
		})
	}
	return b
}

func emptyBatch() *models.RetrievalBatch {
	return &models.RetrievalBatch{Mode: models.ModeLexicalOnly, Debug: models.AttemptDebug{HTTPStatus: http.StatusOK}}
}

func variant(phase models.Phase, n int, phrase string, priority float64) models.QueryVariant {
	return models.QueryVariant{
		ID:           fmt.Sprintf("%s-%d", phase, n),
		Phrase:       phrase,
		Phase:        phase,
		CourtScope:   models.CourtAny,
		Strictness:   models.StrictnessRelaxed,
		CanonicalKey: CanonicalKey(phrase),
		Priority:     priority,
	}
}

func testVariants() []models.QueryVariant {
	return []models.QueryVariant{
		variant(models.PhasePrimary, 1, "anticipatory bail dowry death", 1.0),
		variant(models.PhasePrimary, 2, "section 304B IPC bail", 0.9),
		variant(models.PhaseFallback, 1, "dowry harassment bail", 1.0),
		variant(models.PhaseFallback, 2, "bail husband relatives", 0.9),
		variant(models.PhaseRescue, 1, "section 80 BNS bail", 1.0),
		variant(models.PhaseMicro, 1, "dowry bail", 1.0),
		variant(models.PhaseRevolving, 1, "husband dowry relatives", 1.0),
		variant(models.PhaseBrowse, 1, "dowry death", 1.0),
	}
}

func newTestScheduler(r Retriever, mutate func(*Config), opts ...Option) *Scheduler {
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	opts = append([]Option{WithConfig(cfg), WithSleeper(func(context.Context, time.Duration) error { return nil })}, opts...)
	return New(r, opts...)
}

func TestRun_EnoughCandidates(t *testing.T) {
	r := &mockRetriever{fn: func(call int, v models.QueryVariant) (*models.RetrievalBatch, error) {
		return caseBatch(v.ID, 3), nil
	}}
	s := newTestScheduler(r, func(c *Config) { c.MinCaseTarget = 5 })

	res := s.Run(context.Background(), testVariants(), nil)

	assert.Equal(t, models.StopEnoughCandidates, res.StopReason)
	assert.Equal(t, 2, res.Carry.AttemptsUsed)
	assert.Equal(t, 6, res.Carry.CaseLikeCount())
	assert.Equal(t, []string{"primary-1", "primary-2"}, r.Calls())
}

func TestRun_BudgetExhausted(t *testing.T) {
	r := &mockRetriever{fn: func(int, models.QueryVariant) (*models.RetrievalBatch, error) {
		return emptyBatch(), nil
	}}
	s := newTestScheduler(r, func(c *Config) { c.MaxAttempts = 3 })

	res := s.Run(context.Background(), testVariants(), nil)

	assert.Equal(t, models.StopBudgetExhausted, res.StopReason)
	assert.Equal(t, 3, res.Carry.AttemptsUsed)
	for _, a := range res.Carry.Attempts {
		assert.Equal(t, models.AttemptEmpty, a.Status)
	}
}

func TestRun_WallClockBudget(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := base
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	r := &mockRetriever{fn: func(int, models.QueryVariant) (*models.RetrievalBatch, error) {
		mu.Lock()
		now = now.Add(10 * time.Second)
		mu.Unlock()
		return emptyBatch(), nil
	}}
	s := newTestScheduler(r, nil, WithClock(clock))

	res := s.Run(context.Background(), testVariants(), nil)

	assert.Equal(t, models.StopBudgetExhausted, res.StopReason)
	assert.Equal(t, 3, res.Carry.AttemptsUsed)
}

func TestRun_Completed(t *testing.T) {
	r := &mockRetriever{fn: func(int, models.QueryVariant) (*models.RetrievalBatch, error) {
		return emptyBatch(), nil
	}}
	s := newTestScheduler(r, nil)
	variants := testVariants()[:3]

	res := s.Run(context.Background(), variants, nil)

	assert.Equal(t, models.StopCompleted, res.StopReason)
	assert.Equal(t, 3, res.Carry.AttemptsUsed)
	assert.Empty(t, res.BlockedKind)
}

func TestRun_PhaseQuota(t *testing.T) {
	r := &mockRetriever{fn: func(int, models.QueryVariant) (*models.RetrievalBatch, error) {
		return emptyBatch(), nil
	}}
	s := newTestScheduler(r, func(c *Config) { c.PhaseQuotas[models.PhasePrimary] = 1 })

	res := s.Run(context.Background(), testVariants()[:3], nil)

	assert.Equal(t, models.StopCompleted, res.StopReason)
	assert.Equal(t, []string{"primary-1", "fallback-1"}, r.Calls())
}

func TestRun_BlockedOnChallenge(t *testing.T) {
	r := &mockRetriever{fn: func(int, models.QueryVariant) (*models.RetrievalBatch, error) {
		return nil, &models.ProviderError{Provider: "lexical", Status: http.StatusForbidden, Challenge: true, Cloudflare: true}
	}}
	s := newTestScheduler(r, nil)

	res := s.Run(context.Background(), testVariants(), nil)

	assert.Equal(t, models.StopBlocked, res.StopReason)
	assert.Equal(t, models.BlockedChallenge, res.BlockedKind)
	assert.Equal(t, 2, res.Carry.AttemptsUsed)
	assert.Equal(t, models.AttemptChallenge, res.Carry.Attempts[0].Status)
	assert.Equal(t, http.StatusForbidden, res.Carry.Attempts[0].HTTPStatus)
}

func TestRun_CloudflareOutageIsNotBlocked(t *testing.T) {
	r := &mockRetriever{fn: func(int, models.QueryVariant) (*models.RetrievalBatch, error) {
		return nil, &models.ProviderError{Provider: "lexical", Status: http.StatusServiceUnavailable, Cloudflare: true}
	}}
	s := newTestScheduler(r, nil)

	res := s.Run(context.Background(), testVariants(), nil)

	assert.NotEqual(t, models.StopBlocked, res.StopReason)
	assert.Equal(t, models.BlockedNone, res.BlockedKind)
	assert.Zero(t, res.Carry.BlockedCount)
	require.NotEmpty(t, res.Carry.Attempts)
	assert.Equal(t, models.AttemptError, res.Carry.Attempts[0].Status)
}

func TestRun_RateLimitRetry(t *testing.T) {
	r := &mockRetriever{fn: func(call int, v models.QueryVariant) (*models.RetrievalBatch, error) {
		if call == 0 {
			return nil, &models.ProviderError{Provider: "lexical", Status: http.StatusTooManyRequests, RetryAfter: time.Second}
		}
		return caseBatch(v.ID, 1), nil
	}}
	var waits []time.Duration
	sleeper := func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	s := newTestScheduler(r, func(c *Config) { c.PhaseQuotas[models.PhasePrimary] = 1 }, WithSleeper(sleeper))

	res := s.Run(context.Background(), testVariants()[:1], nil)

	require.Len(t, res.Carry.Attempts, 2)
	assert.Equal(t, models.AttemptRateLimited, res.Carry.Attempts[0].Status)
	assert.Equal(t, models.AttemptOK, res.Carry.Attempts[1].Status)
	assert.Equal(t, 1, res.Carry.Attempts[1].RetryOf)
	assert.Equal(t, []time.Duration{time.Second}, waits)
	assert.Equal(t, 0, res.Carry.BlockedCount)
	assert.Equal(t, models.StopCompleted, res.StopReason)
}

func TestRun_RateLimitAboveCeilingBlocks(t *testing.T) {
	r := &mockRetriever{fn: func(int, models.QueryVariant) (*models.RetrievalBatch, error) {
		return nil, &models.ProviderError{Provider: "lexical", Status: http.StatusTooManyRequests, RetryAfter: 30 * time.Second}
	}}
	s := newTestScheduler(r, func(c *Config) { c.BlockedThreshold = 1 })

	res := s.Run(context.Background(), testVariants(), nil)

	assert.Equal(t, models.StopBlocked, res.StopReason)
	assert.Equal(t, models.BlockedRateLimit, res.BlockedKind)
	assert.Equal(t, 30*time.Second, res.RetryAfter)
	assert.Equal(t, 1, res.Carry.AttemptsUsed)
}

func TestRun_CooldownBlocks(t *testing.T) {
	r := &mockRetriever{fn: func(int, models.QueryVariant) (*models.RetrievalBatch, error) {
		return emptyBatch(), nil
	}}
	s := newTestScheduler(r, nil, WithCooldown(&mockCooldown{allow: false, wait: 2 * time.Second}))

	res := s.Run(context.Background(), testVariants(), nil)

	assert.Equal(t, models.StopBlocked, res.StopReason)
	assert.Equal(t, models.BlockedCooldown, res.BlockedKind)
	assert.Empty(t, r.Calls())
	assert.Equal(t, models.AttemptCooldown, res.Carry.Attempts[0].Status)
}

func TestRun_SkipsDuplicateSignatures(t *testing.T) {
	r := &mockRetriever{fn: func(int, models.QueryVariant) (*models.RetrievalBatch, error) {
		return emptyBatch(), nil
	}}
	s := newTestScheduler(r, nil)
	variants := []models.QueryVariant{
		variant(models.PhasePrimary, 1, "dowry death bail", 1.0),
		variant(models.PhasePrimary, 2, "bail for dowry death", 0.9),
		variant(models.PhaseFallback, 1, "death dowry bail", 1.0),
	}

	res := s.Run(context.Background(), variants, nil)

	assert.Equal(t, []string{"primary-1"}, r.Calls())
	assert.Equal(t, 2, res.Carry.SkippedDuplicates)
	assert.Equal(t, models.StopCompleted, res.StopReason)
}

func TestRun_AttemptTimeoutDiscardsLateResult(t *testing.T) {
	r := &mockRetriever{fn: func(call int, v models.QueryVariant) (*models.RetrievalBatch, error) {
		time.Sleep(80 * time.Millisecond)
		return caseBatch("late", 3), nil
	}}
	s := newTestScheduler(r, func(c *Config) { c.AttemptTimeout = 10 * time.Millisecond })

	res := s.Run(context.Background(), testVariants()[:1], nil)

	require.Len(t, res.Carry.Attempts, 1)
	assert.Equal(t, models.AttemptTimeout, res.Carry.Attempts[0].Status)
	assert.Empty(t, res.Carry.Pool)
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, res.Carry.Pool)
}

func TestRun_UtilityReordering(t *testing.T) {
	r := &mockRetriever{fn: func(int, models.QueryVariant) (*models.RetrievalBatch, error) {
		return emptyBatch(), nil
	}}
	weak := variant(models.PhasePrimary, 1, "section 304B punishment", 0.5)
	strong := variant(models.PhasePrimary, 2, "dowry death bail parity", 0.5)
	store := &mockUtilityStore{prior: map[string]models.VariantUtilitySnapshot{
		weak.CanonicalKey:   {Attempts: 4, MeanUtility: -0.4, StatuteRate: 0.8},
		strong.CanonicalKey: {Attempts: 4, MeanUtility: 0.7, CaseLikeRate: 0.9},
	}}
	s := newTestScheduler(r, func(c *Config) { c.MaxAttempts = 1 }, WithUtilityStore(store))

	res := s.Run(context.Background(), []models.QueryVariant{weak, strong}, nil)

	assert.Equal(t, []string{"primary-2"}, r.Calls())
	assert.Equal(t, models.StopBudgetExhausted, res.StopReason)
	require.Len(t, store.saved, 1)
	assert.Equal(t, strong.CanonicalKey, store.saved[0].CanonicalKey)
	assert.Equal(t, 5, store.saved[0].Attempts)
}

func TestRun_ContextCancelled(t *testing.T) {
	r := &mockRetriever{fn: func(int, models.QueryVariant) (*models.RetrievalBatch, error) {
		return emptyBatch(), nil
	}}
	s := newTestScheduler(r, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := s.Run(ctx, testVariants(), nil)

	assert.Equal(t, models.StopBudgetExhausted, res.StopReason)
	assert.Empty(t, r.Calls())
}

func TestResume_UsesUnseenVariants(t *testing.T) {
	r := &mockRetriever{fn: func(call int, v models.QueryVariant) (*models.RetrievalBatch, error) {
		return caseBatch(v.ID, 3), nil
	}}
	s := newTestScheduler(r, func(c *Config) { c.MinCaseTarget = 3 })
	variants := testVariants()

	first := s.Run(context.Background(), variants, nil)
	require.Equal(t, models.StopEnoughCandidates, first.StopReason)
	require.Equal(t, 1, first.Carry.AttemptsUsed)

	second := s.Resume(context.Background(), variants, first.Carry, 2)

	assert.Equal(t, models.StopBudgetExhausted, second.StopReason)
	assert.Equal(t, 3, second.Carry.AttemptsUsed)
	assert.Equal(t, []string{"primary-1", "primary-2", "fallback-1"}, r.Calls())
	assert.Len(t, second.Carry.Pool, 9)
}

func TestRun_Totality(t *testing.T) {
	outcomes := []func(call int, v models.QueryVariant) (*models.RetrievalBatch, error){
		func(call int, v models.QueryVariant) (*models.RetrievalBatch, error) {
			return caseBatch(fmt.Sprintf("%s-%d", v.ID, call), 2), nil
		},
		func(int, models.QueryVariant) (*models.RetrievalBatch, error) { return emptyBatch(), nil },
		func(call int, v models.QueryVariant) (*models.RetrievalBatch, error) {
			switch call % 3 {
			case 0:
				return nil, &models.ProviderError{Provider: "lexical", Status: http.StatusTooManyRequests, RetryAfter: time.Second}
			case 1:
				return nil, &models.ProviderError{Provider: "lexical", Status: http.StatusServiceUnavailable, Challenge: true, Cloudflare: true}
			default:
				return caseBatch(fmt.Sprintf("%s-%d", v.ID, call), 1), nil
			}
		},
	}
	valid := map[models.StopReason]bool{
		models.StopEnoughCandidates: true,
		models.StopBudgetExhausted:  true,
		models.StopBlocked:          true,
		models.StopCompleted:        true,
	}

	for oi, fn := range outcomes {
		for _, budget := range []int{0, 1, 3, 10} {
			for _, target := range []int{0, 1, 5, 50} {
				for _, threshold := range []int{1, 2, 5} {
					name := fmt.Sprintf("outcome%d/budget%d/target%d/threshold%d", oi, budget, target, threshold)
					t.Run(name, func(t *testing.T) {
						r := &mockRetriever{fn: fn}
						s := newTestScheduler(r, func(c *Config) {
							c.MaxAttempts = budget
							c.MinCaseTarget = target
							c.BlockedThreshold = threshold
						})
						res := s.Run(context.Background(), testVariants(), nil)
						assert.True(t, valid[res.StopReason], "unexpected stop reason %q", res.StopReason)
						assert.LessOrEqual(t, res.Carry.AttemptsUsed, budget)
					})
				}
			}
		}
	}
}

func TestCarryState_CaseLikeCount(t *testing.T) {
	carry := &CarryState{Pool: []models.ClassifiedCandidate{
		{Kind: models.KindCase},
		{Kind: models.KindStatute},
		{Kind: models.KindCase},
		{Kind: models.KindUnknown},
	}}
	assert.Equal(t, 2, carry.CaseLikeCount())
}
