// Package scheduler drives query variants through retrieval in phase order
// under attempt, wall-clock and blocking budgets.
package scheduler

import (
	"context"
	"errors"
	"sort"
	"time"

	"casecite-backend/classifier"
	"casecite-backend/models"
	"casecite-backend/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("casecite.scheduler")

// Retriever runs one retrieval for a variant
type Retriever interface {
	Retrieve(ctx context.Context, v models.QueryVariant) (*models.RetrievalBatch, error)
}

// Cooldown is an optional local throttle consulted before each attempt
type Cooldown interface {
	Allow(ctx context.Context, key string) (bool, time.Duration)
}

// UtilityStore persists utility snapshots across requests, last write wins
type UtilityStore interface {
	Load(ctx context.Context, keys []string) (map[string]models.VariantUtilitySnapshot, error)
	Save(ctx context.Context, snapshots []models.VariantUtilitySnapshot) error
}

// RunResult is the outcome of a scheduler pass
type RunResult struct {
	StopReason  models.StopReason
	BlockedKind models.BlockedKind
	RetryAfter  time.Duration
	Elapsed     time.Duration
	Carry       *CarryState
}

// Scheduler issues retrieval attempts one at a time
type Scheduler struct {
	retriever Retriever
	cooldown  Cooldown
	store     UtilityStore
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option is a functional option for Scheduler
type Option func(*Scheduler)

// WithCooldown sets the local cooldown throttle
func WithCooldown(c Cooldown) Option {
	return func(s *Scheduler) {
		s.cooldown = c
	}
}

// WithUtilityStore enables cross-request utility persistence
func WithUtilityStore(store UtilityStore) Option {
	return func(s *Scheduler) {
		s.store = store
	}
}

// WithConfig overrides the default configuration
func WithConfig(cfg Config) Option {
	return func(s *Scheduler) {
		s.cfg = cfg
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithClock replaces the wall clock, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithSleeper replaces the retry-after wait, for tests
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) {
		s.sleep = sleep
	}
}

// New creates a scheduler over a retriever
func New(retriever Retriever, opts ...Option) *Scheduler {
	s := &Scheduler{
		retriever: retriever,
		cfg:       DefaultConfig(),
		logger:    zap.NewNop(),
		now:       time.Now,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg.Validate()
	return s
}

// Config returns the effective configuration
func (s *Scheduler) Config() Config {
	return s.cfg
}

type pass struct {
	start      time.Time
	wallClock  time.Duration
	budget     int
	targetStop bool
}

// Run executes variants phase by phase until a stop condition holds
func (s *Scheduler) Run(ctx context.Context, variants []models.QueryVariant, carry *CarryState) RunResult {
	if carry == nil {
		carry = NewCarryState()
	}
	ctx, span := tracer.Start(ctx, "Scheduler.Run", trace.WithAttributes(
		attribute.Int("variants", len(variants)),
	))
	defer span.End()

	s.loadUtility(ctx, variants, carry)
	res := s.run(ctx, variants, carry, pass{
		start:      s.now(),
		wallClock:  s.cfg.WallClock,
		budget:     carry.AttemptsUsed + s.cfg.MaxAttempts,
		targetStop: s.cfg.TargetStopEnabled,
	})
	s.saveUtility(ctx, carry)

	span.SetAttributes(
		attribute.String("stop_reason", string(res.StopReason)),
		attribute.Int("attempts", carry.AttemptsUsed),
	)
	observability.RecordStop(string(res.StopReason), string(res.BlockedKind))
	return res
}

// Resume issues up to extra attempts over variants not yet tried, reusing
// the carry state of an earlier run. Target stop is off because the caller
// already decided it needs more.
func (s *Scheduler) Resume(ctx context.Context, variants []models.QueryVariant, carry *CarryState, extra int) RunResult {
	if carry == nil {
		carry = NewCarryState()
	}
	ctx, span := tracer.Start(ctx, "Scheduler.Resume", trace.WithAttributes(
		attribute.Int("extra", extra),
	))
	defer span.End()

	res := s.run(ctx, variants, carry, pass{
		start:     s.now(),
		wallClock: s.cfg.GuaranteeWallClock,
		budget:    carry.AttemptsUsed + extra,
	})
	s.saveUtility(ctx, carry)
	return res
}

func (s *Scheduler) run(ctx context.Context, variants []models.QueryVariant, carry *CarryState, p pass) RunResult {
	finish := func(reason models.StopReason) RunResult {
		res := RunResult{
			StopReason: reason,
			Elapsed:    s.now().Sub(p.start),
			Carry:      carry,
		}
		if reason == models.StopBlocked {
			res.BlockedKind = carry.BlockedKind
			res.RetryAfter = carry.RetryAfter
		}
		s.logger.Debug("Scheduler pass finished",
			zap.String("stop_reason", string(reason)),
			zap.Int("attempts", carry.AttemptsUsed),
			zap.Int("pool", len(carry.Pool)),
			zap.Int("skipped_duplicates", carry.SkippedDuplicates))
		return res
	}

	byPhase := groupByPhase(variants)
	for _, phase := range models.PhaseOrder {
		list := s.order(byPhase[phase], carry.Utility)
		used := 0
		for _, v := range list {
			if used >= s.cfg.quota(phase) {
				break
			}
			if s.budgetSpent(ctx, carry, p) {
				return finish(models.StopBudgetExhausted)
			}
			sig := v.Signature()
			if carry.Seen[sig] {
				carry.SkippedDuplicates++
				continue
			}
			carry.Seen[sig] = true
			used++

			s.execute(ctx, v, carry, p)

			if reason, stop := s.stopCondition(ctx, carry, p); stop {
				return finish(reason)
			}
		}
	}
	return finish(models.StopCompleted)
}

// stopCondition checks, in order: enough candidates, budget, blocked
func (s *Scheduler) stopCondition(ctx context.Context, carry *CarryState, p pass) (models.StopReason, bool) {
	if p.targetStop && carry.CaseLikeCount() >= s.cfg.MinCaseTarget {
		return models.StopEnoughCandidates, true
	}
	if s.budgetSpent(ctx, carry, p) {
		return models.StopBudgetExhausted, true
	}
	if carry.BlockedCount >= s.cfg.BlockedThreshold {
		return models.StopBlocked, true
	}
	return "", false
}

func (s *Scheduler) budgetSpent(ctx context.Context, carry *CarryState, p pass) bool {
	return carry.AttemptsUsed >= p.budget ||
		s.now().Sub(p.start) >= p.wallClock ||
		ctx.Err() != nil
}

// order sorts one phase by utility-adjusted priority; ties fall back to
// declared priority and then id
func (s *Scheduler) order(list []models.QueryVariant, t *Tracker) []models.QueryVariant {
	out := append([]models.QueryVariant(nil), list...)
	adjusted := func(v models.QueryVariant) float64 {
		return v.Priority + s.cfg.UtilityWeight*t.Boost(v.CanonicalKey)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := adjusted(out[i]), adjusted(out[j])
		if ai != aj {
			return ai > aj
		}
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// execute runs one variant, retrying rate-limited responses when the
// provider's retry-after is acceptable
func (s *Scheduler) execute(ctx context.Context, v models.QueryVariant, carry *CarryState, p pass) {
	retries := 0
	for {
		var a models.RetrievalAttempt
		if s.cooldown != nil {
			if ok, wait := s.cooldown.Allow(ctx, s.cfg.CooldownKey); !ok {
				a = s.cooldownAttempt(v, wait)
				s.record(carry, a)
				carry.RecordBlocked(models.BlockedCooldown, wait)
				return
			}
		}

		a = s.attempt(ctx, v, carry)
		a.RetryOf = retries
		s.record(carry, a)

		switch a.Status {
		case models.AttemptRateLimited:
			if retries < s.cfg.RateLimitRetries && a.RetryAfter <= s.cfg.RetryAfterCeiling && !s.budgetSpent(ctx, carry, p) {
				retries++
				s.logger.Debug("Retrying rate-limited variant",
					zap.String("variant", v.ID), zap.Duration("retry_after", a.RetryAfter))
				if err := s.sleep(ctx, a.RetryAfter); err != nil {
					carry.RecordBlocked(models.BlockedRateLimit, a.RetryAfter)
					return
				}
				continue
			}
			carry.RecordBlocked(models.BlockedRateLimit, a.RetryAfter)
		case models.AttemptChallenge:
			carry.RecordBlocked(models.BlockedChallenge, a.RetryAfter)
		}
		return
	}
}

func (s *Scheduler) record(carry *CarryState, a models.RetrievalAttempt) {
	a.Utility = AttemptUtility(a)
	carry.AttemptsUsed++
	carry.Attempts = append(carry.Attempts, a)
	carry.Utility.Record(a)
	observability.RecordAttempt(string(a.Phase), string(a.Status), a.Duration.Seconds())
}

type outcome struct {
	batch *models.RetrievalBatch
	err   error
}

// attempt runs one retrieval raced against the per-attempt timeout.
// A result arriving after the deadline is discarded.
func (s *Scheduler) attempt(ctx context.Context, v models.QueryVariant, carry *CarryState) models.RetrievalAttempt {
	ctx, span := tracer.Start(ctx, "Scheduler.attempt", trace.WithAttributes(
		attribute.String("variant.id", v.ID),
		attribute.String("variant.phase", string(v.Phase)),
	))
	defer span.End()

	a := models.RetrievalAttempt{
		VariantID:    v.ID,
		CanonicalKey: v.CanonicalKey,
		Phase:        v.Phase,
		Phrase:       v.Phrase,
		StartedAt:    s.now(),
	}

	actx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
	defer cancel()

	ch := make(chan outcome, 1)
	go func() {
		b, err := s.retriever.Retrieve(actx, v)
		ch <- outcome{batch: b, err: err}
	}()

	var out outcome
	select {
	case out = <-ch:
	case <-actx.Done():
		out = outcome{err: actx.Err()}
	}
	a.Duration = s.now().Sub(a.StartedAt)

	if out.err != nil {
		s.applyError(&a, out.err)
		span.SetAttributes(attribute.String("attempt.status", string(a.Status)))
		s.logger.Debug("Retrieval attempt failed",
			zap.String("variant", v.ID), zap.String("status", string(a.Status)), zap.Error(out.err))
		return a
	}

	b := out.batch
	if b == nil {
		b = &models.RetrievalBatch{}
	}
	a.Mode = b.Mode
	a.HTTPStatus = b.Debug.HTTPStatus
	a.Challenge = b.Debug.Challenge
	a.Cloudflare = b.Debug.Cloudflare
	a.SemanticError = b.SemanticError
	a.RerankApplied = b.RerankApplied

	classified := classifier.ClassifyAll(b.Candidates)
	a.ParsedCount = len(classified)
	for _, c := range classified {
		switch {
		case classifier.IsCaseLike(c.Kind):
			a.CaseLikeCount++
		case c.Kind == models.KindStatute:
			a.StatuteCount++
		}
	}
	a.NewCount = carry.AddCandidates(classified)

	switch {
	case a.ParsedCount > 0:
		a.Status = models.AttemptOK
	case a.Challenge:
		a.Status = models.AttemptChallenge
	default:
		a.Status = models.AttemptEmpty
	}
	span.SetAttributes(
		attribute.String("attempt.status", string(a.Status)),
		attribute.Int("attempt.parsed", a.ParsedCount),
	)
	return a
}

func (s *Scheduler) applyError(a *models.RetrievalAttempt, err error) {
	a.Error = err.Error()
	var perr *models.ProviderError
	if errors.As(err, &perr) {
		a.HTTPStatus = perr.Status
		a.Challenge = perr.Challenge
		a.Cloudflare = perr.Cloudflare
		a.RetryAfter = perr.RetryAfter
		switch {
		case perr.IsRateLimit():
			a.Status = models.AttemptRateLimited
			return
		case perr.IsChallenge():
			a.Status = models.AttemptChallenge
			return
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		a.Status = models.AttemptTimeout
		return
	}
	a.Status = models.AttemptError
}

func (s *Scheduler) cooldownAttempt(v models.QueryVariant, wait time.Duration) models.RetrievalAttempt {
	return models.RetrievalAttempt{
		VariantID:    v.ID,
		CanonicalKey: v.CanonicalKey,
		Phase:        v.Phase,
		Phrase:       v.Phrase,
		Status:       models.AttemptCooldown,
		RetryAfter:   wait,
		StartedAt:    s.now(),
		Error:        "local cooldown active",
	}
}

func (s *Scheduler) loadUtility(ctx context.Context, variants []models.QueryVariant, carry *CarryState) {
	if s.store == nil {
		return
	}
	seen := make(map[string]bool)
	var keys []string
	for _, v := range variants {
		if !seen[v.CanonicalKey] {
			seen[v.CanonicalKey] = true
			keys = append(keys, v.CanonicalKey)
		}
	}
	lctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	prior, err := s.store.Load(lctx, keys)
	if err != nil {
		s.logger.Warn("Failed to load variant utility, starting cold", zap.Error(err))
		return
	}
	carry.Utility.Seed(prior)
}

func (s *Scheduler) saveUtility(ctx context.Context, carry *CarryState) {
	if s.store == nil {
		return
	}
	touched := carry.Utility.Touched()
	if len(touched) == 0 {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.store.Save(sctx, touched); err != nil {
		s.logger.Warn("Failed to save variant utility", zap.Error(err))
	}
}

func groupByPhase(variants []models.QueryVariant) map[models.Phase][]models.QueryVariant {
	out := make(map[models.Phase][]models.QueryVariant)
	for _, v := range variants {
		out[v.Phase] = append(out[v.Phase], v)
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
