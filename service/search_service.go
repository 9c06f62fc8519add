package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"casecite-backend/classifier"
	"casecite-backend/config"
	"casecite-backend/diversity"
	"casecite-backend/fallback"
	"casecite-backend/intent"
	"casecite-backend/models"
	"casecite-backend/observability"
	"casecite-backend/proposition"
	"casecite-backend/scheduler"
	"casecite-backend/storage"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
)

const (
	defaultPlannerTimeout = 8 * time.Second
	maxResultsCeiling     = 50
	maxRawCandidates      = 100
)

var (
	ErrEmptyQuery           = errors.New("query is required")
	ErrQueryTooLong         = errors.New("query is too long")
	ErrRetrievalUnavailable = errors.New("retrieval is not configured")
	ErrTraceNotFound        = errors.New("trace not found")
	ErrTracesDisabled       = errors.New("trace archive is not configured")
	ErrInvalidTraceID       = errors.New("invalid trace id")
)

// MaxQueryLength bounds the inbound query text
const MaxQueryLength = 4000

// Planner proposes a legal proposition plan for a query
type Planner interface {
	Plan(ctx context.Context, query string, profile models.IntentProfile) (*models.RawPlan, error)
}

// SearchService runs the citation search pipeline for one request at a time.
// It holds no per-request state and is safe for concurrent use.
type SearchService struct {
	scheduler      *scheduler.Scheduler
	planner        Planner
	plannerTimeout time.Duration
	scorer         *proposition.Scorer
	composer       *fallback.Composer
	archive        *storage.TraceArchive
	pipeline       config.Pipeline
	logger         *zap.Logger
	now            func() time.Time
}

// SearchServiceOption is a functional option for SearchService
type SearchServiceOption func(*SearchService)

// SearchWithPlanner enables the planner collaborator
func SearchWithPlanner(p Planner) SearchServiceOption {
	return func(s *SearchService) {
		s.planner = p
	}
}

// SearchWithPlannerTimeout bounds each planner call
func SearchWithPlannerTimeout(d time.Duration) SearchServiceOption {
	return func(s *SearchService) {
		s.plannerTimeout = d
	}
}

// SearchWithPipeline sets scoring, diversity, fallback and result bounds
func SearchWithPipeline(p config.Pipeline) SearchServiceOption {
	return func(s *SearchService) {
		s.pipeline = p
	}
}

// SearchWithArchive enables debug trace archiving
func SearchWithArchive(a *storage.TraceArchive) SearchServiceOption {
	return func(s *SearchService) {
		s.archive = a
	}
}

// SearchWithLogger sets the logger
func SearchWithLogger(l *zap.Logger) SearchServiceOption {
	return func(s *SearchService) {
		s.logger = l
	}
}

// SearchWithClock replaces the wall clock, for tests
func SearchWithClock(now func() time.Time) SearchServiceOption {
	return func(s *SearchService) {
		s.now = now
	}
}

// NewSearchService creates a search service over a scheduler
func NewSearchService(sched *scheduler.Scheduler, opts ...SearchServiceOption) *SearchService {
	s := &SearchService{
		scheduler:      sched,
		plannerTimeout: defaultPlannerTimeout,
		pipeline:       config.DefaultPipeline(),
		logger:         zap.NewNop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.scorer = proposition.NewScorer(s.pipeline.Scoring)
	s.composer = fallback.NewComposer(s.pipeline.Fallback)
	return s
}

// verified is the post-gate view of the pool
type verified struct {
	tiers    proposition.Tiers
	scored   int
	kinds    map[models.Kind]int
	dropped  map[string]int
	excluded int
}

// Search runs the full pipeline. A well-formed request always gets a
// response: when nothing verifies, a synthetic near miss explains why.
func (s *SearchService) Search(ctx context.Context, req models.CaseSearchRequest) (*models.SearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if len(query) > MaxQueryLength {
		return nil, ErrQueryTooLong
	}
	if s.scheduler == nil {
		return nil, ErrRetrievalUnavailable
	}
	start := s.now()
	maxResults := s.resultBound(req.MaxResults)

	profile := intent.Build(query)
	plan, plannerTrace := s.plan(ctx, query, profile)
	checklist := proposition.BuildChecklist(profile, plan)
	variants := scheduler.BuildVariants(profile, plan)

	carry := scheduler.NewCarryState()
	clientSupplied := s.seedClientCandidates(carry, req.RawCandidates)
	clientBlocked := models.ParseBlockedKind(req.ClientBlockedKind)
	carry.RecordBlocked(clientBlocked, 0)

	run := s.scheduler.Run(ctx, variants, carry)
	v := s.verify(query, profile, carry.Pool, checklist, maxResults)

	guaranteePass := false
	if s.needsGuarantee(ctx, v, run) {
		before := carry.AttemptsUsed
		extra := s.scheduler.Resume(ctx, variants, carry, s.scheduler.Config().GuaranteeAttempts)
		if carry.AttemptsUsed > before {
			guaranteePass = true
			if extra.StopReason == models.StopBlocked {
				run.StopReason = extra.StopReason
				run.BlockedKind = extra.BlockedKind
				run.RetryAfter = extra.RetryAfter
			}
			run.Elapsed += extra.Elapsed
			v = s.verify(query, profile, carry.Pool, checklist, maxResults)
		}
	}

	resp := &models.SearchResponse{
		SchemaVersion:    models.SearchResponseVersion,
		RequestID:        uuid.NewString(),
		Query:            query,
		StrictExact:      nonNilScored(v.tiers.StrictExact),
		ProvisionalExact: nonNilScored(v.tiers.ProvisionalExact),
		NearMisses:       nonNilNearMiss(v.tiers.NearMisses),
		Proposition:      proposition.Summary(checklist, profile),
		StopReason:       run.StopReason,
		BlockedKind:      run.BlockedKind,
		GeneratedAt:      s.now().UTC(),
	}

	var fallbackTrace *models.FallbackTrace
	if resp.ExactCount() == 0 && len(resp.NearMisses) == 0 && s.composer.Enabled() {
		nm := s.composer.Compose(fallback.Input{
			Query:       query,
			Profile:     profile,
			Checklist:   checklist,
			StopReason:  run.StopReason,
			BlockedKind: run.BlockedKind,
			RetryAfter:  run.RetryAfter,
		})
		resp.NearMisses = []models.NearMissCase{nm}
		resp.FallbackUsed = true
		label := fallback.FailureLabel(run.StopReason, run.BlockedKind)
		fallbackTrace = &models.FallbackTrace{Reason: label, URL: nm.URL}
		observability.RecordFallback(label)
		s.logger.Info("Synthetic fallback composed",
			zap.String("reason", label),
			zap.Int("pool", len(carry.Pool)))
	}

	if req.Debug {
		resp.Diagnostics = s.diagnostics(profile, checklist, plannerTrace, carry, run, v, len(variants), guaranteePass, clientSupplied, fallbackTrace, req)
		s.archiveTrace(ctx, resp)
	}

	observability.RecordSearch(searchOutcome(resp), s.now().Sub(start).Seconds())
	s.logger.Info("Search completed",
		zap.String("request_id", resp.RequestID),
		zap.String("stop_reason", string(resp.StopReason)),
		zap.Int("attempts", carry.AttemptsUsed),
		zap.Int("strict", len(resp.StrictExact)),
		zap.Int("provisional", len(resp.ProvisionalExact)),
		zap.Int("near_misses", len(resp.NearMisses)),
		zap.Bool("fallback", resp.FallbackUsed))
	return resp, nil
}

// Trace loads an archived debug response
func (s *SearchService) Trace(ctx context.Context, rawID string) (*models.SearchResponse, error) {
	if !s.archive.Enabled() {
		return nil, ErrTracesDisabled
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrInvalidTraceID
	}
	resp, err := s.archive.Load(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTraceNotFound
		}
		return nil, fmt.Errorf("failed to load trace: %w", err)
	}
	resp.TraceID = id.String()
	return resp, nil
}

func (s *SearchService) resultBound(requested int) int {
	n := requested
	if n <= 0 {
		n = s.pipeline.MaxResults
	}
	if n <= 0 {
		n = config.DefaultPipeline().MaxResults
	}
	if n > maxResultsCeiling {
		n = maxResultsCeiling
	}
	return n
}

// plan asks the planner for a plan and sanitizes it. Any failure degrades
// to the derived checklist.
func (s *SearchService) plan(ctx context.Context, query string, profile models.IntentProfile) (*models.Plan, models.PlannerTrace) {
	trace := models.PlannerTrace{Enabled: s.planner != nil}
	if s.planner == nil {
		return nil, trace
	}
	pctx, cancel := context.WithTimeout(ctx, s.plannerTimeout)
	defer cancel()

	raw, err := s.planner.Plan(pctx, query, profile)
	if err != nil {
		trace.Error = err.Error()
		s.logger.Warn("Planner failed, using derived checklist", zap.Error(err))
		return nil, trace
	}
	plan, warnings := proposition.SanitizePlan(raw)
	observability.RecordPlanWarnings(len(warnings))
	trace.Warnings = warnings
	if plan.IsEmpty() {
		return nil, trace
	}
	trace.Used = true
	trace.Plan = plan
	return plan, trace
}

// seedClientCandidates classifies pre-fetched candidates into the pool
func (s *SearchService) seedClientCandidates(carry *scheduler.CarryState, raw []models.CaseCandidate) int {
	if len(raw) == 0 {
		return 0
	}
	if len(raw) > maxRawCandidates {
		raw = raw[:maxRawCandidates]
	}
	cands := make([]models.CaseCandidate, 0, len(raw))
	for _, c := range raw {
		c = c.Clone()
		if c.Source == "" {
			c.Source = models.SourceClient
		}
		if c.Evidence == nil {
			c.Evidence = &models.EvidenceFlags{SnippetOnly: c.DetailText == ""}
		}
		c.Evidence.ClientSupplied = true
		if c.Provenance == nil {
			c.Provenance = &models.Provenance{}
		}
		if !c.Provenance.HasTag(models.SourceClient) {
			c.Provenance.SourceTags = append(c.Provenance.SourceTags, models.SourceClient)
		}
		cands = append(cands, c)
	}
	return carry.AddCandidates(classifier.ClassifyAll(cands))
}

// verify scores the pool, tiers it and runs the diversity filter across
// all tiers at once so a duplicate never shows up in two lists
func (s *SearchService) verify(query string, profile models.IntentProfile, pool []models.ClassifiedCandidate, cl *models.PropositionChecklist, maxResults int) verified {
	v := verified{kinds: make(map[models.Kind]int)}
	for _, c := range pool {
		v.kinds[c.Kind]++
	}
	scored := s.scorer.Score(query, profile, pool, cl)
	v.scored = len(scored)
	tiers := proposition.AssignTiers(scored)
	v.excluded = tiers.Excluded

	ranked := make([]models.NearMissCase, 0, len(tiers.StrictExact)+len(tiers.ProvisionalExact)+len(tiers.NearMisses))
	for _, sc := range tiers.StrictExact {
		ranked = append(ranked, models.NearMissCase{ScoredCase: sc})
	}
	for _, sc := range tiers.ProvisionalExact {
		ranked = append(ranked, models.NearMissCase{ScoredCase: sc})
	}
	ranked = append(ranked, tiers.NearMisses...)

	kept, report := diversity.Filter(ranked, func(nm models.NearMissCase) diversity.Item {
		return diversity.CaseItem(nm.CaseCandidate)
	}, s.pipeline.Diversity)
	v.dropped = report.Dropped

	for _, nm := range kept {
		switch nm.RetrievalTier {
		case models.TierStrictExact:
			if len(v.tiers.StrictExact) < maxResults {
				v.tiers.StrictExact = append(v.tiers.StrictExact, nm.ScoredCase)
			}
		case models.TierProvisionalExact:
			if len(v.tiers.StrictExact)+len(v.tiers.ProvisionalExact) < maxResults {
				v.tiers.ProvisionalExact = append(v.tiers.ProvisionalExact, nm.ScoredCase)
			}
		default:
			if len(v.tiers.NearMisses) < maxResults {
				v.tiers.NearMisses = append(v.tiers.NearMisses, nm)
			}
		}
	}
	return v
}

// needsGuarantee reports whether a second pass could still help
func (s *SearchService) needsGuarantee(ctx context.Context, v verified, run scheduler.RunResult) bool {
	if ctx.Err() != nil || run.StopReason == models.StopBlocked {
		return false
	}
	if s.scheduler.Config().GuaranteeAttempts <= 0 {
		return false
	}
	return len(v.tiers.StrictExact)+len(v.tiers.ProvisionalExact) < s.pipeline.MinExactResults
}

func (s *SearchService) diagnostics(
	profile models.IntentProfile,
	cl *models.PropositionChecklist,
	plannerTrace models.PlannerTrace,
	carry *scheduler.CarryState,
	run scheduler.RunResult,
	v verified,
	variantsPlanned int,
	guaranteePass bool,
	clientSupplied int,
	fb *models.FallbackTrace,
	req models.CaseSearchRequest,
) *models.Diagnostics {
	median, err := stats.Median(carry.Durations())
	if err != nil {
		median = 0
	}
	modes := make(map[string]int)
	for _, a := range carry.Attempts {
		if a.Mode != "" {
			modes[a.Mode]++
		}
	}

	d := &models.Diagnostics{
		Intent:    profile,
		Checklist: cl,
		Planner:   plannerTrace,
		Scheduler: models.SchedulerTrace{
			StopReason:        run.StopReason,
			BlockedKind:       run.BlockedKind,
			BlockedCount:      carry.BlockedCount,
			RetryAfterSeconds: int(carry.RetryAfter / time.Second),
			AttemptsUsed:      carry.AttemptsUsed,
			SkippedDuplicates: carry.SkippedDuplicates,
			ElapsedMs:         run.Elapsed.Milliseconds(),
			MedianAttemptMs:   median,
			VariantsPlanned:   variantsPlanned,
			GuaranteePass:     guaranteePass,
			Attempts:          carry.Attempts,
			Utility:           carry.Utility.Snapshots(),
		},
		Retrieval: models.RetrievalTrace{
			PoolSize:       len(carry.Pool),
			ClientSupplied: clientSupplied,
			Modes:          modes,
		},
		Classification: models.ClassificationTrace{Counts: v.kinds},
		Verification: models.VerificationTrace{
			Scored:           v.scored,
			StrictExact:      len(v.tiers.StrictExact),
			ProvisionalExact: len(v.tiers.ProvisionalExact),
			NearMiss:         len(v.tiers.NearMisses),
			DiversityDropped: v.dropped,
		},
		Fallback: fb,
		Client: models.ClientTrace{
			ExecutionPath: req.ClientExecutionPath,
			BlockedKind:   models.ParseBlockedKind(req.ClientBlockedKind),
		},
	}
	if plannerTrace.Enabled && !plannerTrace.Used {
		d.Warnings = append(d.Warnings, "planner contributed no plan; derived checklist only")
	}
	if variantsPlanned == 0 {
		d.Warnings = append(d.Warnings, "no query variants could be built")
	}
	return d
}

// archiveTrace stores a debug response. Archive failures only cost the
// trace id.
func (s *SearchService) archiveTrace(ctx context.Context, resp *models.SearchResponse) {
	if !s.archive.Enabled() {
		return
	}
	id, err := s.archive.Save(ctx, resp)
	if err != nil {
		s.logger.Warn("Failed to archive search trace", zap.Error(err))
		return
	}
	resp.TraceID = id.String()
}

func searchOutcome(resp *models.SearchResponse) string {
	switch {
	case resp.FallbackUsed:
		return "fallback"
	case resp.ExactCount() > 0:
		return "exact"
	case len(resp.NearMisses) > 0:
		return "near_miss"
	}
	return "empty"
}

func nonNilScored(in []models.ScoredCase) []models.ScoredCase {
	if in == nil {
		return []models.ScoredCase{}
	}
	return in
}

func nonNilNearMiss(in []models.NearMissCase) []models.NearMissCase {
	if in == nil {
		return []models.NearMissCase{}
	}
	return in
}
