// Package fusion combines a lexical provider and an optional semantic vector
// index into one ranked candidate list per query variant.
package fusion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"casecite-backend/models"
	"casecite-backend/observability"
	"casecite-backend/textutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("casecite.fusion")

// LexicalProvider searches a keyword index for one variant
type LexicalProvider interface {
	Search(ctx context.Context, req models.SearchRequest) (*models.ProviderResult, error)
}

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore answers nearest-neighbour queries over judgment chunks
type VectorStore interface {
	IsConfigured() bool
	Query(ctx context.Context, embedding []float32, topK int, filter models.VectorFilter) ([]models.VectorHit, error)
}

// Reranker reorders candidates against the query.
// On error callers keep their original order.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []models.CaseCandidate, topN int) (models.RerankOutcome, error)
}

var (
	ErrNoLexicalProvider = errors.New("lexical provider not configured")
	ErrNoResults         = errors.New("no retrieval leg returned results")
)

// Config tunes fusion
type Config struct {
	K               float64       `yaml:"k"`
	LexicalWeight   float64       `yaml:"lexical_weight"`
	SemanticWeight  float64       `yaml:"semantic_weight"`
	Limit           int           `yaml:"limit"`
	DominanceCap    float64       `yaml:"dominance_cap"`
	RerankTopN      int           `yaml:"rerank_top_n"`
	SemanticTopK    int           `yaml:"semantic_top_k"`
	SemanticEnabled bool          `yaml:"semantic_enabled"`
	LexicalTimeout  time.Duration `yaml:"lexical_timeout"`
	EmbedTimeout    time.Duration `yaml:"embed_timeout"`
	VectorTimeout   time.Duration `yaml:"vector_timeout"`
	RerankTimeout   time.Duration `yaml:"rerank_timeout"`
	SnippetChars    int           `yaml:"snippet_chars"`
}

// DefaultConfig returns the default fusion settings
func DefaultConfig() Config {
	return Config{
		K:               60,
		LexicalWeight:   1.0,
		SemanticWeight:  1.15,
		Limit:           20,
		DominanceCap:    0.70,
		RerankTopN:      24,
		SemanticTopK:    20,
		SemanticEnabled: true,
		LexicalTimeout:  7 * time.Second,
		EmbedTimeout:    3 * time.Second,
		VectorTimeout:   3 * time.Second,
		RerankTimeout:   3 * time.Second,
		SnippetChars:    400,
	}
}

// Hybrid runs lexical and semantic retrieval for a variant and fuses the results
type Hybrid struct {
	lexical  LexicalProvider
	embedder Embedder
	vectors  VectorStore
	reranker Reranker
	cfg      Config
	logger   *zap.Logger
}

// Option is a functional option for Hybrid
type Option func(*Hybrid)

// WithEmbedder sets the embedding collaborator
func WithEmbedder(e Embedder) Option {
	return func(h *Hybrid) {
		h.embedder = e
	}
}

// WithVectorStore sets the semantic vector collaborator
func WithVectorStore(v VectorStore) Option {
	return func(h *Hybrid) {
		h.vectors = v
	}
}

// WithReranker sets the reranker collaborator
func WithReranker(r Reranker) Option {
	return func(h *Hybrid) {
		h.reranker = r
	}
}

// WithConfig overrides the default configuration
func WithConfig(cfg Config) Option {
	return func(h *Hybrid) {
		h.cfg = cfg
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(h *Hybrid) {
		h.logger = l
	}
}

// NewHybrid creates a hybrid retriever over a lexical provider
func NewHybrid(lexical LexicalProvider, opts ...Option) *Hybrid {
	h := &Hybrid{
		lexical: lexical,
		cfg:     DefaultConfig(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SemanticEnabled reports whether the semantic leg will run
func (h *Hybrid) SemanticEnabled() bool {
	return h.cfg.SemanticEnabled && h.embedder != nil && h.vectors != nil && h.vectors.IsConfigured()
}

// Retrieve runs both legs for one variant.
// Either leg may fail alone; both failing returns the lexical error.
func (h *Hybrid) Retrieve(ctx context.Context, v models.QueryVariant) (*models.RetrievalBatch, error) {
	ctx, span := tracer.Start(ctx, "Hybrid.Retrieve", trace.WithAttributes(
		attribute.String("variant.id", v.ID),
		attribute.String("variant.phase", string(v.Phase)),
	))
	defer span.End()

	var (
		lexRes  *models.ProviderResult
		lexErr  error
		semHits []models.VectorHit
		semErr  error
	)
	semantic := h.SemanticEnabled()

	var g errgroup.Group
	g.Go(func() error {
		lexRes, lexErr = h.searchLexical(ctx, v)
		return nil
	})
	if semantic {
		g.Go(func() error {
			semHits, semErr = h.searchSemantic(ctx, v)
			return nil
		})
	}
	_ = g.Wait()

	batch := &models.RetrievalBatch{}
	if lexErr != nil {
		batch.LexicalError = lexErr.Error()
		var perr *models.ProviderError
		if errors.As(lexErr, &perr) {
			batch.Debug = perr.Debug()
		}
	} else if lexRes != nil {
		batch.Debug = lexRes.Debug
	}
	if semErr != nil {
		batch.SemanticError = semErr.Error()
	}

	semCands := h.semanticCandidates(semHits)
	switch {
	case lexErr != nil && len(semCands) == 0:
		span.SetStatus(codes.Error, lexErr.Error())
		return nil, lexErr
	case lexErr != nil:
		batch.Mode = models.ModeSemanticOnly
		batch.Candidates = limit(semCands, h.cfg.Limit)
	case len(semCands) == 0:
		batch.Mode = models.ModeLexicalOnly
		batch.Candidates = tagLexical(lexRes.Candidates)
	default:
		batch.Mode = models.ModeHybrid
		fused := h.Fuse(tagLexical(lexRes.Candidates), semCands)
		batch.Candidates, batch.RerankApplied = h.rerank(ctx, v.Phrase, fused)
	}

	observability.RecordFusionMode(batch.Mode)
	span.SetAttributes(
		attribute.String("fusion.mode", batch.Mode),
		attribute.Int("fusion.candidates", len(batch.Candidates)),
	)
	return batch, nil
}

func (h *Hybrid) searchLexical(ctx context.Context, v models.QueryVariant) (*models.ProviderResult, error) {
	if h.lexical == nil {
		return nil, ErrNoLexicalProvider
	}
	ctx, span := tracer.Start(ctx, "Hybrid.lexical")
	defer span.End()
	ctx, cancel := withTimeout(ctx, h.cfg.LexicalTimeout)
	defer cancel()

	res, err := h.lexical.Search(ctx, models.NewSearchRequest(v, h.cfg.Limit))
	if err != nil {
		observability.RecordLegFailure("lexical")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if res == nil {
		res = &models.ProviderResult{}
	}
	return res, nil
}

func (h *Hybrid) searchSemantic(ctx context.Context, v models.QueryVariant) ([]models.VectorHit, error) {
	ctx, span := tracer.Start(ctx, "Hybrid.semantic")
	defer span.End()

	ectx, cancel := withTimeout(ctx, h.cfg.EmbedTimeout)
	vec, err := h.embedder.Embed(ectx, v.Phrase)
	cancel()
	if err != nil {
		observability.RecordLegFailure("embed")
		h.logger.Warn("Embedding failed, continuing lexical only", zap.String("variant", v.ID), zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to embed variant: %w", err)
	}

	vctx, cancel := withTimeout(ctx, h.cfg.VectorTimeout)
	defer cancel()
	filter := models.VectorFilter{
		FromYear: v.Directives.DateFrom,
		ToYear:   v.Directives.DateTo,
	}
	if v.CourtScope != models.CourtAny {
		filter.Court = v.CourtScope
	}
	hits, err := h.vectors.Query(vctx, vec, h.cfg.SemanticTopK, filter)
	if err != nil {
		observability.RecordLegFailure("vector")
		h.logger.Warn("Vector query failed, continuing lexical only", zap.String("variant", v.ID), zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}
	return hits, nil
}

// semanticCandidates converts ranked hits into candidates, keeping the best
// chunk per document
func (h *Hybrid) semanticCandidates(hits []models.VectorHit) []models.CaseCandidate {
	var out []models.CaseCandidate
	seen := make(map[string]bool)
	for _, hit := range hits {
		c := hitToCandidate(hit, h.cfg.SnippetChars)
		key := textutil.URLKey(c.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		c.Provenance.SemanticRank = len(out) + 1
		out = append(out, c)
	}
	return out
}

func hitToCandidate(hit models.VectorHit, snippetChars int) models.CaseCandidate {
	url := hit.URL
	if url == "" {
		url = "vector://" + hit.DocID
	}
	title := hit.Title
	if title == "" {
		title = "Document " + hit.DocID
	}
	return models.CaseCandidate{
		Source:       models.SourceSemantic,
		Title:        title,
		URL:          url,
		Snippet:      textutil.Truncate(textutil.CollapseSpace(hit.Text), snippetChars),
		Court:        hit.Court,
		JudgmentDate: hit.JudgmentDate,
		Evidence:     &models.EvidenceFlags{FromVectorHit: true, SnippetOnly: true},
		Provenance: &models.Provenance{
			SemanticScore: hit.Score,
			SemanticDocID: hit.DocID,
			SourceTags:    []string{models.SourceSemantic},
		},
	}
}

// tagLexical copies lexical candidates and records their ranks
func tagLexical(in []models.CaseCandidate) []models.CaseCandidate {
	out := make([]models.CaseCandidate, 0, len(in))
	for i, c := range in {
		c = c.Clone()
		if c.Provenance == nil {
			c.Provenance = &models.Provenance{}
		}
		c.Provenance.LexicalRank = i + 1
		c.Provenance.SourceTags = addTag(c.Provenance.SourceTags, models.SourceLexical)
		out = append(out, c)
	}
	return out
}

type fusedEntry struct {
	cand models.CaseCandidate
	key  string
}

// Fuse merges two ranked lists by URL and orders them by reciprocal-rank fusion,
// then selects the top Limit under the source dominance cap
func (h *Hybrid) Fuse(lexical, semantic []models.CaseCandidate) []models.CaseCandidate {
	index := make(map[string]*fusedEntry)
	var entries []*fusedEntry
	add := func(c models.CaseCandidate) {
		key := textutil.URLKey(c.URL)
		if e, ok := index[key]; ok {
			e.cand = mergeCandidates(e.cand, c)
			return
		}
		e := &fusedEntry{cand: c.Clone(), key: key}
		if e.cand.Provenance == nil {
			e.cand.Provenance = &models.Provenance{}
		}
		index[key] = e
		entries = append(entries, e)
	}
	for _, c := range lexical {
		add(c)
	}
	for _, c := range semantic {
		add(c)
	}

	for _, e := range entries {
		p := e.cand.Provenance
		p.FusionScore = h.lexComponent(p) + h.semComponent(p)
		if p.LexicalRank > 0 && p.SemanticRank > 0 {
			p.SourceTags = addTag(p.SourceTags, models.SourceFused)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].cand.Provenance, entries[j].cand.Provenance
		if a.FusionScore != b.FusionScore {
			return a.FusionScore > b.FusionScore
		}
		return entries[i].key < entries[j].key
	})

	sorted := make([]models.CaseCandidate, len(entries))
	for i, e := range entries {
		sorted[i] = e.cand
	}
	return h.selectWithCap(sorted)
}

func (h *Hybrid) lexComponent(p *models.Provenance) float64 {
	if p.LexicalRank <= 0 {
		return 0
	}
	return h.cfg.LexicalWeight / (h.cfg.K + float64(p.LexicalRank))
}

func (h *Hybrid) semComponent(p *models.Provenance) float64 {
	if p.SemanticRank <= 0 {
		return 0
	}
	return h.cfg.SemanticWeight / (h.cfg.K + float64(p.SemanticRank))
}

// dominantSource is the source whose component contributes more, ties go lexical
func (h *Hybrid) dominantSource(c models.CaseCandidate) string {
	if h.semComponent(c.Provenance) > h.lexComponent(c.Provenance) {
		return models.SourceSemantic
	}
	return models.SourceLexical
}

// selectWithCap fills per-source quotas greedily in fused order and backfills
// from the remainder if under target. Output stays in fused order.
func (h *Hybrid) selectWithCap(sorted []models.CaseCandidate) []models.CaseCandidate {
	target := len(sorted)
	if h.cfg.Limit > 0 && h.cfg.Limit < target {
		target = h.cfg.Limit
	}
	if target == 0 {
		return nil
	}
	quota := int(math.Ceil(float64(target) * h.cfg.DominanceCap))
	if h.cfg.DominanceCap <= 0 || h.cfg.DominanceCap >= 1 {
		quota = target
	}

	picked := make([]bool, len(sorted))
	counts := make(map[string]int)
	n := 0
	for i, c := range sorted {
		if n >= target {
			break
		}
		src := h.dominantSource(c)
		if counts[src] >= quota {
			continue
		}
		counts[src]++
		picked[i] = true
		n++
	}
	for i := range sorted {
		if n >= target {
			break
		}
		if !picked[i] {
			picked[i] = true
			n++
		}
	}

	out := make([]models.CaseCandidate, 0, target)
	for i, c := range sorted {
		if picked[i] {
			out = append(out, c)
		}
	}
	return out
}

// rerank reorders the head of the fused list. Failures keep fused order.
func (h *Hybrid) rerank(ctx context.Context, query string, fused []models.CaseCandidate) ([]models.CaseCandidate, bool) {
	if h.reranker == nil || len(fused) < 2 {
		return fused, false
	}
	ctx, span := tracer.Start(ctx, "Hybrid.rerank")
	defer span.End()

	headN := len(fused)
	if h.cfg.RerankTopN > 0 && h.cfg.RerankTopN < headN {
		headN = h.cfg.RerankTopN
	}
	head := make([]models.CaseCandidate, headN)
	for i := range head {
		head[i] = fused[i].Clone()
	}

	rctx, cancel := withTimeout(ctx, h.cfg.RerankTimeout)
	defer cancel()
	outcome, err := h.reranker.Rerank(rctx, query, head, headN)
	if err != nil {
		observability.RecordLegFailure("rerank")
		h.logger.Warn("Rerank failed, keeping fused order", zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		return fused, false
	}
	if !outcome.Applied || len(outcome.Candidates) == 0 {
		return fused, false
	}

	inHead := make(map[string]int, headN)
	for i, c := range fused[:headN] {
		inHead[textutil.URLKey(c.URL)] = i
	}
	out := make([]models.CaseCandidate, 0, len(fused))
	used := make(map[int]bool, headN)
	for _, c := range outcome.Candidates {
		i, ok := inHead[textutil.URLKey(c.URL)]
		if !ok || used[i] {
			continue
		}
		used[i] = true
		c = c.Clone()
		if c.Provenance == nil {
			c.Provenance = &models.Provenance{}
		}
		orig := fused[i].Provenance
		if orig != nil {
			c.Provenance.LexicalRank = orig.LexicalRank
			c.Provenance.SemanticRank = orig.SemanticRank
			c.Provenance.FusionScore = orig.FusionScore
		}
		c.Provenance.SourceTags = addTag(c.Provenance.SourceTags, models.SourceReranked)
		out = append(out, c)
	}
	for i, c := range fused[:headN] {
		if !used[i] {
			out = append(out, c)
		}
	}
	out = append(out, fused[headN:]...)
	return out, true
}

// mergeCandidates combines two sightings of the same URL.
// Longer text wins, a known court beats an unknown one and ranks take the minimum.
func mergeCandidates(a, b models.CaseCandidate) models.CaseCandidate {
	out := a.Clone()
	if len(b.Title) > len(out.Title) {
		out.Title = b.Title
	}
	if len(b.Snippet) > len(out.Snippet) {
		out.Snippet = b.Snippet
	}
	if len(b.DetailText) > len(out.DetailText) {
		out.DetailText = b.DetailText
	}
	if out.Court == "" && b.Court != "" {
		out.Court = b.Court
	}
	if out.JudgmentDate == "" {
		out.JudgmentDate = b.JudgmentDate
	}
	if b.CiteCount > out.CiteCount {
		out.CiteCount = b.CiteCount
	}
	for _, cite := range b.EquivalentCitations {
		out.EquivalentCitations = addTag(out.EquivalentCitations, cite)
	}
	if out.Evidence == nil && b.Evidence != nil {
		ev := *b.Evidence
		out.Evidence = &ev
	}

	if out.Provenance == nil {
		out.Provenance = &models.Provenance{}
	}
	if bp := b.Provenance; bp != nil {
		p := out.Provenance
		p.LexicalRank = minRank(p.LexicalRank, bp.LexicalRank)
		p.SemanticRank = minRank(p.SemanticRank, bp.SemanticRank)
		p.LexicalScore = math.Max(p.LexicalScore, bp.LexicalScore)
		p.SemanticScore = math.Max(p.SemanticScore, bp.SemanticScore)
		if p.SemanticDocID == "" {
			p.SemanticDocID = bp.SemanticDocID
		}
		for _, t := range bp.SourceTags {
			p.SourceTags = addTag(p.SourceTags, t)
		}
	}
	return out
}

// minRank returns the smaller non-zero rank
func minRank(a, b int) int {
	switch {
	case a == 0:
		return b
	case b == 0:
		return a
	case b < a:
		return b
	default:
		return a
	}
}

func addTag(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}

func limit(cands []models.CaseCandidate, n int) []models.CaseCandidate {
	if n > 0 && len(cands) > n {
		return cands[:n]
	}
	return cands
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
