package proposition

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"casecite-backend/intent"
	"casecite-backend/models"
	"casecite-backend/textutil"
)

// Config holds scorer weights. Penalties are positive magnitudes.
type Config struct {
	LexicalWeight        float64 `yaml:"lexical_weight"`
	AnchorBonus          float64 `yaml:"anchor_bonus"`
	AnchorBonusMax       float64 `yaml:"anchor_bonus_max"`
	IssueBonus           float64 `yaml:"issue_bonus"`
	IssueBonusMax        float64 `yaml:"issue_bonus_max"`
	ProcedureBonus       float64 `yaml:"procedure_bonus"`
	ProcedureBonusMax    float64 `yaml:"procedure_bonus_max"`
	StatuteBonus         float64 `yaml:"statute_bonus"`
	StatuteBonusMax      float64 `yaml:"statute_bonus_max"`
	ElementWeight        float64 `yaml:"element_weight"`
	CoreWeight           float64 `yaml:"core_weight"`
	PeripheralWeight     float64 `yaml:"peripheral_weight"`
	HookWeight           float64 `yaml:"hook_weight"`
	RelationBonus        float64 `yaml:"relation_bonus"`
	OutcomeBonus         float64 `yaml:"outcome_bonus"`
	ContradictionPenalty float64 `yaml:"contradiction_penalty"`
	PolarityPenalty      float64 `yaml:"polarity_penalty"`
	RelationPenalty      float64 `yaml:"relation_penalty"`
	HookGapPenalty       float64 `yaml:"hook_gap_penalty"`
	SupremeCourtBonus    float64 `yaml:"supreme_court_bonus"`
	HighCourtBonus       float64 `yaml:"high_court_bonus"`
	CitationNudgeMax     float64 `yaml:"citation_nudge_max"`
	CitationSaturation   int     `yaml:"citation_saturation"`
	SigmoidSlope         float64 `yaml:"sigmoid_slope"`
	SigmoidMidpoint      float64 `yaml:"sigmoid_midpoint"`
	Ceiling              float64 `yaml:"ceiling"`
}

// DefaultConfig returns the calibrated scorer weights
func DefaultConfig() Config {
	return Config{
		LexicalWeight:        0.38,
		AnchorBonus:          0.03,
		AnchorBonusMax:       0.12,
		IssueBonus:           0.04,
		IssueBonusMax:        0.08,
		ProcedureBonus:       0.03,
		ProcedureBonusMax:    0.06,
		StatuteBonus:         0.04,
		StatuteBonusMax:      0.12,
		ElementWeight:        0.12,
		CoreWeight:           0.08,
		PeripheralWeight:     0.04,
		HookWeight:           0.10,
		RelationBonus:        0.04,
		OutcomeBonus:         0.06,
		ContradictionPenalty: 0.14,
		PolarityPenalty:      0.10,
		RelationPenalty:      0.08,
		HookGapPenalty:       0.06,
		SupremeCourtBonus:    0.04,
		HighCourtBonus:       0.02,
		CitationNudgeMax:     0.04,
		CitationSaturation:   200,
		SigmoidSlope:         3.1,
		SigmoidMidpoint:      0.45,
		Ceiling:              0.92,
	}
}

// Band thresholds
const (
	BandVeryHighMin = 0.86
	BandHighMin     = 0.71
	BandMediumMin   = 0.51
)

// Band maps a confidence score onto its band
func Band(score float64) models.ConfidenceBand {
	switch {
	case score >= BandVeryHighMin:
		return models.BandVeryHigh
	case score >= BandHighMin:
		return models.BandHigh
	case score >= BandMediumMin:
		return models.BandMedium
	default:
		return models.BandLow
	}
}

// Scorer applies the proposition gate and calibrates confidence
type Scorer struct {
	cfg Config
}

// NewScorer creates a scorer
func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Config returns the scorer weights
func (s *Scorer) Config() Config {
	return s.cfg
}

// Calibrate maps a raw score to a confidence in [0, Ceiling]
func (s *Scorer) Calibrate(raw float64) float64 {
	v := 1 / (1 + math.Exp(-s.cfg.SigmoidSlope*(raw-s.cfg.SigmoidMidpoint)))
	return math.Max(0, math.Min(s.cfg.Ceiling, v))
}

// Score scores every candidate. cl may be nil, in which case only lexical
// and profile signals apply. Output is sorted by ranking score, then URL.
func (s *Scorer) Score(query string, profile models.IntentProfile, candidates []models.ClassifiedCandidate, cl *models.PropositionChecklist) []models.ScoredCase {
	queryTokens := textutil.Tokenize(query)
	if len(queryTokens) == 0 {
		queryTokens = profile.Tokens
	}

	out := make([]models.ScoredCase, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, s.scoreOne(queryTokens, profile, c, cl))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RankingScore != out[j].RankingScore {
			return out[i].RankingScore > out[j].RankingScore
		}
		return out[i].URL < out[j].URL
	})
	return out
}

type contribution struct {
	code   string
	detail string
	weight float64
}

func (s *Scorer) scoreOne(queryTokens []string, profile models.IntentProfile, c models.ClassifiedCandidate, cl *models.PropositionChecklist) models.ScoredCase {
	corpus := textutil.Normalize(c.CorpusText())
	tokens := textutil.TokenSet(corpus)
	var parts []contribution
	add := func(code, detail string, w float64) {
		if w != 0 {
			parts = append(parts, contribution{code: code, detail: detail, weight: w})
		}
	}

	shared := 0
	for _, t := range queryTokens {
		if tokens[t] {
			shared++
		}
	}
	if len(queryTokens) > 0 {
		add("lexical_overlap", fmt.Sprintf("%d/%d", shared, len(queryTokens)),
			s.cfg.LexicalWeight*float64(shared)/float64(len(queryTokens)))
	}

	if n := countTerms(corpus, profile.Anchors); n > 0 {
		add("anchor_match", fmt.Sprintf("%d", n), math.Min(s.cfg.AnchorBonusMax, s.cfg.AnchorBonus*float64(n)))
	}
	var issues []string
	for _, issue := range profile.Issues {
		if textutil.ContainsTerm(corpus, intent.IssuePhrase(issue)) {
			issues = append(issues, intent.IssuePhrase(issue))
		}
	}
	if len(issues) > 0 {
		add("issue_match", issues[0], math.Min(s.cfg.IssueBonusMax, s.cfg.IssueBonus*float64(len(issues))))
	}
	if procs := matchedTerms(corpus, profile.Procedures); len(procs) > 0 {
		add("procedure_match", procs[0], math.Min(s.cfg.ProcedureBonusMax, s.cfg.ProcedureBonus*float64(len(procs))))
	}
	if sts := matchedStatutes(corpus, profile); len(sts) > 0 {
		add("statute_match", sts[0], math.Min(s.cfg.StatuteBonusMax, s.cfg.StatuteBonus*float64(len(sts))))
	}

	ev := evaluate(corpus, cl, profile)
	if ev.applied {
		if ev.elementsTotal > 0 {
			add("element_coverage", fmt.Sprintf("%d/%d", ev.elementsMatched, ev.elementsTotal), s.cfg.ElementWeight*ev.requiredCoverage)
			add("core_coverage", fmt.Sprintf("%.0f%%", ev.coreCoverage*100), s.cfg.CoreWeight*ev.coreCoverage)
			add("peripheral_coverage", fmt.Sprintf("%.0f%%", ev.peripheralCoverage*100), s.cfg.PeripheralWeight*ev.peripheralCoverage)
		}
		if ev.hookRequired > 0 {
			add("hook_coverage", fmt.Sprintf("%d/%d", ev.hookSatisfied, ev.hookRequired),
				s.cfg.HookWeight*float64(ev.hookSatisfied)/float64(ev.hookRequired))
			if ev.hookSatisfied < ev.hookRequired {
				add("hook_gap", strings.Join(ev.missingHooks, ", "), -s.cfg.HookGapPenalty)
			}
		}
		if ev.relationsRequired > 0 {
			if len(ev.failedRelations) == 0 {
				add("relation_satisfied", ev.satisfiedRelations[0], s.cfg.RelationBonus)
			} else {
				add("relation_failed", ev.failedRelations[0], -s.cfg.RelationPenalty)
			}
		}
		switch {
		case ev.contradiction:
			add("contradiction", strings.Join(ev.contradictionTerms, ", "), -s.cfg.ContradictionPenalty)
		case ev.outcome.Required && !ev.outcomeSatisfied:
			add("polarity_mismatch", ev.outcome.Polarity, -s.cfg.PolarityPenalty)
		case ev.outcome.Required && ev.outcomeSatisfied:
			add("outcome_satisfied", ev.outcome.Polarity, s.cfg.OutcomeBonus)
		}
	}

	switch courtLevel(c.CaseCandidate) {
	case models.CourtSC:
		add("court_level", "Supreme Court", s.cfg.SupremeCourtBonus)
	case models.CourtHC:
		add("court_level", "High Court", s.cfg.HighCourtBonus)
	}
	if c.CiteCount > 0 && s.cfg.CitationSaturation > 0 {
		nudge := s.cfg.CitationNudgeMax * math.Min(1, math.Log1p(float64(c.CiteCount))/math.Log1p(float64(s.cfg.CitationSaturation)))
		add("citation_weight", fmt.Sprintf("%d", c.CiteCount), nudge)
	}

	raw := 0.0
	for _, p := range parts {
		raw += p.weight
	}
	conf := s.Calibrate(raw)
	sortContributions(parts)

	sc := models.ScoredCase{
		ClassifiedCandidate: c,
		Score:               raw,
		RankingScore:        conf,
		ConfidenceScore:     conf,
		ConfidenceBand:      Band(conf),
		Reasons:             reasonStrings(parts),
		SelectionSummary:    selectionSummary(parts),
		Verification: models.Verification{
			ChecklistApplied:      ev.applied,
			RequiredCoverage:      ev.requiredCoverage,
			CoreCoverage:          ev.coreCoverage,
			PeripheralCoverage:    ev.peripheralCoverage,
			HookGroupsSatisfied:   ev.hookSatisfied,
			HookGroupsRequired:    ev.hookRequired,
			MissingHookGroups:     ev.missingHooks,
			RelationsSatisfied:    len(ev.failedRelations) == 0,
			FailedRelations:       ev.failedRelations,
			OutcomeRequired:       ev.outcome.Required,
			OutcomeSatisfied:      ev.outcomeSatisfied,
			ContradictionDetected: ev.contradiction,
			ContradictionTerms:    ev.contradictionTerms,
			MissingElements:       ev.missing(),
			MandatoryPassed:       ev.mandatoryPassed(),
			MinorGaps:             ev.minorGaps(),
		},
	}
	return sc
}

func countTerms(corpus string, terms []string) int {
	n := 0
	for _, t := range terms {
		if textutil.ContainsTerm(corpus, t) {
			n++
		}
	}
	return n
}

// matchedStatutes returns the profile statutes evidenced in corpus,
// directly or through a recodification alias
func matchedStatutes(corpus string, p models.IntentProfile) []string {
	var out []string
	for _, st := range p.Statutes {
		if containsAny(corpus, intent.StatuteTerms(st)) {
			out = append(out, st)
			continue
		}
		for _, a := range p.StatuteAliases {
			if a.From == st && containsAny(corpus, intent.StatuteTerms(a.To)) {
				out = append(out, st)
				break
			}
		}
	}
	return out
}

func courtLevel(c models.CaseCandidate) models.CourtHint {
	court := textutil.Normalize(c.Court)
	switch {
	case court == "sc" || strings.Contains(court, "supreme court"):
		return models.CourtSC
	case court == "hc" || strings.Contains(court, "high court"):
		return models.CourtHC
	}
	return ""
}

// sortContributions orders positive contributions first by weight, then
// penalties by magnitude; ties break on code
func sortContributions(parts []contribution) {
	sort.SliceStable(parts, func(i, j int) bool {
		pi, pj := parts[i].weight > 0, parts[j].weight > 0
		if pi != pj {
			return pi
		}
		wi, wj := math.Abs(parts[i].weight), math.Abs(parts[j].weight)
		if wi != wj {
			return wi > wj
		}
		return parts[i].code < parts[j].code
	})
}

func reasonStrings(parts []contribution) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, p.code+": "+p.detail)
	}
	return out
}

var summaryTemplates = map[string]string{
	"lexical_overlap":     "shares %s of the query terms",
	"anchor_match":        "mentions %s key anchors",
	"issue_match":         "addresses %s",
	"procedure_match":     "arises in %s proceedings",
	"statute_match":       "cites %s",
	"element_coverage":    "covers %s proposition elements",
	"core_coverage":       "covers %s of the core elements",
	"peripheral_coverage": "covers %s of the peripheral elements",
	"hook_coverage":       "satisfies %s legal hook groups",
	"relation_satisfied":  "links %s",
	"outcome_satisfied":   "reaches the %s outcome",
	"court_level":         "was decided by the %s",
	"citation_weight":     "is cited %s times",
	"contradiction":       "states a contradicting outcome (%s)",
	"polarity_mismatch":   "does not reach the %s outcome",
	"relation_failed":     "misses the link %s",
	"hook_gap":            "misses hook groups %s",
}

// selectionSummary renders the top two reasons into one sentence
func selectionSummary(parts []contribution) string {
	if len(parts) == 0 {
		return "No matching signals."
	}
	var phrases []string
	for _, p := range parts {
		if len(phrases) == 2 {
			break
		}
		tmpl, ok := summaryTemplates[p.code]
		if !ok {
			continue
		}
		phrases = append(phrases, fmt.Sprintf(tmpl, p.detail))
	}
	if len(phrases) == 0 {
		return "No matching signals."
	}
	s := strings.Join(phrases, "; ")
	return strings.ToUpper(s[:1]) + s[1:] + "."
}
