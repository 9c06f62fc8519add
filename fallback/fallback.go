// Package fallback composes the advisory result returned when nothing
// survives verification.
package fallback

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"casecite-backend/intent"
	"casecite-backend/models"
	"casecite-backend/proposition"
)

const (
	// Confidence is the fixed confidence of a synthetic result
	Confidence = 0.22

	DefaultSearchBaseURL = "https://indiankanoon.org/search/?formInput="

	maxMissingTerms = 4
	maxNextActions  = 5
	defaultMissing  = "verified judgment matching the query"
)

// Failure labels
const (
	LabelRateLimited     = "provider_rate_limited"
	LabelChallenge       = "provider_challenge"
	LabelCooldown        = "local_cooldown_active"
	LabelBlocked         = "retrieval_blocked"
	LabelBudgetExhausted = "retrieval_budget_exhausted"
	LabelUnverified      = "candidates_failed_verification"
	LabelNoMatch         = "no_verified_match"
	LabelUnavailable     = "retrieval_unavailable"
)

var readiness = map[string]string{
	LabelRateLimited:     "The search provider is rate limiting requests, so retrieval stopped early.",
	LabelChallenge:       "The search provider served a bot challenge, so retrieval stopped early.",
	LabelCooldown:        "Local cooldown is active for the search provider, so retrieval stopped early.",
	LabelBlocked:         "Retrieval was blocked before enough judgments were found.",
	LabelBudgetExhausted: "The retrieval budget ran out before a verified judgment was found.",
	LabelUnverified:      "Judgments were found but none satisfied the legal proposition.",
	LabelNoMatch:         "No judgment satisfied the legal proposition.",
	LabelUnavailable:     "Retrieval was unavailable for this request.",
}

// Config controls the composer
type Config struct {
	Enabled       bool   `yaml:"enabled"`
	SearchBaseURL string `yaml:"search_base_url"`
}

// DefaultConfig enables the composer with the default search link
func DefaultConfig() Config {
	return Config{Enabled: true, SearchBaseURL: DefaultSearchBaseURL}
}

// Input is what the composer knows about the failed run
type Input struct {
	Query       string
	Profile     models.IntentProfile
	Checklist   *models.PropositionChecklist
	StopReason  models.StopReason
	BlockedKind models.BlockedKind
	RetryAfter  time.Duration
}

// Composer builds synthetic near-miss results
type Composer struct {
	cfg Config
}

// NewComposer creates a composer
func NewComposer(cfg Config) *Composer {
	if cfg.SearchBaseURL == "" {
		cfg.SearchBaseURL = DefaultSearchBaseURL
	}
	return &Composer{cfg: cfg}
}

// Enabled reports whether synthetic results may be produced
func (c *Composer) Enabled() bool {
	return c.cfg.Enabled
}

// FailureLabel names why a run produced nothing
func FailureLabel(stop models.StopReason, blocked models.BlockedKind) string {
	switch stop {
	case models.StopBlocked:
		switch blocked {
		case models.BlockedRateLimit:
			return LabelRateLimited
		case models.BlockedChallenge:
			return LabelChallenge
		case models.BlockedCooldown:
			return LabelCooldown
		}
		return LabelBlocked
	case models.StopBudgetExhausted:
		return LabelBudgetExhausted
	case models.StopEnoughCandidates:
		return LabelUnverified
	case models.StopCompleted:
		return LabelNoMatch
	}
	return LabelUnavailable
}

// Compose returns exactly one low-confidence near miss explaining the failure
func (c *Composer) Compose(in Input) models.NearMissCase {
	label := FailureLabel(in.StopReason, in.BlockedKind)
	missing := proposition.MissingElements("", in.Checklist, in.Profile)
	if len(missing) == 0 {
		missing = []string{defaultMissing}
	}
	rewrite := StricterRewrite(in.Query, in.Profile)
	link := c.searchURL(rewrite, in.Profile.CourtHint)
	terms := keyTerms(missing)
	actions := nextActions(in, label, terms)

	var snippet strings.Builder
	snippet.WriteString(readiness[label])
	if len(terms) > 0 {
		fmt.Fprintf(&snippet, " Key missing terms: %s.", strings.Join(terms, ", "))
	}
	snippet.WriteString(" Next steps:")
	for i, a := range actions {
		fmt.Fprintf(&snippet, " %d) %s.", i+1, a)
	}

	sc := models.ScoredCase{
		ClassifiedCandidate: models.ClassifiedCandidate{
			CaseCandidate: models.CaseCandidate{
				Source:     models.SourceSynthetic,
				Title:      "Fallback search: " + rewrite,
				URL:        link,
				Snippet:    snippet.String(),
				Provenance: &models.Provenance{SourceTags: []string{models.SourceSynthetic}},
			},
			Kind:         models.KindUnknown,
			ClassReasons: []string{"synthetic_fallback"},
		},
		RankingScore:     Confidence,
		ConfidenceScore:  Confidence,
		ConfidenceBand:   proposition.Band(Confidence),
		RetrievalTier:    models.TierSyntheticFallback,
		Reasons:          []string{"fallback: " + label},
		SelectionSummary: "Synthetic fallback (" + label + "); no verified judgment was found.",
		Verification: models.Verification{
			ChecklistApplied: in.Checklist != nil,
			MissingElements:  missing,
		},
	}
	if in.Checklist != nil {
		sc.Verification.OutcomeRequired = in.Checklist.Outcome.Required
	}
	return models.NearMissCase{ScoredCase: sc, MissingElements: missing}
}

// StricterRewrite is the tightest query for a manual follow-up search:
// the leading statute, issue and procedure, or the original query
func StricterRewrite(query string, p models.IntentProfile) string {
	var parts []string
	if len(p.Statutes) > 0 {
		parts = append(parts, p.Statutes[0])
	}
	if len(p.Issues) > 0 {
		parts = append(parts, intent.IssuePhrase(p.Issues[0]))
	}
	if len(p.Procedures) > 0 {
		parts = append(parts, p.Procedures[0])
	}
	if len(parts) < 2 {
		if q := strings.TrimSpace(query); q != "" {
			return q
		}
	}
	if len(parts) == 0 {
		return strings.TrimSpace(p.CleanedQuery)
	}
	return strings.Join(parts, " ")
}

func (c *Composer) searchURL(rewrite string, court models.CourtHint) string {
	q := rewrite
	switch court {
	case models.CourtSC:
		q += " doctypes: supremecourt"
	case models.CourtHC:
		q += " doctypes: highcourts"
	}
	return c.cfg.SearchBaseURL + url.QueryEscape(q)
}

// keyTerms reduces missing elements to short search terms
func keyTerms(missing []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range missing {
		if len(out) >= maxMissingTerms {
			break
		}
		term := m
		for _, prefix := range []string{"any of: ", "procedure: ", "actor: ", "relation: "} {
			term = strings.TrimPrefix(term, prefix)
		}
		if strings.HasPrefix(m, "any of: ") {
			term = strings.SplitN(term, ", ", 2)[0]
		}
		if strings.HasPrefix(m, "relation: ") || strings.HasPrefix(m, "contradicting outcome: ") || m == defaultMissing {
			continue
		}
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
	}
	return out
}

// nextActions ranks follow-up steps, most useful first
func nextActions(in Input, label string, terms []string) []string {
	var actions []string
	switch label {
	case LabelRateLimited, LabelChallenge, LabelCooldown, LabelBlocked:
		if in.RetryAfter > 0 {
			actions = append(actions, fmt.Sprintf("Retry after %d seconds", int(in.RetryAfter.Seconds()+0.5)))
		} else {
			actions = append(actions, "Retry in a minute")
		}
	}
	if len(in.Profile.Statutes) > 0 {
		actions = append(actions, "Search the exact provision "+in.Profile.Statutes[0])
	}
	if len(in.Profile.StatuteAliases) > 0 {
		actions = append(actions, "Also search the corresponding provision "+in.Profile.StatuteAliases[0].To)
	}
	if len(terms) > 0 {
		actions = append(actions, "Add facts covering "+strings.Join(terms, ", "))
	}
	if in.Profile.CourtHint == models.CourtAny || in.Profile.CourtHint == "" {
		actions = append(actions, "Narrow the search to the Supreme Court or a named High Court")
	}
	if !in.Profile.DateWindow.IsZero() {
		actions = append(actions, "Widen the date window")
	}
	actions = append(actions, "Open the fallback search link and review the leading judgments")
	if len(actions) > maxNextActions {
		actions = actions[:maxNextActions]
	}
	return actions
}
