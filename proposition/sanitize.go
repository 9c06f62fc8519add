package proposition

import (
	"fmt"
	"strings"
	"unicode"

	"casecite-backend/models"
	"casecite-backend/textutil"
)

// Caps applied to planner output
const (
	MaxPlanElements  = 12
	MaxPlanGroups    = 10
	MaxTermsPerGroup = 12
	MaxPlanRelations = 8
	MaxPlanPhrases   = 8
	MaxTermChars     = 80
)

// ValidationError describes one planner field that was dropped or repaired
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("plan %s: %s", e.Field, e.Reason)
}

// SanitizePlan validates a raw planner plan. It never fails: bad fields are
// dropped or set to neutral values and reported as warnings.
func SanitizePlan(raw *models.RawPlan) (*models.Plan, []string) {
	var errs []error
	warn := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	plan := &models.Plan{}
	if raw == nil {
		warn("plan", "missing")
		return plan, messages(errs)
	}

	labels := make(map[string]bool)
	for i, el := range raw.Elements {
		if len(plan.Elements) >= MaxPlanElements {
			warn("elements", "truncated to %d", MaxPlanElements)
			break
		}
		label := cleanTerm(el.Label)
		if label == "" {
			warn(fmt.Sprintf("elements[%d]", i), "empty label")
			continue
		}
		if labels[label] {
			continue
		}
		labels[label] = true
		terms := cleanTerms(el.Terms, MaxTermsPerGroup)
		if len(terms) == 0 {
			terms = []string{label}
		}
		plan.Elements = append(plan.Elements, models.PropositionElement{
			ID:    fmt.Sprintf("plan_%d", len(plan.Elements)+1),
			Label: label,
			Terms: terms,
			Core:  el.Core != nil && *el.Core,
		})
	}

	ids := make(map[string]bool)
	for i, g := range raw.HookGroups {
		if len(plan.HookGroups) >= MaxPlanGroups {
			warn("hook_groups", "truncated to %d", MaxPlanGroups)
			break
		}
		field := fmt.Sprintf("hook_groups[%d]", i)
		terms := cleanTerms(g.Terms, MaxTermsPerGroup)
		if len(terms) == 0 {
			warn(field, "no usable terms")
			continue
		}
		id := cleanID(g.GroupID)
		if id == "" {
			id = fmt.Sprintf("plan_group_%d", len(plan.HookGroups)+1)
		}
		if ids[id] {
			warn(field, "duplicate group id %q", id)
			continue
		}
		ids[id] = true
		minMatch := g.MinMatch
		if minMatch < 1 || minMatch > len(terms) {
			if g.MinMatch != 0 {
				warn(field, "min_match %d clamped", g.MinMatch)
			}
			minMatch = clampInt(minMatch, 1, len(terms))
		}
		plan.HookGroups = append(plan.HookGroups, models.HookGroup{
			GroupID:  id,
			Terms:    terms,
			MinMatch: minMatch,
			Required: g.Required != nil && *g.Required,
		})
	}

	for i, r := range raw.Relations {
		if len(plan.Relations) >= MaxPlanRelations {
			warn("relations", "truncated to %d", MaxPlanRelations)
			break
		}
		field := fmt.Sprintf("relations[%d]", i)
		left, right := cleanID(r.Left), cleanID(r.Right)
		if !ids[left] || !ids[right] {
			warn(field, "unknown group reference %q -> %q", r.Left, r.Right)
			continue
		}
		if left == right {
			warn(field, "self relation on %q", left)
			continue
		}
		typ := strings.ToLower(strings.TrimSpace(r.Type))
		switch typ {
		case models.RelationCoOccurs, models.RelationSupports:
		default:
			warn(field, "unknown type %q, using %s", r.Type, models.RelationCoOccurs)
			typ = models.RelationCoOccurs
		}
		plan.Relations = append(plan.Relations, models.HookRelation{
			Type:         typ,
			LeftGroupID:  left,
			RightGroupID: right,
			Required:     r.Required != nil && *r.Required,
		})
	}

	if raw.Outcome != nil {
		plan.Outcome = sanitizeOutcome(raw.Outcome, warn)
	}

	plan.StrictPhrases = cleanPhrases(raw.StrictPhrases, "strict_phrases", warn)
	plan.BroadPhrases = cleanPhrases(raw.BroadPhrases, "broad_phrases", warn)
	return plan, messages(errs)
}

func sanitizeOutcome(o *models.RawPlanOutcome, warn func(field, format string, args ...any)) *models.OutcomeConstraint {
	polarity := strings.ToLower(strings.TrimSpace(o.Polarity))
	switch polarity {
	case models.PolarityFavourable, "favorable", "positive":
		polarity = models.PolarityFavourable
	case models.PolarityUnfavourable, "unfavorable", "negative", "adverse":
		polarity = models.PolarityUnfavourable
	case models.PolarityNeutral, "":
		polarity = models.PolarityNeutral
	default:
		warn("outcome.polarity", "unknown polarity %q, using %s", o.Polarity, models.PolarityNeutral)
		polarity = models.PolarityNeutral
	}
	if polarity == models.PolarityNeutral {
		return &models.OutcomeConstraint{Polarity: polarity}
	}

	out := OutcomeFor(polarity, o.Required != nil && *o.Required)
	if terms := cleanTerms(o.Terms, MaxTermsPerGroup); len(terms) > 0 {
		out.Terms = terms
	}
	if terms := cleanTerms(o.ContradictionTerms, MaxTermsPerGroup); len(terms) > 0 {
		out.ContradictionTerms = terms
	}
	return &out
}

func cleanPhrases(phrases []string, field string, warn func(field, format string, args ...any)) []string {
	var out []string
	seen := make(map[string]bool)
	for _, p := range phrases {
		p = cleanTerm(p)
		if p == "" || seen[p] {
			continue
		}
		if len(out) >= MaxPlanPhrases {
			warn(field, "truncated to %d", MaxPlanPhrases)
			break
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// cleanTerm lowercases, strips control characters, collapses spaces and
// truncates to MaxTermChars runes
func cleanTerm(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, s)
	s = textutil.CollapseSpace(s)
	return strings.TrimSpace(textutil.Truncate(s, MaxTermChars))
}

func cleanTerms(terms []string, limit int) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range terms {
		t = cleanTerm(t)
		if t == "" || seen[t] || textutil.Normalize(t) == "" {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func cleanID(s string) string {
	return strings.ReplaceAll(textutil.Normalize(s), " ", "_")
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func messages(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}
