package scheduler

import (
	"fmt"
	"sort"
	"strings"

	"casecite-backend/intent"
	"casecite-backend/models"
	"casecite-backend/textutil"
)

const (
	maxPhrasesPerPhase = 6
	anchorPhraseLen    = 4
	relaxedPhraseLen   = 6
	tokenPhraseLen     = 8
	microAnchors       = 4
	revolvingWindow    = 3
	revolvingTurns     = 3
)

// CanonicalKey groups paraphrase-equivalent phrases: sorted, deduplicated,
// stopword-free tokens
func CanonicalKey(phrase string) string {
	tokens := textutil.Tokenize(phrase)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

type variantBuilder struct {
	profile  models.IntentProfile
	variants []models.QueryVariant
	counts   map[models.Phase]int
	seen     map[string]bool
}

// BuildVariants generates the query variants for every phase. plan may be nil.
func BuildVariants(profile models.IntentProfile, plan *models.Plan) []models.QueryVariant {
	b := &variantBuilder{
		profile: profile,
		counts:  make(map[models.Phase]int),
		seen:    make(map[string]bool),
	}

	core := corePhrase(profile)
	anchors := profile.Anchors

	// primary: strict phrasing, court scope widened when the query names none
	primary := []string{core}
	if plan != nil {
		primary = append(primary, plan.StrictPhrases...)
	}
	primary = append(primary, joinFirst(anchors, anchorPhraseLen))
	for _, scope := range primaryScopes(profile.CourtHint) {
		for _, phrase := range primary {
			b.add(models.PhasePrimary, phrase, scope, models.StrictnessStrict, profile.Statutes)
		}
	}

	// fallback: relaxed anchor phrasing
	fallback := []string{joinFirst(anchors, relaxedPhraseLen)}
	if plan != nil {
		fallback = append(fallback, plan.BroadPhrases...)
	}
	fallback = append(fallback, joinFirst(profile.Tokens, tokenPhraseLen))
	for _, phrase := range fallback {
		b.add(models.PhaseFallback, phrase, profile.CourtHint, models.StrictnessRelaxed, nil)
	}

	// rescue: statute rewrites through recodification aliases
	for _, alias := range profile.StatuteAliases {
		rewritten := strings.Replace(core, alias.From, alias.To, 1)
		if rewritten == core {
			rewritten = alias.To + " " + firstIssuePhrase(profile)
		}
		b.add(models.PhaseRescue, rewritten, profile.CourtHint, models.StrictnessRelaxed, []string{alias.To})
	}
	for _, st := range profile.Statutes {
		b.add(models.PhaseRescue, st+" "+firstIssuePhrase(profile), profile.CourtHint, models.StrictnessRelaxed, []string{st})
	}

	// micro: two-anchor pairs
	head := firstN(anchors, microAnchors)
	for i := 0; i < len(head); i++ {
		for j := i + 1; j < len(head); j++ {
			b.add(models.PhaseMicro, head[i]+" "+head[j], profile.CourtHint, models.StrictnessRelaxed, nil)
		}
	}

	// revolving: rotated anchor windows
	if len(anchors) > revolvingWindow {
		for turn := 1; turn <= revolvingTurns; turn++ {
			window := make([]string, 0, revolvingWindow)
			for k := 0; k < revolvingWindow; k++ {
				window = append(window, anchors[(turn+k)%len(anchors)])
			}
			b.add(models.PhaseRevolving, strings.Join(window, " "), profile.CourtHint, models.StrictnessRelaxed, nil)
		}
	}

	// browse: court-only issue listing
	browse := firstIssuePhrase(profile)
	if browse == "" && len(profile.Domains) > 0 {
		browse = profile.Domains[0]
	}
	if browse == "" {
		browse = joinFirst(profile.Tokens, 2)
	}
	b.add(models.PhaseBrowse, browse, profile.CourtHint, models.StrictnessRelaxed, nil)

	return b.variants
}

func (b *variantBuilder) add(phase models.Phase, phrase string, scope models.CourtHint, strictness models.Strictness, mustInclude []string) {
	phrase = textutil.CollapseSpace(phrase)
	limit := maxPhrasesPerPhase
	if phase == models.PhasePrimary {
		limit *= len(primaryScopes(b.profile.CourtHint))
	}
	if phrase == "" || b.counts[phase] >= limit {
		return
	}
	key := CanonicalKey(phrase)
	if key == "" {
		return
	}
	v := models.QueryVariant{
		Phrase:       phrase,
		Phase:        phase,
		CourtScope:   scope,
		Strictness:   strictness,
		Tokens:       textutil.Tokenize(phrase),
		CanonicalKey: key,
		MustInclude:  mustInclude,
		Directives:   directives(b.profile, phase, scope),
	}
	sig := string(phase) + "|" + v.Signature()
	if b.seen[sig] {
		return
	}
	b.seen[sig] = true

	n := b.counts[phase]
	b.counts[phase]++
	v.ID = fmt.Sprintf("%s-%d", phase, n+1)
	v.Priority = 1.0 - 0.1*float64(n)
	if v.Priority < 0.1 {
		v.Priority = 0.1
	}
	b.variants = append(b.variants, v)
}

func directives(profile models.IntentProfile, phase models.Phase, scope models.CourtHint) models.RetrievalDirectives {
	d := models.RetrievalDirectives{
		DateFrom: profile.DateWindow.FromYear,
		DateTo:   profile.DateWindow.ToYear,
	}
	switch scope {
	case models.CourtSC:
		d.DocTypes = []string{"supremecourt"}
	case models.CourtHC:
		d.DocTypes = []string{"highcourts"}
	default:
		d.DocTypes = []string{"judgments"}
	}
	if phase == models.PhaseBrowse {
		d.MaxPages = 1
	}
	return d
}

func primaryScopes(hint models.CourtHint) []models.CourtHint {
	if hint == models.CourtSC || hint == models.CourtHC {
		return []models.CourtHint{hint}
	}
	return []models.CourtHint{models.CourtSC, models.CourtAny}
}

// corePhrase is the tightest phrasing of the proposition
func corePhrase(p models.IntentProfile) string {
	var parts []string
	if len(p.Statutes) > 0 {
		parts = append(parts, p.Statutes[0])
	}
	if issue := firstIssuePhrase(p); issue != "" {
		parts = append(parts, issue)
	}
	if len(p.Procedures) > 0 {
		parts = append(parts, p.Procedures[0])
	}
	if len(p.Actors) > 0 {
		parts = append(parts, p.Actors[0])
	}
	if len(parts) == 0 {
		if len(p.Tokens) > 0 {
			return joinFirst(p.Tokens, relaxedPhraseLen)
		}
		return p.CleanedQuery
	}
	return strings.Join(parts, " ")
}

func firstIssuePhrase(p models.IntentProfile) string {
	if len(p.Issues) == 0 {
		return ""
	}
	return intent.IssuePhrase(p.Issues[0])
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func joinFirst(items []string, n int) string {
	return strings.Join(firstN(items, n), " ")
}
