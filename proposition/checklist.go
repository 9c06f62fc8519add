// Package proposition builds the verification checklist for a query and
// scores candidates against it.
package proposition

import (
	"fmt"
	"strings"

	"casecite-backend/intent"
	"casecite-backend/models"
	"casecite-backend/textutil"
)

const (
	maxChecklistElements = 16
	maxChecklistGroups   = 12
	maxFallbackElements  = 4
)

// issueTerms widens an issue beyond its label phrase
var issueTerms = map[string][]string{
	"dowry_death":              {"dowry death", "304b", "soon before her death"},
	"cruelty":                  {"cruelty", "498a", "harassment"},
	"disproportionate_assets":  {"disproportionate assets", "13 1 e", "known sources of income"},
	"sanction_for_prosecution": {"sanction for prosecution", "previous sanction", "sanction"},
	"quashing_fir":             {"quashing", "quash", "quashed", "inherent powers"},
	"cheque_dishonour":         {"dishonour of cheque", "cheque bounce", "dishonoured", "138"},
	"anticipatory_bail":        {"anticipatory bail", "pre arrest bail", "438"},
	"default_bail":             {"default bail", "statutory bail", "167 2"},
	"regular_bail":             {"regular bail", "439"},
	"electronic_evidence":      {"electronic evidence", "electronic record", "65b"},
	"delay_condonation":        {"condonation of delay", "condone the delay", "sufficient cause"},
	"maintenance":              {"maintenance", "125"},
	"illegal_arrest":           {"illegal arrest", "illegal detention", "unlawful detention"},
}

// BuildChecklist derives the checklist from the profile and merges a
// sanitized planner plan when one is given. plan may be nil.
func BuildChecklist(profile models.IntentProfile, plan *models.Plan) *models.PropositionChecklist {
	cl := derive(profile)
	if plan.IsEmpty() {
		return cl
	}
	derivedEmpty := len(cl.HookGroups) == 0 && !hasCoreFromProfile(profile)
	merge(cl, plan)
	if derivedEmpty {
		cl.Source = models.ChecklistPlanner
	} else {
		cl.Source = models.ChecklistMerged
	}
	return cl
}

func hasCoreFromProfile(p models.IntentProfile) bool {
	return len(p.Issues) > 0 || len(p.Procedures) > 0
}

func derive(p models.IntentProfile) *models.PropositionChecklist {
	cl := &models.PropositionChecklist{Source: models.ChecklistDerived}

	for _, issue := range p.Issues {
		terms := issueTerms[issue]
		if len(terms) == 0 {
			terms = []string{intent.IssuePhrase(issue)}
		}
		cl.Elements = append(cl.Elements, models.PropositionElement{
			ID:    "issue_" + issue,
			Label: intent.IssuePhrase(issue),
			Terms: terms,
			Core:  true,
		})
	}
	procedures := specificProcedures(p.Procedures)
	for i, proc := range procedures {
		cl.Elements = append(cl.Elements, models.PropositionElement{
			ID:    "procedure_" + slug(proc),
			Label: proc,
			Terms: ruleTerms(intent.ProcedureRules, proc),
			Core:  i == 0,
		})
	}
	for _, actor := range p.Actors {
		cl.Elements = append(cl.Elements, models.PropositionElement{
			ID:    "actor_" + slug(actor),
			Label: actor,
			Terms: ruleTerms(intent.ActorRules, actor),
		})
	}
	if len(cl.Elements) == 0 {
		for i, tok := range p.Tokens {
			if i >= maxFallbackElements {
				break
			}
			cl.Elements = append(cl.Elements, models.PropositionElement{
				ID:    "term_" + tok,
				Label: tok,
				Terms: []string{tok},
				Core:  i == 0,
			})
		}
	}

	for i, st := range p.Statutes {
		terms := intent.StatuteTerms(st)
		for _, alias := range p.StatuteAliases {
			if alias.From == st {
				terms = append(terms, intent.StatuteTerms(alias.To)...)
			}
		}
		cl.HookGroups = append(cl.HookGroups, models.HookGroup{
			GroupID:  fmt.Sprintf("statute_%d", i+1),
			Terms:    uniqueTerms(terms),
			MinMatch: 1,
			Required: true,
		})
	}
	applyDisjunctions(cl, p.Disjunctions)

	if len(procedures) > 0 {
		cl.HookGroups = append(cl.HookGroups, models.HookGroup{
			GroupID:  "procedure",
			Terms:    ruleTerms(intent.ProcedureRules, procedures[0]),
			MinMatch: 1,
		})
		if first, ok := firstRequiredGroup(cl); ok {
			cl.Relations = append(cl.Relations, models.HookRelation{
				Type:         models.RelationCoOccurs,
				LeftGroupID:  first,
				RightGroupID: "procedure",
				Required:     true,
			})
		}
	}

	cl.Outcome = DetectOutcome(p.CleanedQuery)
	capChecklist(cl)
	return cl
}

// applyDisjunctions replaces required groups named on either side of an
// "X or Y" with one group satisfied by either
func applyDisjunctions(cl *models.PropositionChecklist, disjunctions []models.Disjunction) {
	for i, d := range disjunctions {
		terms := []string{d.Left, d.Right}
		for gi := range cl.HookGroups {
			g := &cl.HookGroups[gi]
			if groupMentions(*g, d.Left) || groupMentions(*g, d.Right) {
				g.Required = false
				terms = append(terms, g.Terms...)
			}
		}
		cl.HookGroups = append(cl.HookGroups, models.HookGroup{
			GroupID:  fmt.Sprintf("either_%d", i+1),
			Terms:    uniqueTerms(terms),
			MinMatch: 1,
			Required: true,
		})
	}
}

func groupMentions(g models.HookGroup, side string) bool {
	for _, t := range g.Terms {
		if textutil.ContainsTerm(textutil.Normalize(t), side) {
			return true
		}
	}
	return false
}

func firstRequiredGroup(cl *models.PropositionChecklist) (string, bool) {
	for _, g := range cl.HookGroups {
		if g.Required {
			return g.GroupID, true
		}
	}
	return "", false
}

// specificProcedures drops plain "bail" when a specific bail remedy was named
func specificProcedures(procs []string) []string {
	specific := false
	for _, p := range procs {
		if p != "bail" && strings.HasSuffix(p, "bail") {
			specific = true
		}
	}
	var out []string
	for _, p := range procs {
		if p == "bail" && specific {
			continue
		}
		out = append(out, p)
	}
	return out
}

func ruleTerms(rules []intent.Rule, label string) []string {
	for _, r := range rules {
		if r.Label == label {
			return append([]string(nil), r.Terms...)
		}
	}
	return []string{label}
}

func merge(cl *models.PropositionChecklist, plan *models.Plan) {
	labels := make(map[string]bool)
	for _, el := range cl.Elements {
		labels[textutil.Normalize(el.Label)] = true
	}
	for _, el := range plan.Elements {
		if labels[textutil.Normalize(el.Label)] {
			continue
		}
		labels[textutil.Normalize(el.Label)] = true
		cl.Elements = append(cl.Elements, el)
	}

	ids := make(map[string]bool)
	for _, g := range cl.HookGroups {
		ids[g.GroupID] = true
	}
	for _, g := range plan.HookGroups {
		if ids[g.GroupID] {
			continue
		}
		ids[g.GroupID] = true
		cl.HookGroups = append(cl.HookGroups, g)
	}
	for _, r := range plan.Relations {
		if ids[r.LeftGroupID] && ids[r.RightGroupID] {
			cl.Relations = append(cl.Relations, r)
		}
	}
	if plan.Outcome != nil && cl.Outcome.Polarity == models.PolarityNeutral {
		cl.Outcome = *plan.Outcome
	}
	capChecklist(cl)
}

func capChecklist(cl *models.PropositionChecklist) {
	if len(cl.Elements) > maxChecklistElements {
		cl.Elements = cl.Elements[:maxChecklistElements]
	}
	if len(cl.HookGroups) > maxChecklistGroups {
		cl.HookGroups = cl.HookGroups[:maxChecklistGroups]
	}
	ids := make(map[string]bool, len(cl.HookGroups))
	for _, g := range cl.HookGroups {
		ids[g.GroupID] = true
	}
	kept := cl.Relations[:0]
	for _, r := range cl.Relations {
		if ids[r.LeftGroupID] && ids[r.RightGroupID] {
			kept = append(kept, r)
		}
	}
	cl.Relations = kept
}

// Summary describes the checklist for the response
func Summary(cl *models.PropositionChecklist, profile models.IntentProfile) models.PropositionSummary {
	s := models.PropositionSummary{
		Statutes:  profile.Statutes,
		CourtHint: string(profile.CourtHint),
	}
	if cl == nil {
		s.Source = models.ChecklistDerived
		s.OutcomePolarity = models.PolarityNeutral
		return s
	}
	s.Source = cl.Source
	for _, el := range cl.Elements {
		s.Elements = append(s.Elements, el.Label)
	}
	for _, g := range cl.HookGroups {
		if g.Required {
			s.RequiredGroups = append(s.RequiredGroups, g.GroupID)
		}
	}
	s.OutcomePolarity = cl.Outcome.Polarity
	if s.OutcomePolarity == "" {
		s.OutcomePolarity = models.PolarityNeutral
	}
	s.OutcomeRequired = cl.Outcome.Required
	return s
}

func slug(s string) string {
	return strings.ReplaceAll(textutil.Normalize(s), " ", "_")
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	var out []string
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
