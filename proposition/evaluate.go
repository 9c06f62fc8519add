package proposition

import (
	"fmt"
	"strings"

	"casecite-backend/models"
	"casecite-backend/textutil"
)

// minCoreCoverage is the share of core elements a candidate must address
// before missing core elements become minor gaps
const minCoreCoverage = 0.5

type gap struct {
	label     string
	mandatory bool
}

type evaluation struct {
	applied            bool
	elementsMatched    int
	elementsTotal      int
	requiredCoverage   float64
	coreCoverage       float64
	peripheralCoverage float64
	hookSatisfied      int
	hookRequired       int
	missingHooks       []string
	satisfiedGroups    map[string]bool
	relationsRequired  int
	failedRelations    []string
	satisfiedRelations []string
	outcome            models.OutcomeConstraint
	outcomeSatisfied   bool
	contradiction      bool
	contradictionTerms []string
	gaps               []gap
}

func (e evaluation) mandatoryPassed() bool {
	for _, g := range e.gaps {
		if g.mandatory {
			return false
		}
	}
	return true
}

func (e evaluation) missing() []string {
	var out []string
	seen := make(map[string]bool)
	for _, pass := range []bool{true, false} {
		for _, g := range e.gaps {
			if g.mandatory == pass && !seen[g.label] {
				seen[g.label] = true
				out = append(out, g.label)
			}
		}
	}
	return out
}

func (e evaluation) minorGaps() []string {
	var out []string
	for _, g := range e.gaps {
		if !g.mandatory {
			out = append(out, g.label)
		}
	}
	return out
}

// MissingElements lists what corpus fails to address: unmet elements, hook
// groups, relations and outcome from the checklist, then the actors and
// procedures of the profile that the checklist does not already cover.
// Mandatory failures come first.
func MissingElements(corpus string, cl *models.PropositionChecklist, profile models.IntentProfile) []string {
	return evaluate(textutil.Normalize(corpus), cl, profile).missing()
}

// evaluate runs every proposition check over a normalized corpus
func evaluate(corpus string, cl *models.PropositionChecklist, profile models.IntentProfile) evaluation {
	e := evaluation{
		requiredCoverage:   1,
		coreCoverage:       1,
		peripheralCoverage: 1,
		satisfiedGroups:    make(map[string]bool),
		outcome:            models.OutcomeConstraint{Polarity: models.PolarityNeutral},
	}
	covered := make(map[string]bool)
	if cl != nil {
		e.applied = true
		e.checkElements(corpus, cl.Elements)
		e.checkHooks(corpus, cl.HookGroups)
		e.checkRelations(cl.Relations)
		e.checkOutcome(corpus, cl.Outcome)
		for _, el := range cl.Elements {
			covered[textutil.Normalize(el.Label)] = true
		}
	}

	for _, proc := range profile.Procedures {
		if covered[textutil.Normalize(proc)] || textutil.ContainsTerm(corpus, proc) {
			continue
		}
		e.gaps = append(e.gaps, gap{label: "procedure: " + proc})
	}
	for _, actor := range profile.Actors {
		if covered[textutil.Normalize(actor)] || textutil.ContainsTerm(corpus, actor) {
			continue
		}
		e.gaps = append(e.gaps, gap{label: "actor: " + actor})
	}
	return e
}

func (e *evaluation) checkElements(corpus string, elements []models.PropositionElement) {
	if len(elements) == 0 {
		return
	}
	var core, coreHit, peri, periHit int
	var missingCore, missingPeri []string
	for _, el := range elements {
		hit := containsAny(corpus, el.Terms) || textutil.ContainsTerm(corpus, el.Label)
		if hit {
			e.elementsMatched++
		}
		if el.Core {
			core++
			if hit {
				coreHit++
			} else {
				missingCore = append(missingCore, el.Label)
			}
		} else {
			peri++
			if hit {
				periHit++
			} else {
				missingPeri = append(missingPeri, el.Label)
			}
		}
	}
	e.elementsTotal = len(elements)
	e.requiredCoverage = ratio(e.elementsMatched, e.elementsTotal)
	e.coreCoverage = ratio(coreHit, core)
	e.peripheralCoverage = ratio(periHit, peri)

	coreMandatory := e.coreCoverage < minCoreCoverage
	for _, label := range missingCore {
		e.gaps = append(e.gaps, gap{label: label, mandatory: coreMandatory})
	}
	for _, label := range missingPeri {
		e.gaps = append(e.gaps, gap{label: label})
	}
}

func (e *evaluation) checkHooks(corpus string, groups []models.HookGroup) {
	for _, g := range groups {
		need := g.MinMatch
		if need < 1 {
			need = 1
		}
		hits := len(matchedTerms(corpus, g.Terms))
		ok := hits >= need
		if ok {
			e.satisfiedGroups[g.GroupID] = true
		}
		if !g.Required {
			continue
		}
		e.hookRequired++
		if ok {
			e.hookSatisfied++
			continue
		}
		e.missingHooks = append(e.missingHooks, g.GroupID)
		e.gaps = append(e.gaps, gap{label: hookLabel(g), mandatory: true})
	}
}

func (e *evaluation) checkRelations(relations []models.HookRelation) {
	for _, r := range relations {
		name := fmt.Sprintf("%s %s %s", r.LeftGroupID, r.Type, r.RightGroupID)
		ok := e.satisfiedGroups[r.LeftGroupID] && e.satisfiedGroups[r.RightGroupID]
		if !r.Required {
			continue
		}
		e.relationsRequired++
		if ok {
			e.satisfiedRelations = append(e.satisfiedRelations, name)
			continue
		}
		e.failedRelations = append(e.failedRelations, name)
		e.gaps = append(e.gaps, gap{label: "relation: " + name, mandatory: true})
	}
}

func (e *evaluation) checkOutcome(corpus string, o models.OutcomeConstraint) {
	if o.Polarity == "" || o.Polarity == models.PolarityNeutral {
		return
	}
	e.outcome = o
	e.outcomeSatisfied = containsAny(corpus, o.Terms)
	e.contradictionTerms = matchedTerms(corpus, o.ContradictionTerms)
	e.contradiction = len(e.contradictionTerms) > 0 && !e.outcomeSatisfied

	if o.Required && !e.outcomeSatisfied {
		e.gaps = append(e.gaps, gap{label: o.Polarity + " outcome", mandatory: true})
	}
	if e.contradiction {
		e.gaps = append(e.gaps, gap{
			label:     "contradicting outcome: " + strings.Join(e.contradictionTerms, ", "),
			mandatory: true,
		})
	}
}

// hookLabel names a hook group by its first few terms
func hookLabel(g models.HookGroup) string {
	terms := g.Terms
	if len(terms) > 3 {
		terms = terms[:3]
	}
	return "any of: " + strings.Join(terms, ", ")
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 1
	}
	return float64(n) / float64(d)
}
