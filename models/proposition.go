package models

// Checklist sources
const (
	ChecklistDerived = "derived"
	ChecklistPlanner = "planner"
	ChecklistMerged  = "merged"
)

// Relation types between hook groups
const (
	RelationCoOccurs = "co_occurs"
	RelationSupports = "supports"
)

// Outcome polarities
const (
	PolarityFavourable   = "favourable"
	PolarityUnfavourable = "unfavourable"
	PolarityNeutral      = "neutral"
)

// PropositionElement is one thing a judgment must address
type PropositionElement struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	Terms []string `json:"terms"`
	Core  bool     `json:"core"`
}

// HookGroup is a set of interchangeable legal references.
// It is satisfied once MinMatch of its terms appear.
type HookGroup struct {
	GroupID  string   `json:"group_id"`
	Terms    []string `json:"terms"`
	MinMatch int      `json:"min_match"`
	Required bool     `json:"required"`
}

// HookRelation requires two hook groups to hold together
type HookRelation struct {
	Type         string `json:"type"`
	LeftGroupID  string `json:"left_group_id"`
	RightGroupID string `json:"right_group_id"`
	Required     bool   `json:"required"`
}

// OutcomeConstraint is the result a matching judgment must reach
type OutcomeConstraint struct {
	Polarity           string   `json:"polarity"`
	Terms              []string `json:"terms"`
	ContradictionTerms []string `json:"contradiction_terms"`
	Required           bool     `json:"required"`
}

// PropositionChecklist is the verification checklist for a request.
// It is read-only while scoring.
type PropositionChecklist struct {
	Elements   []PropositionElement `json:"elements"`
	HookGroups []HookGroup          `json:"hook_groups"`
	Relations  []HookRelation       `json:"relations"`
	Outcome    OutcomeConstraint    `json:"outcome"`
	Source     string               `json:"source"`
}

// HookGroup returns the group with the given id
func (c *PropositionChecklist) HookGroup(id string) (HookGroup, bool) {
	if c == nil {
		return HookGroup{}, false
	}
	for _, g := range c.HookGroups {
		if g.GroupID == id {
			return g, true
		}
	}
	return HookGroup{}, false
}

// RawPlan is the planner collaborator output before sanitization.
// Fields are loosely typed because the planner is external.
type RawPlan struct {
	Elements      []RawPlanElement  `json:"elements"`
	HookGroups    []RawPlanGroup    `json:"hook_groups"`
	Relations     []RawPlanRelation `json:"relations"`
	Outcome       *RawPlanOutcome   `json:"outcome"`
	StrictPhrases []string          `json:"strict_phrases"`
	BroadPhrases  []string          `json:"broad_phrases"`
}

// RawPlanElement is an unvalidated planner element
type RawPlanElement struct {
	Label string   `json:"label"`
	Terms []string `json:"terms"`
	Core  *bool    `json:"core"`
}

// RawPlanGroup is an unvalidated planner hook group
type RawPlanGroup struct {
	GroupID  string   `json:"group_id"`
	Terms    []string `json:"terms"`
	MinMatch int      `json:"min_match"`
	Required *bool    `json:"required"`
}

// RawPlanRelation is an unvalidated planner relation
type RawPlanRelation struct {
	Type     string `json:"type"`
	Left     string `json:"left"`
	Right    string `json:"right"`
	Required *bool  `json:"required"`
}

// RawPlanOutcome is an unvalidated planner outcome constraint
type RawPlanOutcome struct {
	Polarity           string   `json:"polarity"`
	Terms              []string `json:"terms"`
	ContradictionTerms []string `json:"contradiction_terms"`
	Required           *bool    `json:"required"`
}

// Plan is a sanitized planner plan
type Plan struct {
	Elements      []PropositionElement `json:"elements"`
	HookGroups    []HookGroup          `json:"hook_groups"`
	Relations     []HookRelation       `json:"relations"`
	Outcome       *OutcomeConstraint   `json:"outcome,omitempty"`
	StrictPhrases []string             `json:"strict_phrases"`
	BroadPhrases  []string             `json:"broad_phrases"`
}

// IsEmpty reports whether the plan carries nothing usable
func (p *Plan) IsEmpty() bool {
	if p == nil {
		return true
	}
	return len(p.Elements) == 0 && len(p.HookGroups) == 0 && len(p.Relations) == 0 &&
		p.Outcome == nil && len(p.StrictPhrases) == 0 && len(p.BroadPhrases) == 0
}
