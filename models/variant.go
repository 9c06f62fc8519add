package models

// Phase is a scheduler phase. Phases run in PhaseOrder.
type Phase string

const (
	PhasePrimary   Phase = "primary"
	PhaseFallback  Phase = "fallback"
	PhaseRescue    Phase = "rescue"
	PhaseMicro     Phase = "micro"
	PhaseRevolving Phase = "revolving"
	PhaseBrowse    Phase = "browse"
)

// PhaseOrder is the fixed precedence of scheduler phases
var PhaseOrder = []Phase{
	PhasePrimary,
	PhaseFallback,
	PhaseRescue,
	PhaseMicro,
	PhaseRevolving,
	PhaseBrowse,
}

// Strictness controls how literally a variant phrase is searched
type Strictness string

const (
	StrictnessStrict  Strictness = "strict"
	StrictnessRelaxed Strictness = "relaxed"
)

// RetrievalDirectives carries provider-level search hints
type RetrievalDirectives struct {
	DateFrom int      `json:"date_from,omitempty"`
	DateTo   int      `json:"date_to,omitempty"`
	DocTypes []string `json:"doc_types,omitempty"`
	MaxPages int      `json:"max_pages,omitempty"`
}

// QueryVariant is one phrasing of the query issued to retrieval
type QueryVariant struct {
	ID           string              `json:"id"`
	Phrase       string              `json:"phrase"`
	Phase        Phase               `json:"phase"`
	CourtScope   CourtHint           `json:"court_scope"`
	Strictness   Strictness          `json:"strictness"`
	Tokens       []string            `json:"tokens"`
	CanonicalKey string              `json:"canonical_key"`
	Priority     float64             `json:"priority"`
	MustInclude  []string            `json:"must_include,omitempty"`
	MustExclude  []string            `json:"must_exclude,omitempty"`
	Directives   RetrievalDirectives `json:"directives"`
}

// Signature identifies variants that would issue the same retrieval
func (v QueryVariant) Signature() string {
	return v.CanonicalKey + "|" + string(v.CourtScope) + "|" + string(v.Strictness)
}

// SearchRequest is what a lexical provider receives for one variant
type SearchRequest struct {
	Query      string              `json:"query"`
	CourtScope CourtHint           `json:"court_scope"`
	Strict     bool                `json:"strict"`
	Exclude    []string            `json:"exclude,omitempty"`
	Directives RetrievalDirectives `json:"directives"`
	Limit      int                 `json:"limit"`
}

// NewSearchRequest builds the provider request for a variant
func NewSearchRequest(v QueryVariant, limit int) SearchRequest {
	return SearchRequest{
		Query:      v.Phrase,
		CourtScope: v.CourtScope,
		Strict:     v.Strictness == StrictnessStrict,
		Exclude:    v.MustExclude,
		Directives: v.Directives,
		Limit:      limit,
	}
}
