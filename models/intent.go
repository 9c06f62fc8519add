package models

// CourtHint represents the court level a query asks for
type CourtHint string

const (
	CourtSC  CourtHint = "SC"
	CourtHC  CourtHint = "HC"
	CourtAny CourtHint = "ANY"
)

// DateWindow bounds judgment years; a zero year is open-ended
type DateWindow struct {
	FromYear int `json:"from_year,omitempty"`
	ToYear   int `json:"to_year,omitempty"`
}

// IsZero reports whether the window has no bounds
func (w DateWindow) IsZero() bool {
	return w.FromYear == 0 && w.ToYear == 0
}

// Contains reports whether year falls inside the window
func (w DateWindow) Contains(year int) bool {
	if w.FromYear != 0 && year < w.FromYear {
		return false
	}
	if w.ToYear != 0 && year > w.ToYear {
		return false
	}
	return true
}

// StatuteAlias links a provision in a repealed code to its replacement
type StatuteAlias struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Disjunction is a query-level "X or Y" between two legal terms
type Disjunction struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// IntentProfile is the structured reading of a query.
// It is built once per request and never mutated afterwards.
type IntentProfile struct {
	CleanedQuery   string         `json:"cleaned_query"`
	Tokens         []string       `json:"tokens"`
	Domains        []string       `json:"domains"`
	Issues         []string       `json:"issues"`
	Statutes       []string       `json:"statutes"`
	StatuteAliases []StatuteAlias `json:"statute_aliases,omitempty"`
	Procedures     []string       `json:"procedures"`
	Actors         []string       `json:"actors"`
	Anchors        []string       `json:"anchors"`
	CourtHint      CourtHint      `json:"court_hint"`
	DateWindow     DateWindow     `json:"date_window"`
	Disjunctions   []Disjunction  `json:"disjunctions,omitempty"`
}

// HasDisjunction reports whether the query states legal alternatives
func (p IntentProfile) HasDisjunction() bool {
	return len(p.Disjunctions) > 0
}
