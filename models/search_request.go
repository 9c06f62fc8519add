package models

// CaseSearchRequest is the inbound search contract
type CaseSearchRequest struct {
	Query               string          `json:"query" binding:"required"`
	MaxResults          int             `json:"max_results"`
	Debug               bool            `json:"debug"`
	RawCandidates       []CaseCandidate `json:"raw_candidates,omitempty"`
	ClientExecutionPath string          `json:"client_execution_path,omitempty"`
	ClientBlockedKind   string          `json:"client_blocked_kind,omitempty"`
}
