package models

import "time"

// SearchResponseVersion is bumped whenever the response shape changes
const SearchResponseVersion = "2"

// ConfidenceBand is a coarse label for a confidence score
type ConfidenceBand string

const (
	BandVeryHigh ConfidenceBand = "VERY_HIGH"
	BandHigh     ConfidenceBand = "HIGH"
	BandMedium   ConfidenceBand = "MEDIUM"
	BandLow      ConfidenceBand = "LOW"
)

// RetrievalTier is where a scored case ended up
type RetrievalTier string

const (
	TierStrictExact       RetrievalTier = "strict_exact"
	TierProvisionalExact  RetrievalTier = "provisional_exact"
	TierNearMiss          RetrievalTier = "near_miss"
	TierSyntheticFallback RetrievalTier = "synthetic_fallback"
)

// Verification is the proposition gate's detailed verdict on one candidate
type Verification struct {
	ChecklistApplied      bool     `json:"checklist_applied"`
	RequiredCoverage      float64  `json:"required_coverage"`
	CoreCoverage          float64  `json:"core_coverage"`
	PeripheralCoverage    float64  `json:"peripheral_coverage"`
	HookGroupsSatisfied   int      `json:"hook_groups_satisfied"`
	HookGroupsRequired    int      `json:"hook_groups_required"`
	MissingHookGroups     []string `json:"missing_hook_groups,omitempty"`
	RelationsSatisfied    bool     `json:"relations_satisfied"`
	FailedRelations       []string `json:"failed_relations,omitempty"`
	OutcomeRequired       bool     `json:"outcome_required"`
	OutcomeSatisfied      bool     `json:"outcome_satisfied"`
	ContradictionDetected bool     `json:"contradiction_detected"`
	ContradictionTerms    []string `json:"contradiction_terms,omitempty"`
	MissingElements       []string `json:"missing_elements,omitempty"`
	MandatoryPassed       bool     `json:"mandatory_passed"`
	MinorGaps             []string `json:"minor_gaps,omitempty"`
}

// ScoredCase is a classified candidate after the proposition gate
type ScoredCase struct {
	ClassifiedCandidate
	Score            float64        `json:"score"`
	RankingScore     float64        `json:"ranking_score"`
	ConfidenceScore  float64        `json:"confidence_score"`
	ConfidenceBand   ConfidenceBand `json:"confidence_band"`
	RetrievalTier    RetrievalTier  `json:"retrieval_tier"`
	Reasons          []string       `json:"reasons"`
	SelectionSummary string         `json:"selection_summary"`
	Verification     Verification   `json:"verification"`
}

// NearMissCase is a relevant candidate that failed a mandatory check
type NearMissCase struct {
	ScoredCase
	MissingElements []string `json:"missing_elements"`
}

// PropositionSummary describes the checklist a response was verified against
type PropositionSummary struct {
	Source          string   `json:"source"`
	Elements        []string `json:"elements"`
	RequiredGroups  []string `json:"required_groups"`
	OutcomePolarity string   `json:"outcome_polarity"`
	OutcomeRequired bool     `json:"outcome_required"`
	Statutes        []string `json:"statutes"`
	CourtHint       string   `json:"court_hint"`
}

// SearchResponse is the outbound contract.
// Optional blocks stay nil unless the corresponding feature ran.
type SearchResponse struct {
	SchemaVersion    string             `json:"schema_version"`
	RequestID        string             `json:"request_id"`
	Query            string             `json:"query"`
	StrictExact      []ScoredCase       `json:"strict_exact"`
	ProvisionalExact []ScoredCase       `json:"provisional_exact"`
	NearMisses       []NearMissCase     `json:"near_misses"`
	Proposition      PropositionSummary `json:"proposition"`
	StopReason       StopReason         `json:"stop_reason"`
	BlockedKind      BlockedKind        `json:"blocked_kind,omitempty"`
	FallbackUsed     bool               `json:"fallback_used"`
	TraceID          string             `json:"trace_id,omitempty"`
	Diagnostics      *Diagnostics       `json:"diagnostics,omitempty"`
	GeneratedAt      time.Time          `json:"generated_at"`
}

// ExactCount is the number of strict and provisional exact results
func (r *SearchResponse) ExactCount() int {
	return len(r.StrictExact) + len(r.ProvisionalExact)
}

// Diagnostics is the full trace across pipeline stages
type Diagnostics struct {
	Intent         IntentProfile         `json:"intent"`
	Checklist      *PropositionChecklist `json:"checklist,omitempty"`
	Planner        PlannerTrace          `json:"planner"`
	Scheduler      SchedulerTrace        `json:"scheduler"`
	Retrieval      RetrievalTrace        `json:"retrieval"`
	Classification ClassificationTrace   `json:"classification"`
	Verification   VerificationTrace     `json:"verification"`
	Fallback       *FallbackTrace        `json:"fallback,omitempty"`
	Client         ClientTrace           `json:"client"`
	Warnings       []string              `json:"warnings,omitempty"`
}

// PlannerTrace records what the planner collaborator contributed
type PlannerTrace struct {
	Enabled  bool     `json:"enabled"`
	Used     bool     `json:"used"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Plan     *Plan    `json:"plan,omitempty"`
}

// SchedulerTrace records the scheduler run
type SchedulerTrace struct {
	StopReason        StopReason               `json:"stop_reason"`
	BlockedKind       BlockedKind              `json:"blocked_kind,omitempty"`
	BlockedCount      int                      `json:"blocked_count"`
	RetryAfterSeconds int                      `json:"retry_after_seconds,omitempty"`
	AttemptsUsed      int                      `json:"attempts_used"`
	SkippedDuplicates int                      `json:"skipped_duplicates"`
	ElapsedMs         int64                    `json:"elapsed_ms"`
	MedianAttemptMs   float64                  `json:"median_attempt_ms"`
	VariantsPlanned   int                      `json:"variants_planned"`
	GuaranteePass     bool                     `json:"guarantee_pass"`
	Attempts          []RetrievalAttempt       `json:"attempts"`
	Utility           []VariantUtilitySnapshot `json:"utility"`
}

// RetrievalTrace summarizes the candidate pool
type RetrievalTrace struct {
	PoolSize       int            `json:"pool_size"`
	ClientSupplied int            `json:"client_supplied"`
	Modes          map[string]int `json:"modes"`
}

// ClassificationTrace counts classifier verdicts
type ClassificationTrace struct {
	Counts map[Kind]int `json:"counts"`
}

// VerificationTrace counts gate and diversity outcomes
type VerificationTrace struct {
	Scored           int            `json:"scored"`
	StrictExact      int            `json:"strict_exact"`
	ProvisionalExact int            `json:"provisional_exact"`
	NearMiss         int            `json:"near_miss"`
	DiversityDropped map[string]int `json:"diversity_dropped,omitempty"`
}

// FallbackTrace records a synthetic fallback
type FallbackTrace struct {
	Reason string `json:"reason"`
	URL    string `json:"url"`
}

// ClientTrace echoes client-side execution metadata
type ClientTrace struct {
	ExecutionPath string      `json:"execution_path,omitempty"`
	BlockedKind   BlockedKind `json:"blocked_kind,omitempty"`
}
