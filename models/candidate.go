package models

// Source tags recorded on candidate provenance
const (
	SourceLexical   = "lexical"
	SourceSemantic  = "semantic"
	SourceFused     = "fused"
	SourceReranked  = "reranked"
	SourceClient    = "client"
	SourceSynthetic = "synthetic"
)

// Provenance records how a candidate was retrieved and ranked.
// Zero ranks mean the component did not return the candidate.
type Provenance struct {
	LexicalRank   int      `json:"lexical_rank,omitempty"`
	LexicalScore  float64  `json:"lexical_score,omitempty"`
	SemanticRank  int      `json:"semantic_rank,omitempty"`
	SemanticScore float64  `json:"semantic_score,omitempty"`
	FusionScore   float64  `json:"fusion_score,omitempty"`
	RerankScore   *float64 `json:"rerank_score,omitempty"`
	SemanticDocID string   `json:"semantic_doc_id,omitempty"`
	SourceTags    []string `json:"source_tags,omitempty"`
}

// HasTag reports whether tag is among the source tags
func (p Provenance) HasTag(tag string) bool {
	for _, t := range p.SourceTags {
		if t == tag {
			return true
		}
	}
	return false
}

// EvidenceFlags describe how much of a judgment was actually seen
type EvidenceFlags struct {
	HasDetailText  bool `json:"has_detail_text"`
	SnippetOnly    bool `json:"snippet_only"`
	TruncatedBody  bool `json:"truncated_body"`
	FromVectorHit  bool `json:"from_vector_hit"`
	ClientSupplied bool `json:"client_supplied"`
}

// CaseCandidate represents a retrieved item that may be a judgment
type CaseCandidate struct {
	Source              string         `json:"source"`
	Title               string         `json:"title"`
	URL                 string         `json:"url"`
	Snippet             string         `json:"snippet"`
	Court               string         `json:"court"`
	DetailText          string         `json:"detail_text,omitempty"`
	JudgmentDate        string         `json:"judgment_date,omitempty"`
	CiteCount           int            `json:"cite_count,omitempty"`
	EquivalentCitations []string       `json:"equivalent_citations,omitempty"`
	Evidence            *EvidenceFlags `json:"evidence,omitempty"`
	Provenance          *Provenance    `json:"provenance,omitempty"`
}

// Clone returns a copy that shares no mutable state with c
func (c CaseCandidate) Clone() CaseCandidate {
	out := c
	if c.EquivalentCitations != nil {
		out.EquivalentCitations = append([]string(nil), c.EquivalentCitations...)
	}
	if c.Evidence != nil {
		ev := *c.Evidence
		out.Evidence = &ev
	}
	if c.Provenance != nil {
		p := *c.Provenance
		p.SourceTags = append([]string(nil), c.Provenance.SourceTags...)
		if c.Provenance.RerankScore != nil {
			rs := *c.Provenance.RerankScore
			p.RerankScore = &rs
		}
		out.Provenance = &p
	}
	return out
}

// CorpusText is the text a candidate is judged on
func (c CaseCandidate) CorpusText() string {
	text := c.Title + " " + c.Snippet
	if c.DetailText != "" {
		text += " " + c.DetailText
	}
	return text
}

// Kind is the classifier verdict for a candidate
type Kind string

const (
	KindCase    Kind = "case"
	KindStatute Kind = "statute"
	KindNoise   Kind = "noise"
	KindUnknown Kind = "unknown"
)

// ClassifiedCandidate is a candidate tagged by the classifier
type ClassifiedCandidate struct {
	CaseCandidate
	Kind         Kind     `json:"kind"`
	ClassReasons []string `json:"class_reasons,omitempty"`
}

// VectorFilter narrows a semantic vector query
type VectorFilter struct {
	Court    CourtHint `json:"court,omitempty"`
	FromYear int       `json:"from_year,omitempty"`
	ToYear   int       `json:"to_year,omitempty"`
}

// VectorHit is one ranked hit from a semantic vector store
type VectorHit struct {
	DocID         string  `json:"doc_id"`
	ChunkID       string  `json:"chunk_id"`
	Court         string  `json:"court"`
	Text          string  `json:"text"`
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	SourceVersion string  `json:"source_version"`
	JudgmentDate  string  `json:"judgment_date,omitempty"`
	Score         float64 `json:"score"`
}

// AttemptDebug is provider-level metadata about one search call
type AttemptDebug struct {
	Provider   string `json:"provider"`
	HTTPStatus int    `json:"http_status,omitempty"`
	ParserMode string `json:"parser_mode,omitempty"`
	Challenge  bool   `json:"challenge,omitempty"`
	Cloudflare bool   `json:"cloudflare,omitempty"`
	RetryAfter int    `json:"retry_after_seconds,omitempty"`
	Pages      int    `json:"pages,omitempty"`
}

// ProviderResult is what a lexical provider returns for one request
type ProviderResult struct {
	Candidates []CaseCandidate `json:"candidates"`
	Debug      AttemptDebug    `json:"debug"`
}

// Retrieval modes reported by hybrid fusion
const (
	ModeLexicalOnly  = "lexical_only"
	ModeSemanticOnly = "semantic_only"
	ModeHybrid       = "hybrid"
)

// RetrievalBatch is the outcome of one hybrid retrieval for a variant
type RetrievalBatch struct {
	Candidates    []CaseCandidate `json:"candidates"`
	Debug         AttemptDebug    `json:"debug"`
	Mode          string          `json:"mode"`
	SemanticError string          `json:"semantic_error,omitempty"`
	LexicalError  string          `json:"lexical_error,omitempty"`
	RerankApplied bool            `json:"rerank_applied"`
}

// RerankOutcome is the reranker collaborator result
type RerankOutcome struct {
	Candidates []CaseCandidate `json:"candidates"`
	Applied    bool            `json:"applied"`
}
