package models

import (
	"time"

	"github.com/google/uuid"
)

// JudgmentChunk represents a chunk of judgment text in the semantic index
type JudgmentChunk struct {
	ID            uuid.UUID              `json:"id"`
	DocID         string                 `json:"doc_id"`
	ChunkIndex    int                    `json:"chunk_index"`
	Text          string                 `json:"text"`
	Title         string                 `json:"title"`
	URL           string                 `json:"url"`
	Court         string                 `json:"court"` // "SC", "HC" or the raw court name
	JudgmentDate  *time.Time             `json:"judgment_date,omitempty"`
	Citations     []string               `json:"citations"`
	SourceVersion string                 `json:"source_version"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Distance      float64                `json:"distance,omitempty"` // Vector similarity distance
}

// ChunkID is the stable identifier exposed on vector hits
func (c JudgmentChunk) ChunkID() string {
	return c.ID.String()
}

// ToHit converts a stored chunk into a ranked vector hit.
// Cosine distance is turned into a similarity score.
func (c JudgmentChunk) ToHit() VectorHit {
	hit := VectorHit{
		DocID:         c.DocID,
		ChunkID:       c.ChunkID(),
		Court:         c.Court,
		Text:          c.Text,
		Title:         c.Title,
		URL:           c.URL,
		SourceVersion: c.SourceVersion,
		Score:         1 - c.Distance,
	}
	if c.JudgmentDate != nil {
		hit.JudgmentDate = c.JudgmentDate.Format("2006-01-02")
	}
	return hit
}
