// Package ingest builds the semantic judgment index from a JSONL corpus.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"casecite-backend/intent"
	"casecite-backend/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultChunkWords   = 300
	DefaultOverlapWords = 50
	maxLineBytes        = 16 << 20
)

var ErrInvalidRecord = errors.New("invalid judgment record")

// Record is one judgment line of the corpus file
type Record struct {
	DocID         string                 `json:"doc_id"`
	Title         string                 `json:"title"`
	URL           string                 `json:"url"`
	Court         string                 `json:"court"`
	JudgmentDate  string                 `json:"judgment_date"`
	Citations     []string               `json:"citations"`
	Text          string                 `json:"text"`
	SourceVersion string                 `json:"source_version"`
	Metadata      map[string]interface{} `json:"metadata"`
}

// Validate checks the fields every chunk needs
func (r Record) Validate() error {
	switch {
	case strings.TrimSpace(r.DocID) == "":
		return fmt.Errorf("%w: doc_id is required", ErrInvalidRecord)
	case strings.TrimSpace(r.Text) == "":
		return fmt.Errorf("%w: text is required for %s", ErrInvalidRecord, r.DocID)
	}
	return nil
}

// Embedder embeds chunk texts in order
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Sink stores embedded chunks
type Sink interface {
	Store(ctx context.Context, chunks []models.JudgmentChunk, embeddings [][]float32) error
}

// ExistingCounter reports how many chunks a document already has.
// Sinks that implement it let the ingester skip finished documents.
type ExistingCounter interface {
	CountByDoc(ctx context.Context, docID string) (int, error)
}

// Stats summarizes an ingestion run
type Stats struct {
	Documents int
	Skipped   int
	Failed    int
	Chunks    int
}

// Ingester reads records, chunks, embeds and stores them
type Ingester struct {
	embedder     Embedder
	sink         Sink
	chunkWords   int
	overlapWords int
	limiter      *rate.Limiter
	logger       *zap.Logger
}

// Option is a functional option for Ingester
type Option func(*Ingester)

// WithChunking sets the chunk window and overlap in words
func WithChunking(words, overlap int) Option {
	return func(in *Ingester) {
		if words > 0 {
			in.chunkWords = words
		}
		if overlap >= 0 && overlap < in.chunkWords {
			in.overlapWords = overlap
		}
	}
}

// WithPause spaces documents out to stay under embedding quotas
func WithPause(d time.Duration) Option {
	return func(in *Ingester) {
		if d > 0 {
			in.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(in *Ingester) {
		in.logger = l
	}
}

// New creates an ingester
func New(embedder Embedder, sink Sink, opts ...Option) *Ingester {
	in := &Ingester{
		embedder:     embedder,
		sink:         sink,
		chunkWords:   DefaultChunkWords,
		overlapWords: DefaultOverlapWords,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Run ingests every record in r. Bad records and failed documents are
// logged and counted; only read errors and cancellation stop the run.
func (in *Ingester) Run(ctx context.Context, r io.Reader) (Stats, error) {
	var stats Stats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			in.logger.Warn("Skipping malformed line", zap.Int("line", line), zap.Error(err))
			stats.Failed++
			continue
		}
		if err := rec.Validate(); err != nil {
			in.logger.Warn("Skipping invalid record", zap.Int("line", line), zap.Error(err))
			stats.Failed++
			continue
		}

		n, err := in.ingestRecord(ctx, rec)
		switch {
		case errors.Is(err, errAlreadyIndexed):
			stats.Skipped++
		case err != nil:
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			in.logger.Warn("Failed to ingest document", zap.String("doc_id", rec.DocID), zap.Error(err))
			stats.Failed++
		default:
			stats.Documents++
			stats.Chunks += n
			in.logger.Info("Ingested document", zap.String("doc_id", rec.DocID), zap.Int("chunks", n))
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read corpus: %w", err)
	}
	return stats, nil
}

var errAlreadyIndexed = errors.New("document already indexed")

func (in *Ingester) ingestRecord(ctx context.Context, rec Record) (int, error) {
	if counter, ok := in.sink.(ExistingCounter); ok {
		count, err := counter.CountByDoc(ctx, rec.DocID)
		if err != nil {
			in.logger.Warn("Failed to check existing chunks", zap.String("doc_id", rec.DocID), zap.Error(err))
		} else if count > 0 {
			return 0, errAlreadyIndexed
		}
	}

	if in.limiter != nil {
		if err := in.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	chunks := ChunkRecord(rec, in.chunkWords, in.overlapWords)
	inputs := make([]string, len(chunks))
	for i, c := range chunks {
		inputs[i] = EmbeddingInput(c)
	}
	embeddings, err := in.embedder.EmbedBatch(ctx, inputs)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embedding count mismatch: got %d for %d chunks", len(embeddings), len(chunks))
	}
	if err := in.sink.Store(ctx, chunks, embeddings); err != nil {
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}
	return len(chunks), nil
}

// ChunkRecord splits a judgment into overlapping word windows.
// Chunk ids are stable per document and index.
func ChunkRecord(rec Record, words, overlap int) []models.JudgmentChunk {
	if words <= 0 {
		words = DefaultChunkWords
	}
	if overlap < 0 || overlap >= words {
		overlap = 0
	}
	tokens := strings.Fields(rec.Text)
	date := ParseJudgmentDate(rec.JudgmentDate)
	court := NormalizeCourt(rec.Court)

	var chunks []models.JudgmentChunk
	step := words - overlap
	for start := 0; start < len(tokens); start += step {
		end := start + words
		if end > len(tokens) {
			end = len(tokens)
		}
		idx := len(chunks)
		chunks = append(chunks, models.JudgmentChunk{
			ID:            ChunkID(rec.DocID, idx),
			DocID:         rec.DocID,
			ChunkIndex:    idx,
			Text:          strings.Join(tokens[start:end], " "),
			Title:         strings.TrimSpace(rec.Title),
			URL:           strings.TrimSpace(rec.URL),
			Court:         court,
			JudgmentDate:  date,
			Citations:     rec.Citations,
			SourceVersion: rec.SourceVersion,
			Metadata:      rec.Metadata,
		})
		if end == len(tokens) {
			break
		}
	}
	return chunks
}

// ChunkID is the deterministic id of a chunk
func ChunkID(docID string, index int) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", docID, index)))
}

// NormalizeCourt maps court names onto SC or HC when unambiguous
func NormalizeCourt(court string) string {
	court = strings.TrimSpace(court)
	switch intent.DetectCourt(court) {
	case models.CourtSC:
		return string(models.CourtSC)
	case models.CourtHC:
		return string(models.CourtHC)
	}
	return court
}

var dateLayouts = []string{"2006-01-02", "02-01-2006", "2 January 2006", "January 2, 2006"}

// ParseJudgmentDate accepts the common corpus date layouts
func ParseJudgmentDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// EmbeddingInput prefixes the chunk text with its document context
func EmbeddingInput(c models.JudgmentChunk) string {
	var b strings.Builder
	if c.Title != "" {
		fmt.Fprintf(&b, "[JUDGMENT: %s]\n", c.Title)
	}
	if c.Court != "" {
		fmt.Fprintf(&b, "[COURT: %s]\n", c.Court)
	}
	if c.JudgmentDate != nil {
		fmt.Fprintf(&b, "[DATE: %s]\n", c.JudgmentDate.Format("2006-01-02"))
	}
	if len(c.Citations) > 0 {
		fmt.Fprintf(&b, "[CITATIONS: %s]\n", strings.Join(c.Citations, "; "))
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(c.Text)
	return b.String()
}
