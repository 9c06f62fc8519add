package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"casecite-backend/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

type memorySink struct {
	stored   map[string][]models.JudgmentChunk
	existing map[string]int
}

func newMemorySink() *memorySink {
	return &memorySink{stored: map[string][]models.JudgmentChunk{}, existing: map[string]int{}}
}

func (m *memorySink) Store(_ context.Context, chunks []models.JudgmentChunk, _ [][]float32) error {
	for _, c := range chunks {
		m.stored[c.DocID] = append(m.stored[c.DocID], c)
	}
	return nil
}

func (m *memorySink) CountByDoc(_ context.Context, docID string) (int, error) {
	return m.existing[docID], nil
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "w"
	}
	return strings.Join(parts, " ")
}

func TestChunkRecordWindows(t *testing.T) {
	rec := Record{DocID: "doc-1", Title: "State v. Rao", Court: "Supreme Court of India", JudgmentDate: "2019-03-04", Text: words(25)}
	chunks := ChunkRecord(rec, 10, 2)

	require.Len(t, chunks, 3)
	assert.Equal(t, 10, len(strings.Fields(chunks[0].Text)))
	assert.Equal(t, 10, len(strings.Fields(chunks[1].Text)))
	assert.Equal(t, 9, len(strings.Fields(chunks[2].Text)))
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, "SC", c.Court)
		require.NotNil(t, c.JudgmentDate)
		assert.Equal(t, 2019, c.JudgmentDate.Year())
	}
	assert.Equal(t, ChunkID("doc-1", 1), chunks[1].ID)
	assert.NotEqual(t, chunks[0].ID, chunks[1].ID)
}

func TestChunkRecordShortText(t *testing.T) {
	chunks := ChunkRecord(Record{DocID: "d", Text: "only a few words"}, 300, 50)
	require.Len(t, chunks, 1)
	assert.Equal(t, "only a few words", chunks[0].Text)
}

func TestNormalizeCourt(t *testing.T) {
	assert.Equal(t, "SC", NormalizeCourt("Supreme Court of India"))
	assert.Equal(t, "HC", NormalizeCourt("Bombay High Court"))
	assert.Equal(t, "NCDRC", NormalizeCourt(" NCDRC "))
}

func TestParseJudgmentDate(t *testing.T) {
	assert.NotNil(t, ParseJudgmentDate("2020-01-15"))
	assert.NotNil(t, ParseJudgmentDate("15-01-2020"))
	assert.Nil(t, ParseJudgmentDate("sometime"))
	assert.Nil(t, ParseJudgmentDate(""))
}

func TestEmbeddingInputHeader(t *testing.T) {
	date := ParseJudgmentDate("2018-07-01")
	got := EmbeddingInput(models.JudgmentChunk{Title: "A v. B", Court: "HC", JudgmentDate: date, Text: "held"})
	want := "[JUDGMENT: A v. B]\n[COURT: HC]\n[DATE: 2018-07-01]\n\nheld"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("embedding input mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "bare", EmbeddingInput(models.JudgmentChunk{Text: "bare"}))
}

func TestRunCountsOutcomes(t *testing.T) {
	corpus := strings.Join([]string{
		`{"doc_id":"a","title":"A","text":"` + words(12) + `"}`,
		``,
		`not json`,
		`{"doc_id":"b","text":""}`,
		`{"doc_id":"c","title":"C","text":"short"}`,
	}, "\n")

	sink := newMemorySink()
	sink.existing["c"] = 2
	emb := &fakeEmbedder{}
	in := New(emb, sink, WithChunking(10, 0))

	stats, err := in.Run(context.Background(), strings.NewReader(corpus))
	require.NoError(t, err)
	assert.Equal(t, Stats{Documents: 1, Skipped: 1, Failed: 2, Chunks: 2}, stats)
	assert.Len(t, sink.stored["a"], 2)
	assert.Equal(t, 1, emb.calls)
}

func TestRunContinuesAfterEmbedFailure(t *testing.T) {
	corpus := `{"doc_id":"a","text":"one"}` + "\n" + `{"doc_id":"b","text":"two"}`
	emb := &fakeEmbedder{err: errors.New("quota")}
	stats, err := New(emb, newMemorySink()).Run(context.Background(), strings.NewReader(corpus))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 2, emb.calls)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(&fakeEmbedder{}, newMemorySink()).Run(ctx, strings.NewReader(`{"doc_id":"a","text":"x"}`))
	assert.ErrorIs(t, err, context.Canceled)
}

type countingUpserter struct{ accept int }

func (c countingUpserter) Upsert(_ context.Context, chunks []models.JudgmentChunk, _ [][]float32) (int, error) {
	if c.accept >= 0 {
		return c.accept, nil
	}
	return len(chunks), nil
}

func TestWeaviateSinkPartialWrite(t *testing.T) {
	chunks := []models.JudgmentChunk{{DocID: "a"}, {DocID: "a", ChunkIndex: 1}}
	assert.NoError(t, WeaviateSink{Upserter: countingUpserter{accept: -1}}.Store(context.Background(), chunks, nil))
	assert.Error(t, WeaviateSink{Upserter: countingUpserter{accept: 1}}.Store(context.Background(), chunks, nil))
}
