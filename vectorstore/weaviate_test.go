package vectorstore

import (
	"context"
	"testing"

	"casecite-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wvmodels "github.com/weaviate/weaviate/entities/models"
)

func TestParseHits(t *testing.T) {
	data := map[string]wvmodels.JSONObject{
		"Get": map[string]interface{}{
			"JudgmentChunk": []interface{}{
				map[string]interface{}{
					"doc_id":        "1001",
					"text":          "anticipatory bail in dowry death",
					"title":         "Rajesh Sharma vs State",
					"url":           "https://indiankanoon.org/doc/1001/",
					"court":         "SC",
					"judgment_date": "2018-07-27",
					"_additional": map[string]interface{}{
						"id":        "6f1c",
						"certainty": 0.91,
					},
				},
				"not an object",
				map[string]interface{}{"text": "missing doc id"},
			},
		},
	}

	hits := parseHits(data, "JudgmentChunk")
	require.Len(t, hits, 1)
	assert.Equal(t, "1001", hits[0].DocID)
	assert.Equal(t, "6f1c", hits[0].ChunkID)
	assert.Equal(t, 0.91, hits[0].Score)
	assert.Equal(t, "2018-07-27", hits[0].JudgmentDate)
	assert.Equal(t, "SC", hits[0].Court)
}

func TestParseHits_Empty(t *testing.T) {
	assert.Nil(t, parseHits(nil, "JudgmentChunk"))
	assert.Nil(t, parseHits(map[string]wvmodels.JSONObject{"Get": map[string]interface{}{}}, "JudgmentChunk"))
}

func TestBuildWhere(t *testing.T) {
	assert.Nil(t, buildWhere(models.VectorFilter{}))
	assert.Nil(t, buildWhere(models.VectorFilter{Court: models.CourtAny}))
	assert.NotNil(t, buildWhere(models.VectorFilter{Court: models.CourtSC}))
	assert.NotNil(t, buildWhere(models.VectorFilter{Court: models.CourtHC, FromYear: 2000, ToYear: 2010}))
}

func TestObjectID_Deterministic(t *testing.T) {
	a := ObjectID("1001", 0)
	assert.Equal(t, a, ObjectID("1001", 0))
	assert.NotEqual(t, a, ObjectID("1001", 1))
	assert.Len(t, string(a), 36)
}

func TestUnconfiguredStore(t *testing.T) {
	var s *WeaviateStore
	assert.False(t, s.IsConfigured())

	empty := NewWeaviateStore(nil)
	_, err := empty.Query(context.Background(), []float32{1}, 5, models.VectorFilter{})
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = empty.Upsert(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
