package repository

import (
	"strings"
	"testing"
	"time"

	"casecite-backend/models"

	"github.com/stretchr/testify/assert"
)

func TestFormatVector(t *testing.T) {
	assert.Equal(t, "[]", formatVector(nil))
	assert.Equal(t, "[0.500000,-1.000000,0.000000]", formatVector([]float32{0.5, -1, 0}))
}

func TestBuildSearchQuery_NoFilter(t *testing.T) {
	query, args := buildSearchQuery("[1]", 5, models.VectorFilter{})

	assert.Equal(t, []interface{}{"[1]", 5}, args)
	assert.Contains(t, query, "LIMIT $2")
	assert.Contains(t, query, "embedding <=> $1::vector")
	assert.NotContains(t, query, "court =")
}

func TestBuildSearchQuery_CourtAndYears(t *testing.T) {
	query, args := buildSearchQuery("[1]", 10, models.VectorFilter{Court: models.CourtSC, FromYear: 2010, ToYear: 2020})

	assert.Equal(t, []interface{}{"[1]", "SC", 2010, 2020, 10}, args)
	assert.Contains(t, query, "court = $2")
	assert.Contains(t, query, ">= $3")
	assert.Contains(t, query, "<= $4")
	assert.Contains(t, query, "LIMIT $5")
}

func TestBuildSearchQuery_AnyCourtIsUnfiltered(t *testing.T) {
	query, args := buildSearchQuery("[1]", 3, models.VectorFilter{Court: models.CourtAny, ToYear: 1999})

	assert.Equal(t, []interface{}{"[1]", 1999, 3}, args)
	assert.False(t, strings.Contains(query, "court ="))
}

func TestWindowStart(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 15, 42, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC), windowStart(ts, 60))
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), windowStart(ts, 3600))
	assert.Equal(t, time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC), windowStart(ts, 0))
}
