package scheduler

import (
	"testing"

	"casecite-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dowryProfile() models.IntentProfile {
	return models.IntentProfile{
		CleanedQuery:   "anticipatory bail for husband in dowry death under section 304B IPC",
		Tokens:         []string{"anticipatory", "bail", "husband", "dowry", "death", "section", "304b", "ipc"},
		Issues:         []string{"dowry_death"},
		Statutes:       []string{"Section 304B IPC"},
		StatuteAliases: []models.StatuteAlias{{From: "Section 304B IPC", To: "Section 80 BNS"}},
		Procedures:     []string{"anticipatory bail"},
		Actors:         []string{"husband"},
		Anchors:        []string{"Section 304B IPC", "anticipatory bail", "husband", "dowry death", "relatives"},
		CourtHint:      models.CourtAny,
		DateWindow:     models.DateWindow{FromYear: 2015},
	}
}

func TestCanonicalKey_ParaphraseEquivalent(t *testing.T) {
	assert.Equal(t, CanonicalKey("bail for dowry death"), CanonicalKey("Dowry death, bail"))
	assert.Equal(t, "bail death dowry", CanonicalKey("the dowry death and bail"))
	assert.Empty(t, CanonicalKey("the of and"))
}

func TestBuildVariants_AllPhases(t *testing.T) {
	variants := BuildVariants(dowryProfile(), nil)

	phases := map[models.Phase]int{}
	ids := map[string]bool{}
	for _, v := range variants {
		phases[v.Phase]++
		assert.False(t, ids[v.ID], "duplicate id %s", v.ID)
		ids[v.ID] = true
		assert.NotEmpty(t, v.CanonicalKey)
		assert.Equal(t, 2015, v.Directives.DateFrom)
		assert.NotEmpty(t, v.Directives.DocTypes)
	}
	for _, p := range models.PhaseOrder {
		assert.Positive(t, phases[p], "phase %s has no variants", p)
	}
}

func TestBuildVariants_PrimaryIsStrictAndScoped(t *testing.T) {
	variants := BuildVariants(dowryProfile(), nil)

	scopes := map[models.CourtHint]bool{}
	for _, v := range variants {
		if v.Phase != models.PhasePrimary {
			assert.Equal(t, models.StrictnessRelaxed, v.Strictness)
			continue
		}
		assert.Equal(t, models.StrictnessStrict, v.Strictness)
		scopes[v.CourtScope] = true
	}
	assert.True(t, scopes[models.CourtSC])
	assert.True(t, scopes[models.CourtAny])

	require.NotEmpty(t, variants)
	first := variants[0]
	assert.Equal(t, "primary-1", first.ID)
	assert.Equal(t, "Section 304B IPC dowry death anticipatory bail husband", first.Phrase)
	assert.Equal(t, []string{"supremecourt"}, first.Directives.DocTypes)
}

func TestBuildVariants_PlannerPhrases(t *testing.T) {
	plan := &models.Plan{
		StrictPhrases: []string{"cruelty soon before death"},
		BroadPhrases:  []string{"dowry demand harassment"},
	}
	variants := BuildVariants(dowryProfile(), plan)

	var strict, broad bool
	for _, v := range variants {
		if v.Phase == models.PhasePrimary && v.Phrase == "cruelty soon before death" {
			strict = true
		}
		if v.Phase == models.PhaseFallback && v.Phrase == "dowry demand harassment" {
			broad = true
		}
	}
	assert.True(t, strict)
	assert.True(t, broad)
}

func TestBuildVariants_RescueUsesAlias(t *testing.T) {
	variants := BuildVariants(dowryProfile(), nil)

	var rescue []string
	for _, v := range variants {
		if v.Phase == models.PhaseRescue {
			rescue = append(rescue, v.Phrase)
		}
	}
	assert.Contains(t, rescue, "Section 80 BNS dowry death anticipatory bail husband")
}

func TestBuildVariants_BrowseSinglePage(t *testing.T) {
	variants := BuildVariants(dowryProfile(), nil)

	for _, v := range variants {
		if v.Phase == models.PhaseBrowse {
			assert.Equal(t, 1, v.Directives.MaxPages)
			assert.Equal(t, "dowry death", v.Phrase)
		}
	}
}

func TestBuildVariants_EmptyProfile(t *testing.T) {
	variants := BuildVariants(models.IntentProfile{CleanedQuery: "help", Tokens: []string{"help"}}, nil)

	require.NotEmpty(t, variants)
	for _, v := range variants {
		assert.Equal(t, "help", v.CanonicalKey)
	}
}
