package proposition

import (
	"casecite-backend/models"
)

// Tier thresholds on confidence
const (
	StrictMinConfidence      = 0.51
	ProvisionalMinConfidence = 0.30
)

const missingLowConfidence = "sufficient overlap with the query"

// Tiers is the gate's partition of a scored list. Input order is kept
// within each tier.
type Tiers struct {
	StrictExact      []models.ScoredCase
	ProvisionalExact []models.ScoredCase
	NearMisses       []models.NearMissCase
	Excluded         int
}

// AssignTiers places each scored case in a tier.
// Statute and noise items are excluded; judgments that fail a mandatory
// check become near misses with their missing elements spelled out.
func AssignTiers(scored []models.ScoredCase) Tiers {
	var t Tiers
	for _, sc := range scored {
		if sc.Kind != models.KindCase && sc.Kind != models.KindUnknown {
			t.Excluded++
			continue
		}
		v := sc.Verification
		switch {
		case v.MandatoryPassed && sc.Kind == models.KindCase && len(v.MinorGaps) == 0 &&
			sc.ConfidenceScore >= StrictMinConfidence:
			sc.RetrievalTier = models.TierStrictExact
			t.StrictExact = append(t.StrictExact, sc)
		case v.MandatoryPassed && sc.ConfidenceScore >= ProvisionalMinConfidence:
			sc.RetrievalTier = models.TierProvisionalExact
			t.ProvisionalExact = append(t.ProvisionalExact, sc)
		case sc.Score > 0:
			sc.RetrievalTier = models.TierNearMiss
			missing := append([]string(nil), v.MissingElements...)
			if len(missing) == 0 {
				missing = []string{missingLowConfidence}
			}
			t.NearMisses = append(t.NearMisses, models.NearMissCase{ScoredCase: sc, MissingElements: missing})
		default:
			t.Excluded++
		}
	}
	return t
}
