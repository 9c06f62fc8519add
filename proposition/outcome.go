package proposition

import (
	"casecite-backend/models"
	"casecite-backend/textutil"
)

// Query cues that state the outcome the user needs
var (
	favourableCues   = []string{"granted", "allowed", "quashed", "set aside", "acquitted", "acquittal", "discharged"}
	unfavourableCues = []string{"rejected", "dismissed", "denied", "refused", "cancelled", "convicted", "upheld"}
)

// Judgment phrases that evidence each outcome
var (
	favourableTerms = []string{
		"granted", "allowed", "quashed", "set aside", "acquitted", "discharged",
		"enlarged on bail", "released on bail",
	}
	unfavourableTerms = []string{
		"rejected", "dismissed", "denied", "refused", "cancelled", "convicted", "upheld",
	}
)

// DetectOutcome reads the required outcome polarity from query text.
// Mixed or absent cues give a neutral, non-required constraint.
func DetectOutcome(query string) models.OutcomeConstraint {
	norm := textutil.Normalize(query)
	fav := containsAny(norm, favourableCues)
	unfav := containsAny(norm, unfavourableCues)
	switch {
	case fav && !unfav:
		return OutcomeFor(models.PolarityFavourable, true)
	case unfav && !fav:
		return OutcomeFor(models.PolarityUnfavourable, true)
	default:
		return models.OutcomeConstraint{Polarity: models.PolarityNeutral}
	}
}

// OutcomeFor builds the standard constraint for a polarity
func OutcomeFor(polarity string, required bool) models.OutcomeConstraint {
	switch polarity {
	case models.PolarityFavourable:
		return models.OutcomeConstraint{
			Polarity:           polarity,
			Terms:              append([]string(nil), favourableTerms...),
			ContradictionTerms: append([]string(nil), unfavourableTerms...),
			Required:           required,
		}
	case models.PolarityUnfavourable:
		return models.OutcomeConstraint{
			Polarity:           polarity,
			Terms:              append([]string(nil), unfavourableTerms...),
			ContradictionTerms: append([]string(nil), favourableTerms...),
			Required:           required,
		}
	default:
		return models.OutcomeConstraint{Polarity: models.PolarityNeutral}
	}
}

func containsAny(normalized string, terms []string) bool {
	for _, t := range terms {
		if textutil.ContainsTerm(normalized, t) {
			return true
		}
	}
	return false
}

func matchedTerms(normalized string, terms []string) []string {
	var out []string
	for _, t := range terms {
		if textutil.ContainsTerm(normalized, t) {
			out = append(out, t)
		}
	}
	return out
}
