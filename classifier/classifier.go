// Package classifier tags retrieved items as case law, statute text, noise or unknown.
package classifier

import (
	"regexp"
	"strings"

	"casecite-backend/models"
	"casecite-backend/textutil"
)

// Reason tags attached to a verdict
const (
	ReasonPlaceholderTitle = "placeholder_title"
	ReasonPartySeparator   = "title_party_separator"
	ReasonDateStamp        = "title_date_stamp"
	ReasonProcedural       = "title_procedural_keyword"
	ReasonBodyCase         = "body_case_signal"
	ReasonStatuteTitle     = "statute_title"
	ReasonStatuteBody      = "statute_body"
	ReasonCourtTagged      = "court_tagged_long_title"
	ReasonNoSignal         = "no_signal"
)

const minUnknownTitleLen = 25

var placeholderTitles = map[string]bool{
	"":                  true,
	"search":            true,
	"search results":    true,
	"full document":     true,
	"similar judgments": true,
	"similar documents": true,
	"judgments":         true,
	"cited by":          true,
	"citedby":           true,
	"view document":     true,
	"download":          true,
	"print":             true,
	"indian kanoon":     true,
	"next":              true,
	"previous":          true,
	"untitled":          true,
}

var (
	partySeparatorPattern = regexp.MustCompile(`(?i)\S\s+(v|vs|versus)\.?\s+\S`)
	proceduralPattern     = regexp.MustCompile(`(?i)\b(criminal appeal|civil appeal|crl\.?\s?a\.?|crl\.?\s?m\.?\s?c\.?|crl\.?\s?rev\.?|w\.?\s?p\.?\s?\(c\)|writ petition|special leave petition|slp|bail appl(ication|n)|revision petition|transfer petition|review petition|petitioner|appellant|in re)\b`)
	bodyCasePattern       = regexp.MustCompile(`(?i)\b(appellants?|respondents?|petitioners?|learned counsel|impugned (order|judgment)|coram|hon'?ble (mr\.?\s)?justice|the (appeal|petition|application|revision) (is|stands|was) (allowed|dismissed|disposed)|we are of the (view|opinion)|this court (held|has held))\b`)
	statuteTitlePattern   = regexp.MustCompile(`(?i)^\s*(section|article|rule|order)\s+\d+[a-z]?(\(\w+\))*\s+(in|of)\s+(the\s+)?\w`)
	actYearPattern        = regexp.MustCompile(`(?i)\b(act|code|rules|regulations|ordinance|sanhita|adhiniyam)\s*,?\s*(of\s+)?(18|19|20)\d{2}\b`)
	sectionPunishPattern  = regexp.MustCompile(`(?i)\bsection\s+\d+[a-z]?\b.{0,80}\bpunish`)
	courtNamePattern      = regexp.MustCompile(`(?i)\b(supreme court|high court|tribunal|district court|sessions court)\b`)
)

// Classify returns the kind of an item from its text alone.
// Court tagging is inferred from a court name in the title or snippet.
func Classify(title, snippet, detail string) (models.Kind, []string) {
	return classify(title, snippet, detail, courtNamePattern.MatchString(title+" "+snippet))
}

// ClassifyCandidate classifies a candidate, honouring its court tag
func ClassifyCandidate(c models.CaseCandidate) models.ClassifiedCandidate {
	courtTagged := strings.TrimSpace(c.Court) != "" || courtNamePattern.MatchString(c.Title+" "+c.Snippet)
	kind, reasons := classify(c.Title, c.Snippet, c.DetailText, courtTagged)
	return models.ClassifiedCandidate{
		CaseCandidate: c.Clone(),
		Kind:          kind,
		ClassReasons:  reasons,
	}
}

// ClassifyAll classifies candidates in order without touching the input
func ClassifyAll(candidates []models.CaseCandidate) []models.ClassifiedCandidate {
	out := make([]models.ClassifiedCandidate, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, ClassifyCandidate(c))
	}
	return out
}

// IsCaseLike reports whether kind counts toward case-like targets
func IsCaseLike(kind models.Kind) bool {
	return kind == models.KindCase
}

func classify(title, snippet, detail string, courtTagged bool) (models.Kind, []string) {
	t := textutil.CollapseSpace(title)
	if placeholderTitles[strings.ToLower(strings.Trim(t, " .:-|"))] {
		return models.KindNoise, []string{ReasonPlaceholderTitle}
	}
	body := snippet
	if detail != "" {
		body += " " + detail
	}

	titleCase := titleCaseSignals(t)
	bodyCase := bodyCasePattern.MatchString(body)
	titleStatute := isStatuteText(t) || statuteTitlePattern.MatchString(t)
	bodyStatute := isStatuteText(body)

	if len(titleCase) > 0 {
		return models.KindCase, titleCase
	}
	if bodyCase && !titleStatute {
		return models.KindCase, []string{ReasonBodyCase}
	}
	if titleStatute || bodyStatute {
		var reasons []string
		if titleStatute {
			reasons = append(reasons, ReasonStatuteTitle)
		}
		if bodyStatute {
			reasons = append(reasons, ReasonStatuteBody)
		}
		return models.KindStatute, reasons
	}
	if bodyCase {
		return models.KindCase, []string{ReasonBodyCase}
	}
	if courtTagged && len(t) >= minUnknownTitleLen {
		return models.KindUnknown, []string{ReasonCourtTagged}
	}
	return models.KindNoise, []string{ReasonNoSignal}
}

func titleCaseSignals(title string) []string {
	var reasons []string
	if partySeparatorPattern.MatchString(title) {
		reasons = append(reasons, ReasonPartySeparator)
	}
	if textutil.HasDateStamp(title) {
		reasons = append(reasons, ReasonDateStamp)
	}
	if proceduralPattern.MatchString(title) {
		reasons = append(reasons, ReasonProcedural)
	}
	return reasons
}

func isStatuteText(text string) bool {
	return actYearPattern.MatchString(text) || sectionPunishPattern.MatchString(text)
}
