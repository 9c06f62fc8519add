// Package diversity removes duplicate and over-represented judgments from a
// ranked list. Filtering is a single ordered pass: earlier items win.
package diversity

import (
	"regexp"
	"sort"
	"strings"

	"casecite-backend/models"
	"casecite-backend/textutil"
)

// Drop reasons reported by Filter
const (
	DropCitation     = "citation"
	DropSemantic     = "semantic"
	DropDocument     = "document"
	DropFingerprint  = "fingerprint"
	DropLegalCore    = "legal_core"
	DropTitleSnippet = "title_snippet_cap"
	DropCourtDay     = "court_day_cap"
)

// Config bounds repetition. Fingerprint thresholds are heuristics, not a
// guaranteed-correct dedup.
type Config struct {
	TitleSnippetCap   int `yaml:"title_snippet_cap"`
	CourtDayCap       int `yaml:"court_day_cap"`
	BodyPrefixChars   int `yaml:"body_prefix_chars"`
	MinBodyChars      int `yaml:"min_body_chars"`
	CoreTokens        int `yaml:"core_tokens"`
	MinCoreTokens     int `yaml:"min_core_tokens"`
	TitleSnippetChars int `yaml:"title_snippet_chars"`
}

// DefaultConfig returns the default caps
func DefaultConfig() Config {
	return Config{
		TitleSnippetCap:   1,
		CourtDayCap:       2,
		BodyPrefixChars:   160,
		MinBodyChars:      120,
		CoreTokens:        8,
		MinCoreTokens:     6,
		TitleSnippetChars: 200,
	}
}

// Item is the view of one element the filter reads
type Item struct {
	Title        string
	Snippet      string
	DetailText   string
	URL          string
	Court        string
	JudgmentDate string
	Citations    []string
	SemanticHash string
}

// CaseItem builds the view of a candidate
func CaseItem(c models.CaseCandidate) Item {
	it := Item{
		Title:        c.Title,
		Snippet:      c.Snippet,
		DetailText:   c.DetailText,
		URL:          c.URL,
		Court:        c.Court,
		JudgmentDate: c.JudgmentDate,
		Citations:    c.EquivalentCitations,
	}
	if c.Provenance != nil {
		it.SemanticHash = c.Provenance.SemanticDocID
	}
	return it
}

// Report counts what the filter removed
type Report struct {
	Input   int            `json:"input"`
	Kept    int            `json:"kept"`
	Dropped map[string]int `json:"dropped,omitempty"`
}

var docIDPattern = regexp.MustCompile(`/(?:doc|docfragment)/(\d+)`)

// Filter keeps the first item of every identity and enforces the caps.
// Call it after final ranking.
func Filter[T any](items []T, view func(T) Item, cfg Config) ([]T, Report) {
	rep := Report{Input: len(items), Dropped: make(map[string]int)}
	views := make([]Item, len(items))
	for i, it := range items {
		views[i] = view(it)
	}
	df := documentFrequency(views)

	emitted := make(map[string]bool)
	titleSnippet := make(map[string]int)
	courtDay := make(map[string]int)
	out := make([]T, 0, len(items))

	for i, it := range items {
		v := views[i]
		keys := identityKeys(v, df, cfg)
		if reason, dup := firstEmitted(keys, emitted); dup {
			rep.Dropped[reason]++
			continue
		}
		ts := titleSnippetKey(v, cfg)
		if ts != "" && cfg.TitleSnippetCap > 0 && titleSnippet[ts] >= cfg.TitleSnippetCap {
			rep.Dropped[DropTitleSnippet]++
			continue
		}
		cd := courtDayKey(v)
		if cd != "" && cfg.CourtDayCap > 0 && courtDay[cd] >= cfg.CourtDayCap {
			rep.Dropped[DropCourtDay]++
			continue
		}

		for _, k := range keys {
			emitted[k.value] = true
		}
		if ts != "" {
			titleSnippet[ts]++
		}
		if cd != "" {
			courtDay[cd]++
		}
		out = append(out, it)
	}
	rep.Kept = len(out)
	return out, rep
}

type identityKey struct {
	reason string
	value  string
}

func firstEmitted(keys []identityKey, emitted map[string]bool) (string, bool) {
	for _, k := range keys {
		if emitted[k.value] {
			return k.reason, true
		}
	}
	return "", false
}

// identityKeys returns the ordered identity keys of one item
func identityKeys(v Item, df map[string]int, cfg Config) []identityKey {
	var keys []identityKey
	for _, c := range v.Citations {
		if n := textutil.Normalize(c); n != "" {
			keys = append(keys, identityKey{DropCitation, "cite:" + n})
		}
	}
	if v.SemanticHash != "" {
		keys = append(keys, identityKey{DropSemantic, "sem:" + v.SemanticHash})
	}
	if m := docIDPattern.FindStringSubmatch(v.URL); m != nil {
		keys = append(keys, identityKey{DropDocument, "doc:" + m[1]})
	}

	court := textutil.Normalize(v.Court)
	date := dateLabel(v)
	body := textutil.Normalize(bodyText(v))
	if len(body) >= cfg.MinBodyChars && cfg.MinBodyChars > 0 {
		keys = append(keys, identityKey{DropFingerprint, "fp:" + court + "|" + date + "|" + textutil.Truncate(body, cfg.BodyPrefixChars)})
	}
	if date != "" {
		if core := coreTokens(body, df, cfg); len(core) >= cfg.MinCoreTokens && cfg.MinCoreTokens > 0 {
			keys = append(keys, identityKey{DropLegalCore, "core:" + court + "|" + date + "|" + strings.Join(core, " ")})
		}
	}
	return keys
}

// coreTokens picks the least frequent content tokens of a body, sorted
func coreTokens(body string, df map[string]int, cfg Config) []string {
	var tokens []string
	for _, t := range textutil.Tokenize(body) {
		if len(t) >= 4 && !isDigits(t) {
			tokens = append(tokens, t)
		}
	}
	sort.SliceStable(tokens, func(i, j int) bool {
		if df[tokens[i]] != df[tokens[j]] {
			return df[tokens[i]] < df[tokens[j]]
		}
		return tokens[i] < tokens[j]
	})
	if len(tokens) > cfg.CoreTokens {
		tokens = tokens[:cfg.CoreTokens]
	}
	sort.Strings(tokens)
	return tokens
}

func documentFrequency(views []Item) map[string]int {
	df := make(map[string]int)
	for _, v := range views {
		for _, t := range textutil.Tokenize(bodyText(v)) {
			df[t]++
		}
	}
	return df
}

func titleSnippetKey(v Item, cfg Config) string {
	title := textutil.Normalize(v.Title)
	snippet := textutil.Truncate(textutil.Normalize(v.Snippet), cfg.TitleSnippetChars)
	if title == "" && snippet == "" {
		return ""
	}
	return title + "|" + snippet
}

func courtDayKey(v Item) string {
	court := textutil.Normalize(v.Court)
	date := dateLabel(v)
	if court == "" || date == "" {
		return ""
	}
	return court + "|" + date
}

func dateLabel(v Item) string {
	if d := textutil.DateLabel(v.JudgmentDate); d != "" {
		return d
	}
	return textutil.DateLabel(v.Title + " " + v.Snippet)
}

func bodyText(v Item) string {
	if strings.TrimSpace(v.DetailText) != "" {
		return v.DetailText
	}
	return v.Snippet
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
