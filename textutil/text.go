// Package textutil holds the text helpers shared by every pipeline stage:
// tokenizing, normalization, URL identity keys and judgment date labels.
package textutil

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// stopwords contains common English and legal filler words excluded from matching
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"being": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "not": true,
	"no": true, "and": true, "or": true, "but": true, "if": true,
	"then": true, "than": true, "so": true, "as": true, "at": true,
	"by": true, "for": true, "from": true, "in": true, "into": true,
	"of": true, "on": true, "to": true, "with": true, "about": true,
	"up": true, "out": true, "it": true, "its": true, "this": true,
	"that": true, "what": true, "which": true, "who": true, "how": true,
	"when": true, "where": true, "why": true, "you": true, "me": true,
	"i": true, "my": true, "your": true, "we": true, "they": true,
	"he": true, "she": true, "her": true, "him": true, "us": true,
	"them": true, "tell": true, "there": true, "any": true, "all": true,
	"case": true, "cases": true, "law": true, "judgment": true, "judgments": true,
	"find": true, "show": true, "need": true, "want": true, "whether": true,
	"under": true, "against": true, "after": true, "before": true, "between": true,
	"his": true, "their": true, "our": true, "also": true, "such": true,
	"some": true, "other": true, "upon": true, "said": true,
}

func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Tokenize splits text into unique lowercase non-stopword tokens in order of appearance
func Tokenize(text string) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, w := range splitWords(text) {
		if len(w) < 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		tokens = append(tokens, w)
	}
	return tokens
}

// TokenSet returns the tokens of text as a set
func TokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range Tokenize(text) {
		set[t] = true
	}
	return set
}

// Normalize lowercases text and collapses everything that is not a letter
// or digit into single spaces
func Normalize(text string) string {
	return strings.Join(splitWords(text), " ")
}

// ContainsTerm reports whether the normalized haystack contains term on word boundaries
func ContainsTerm(normalizedHaystack, term string) bool {
	t := Normalize(term)
	if t == "" {
		return false
	}
	return strings.Contains(" "+normalizedHaystack+" ", " "+t+" ")
}

// Truncate cuts s to at most n runes
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// CollapseSpace trims s and collapses internal whitespace runs
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// URLKey is the canonical identity of a candidate URL.
// Scheme, host case, query order, fragments and trailing slashes do not matter.
func URLKey(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.ToLower(raw), "/")
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	key := host + strings.TrimRight(u.EscapedPath(), "/")
	if u.RawQuery != "" {
		key += "?" + u.Query().Encode()
	}
	return key
}

var months = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "jun": 6, "jul": 7, "aug": 8,
	"sep": 9, "sept": 9, "oct": 10, "nov": 11, "dec": 12,
}

var (
	dateWordPattern    = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)\.?,?\s+((?:19|20)\d{2})\b`)
	dateNumericPattern = regexp.MustCompile(`\b(\d{1,2})[./-](\d{1,2})[./-]((?:19|20)\d{2})\b`)
	dateISOPattern     = regexp.MustCompile(`\b((?:19|20)\d{2})-(\d{2})-(\d{2})\b`)
)

// DateLabel extracts the first judgment date in text as YYYY-MM-DD
func DateLabel(text string) string {
	if m := dateISOPattern.FindStringSubmatch(text); m != nil {
		return formatDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := dateWordPattern.FindStringSubmatch(text); m != nil {
		return formatDate(atoi(m[3]), months[strings.ToLower(m[2])], atoi(m[1]))
	}
	if m := dateNumericPattern.FindStringSubmatch(text); m != nil {
		return formatDate(atoi(m[3]), atoi(m[2]), atoi(m[1]))
	}
	return ""
}

// HasDateStamp reports whether text carries a recognizable judgment date
func HasDateStamp(text string) bool {
	return DateLabel(text) != ""
}

func formatDate(y, m, d int) string {
	if y == 0 || m < 1 || m > 12 || d < 1 || d > 31 {
		return ""
	}
	return strconv.Itoa(y) + "-" + pad2(m) + "-" + pad2(d)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
