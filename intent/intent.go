// Package intent reads a free-text legal scenario into a structured profile.
// Everything here is pure and table driven.
package intent

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"casecite-backend/models"
	"casecite-backend/textutil"
)

const (
	maxAnchors       = 16
	maxContentTokens = 6
	disjunctionSpan  = 4
)

// Build turns raw query text into an intent profile
func Build(query string) models.IntentProfile {
	cleaned := cleanQuery(query)
	normalized := textutil.Normalize(cleaned)

	profile := models.IntentProfile{
		CleanedQuery: cleaned,
		Tokens:       textutil.Tokenize(cleaned),
		Domains:      MatchRules(DomainRules, normalized),
		Issues:       MatchIssues(cleaned),
		Statutes:     ExtractStatutes(cleaned),
		Procedures:   MatchRules(ProcedureRules, normalized),
		Actors:       MatchRules(ActorRules, normalized),
		CourtHint:    DetectCourt(cleaned),
		DateWindow:   DetectDateWindow(cleaned),
		Disjunctions: DetectDisjunctions(cleaned),
	}
	profile.StatuteAliases = ResolveAliases(profile.Statutes)
	profile.Anchors = buildAnchors(profile)
	return profile
}

func cleanQuery(q string) string {
	q = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, q)
	return textutil.CollapseSpace(q)
}

// compactText lowercases, drops periods so abbreviations like "I.P.C." read
// as "ipc", and collapses whitespace
func compactText(text string) string {
	return textutil.CollapseSpace(strings.ReplaceAll(strings.ToLower(text), ".", ""))
}

var (
	supremePattern = regexp.MustCompile(`\b(supreme court|apex court|sc)\b`)
	highPattern    = regexp.MustCompile(`\b(high court|hc)\b`)
	// "SC/ST" is a caste category and "HC No. 12" a head constable
	courtCollisionPattern = regexp.MustCompile(`\bsc\s*(?:/|&|and|-)?\s*sts?\b|\bhc\s*(?:no\b|/\s*\d)`)
)

// DetectCourt returns the court level the query asks for
func DetectCourt(text string) models.CourtHint {
	compact := courtCollisionPattern.ReplaceAllString(compactText(text), " ")
	sc := supremePattern.MatchString(compact)
	hc := highPattern.MatchString(compact)
	switch {
	case sc && !hc:
		return models.CourtSC
	case hc && !sc:
		return models.CourtHC
	default:
		return models.CourtAny
	}
}

const yearExpr = `((?:19|20)\d{2})`

var (
	betweenPattern = regexp.MustCompile(`\bbetween\s+` + yearExpr + `\s+(?:and|to|-)\s+` + yearExpr + `\b`)
	fromToPattern  = regexp.MustCompile(`\bfrom\s+` + yearExpr + `\s+(?:to|till|until|-)\s+` + yearExpr + `\b`)
	afterPattern   = regexp.MustCompile(`\bafter\s+` + yearExpr + `\b`)
	sincePattern   = regexp.MustCompile(`\b(?:since|from)\s+` + yearExpr + `\b`)
	beforePattern  = regexp.MustCompile(`\b(?:before|prior to|until)\s+` + yearExpr + `\b`)
	inYearPattern  = regexp.MustCompile(`\b(?:in|during)\s+(?:the\s+year\s+)?` + yearExpr + `\b`)
)

// DetectDateWindow reads year bounds from phrases like "after 2015" or
// "between 2010 and 2018"
func DetectDateWindow(text string) models.DateWindow {
	compact := compactText(text)
	var w models.DateWindow
	if m := betweenPattern.FindStringSubmatch(compact); m != nil {
		w = models.DateWindow{FromYear: atoi(m[1]), ToYear: atoi(m[2])}
	} else if m := fromToPattern.FindStringSubmatch(compact); m != nil {
		w = models.DateWindow{FromYear: atoi(m[1]), ToYear: atoi(m[2])}
	} else {
		if m := afterPattern.FindStringSubmatch(compact); m != nil {
			w.FromYear = atoi(m[1]) + 1
		} else if m := sincePattern.FindStringSubmatch(compact); m != nil {
			w.FromYear = atoi(m[1])
		}
		if m := beforePattern.FindStringSubmatch(compact); m != nil {
			w.ToYear = atoi(m[1]) - 1
		}
		if w.IsZero() {
			if m := inYearPattern.FindStringSubmatch(compact); m != nil {
				y := atoi(m[1])
				w = models.DateWindow{FromYear: y, ToYear: y}
			}
		}
	}
	if w.FromYear != 0 && w.ToYear != 0 && w.FromYear > w.ToYear {
		w.FromYear, w.ToYear = w.ToYear, w.FromYear
	}
	return w
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// legalTerms are words that make one side of an "or" legally meaningful
var legalTerms = map[string]bool{
	"bail": true, "anticipatory": true, "quash": true, "quashing": true, "fir": true,
	"acquittal": true, "conviction": true, "discharge": true, "sanction": true,
	"appeal": true, "revision": true, "writ": true, "eviction": true, "maintenance": true,
	"divorce": true, "cruelty": true, "dowry": true, "cheating": true, "murder": true,
	"ipc": true, "crpc": true, "bns": true, "bnss": true, "bsa": true, "cpc": true,
	"injunction": true, "decree": true, "custody": true, "parole": true, "probation": true,
	"compounding": true, "cognizance": true, "chargesheet": true, "summons": true,
	"rape": true, "theft": true, "forgery": true, "defamation": true, "negligence": true,
	"article": true, "section": true, "arbitration": true, "award": true, "cheque": true,
	"termination": true, "dismissal": true, "suspension": true, "pension": true,
}

// genericTerms next to a connector make the disjunction meaningless
var genericTerms = map[string]bool{
	"law": true, "laws": true, "proceeding": true, "proceedings": true,
	"matter": true, "matters": true, "case": true, "cases": true,
	"order": true, "orders": true, "rule": true, "rules": true,
	"issue": true, "issues": true, "thing": true, "things": true,
	"court": true, "courts": true, "judgment": true, "judgments": true,
}

var sectionNumberPattern = regexp.MustCompile(`^\d{1,3}[a-z]?(\(\w{1,4}\))*$`)

func isLegalWord(w string) bool {
	return legalTerms[w] || sectionNumberPattern.MatchString(w)
}

// DetectDisjunctions finds "X or Y" alternatives where both sides are legal terms
func DetectDisjunctions(text string) []models.Disjunction {
	words := strings.FieldsFunc(compactText(text), func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';' || r == '?' || r == '!' || r == ':'
	})
	var out []models.Disjunction
	seen := make(map[string]bool)
	for i, w := range words {
		if w != "or" && w != "and/or" {
			continue
		}
		if i == 0 || i == len(words)-1 {
			continue
		}
		if genericTerms[words[i-1]] || genericTerms[words[i+1]] {
			continue
		}
		left := ""
		for j := i - 1; j >= 0 && j >= i-disjunctionSpan; j-- {
			if isLegalWord(words[j]) {
				left = words[j]
				break
			}
		}
		right := ""
		for j := i + 1; j < len(words) && j <= i+disjunctionSpan; j++ {
			if isLegalWord(words[j]) {
				right = words[j]
				break
			}
		}
		if left == "" || right == "" || left == right {
			continue
		}
		key := left + "|" + right
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.Disjunction{Left: left, Right: right})
	}
	return out
}

func buildAnchors(p models.IntentProfile) []string {
	var anchors []string
	seen := make(map[string]bool)
	add := func(a string) {
		key := strings.ToLower(a)
		if a == "" || seen[key] || len(anchors) >= maxAnchors {
			return
		}
		seen[key] = true
		anchors = append(anchors, a)
	}
	for _, s := range p.Statutes {
		add(s)
	}
	for _, s := range p.Procedures {
		add(s)
	}
	for _, s := range p.Actors {
		add(s)
	}
	for _, s := range p.Issues {
		add(IssuePhrase(s))
	}
	covered := make(map[string]bool)
	for _, a := range anchors {
		for _, t := range textutil.Tokenize(a) {
			covered[t] = true
		}
	}
	content := 0
	for _, t := range p.Tokens {
		if content >= maxContentTokens {
			break
		}
		if covered[t] || len(t) < 4 || isNumeric(t) {
			continue
		}
		add(t)
		content++
	}
	return anchors
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
