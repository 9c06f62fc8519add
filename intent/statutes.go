package intent

import (
	"regexp"
	"sort"
	"strings"

	"casecite-backend/models"
)

// Act is one entry in the act lookup table
type Act struct {
	Name  string
	Terms []string

	pattern *regexp.Regexp
}

// Acts is the act lookup table used for explicit and bare section references.
// Longer abbreviations come first so BNSS is not read as BNS.
var Acts = []*Act{
	{Name: "IPC", Terms: []string{"ipc", "indian penal code", "penal code"}},
	{Name: "CrPC", Terms: []string{"crpc", "cr pc", "code of criminal procedure", "criminal procedure code"}},
	{Name: "CPC", Terms: []string{"cpc", "code of civil procedure", "civil procedure code"}},
	{Name: "PC Act", Terms: []string{"pc act", "prevention of corruption act", "prevention of corruption"}},
	{Name: "NI Act", Terms: []string{"ni act", "negotiable instruments act"}},
	{Name: "Evidence Act", Terms: []string{"indian evidence act", "evidence act"}},
	{Name: "BNSS", Terms: []string{"bnss", "bharatiya nagarik suraksha sanhita"}},
	{Name: "BNS", Terms: []string{"bns", "bharatiya nyaya sanhita"}},
	{Name: "BSA", Terms: []string{"bsa", "bharatiya sakshya adhiniyam"}},
	{Name: "NDPS Act", Terms: []string{"ndps act", "ndps", "narcotic drugs and psychotropic substances act"}},
	{Name: "HMA", Terms: []string{"hma", "hindu marriage act"}},
	{Name: "DV Act", Terms: []string{"dv act", "domestic violence act", "protection of women from domestic violence act"}},
	{Name: "Arbitration Act", Terms: []string{"arbitration and conciliation act", "arbitration act"}},
	{Name: "Limitation Act", Terms: []string{"limitation act"}},
	{Name: "Specific Relief Act", Terms: []string{"specific relief act"}},
	{Name: "TP Act", Terms: []string{"tp act", "transfer of property act"}},
	{Name: "Income Tax Act", Terms: []string{"income tax act", "income-tax act"}},
	{Name: "Consumer Protection Act", Terms: []string{"consumer protection act"}},
	{Name: "Constitution", Terms: []string{"constitution of india", "constitution"}},
}

var actsByName = make(map[string]*Act)

func init() {
	for _, a := range Acts {
		quoted := make([]string, len(a.Terms))
		for i, t := range a.Terms {
			quoted[i] = regexp.QuoteMeta(t)
		}
		a.pattern = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
		actsByName[a.Name] = a
	}
}

// ActTerms returns the corpus terms for an act name
func ActTerms(name string) []string {
	if a, ok := actsByName[name]; ok {
		return a.Terms
	}
	return nil
}

const (
	maxStatutes     = 12
	explicitLookFwd = 80
	explicitLookBck = 40
	bareLookBack    = 140
	bareLookFwd     = 50
)

var (
	explicitSectionPattern = regexp.MustCompile(`\b(sections?|sec|s|u/s|under section)\s*(\d{1,3}(?:-?[a-z])?)((?:\s*\(\s*[0-9a-z]{1,4}\s*\))*)`)
	articlePattern         = regexp.MustCompile(`\b(article|art)\s*(\d{1,3}[a-z]?)((?:\s*\(\s*[0-9a-z]{1,4}\s*\))*)`)
	constitutionPattern    = regexp.MustCompile(`\b(constitution|fundamental rights?|writ|articles?)\b`)
	bareSectionPattern     = regexp.MustCompile(`\b(\d{1,3}[a-z]?)((?:\s*\(\s*[0-9a-z]{1,4}\s*\))+)`)
	legalContextPattern    = regexp.MustCompile(`\b(section|sub-section|subsection|clause|provision|offence|offences|act|code|punishable|charged|booked|sanction|under|read with|r/w)\b`)
	nextRefPattern         = regexp.MustCompile(`\b(?:sections?|sec|u/s|article)\s*\d`)
	spacePattern           = regexp.MustCompile(`\s+`)
)

type span struct{ start, end int }

func (s span) overlaps(o span) bool {
	return s.start < o.end && o.start < s.end
}

// ExtractStatutes finds section and article references in text and
// normalizes them like "Section 13(1)(e) PC Act"
func ExtractStatutes(text string) []string {
	compact := compactText(text)

	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s == "" || seen[s] || len(out) >= maxStatutes {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	var claimed []span
	for _, m := range explicitSectionPattern.FindAllStringSubmatchIndex(compact, -1) {
		keyword := compact[m[2]:m[3]]
		ref := sectionRef(compact[m[4]:m[5]], compact[m[6]:m[7]])
		act := nearestAct(compact, m[1], explicitLookFwd, m[0], explicitLookBck)
		// "s 2" reads like ordinary English unless an act or legal term is near
		if keyword == "s" {
			if afterApostrophe(compact, m[0]) {
				continue
			}
			if act == "" && nearestAct(compact, m[1], bareLookFwd, m[0], bareLookBack) == "" && !hasLegalContext(compact, m[0], m[1]) {
				continue
			}
		}
		claimed = append(claimed, span{m[0], m[1]})
		add(formatStatute("Section", ref, act))
	}
	for _, m := range articlePattern.FindAllStringSubmatchIndex(compact, -1) {
		if compact[m[2]:m[3]] == "art" {
			if afterApostrophe(compact, m[0]) {
				continue
			}
			if !hasLegalContext(compact, m[0], m[1]) && !hasConstitutionContext(compact, m[0], m[1]) {
				continue
			}
		}
		claimed = append(claimed, span{m[0], m[1]})
		ref := sectionRef(compact[m[4]:m[5]], compact[m[6]:m[7]])
		add(formatStatute("Article", ref, "Constitution"))
	}
	for _, m := range bareSectionPattern.FindAllStringSubmatchIndex(compact, -1) {
		sp := span{m[0], m[1]}
		if overlapsAny(sp, claimed) {
			continue
		}
		ref := sectionRef(compact[m[2]:m[3]], compact[m[4]:m[5]])
		act := nearestAct(compact, m[1], bareLookFwd, m[0], bareLookBack)
		if act == "" && !hasLegalContext(compact, m[0], m[1]) {
			continue
		}
		claimed = append(claimed, sp)
		add(formatStatute("Section", ref, act))
	}
	return out
}

func afterApostrophe(compact string, start int) bool {
	before := compact[:start]
	return strings.HasSuffix(before, "'") || strings.HasSuffix(before, "’")
}

func hasConstitutionContext(compact string, start, end int) bool {
	lo := start - bareLookBack
	if lo < 0 {
		lo = 0
	}
	hi := end + bareLookFwd
	if hi > len(compact) {
		hi = len(compact)
	}
	return constitutionPattern.MatchString(compact[lo:start]) || constitutionPattern.MatchString(compact[end:hi])
}

func overlapsAny(sp span, claimed []span) bool {
	for _, c := range claimed {
		if sp.overlaps(c) {
			return true
		}
	}
	return false
}

func sectionRef(number, parens string) string {
	return strings.ToUpper(strings.ReplaceAll(number, "-", "")) + spacePattern.ReplaceAllString(parens, "")
}

func formatStatute(kind, ref, act string) string {
	if ref == "" {
		return ""
	}
	if act == "" {
		return kind + " " + ref
	}
	return kind + " " + ref + " " + act
}

// nearestAct looks for an act mention after the reference first, then before it
func nearestAct(compact string, end, fwd, start, back int) string {
	hi := end + fwd
	if hi > len(compact) {
		hi = len(compact)
	}
	ahead := compact[end:hi]
	if loc := nextRefPattern.FindStringIndex(ahead); loc != nil {
		ahead = ahead[:loc[0]]
	}
	if name := firstAct(ahead, false); name != "" {
		return name
	}
	lo := start - back
	if lo < 0 {
		lo = 0
	}
	behind := compact[lo:start]
	if locs := nextRefPattern.FindAllStringIndex(behind, -1); len(locs) > 0 {
		behind = behind[locs[len(locs)-1][1]:]
	}
	return firstAct(behind, true)
}

// firstAct returns the act mentioned closest to the reference within window.
// When last is set the window precedes the reference.
func firstAct(window string, last bool) string {
	best, bestPos := "", -1
	for _, a := range Acts {
		locs := a.pattern.FindAllStringIndex(window, -1)
		if len(locs) == 0 {
			continue
		}
		pos := locs[0][0]
		if last {
			pos = locs[len(locs)-1][0]
		}
		switch {
		case bestPos < 0:
		case !last && pos < bestPos:
		case last && pos > bestPos:
		default:
			continue
		}
		best, bestPos = a.Name, pos
	}
	return best
}

func hasLegalContext(compact string, start, end int) bool {
	lo := start - bareLookBack
	if lo < 0 {
		lo = 0
	}
	hi := end + bareLookFwd
	if hi > len(compact) {
		hi = len(compact)
	}
	return legalContextPattern.MatchString(compact[lo:start]) || legalContextPattern.MatchString(compact[end:hi])
}

// AliasRule links a provision to its counterpart in the replacement code
type AliasRule struct {
	Left  string
	Right string
}

// RecodificationAliases maps repealed code provisions to the 2023 codes.
// Applied in both directions.
var RecodificationAliases = []AliasRule{
	{Left: "Section 302 IPC", Right: "Section 103 BNS"},
	{Left: "Section 304B IPC", Right: "Section 80 BNS"},
	{Left: "Section 376 IPC", Right: "Section 64 BNS"},
	{Left: "Section 406 IPC", Right: "Section 316 BNS"},
	{Left: "Section 420 IPC", Right: "Section 318 BNS"},
	{Left: "Section 498A IPC", Right: "Section 85 BNS"},
	{Left: "Section 438 CrPC", Right: "Section 482 BNSS"},
	{Left: "Section 439 CrPC", Right: "Section 483 BNSS"},
	{Left: "Section 482 CrPC", Right: "Section 528 BNSS"},
	{Left: "Section 167(2) CrPC", Right: "Section 187(3) BNSS"},
	{Left: "Section 125 CrPC", Right: "Section 144 BNSS"},
	{Left: "Section 65B Evidence Act", Right: "Section 63 BSA"},
}

// ResolveAliases returns the counterparts of detected statutes, skipping
// any counterpart that was itself detected
func ResolveAliases(statutes []string) []models.StatuteAlias {
	present := make(map[string]bool, len(statutes))
	for _, s := range statutes {
		present[s] = true
	}
	var out []models.StatuteAlias
	for _, s := range statutes {
		for _, r := range RecodificationAliases {
			switch {
			case s == r.Left && !present[r.Right]:
				out = append(out, models.StatuteAlias{From: s, To: r.Right})
			case s == r.Right && !present[r.Left]:
				out = append(out, models.StatuteAlias{From: s, To: r.Left})
			}
		}
	}
	return out
}

// StatuteTerms returns the phrases that evidence a statute in judgment text:
// the section reference with and without its keyword, plus act names
func StatuteTerms(statute string) []string {
	ref := strings.ToLower(SectionNumber(statute))
	if ref == "" {
		return nil
	}
	kind := strings.ToLower(strings.Fields(statute)[0])
	terms := []string{kind + " " + ref}
	for _, t := range ActTerms(StatuteAct(statute)) {
		terms = append(terms, ref+" "+t)
	}
	if strings.ContainsRune(ref, '(') {
		terms = append(terms, ref)
	}
	sort.SliceStable(terms, func(i, j int) bool { return len(terms[i]) > len(terms[j]) })
	return dedupe(terms)
}

// SectionNumber returns the bare reference of a normalized statute, e.g. "13(1)(e)"
func SectionNumber(statute string) string {
	parts := strings.Fields(statute)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// StatuteAct returns the act of a normalized statute, or ""
func StatuteAct(statute string) string {
	parts := strings.Fields(statute)
	if len(parts) < 3 {
		return ""
	}
	return strings.Join(parts[2:], " ")
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}
