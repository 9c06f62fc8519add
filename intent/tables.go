package intent

import (
	"regexp"

	"casecite-backend/textutil"
)

// Rule is one keyword table entry: the label applies when any term appears
type Rule struct {
	Label string
	Terms []string
}

// IssuePattern is one ordered issue matcher. A label may appear more than once;
// the first pattern that matches wins for that label.
type IssuePattern struct {
	Label   string
	Pattern *regexp.Regexp
}

// DomainRules classify the area of law
var DomainRules = []Rule{
	{Label: "criminal", Terms: []string{"fir", "accused", "bail", "ipc", "crpc", "bns", "bnss", "prosecution", "offence", "conviction", "acquittal", "murder", "cheating", "police", "chargesheet", "charge sheet", "trial court", "sessions"}},
	{Label: "corruption", Terms: []string{"corruption", "bribe", "bribery", "disproportionate assets", "pc act", "prevention of corruption", "public servant", "illegal gratification"}},
	{Label: "family", Terms: []string{"divorce", "maintenance", "dowry", "custody", "matrimonial", "hindu marriage", "domestic violence", "alimony", "hma"}},
	{Label: "civil", Terms: []string{"suit", "decree", "injunction", "specific performance", "plaintiff", "defendant", "cpc", "civil"}},
	{Label: "commercial", Terms: []string{"cheque", "negotiable instruments", "ni act", "arbitration", "arbitral", "contract", "commercial"}},
	{Label: "constitutional", Terms: []string{"writ", "fundamental right", "fundamental rights", "constitution", "mandamus", "certiorari", "habeas corpus", "article"}},
	{Label: "property", Terms: []string{"property", "land", "tenant", "landlord", "eviction", "possession", "transfer of property", "sale deed"}},
	{Label: "service", Terms: []string{"service", "dismissal", "termination", "employee", "promotion", "pension", "disciplinary"}},
	{Label: "tax", Terms: []string{"income tax", "assessment", "reassessment", "gst", "tax"}},
	{Label: "narcotics", Terms: []string{"ndps", "narcotic", "narcotics", "contraband", "psychotropic", "ganja", "heroin"}},
}

// ActorRules name the parties a query is about
var ActorRules = []Rule{
	{Label: "accused", Terms: []string{"accused", "applicant accused", "suspect"}},
	{Label: "complainant", Terms: []string{"complainant", "informant", "victim"}},
	{Label: "public servant", Terms: []string{"public servant", "government servant", "government employee", "officer", "official"}},
	{Label: "police", Terms: []string{"police", "investigating officer", "io", "sho"}},
	{Label: "state", Terms: []string{"state", "prosecution", "government"}},
	{Label: "wife", Terms: []string{"wife", "married woman"}},
	{Label: "husband", Terms: []string{"husband", "in laws", "in-laws"}},
	{Label: "employer", Terms: []string{"employer", "management"}},
	{Label: "employee", Terms: []string{"employee", "workman", "worker"}},
	{Label: "landlord", Terms: []string{"landlord", "lessor", "owner"}},
	{Label: "tenant", Terms: []string{"tenant", "lessee"}},
	{Label: "drawer", Terms: []string{"drawer"}},
	{Label: "bank", Terms: []string{"bank", "financial institution"}},
	{Label: "minor", Terms: []string{"minor", "child", "juvenile"}},
}

// ProcedureRules name the proceeding or remedy sought
var ProcedureRules = []Rule{
	{Label: "anticipatory bail", Terms: []string{"anticipatory bail", "pre arrest bail"}},
	{Label: "regular bail", Terms: []string{"regular bail"}},
	{Label: "default bail", Terms: []string{"default bail", "statutory bail"}},
	{Label: "bail", Terms: []string{"bail"}},
	{Label: "quashing", Terms: []string{"quash", "quashing", "quashed", "inherent powers"}},
	{Label: "appeal", Terms: []string{"appeal", "appellate"}},
	{Label: "revision", Terms: []string{"revision", "revisional"}},
	{Label: "writ petition", Terms: []string{"writ petition", "writ"}},
	{Label: "discharge", Terms: []string{"discharge"}},
	{Label: "condonation of delay", Terms: []string{"condonation", "condone", "condoned"}},
	{Label: "sanction", Terms: []string{"sanction"}},
	{Label: "trial", Terms: []string{"trial"}},
	{Label: "review", Terms: []string{"review petition", "review"}},
	{Label: "cognizance", Terms: []string{"cognizance", "cognisance"}},
	{Label: "transfer petition", Terms: []string{"transfer petition"}},
	{Label: "interim relief", Terms: []string{"interim relief", "stay", "interim maintenance", "interim injunction"}},
}

// IssuePatterns detect legal issues, evaluated in order
var IssuePatterns = []IssuePattern{
	{Label: "sanction_for_prosecution", Pattern: regexp.MustCompile(`\bsanction\b.{0,40}\bprosecut`)},
	{Label: "sanction_for_prosecution", Pattern: regexp.MustCompile(`\bprosecution sanction\b|\b(section )?19 pc act\b|\b197 crpc\b`)},
	{Label: "disproportionate_assets", Pattern: regexp.MustCompile(`\bdisproportionate\s+(to\s+\w+\s+)?assets\b`)},
	{Label: "disproportionate_assets", Pattern: regexp.MustCompile(`\b13\s*\(\s*1\s*\)\s*\(\s*e\s*\)`)},
	{Label: "delay_condonation", Pattern: regexp.MustCompile(`\bcondon\w*\s+(of\s+)?(the\s+)?delay\b|\bdelay\s+(of\s+\d+\s+days\s+)?(in\s+\w+\s+)?(was\s+|is\s+)?condon`)},
	{Label: "quashing_fir", Pattern: regexp.MustCompile(`\bquash\w*\b.{0,30}\b(fir|first information report|chargesheet|charge sheet|criminal proceedings|complaint)\b`)},
	{Label: "quashing_fir", Pattern: regexp.MustCompile(`\b(fir|chargesheet|charge sheet|criminal proceedings)\b.{0,30}\bquash`)},
	{Label: "dowry_death", Pattern: regexp.MustCompile(`\bdowry\s+death\b|\b304\s*-?\s*b\b`)},
	{Label: "cruelty", Pattern: regexp.MustCompile(`\bcruelty\b|\b498\s*-?\s*a\b`)},
	{Label: "cheque_dishonour", Pattern: regexp.MustCompile(`\bcheque\w*\s+(was\s+)?(bounce|dishono)|\bdishono\w*\s+of\s+(a\s+|the\s+)?cheque|\b138\s+(of\s+(the\s+)?)?(ni|negotiable)`)},
	{Label: "anticipatory_bail", Pattern: regexp.MustCompile(`\banticipatory\s+bail\b|\b438\b`)},
	{Label: "default_bail", Pattern: regexp.MustCompile(`\b(default|statutory)\s+bail\b|\b167\s*\(\s*2\s*\)`)},
	{Label: "regular_bail", Pattern: regexp.MustCompile(`\bregular\s+bail\b|\b439\b`)},
	{Label: "electronic_evidence", Pattern: regexp.MustCompile(`\b65\s*-?\s*b\b|\belectronic\s+(evidence|record)`)},
	{Label: "maintenance", Pattern: regexp.MustCompile(`\bmaintenance\b.{0,30}\b(wife|children|child|parents)\b|\b125\s+(of\s+(the\s+)?)?crpc\b`)},
	{Label: "specific_performance", Pattern: regexp.MustCompile(`\bspecific\s+performance\b`)},
	{Label: "arbitral_award_challenge", Pattern: regexp.MustCompile(`\b(set\s+aside|setting\s+aside|challeng\w*)\b.{0,30}\barbitral\s+award\b|\bsection\s+34\b.{0,30}\barbitration\b`)},
	{Label: "eviction", Pattern: regexp.MustCompile(`\beviction\b|\bevict\w*\b`)},
	{Label: "illegal_termination", Pattern: regexp.MustCompile(`\b(illegal|wrongful|arbitrary)\s+(termination|dismissal|removal)\b`)},
	{Label: "limitation_bar", Pattern: regexp.MustCompile(`\bbarred\s+by\s+limitation\b|\btime\s*-?\s*barred\b`)},
	{Label: "compounding", Pattern: regexp.MustCompile(`\bcompound\w*\s+(of\s+)?(the\s+)?offen`)},
	{Label: "illegal_arrest", Pattern: regexp.MustCompile(`\b(illegal|unlawful)\s+(arrest|detention)\b`)},
}

// MatchRules returns the labels of rules with at least one term in the normalized text
func MatchRules(rules []Rule, normalized string) []string {
	var labels []string
	seen := make(map[string]bool)
	for _, r := range rules {
		if seen[r.Label] {
			continue
		}
		for _, term := range r.Terms {
			if textutil.ContainsTerm(normalized, term) {
				seen[r.Label] = true
				labels = append(labels, r.Label)
				break
			}
		}
	}
	return labels
}

// MatchDomains returns the domains mentioned in text
func MatchDomains(text string) []string {
	return MatchRules(DomainRules, textutil.Normalize(text))
}

// MatchActors returns the actors mentioned in text
func MatchActors(text string) []string {
	return MatchRules(ActorRules, textutil.Normalize(text))
}

// MatchProcedures returns the procedures mentioned in text
func MatchProcedures(text string) []string {
	return MatchRules(ProcedureRules, textutil.Normalize(text))
}

// MatchIssues runs the ordered issue patterns over text.
// The first matching pattern wins for its label and labels are never repeated.
func MatchIssues(text string) []string {
	compact := compactText(text)
	var labels []string
	seen := make(map[string]bool)
	for _, p := range IssuePatterns {
		if seen[p.Label] {
			continue
		}
		if p.Pattern.MatchString(compact) {
			seen[p.Label] = true
			labels = append(labels, p.Label)
		}
	}
	return labels
}

// IssuePhrase turns an issue label into searchable text
func IssuePhrase(label string) string {
	out := []rune(label)
	for i, r := range out {
		if r == '_' {
			out[i] = ' '
		}
	}
	return string(out)
}
