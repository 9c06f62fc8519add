package intent

import (
	"testing"

	"casecite-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_CorruptionScenario(t *testing.T) {
	p := Build("Public servant booked under 13(1)(e) of the PC Act for disproportionate assets; was sanction for prosecution required? Supreme Court cases after 2015")

	assert.Equal(t, models.CourtSC, p.CourtHint)
	assert.Equal(t, 2016, p.DateWindow.FromYear)
	assert.Equal(t, 0, p.DateWindow.ToYear)
	assert.Contains(t, p.Statutes, "Section 13(1)(e) PC Act")
	assert.Contains(t, p.Issues, "disproportionate_assets")
	assert.Contains(t, p.Issues, "sanction_for_prosecution")
	assert.Contains(t, p.Actors, "public servant")
	assert.Contains(t, p.Domains, "corruption")
	assert.Contains(t, p.Procedures, "sanction")
	assert.LessOrEqual(t, len(p.Anchors), maxAnchors)
	assert.Contains(t, p.Anchors, "Section 13(1)(e) PC Act")
}

func TestBuild_OrdinaryEnglishIsNotLegalSignal(t *testing.T) {
	p := Build("the accused's 2 brothers threatened the complainant's 3 witnesses")
	assert.Empty(t, p.Statutes)

	p = Build("bail under the SC/ST Prevention of Atrocities Act for a public servant")
	assert.Equal(t, models.CourtAny, p.CourtHint)
}

func TestBuild_IsDeterministic(t *testing.T) {
	q := "Anticipatory bail u/s 438 CrPC for accused in dowry death case"
	assert.Equal(t, Build(q), Build(q))
}

func TestBuild_AnchorsAreCapped(t *testing.T) {
	q := "bail appeal revision writ discharge trial review cognizance sanction quashing accused complainant police wife husband employer employee landlord tenant minor bank"
	p := Build(q)
	assert.Len(t, p.Anchors, maxAnchors)
}

func TestBuild_CleansWhitespace(t *testing.T) {
	p := Build("  quash   FIR\n\tunder Section 482 CrPC ")
	assert.Equal(t, "quash FIR under Section 482 CrPC", p.CleanedQuery)
}

func TestMatchIssues_FirstMatchPerLabel(t *testing.T) {
	issues := MatchIssues("disproportionate assets case under 13(1)(e); disproportionate assets again")
	count := 0
	for _, i := range issues {
		if i == "disproportionate_assets" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestIssuePatterns_PerLabel(t *testing.T) {
	tests := []struct {
		label string
		text  string
	}{
		{"sanction_for_prosecution", "no sanction was obtained before prosecution"},
		{"delay_condonation", "condonation of delay of 400 days in filing appeal"},
		{"quashing_fir", "petition to quash the FIR"},
		{"dowry_death", "dowry death under Section 304-B"},
		{"cruelty", "cruelty by husband u/s 498A"},
		{"cheque_dishonour", "dishonour of cheque for insufficient funds"},
		{"anticipatory_bail", "grant of anticipatory bail"},
		{"default_bail", "default bail under 167(2)"},
		{"regular_bail", "regular bail application"},
		{"electronic_evidence", "certificate under 65B for electronic evidence"},
		{"maintenance", "maintenance to wife and children"},
		{"specific_performance", "suit for specific performance"},
		{"arbitral_award_challenge", "petition to set aside the arbitral award"},
		{"eviction", "eviction of tenant"},
		{"illegal_termination", "wrongful termination of employee"},
		{"limitation_bar", "suit barred by limitation"},
		{"compounding", "compounding of offence"},
		{"illegal_arrest", "illegal detention by police"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Contains(t, MatchIssues(tt.text), tt.label)
		})
	}
}

func TestMatchTables_PerLabel(t *testing.T) {
	assert.Equal(t, []string{"family"}, MatchDomains("divorce and alimony"))
	assert.Contains(t, MatchActors("the complainant and the accused"), "accused")
	assert.Contains(t, MatchActors("the complainant and the accused"), "complainant")
	assert.Equal(t, []string{"condonation of delay"}, MatchProcedures("whether delay can be condoned"))
	assert.Empty(t, MatchDomains("weather forecast for tomorrow"))
}

func TestDetectCourt(t *testing.T) {
	assert.Equal(t, models.CourtSC, DetectCourt("apex court rulings"))
	assert.Equal(t, models.CourtHC, DetectCourt("Delhi High Court"))
	assert.Equal(t, models.CourtAny, DetectCourt("high court and supreme court"))
	assert.Equal(t, models.CourtAny, DetectCourt("bail cases"))
}

func TestDetectCourt_AbbreviationCollisions(t *testing.T) {
	tests := []struct {
		text string
		want models.CourtHint
	}{
		{"bail under the SC/ST Prevention of Atrocities Act for a public servant", models.CourtAny},
		{"offence under the S.C./S.T. Act", models.CourtAny},
		{"SC & ST employees reservation in promotion", models.CourtAny},
		{"SC and ST (Prevention of Atrocities) Act", models.CourtAny},
		{"SC/ST Act appeal decided by the SC", models.CourtSC},
		{"SC/ST Act bail before the Allahabad High Court", models.CourtHC},
		{"statement of HC No. 1432 recorded late", models.CourtAny},
		{"constable HC/2231 deposed", models.CourtAny},
		{"quashing petition in the Bombay HC", models.CourtHC},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectCourt(tt.text))
		})
	}
}

func TestDetectDateWindow(t *testing.T) {
	tests := []struct {
		text string
		want models.DateWindow
	}{
		{"between 2010 and 2018", models.DateWindow{FromYear: 2010, ToYear: 2018}},
		{"from 2018 to 2012", models.DateWindow{FromYear: 2012, ToYear: 2018}},
		{"since 2019", models.DateWindow{FromYear: 2019}},
		{"before 2000", models.DateWindow{ToYear: 1999}},
		{"decided in 2021", models.DateWindow{FromYear: 2021, ToYear: 2021}},
		{"Section 302 IPC", models.DateWindow{}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDateWindow(tt.text))
		})
	}
}

func TestDetectDisjunctions(t *testing.T) {
	d := DetectDisjunctions("quashing or discharge of accused")
	require.Len(t, d, 1)
	assert.Equal(t, models.Disjunction{Left: "quashing", Right: "discharge"}, d[0])

	assert.Len(t, DetectDisjunctions("bail and/or parole for convict"), 1)
	assert.Empty(t, DetectDisjunctions("laws or proceedings about bail"))
	assert.Empty(t, DetectDisjunctions("cases or matters"))
	assert.Empty(t, DetectDisjunctions("tea or coffee"))
}
