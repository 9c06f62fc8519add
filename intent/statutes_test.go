package intent

import (
	"testing"

	"casecite-backend/models"

	"github.com/stretchr/testify/assert"
)

func TestExtractStatutes_ExplicitForms(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"section with act", "conviction under Section 302 IPC", []string{"Section 302 IPC"}},
		{"abbreviation with dots", "charged u/s 420 I.P.C.", []string{"Section 420 IPC"}},
		{"subsection", "bail under Section 167(2) of the Code of Criminal Procedure", []string{"Section 167(2) CrPC"}},
		{"letter suffix", "Section 498a IPC and Section 304-b", []string{"Section 498A IPC", "Section 304B IPC"}},
		{"act before section", "NI Act section 138 complaint", []string{"Section 138 NI Act"}},
		{"article", "violation of Article 21", []string{"Article 21 Constitution"}},
		{"two sections two acts", "Section 438 CrPC and Section 302 IPC", []string{"Section 438 CrPC", "Section 302 IPC"}},
		{"bnss not bns", "Section 482 BNSS", []string{"Section 482 BNSS"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractStatutes(tt.text))
		})
	}
}

func TestExtractStatutes_BareForms(t *testing.T) {
	assert.Equal(t, []string{"Section 13(1)(e) PC Act"}, ExtractStatutes("case under 13(1)(e) of the Prevention of Corruption Act"))
	assert.Equal(t, []string{"Section 13(1)(e)"}, ExtractStatutes("the offence punishable under 13(1)(e)"))
	assert.Empty(t, ExtractStatutes("he paid 12(3) installments"))
}

func TestExtractStatutes_ShortForms(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"s dot with act", "convicted under s. 302 IPC", []string{"Section 302 IPC"}},
		{"s with legal context", "petition for quashing under s 482", []string{"Section 482"}},
		{"art with legal context", "relief claimed under art 21", []string{"Article 21 Constitution"}},
		{"art near writ", "art 226 writ petition against the order", []string{"Article 226 Constitution"}},
		{"possessive numbers", "the accused's 2 brothers threatened the complainant's 3 witnesses", nil},
		{"curly possessive", "the accused’s 2 brothers threatened the complainant’s 3 witnesses", nil},
		{"possessive beside a real section", "the accused's 2 brothers were charged under Section 498A IPC", []string{"Section 498A IPC"}},
		{"plain s without context", "it took 5 s 2 seconds", nil},
		{"plain art without context", "the art 3 students painted a mural", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractStatutes(tt.text)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractStatutes_Deduplicates(t *testing.T) {
	assert.Equal(t, []string{"Section 302 IPC"}, ExtractStatutes("Section 302 IPC ... section 302 of IPC"))
}

func TestExtractStatutes_Capped(t *testing.T) {
	text := "Sections 1 IPC, sec 2 IPC, sec 3 IPC, sec 4 IPC, sec 5 IPC, sec 6 IPC, sec 7 IPC, sec 8 IPC, sec 9 IPC, sec 10 IPC, sec 11 IPC, sec 12 IPC, sec 13 IPC, sec 14 IPC"
	assert.Len(t, ExtractStatutes(text), maxStatutes)
}

func TestResolveAliases_BothDirections(t *testing.T) {
	assert.Equal(t,
		[]models.StatuteAlias{{From: "Section 302 IPC", To: "Section 103 BNS"}},
		ResolveAliases([]string{"Section 302 IPC"}))
	assert.Equal(t,
		[]models.StatuteAlias{{From: "Section 482 BNSS", To: "Section 438 CrPC"}},
		ResolveAliases([]string{"Section 482 BNSS"}))
	assert.Empty(t, ResolveAliases([]string{"Section 302 IPC", "Section 103 BNS"}))
	assert.Empty(t, ResolveAliases([]string{"Article 21 Constitution"}))
}

func TestStatuteTerms(t *testing.T) {
	terms := StatuteTerms("Section 13(1)(e) PC Act")
	assert.Contains(t, terms, "section 13(1)(e)")
	assert.Contains(t, terms, "13(1)(e) pc act")
	assert.Contains(t, terms, "13(1)(e)")
	assert.Nil(t, StatuteTerms("Section"))
	assert.Equal(t, "13(1)(e)", SectionNumber("Section 13(1)(e) PC Act"))
	assert.Equal(t, "PC Act", StatuteAct("Section 13(1)(e) PC Act"))
}
