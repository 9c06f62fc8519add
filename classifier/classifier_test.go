package classifier

import (
	"testing"

	"casecite-backend/models"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		snippet string
		detail  string
		want    models.Kind
		reason  string
	}{
		{"empty title", "", "appellant was convicted", "", models.KindNoise, ReasonPlaceholderTitle},
		{"placeholder title", "Full Document", "anything", "", models.KindNoise, ReasonPlaceholderTitle},
		{"similar judgments", "Similar Judgments", "", "", models.KindNoise, ReasonPlaceholderTitle},
		{"party separator", "State of Maharashtra vs Rao", "", "", models.KindCase, ReasonPartySeparator},
		{"dated title", "Rao on 12 March, 2019", "", "", models.KindCase, ReasonDateStamp},
		{"procedural title", "Criminal Appeal No. 1234 of 2019", "", "", models.KindCase, ReasonProcedural},
		{"body case signal", "Order on bail", "The learned counsel for the petitioner submitted", "", models.KindCase, ReasonBodyCase},
		{"statute title", "Section 302 in The Indian Penal Code, 1860", "Whoever commits murder shall be punished with death", "", models.KindStatute, ReasonStatuteTitle},
		{"statute title beats body case", "The Prevention of Corruption Act, 1988", "the appellant argued", "", models.KindStatute, ReasonStatuteTitle},
		{"statute body", "Punishment for murder", "Section 302. Whoever commits murder shall be punished", "", models.KindStatute, ReasonStatuteBody},
		{"court tagged long title", "Delhi High Court bulletin on cause lists", "", "", models.KindUnknown, ReasonCourtTagged},
		{"short court title", "High Court", "", "", models.KindNoise, ReasonNoSignal},
		{"no signal", "Weather report", "sunny", "", models.KindNoise, ReasonNoSignal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, reasons := Classify(tt.title, tt.snippet, tt.detail)
			assert.Equal(t, tt.want, kind)
			assert.Contains(t, reasons, tt.reason)
		})
	}
}

func TestClassify_CaseFavouredOverStatute(t *testing.T) {
	kind, _ := Classify("Rajesh vs State", "convicted under Section 302 IPC and punished under the Indian Penal Code, 1860", "")
	assert.Equal(t, models.KindCase, kind)
}

func TestClassifyCandidate_UsesCourtTag(t *testing.T) {
	c := models.CaseCandidate{Title: "Bulletin regarding listing of matters", Court: "HC"}
	assert.Equal(t, models.KindUnknown, ClassifyCandidate(c).Kind)

	c.Court = ""
	assert.Equal(t, models.KindNoise, ClassifyCandidate(c).Kind)
}

func TestClassifyAll_IsPureAndOrderIndependent(t *testing.T) {
	in := []models.CaseCandidate{
		{Title: "A vs B", URL: "u1", EquivalentCitations: []string{"(2019) 3 SCC 1"}},
		{Title: "Section 420 in The Indian Penal Code, 1860", URL: "u2"},
		{Title: "Search", URL: "u3"},
	}
	before := make([]models.CaseCandidate, len(in))
	for i, c := range in {
		before[i] = c.Clone()
	}

	forward := ClassifyAll(in)
	reversed := ClassifyAll([]models.CaseCandidate{in[2], in[1], in[0]})

	assert.Equal(t, before, in)
	for i := range forward {
		r := reversed[len(reversed)-1-i]
		assert.Equal(t, forward[i].Kind, r.Kind)
		assert.Equal(t, forward[i].ClassReasons, r.ClassReasons)
	}

	forward[0].EquivalentCitations[0] = "changed"
	assert.Equal(t, "(2019) 3 SCC 1", in[0].EquivalentCitations[0])
}

func TestIsCaseLike(t *testing.T) {
	assert.True(t, IsCaseLike(models.KindCase))
	assert.False(t, IsCaseLike(models.KindStatute))
	assert.False(t, IsCaseLike(models.KindUnknown))
	assert.False(t, IsCaseLike(models.KindNoise))
}
