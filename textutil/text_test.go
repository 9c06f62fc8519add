package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tokens := Tokenize("Can the accused seek Anticipatory Bail under Section 438?")
	assert.Equal(t, []string{"accused", "seek", "anticipatory", "bail", "section", "438"}, tokens)
}

func TestTokenize_Deduplicates(t *testing.T) {
	assert.Equal(t, []string{"bail", "granted"}, Tokenize("bail bail BAIL granted"))
}

func TestTokenize_DropsShortTokens(t *testing.T) {
	assert.Empty(t, Tokenize("a b c ."))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "section 13 1 e pc act", Normalize("Section 13(1)(e), PC  Act"))
}

func TestContainsTerm(t *testing.T) {
	hay := Normalize("The petition was allowed and the FIR quashed.")
	assert.True(t, ContainsTerm(hay, "FIR quashed"))
	assert.True(t, ContainsTerm(hay, "allowed"))
	assert.False(t, ContainsTerm(hay, "allow"))
	assert.False(t, ContainsTerm(hay, ""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestURLKey(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"trailing slash", "https://indiankanoon.org/doc/123/", "https://indiankanoon.org/doc/123"},
		{"host case and www", "https://WWW.IndianKanoon.org/doc/123/", "http://indiankanoon.org/doc/123"},
		{"fragment", "https://indiankanoon.org/doc/123/#para5", "https://indiankanoon.org/doc/123/"},
		{"query order", "https://x.org/s?b=2&a=1", "https://x.org/s?a=1&b=2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, URLKey(tt.a), URLKey(tt.b))
		})
	}
	assert.NotEqual(t, URLKey("https://indiankanoon.org/doc/123/"), URLKey("https://indiankanoon.org/doc/124/"))
	assert.Equal(t, "", URLKey("  "))
}

func TestDateLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"State v. Rao on 12 March, 2019", "2019-03-12"},
		{"decided on 3rd Sept 2001", "2001-09-03"},
		{"order dated 05-11-2015", "2015-11-05"},
		{"published 2020-01-31", "2020-01-31"},
		{"Section 302 IPC", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, DateLabel(tt.in))
		})
	}
}
