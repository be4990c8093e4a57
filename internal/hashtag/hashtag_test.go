package hashtag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"Mixed Case With Duplicates", "Loving #React and #webdev! #react", []string{"react", "webdev", "react"}},
		{"No Tags", "just words", []string{}},
		{"Underscores And Digits", "#go_lang #web3", []string{"go_lang", "web3"}},
		{"Bare Hash", "# nothing #", []string{}},
		{"Stops At Punctuation", "#hello-world", []string{"hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.body))
		})
	}
}

func TestExtractCapsAtTen(t *testing.T) {
	t.Parallel()
	body := strings.Repeat("#a ", 12) + "#last"
	tags := Extract(body)
	assert.Len(t, tags, MaxPerPost)
	assert.NotContains(t, tags, "last")
}

func TestPrefixPatternIsLiteral(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `.*%`, PrefixPattern(".*"))
	assert.Equal(t, `100\%\_off%`, PrefixPattern("#100%_OFF"))
	assert.Equal(t, `a\\b%`, PrefixPattern(`a\b`))
}

func TestContainsPattern(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "%jane%", ContainsPattern("  Jane "))
	assert.Equal(t, `%\_x%`, ContainsPattern("_x"))
}

func TestTally(t *testing.T) {
	t.Parallel()
	tags := []string{"react", "webdev", "React", "redux", "go", "react", "redux"}

	got := Tally(tags, "re", 10)
	assert.Equal(t, []Count{{"react", 3}, {"redux", 2}}, got)

	all := Tally(tags, "", 2)
	assert.Equal(t, []Count{{"react", 3}, {"redux", 2}}, all)
}
