package search

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindEncountersWindow(t *testing.T) {
	re := regexp2.MustCompile("a", regexp2.None)

	got, err := FindEncounters(re, "0123456789abcdefghij", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Encounter{Context: "56789abcdef", MatchOffset: 5, MatchLength: 1}, got[0])

	got, err = FindEncounters(re, "abc", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Encounter{Context: "abc", MatchOffset: 0, MatchLength: 1}, got[0])
}

func TestFindEncountersCountsCharacters(t *testing.T) {
	re := regexp2.MustCompile("дуб", regexp2.None)
	text := "У лукоморья дуб зелёный"

	got, err := FindEncounters(re, text, 4)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "я дуб з", got[0].Context)
	assert.Equal(t, 2, got[0].MatchOffset)
	assert.Equal(t, 3, got[0].MatchLength)
	assert.Equal(t, "дуб", got[0].matched())
}

func TestFindEncountersBounds(t *testing.T) {
	text := strings.Repeat("лес поле дуб река ", 200)
	re := regexp2.MustCompile(`дуб|ре\w+`, regexp2.None)

	got, err := FindEncounters(re, text, DefaultContextSize)
	require.NoError(t, err)
	require.Len(t, got, 400)

	for i, e := range got {
		n := utf8.RuneCountInString(e.Context)
		assert.GreaterOrEqual(t, e.MatchOffset, 0, "encounter %d", i)
		assert.LessOrEqual(t, e.MatchOffset+e.MatchLength, n, "encounter %d", i)
		assert.LessOrEqual(t, n, DefaultContextSize+e.MatchLength, "encounter %d", i)
	}
	// first and last windows are clipped by the text
	assert.Equal(t, 9, got[0].MatchOffset)
	assert.Equal(t, DefaultContextSize/2, got[len(got)-1].MatchOffset)
}

func TestFindEncountersWindowHoldsSizePlusMatch(t *testing.T) {
	// half the window on each side of the match, so an unclipped window is
	// contextSize + matchLength characters, not contextSize
	text := strings.Repeat("л", 500) + "дуб" + strings.Repeat("р", 500)
	re := regexp2.MustCompile("дуб", regexp2.None)

	got, err := FindEncounters(re, text, DefaultContextSize)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, DefaultContextSize+3, utf8.RuneCountInString(got[0].Context))
	assert.Equal(t, DefaultContextSize/2, got[0].MatchOffset)
	assert.Equal(t, "дуб", got[0].matched())
}

func TestFindEncountersNonOverlapping(t *testing.T) {
	re := regexp2.MustCompile("aa", regexp2.None)
	got, err := FindEncounters(re, "aaaaa", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "aa", got[0].Context)
	assert.Equal(t, "aa", got[1].Context)
}

func TestPatternMatcherTieKeepsRawText(t *testing.T) {
	pm, err := NewPatternMatcher("дуб", DefaultContextSize)
	require.NoError(t, err)

	got, err := pm.Match("старый дуб", "<p>старый дуб</p>")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "<p>старый дуб</p>", got[0].Context)
}

func TestPatternMatcherStrippedWinsWithMoreMatches(t *testing.T) {
	pm, err := NewPatternMatcher(`старый дуб`, DefaultContextSize)
	require.NoError(t, err)

	got, err := pm.Match("старый дуб", "<p>старый</p> <b>дуб</b>")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "старый дуб", got[0].Context)
}

func TestPatternMatcherPrependsGenres(t *testing.T) {
	pm, err := NewPatternMatcher("дуб", DefaultContextSize)
	require.NoError(t, err)

	raw := "<genre>prose</genre><genre>poetry</genre><p>дуб</p>"
	got, err := pm.Match("prose poetry дуб", raw)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, Encounter{Context: "prose", MatchOffset: 0, MatchLength: 5}, got[0])
	assert.Equal(t, Encounter{Context: "poetry", MatchOffset: 0, MatchLength: 6}, got[1])
	assert.Equal(t, "дуб", got[2].matched())
}

func TestPatternMatcherNoMatch(t *testing.T) {
	pm, err := NewPatternMatcher("дуб", DefaultContextSize)
	require.NoError(t, err)

	got, err := pm.Match("береза", "<genre>prose</genre><p>береза</p>")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPatternMatcherEmptyStrippedText(t *testing.T) {
	pm, err := NewPatternMatcher("дуб", DefaultContextSize)
	require.NoError(t, err)

	got, err := pm.Match("", "<p>дуб<p>")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "<p>дуб<p>", got[0].Context)
}

func TestNewPatternMatcherRejectsInvalidQuery(t *testing.T) {
	_, err := NewPatternMatcher("(unclosed", DefaultContextSize)
	assert.Error(t, err)
}
