package search

import (
	"fmt"

	"github.com/dlclark/regexp2"
)

const (
	// DefaultContextSize is the width of the text window around a match, in characters.
	DefaultContextSize = 300

	genrePattern = `(?<=<genre>).*?(?=</genre>)`
)

// Encounter is one match with its surrounding window. MatchOffset and
// MatchLength are in characters (runes) relative to Context.
type Encounter struct {
	Context     string
	MatchOffset int
	MatchLength int
}

// matched returns the matched text itself
func (e Encounter) matched() string {
	_, match, _ := SplitEncounter(e)
	return match
}

// PatternMatcher finds query matches in entry text and builds context windows
type PatternMatcher struct {
	query       *regexp2.Regexp
	genre       *regexp2.Regexp
	contextSize int
}

// NewPatternMatcher compiles the query once for a whole search step
func NewPatternMatcher(query string, contextSize int) (*PatternMatcher, error) {
	re, err := regexp2.Compile(query, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", query, err)
	}
	if contextSize < 0 {
		contextSize = DefaultContextSize
	}
	return &PatternMatcher{
		query:       re,
		genre:       regexp2.MustCompile(genrePattern, regexp2.None),
		contextSize: contextSize,
	}, nil
}

// Match runs the query against the stripped text and the raw text and keeps
// whichever found strictly more matches; a tie keeps the raw-text matches.
// When anything matched, the genre values of the raw text lead the result.
func (pm *PatternMatcher) Match(stripped, raw string) ([]Encounter, error) {
	textHits, err := FindEncounters(pm.query, stripped, pm.contextSize)
	if err != nil {
		return nil, err
	}
	rawHits, err := FindEncounters(pm.query, raw, pm.contextSize)
	if err != nil {
		return nil, err
	}

	hits := rawHits
	if len(textHits) > len(rawHits) {
		hits = textHits
	}
	if len(hits) == 0 {
		return nil, nil
	}

	genres, err := FindEncounters(pm.genre, raw, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Encounter, 0, len(genres)+len(hits))
	out = append(out, genres...)
	return append(out, hits...), nil
}

// FindEncounters returns every non-overlapping match of re in text, left to
// right, each with a window of contextSize/2 characters on either side clamped
// to the text bounds.
func FindEncounters(re *regexp2.Regexp, text string, contextSize int) ([]Encounter, error) {
	runes := []rune(text)
	half := contextSize / 2

	var out []Encounter
	m, err := re.FindRunesMatch(runes)
	for m != nil && err == nil {
		start := m.Index
		end := start + m.Length

		cs := max(0, start-half)
		ce := min(len(runes), end+half)
		out = append(out, Encounter{
			Context:     string(runes[cs:ce]),
			MatchOffset: start - cs,
			MatchLength: m.Length,
		})
		m, err = re.FindNextMatch(m)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
