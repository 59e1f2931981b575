package search

import (
	"regexp"
	"strings"
)

var (
	// Control characters and excessive whitespace
	controlCharRegex = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
	whitespaceRegex  = regexp.MustCompile(`\s+`)

	lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")
)

// JoinLines joins the lines of text with a single space. A single trailing
// line terminator does not produce a trailing space.
func JoinLines(text string) string {
	switch {
	case strings.HasSuffix(text, "\r\n"):
		text = text[:len(text)-2]
	case strings.HasSuffix(text, "\n"), strings.HasSuffix(text, "\r"):
		text = text[:len(text)-1]
	}
	return lineBreaks.Replace(text)
}

// CleanContent removes control characters and collapses whitespace
func CleanContent(content string) string {
	content = controlCharRegex.ReplaceAllString(content, "")
	content = whitespaceRegex.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}

// SplitEncounter cuts the context of e into the text before the match, the
// match itself and the text after it. Offsets are clamped to the context.
func SplitEncounter(e Encounter) (before, match, after string) {
	runes := []rune(e.Context)
	start := clamp(e.MatchOffset, 0, len(runes))
	end := clamp(e.MatchOffset+e.MatchLength, start, len(runes))
	return string(runes[:start]), string(runes[start:end]), string(runes[end:])
}

// HighlightEncounter wraps the matched span of an encounter with the given markers
func HighlightEncounter(e Encounter, pre, post string) string {
	before, match, after := SplitEncounter(e)
	return before + pre + match + post + after
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
