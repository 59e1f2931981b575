package search

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Direction selects the traversal order over archives and entries.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// String returns a short label for logs.
func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// NaturalCompare compares two names case-insensitively, treating maximal runs of
// digits as numbers, so "2.fb2" sorts before "10.fb2". It returns -1, 0 or 1.
func NaturalCompare(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ra, wa := utf8.DecodeRuneInString(a[i:])
		rb, wb := utf8.DecodeRuneInString(b[j:])

		if isDigit(ra) && isDigit(rb) {
			ea := digitRunEnd(a, i)
			eb := digitRunEnd(b, j)
			if c := compareDigitRuns(a[i:ea], b[j:eb]); c != 0 {
				return c
			}
			i, j = ea, eb
			continue
		}

		la, lb := unicode.ToLower(ra), unicode.ToLower(rb)
		if la != lb {
			if la < lb {
				return -1
			}
			return 1
		}
		i += wa
		j += wb
	}

	switch {
	case i < len(a):
		return 1
	case j < len(b):
		return -1
	}
	return 0
}

// Comparator returns a less function over names for the given direction.
// Backward is the exact reverse of Forward.
func Comparator(dir Direction) func(a, b string) bool {
	return func(a, b string) bool {
		c := NaturalCompare(a, b)
		if c == 0 {
			// case-only differences still need a total order
			c = strings.Compare(a, b)
		}
		if dir == Backward {
			return c > 0
		}
		return c < 0
	}
}

// SortNames sorts names in place in natural order for the given direction.
func SortNames(names []string, dir Direction) {
	less := Comparator(dir)
	sort.SliceStable(names, func(i, j int) bool { return less(names[i], names[j]) })
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func digitRunEnd(s string, start int) int {
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return end
}

// compareDigitRuns compares two ASCII digit runs by numeric value without
// parsing, so arbitrarily long runs never overflow.
func compareDigitRuns(a, b string) int {
	ta := strings.TrimLeft(a, "0")
	tb := strings.TrimLeft(b, "0")
	if len(ta) != len(tb) {
		if len(ta) < len(tb) {
			return -1
		}
		return 1
	}
	if c := strings.Compare(ta, tb); c != 0 {
		return c
	}
	// same value: fewer leading zeros first
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return 0
}
