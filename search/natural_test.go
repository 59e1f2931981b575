package search

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortNamesNaturalOrder(t *testing.T) {
	names := []string{"A10.fb2", "10.fb2", "a2.fb2", "2.fb2"}

	SortNames(names, Forward)
	assert.Equal(t, []string{"2.fb2", "10.fb2", "a2.fb2", "A10.fb2"}, names)

	forward := slices.Clone(names)
	SortNames(names, Backward)
	slices.Reverse(forward)
	assert.Equal(t, forward, names)
}

func TestNaturalCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2.fb2", "10.fb2", -1},
		{"10.fb2", "2.fb2", 1},
		{"book9.zip", "book10.zip", -1},
		{"Book1.zip", "book1.zip", 0},
		{"a", "ab", -1},
		{"x007", "x7", 1},
		{"x7", "x007", -1},
		{"99999999999999999999999", "100000000000000000000000", -1},
		{"тест2", "ТЕСТ10", -1},
		{"", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, NaturalCompare(tt.a, tt.b))
		})
	}
}

func TestComparatorTotalOrderOnCaseOnlyDifference(t *testing.T) {
	less := Comparator(Forward)
	more := Comparator(Backward)

	assert.NotEqual(t, less("Book1.zip", "book1.zip"), less("book1.zip", "Book1.zip"))
	assert.Equal(t, less("Book1.zip", "book1.zip"), more("book1.zip", "Book1.zip"))
	assert.False(t, less("same", "same"))
	assert.False(t, more("same", "same"))
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "forward", Forward.String())
	assert.Equal(t, "backward", Backward.String())
}
