package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dativo-io/veil/internal/entity"
)

func TestResolveEmpty(t *testing.T) {
	assert.Nil(t, Resolve(nil))
	assert.Nil(t, Resolve([]entity.Candidate{}))
}

func TestResolveHigherScoreWins(t *testing.T) {
	// A labeled company span spuriously also recognized as a person name:
	// the higher-scored category keeps the range.
	company := entity.Candidate{Category: entity.CompanyName, Start: 9, End: 28, Score: 0.8, Text: "Acme Corp, Inc"}
	person := entity.Candidate{Category: entity.PersonName, Start: 9, End: 18, Score: 0.7, Text: "Acme Corp"}

	resolved := Resolve([]entity.Candidate{person, company})
	require.Len(t, resolved, 1)
	assert.Equal(t, entity.CompanyName, resolved[0].Category)
}

func TestResolveNonOverlapInvariant(t *testing.T) {
	candidates := []entity.Candidate{
		{Category: entity.PhoneNumber, Start: 0, End: 12, Score: 0.85},
		{Category: entity.Age, Start: 10, End: 14, Score: 0.8},
		{Category: entity.EmailAddress, Start: 13, End: 25, Score: 0.9},
		{Category: entity.Gender, Start: 30, End: 34, Score: 0.85},
		{Category: entity.Gender, Start: 30, End: 60, Score: 0.85},
	}
	resolved := Resolve(candidates)
	for i := range resolved {
		for j := i + 1; j < len(resolved); j++ {
			assert.False(t, resolved[i].Overlaps(resolved[j]),
				"resolved entities %d and %d overlap", i, j)
		}
	}
}

func TestResolveEqualScoreEarliestStartWins(t *testing.T) {
	a := entity.Candidate{Category: entity.WorkDates, Start: 5, End: 20, Score: 0.7}
	b := entity.Candidate{Category: entity.EducationDates, Start: 10, End: 25, Score: 0.7}

	resolved := Resolve([]entity.Candidate{b, a})
	require.Len(t, resolved, 1)
	assert.Equal(t, entity.WorkDates, resolved[0].Category)
}

func TestResolveEqualScoreSameStartShorterWins(t *testing.T) {
	short := entity.Candidate{Category: entity.Gender, Start: 8, End: 12, Score: 0.85, Text: "Male"}
	long := entity.Candidate{Category: entity.Gender, Start: 8, End: 40, Score: 0.85}

	resolved := Resolve([]entity.Candidate{long, short})
	require.Len(t, resolved, 1)
	assert.Equal(t, 12, resolved[0].End)
}

func TestResolveSameSpanOneCategoryClaims(t *testing.T) {
	a := entity.Candidate{Category: entity.PhoneNumber, Start: 3, End: 15, Score: 0.85}
	b := entity.Candidate{Category: entity.Age, Start: 3, End: 15, Score: 0.85}

	resolved := Resolve([]entity.Candidate{b, a})
	require.Len(t, resolved, 1)
	// Category name is the final ordering key: AGE sorts before PHONE_NUMBER.
	assert.Equal(t, entity.Age, resolved[0].Category)
}

func TestResolveDeterministicAcrossInputOrder(t *testing.T) {
	candidates := []entity.Candidate{
		{Category: entity.PhoneNumber, Start: 0, End: 12, Score: 0.85},
		{Category: entity.EmailAddress, Start: 8, End: 20, Score: 0.9},
		{Category: entity.Gender, Start: 18, End: 24, Score: 0.85},
		{Category: entity.Age, Start: 25, End: 27, Score: 0.8},
	}
	reversed := make([]entity.Candidate, len(candidates))
	for i, c := range candidates {
		reversed[len(candidates)-1-i] = c
	}

	assert.Equal(t, Resolve(candidates), Resolve(reversed))
}

func TestResolveOutputSortedByStart(t *testing.T) {
	candidates := []entity.Candidate{
		{Category: entity.EmailAddress, Start: 40, End: 50, Score: 0.9},
		{Category: entity.PhoneNumber, Start: 0, End: 12, Score: 0.85},
		{Category: entity.Gender, Start: 20, End: 24, Score: 0.85},
	}
	resolved := Resolve(candidates)
	require.Len(t, resolved, 3)
	for i := 1; i < len(resolved); i++ {
		assert.Less(t, resolved[i-1].Start, resolved[i].Start)
	}
}
