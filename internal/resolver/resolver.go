// Package resolver merges overlapping candidate spans into a final,
// non-overlapping entity set.
package resolver

import (
	"sort"

	"github.com/dativo-io/veil/internal/entity"
)

// Resolve selects a deterministic, mutually non-overlapping subset of
// candidates. Candidates are ordered by score descending, then start offset
// ascending; a candidate is accepted greedily when it intersects no already
// accepted span. On exact score/start ties the shorter span wins, and as a
// final key the category name orders candidates, so resolution is a total
// order and byte-identical across runs. The result is sorted by start offset.
func Resolve(candidates []entity.Candidate) []entity.Candidate {
	if len(candidates) == 0 {
		return nil
	}

	ordered := make([]entity.Candidate, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return a.Category < b.Category
	})

	var accepted []entity.Candidate
	for _, c := range ordered {
		conflict := false
		for _, a := range accepted {
			if c.Overlaps(a) {
				conflict = true
				break
			}
		}
		if !conflict {
			accepted = append(accepted, c)
		}
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Start < accepted[j].Start })
	return accepted
}
