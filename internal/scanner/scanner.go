// Package scanner produces candidate PII spans from document text.
//
// Two interchangeable strategies implement the same contract: the pattern
// strategy (always available, built from the recognizer registry plus a set
// of composite extractors) and the remote strategy (an external NLP analyzer
// reached over HTTP). Candidates from all strategies are concatenated by the
// caller before conflict resolution.
package scanner

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dativo-io/veil/internal/entity"
	veilotel "github.com/dativo-io/veil/internal/otel"
	"github.com/dativo-io/veil/internal/recognizer"
)

var tracer = veilotel.Tracer("github.com/dativo-io/veil/internal/scanner")

// Strategy is the capability shared by all candidate sources. Offsets in the
// returned candidates are byte positions into the given text, half-open
// [Start, End), with text[Start:End] == Text.
type Strategy interface {
	Scan(ctx context.Context, text string) ([]entity.Candidate, error)
}

// PatternStrategy scans text with compiled recognizers and composite
// extractors. It is pure: no mutation of text, no shared mutable state, safe
// for concurrent use.
type PatternStrategy struct {
	recognizers []recognizer.Recognizer
	extractors  []Extractor
	selected    map[entity.Category]bool
}

// NewPatternStrategy builds the pattern strategy for the selected categories.
// The recognizers are expected to be pre-filtered by the registry; the
// selected set additionally gates composite extractor output.
func NewPatternStrategy(recs []recognizer.Recognizer, selected []entity.Category) *PatternStrategy {
	want := make(map[entity.Category]bool, len(selected))
	for _, c := range selected {
		want[c] = true
	}
	return &PatternStrategy{
		recognizers: recs,
		extractors:  defaultExtractors(),
		selected:    want,
	}
}

// Scan runs every pattern of every recognizer over text using leftmost-first
// non-overlapping regex semantics, then appends composite extractor output.
// The candidate span is the designated capture group when present and matched,
// otherwise the whole match.
func (s *PatternStrategy) Scan(ctx context.Context, text string) ([]entity.Candidate, error) {
	_, span := tracer.Start(ctx, "scanner.patterns")
	defer span.End()

	var out []entity.Candidate

	for _, rec := range s.recognizers {
		for _, p := range rec.Patterns {
			matches := p.Regex.FindAllStringSubmatchIndex(text, -1)
			for _, m := range matches {
				start, end := m[0], m[1]
				if g := p.Group; g > 0 && 2*g+1 < len(m) && m[2*g] >= 0 {
					start, end = m[2*g], m[2*g+1]
				}
				if start >= end {
					continue
				}
				c := entity.Candidate{
					Category: rec.Category,
					Start:    start,
					End:      end,
					Score:    p.Score,
					Text:     text[start:end],
				}
				if alreadyRedacted(c) {
					continue
				}
				out = append(out, c)
			}
		}
	}

	for _, ex := range s.extractors {
		for _, c := range ex(text) {
			if s.selected[c.Category] && !alreadyRedacted(c) {
				out = append(out, c)
			}
		}
	}

	span.SetAttributes(attribute.Int("scan.candidates", len(out)))
	return out, nil
}

// alreadyRedacted reports whether a candidate's text contains its own
// category placeholder. Labeled patterns with open-ended value groups would
// otherwise re-match placeholder tokens when the engine runs over text it has
// already anonymized.
func alreadyRedacted(c entity.Candidate) bool {
	return strings.Contains(c.Text, c.Category.Placeholder())
}
