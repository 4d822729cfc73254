package scanner

import (
	"regexp"
	"strings"

	"github.com/dativo-io/veil/internal/entity"
)

// Extractor is a composite candidate source that does not fit the
// one-pattern-one-category recognizer shape but emits candidates with the
// same offset contract.
type Extractor func(text string) []entity.Candidate

var (
	dobGenderRe   = regexp.MustCompile(`Date\s+of\s+Birth\s*\(\s*Gender\s*\)\s*:\s*(\d{4}-\d{2}-\d{2})\s*\(\s*([MF])\s*\)`)
	familyNameRe  = regexp.MustCompile(`(?:Father|Mother)(?:'|’)?s\s+Name\s*[:：]\s*([^\n]+)`)
	maritalRe     = regexp.MustCompile(`Marital\s+Status\s*[:：]\s*([^\n,]+)`)
	nationalityRe = regexp.MustCompile(`Nationality\s*[:：]\s*([^\n,]+)`)
	photoRefRe    = regexp.MustCompile(`(?:Photo|Picture|Image)\s*[:：]?\s*([^\n]+\.(?:jpg|jpeg|png|gif))`)
)

func defaultExtractors() []Extractor {
	return []Extractor{
		extractDOBGender,
		groupExtractor(familyNameRe, entity.FamilyInfo, 0.85),
		groupExtractor(maritalRe, entity.MaritalStatus, 0.85),
		groupExtractor(nationalityRe, entity.Nationality, 0.85),
		groupExtractor(photoRefRe, entity.PhotoReferences, 0.8),
	}
}

// extractDOBGender splits a combined "Date of Birth (Gender): 1990-01-02 (M)"
// field into two independent candidates, each pointing at its own sub-span.
func extractDOBGender(text string) []entity.Candidate {
	var out []entity.Candidate
	for _, m := range dobGenderRe.FindAllStringSubmatchIndex(text, -1) {
		if m[2] >= 0 {
			out = append(out, entity.Candidate{
				Category: entity.DateOfBirth,
				Start:    m[2],
				End:      m[3],
				Score:    0.9,
				Text:     text[m[2]:m[3]],
			})
		}
		if m[4] >= 0 {
			out = append(out, entity.Candidate{
				Category: entity.Gender,
				Start:    m[4],
				End:      m[5],
				Score:    0.9,
				Text:     text[m[4]:m[5]],
			})
		}
	}
	return out
}

// groupExtractor builds a single-purpose extractor around the first capture
// group of re. Surrounding whitespace is trimmed off the span.
func groupExtractor(re *regexp.Regexp, cat entity.Category, score float64) Extractor {
	return func(text string) []entity.Candidate {
		var out []entity.Candidate
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			if m[2] < 0 {
				continue
			}
			start, end := trimSpan(text, m[2], m[3])
			if start >= end {
				continue
			}
			out = append(out, entity.Candidate{
				Category: cat,
				Start:    start,
				End:      end,
				Score:    score,
				Text:     text[start:end],
			})
		}
		return out
	}
}

// trimSpan narrows [start, end) to exclude leading and trailing whitespace.
func trimSpan(text string, start, end int) (int, int) {
	for start < end && isSpace(text[start]) {
		start++
	}
	for end > start && isSpace(text[end-1]) {
		end--
	}
	return start, end
}

func isSpace(b byte) bool {
	return strings.IndexByte(" \t\r\n", b) >= 0
}
