// Package redactor rewrites document text by replacing resolved spans with
// category placeholders.
package redactor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dativo-io/veil/internal/entity"
)

// Redact builds the anonymized text in a single left-to-right pass: the
// original is copied verbatim between spans and each span's characters are
// replaced with the category placeholder at the recorded offsets. This is
// offset substitution, never substring search-and-replace, so an identical
// literal outside a resolved span is left untouched.
//
// The resolved set must be non-overlapping and within bounds; a violation is
// returned as an error so the caller can fall back to the original text.
func Redact(text string, resolved []entity.Candidate) (string, error) {
	if len(resolved) == 0 {
		return text, nil
	}

	spans := make([]entity.Candidate, len(resolved))
	copy(spans, resolved)
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	var b strings.Builder
	b.Grow(len(text))
	pos := 0
	for _, s := range spans {
		if s.Start < pos || s.End > len(text) || s.Start >= s.End {
			return "", fmt.Errorf("invalid span [%d,%d) at position %d in text of length %d",
				s.Start, s.End, pos, len(text))
		}
		b.WriteString(text[pos:s.Start])
		b.WriteString(s.Category.Placeholder())
		pos = s.End
	}
	b.WriteString(text[pos:])

	return b.String(), nil
}
