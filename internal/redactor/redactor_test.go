package redactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dativo-io/veil/internal/entity"
)

func span(cat entity.Category, start, end int, text string) entity.Candidate {
	return entity.Candidate{Category: cat, Start: start, End: end, Text: text}
}

func TestRedactNoEntities(t *testing.T) {
	out, err := Redact("plain text", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)
}

func TestRedactSingleSpan(t *testing.T) {
	text := "Email: a@b.com done"
	out, err := Redact(text, []entity.Candidate{
		span(entity.EmailAddress, 7, 14, "a@b.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Email: <EMAIL> done", out)
}

func TestRedactOnlyMatchedOccurrence(t *testing.T) {
	// The same literal appears twice; only the span at the recorded offset
	// is replaced.
	text := "Phone: 555-123-4567 ref code 555-123-4567 end"
	out, err := Redact(text, []entity.Candidate{
		span(entity.PhoneNumber, 7, 19, "555-123-4567"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Phone: <PHONE> ref code 555-123-4567 end", out)
}

func TestRedactMultipleSpansUnsortedInput(t *testing.T) {
	text := "a@b.com called 555-0100 yesterday"
	out, err := Redact(text, []entity.Candidate{
		span(entity.PhoneNumber, 15, 23, "555-0100"),
		span(entity.EmailAddress, 0, 7, "a@b.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, "<EMAIL> called <PHONE> yesterday", out)
}

func TestRedactAdjacentSpans(t *testing.T) {
	text := "ab"
	out, err := Redact(text, []entity.Candidate{
		span(entity.Gender, 0, 1, "a"),
		span(entity.Age, 1, 2, "b"),
	})
	require.NoError(t, err)
	assert.Equal(t, "<GENDER><AGE>", out)
}

func TestRedactRejectsOverlappingSpans(t *testing.T) {
	_, err := Redact("abcdef", []entity.Candidate{
		span(entity.Gender, 0, 4, "abcd"),
		span(entity.Age, 2, 6, "cdef"),
	})
	assert.Error(t, err)
}

func TestRedactRejectsOutOfBoundsSpan(t *testing.T) {
	_, err := Redact("short", []entity.Candidate{
		span(entity.Gender, 2, 99, ""),
	})
	assert.Error(t, err)
}

func TestRedactPreservesSurroundingText(t *testing.T) {
	text := "Name: John Smith, Email: j@x.io."
	out, err := Redact(text, []entity.Candidate{
		span(entity.PersonName, 6, 16, "John Smith"),
		span(entity.EmailAddress, 25, 31, "j@x.io"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Name: <NAME>, Email: <EMAIL>.", out)
}
