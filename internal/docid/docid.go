// Package docid derives stable, privacy-preserving document identifiers from
// document content.
package docid

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

var (
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	nameRe  = regexp.MustCompile(`\b([A-Z][a-z]+\s+[A-Z][a-z]+)\b`)
)

// Identify derives a document id purely from content: the first email-shaped
// substring when present, else the first capitalized two-token name, else the
// whole text. The identifying value is hashed and truncated, so the id is
// stable and not directly reversible. The truncation is a weak privacy
// property, not a security guarantee.
func Identify(text string) string {
	if email := emailRe.FindString(text); email != "" {
		return "email-" + shortHash(email, 8)
	}
	if name := nameRe.FindString(text); name != "" {
		return "name-" + shortHash(name, 8)
	}
	return "resume-" + shortHash(text, 12)
}

// shortHash returns the first n hex characters of the SHA-256 of s.
func shortHash(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:n]
}
