package cryptoutil

import (
	"encoding/hex"
	"fmt"
)

// IsHexString reports whether s consists entirely of hexadecimal characters
// (0-9, a-f, A-F). It returns true for an empty string — callers should check
// length separately when a minimum size is required.
func IsHexString(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// DecodeKey32 turns a key string into exactly 32 raw bytes. Accepts either
// 32 raw bytes or 64 hex characters.
func DecodeKey32(key string) ([]byte, error) {
	switch {
	case len(key) == 32:
		return []byte(key), nil
	case len(key) == 64 && IsHexString(key):
		decoded, err := hex.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("decoding hex key: %w", err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("key must be exactly 32 bytes or 64 hex characters (got %d)", len(key))
	}
}
