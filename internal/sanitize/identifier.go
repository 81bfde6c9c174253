package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// MaxIdentifierLength is the maximum length for collection name
	// components. Qdrant and chromem require names of 1-64 characters.
	MaxIdentifierLength = 64

	// hashSuffixLength is the length of the hash suffix added to truncated
	// identifiers: _<8-char-hash>.
	hashSuffixLength = 9

	// DefaultIdentifier is used when sanitization produces an empty result.
	DefaultIdentifier = "default"
)

// Identifier sanitizes a string for use in vector store collection names.
//
// Rules applied:
//   - lowercases
//   - replaces invalid characters with underscores
//   - collapses runs of underscores and trims them from the ends
//   - truncates to MaxIdentifierLength with a hash suffix when too long
//   - returns DefaultIdentifier when the result would be empty
func Identifier(s string) string {
	if s == "" {
		return DefaultIdentifier
	}

	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	sanitized := b.String()
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_")

	if sanitized == "" {
		return DefaultIdentifier
	}
	if len(sanitized) > MaxIdentifierLength {
		sanitized = truncateWithHash(sanitized)
	}
	return sanitized
}

// truncateWithHash truncates an identifier to MaxIdentifierLength while
// keeping uniqueness through an 8-character hash suffix.
func truncateWithHash(s string) string {
	hash := sha256.Sum256([]byte(s))
	suffix := "_" + hex.EncodeToString(hash[:])[:8]

	truncated := s[:MaxIdentifierLength-hashSuffixLength]
	truncated = strings.TrimRight(truncated, "_")
	return truncated + suffix
}
