package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// TruncateRunes returns at most maxRunes runes of s. It never splits a
// multi-byte character, so the result is always valid UTF-8 when s is.
//
// If maxRunes is negative, it's treated as 0 and returns an empty string.
//
// Example:
//
//	TruncateRunes("hello世界test", 6) // Returns: "hello世"
//	TruncateRunes("short", 10)        // Returns: "short"
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if len(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

// HashForLogging returns a short SHA256 prefix of sensitive, or "<empty>".
// Used when user identifiers are mirrored into process logs.
func HashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
