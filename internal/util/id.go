package util

import (
	"crypto/rand"
	"encoding/hex"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// ShortID returns a compact random identifier of n hex characters,
// used where full-length IDs are unwieldy (share link tokens, document slugs).
func ShortID(n int) string {
	if n <= 0 || n > 32 {
		n = 12
	}
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)[:n]
}
