// Package util holds small helpers shared across the Inkwell services.
package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random identifier such as "art_3f2c...". The prefix marks
// the entity kind (art, usr, shr, conn); an empty prefix yields bare hex.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
