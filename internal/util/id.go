package util

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID returns prefix_<32 hex chars> from a random UUID, or the bare hex
// when prefix is empty.
func NewID(prefix string) string {
	id := uuid.New()
	encoded := hex.EncodeToString(id[:])
	if prefix == "" {
		return encoded
	}
	return prefix + "_" + encoded
}
