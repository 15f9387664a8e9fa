package crypto2

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash256 computes SHA-256 hash of data
func Hash256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// HashIdentifier returns the lowercase hex SHA-256 of a contact identifier.
// Stored next to the raw value so contacts can be looked up by token.
func HashIdentifier(identifier string) string {
	return hex.EncodeToString(Hash256([]byte(identifier)))
}
