// Package sha256 derives stable document identifiers.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// DocumentID returns the hex SHA-256 digest of a document location.
func DocumentID(location string) string {
	sum := sha256.Sum256([]byte(location))
	return hex.EncodeToString(sum[:])
}
