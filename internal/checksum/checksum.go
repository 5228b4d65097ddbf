// Package checksum fingerprints fetched documents.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Short returns the first 12 hex characters of sum, for log lines.
func Short(sum string) string {
	if len(sum) <= 12 {
		return sum
	}
	return sum[:12]
}
