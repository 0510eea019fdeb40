package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// DigestLength is the length of a hex-encoded SHA-256 content digest.
const DigestLength = 64

// ContentDigest computes the SHA-256 digest of data and returns it as a
// lowercase hex string.
//
// The digest is the global identity of an image blob: it is a pure function
// of the bytes, stable across devices, and therefore usable both for
// de-duplication (the same bytes always map to the same remote object) and
// for integrity verification (the receiver recomputes the digest and rejects
// a mismatch).
func ContentDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidDigest reports whether s is a well-formed content digest:
// exactly 64 lowercase hex characters.
func ValidDigest(s string) bool {
	if len(s) != DigestLength {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
