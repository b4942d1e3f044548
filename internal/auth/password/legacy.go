package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const legacyPrefix = "sha256$"

// IsLegacyHash reports whether hash was produced by the deprecated unsalted
// SHA-256 scheme: 64 hex characters, optionally prefixed with "sha256$".
// The decision is made on shape alone.
func IsLegacyHash(hash string) bool {
	digest := strings.TrimPrefix(hash, legacyPrefix)
	if len(digest) != sha256.Size*2 {
		return false
	}
	for i := 0; i < len(digest); i++ {
		c := digest[i]
		isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
		if !isHex {
			return false
		}
	}
	return true
}

// MigrateLegacy checks password against a legacy digest and, when it matches,
// returns a fresh hash in the current scheme. A mismatch (or any failure)
// returns ok == false with no error so callers treat it as a wrong password.
func (h *Hasher) MigrateLegacy(password, legacyHash string) (string, bool) {
	if password == "" || !IsLegacyHash(legacyHash) {
		return "", false
	}

	stored, err := hex.DecodeString(strings.ToLower(strings.TrimPrefix(legacyHash, legacyPrefix)))
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256([]byte(password))
	if subtle.ConstantTimeCompare(stored, sum[:]) != 1 {
		return "", false
	}

	upgraded, err := h.Hash(password)
	if err != nil {
		return "", false
	}
	return upgraded, true
}
