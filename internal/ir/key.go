package ir

import (
	"golang.org/x/text/unicode/norm"
)

// NormalizeKey returns the NFC form of a field key name.
//
// Key names travel through the rename history as raw bytes, so two parties
// that type the same name with different Unicode compositions would
// otherwise produce spurious rename diffs. Callers that build keys from
// human input normalize at that boundary; the engine never rewrites bytes
// it is given.
func NormalizeKey(key string) []byte {
	return norm.NFC.Bytes([]byte(key))
}

// IsNormalizedKey reports whether key is already in NFC form.
func IsNormalizedKey(key []byte) bool {
	return norm.NFC.IsNormal(key)
}
