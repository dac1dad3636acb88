// Package checksum implements the ledger's integrity fingerprint: a 32-bit
// rolling hash (h = h*31 + c) over the UTF-16 code units of a string.
//
// It is not a cryptographic hash. It catches accidental corruption and
// casual edits to stored collections, nothing more.
package checksum

import (
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf16"
)

func sum(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(c)
	}
	return h
}

// Fingerprint returns the signed decimal rendering of the hash of s.  This is
// the form stored next to each secure collection.
func Fingerprint(s string) string {
	return strconv.FormatInt(int64(sum(s)), 10)
}

// FingerprintHex returns the signed hexadecimal rendering of the hash of s,
// e.g. "-1f3a".  Used for per-event fingerprints.
func FingerprintHex(s string) string {
	return strconv.FormatInt(int64(sum(s)), 16)
}

// Of serializes v as JSON and returns its hex fingerprint.
func Of(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("checksum: marshal: %w", err)
	}
	return FingerprintHex(string(b)), nil
}
