// Package objectid generates and checks document identifiers.
//
// An identifier is 12 bytes rendered as 24 lowercase hex characters: a
// 4-byte big-endian Unix timestamp followed by machine, process and
// counter bytes. xid produces exactly that layout, so we only change the
// text encoding (xid's default is 20-char base32).
package objectid

import (
	"encoding/hex"

	"github.com/rs/xid"
)

// Len is the length of an identifier's text form.
const Len = 24

// New returns a fresh identifier. IDs created later sort after earlier ones
// at one-second granularity.
func New() string {
	return hex.EncodeToString(xid.New().Bytes())
}

// IsValid reports whether s is a well-formed identifier. Uppercase hex is
// rejected.
func IsValid(s string) bool {
	if len(s) != Len {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
