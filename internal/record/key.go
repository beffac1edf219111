package record

import (
	"crypto/sha256"
	"encoding/hex"
)

// DomainRow is the hash domain for row identity keys.
// The version suffix allows a future change of serialization.
const DomainRow = "csvrunner/row/v1"

// Key is the identity of a row: a hex SHA-256 over its canonical
// non-reserved content.
type Key string

// IdentityKey derives the identity of a record.
//
// The reserved columns are ignored, so an input row and the result row it
// produced share a key. Column order does not matter; values are compared
// exactly.
func IdentityKey(r Record) Key {
	return Key(hashWithDomain(DomainRow, MarshalCanonical(r.WithoutReserved())))
}

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
