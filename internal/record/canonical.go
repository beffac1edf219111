package record

import (
	"bytes"
	"slices"
	"strings"
	"unicode/utf16"
)

// MarshalCanonical serializes the record as a canonical JSON object.
//
// Keys are sorted by UTF-16 code units (RFC 8785 ordering), so the output
// does not depend on column order. Strings are written byte for byte: only
// the quote, the backslash and control characters are escaped. Unlike
// encoding/json, invalid UTF-8 is NOT replaced with U+FFFD, so two values
// that differ in any byte always serialize differently.
func MarshalCanonical(r Record) []byte {
	fields := r.Fields()
	slices.SortFunc(fields, func(a, b Field) int {
		return compareKeysRFC8785(a.Name, b.Name)
	})

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeCanonicalString(&buf, f.Name)
		buf.WriteByte(':')
		writeCanonicalString(&buf, f.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

const hexDigits = "0123456789abcdef"

func writeCanonicalString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			buf.WriteString(`\"`)
		case c == '\\':
			buf.WriteString(`\\`)
		case c == '\b':
			buf.WriteString(`\b`)
		case c == '\f':
			buf.WriteString(`\f`)
		case c == '\n':
			buf.WriteString(`\n`)
		case c == '\r':
			buf.WriteString(`\r`)
		case c == '\t':
			buf.WriteString(`\t`)
		case c < 0x20:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexDigits[c>>4])
			buf.WriteByte(hexDigits[c&0xf])
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte('"')
}

// compareKeysRFC8785 orders strings by UTF-16 code units.
// Go's string comparison uses UTF-8 bytes, which disagrees for runes above
// U+FFFF versus U+E000-U+FFFF. Ties (only possible with invalid UTF-8)
// fall back to byte order so the sort stays total.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	if c := slices.Compare(a16, b16); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
