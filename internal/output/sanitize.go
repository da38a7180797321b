package output

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const hexDigits = "0123456789abcdef"

// Clean makes s safe to print to an interactive terminal. Process names
// come from other users' programs, so control characters and invalid
// UTF-8 bytes are replaced with visible escapes:
//
//	"hi\x1b[31m" -> `hi\x1b[31m`
//	"bad:\xff"   -> `bad:\xff`
//
// Tabs and newlines pass through.
func Clean(s string) string {
	i := cleanPrefix(s)
	if i == len(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	b.WriteString(s[:i])

	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			writeEscape(&b, 'x', uint32(s[i]), 2)
		case passes(r):
			b.WriteString(s[i : i+size])
		default:
			escapeRune(&b, r)
		}
		i += size
	}
	return b.String()
}

// cleanPrefix returns the length of the leading run that needs no escaping.
func cleanPrefix(s string) int {
	i := 0
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if (r == utf8.RuneError && size == 1) || !passes(r) {
			return i
		}
		i += size
	}
	return i
}

func passes(r rune) bool {
	return r == '\n' || r == '\t' || !unicode.IsControl(r)
}

// escapeRune writes \xHH, \uHHHH or \UHHHHHHHH depending on the size of r.
func escapeRune(b *strings.Builder, r rune) {
	switch {
	case r <= 0xFF:
		writeEscape(b, 'x', uint32(r), 2)
	case r <= 0xFFFF:
		writeEscape(b, 'u', uint32(r), 4)
	default:
		writeEscape(b, 'U', uint32(r), 8)
	}
}

func writeEscape(b *strings.Builder, kind byte, v uint32, digits int) {
	b.WriteByte('\\')
	b.WriteByte(kind)
	for shift := (digits - 1) * 4; shift >= 0; shift -= 4 {
		b.WriteByte(hexDigits[(v>>shift)&0x0f])
	}
}
