package process

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
)

// Sanitize removes terminal escape sequences and control bytes from a line of
// child output. 8-bit C1 controls (U+0080..U+009F) are read as their ESC forms,
// so "\u009b31m" goes the same way as "\x1b[31m". TAB survives. Other
// multi-byte UTF-8 text passes through untouched.
// Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	if !needsSanitize(s) {
		return s
	}
	s = sevenBit(s)
	if strings.IndexByte(s, 0x1b) >= 0 {
		s = ansi.Strip(s)
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isControl(c) {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// C0 and DEL are single bytes in UTF-8 and never occur inside a multi-byte sequence.
func isControl(c byte) bool {
	return (c < 0x20 && c != '\t') || c == 0x7f
}

func isC1(r rune) bool {
	return r >= 0x80 && r <= 0x9f
}

func needsSanitize(s string) bool {
	for i := 0; i < len(s); i++ {
		if isControl(s[i]) {
			return true
		}
	}
	return hasC1(s)
}

func hasC1(s string) bool {
	return strings.IndexFunc(s, isC1) >= 0
}

// sevenBit rewrites each C1 control as ESC followed by its 7-bit final byte.
// Everything else, invalid UTF-8 included, is copied byte for byte.
func sevenBit(s string) string {
	if !hasC1(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if size == 2 && isC1(r) {
			b.WriteByte(0x1b)
			b.WriteByte(byte(r - 0x40))
		} else {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}
