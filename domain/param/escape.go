package param

import (
	"net/url"
	"strings"
)

const upperhex = "0123456789ABCDEF"

// reservedPassthrough is the subset of RFC 3986 reserved characters kept
// verbatim for allowReserved query values. Characters that frame a query
// string or a style ('&', '=', '#', '+', ',', '|', ' ') are always escaped.
const reservedPassthrough = ":/?@!$'()*;[]"

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}

// Escape percent-encodes every byte outside the RFC 3986 unreserved set.
// delim, when non-zero, is escaped as well so a value can never be split by
// the transport's segment delimiter.
func Escape(s string, delim byte) string {
	if delim == 0 {
		return escape(s, "", false)
	}
	return escape(s, string(delim), false)
}

// escape keeps unreserved bytes not listed in extra, plus the reserved
// passthrough set when allowReserved is true.
func escape(s string, extra string, allowReserved bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(extra, c) < 0 && (isUnreserved(c) || (allowReserved && strings.IndexByte(reservedPassthrough, c) >= 0)) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

// Unescape reverses Escape. '+' is left as is.
func Unescape(s string) (string, error) {
	return url.PathUnescape(s)
}

func unescape(spec Spec, s string) (string, error) {
	out, err := url.PathUnescape(s)
	if err != nil {
		return "", &DecodeError{Name: spec.Name, Input: s, Reason: "invalid percent-encoding"}
	}
	return out, nil
}
