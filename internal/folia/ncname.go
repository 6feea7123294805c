package folia

import (
	"strings"
	"unicode"
)

// NCName turns s into a valid XML NCName usable as a FoLiA identifier.
// Characters outside the NCName set become underscores and a leading
// character that cannot start a name is prefixed with "D".
func NCName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range s {
		ok := unicode.IsLetter(r) || r == '_' ||
			(i > 0 && (unicode.IsDigit(r) || r == '-' || r == '.'))
		if !ok && i == 0 && (unicode.IsDigit(r) || r == '-' || r == '.') {
			b.WriteByte('D')
			ok = true
		}
		if ok {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
