package tswriter

import "strings"

const (
	maxFieldLen    = 10000
	maxMetadataLen = 200
	maxTagLen      = 256
)

// sanitizeField replaces control characters with spaces and caps the
// result at maxFieldLen bytes (spec.md §4.1).
func sanitizeField(s string) string {
	return sanitizeString(s, maxFieldLen)
}

// sanitizeMetadata applies the same control-character cleanup as
// sanitizeField but with the tighter 200-char cap spec.md §4.1 sets for
// object-store metadata values.
func sanitizeMetadata(s string) string {
	return sanitizeString(s, maxMetadataLen)
}

func sanitizeString(s string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}

// sanitizeTag strips backslashes and replaces comma, equals, space,
// newline, and carriage-return with underscore, then caps the result at
// 256 characters (spec.md §4.1's tag-value sanitisation rules, which
// double as the escaping line-protocol tag values need).
func sanitizeTag(s string) string {
	s = strings.ReplaceAll(s, `\`, "")
	for _, c := range []string{",", "=", " ", "\n", "\r"} {
		s = strings.ReplaceAll(s, c, "_")
	}
	if len(s) > maxTagLen {
		s = s[:maxTagLen]
	}
	return s
}
