package tswriter

import (
	"strings"
	"testing"
)

func TestSanitizeFieldStripsControlChars(t *testing.T) {
	got := sanitizeField("hello\x01world\x7fend")
	if got != "hello world end" {
		t.Errorf("sanitizeField = %q, want %q", got, "hello world end")
	}
}

func TestSanitizeFieldCapsLength(t *testing.T) {
	in := strings.Repeat("a", maxFieldLen+500)
	got := sanitizeField(in)
	if len(got) != maxFieldLen {
		t.Errorf("len(sanitizeField) = %d, want %d", len(got), maxFieldLen)
	}
}

func TestSanitizeMetadataCapsLength(t *testing.T) {
	in := strings.Repeat("b", maxMetadataLen+10)
	got := sanitizeMetadata(in)
	if len(got) != maxMetadataLen {
		t.Errorf("len(sanitizeMetadata) = %d, want %d", len(got), maxMetadataLen)
	}
}

func TestSanitizeTag(t *testing.T) {
	got := sanitizeTag(`foo,bar=baz qux\x` + "\n\r")
	if strings.ContainsAny(got, `,= `+"\n\r") || strings.Contains(got, `\`) {
		t.Errorf("sanitizeTag left disallowed characters: %q", got)
	}
}

func TestSanitizeTagCapsLength(t *testing.T) {
	in := strings.Repeat("c", maxTagLen+50)
	got := sanitizeTag(in)
	if len(got) != maxTagLen {
		t.Errorf("len(sanitizeTag) = %d, want %d", len(got), maxTagLen)
	}
}
