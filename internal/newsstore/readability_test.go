package newsstore

import "testing"

func TestStripHTMLCollapsesWhitespace(t *testing.T) {
	got := stripHTML("<p>Hello   <b>world</b></p>\n<p>&amp; more</p>")
	want := "Hello world & more"
	if got != want {
		t.Errorf("stripHTML = %q, want %q", got, want)
	}
}

func TestExtractSymbolContentKeepsMatchingParagraphs(t *testing.T) {
	html := "<p>AAPL shares rose 2% today.</p><p>In other news, MSFT announced a product.</p>"
	got := extractSymbolContent(html, "AAPL")
	if got != "AAPL shares rose 2% today." {
		t.Errorf("extractSymbolContent = %q", got)
	}
}

func TestExtractSymbolContentFallsBackWhenNoMatch(t *testing.T) {
	html := "<p>Generic market wrap with no ticker mention.</p>"
	got := extractSymbolContent(html, "AAPL")
	if got != "Generic market wrap with no ticker mention." {
		t.Errorf("extractSymbolContent = %q, want fallback to stripped body", got)
	}
}
