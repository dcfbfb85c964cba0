package newsstore

import (
	"html"
	"regexp"
	"strings"
)

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)
var htmlParaRe = regexp.MustCompile(`(?i)</?(p|br|div|li|h[1-6])\b[^>]*>`)

// stripHTML removes tags and collapses whitespace, a readability-lite
// text extraction.
func stripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// extractSymbolContent keeps only the paragraphs that mention ticker,
// falling back to the fully stripped body when none do. This avoids
// storing boilerplate (bylines, disclaimers, unrelated wire-story text)
// alongside the ticker's article.
func extractSymbolContent(rawHTML, ticker string) string {
	chunks := htmlParaRe.Split(rawHTML, -1)
	var matched []string
	upper := strings.ToUpper(ticker)
	for _, chunk := range chunks {
		plain := stripHTML(chunk)
		if plain == "" {
			continue
		}
		if strings.Contains(strings.ToUpper(plain), upper) {
			matched = append(matched, plain)
		}
	}
	if len(matched) > 0 {
		return strings.Join(matched, " ")
	}
	return stripHTML(rawHTML)
}
