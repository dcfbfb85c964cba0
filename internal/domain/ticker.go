package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Ticker is an uppercase ASCII equity symbol.
type Ticker string

// NewTicker normalises raw into a Ticker, upper-casing and trimming it. It
// returns an error if the result is empty or contains characters outside
// A-Z, '.', or '-' (for share classes such as BRK.B).
func NewTicker(raw string) (Ticker, error) {
	t := Ticker(strings.ToUpper(strings.TrimSpace(raw)))
	if t == "" {
		return "", fmt.Errorf("empty ticker")
	}
	for _, r := range string(t) {
		if !(r >= 'A' && r <= 'Z') && r != '.' && r != '-' {
			return "", fmt.Errorf("ticker %q contains invalid character %q", raw, r)
		}
	}
	return t, nil
}

// String returns the ticker as a plain string.
func (t Ticker) String() string { return string(t) }

// TickerFilter controls which tickers pass into an all-tickers bulk write.
type TickerFilter int

const (
	// FilterAll passes every ticker through unfiltered.
	FilterAll TickerFilter = iota
	// FilterMainboard excludes OTC-style symbols (anything not 1-5 plain
	// letters).
	FilterMainboard
	// FilterCommon excludes warrants, units, and rights in addition to the
	// mainboard exclusions.
	FilterCommon
)

var (
	mainboardRe = regexp.MustCompile(`^[A-Z]{1,5}$`)
	warrantRe   = regexp.MustCompile(`^[A-Z]{4}(W|U|R)$`)
	rightsRe    = regexp.MustCompile(`^[A-Z]{3}WS$`)
)

// Filter reports whether ticker passes the given filter. FilterCommon
// excludes warrants/units/rights matching the patterns in spec.md §3;
// FilterMainboard is the weaker 1-5 plain-letter check FilterCommon builds
// on.
func Filter(ticker Ticker, filter TickerFilter) bool {
	switch filter {
	case FilterAll:
		return true
	case FilterMainboard:
		return mainboardRe.MatchString(string(ticker))
	case FilterCommon:
		s := string(ticker)
		if !mainboardRe.MatchString(s) {
			return false
		}
		if warrantRe.MatchString(s) || rightsRe.MatchString(s) {
			return false
		}
		return true
	default:
		return false
	}
}
