package domain

import "testing"

func TestNewTicker(t *testing.T) {
	cases := []struct {
		in      string
		want    Ticker
		wantErr bool
	}{
		{"aapl", "AAPL", false},
		{" TSLA ", "TSLA", false},
		{"brk.b", "BRK.B", false},
		{"", "", true},
		{"AA$PL", "", true},
	}
	for _, c := range cases {
		got, err := NewTicker(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("NewTicker(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("NewTicker(%q): unexpected error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("NewTicker(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFilterCommon(t *testing.T) {
	cases := []struct {
		ticker Ticker
		want   bool
	}{
		{"AAPL", true},
		{"NVDA", true},
		{"SPACW", false}, // 4 letters + W -> warrant
		{"SPACU", false}, // unit
		{"SPACR", false}, // rights
		{"ABCWS", false}, // 3 letters + WS -> rights variant
		{"BRK.B", false}, // non-letter character excludes mainboard
	}
	for _, c := range cases {
		got := Filter(c.ticker, FilterCommon)
		if got != c.want {
			t.Errorf("Filter(%q, common) = %v, want %v", c.ticker, got, c.want)
		}
	}
}

func TestFilterWatchlistNeverFiltered(t *testing.T) {
	// Invariant I3: watchlist tickers are never filtered out, regardless of
	// shape. This is enforced by callers never invoking Filter on the
	// watchlist path, not by Filter itself -- documented here so the
	// contract stays visible next to the filter implementation.
	if !Filter("AAPL", FilterAll) {
		t.Fatal("FilterAll must always pass")
	}
}
