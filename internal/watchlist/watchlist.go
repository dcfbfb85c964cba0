// Package watchlist holds the process-local ordered set of tickers that
// receive per-ticker treatment (streaming subscribe, SIP correction,
// news, fundamentals, backfill). Persistence is out of scope; the core
// only initialises it from configuration (spec.md §3).
package watchlist

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/wavepilot/ingestd/internal/domain"
)

// List is a thread-safe, case-normalised set of tickers. Iteration order
// is not guaranteed stable across calls (spec.md's Open Questions: "Do
// not assume stable order").
type List struct {
	mu  sync.Mutex
	set map[domain.Ticker]struct{}
	log *slog.Logger
}

// New creates a List seeded with the given initial tickers.
func New(initial []string, log *slog.Logger) *List {
	if log == nil {
		log = slog.Default()
	}
	l := &List{
		set: make(map[domain.Ticker]struct{}),
		log: log.With("component", "watchlist"),
	}
	for _, s := range initial {
		if t, err := domain.NewTicker(s); err == nil {
			l.set[t] = struct{}{}
		}
	}
	return l
}

// Snapshot returns the current tickers. The returned slice order is
// unspecified.
func (l *List) Snapshot() []domain.Ticker {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Ticker, 0, len(l.set))
	for t := range l.set {
		out = append(out, t)
	}
	return out
}

// Contains reports whether ticker is on the watchlist.
func (l *List) Contains(ticker domain.Ticker) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.set[ticker]
	return ok
}

// Add adds tickers to the watchlist and returns the ones that were not
// already present. Add logs a diff; it does not itself trigger new work
// -- the next scheduled fire or an explicit backfill call does
// (spec.md §4.4).
func (l *List) Add(tickers []string) []domain.Ticker {
	l.mu.Lock()
	defer l.mu.Unlock()

	var added []domain.Ticker
	for _, raw := range tickers {
		t, err := domain.NewTicker(raw)
		if err != nil {
			continue
		}
		if _, exists := l.set[t]; !exists {
			l.set[t] = struct{}{}
			added = append(added, t)
		}
	}
	if len(added) > 0 {
		l.log.Info("watchlist add", "added", tickerStrings(added))
	}
	return added
}

// Remove removes tickers from the watchlist and returns the ones that
// were actually present.
func (l *List) Remove(tickers []string) []domain.Ticker {
	l.mu.Lock()
	defer l.mu.Unlock()

	var removed []domain.Ticker
	for _, raw := range tickers {
		t, err := domain.NewTicker(raw)
		if err != nil {
			continue
		}
		if _, exists := l.set[t]; exists {
			delete(l.set, t)
			removed = append(removed, t)
		}
	}
	if len(removed) > 0 {
		l.log.Info("watchlist remove", "removed", tickerStrings(removed))
	}
	return removed
}

// Update replaces the watchlist contents wholesale and returns the
// (added, removed) diff.
func (l *List) Update(tickers []string) (added, removed []domain.Ticker) {
	l.mu.Lock()
	want := make(map[domain.Ticker]struct{})
	for _, raw := range tickers {
		if t, err := domain.NewTicker(raw); err == nil {
			want[t] = struct{}{}
		}
	}
	for t := range want {
		if _, exists := l.set[t]; !exists {
			added = append(added, t)
		}
	}
	for t := range l.set {
		if _, exists := want[t]; !exists {
			removed = append(removed, t)
		}
	}
	l.set = want
	l.mu.Unlock()

	if len(added) > 0 || len(removed) > 0 {
		l.log.Info("watchlist update", "added", tickerStrings(added), "removed", tickerStrings(removed))
	}
	return added, removed
}

// SortedStrings returns the current tickers as sorted plain strings, for
// deterministic display (e.g. the health endpoint).
func (l *List) SortedStrings() []string {
	snap := l.Snapshot()
	out := make([]string, len(snap))
	for i, t := range snap {
		out[i] = t.String()
	}
	sort.Strings(out)
	return out
}

func tickerStrings(ts []domain.Ticker) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}
