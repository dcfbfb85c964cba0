// Package marketstatus caches the upstream market-status result behind a
// short TTL (spec.md §3: 60s), falling back to time-of-day rules when the
// upstream call fails.
package marketstatus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wavepilot/ingestd/internal/domain"
	"github.com/wavepilot/ingestd/internal/util"
)

const ttl = 60 * time.Second

// Fetcher calls the upstream market-status API.
type Fetcher interface {
	GetMarketStatus(ctx context.Context) (domain.MarketStatus, error)
}

// Cache is the package-level market-status cache described in spec.md
// §5's shared-state table: owned at the package level, mutated only by
// Get under its own lock.
type Cache struct {
	fetcher Fetcher
	cal     *util.TradingCalendar
	log     *slog.Logger

	mu        sync.Mutex
	value     domain.MarketStatus
	fetchedAt time.Time
}

// New creates a Cache that prefers fetcher's result and falls back to
// cal's time-of-day rules when fetcher errors.
func New(fetcher Fetcher, cal *util.TradingCalendar, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{fetcher: fetcher, cal: cal, log: log.With("component", "marketstatus")}
}

// Get returns the cached status, refreshing it if the TTL has expired.
func (c *Cache) Get(ctx context.Context) domain.MarketStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.fetchedAt) < ttl {
		return c.value
	}

	status, err := c.fetcher.GetMarketStatus(ctx)
	if err != nil {
		c.log.Warn("market status fetch failed, using time-of-day fallback", "error", err)
		status = c.cal.Status(time.Now())
	}

	c.value = status
	c.fetchedAt = time.Now()
	return status
}

// IsOpen is a convenience wrapper around Get for the common case.
func (c *Cache) IsOpen(ctx context.Context) bool {
	return c.Get(ctx).IsOpen
}
