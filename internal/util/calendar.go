package util

import (
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"github.com/wavepilot/ingestd/internal/domain"
)

// TradingCalendar provides market-hours awareness for a specific market.
// US session boundaries follow spec.md §3: earlyHours [04:00, 09:30),
// isOpen [09:30, 16:00), afterHours [16:00, 20:00), US/Eastern, weekends
// closed. The zoned-time conversion via time.LoadLocation handles DST.
type TradingCalendar struct {
	market domain.Market
	loc    *time.Location
}

// NewTradingCalendar creates a TradingCalendar for the given market. It
// falls back to UTC if the US/Eastern zone database is unavailable, which
// only changes wall-clock boundaries, not the algorithm.
func NewTradingCalendar(market domain.Market) *TradingCalendar {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return &TradingCalendar{market: market, loc: loc}
}

// Status computes (isOpen, earlyHours, afterHours) for time t using the
// time-of-day fallback rules. This is the fallback source named in
// spec.md §3; the authoritative source is the upstream market-status API
// consumed by internal/marketstatus.
func (tc *TradingCalendar) Status(t time.Time) domain.MarketStatus {
	local := t.In(tc.loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return domain.MarketStatus{}
	}

	minute := local.Hour()*60 + local.Minute()
	const (
		earlyStart = 4 * 60
		openStart  = 9*60 + 30
		closeStart = 16 * 60
		afterEnd   = 20 * 60
	)

	switch {
	case minute >= openStart && minute < closeStart:
		return domain.MarketStatus{IsOpen: true}
	case minute >= earlyStart && minute < openStart:
		return domain.MarketStatus{EarlyHours: true}
	case minute >= closeStart && minute < afterEnd:
		return domain.MarketStatus{AfterHours: true}
	default:
		return domain.MarketStatus{}
	}
}

// Location returns the calendar's timezone, used to configure
// timezone-aware cron schedulers.
func (tc *TradingCalendar) Location() *time.Location { return tc.loc }

// IsMarketOpen reports whether the regular session is open at time t,
// using the time-of-day fallback.
func (tc *TradingCalendar) IsMarketOpen(t time.Time) bool {
	return tc.Status(t).IsOpen
}

// InDelayedFeedWindow reports whether t falls within the delayed feed's
// connect window: open through close+15min, so the tail of delayed bars
// arrives before disconnect (spec.md §4.3).
func (tc *TradingCalendar) InDelayedFeedWindow(t time.Time) bool {
	local := t.In(tc.loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	const (
		openStart       = 9*60 + 30
		closeStart      = 16 * 60
		delayedFeedTail = 15 // minutes past close
	)
	return minute >= openStart && minute < closeStart+delayedFeedTail
}

// LastFinishedTradingDay returns the most recent trading day whose market
// session has ended (after 20:05 ET, to let extended-hours data settle),
// using the Alpaca trading calendar API as the authoritative holiday
// source. Callers should fall back to a simple weekday check on
// CONFIG_MISSING/TRANSIENT if this call fails.
func (tc *TradingCalendar) LastFinishedTradingDay(apiKey, apiSecret, baseURL string) (time.Time, error) {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})

	now := time.Now().In(tc.loc)
	start := now.AddDate(0, 0, -7)

	calendar, err := client.GetCalendar(alpaca.GetCalendarRequest{
		Start: start,
		End:   now,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("GetCalendar: %w", err)
	}
	if len(calendar) == 0 {
		return time.Time{}, fmt.Errorf("no trading days returned from calendar")
	}

	today := now.Format("2006-01-02")
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 20, 5, 0, 0, tc.loc)

	for i := len(calendar) - 1; i >= 0; i-- {
		day := calendar[i]
		if day.Date == today {
			if now.After(cutoff) {
				t, _ := time.Parse("2006-01-02", day.Date)
				return t, nil
			}
			continue
		}
		dayDate, err := time.Parse("2006-01-02", day.Date)
		if err != nil {
			continue
		}
		if dayDate.Before(now) {
			return dayDate, nil
		}
	}

	return time.Time{}, fmt.Errorf("could not determine latest finished trading day")
}
