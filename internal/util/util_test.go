package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wavepilot/ingestd/internal/domain"
)

func TestRetry(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	err := Retry(context.Background(), 5, 0, func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	err := Retry(context.Background(), maxAttempts, 0, func() error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Retry should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Retry called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestLinearRetrySucceedsWithinBudget(t *testing.T) {
	attempts := 0
	err := LinearRetry(context.Background(), 3, time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("LinearRetry returned unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestLinearRetryExhausted(t *testing.T) {
	attempts := 0
	err := LinearRetry(context.Background(), 3, time.Millisecond, func() error {
		attempts++
		return errors.New("persistent")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRateLimiterNew(t *testing.T) {
	rl := NewRateLimiter(60)
	if rl == nil {
		t.Fatal("NewRateLimiter returned nil")
	}
}

func TestTradingCalendarStatus(t *testing.T) {
	cal := NewTradingCalendar(domain.MarketUS)
	if cal == nil {
		t.Fatal("NewTradingCalendar returned nil")
	}

	loc := cal.loc
	// Tuesday 10:00 ET -> regular session open.
	open := time.Date(2025, 1, 14, 10, 0, 0, 0, loc)
	st := cal.Status(open)
	if !st.IsOpen || st.EarlyHours || st.AfterHours {
		t.Errorf("Status(10:00 ET weekday) = %+v, want isOpen", st)
	}

	// Tuesday 06:00 ET -> early hours.
	early := time.Date(2025, 1, 14, 6, 0, 0, 0, loc)
	st = cal.Status(early)
	if !st.EarlyHours || st.IsOpen {
		t.Errorf("Status(06:00 ET weekday) = %+v, want earlyHours", st)
	}

	// Tuesday 18:00 ET -> after hours.
	after := time.Date(2025, 1, 14, 18, 0, 0, 0, loc)
	st = cal.Status(after)
	if !st.AfterHours || st.IsOpen {
		t.Errorf("Status(18:00 ET weekday) = %+v, want afterHours", st)
	}

	// Saturday -> closed entirely regardless of hour.
	weekend := time.Date(2025, 1, 18, 10, 0, 0, 0, loc)
	st = cal.Status(weekend)
	if st.IsOpen || st.EarlyHours || st.AfterHours {
		t.Errorf("Status(Saturday) = %+v, want fully closed", st)
	}
}

func TestInDelayedFeedWindow(t *testing.T) {
	cal := NewTradingCalendar(domain.MarketUS)
	loc := cal.loc

	duringOpen := time.Date(2025, 1, 14, 10, 0, 0, 0, loc)
	if !cal.InDelayedFeedWindow(duringOpen) {
		t.Error("expected delayed-feed window open during regular hours")
	}

	tailAfterClose := time.Date(2025, 1, 14, 16, 10, 0, 0, loc)
	if !cal.InDelayedFeedWindow(tailAfterClose) {
		t.Error("expected delayed-feed window still open 10min after close")
	}

	pastTail := time.Date(2025, 1, 14, 16, 20, 0, 0, loc)
	if cal.InDelayedFeedWindow(pastTail) {
		t.Error("expected delayed-feed window closed 20min after close")
	}

	beforeOpen := time.Date(2025, 1, 14, 9, 0, 0, 0, loc)
	if cal.InDelayedFeedWindow(beforeOpen) {
		t.Error("expected delayed-feed window closed before open")
	}

	weekend := time.Date(2025, 1, 18, 10, 0, 0, 0, loc)
	if cal.InDelayedFeedWindow(weekend) {
		t.Error("expected delayed-feed window closed on weekends")
	}
}
