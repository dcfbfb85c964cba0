// Package stitching holds the stateless window-ownership rules that make
// the three producers' writes converge to the authoritative SIP series
// without coordination (spec.md §4.5). It is not a long-running process:
// it is the set of invariants shared by the realtime feeds and the
// scheduler, expressed as pure functions so each caller can assert its
// own window before writing.
package stitching

import (
	"time"

	"github.com/wavepilot/ingestd/internal/domain"
)

// Stage2Window is the window Stage-2 REST IEX backfill is allowed to
// write: [now-15m, now].
const Stage2Window = 15 * time.Minute

// SIPCorrectionLag is the one-minute buffer past the 15-minute official
// SIP delay that Layer 1/2 correction targets: now-16m.
const SIPCorrectionLag = 16 * time.Minute

// ClipStage1 filters bars to those owned by Stage 1 (REST SIP backfill):
// time <= now-15m (S1). It does not mutate the input slice.
func ClipStage1(bars []domain.Bar, now time.Time) []domain.Bar {
	cutoff := now.Add(-Stage2Window)
	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		if !b.Time.After(cutoff) {
			out = append(out, b)
		}
	}
	return out
}

// ClipStage2 filters bars to those owned by Stage 2 (REST IEX backfill):
// time in [now-15m, now] (S2).
func ClipStage2(bars []domain.Bar, now time.Time) []domain.Bar {
	lower := now.Add(-Stage2Window)
	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		if !b.Time.Before(lower) && !b.Time.After(now) {
			out = append(out, b)
		}
	}
	return out
}

// SIPCorrectionTime returns the minute this tick's Layer-1/2 SIP
// correction should target: now-16m (S4), truncated to the minute
// boundary to match bar identity.
func SIPCorrectionTime(now time.Time) time.Time {
	return now.Add(-SIPCorrectionLag).Truncate(time.Minute)
}

// ClipSIPCorrection filters bars to the single minute Layer-1/2 SIP
// correction targets (S4). The vendor's range endpoint has only
// day-granularity from/to, so a single-minute request still returns the
// whole day; this discards every bar but the one the correction owns.
func ClipSIPCorrection(bars []domain.Bar, target time.Time) []domain.Bar {
	minute := target.Truncate(time.Minute)
	out := make([]domain.Bar, 0, 1)
	for _, b := range bars {
		if b.Time.Truncate(time.Minute).Equal(minute) {
			out = append(out, b)
		}
	}
	return out
}

// InStage1Window reports whether t is owned by Stage 1 relative to now.
func InStage1Window(t, now time.Time) bool {
	return !t.After(now.Add(-Stage2Window))
}

// InStage2Window reports whether t is owned by Stage 2 relative to now.
func InStage2Window(t, now time.Time) bool {
	lower := now.Add(-Stage2Window)
	return !t.Before(lower) && !t.After(now)
}
