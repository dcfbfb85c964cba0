package domain

// MarketStatus summarises whether a market is currently in its regular
// session, early (pre-market) hours, or after-hours session.
type MarketStatus struct {
	IsOpen     bool
	EarlyHours bool
	AfterHours bool
}
