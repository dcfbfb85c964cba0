package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is a minute OHLCV bar. Identity is (Ticker, Market, Time); a later
// producer writing the same identity overwrites an earlier one — that
// overwrite is the mechanism of correction (spec.md I1).
type Bar struct {
	Ticker Ticker
	Market Market
	Time   time.Time

	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal

	Volume int64

	VWAP          *decimal.Decimal
	Trades        *int64
	Change        *decimal.Decimal
	ChangePercent *decimal.Decimal
	PreviousClose *decimal.Decimal
}

// Valid reports whether the bar carries the minimum fields TSWriter
// requires to accept it: a non-zero time and open/close values.
func (b Bar) Valid() bool {
	return !b.Time.IsZero() && !b.Open.IsZero() && !b.Close.IsZero()
}

// DailyBar is a daily OHLCV bar. Identity is (Ticker, Market, Date). An
// EOD grouped-daily write overwrites an earlier intraday snapshot write
// for the same identity.
type DailyBar struct {
	Ticker Ticker
	Market Market
	Date   time.Time

	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal

	Volume int64

	VWAP          *decimal.Decimal
	Trades        *int64
	Change        decimal.Decimal
	ChangePercent decimal.Decimal
}

// Valid reports whether the daily bar carries the minimum fields TSWriter
// requires to accept it.
func (d DailyBar) Valid() bool {
	return !d.Date.IsZero() && !d.Open.IsZero() && !d.Close.IsZero()
}

// DeriveChange fills Change and ChangePercent from Open/Close, matching
// spec.md §3's derived daily-bar fields.
func (d *DailyBar) DeriveChange() {
	d.Change = d.Close.Sub(d.Open)
	if d.Open.IsZero() {
		d.ChangePercent = decimal.Zero
		return
	}
	d.ChangePercent = d.Change.Div(d.Open).Mul(decimal.NewFromInt(100))
}
