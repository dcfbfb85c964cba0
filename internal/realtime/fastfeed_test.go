package realtime

import (
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"

	"github.com/wavepilot/ingestd/internal/domain"
)

func TestFastBarToDomainMapsOptionalFields(t *testing.T) {
	ts := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	b := stream.Bar{
		Symbol:     "AAPL",
		Open:       100,
		High:       101,
		Low:        99.5,
		Close:      100.5,
		Volume:     1200,
		VWAP:       100.2,
		TradeCount: 42,
		Timestamp:  ts,
	}
	got := fastBarToDomain(b, domain.MarketUS)
	if got.Ticker != "AAPL" || got.Market != domain.MarketUS {
		t.Fatalf("got = %+v", got)
	}
	if got.VWAP == nil || !got.VWAP.Equal(got.VWAP.Copy()) {
		t.Error("VWAP should be set")
	}
	if got.Trades == nil || *got.Trades != 42 {
		t.Error("Trades should be set to 42")
	}
	if !got.Valid() {
		t.Error("mapped bar should be valid")
	}
}

func TestFastBarToDomainLeavesOptionalFieldsNilWhenZero(t *testing.T) {
	b := stream.Bar{Symbol: "TSLA", Open: 1, High: 1, Low: 1, Close: 1, Timestamp: time.Now()}
	got := fastBarToDomain(b, domain.MarketUS)
	if got.VWAP != nil || got.Trades != nil {
		t.Error("zero-valued VWAP/TradeCount should map to nil pointers")
	}
}

func TestAlpacaRestBarToDomain(t *testing.T) {
	ts := time.Now()
	b := marketdata.Bar{Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 500, Timestamp: ts}
	got := alpacaRestBarToDomain("NVDA", b, domain.MarketUS)
	if got.Ticker != "NVDA" || got.Volume != 500 {
		t.Errorf("got = %+v", got)
	}
}

func TestTickerStrings(t *testing.T) {
	got := tickerStrings([]domain.Ticker{"AAPL", "MSFT"})
	if len(got) != 2 || got[0] != "AAPL" || got[1] != "MSFT" {
		t.Errorf("got = %v", got)
	}
}
