package realtime

import (
	"testing"
	"time"

	"github.com/wavepilot/ingestd/internal/domain"
)

func TestDecodeDelayedEventsSingleObject(t *testing.T) {
	got, err := decodeDelayedEvents([]byte(`{"ev":"status","status":"auth_success"}`))
	if err != nil {
		t.Fatalf("decodeDelayedEvents: %v", err)
	}
	if len(got) != 1 || got[0].Status != "auth_success" {
		t.Errorf("got = %+v", got)
	}
}

func TestDecodeDelayedEventsArray(t *testing.T) {
	got, err := decodeDelayedEvents([]byte(`[{"ev":"AM","sym":"AAPL","s":1700000000000,"o":1,"h":2,"l":0.5,"c":1.5,"v":100},{"ev":"AM","sym":"TSLA","s":1700000060000,"o":2,"h":3,"l":1,"c":2.5,"v":50}]`))
	if err != nil {
		t.Fatalf("decodeDelayedEvents: %v", err)
	}
	if len(got) != 2 || got[0].Symbol != "AAPL" || got[1].Symbol != "TSLA" {
		t.Errorf("got = %+v", got)
	}
}

func TestAggregateMinuteToDomainMapsStartTimestamp(t *testing.T) {
	m := delayedEvent{Symbol: "AAPL", Start: 1700000000000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100, VWAP: 1.25, Trades: 10}
	bar, ok := aggregateMinuteToDomain(m, domain.MarketUS)
	if !ok {
		t.Fatal("expected ok")
	}
	if bar.Ticker != "AAPL" || bar.Time != time.UnixMilli(1700000000000).UTC() {
		t.Errorf("bar = %+v", bar)
	}
	if bar.VWAP == nil || bar.Trades == nil || *bar.Trades != 10 {
		t.Error("VWAP and Trades should be populated")
	}
}

func TestAggregateMinuteToDomainDropsMissingFields(t *testing.T) {
	_, ok := aggregateMinuteToDomain(delayedEvent{Ev: "AM"}, domain.MarketUS)
	if ok {
		t.Error("expected drop when symbol/start are missing")
	}
}

func TestChannelParamsJoinsWithAMPrefix(t *testing.T) {
	got := channelParams([]domain.Ticker{"AAPL", "TSLA"})
	want := "AM.AAPL,AM.TSLA"
	if got != want {
		t.Errorf("channelParams = %q, want %q", got, want)
	}
}
