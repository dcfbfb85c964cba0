package massive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wavepilot/ingestd/internal/ingesterr"
)

func TestSnapshotParsesTickersOrResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"ticker":"AAPL","day":{"o":1,"h":2,"l":0.5,"c":1.5,"v":100}}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	got, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(got) != 1 || got[0].Ticker != "AAPL" {
		t.Errorf("got %+v", got)
	}
}

func TestFinancialsSoftSkipsOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	_, err := c.Financials(context.Background(), "AAPL", 1)
	if !ingesterr.Is(err, ingesterr.NotAvailable) {
		t.Errorf("Financials error = %v, want NotAvailable", err)
	}
}

func TestMarketStatusMapsAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "bad-key")
	_, err := c.MarketStatus(context.Background())
	if !ingesterr.Is(err, ingesterr.AuthFail) {
		t.Errorf("MarketStatus error = %v, want AuthFail", err)
	}
}

func TestRangeAggsMapsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	_, err := c.RangeAggs(context.Background(), "AAPL", AggMinute, time.Now().Add(-24*time.Hour), time.Now(), 50000)
	if !ingesterr.Is(err, ingesterr.RateLimit) {
		t.Errorf("RangeAggs error = %v, want RateLimit", err)
	}
}

func TestGroupedDailyBuildsDatePath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key")
	date := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	if _, err := c.GroupedDaily(context.Background(), date); err != nil {
		t.Fatalf("GroupedDaily: %v", err)
	}
	want := "/v2/aggs/grouped/locale/us/market/stocks/2026-03-05"
	if gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
}
