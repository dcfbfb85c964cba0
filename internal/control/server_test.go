package control

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wavepilot/ingestd/internal/watchlist"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	wl := watchlist.New(nil, nil)
	return New(nil, nil, nil, wl, nil)
}

func TestHandleHealthReturnsHealthyWithoutFeeds(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", resp.Status)
	}
}

func TestHandleRootAliasesHealth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandleSubscribeAddsToWatchlist(t *testing.T) {
	s := newTestServer(t)
	body := strings.NewReader(`{"symbols":["aapl","msft"]}`)
	req := httptest.NewRequest(http.MethodPost, "/subscribe", body)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp subscribeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Success {
		t.Error("Success = false, want true")
	}
	if len(resp.Subscriptions) != 2 {
		t.Fatalf("Subscriptions = %v, want 2 entries", resp.Subscriptions)
	}
}

func TestHandleSubscribeRejectsNonArrayBody(t *testing.T) {
	s := newTestServer(t)
	body := strings.NewReader(`{"symbols":"AAPL"}`)
	req := httptest.NewRequest(http.MethodPost, "/subscribe", body)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleSubscribeRejectsInvalidJSON(t *testing.T) {
	s := newTestServer(t)
	body := strings.NewReader(`not json`)
	req := httptest.NewRequest(http.MethodPost, "/subscribe", body)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleUnsubscribeRemovesFromWatchlist(t *testing.T) {
	s := newTestServer(t)
	s.watchlist.Add([]string{"AAPL", "MSFT"})

	body := strings.NewReader(`{"symbols":["AAPL"]}`)
	req := httptest.NewRequest(http.MethodPost, "/unsubscribe", body)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp subscribeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Subscriptions) != 1 || resp.Subscriptions[0] != "MSFT" {
		t.Errorf("Subscriptions = %v, want [MSFT]", resp.Subscriptions)
	}
}

func TestHandleSubscribeReturns503WhileDraining(t *testing.T) {
	s := newTestServer(t)
	s.StopAcceptingMutations()

	body := strings.NewReader(`{"symbols":["AAPL"]}`)
	req := httptest.NewRequest(http.MethodPost, "/subscribe", body)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
