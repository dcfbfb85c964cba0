package control

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/wavepilot/ingestd/internal/domain"
	"github.com/wavepilot/ingestd/internal/realtime"
	"github.com/wavepilot/ingestd/internal/scheduler"
	"github.com/wavepilot/ingestd/internal/watchlist"
)

// Server is the control HTTP surface (spec.md §6): health reporting
// plus watchlist mutation with the associated feed subscribe/unsubscribe
// side effects. It must stay usable (health returns 200) before any
// other collaborator is fully initialised.
type Server struct {
	fastFeed    *realtime.FastFeed
	delayedFeed *realtime.DelayedFeed
	scheduler   *scheduler.Scheduler
	watchlist   *watchlist.List
	log         *slog.Logger

	startedAt time.Time
	shutdown  chan struct{}
}

// New creates a Server. fastFeed/delayedFeed/sched may be started after
// the Server itself, since the health handler only reads their current
// status at request time.
func New(fastFeed *realtime.FastFeed, delayedFeed *realtime.DelayedFeed, sched *scheduler.Scheduler, wl *watchlist.List, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		fastFeed:    fastFeed,
		delayedFeed: delayedFeed,
		scheduler:   sched,
		watchlist:   wl,
		log:         log.With("component", "control"),
		startedAt:   time.Now(),
		shutdown:    make(chan struct{}),
	}
}

// Handler returns the http.Handler for the control surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /subscriptions", s.handleSubscriptions)
	mux.HandleFunc("POST /subscribe", s.handleSubscribe)
	mux.HandleFunc("POST /unsubscribe", s.handleUnsubscribe)
	mux.HandleFunc("/", s.handleNotFound)
	return mux
}

// StopAcceptingMutations closes the shutdown gate; subsequent
// /subscribe and /unsubscribe calls return 503 (spec.md §5:
// "the control surface stops accepting new mutations during shutdown").
func (s *Server) StopAcceptingMutations() {
	select {
	case <-s.shutdown:
	default:
		close(s.shutdown)
	}
}

func (s *Server) draining() bool {
	select {
	case <-s.shutdown:
		return true
	default:
		return false
	}
}

func feedStatus(state realtime.State, subscriptions int) FeedStatus {
	return FeedStatus{Status: string(state), Subscriptions: subscriptions}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.startedAt).Seconds(),
		Memory: MemoryStats{
			AllocMB:      float64(mem.Alloc) / (1 << 20),
			TotalAllocMB: float64(mem.TotalAlloc) / (1 << 20),
			SysMB:        float64(mem.Sys) / (1 << 20),
		},
	}

	if s.fastFeed != nil {
		state, n := s.fastFeed.Status()
		resp.Services.FastFeed = feedStatus(state, n)
	}
	if s.delayedFeed != nil {
		state, n := s.delayedFeed.Status()
		resp.Services.DelayedFeed = feedStatus(state, n)
	}
	if s.scheduler != nil {
		resp.Services.Scheduler = SchedulerStatus{
			Status:    s.scheduler.Status(),
			Watchlist: len(s.watchlist.Snapshot()),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SubscriptionsResponse{Subscriptions: s.watchlist.SortedStrings()})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if s.draining() {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "shutting down"})
		return
	}

	var req symbolsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbols == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "symbols must be a non-null array of strings"})
		return
	}

	added := s.watchlist.Add(req.Symbols)
	// The feeds' and scheduler's backfills outlive this request.
	ctx := context.WithoutCancel(r.Context())
	if s.fastFeed != nil {
		s.fastFeed.Subscribe(ctx, added)
	}
	if s.delayedFeed != nil {
		s.delayedFeed.Subscribe(ctx, added)
	}
	if s.scheduler != nil && len(added) > 0 {
		go func() {
			if err := s.scheduler.BackfillHistory(ctx, added); err != nil {
				s.log.Warn("async backfill after subscribe failed", "symbols", added, "error", err)
			}
		}()
	}

	writeJSON(w, http.StatusOK, subscribeResponse{Success: true, Subscriptions: s.watchlist.SortedStrings()})
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if s.draining() {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "shutting down"})
		return
	}

	var req symbolsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbols == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "symbols must be a non-null array of strings"})
		return
	}

	removed := s.watchlist.Remove(req.Symbols)
	tickers := make([]domain.Ticker, len(removed))
	copy(tickers, removed)
	if s.fastFeed != nil {
		s.fastFeed.Unsubscribe(tickers)
	}
	if s.delayedFeed != nil {
		s.delayedFeed.Unsubscribe(r.Context(), tickers)
	}

	writeJSON(w, http.StatusOK, subscribeResponse{Success: true, Subscriptions: s.watchlist.SortedStrings()})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding control response", "error", err)
	}
}
