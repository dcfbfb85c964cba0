// Package realtime implements the two streaming producers (fast-feed and
// delayed-feed) that share one connection lifecycle state machine and
// differ only in wire protocol and subscription channel naming
// (spec.md §4.3).
package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wavepilot/ingestd/internal/domain"
)

// State is a lifecycle state of a RealtimeFeed.
type State string

const (
	StateIdle          State = "idle"
	StateConnecting    State = "connecting"
	StateAuthenticated State = "authenticated"
	StateConnected     State = "connected"
	StateClosing       State = "closing"
	StateReconnecting  State = "reconnecting"
)

const (
	monitorInterval      = 60 * time.Second
	reconnectBase        = 5 * time.Second
	maxReconnectAttempts = 10
)

// connectFunc dials, authenticates, and subscribes, then blocks serving
// the session until ctx is cancelled or the connection drops. It returns
// nil on an intentional close (ctx cancelled) and a non-nil error on any
// other drop, which drives the reconnect decision.
type connectFunc func(ctx context.Context, l *lifecycle) error

// lifecycle is the shared connection state machine both feeds embed.
type lifecycle struct {
	name string
	log  *slog.Logger

	shouldConnect func(now time.Time) bool
	connect       connectFunc
	wireSubscribe func(added, removed []domain.Ticker)

	mu                sync.Mutex
	state             State
	shouldBeConnected bool
	connecting        bool
	connected         bool
	attempt           int
	cancel            context.CancelFunc

	subscriptions map[domain.Ticker]struct{}
	pending       map[domain.Ticker]struct{}

	monitorStop chan struct{}
	monitorDone chan struct{}
}

func newLifecycle(name string, log *slog.Logger, shouldConnect func(time.Time) bool, connect connectFunc) *lifecycle {
	return &lifecycle{
		name:          name,
		log:           log.With("feed", name),
		shouldConnect: shouldConnect,
		connect:       connect,
		state:         StateIdle,
		subscriptions: map[domain.Ticker]struct{}{},
		pending:       map[domain.Ticker]struct{}{},
	}
}

// Start sets the connect intent and launches the market monitor. It does
// not itself open a connection (spec.md §4.3).
func (l *lifecycle) Start() {
	l.mu.Lock()
	if l.shouldBeConnected {
		l.mu.Unlock()
		return
	}
	l.shouldBeConnected = true
	l.monitorStop = make(chan struct{})
	l.monitorDone = make(chan struct{})
	stop, done := l.monitorStop, l.monitorDone
	l.mu.Unlock()

	go l.runMonitor(stop, done)
}

// Stop clears the connect intent, stops the monitor, and cancels any
// in-flight session.
func (l *lifecycle) Stop() {
	l.mu.Lock()
	if !l.shouldBeConnected {
		l.mu.Unlock()
		return
	}
	l.shouldBeConnected = false
	stop := l.monitorStop
	cancel := l.cancel
	l.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if cancel != nil {
		cancel()
	}
}

func (l *lifecycle) runMonitor(stop, done chan struct{}) {
	defer close(done)
	l.tick()
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.tick()
		}
	}
}

// tick implements the market-monitor decision (spec.md §4.3).
func (l *lifecycle) tick() {
	l.mu.Lock()
	should := l.shouldConnect(time.Now())
	switch {
	case should && !l.connected && !l.connecting && l.shouldBeConnected:
		l.connecting = true
		l.state = StateConnecting
		ctx, cancel := context.WithCancel(context.Background())
		l.cancel = cancel
		l.mu.Unlock()
		go l.runSession(ctx)
		return
	case !should && l.connected:
		cancel := l.cancel
		l.mu.Unlock()
		l.log.Info("market closed, closing connection", "feed", l.name)
		if cancel != nil {
			cancel()
		}
		return
	}
	l.mu.Unlock()
}

func (l *lifecycle) runSession(ctx context.Context) {
	err := l.connect(ctx, l)

	l.mu.Lock()
	l.connecting = false
	l.connected = false
	l.state = StateIdle
	shouldBeConnected := l.shouldBeConnected
	intentional := err == nil
	l.mu.Unlock()

	if intentional || !shouldBeConnected {
		l.mu.Lock()
		l.attempt = 0
		l.mu.Unlock()
		return
	}

	l.log.Warn("connection dropped", "error", err)
	l.scheduleReconnect()
}

func (l *lifecycle) scheduleReconnect() {
	l.mu.Lock()
	l.attempt++
	attempt := l.attempt
	l.state = StateReconnecting
	l.mu.Unlock()

	if attempt > maxReconnectAttempts {
		l.log.Error("max reconnect attempts exhausted, giving up", "attempts", attempt-1)
		return
	}

	delay := reconnectBase * time.Duration(attempt)
	time.AfterFunc(delay, func() {
		l.mu.Lock()
		should := l.shouldConnect(time.Now()) && l.shouldBeConnected
		l.mu.Unlock()
		if !should {
			l.mu.Lock()
			l.attempt = 0
			l.state = StateIdle
			l.mu.Unlock()
			return
		}
		l.tick()
	})
}

// markAuthenticated is called by a connect implementation once the auth
// handshake succeeds, returning the union of subscriptions and pending
// tickers to (re)subscribe on the wire.
func (l *lifecycle) markAuthenticated() []domain.Ticker {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateAuthenticated

	union := make([]domain.Ticker, 0, len(l.subscriptions)+len(l.pending))
	seen := map[domain.Ticker]struct{}{}
	for t := range l.subscriptions {
		union = append(union, t)
		seen[t] = struct{}{}
	}
	for t := range l.pending {
		if _, ok := seen[t]; ok {
			continue
		}
		union = append(union, t)
		l.subscriptions[t] = struct{}{}
	}
	l.pending = map[domain.Ticker]struct{}{}
	return union
}

// markConnected transitions to Connected after the (re)subscribe above
// has been issued on the wire.
func (l *lifecycle) markConnected() {
	l.mu.Lock()
	l.connected = true
	l.state = StateConnected
	l.mu.Unlock()
}

// Subscribe adds tickers to the local subscription set, diffing against
// what's already present. If authenticated, the caller is expected to
// issue the wire-level subscribe for the returned new tickers; otherwise
// they are retained in pending and sent after (re)authentication
// (spec.md §4.3).
func (l *lifecycle) Subscribe(tickers []domain.Ticker) (newTickers []domain.Ticker, authenticated bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range tickers {
		if _, ok := l.subscriptions[t]; ok {
			continue
		}
		if l.connected {
			l.subscriptions[t] = struct{}{}
		} else {
			l.pending[t] = struct{}{}
		}
		newTickers = append(newTickers, t)
	}
	return newTickers, l.connected
}

// Unsubscribe removes tickers from both the subscription and pending
// sets.
func (l *lifecycle) Unsubscribe(tickers []domain.Ticker) []domain.Ticker {
	l.mu.Lock()
	defer l.mu.Unlock()

	var removed []domain.Ticker
	for _, t := range tickers {
		_, inSubs := l.subscriptions[t]
		_, inPending := l.pending[t]
		if !inSubs && !inPending {
			continue
		}
		delete(l.subscriptions, t)
		delete(l.pending, t)
		removed = append(removed, t)
	}
	return removed
}

// Subscriptions returns a snapshot of the current subscription set.
func (l *lifecycle) Subscriptions() []domain.Ticker {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Ticker, 0, len(l.subscriptions))
	for t := range l.subscriptions {
		out = append(out, t)
	}
	return out
}

// Status returns the current state and subscription count, used by the
// control surface's health response (spec.md §6).
func (l *lifecycle) Status() (State, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, len(l.subscriptions)
}
