package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/shopspring/decimal"

	"github.com/wavepilot/ingestd/internal/config"
	"github.com/wavepilot/ingestd/internal/domain"
	"github.com/wavepilot/ingestd/internal/tswriter"
	"github.com/wavepilot/ingestd/internal/util"
)

const (
	delayedPingInterval = 30 * time.Second
	delayedPongDeadline = 10 * time.Second
)

// DelayedFeed is the hand-rolled SIP-delayed aggregate-minute streaming
// producer. It implements the vendor's auth/subscribe JSON wire protocol
// directly over a raw WebSocket connection (spec.md §4.3, §6) -- there
// is no vendor SDK for this feed.
type DelayedFeed struct {
	lc *lifecycle

	wsURL  string
	apiKey string
	cal    *util.TradingCalendar
	writer tswriter.Writer
	market domain.Market
	log    *slog.Logger

	conn *websocket.Conn
}

// NewDelayedFeed creates a DelayedFeed. apiKey is the vendor's streaming
// key (MASSIVE_API_KEY from the secret store, spec.md §6).
func NewDelayedFeed(cfg config.Massive, apiKey string, cal *util.TradingCalendar, writer tswriter.Writer, market domain.Market, log *slog.Logger) *DelayedFeed {
	if log == nil {
		log = slog.Default()
	}
	f := &DelayedFeed{
		wsURL:  cfg.DelayedWSURL,
		apiKey: apiKey,
		cal:    cal,
		writer: writer,
		market: market,
		log:    log.With("component", "delayedfeed"),
	}
	f.lc = newLifecycle("delayed", f.log, f.shouldConnect, f.runSession)
	return f
}

// Start begins the market monitor driving the open-through-close+15m
// connect window (spec.md §4.3).
func (f *DelayedFeed) Start() { f.lc.Start() }

// Stop tears down the monitor and any active session.
func (f *DelayedFeed) Stop() { f.lc.Stop() }

func (f *DelayedFeed) shouldConnect(now time.Time) bool {
	return f.cal.InDelayedFeedWindow(now)
}

func (f *DelayedFeed) Status() (State, int)            { return f.lc.Status() }
func (f *DelayedFeed) Subscriptions() []domain.Ticker   { return f.lc.Subscriptions() }

// Subscribe adds tickers, issuing the wire-level subscribe immediately
// if authenticated, else retaining them in pending (spec.md §4.3).
func (f *DelayedFeed) Subscribe(ctx context.Context, tickers []domain.Ticker) {
	added, authenticated := f.lc.Subscribe(tickers)
	if len(added) == 0 || !authenticated || f.conn == nil {
		return
	}
	if err := f.sendSubscribe(ctx, added); err != nil {
		f.log.Error("wire subscribe failed", "tickers", added, "error", err)
	}
}

// Unsubscribe removes tickers and issues the wire-level unsubscribe.
func (f *DelayedFeed) Unsubscribe(ctx context.Context, tickers []domain.Ticker) {
	removed := f.lc.Unsubscribe(tickers)
	if len(removed) == 0 || f.conn == nil {
		return
	}
	params := channelParams(removed)
	_ = writeJSON(ctx, f.conn, wireMessage{Action: "unsubscribe", Params: params})
}

// runSession dials the delayed-feed WebSocket, authenticates,
// resubscribes, and serves the read loop and heartbeat until ctx is
// cancelled or the connection drops.
func (f *DelayedFeed) runSession(ctx context.Context, l *lifecycle) error {
	conn, _, err := websocket.Dial(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dialing delayed feed: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutdown")
	f.conn = conn
	defer func() { f.conn = nil }()

	if err := writeJSON(ctx, conn, wireMessage{Action: "auth", Params: f.apiKey}); err != nil {
		return fmt.Errorf("sending auth: %w", err)
	}

	if err := f.awaitAuthSuccess(ctx, conn); err != nil {
		return err
	}

	union := l.markAuthenticated()
	if len(union) > 0 {
		if err := f.sendSubscribe(ctx, union); err != nil {
			return fmt.Errorf("subscribing delayed feed: %w", err)
		}
	}
	l.markConnected()

	errCh := make(chan error, 1)
	go func() { errCh <- f.heartbeat(ctx, conn) }()
	go func() { errCh <- f.readLoop(ctx, conn) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (f *DelayedFeed) awaitAuthSuccess(ctx context.Context, conn *websocket.Conn) error {
	deadline, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for {
		msgs, err := readMessages(deadline, conn)
		if err != nil {
			return fmt.Errorf("awaiting auth: %w", err)
		}
		for _, m := range msgs {
			if m.Ev == "status" && m.Status == "auth_success" {
				return nil
			}
			if m.Ev == "status" && m.Status == "auth_failed" {
				return fmt.Errorf("delayed feed auth rejected")
			}
		}
	}
}

func (f *DelayedFeed) sendSubscribe(ctx context.Context, tickers []domain.Ticker) error {
	return writeJSON(ctx, f.conn, wireMessage{Action: "subscribe", Params: channelParams(tickers)})
}

// heartbeat sends a ping every 30s and forces termination if no pong
// arrives within 10s (spec.md §4.3).
func (f *DelayedFeed) heartbeat(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(delayedPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, delayedPongDeadline)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return fmt.Errorf("pong deadline exceeded: %w", err)
			}
		}
	}
}

func (f *DelayedFeed) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		msgs, err := readMessages(ctx, conn)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			if m.Ev != "AM" {
				continue
			}
			bar, ok := aggregateMinuteToDomain(m, f.market)
			if !ok {
				f.log.Warn("dropping AM event missing required fields", "symbol", m.Symbol)
				continue
			}
			if err := f.writer.WriteQuotes(context.Background(), []domain.Bar{bar}); err != nil {
				f.log.Error("writing delayed-feed bar failed", "ticker", bar.Ticker, "error", err)
			}
		}
	}
}

// wireMessage is the client->server auth/subscribe envelope (spec.md §6).
type wireMessage struct {
	Action string `json:"action"`
	Params string `json:"params"`
}

// delayedEvent is the server->client envelope; ev="status" carries
// connection status, ev="AM" carries an aggregate-minute bar.
type delayedEvent struct {
	Ev     string  `json:"ev"`
	Status string  `json:"status,omitempty"`
	Symbol string  `json:"sym,omitempty"`
	Start  int64   `json:"s,omitempty"`
	Open   float64 `json:"o,omitempty"`
	High   float64 `json:"h,omitempty"`
	Low    float64 `json:"l,omitempty"`
	Close  float64 `json:"c,omitempty"`
	Volume float64 `json:"v,omitempty"`
	VWAP   float64 `json:"vw,omitempty"`
	Trades int64   `json:"z,omitempty"`
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, body)
}

// readMessages reads one WS frame and decodes it as either a single
// event object or an array of events, per the vendor protocol.
func readMessages(ctx context.Context, conn *websocket.Conn) ([]delayedEvent, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return decodeDelayedEvents(data)
}

func decodeDelayedEvents(data []byte) ([]delayedEvent, error) {
	var arr []delayedEvent
	if err := json.Unmarshal(data, &arr); err == nil {
		return arr, nil
	}
	var single delayedEvent
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("decoding delayed feed message: %w", err)
	}
	return []delayedEvent{single}, nil
}

// aggregateMinuteToDomain maps an AM event into a domain.Bar. time is the
// start timestamp s (spec.md §4.3). Missing required fields drop the
// event.
func aggregateMinuteToDomain(m delayedEvent, market domain.Market) (domain.Bar, bool) {
	if m.Symbol == "" || m.Start == 0 {
		return domain.Bar{}, false
	}
	bar := domain.Bar{
		Ticker: domain.Ticker(m.Symbol),
		Market: market,
		Time:   time.UnixMilli(m.Start).UTC(),
		Open:   decimal.NewFromFloat(m.Open),
		High:   decimal.NewFromFloat(m.High),
		Low:    decimal.NewFromFloat(m.Low),
		Close:  decimal.NewFromFloat(m.Close),
		Volume: int64(m.Volume),
	}
	if m.VWAP != 0 {
		vwap := decimal.NewFromFloat(m.VWAP)
		bar.VWAP = &vwap
	}
	if m.Trades != 0 {
		trades := m.Trades
		bar.Trades = &trades
	}
	if !bar.Valid() {
		return domain.Bar{}, false
	}
	return bar, true
}

// channelParams joins tickers into the vendor's "AM.TICK1,AM.TICK2"
// subscription channel list (spec.md §6).
func channelParams(tickers []domain.Ticker) string {
	parts := make([]string, len(tickers))
	for i, t := range tickers {
		parts[i] = "AM." + t.String()
	}
	return strings.Join(parts, ",")
}
