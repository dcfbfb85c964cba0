package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"
	"github.com/shopspring/decimal"

	"github.com/wavepilot/ingestd/internal/config"
	"github.com/wavepilot/ingestd/internal/domain"
	"github.com/wavepilot/ingestd/internal/marketstatus"
	"github.com/wavepilot/ingestd/internal/stitching"
	"github.com/wavepilot/ingestd/internal/tswriter"
)

// FastFeed streams low-latency IEX bars via the vendor's streaming SDK
// and writes each as it arrives (Stage 3, spec.md §4.3/§4.5). The vendor
// SDK supplies its own heartbeat, so this feed runs no ping loop of its
// own (only DelayedFeed does).
type FastFeed struct {
	lc *lifecycle

	apiKey, apiSecret, wsURL string
	status                   *marketstatus.Cache
	rest                     *marketdata.Client
	writer                   tswriter.Writer
	market                   domain.Market
	log                      *slog.Logger

	client *stream.StocksClient
}

// NewFastFeed creates a FastFeed. apiKey/apiSecret identify the vendor
// streaming credentials (ALPACA_API_KEY/ALPACA_API_SECRET from the
// secret store, spec.md §6).
func NewFastFeed(cfg config.Massive, apiKey, apiSecret string, status *marketstatus.Cache, writer tswriter.Writer, market domain.Market, log *slog.Logger) *FastFeed {
	if log == nil {
		log = slog.Default()
	}
	f := &FastFeed{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		wsURL:     cfg.WSURL,
		status:    status,
		rest:      marketdata.NewClient(marketdata.ClientOpts{APIKey: apiKey, APISecret: apiSecret}),
		writer:    writer,
		market:    market,
		log:       log.With("component", "fastfeed"),
	}
	f.lc = newLifecycle("fast", f.log, f.shouldConnect, f.runSession)
	return f
}

// Start begins the market monitor that opens the stream during regular
// hours (spec.md §4.3: "fast-feed connects only when isOpen").
func (f *FastFeed) Start() { f.lc.Start() }

// Stop tears down the monitor and any active session.
func (f *FastFeed) Stop() { f.lc.Stop() }

func (f *FastFeed) shouldConnect(now time.Time) bool {
	return f.status.IsOpen(context.Background())
}

// Status reports the current lifecycle state and subscription count for
// the control surface's health response (spec.md §6).
func (f *FastFeed) Status() (State, int) { return f.lc.Status() }

func (f *FastFeed) Subscriptions() []domain.Ticker { return f.lc.Subscriptions() }

// Subscribe adds tickers to the fast feed and, for any that are newly
// added, kicks off an async Stage-2 backfill (spec.md §4.3).
func (f *FastFeed) Subscribe(ctx context.Context, tickers []domain.Ticker) {
	added, authenticated := f.lc.Subscribe(tickers)
	if len(added) == 0 {
		return
	}
	if authenticated && f.client != nil {
		symbols := tickerStrings(added)
		if err := f.client.SubscribeToBars(f.handleBar, symbols...); err != nil {
			f.log.Error("wire subscribe failed", "symbols", symbols, "error", err)
		}
	}
	for _, t := range added {
		go f.backfillStage2(ctx, t)
	}
}

// Unsubscribe removes tickers from the fast feed.
func (f *FastFeed) Unsubscribe(tickers []domain.Ticker) {
	removed := f.lc.Unsubscribe(tickers)
	if len(removed) == 0 || f.client == nil {
		return
	}
	if err := f.client.UnsubscribeFromBars(tickerStrings(removed)...); err != nil {
		f.log.Error("wire unsubscribe failed", "symbols", removed, "error", err)
	}
}

// runSession dials the vendor streaming client, authenticates, resumes
// subscriptions, and blocks until ctx is cancelled or the connection
// drops.
func (f *FastFeed) runSession(ctx context.Context, l *lifecycle) error {
	client := stream.NewStocksClient("iex",
		stream.WithCredentials(f.apiKey, f.apiSecret),
		stream.WithBaseURL(f.wsURL),
	)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connecting fast feed: %w", err)
	}
	f.client = client
	defer func() { f.client = nil }()

	union := l.markAuthenticated()
	if len(union) > 0 {
		if err := client.SubscribeToBars(f.handleBar, tickerStrings(union)...); err != nil {
			return fmt.Errorf("subscribing fast feed: %w", err)
		}
	}
	l.markConnected()

	select {
	case <-ctx.Done():
		return nil
	case err := <-client.Terminated():
		return err
	}
}

func (f *FastFeed) handleBar(b stream.Bar) {
	bar := fastBarToDomain(b, f.market)
	if err := f.writer.WriteQuotes(context.Background(), []domain.Bar{bar}); err != nil {
		f.log.Error("writing fast-feed bar failed", "ticker", bar.Ticker, "error", err)
	}
}

// backfillStage2 fetches the vendor REST 1-minute bars for the trailing
// 15-minute window for a newly subscribed ticker, re-clips defensively,
// and writes them (spec.md §4.3, §4.5 S2).
func (f *FastFeed) backfillStage2(ctx context.Context, ticker domain.Ticker) {
	now := time.Now()
	from := now.Add(-stitching.Stage2Window)

	resp, err := f.rest.GetBars(ticker.String(), marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneMin,
		Start:     from,
		End:       now,
		Feed:      "iex",
	})
	if err != nil {
		f.log.Warn("stage-2 backfill fetch failed", "ticker", ticker, "error", err)
		return
	}

	bars := make([]domain.Bar, 0, len(resp))
	for _, ab := range resp {
		bars = append(bars, alpacaRestBarToDomain(ticker, ab, f.market))
	}
	bars = stitching.ClipStage2(bars, now)
	if len(bars) == 0 {
		return
	}
	if err := f.writer.WriteQuotes(ctx, bars); err != nil {
		f.log.Error("stage-2 backfill write failed", "ticker", ticker, "error", err)
	}
}

// fastBarToDomain maps a streaming bar event into a domain.Bar.
func fastBarToDomain(b stream.Bar, market domain.Market) domain.Bar {
	bar := domain.Bar{
		Ticker: domain.Ticker(b.Symbol),
		Market: market,
		Time:   b.Timestamp,
		Open:   decimal.NewFromFloat(b.Open),
		High:   decimal.NewFromFloat(b.High),
		Low:    decimal.NewFromFloat(b.Low),
		Close:  decimal.NewFromFloat(b.Close),
		Volume: int64(b.Volume),
	}
	if b.VWAP != 0 {
		vwap := decimal.NewFromFloat(b.VWAP)
		bar.VWAP = &vwap
	}
	if b.TradeCount != 0 {
		trades := int64(b.TradeCount)
		bar.Trades = &trades
	}
	return bar
}

// alpacaRestBarToDomain maps a REST-fetched bar into a domain.Bar.
func alpacaRestBarToDomain(ticker domain.Ticker, b marketdata.Bar, market domain.Market) domain.Bar {
	bar := domain.Bar{
		Ticker: ticker,
		Market: market,
		Time:   b.Timestamp,
		Open:   decimal.NewFromFloat(b.Open),
		High:   decimal.NewFromFloat(b.High),
		Low:    decimal.NewFromFloat(b.Low),
		Close:  decimal.NewFromFloat(b.Close),
		Volume: int64(b.Volume),
	}
	if b.VWAP != 0 {
		vwap := decimal.NewFromFloat(b.VWAP)
		bar.VWAP = &vwap
	}
	if b.TradeCount != 0 {
		trades := int64(b.TradeCount)
		bar.Trades = &trades
	}
	return bar
}

func tickerStrings(tickers []domain.Ticker) []string {
	out := make([]string, len(tickers))
	for i, t := range tickers {
		out[i] = t.String()
	}
	return out
}
