// Package scheduler runs the cron table of periodic ingestion jobs and
// the explicit backfillHistory/runTask operations (spec.md §4.4). Jobs
// are registered with go-co-op/gocron, the same timezone-aware scheduler
// library used elsewhere in the retrieved corpus for market-data cron
// tables.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/wavepilot/ingestd/internal/domain"
	"github.com/wavepilot/ingestd/internal/ingesterr"
	"github.com/wavepilot/ingestd/internal/marketstatus"
	"github.com/wavepilot/ingestd/internal/massive"
	"github.com/wavepilot/ingestd/internal/newsstore"
	"github.com/wavepilot/ingestd/internal/reference"
	"github.com/wavepilot/ingestd/internal/stitching"
	"github.com/wavepilot/ingestd/internal/tswriter"
	"github.com/wavepilot/ingestd/internal/util"
	"github.com/wavepilot/ingestd/internal/watchlist"
)

const (
	interTickerDelay    = 200 * time.Millisecond
	sipCorrectionDelay  = 100 * time.Millisecond
	backfillDelay       = 300 * time.Millisecond
	backfillWindow      = 30 * 24 * time.Hour
	backfillMinuteLimit = 50000
	newsLimitPerTicker  = 20
	fundamentalsLimit   = 4
	rateLimitBackoff    = 60 * time.Second
)

// vendorClient is the subset of massive.Client the scheduler calls,
// narrowed to an interface so jobs can be exercised against a fake
// vendor in tests.
type vendorClient interface {
	Snapshot(ctx context.Context) ([]massive.SnapshotTicker, error)
	GroupedDaily(ctx context.Context, date time.Time) ([]massive.Bar, error)
	RangeAggs(ctx context.Context, ticker string, timeframe massive.AggTimeframe, from, to time.Time, limit int) ([]massive.Bar, error)
	News(ctx context.Context, ticker string, limit int) ([]massive.NewsResult, error)
	Financials(ctx context.Context, ticker string, limit int) ([]massive.FinancialsResult, error)
}

// Scheduler holds the watchlist, secret-derived API clients, and the
// cron table (spec.md §4.4). start/stop are idempotent.
type Scheduler struct {
	watchlist *watchlist.List
	client    vendorClient
	writer    tswriter.Writer
	news      *newsstore.Store
	status    *marketstatus.Cache
	cal       *util.TradingCalendar
	market    domain.Market
	log       *slog.Logger

	progress         *backfillProgress
	refs             *reference.Classifier
	fetchNewsContent bool

	cron *gocron.Scheduler
}

// New creates a Scheduler. client must already be authenticated with the
// vendor's API key.
func New(wl *watchlist.List, client vendorClient, writer tswriter.Writer, news *newsstore.Store, status *marketstatus.Cache, cal *util.TradingCalendar, market domain.Market, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		watchlist: wl,
		client:    client,
		writer:    writer,
		news:      news,
		status:    status,
		cal:       cal,
		market:    market,
		log:       log.With("component", "scheduler"),
		progress:  newBackfillProgress(),
		refs:      reference.Load("", nil),
		cron:      gocron.NewScheduler(cal.Location()),
	}
}

// SetReferenceClassifier installs an optional CSV-backed symbol
// classifier used to override bulk-write filtering for tickers the
// regex-only common-stock check can't classify (spec.md §6's
// supplemented features).
func (s *Scheduler) SetReferenceClassifier(c *reference.Classifier) {
	s.refs = c
}

// SetFetchNewsContent controls whether runNews asks NewsStore to fetch
// and upload article bodies (FETCH_NEWS_CONTENT, spec.md §6). Off by
// default: metadata-only news records are still written either way.
func (s *Scheduler) SetFetchNewsContent(enabled bool) {
	s.fetchNewsContent = enabled
}

// includeInBulkWrite reports whether tk should be written by the
// snapshot/eod bulk jobs: it passes the regex-only FilterCommon check,
// or the reference classifier confirms it as common stock despite
// failing the regex (e.g. dotted share classes like BRK.B).
func (s *Scheduler) includeInBulkWrite(tk domain.Ticker) bool {
	if domain.Filter(tk, domain.FilterCommon) {
		return true
	}
	return s.refs != nil && s.refs.IncludeAsCommon(tk.String())
}

// Start registers the cron table and begins firing jobs asynchronously.
// It is a no-op if already started.
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.cron.Jobs()) > 0 {
		return nil
	}

	entries := []struct {
		name string
		cron string
		run  func(context.Context) error
	}{
		{"snapshot", "*/5 * * * 1-5", s.runSnapshot},
		{"sipMinuteCorrection", "* * * * 1-5", s.runSIPMinuteCorrection},
		{"eod", "30 16 * * 1-5", s.runEOD},
		{"news", "*/15 * * * *", s.runNews},
		{"fundamentals", "0 6 * * 1-5", s.runFundamentals},
	}

	for _, e := range entries {
		name, run := e.name, e.run
		if _, err := s.cron.Cron(e.cron).Do(func() {
			if err := run(ctx); err != nil {
				s.log.Error("cron job failed", "job", name, "error", err)
			}
		}); err != nil {
			return fmt.Errorf("registering cron job %s: %w", name, err)
		}
	}

	s.cron.StartAsync()
	return nil
}

// Stop unregisters the cron table and waits for in-flight handlers to
// return (spec.md §5: stop does not cancel their in-flight HTTP calls).
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.cron.Clear()
}

// Status reports "running" once the cron table has been registered and
// "stopped" otherwise, for the control surface's health response
// (spec.md §6).
func (s *Scheduler) Status() string {
	if len(s.cron.Jobs()) > 0 {
		return "running"
	}
	return "stopped"
}

// gate is the market-open precondition the snapshot and
// sipMinuteCorrection jobs require at fire time.
func (s *Scheduler) gate(ctx context.Context) bool {
	return s.status.IsOpen(ctx)
}

// runSnapshot fetches the full-market snapshot, filters to common stock,
// and writes in 1000-row batches (spec.md §4.4 "snapshot").
func (s *Scheduler) runSnapshot(ctx context.Context) error {
	if !s.gate(ctx) {
		return nil
	}
	tickers, err := s.client.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	daily := make([]domain.DailyBar, 0, len(tickers))
	for _, t := range tickers {
		tk, err := domain.NewTicker(t.Ticker)
		if err != nil || !s.includeInBulkWrite(tk) {
			continue
		}
		d := snapshotToDailyBar(tk, t, s.market, time.Now())
		daily = append(daily, d)
	}
	return s.writer.WriteDailyData(ctx, daily)
}

// runSIPMinuteCorrection fetches the minute at now-16min for each
// watchlist ticker and overwrites the corresponding bar, implementing
// Layer 1/2 SIP correction (spec.md §4.4, §4.5 S4).
func (s *Scheduler) runSIPMinuteCorrection(ctx context.Context) error {
	if !s.gate(ctx) {
		return nil
	}
	target := stitching.SIPCorrectionTime(time.Now())
	for _, ticker := range s.watchlist.Snapshot() {
		if err := s.correctMinute(ctx, ticker, target); err != nil {
			s.log.Warn("sip minute correction failed", "ticker", ticker, "error", err)
		}
		if err := sleepOrDone(ctx, sipCorrectionDelay); err != nil {
			return err
		}
	}
	return nil
}

// correctMinute rewrites only the single minute the S4 SIP correction
// targets. The vendor's range endpoint has day granularity, so the
// response is clipped down to target before it's written (spec.md §4.5
// S4) -- otherwise every tick would rewrite the whole day.
func (s *Scheduler) correctMinute(ctx context.Context, ticker domain.Ticker, target time.Time) error {
	bars, err := s.fetchWithRateLimitRetry(ctx, ticker, massive.AggMinute, target, target)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return nil
	}
	domainBars := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		domainBars = append(domainBars, barToDomain(ticker, b, s.market))
	}
	domainBars = stitching.ClipSIPCorrection(domainBars, target)
	if len(domainBars) == 0 {
		return nil
	}
	return s.writer.WriteQuotes(ctx, domainBars)
}

// correctDay rewrites the entire day's minute bars for ticker, used by
// EOD (spec.md §4.5 S5), which genuinely wants every minute rather than
// a single one.
func (s *Scheduler) correctDay(ctx context.Context, ticker domain.Ticker, day time.Time) error {
	bars, err := s.fetchWithRateLimitRetry(ctx, ticker, massive.AggMinute, day, day)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return nil
	}
	domainBars := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		domainBars = append(domainBars, barToDomain(ticker, b, s.market))
	}
	return s.writer.WriteQuotes(ctx, domainBars)
}

// runEOD rewrites the whole day from the authoritative grouped-daily
// feed plus a per-watchlist minute re-correction for today (spec.md
// §4.4, §4.5 S5). It runs regardless of market status.
func (s *Scheduler) runEOD(ctx context.Context) error {
	today := time.Now()
	bars, err := s.client.GroupedDaily(ctx, today)
	if err != nil {
		return fmt.Errorf("eod grouped daily: %w", err)
	}

	daily := make([]domain.DailyBar, 0, len(bars))
	for _, b := range bars {
		tk, err := domain.NewTicker(b.Ticker)
		if err != nil || !s.includeInBulkWrite(tk) {
			continue
		}
		daily = append(daily, groupedBarToDailyBar(tk, b, s.market))
	}
	if err := s.writer.WriteDailyData(ctx, daily); err != nil {
		return fmt.Errorf("eod write daily: %w", err)
	}

	for _, ticker := range s.watchlist.Snapshot() {
		if err := s.correctDay(ctx, ticker, today); err != nil {
			s.log.Warn("eod minute correction failed", "ticker", ticker, "error", err)
		}
		if err := sleepOrDone(ctx, interTickerDelay); err != nil {
			return err
		}
	}
	return nil
}

// runNews lists recent news per watchlist ticker and delegates to
// NewsStore with fetchContent per FETCH_NEWS_CONTENT (spec.md §4.4, §6).
func (s *Scheduler) runNews(ctx context.Context) error {
	for _, ticker := range s.watchlist.Snapshot() {
		results, err := s.client.News(ctx, ticker.String(), newsLimitPerTicker)
		if err != nil {
			s.log.Warn("news fetch failed", "ticker", ticker, "error", err)
			if err := sleepOrDone(ctx, interTickerDelay); err != nil {
				return err
			}
			continue
		}
		items := make([]domain.NewsItem, 0, len(results))
		for _, r := range results {
			items = append(items, newsResultToDomain(r))
		}
		if err := s.news.Save(ctx, items, s.market, s.fetchNewsContent); err != nil {
			s.log.Warn("news save failed", "ticker", ticker, "error", err)
		}
		if err := sleepOrDone(ctx, interTickerDelay); err != nil {
			return err
		}
	}
	return nil
}

// runFundamentals fetches financials per watchlist ticker, soft-skipping
// tickers the vendor reports as not available (spec.md §4.4, §6).
func (s *Scheduler) runFundamentals(ctx context.Context) error {
	for _, ticker := range s.watchlist.Snapshot() {
		results, err := s.client.Financials(ctx, ticker.String(), fundamentalsLimit)
		if ingesterr.Is(err, ingesterr.NotAvailable) {
			s.log.Info("fundamentals not available", "ticker", ticker)
			if err := sleepOrDone(ctx, interTickerDelay); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			s.log.Warn("fundamentals fetch failed", "ticker", ticker, "error", err)
			if err := sleepOrDone(ctx, interTickerDelay); err != nil {
				return err
			}
			continue
		}
		fund := make([]domain.Fundamentals, 0, len(results))
		for _, r := range results {
			fund = append(fund, financialsResultToDomain(ticker, r, s.market))
		}
		if err := s.writer.WriteFundamentals(ctx, fund); err != nil {
			s.log.Warn("fundamentals write failed", "ticker", ticker, "error", err)
		}
		if err := sleepOrDone(ctx, interTickerDelay); err != nil {
			return err
		}
	}
	return nil
}

// BackfillHistory implements Stage 1: daily aggregates for the trailing
// 30 days plus minute aggregates re-clipped to time<=now-15min, per
// symbol, with a 300ms inter-symbol delay (spec.md §4.4, §4.5 S1).
func (s *Scheduler) BackfillHistory(ctx context.Context, symbols []domain.Ticker) error {
	for _, ticker := range symbols {
		if !s.progress.markRunning(ticker.String()) {
			s.log.Info("backfill already running or completed for symbol, skipping", "ticker", ticker)
			continue
		}
		if err := s.backfillOne(ctx, ticker); err != nil {
			s.log.Error("backfill failed", "ticker", ticker, "error", err)
			s.progress.reset(ticker.String())
		}
		if err := sleepOrDone(ctx, backfillDelay); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) backfillOne(ctx context.Context, ticker domain.Ticker) error {
	now := time.Now()
	from := now.Add(-backfillWindow)

	dayBars, err := s.fetchWithRateLimitRetry(ctx, ticker, massive.AggDay, from, now)
	if err != nil {
		return fmt.Errorf("backfill daily %s: %w", ticker, err)
	}
	daily := make([]domain.DailyBar, 0, len(dayBars))
	for _, b := range dayBars {
		daily = append(daily, groupedBarToDailyBar(ticker, b, s.market))
	}
	if err := s.writer.WriteDailyData(ctx, daily); err != nil {
		return fmt.Errorf("backfill write daily %s: %w", ticker, err)
	}

	minuteBars, err := s.client.RangeAggs(ctx, ticker.String(), massive.AggMinute, from, now, backfillMinuteLimit)
	if err != nil {
		return fmt.Errorf("backfill minute %s: %w", ticker, err)
	}
	quotes := make([]domain.Bar, 0, len(minuteBars))
	for _, b := range minuteBars {
		quotes = append(quotes, barToDomain(ticker, b, s.market))
	}
	quotes = stitching.ClipStage1(quotes, now)
	return s.writer.WriteQuotes(ctx, quotes)
}

// RunTask executes the named job's action once, bypassing its market
// gate (spec.md §4.4 "manual trigger").
func (s *Scheduler) RunTask(ctx context.Context, name string) error {
	switch name {
	case "snapshot":
		return s.runSnapshotUngated(ctx)
	case "sipMinuteCorrection":
		return s.runSIPMinuteCorrectionUngated(ctx)
	case "eod":
		return s.runEOD(ctx)
	case "news":
		return s.runNews(ctx)
	case "fundamentals":
		return s.runFundamentals(ctx)
	default:
		return fmt.Errorf("unknown task %q", name)
	}
}

func (s *Scheduler) runSnapshotUngated(ctx context.Context) error {
	tickers, err := s.client.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	daily := make([]domain.DailyBar, 0, len(tickers))
	for _, t := range tickers {
		tk, err := domain.NewTicker(t.Ticker)
		if err != nil || !s.includeInBulkWrite(tk) {
			continue
		}
		daily = append(daily, snapshotToDailyBar(tk, t, s.market, time.Now()))
	}
	return s.writer.WriteDailyData(ctx, daily)
}

func (s *Scheduler) runSIPMinuteCorrectionUngated(ctx context.Context) error {
	target := stitching.SIPCorrectionTime(time.Now())
	for _, ticker := range s.watchlist.Snapshot() {
		if err := s.correctMinute(ctx, ticker, target); err != nil {
			s.log.Warn("sip minute correction failed", "ticker", ticker, "error", err)
		}
		if err := sleepOrDone(ctx, sipCorrectionDelay); err != nil {
			return err
		}
	}
	return nil
}

// fetchWithRateLimitRetry fetches a minute/day range and, on
// ingesterr.RateLimit, backs off 60s and retries the same request once
// (spec.md §4.4).
func (s *Scheduler) fetchWithRateLimitRetry(ctx context.Context, ticker domain.Ticker, timeframe massive.AggTimeframe, from, to time.Time) ([]massive.Bar, error) {
	bars, err := s.client.RangeAggs(ctx, ticker.String(), timeframe, from, to, 0)
	if ingesterr.Is(err, ingesterr.RateLimit) {
		if sleepErr := sleepOrDone(ctx, rateLimitBackoff); sleepErr != nil {
			return nil, sleepErr
		}
		return s.client.RangeAggs(ctx, ticker.String(), timeframe, from, to, 0)
	}
	return bars, err
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
