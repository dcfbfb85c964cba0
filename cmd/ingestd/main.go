package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/wavepilot/ingestd/internal/config"
	"github.com/wavepilot/ingestd/internal/control"
	"github.com/wavepilot/ingestd/internal/domain"
	"github.com/wavepilot/ingestd/internal/marketstatus"
	"github.com/wavepilot/ingestd/internal/massive"
	"github.com/wavepilot/ingestd/internal/newsstore"
	"github.com/wavepilot/ingestd/internal/objectstore"
	"github.com/wavepilot/ingestd/internal/realtime"
	"github.com/wavepilot/ingestd/internal/reference"
	"github.com/wavepilot/ingestd/internal/scheduler"
	"github.com/wavepilot/ingestd/internal/secretstore"
	"github.com/wavepilot/ingestd/internal/tswriter"
	"github.com/wavepilot/ingestd/internal/util"
	"github.com/wavepilot/ingestd/internal/watchlist"
)

func main() {
	cfg := config.Load()

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	wl := watchlist.New(cfg.Watchlist, logger)
	cal := util.NewTradingCalendar(domain.MarketUS)

	secrets := secretstore.NewCache(secretstore.New(cfg.SecretStore.Endpoint))
	keys, err := secretstore.LoadAPIKeys(ctx, secrets, cfg.SecretStore.APIKeysSecretARN)
	if err != nil {
		logger.Error("loading API keys, feeds and scheduler will be degraded", "error", err)
	}

	objects := objectstore.New(cfg.ObjectStore.Endpoint)
	writer := tswriter.New(cfg.InfluxDB, secrets, logger)
	news := newsstore.New(cfg.ObjectStore, objects, writer, logger)

	vendorClient := massive.New(cfg.Massive.BaseURL, keys.MassiveKey)
	status := marketstatus.New(massiveStatusFetcher{vendorClient}, cal, logger)
	sched := scheduler.New(wl, vendorClient, writer, news, status, cal, domain.MarketUS, logger)
	if cfg.ReferenceDataDir != "" {
		sched.SetReferenceClassifier(reference.Load(cfg.ReferenceDataDir, logger))
	}
	sched.SetFetchNewsContent(cfg.Features.FetchNewsContent)

	var fastFeed *realtime.FastFeed
	var delayedFeed *realtime.DelayedFeed
	if cfg.Features.EnableRealtime {
		fastFeed = realtime.NewFastFeed(cfg.Massive, keys.AlpacaKey, keys.AlpacaSecret, status, writer, domain.MarketUS, logger)
		delayedFeed = realtime.NewDelayedFeed(cfg.Massive, keys.MassiveKey, cal, writer, domain.MarketUS, logger)
	}

	// The health server starts before any of the streaming/cron
	// collaborators begin their own, slower startup work, so a
	// container orchestrator's liveness probe passes during
	// initialisation rather than timing out.
	ctrl := control.New(fastFeed, delayedFeed, sched, wl, logger)
	healthSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: ctrl.Handler(),
	}
	go func() {
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server stopped", "error", err)
		}
	}()

	if fastFeed != nil {
		fastFeed.Start()
		delayedFeed.Start()
		fastFeed.Subscribe(ctx, wl.Snapshot())
		delayedFeed.Subscribe(ctx, wl.Snapshot())
	}

	if cfg.Features.EnableScheduler {
		if err := sched.Start(ctx); err != nil {
			logger.Error("starting scheduler", "error", err)
		}
	}

	logger.Info("ingestd started", "watchlist", wl.SortedStrings(), "healthPort", cfg.Health.Port)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	ctrl.StopAcceptingMutations()

	if fastFeed != nil {
		fastFeed.Stop()
	}
	if delayedFeed != nil {
		delayedFeed.Stop()
	}
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("health server shutdown", "error", err)
	}

	if err := writer.Close(); err != nil {
		logger.Warn("closing time-series writer", "error", err)
	}

	logger.Info("ingestd stopped")
}

// massiveStatusFetcher adapts massive.Client to marketstatus.Fetcher.
type massiveStatusFetcher struct {
	client *massive.Client
}

func (f massiveStatusFetcher) GetMarketStatus(ctx context.Context) (domain.MarketStatus, error) {
	result, err := f.client.MarketStatus(ctx)
	if err != nil {
		return domain.MarketStatus{}, err
	}
	return domain.MarketStatus{
		IsOpen:     result.Market == "open",
		EarlyHours: result.EarlyHours,
		AfterHours: result.AfterHours,
	}, nil
}
