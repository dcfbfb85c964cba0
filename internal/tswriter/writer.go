// Package tswriter normalises domain records into time-series points,
// batches and retries writes, and relies on the store's
// (measurement, tag-set, timestamp) upsert semantics to implement
// correction (spec.md §4.1).
package tswriter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wavepilot/ingestd/internal/config"
	"github.com/wavepilot/ingestd/internal/domain"
	"github.com/wavepilot/ingestd/internal/ingesterr"
	"github.com/wavepilot/ingestd/internal/secretstore"
)

// batchSize is the bulk-write chunk size for quotes, daily bars and
// fundamentals; news is written one record at a time (spec.md §4.1).
const batchSize = 1000

// retryAttempts and retryStep implement the "1s x attempt" linear
// backoff, 3-attempt retry policy (spec.md §4.1).
const (
	retryAttempts = 3
	retryStep     = 1 * time.Second
)

// Writer is the TSWriter contract (spec.md §4.1).
type Writer interface {
	WriteQuotes(ctx context.Context, bars []domain.Bar) error
	WriteDailyData(ctx context.Context, daily []domain.DailyBar) error
	WriteNews(ctx context.Context, news []domain.NewsItem, market domain.Market) error
	WriteFundamentals(ctx context.Context, fund []domain.Fundamentals) error
	Close() error
}

// influxWriter is the default Writer implementation, writing line
// protocol to an InfluxDB-compatible HTTP write endpoint. Initialisation
// is lazy: the first call fetches credentials from the secret store and
// builds the HTTP client; Close reverts to uninitialised.
type influxWriter struct {
	cfg     config.InfluxDB
	secrets *secretstore.Cache
	log     *slog.Logger

	mu          sync.Mutex
	initialized bool
	client      *resty.Client
}

// New creates a Writer. cfg.SecretARN identifies the credential bundle the
// secret store holds for the time-series store.
func New(cfg config.InfluxDB, secrets *secretstore.Cache, log *slog.Logger) Writer {
	if log == nil {
		log = slog.Default()
	}
	return &influxWriter{cfg: cfg, secrets: secrets, log: log.With("component", "tswriter")}
}

// initialize lazily fetches credentials and connects the HTTP client.
// Subsequent calls reuse the connection until Close.
func (w *influxWriter) initialize(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.initialized {
		return nil
	}
	if w.cfg.Endpoint == "" {
		return ingesterr.New(ingesterr.ConfigMissing, "initialize", fmt.Errorf("INFLUXDB_ENDPOINT not configured"))
	}

	client := resty.New().
		SetBaseURL(fmt.Sprintf("%s:%d", strings.TrimRight(w.cfg.Endpoint, "/"), w.cfg.Port)).
		SetTimeout(10 * time.Second)

	if w.cfg.SecretARN != "" && w.secrets != nil {
		values, err := w.secrets.Get(ctx, w.cfg.SecretARN)
		if err != nil {
			return ingesterr.New(ingesterr.AuthFail, "initialize", err)
		}
		if token, ok := values["token"]; ok && token != "" {
			client.SetAuthToken(token)
		} else if pw, ok := values["password"]; ok && pw != "" {
			client.SetAuthToken(pw)
		}
	}

	w.client = client
	w.initialized = true
	return nil
}

// Close releases the writer's connection and reverts to uninitialised.
func (w *influxWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.client = nil
	w.initialized = false
	return nil
}

func (w *influxWriter) WriteQuotes(ctx context.Context, bars []domain.Bar) error {
	points := make([]point, 0, len(bars))
	for _, b := range bars {
		p, ok := barPoint(b)
		if !ok {
			w.log.Warn("dropping invalid bar", "ticker", b.Ticker, "time", b.Time)
			continue
		}
		points = append(points, p)
	}
	return w.writeBatched(ctx, points)
}

func (w *influxWriter) WriteDailyData(ctx context.Context, daily []domain.DailyBar) error {
	points := make([]point, 0, len(daily))
	for _, d := range daily {
		p, ok := dailyBarPoint(d)
		if !ok {
			w.log.Warn("dropping invalid daily bar", "ticker", d.Ticker, "date", d.Date)
			continue
		}
		points = append(points, p)
	}
	return w.writeBatched(ctx, points)
}

// WriteNews writes news per-record rather than batched-with-retry: this
// path is authoritative (spec.md §9's open question) because
// sanitisation/validation can drop an individual record, and per-record
// writes isolate that from the rest of the batch.
func (w *influxWriter) WriteNews(ctx context.Context, news []domain.NewsItem, market domain.Market) error {
	if err := w.initialize(ctx); err != nil {
		return err
	}
	for _, n := range news {
		p, ok := newsPoint(n, market)
		if !ok {
			w.log.Warn("dropping invalid news item", "id", n.ID, "ticker", n.Ticker)
			continue
		}
		if err := w.writeOne(ctx, p); err != nil {
			w.log.Error("writing news item failed", "id", n.ID, "error", err)
		}
	}
	return nil
}

func (w *influxWriter) WriteFundamentals(ctx context.Context, fund []domain.Fundamentals) error {
	points := make([]point, 0, len(fund))
	for _, f := range fund {
		p, ok := fundamentalsPoint(f)
		if !ok {
			w.log.Warn("dropping invalid fundamentals record", "ticker", f.Ticker)
			continue
		}
		points = append(points, p)
	}
	return w.writeBatched(ctx, points)
}

// writeBatched splits points into batchSize chunks and writes each chunk
// as a single request with retry.
func (w *influxWriter) writeBatched(ctx context.Context, points []point) error {
	if len(points) == 0 {
		return nil
	}
	if err := w.initialize(ctx); err != nil {
		return err
	}

	for i := 0; i < len(points); i += batchSize {
		end := i + batchSize
		if end > len(points) {
			end = len(points)
		}
		if err := w.writeChunkWithRetry(ctx, points[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (w *influxWriter) writeChunkWithRetry(ctx context.Context, chunk []point) error {
	err := retryUnlessAuthFail(ctx, func() error {
		return w.send(ctx, chunk)
	})
	if err != nil && !ingesterr.Is(err, ingesterr.AuthFail) {
		return ingesterr.New(ingesterr.Transient, "writeChunk", err)
	}
	return err
}

func (w *influxWriter) writeOne(ctx context.Context, p point) error {
	return retryUnlessAuthFail(ctx, func() error {
		return w.send(ctx, []point{p})
	})
}

// retryUnlessAuthFail is util.LinearRetry's same 1s-times-attempt
// backoff, except it stops on the first AuthFail rather than exhausting
// retryAttempts: spec.md §7 classifies AUTH_FAIL as fatal-and-surfaced,
// not retried, so the kind must reach the caller intact.
func retryUnlessAuthFail(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		err = fn()
		if err == nil || ingesterr.Is(err, ingesterr.AuthFail) {
			return err
		}
		if attempt < retryAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryStep * time.Duration(attempt+1)):
			}
		}
	}
	return err
}

func (w *influxWriter) send(ctx context.Context, points []point) error {
	lines := make([]string, len(points))
	for i, p := range points {
		lines[i] = p.lineProtocol()
	}
	body := strings.Join(lines, "\n")

	w.mu.Lock()
	client := w.client
	w.mu.Unlock()
	if client == nil {
		return fmt.Errorf("writer not initialized")
	}

	resp, err := client.R().
		SetContext(ctx).
		SetQueryParam("db", w.cfg.Database).
		SetQueryParam("precision", "ms").
		SetBody(body).
		Post("/api/v3/write_lp")
	if err != nil {
		return fmt.Errorf("writing %d points: %w", len(points), err)
	}
	if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
		return ingesterr.New(ingesterr.AuthFail, "send", fmt.Errorf("status %d", resp.StatusCode()))
	}
	if resp.IsError() {
		return fmt.Errorf("writing %d points: status %d", len(points), resp.StatusCode())
	}
	return nil
}
