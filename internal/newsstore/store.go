// Package newsstore saves news article bodies to the object store and
// forwards metadata-only records to the time-series writer (spec.md
// §4.2). The object store holds the article text; the time-series store
// never does (spec.md I4).
package newsstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wavepilot/ingestd/internal/config"
	"github.com/wavepilot/ingestd/internal/domain"
	"github.com/wavepilot/ingestd/internal/objectstore"
	"github.com/wavepilot/ingestd/internal/tswriter"
)

const (
	maxMetadataLen  = 200
	fetchTimeout    = 10 * time.Second
	maxArticleBytes = 1 << 20

	minContentLen = 100
	maxContentLen = 50000
)

// articleBody is the JSON document uploaded to object storage. Content
// is only present when extraction met minContentLen (spec.md §4.2b/E5).
type articleBody struct {
	ID      string `json:"id"`
	Ticker  string `json:"ticker"`
	Title   string `json:"title,omitempty"`
	URL     string `json:"url"`
	Content string `json:"content,omitempty"`
}

// contentFetcher retrieves the raw article body for a news item's URL.
// Swapped out in tests; the default implementation is a plain GET.
type contentFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type httpFetcher struct {
	client *http.Client
}

func (f *httpFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetching %s: status %d", rawURL, resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxArticleBytes)
	buf, err := io.ReadAll(limited)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// Store persists news article bodies to the object store and forwards
// sanitised metadata to the time-series writer.
type Store struct {
	objects objectstore.Store
	writer  tswriter.Writer
	bucket  string
	fetcher contentFetcher
	log     *slog.Logger
}

// New creates a Store. An empty bucket disables content fetch/upload
// entirely: items are forwarded to the writer with S3Path left nil
// (spec.md §4.2).
func New(cfg config.ObjectStore, objects objectstore.Store, writer tswriter.Writer, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		objects: objects,
		writer:  writer,
		bucket:  cfg.Bucket,
		fetcher: &httpFetcher{client: &http.Client{Timeout: fetchTimeout}},
		log:     log.With("component", "newsstore"),
	}
}

// Save uploads each item's article body (when fetchContent is set and
// the object store is configured) and forwards the metadata-only record
// set to the time-series writer. A failure uploading one item's body
// does not block the others or the metadata write (spec.md §4.2).
func (s *Store) Save(ctx context.Context, items []domain.NewsItem, market domain.Market, fetchContent bool) error {
	if len(items) == 0 {
		return nil
	}

	out := make([]domain.NewsItem, len(items))
	for i, item := range items {
		out[i] = s.saveOne(ctx, item, fetchContent)
	}
	return s.writer.WriteNews(ctx, out, market)
}

func (s *Store) saveOne(ctx context.Context, item domain.NewsItem, fetchContent bool) domain.NewsItem {
	if !fetchContent || s.bucket == "" || s.objects == nil {
		return item
	}
	if item.ID == "" || item.Ticker == "" || item.URL == "" {
		return item
	}

	raw, err := s.fetcher.Fetch(ctx, item.URL)
	if err != nil {
		s.log.Warn("fetching article content failed", "id", item.ID, "ticker", item.Ticker, "error", err)
		return item
	}

	content := extractSymbolContent(raw, item.Ticker.String())
	hasContent := len(content) >= minContentLen
	if hasContent && len(content) > maxContentLen {
		content = content[:maxContentLen]
	}

	doc := articleBody{
		ID:     item.ID,
		Ticker: item.Ticker.String(),
		Title:  item.Title,
		URL:    item.URL,
	}
	if hasContent {
		doc.Content = content
	}
	body, err := json.Marshal(doc)
	if err != nil {
		s.log.Warn("marshalling article body failed", "id", item.ID, "ticker", item.Ticker, "error", err)
		return item
	}

	sentiment := ""
	if item.Sentiment != nil {
		sentiment = string(*item.Sentiment)
	}
	key := objectKey(item)
	metadata := map[string]string{
		"news-id":      sanitizeMetadata(item.ID),
		"ticker":       sanitizeMetadata(item.Ticker.String()),
		"source":       sanitizeMetadata(item.Source),
		"published-at": item.Time.UTC().Format(time.RFC3339),
		"sentiment":    sanitizeMetadata(sentiment),
		"has-content":  strconv.FormatBool(hasContent),
	}
	if err := s.objects.Put(ctx, s.bucket, key, body, metadata); err != nil {
		s.log.Warn("uploading article body failed", "id", item.ID, "ticker", item.Ticker, "error", err)
		return item
	}

	path := fmt.Sprintf("%s/%s", s.bucket, key)
	item.S3Path = &path
	return item
}

// objectKey computes the deterministic raw/news/<ticker>/<date>/<id>.json
// key layout (spec.md §4.2).
func objectKey(item domain.NewsItem) string {
	date := item.Time.UTC().Format("2006-01-02")
	return fmt.Sprintf("raw/news/%s/%s/%s.json", item.Ticker, date, sanitizeKeySegment(item.ID))
}

func sanitizeKeySegment(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "/", "_"), " ", "_")
}

func sanitizeMetadata(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r > 126 || r < 0x20 {
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if len(out) > maxMetadataLen {
		out = out[:maxMetadataLen]
	}
	return out
}
