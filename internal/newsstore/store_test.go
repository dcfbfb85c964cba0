package newsstore

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/wavepilot/ingestd/internal/config"
	"github.com/wavepilot/ingestd/internal/domain"
)

type fakeFetcher struct {
	html map[string]string
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.html[url], nil
}

type fakeObjectStore struct {
	puts     map[string][]byte
	metadata map[string]map[string]string
}

func (f *fakeObjectStore) Put(ctx context.Context, bucket, key string, body []byte, metadata map[string]string) error {
	if f.puts == nil {
		f.puts = map[string][]byte{}
	}
	if f.metadata == nil {
		f.metadata = map[string]map[string]string{}
	}
	f.puts[bucket+"/"+key] = body
	f.metadata[bucket+"/"+key] = metadata
	return nil
}

type fakeWriter struct {
	written []domain.NewsItem
}

func (f *fakeWriter) WriteQuotes(ctx context.Context, bars []domain.Bar) error             { return nil }
func (f *fakeWriter) WriteDailyData(ctx context.Context, daily []domain.DailyBar) error    { return nil }
func (f *fakeWriter) WriteFundamentals(ctx context.Context, fund []domain.Fundamentals) error {
	return nil
}
func (f *fakeWriter) Close() error { return nil }
func (f *fakeWriter) WriteNews(ctx context.Context, news []domain.NewsItem, market domain.Market) error {
	f.written = append(f.written, news...)
	return nil
}

func TestSaveFetchesAndUploadsContent(t *testing.T) {
	longParagraph := "AAPL shares rose today after the company reported quarterly earnings " +
		"that beat analyst expectations across every major product line and region worldwide."
	item := domain.NewsItem{
		ID:     "n1",
		Ticker: "AAPL",
		Time:   time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
		Title:  "Apple rises",
		URL:    "https://news.example.com/aapl",
		Source: "example",
	}
	fetcher := &fakeFetcher{html: map[string]string{
		item.URL: "<p>" + longParagraph + "</p><p>Unrelated story about MSFT.</p>",
	}}
	objects := &fakeObjectStore{}
	writer := &fakeWriter{}

	s := New(config.ObjectStore{Bucket: "news-bucket"}, objects, writer, nil)
	s.fetcher = fetcher

	if err := s.Save(context.Background(), []domain.NewsItem{item}, domain.MarketUS, true); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if len(writer.written) != 1 {
		t.Fatalf("written = %d, want 1", len(writer.written))
	}
	got := writer.written[0]
	if got.S3Path == nil {
		t.Fatal("S3Path was not set")
	}
	want := "news-bucket/raw/news/AAPL/2026-01-15/n1.json"
	if *got.S3Path != want {
		t.Errorf("S3Path = %q, want %q", *got.S3Path, want)
	}

	body := objects.puts[want]
	if body == nil {
		t.Fatal("object store did not receive a Put for the expected key")
	}
	var doc articleBody
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("stored body is not valid JSON: %v", err)
	}
	if doc.Content != longParagraph {
		t.Errorf("stored content = %q, want only the AAPL paragraph", doc.Content)
	}

	meta := objects.metadata[want]
	if meta["has-content"] != "true" {
		t.Errorf("has-content = %q, want true", meta["has-content"])
	}
	if meta["news-id"] != "n1" || meta["ticker"] != "AAPL" || meta["source"] != "example" {
		t.Errorf("metadata missing required keys: %#v", meta)
	}
	if meta["published-at"] != "2026-01-15T09:00:00Z" {
		t.Errorf("published-at = %q", meta["published-at"])
	}
}

func TestSaveShortContentUploadsMetadataOnlyDocument(t *testing.T) {
	item := domain.NewsItem{
		ID:     "n9",
		Ticker: "AAPL",
		Time:   time.Now(),
		Title:  "Apple brief",
		URL:    "https://news.example.com/aapl-brief",
		Source: "example",
	}
	fetcher := &fakeFetcher{html: map[string]string{
		item.URL: "<p>AAPL up.</p>",
	}}
	objects := &fakeObjectStore{}
	writer := &fakeWriter{}

	s := New(config.ObjectStore{Bucket: "news-bucket"}, objects, writer, nil)
	s.fetcher = fetcher

	if err := s.Save(context.Background(), []domain.NewsItem{item}, domain.MarketUS, true); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := writer.written[0]
	if got.S3Path == nil {
		t.Fatal("expected S3Path to be set even when content is too short")
	}

	var doc map[string]any
	body := objects.puts[*got.S3Path]
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("stored body is not valid JSON: %v", err)
	}
	if _, ok := doc["content"]; ok {
		t.Error("expected no content field in the uploaded document")
	}

	meta := objects.metadata[*got.S3Path]
	if meta["has-content"] != "false" {
		t.Errorf("has-content = %q, want false", meta["has-content"])
	}
}

func TestSaveCapsContentAt50000Chars(t *testing.T) {
	item := domain.NewsItem{
		ID:     "n10",
		Ticker: "AAPL",
		Time:   time.Now(),
		Title:  "Apple long",
		URL:    "https://news.example.com/aapl-long",
		Source: "example",
	}
	huge := strings.Repeat("a", 60000)
	fetcher := &fakeFetcher{html: map[string]string{item.URL: "<p>" + huge + " AAPL</p>"}}
	objects := &fakeObjectStore{}
	writer := &fakeWriter{}

	s := New(config.ObjectStore{Bucket: "news-bucket"}, objects, writer, nil)
	s.fetcher = fetcher

	if err := s.Save(context.Background(), []domain.NewsItem{item}, domain.MarketUS, true); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := writer.written[0]
	var doc articleBody
	if err := json.Unmarshal(objects.puts[*got.S3Path], &doc); err != nil {
		t.Fatalf("stored body is not valid JSON: %v", err)
	}
	if len(doc.Content) > 50000 {
		t.Errorf("content length = %d, want <= 50000", len(doc.Content))
	}
}

func TestSaveSkipsFetchWhenDisabled(t *testing.T) {
	item := domain.NewsItem{
		ID:     "n2",
		Ticker: "TSLA",
		Time:   time.Now(),
		Title:  "Tesla news",
		URL:    "https://news.example.com/tsla",
	}
	writer := &fakeWriter{}
	s := New(config.ObjectStore{Bucket: "news-bucket"}, &fakeObjectStore{}, writer, nil)
	s.fetcher = &fakeFetcher{}

	if err := s.Save(context.Background(), []domain.NewsItem{item}, domain.MarketUS, false); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if writer.written[0].S3Path != nil {
		t.Error("S3Path should remain nil when fetchContent is false")
	}
}

func TestSaveWithoutBucketForwardsMetadataOnly(t *testing.T) {
	item := domain.NewsItem{ID: "n3", Ticker: "NVDA", Time: time.Now(), Title: "t", URL: "https://x"}
	writer := &fakeWriter{}
	s := New(config.ObjectStore{}, nil, writer, nil)

	if err := s.Save(context.Background(), []domain.NewsItem{item}, domain.MarketUS, true); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(writer.written) != 1 || writer.written[0].S3Path != nil {
		t.Error("expected metadata-only forward with nil S3Path when no bucket is configured")
	}
}

func TestSaveIsolatesFetchFailurePerItem(t *testing.T) {
	good := domain.NewsItem{ID: "n4", Ticker: "AMD", Time: time.Now(), Title: "good", URL: "https://ok"}
	bad := domain.NewsItem{ID: "n5", Ticker: "AMD", Time: time.Now(), Title: "bad", URL: "https://fail"}

	fetcher := &fakeFetcher{html: map[string]string{good.URL: "<p>AMD up.</p>"}}
	writer := &fakeWriter{}
	s := New(config.ObjectStore{Bucket: "b"}, &fakeObjectStore{}, writer, nil)
	s.fetcher = fetcher
	fetcher.err = nil

	// Simulate a fetcher that errors only for the bad URL.
	s.fetcher = fetchFunc(func(ctx context.Context, url string) (string, error) {
		if url == bad.URL {
			return "", errFetch
		}
		return fetcher.html[url], nil
	})

	if err := s.Save(context.Background(), []domain.NewsItem{good, bad}, domain.MarketUS, true); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(writer.written) != 2 {
		t.Fatalf("written = %d, want 2", len(writer.written))
	}
	if writer.written[0].S3Path == nil {
		t.Error("good item should have S3Path set")
	}
	if writer.written[1].S3Path != nil {
		t.Error("bad item should be forwarded without S3Path, not dropped")
	}
}

type fetchFunc func(ctx context.Context, url string) (string, error)

func (f fetchFunc) Fetch(ctx context.Context, url string) (string, error) { return f(ctx, url) }

var errFetch = &fetchError{"fetch failed"}

type fetchError struct{ msg string }

func (e *fetchError) Error() string { return e.msg }
