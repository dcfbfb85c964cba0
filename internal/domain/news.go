package domain

import "time"

// Sentiment is the per-ticker news sentiment classification.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// NewsItem is a single news article's metadata. Identity is (ID, Ticker).
// The object-store body at S3Path, when set, is the source of truth for
// the article text (spec.md I4); this record carries only metadata plus
// the back-reference.
type NewsItem struct {
	ID     string
	Ticker Ticker

	Time        time.Time // published_utc
	Title       string
	URL         string
	Source      string // publisher.name
	Author      *string
	Description *string
	ImageURL    *string

	Keywords []string
	Tickers  []string

	Sentiment          *Sentiment
	SentimentReasoning *string

	S3Path *string
}
