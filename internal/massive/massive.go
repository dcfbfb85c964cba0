// Package massive is the REST client for the delayed-feed vendor API
// (spec.md §6): snapshot, grouped-daily, aggregate bars, news,
// financials, and market-status. It is a thin resty wrapper; the wire
// shapes below mirror the vendor's JSON exactly and are translated into
// domain types by the caller (scheduler, realtime).
package massive

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wavepilot/ingestd/internal/ingesterr"
)

// Client is the delayed-feed REST client.
type Client struct {
	http *resty.Client
}

// New creates a Client against baseURL (spec.md §6, MASSIVE_BASE_URL).
func New(baseURL, apiKey string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetQueryParam("apiKey", apiKey)
	return &Client{http: c}
}

// Bar is the vendor's aggregate-bar shape, shared by snapshot, grouped
// daily, and range-aggregate responses.
type Bar struct {
	Ticker string  `json:"T"`
	Time   int64   `json:"t"` // epoch millis
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
	VWAP   float64 `json:"vw,omitempty"`
	Trades int64   `json:"n,omitempty"`
}

// SnapshotTicker is a single ticker's entry in the full-market snapshot.
type SnapshotTicker struct {
	Ticker           string  `json:"ticker"`
	Day              Bar     `json:"day"`
	TodaysChange     float64 `json:"todaysChange,omitempty"`
	TodaysChangePerc float64 `json:"todaysChangePerc,omitempty"`
}

type snapshotResponse struct {
	Tickers []SnapshotTicker `json:"tickers"`
	Results []SnapshotTicker `json:"results"`
}

// Snapshot fetches the full-market end-of-day-ish snapshot used by the
// `snapshot` cron job (spec.md §4.4).
func (c *Client) Snapshot(ctx context.Context) ([]SnapshotTicker, error) {
	var out snapshotResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v2/snapshot/locale/us/markets/stocks/tickers")
	if err != nil {
		return nil, ingesterr.New(ingesterr.Transient, "Snapshot", err)
	}
	if resp.IsError() {
		return nil, statusErr("Snapshot", resp.StatusCode())
	}
	if len(out.Tickers) > 0 {
		return out.Tickers, nil
	}
	return out.Results, nil
}

type groupedDailyResponse struct {
	Results []Bar `json:"results"`
}

// GroupedDaily fetches the full-market grouped-daily aggregate for date,
// used by the `eod` cron job's Layer-3 rewrite (spec.md §4.4, §4.5 S5).
func (c *Client) GroupedDaily(ctx context.Context, date time.Time) ([]Bar, error) {
	var out groupedDailyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/v2/aggs/grouped/locale/us/market/stocks/%s", date.Format("2006-01-02")))
	if err != nil {
		return nil, ingesterr.New(ingesterr.Transient, "GroupedDaily", err)
	}
	if resp.IsError() {
		return nil, statusErr("GroupedDaily", resp.StatusCode())
	}
	return out.Results, nil
}

// AggTimeframe selects minute or day aggregates for RangeAggs.
type AggTimeframe string

const (
	AggMinute AggTimeframe = "minute"
	AggDay    AggTimeframe = "day"
)

type rangeAggsResponse struct {
	Results []Bar `json:"results"`
}

// RangeAggs fetches per-ticker aggregate bars over [from, to] at the
// given timeframe, used by backfill (Stage 1/2) and SIP minute
// correction (spec.md §4.3, §4.4).
func (c *Client) RangeAggs(ctx context.Context, ticker string, timeframe AggTimeframe, from, to time.Time, limit int) ([]Bar, error) {
	var out rangeAggsResponse
	req := c.http.R().
		SetContext(ctx).
		SetResult(&out)
	if limit > 0 {
		req.SetQueryParam("limit", fmt.Sprintf("%d", limit))
	}
	resp, err := req.Get(fmt.Sprintf("/v2/aggs/ticker/%s/range/1/%s/%s/%s",
		ticker, timeframe, from.Format("2006-01-02"), to.Format("2006-01-02")))
	if err != nil {
		return nil, ingesterr.New(ingesterr.Transient, "RangeAggs", err)
	}
	if resp.IsError() {
		return nil, statusErr("RangeAggs", resp.StatusCode())
	}
	return out.Results, nil
}

// NewsInsight is the vendor's per-ticker sentiment block on a news item.
type NewsInsight struct {
	Ticker             string `json:"ticker"`
	Sentiment          string `json:"sentiment"`
	SentimentReasoning string `json:"sentiment_reasoning,omitempty"`
}

// NewsResult is the vendor's news-item shape.
type NewsResult struct {
	ID          string        `json:"id"`
	Publisher   struct{ Name string `json:"name"` } `json:"publisher"`
	Title       string        `json:"title"`
	Author      string        `json:"author,omitempty"`
	PublishedAt string        `json:"published_utc"`
	ArticleURL  string        `json:"article_url"`
	Tickers     []string      `json:"tickers,omitempty"`
	ImageURL    string        `json:"image_url,omitempty"`
	Description string        `json:"description,omitempty"`
	Keywords    []string      `json:"keywords,omitempty"`
	Insights    []NewsInsight `json:"insights,omitempty"`
}

type newsResponse struct {
	Results []NewsResult `json:"results"`
}

// News fetches recent news for ticker, used by the `news` cron job
// (spec.md §4.4).
func (c *Client) News(ctx context.Context, ticker string, limit int) ([]NewsResult, error) {
	var out newsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("ticker", ticker).
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		SetQueryParam("sort", "published_utc").
		SetResult(&out).
		Get("/v2/reference/news")
	if err != nil {
		return nil, ingesterr.New(ingesterr.Transient, "News", err)
	}
	if resp.IsError() {
		return nil, statusErr("News", resp.StatusCode())
	}
	return out.Results, nil
}

// FinancialsResult is the vendor's per-filing financials shape.
type FinancialsResult struct {
	EndDate      string `json:"end_date"`
	StartDate    string `json:"start_date,omitempty"`
	FilingDate   string `json:"filing_date,omitempty"`
	Timeframe    string `json:"timeframe,omitempty"`
	FiscalPeriod string `json:"fiscal_period,omitempty"`
	FiscalYear   string `json:"fiscal_year,omitempty"`
	CompanyName  string `json:"company_name,omitempty"`
	CIK          string `json:"cik,omitempty"`
	SIC          string `json:"sic,omitempty"`
	Financials   struct {
		IncomeStatement   map[string]map[string]any `json:"income_statement"`
		BalanceSheet      map[string]map[string]any `json:"balance_sheet"`
		CashFlowStatement map[string]map[string]any `json:"cash_flow_statement"`
	} `json:"financials"`
}

type financialsResponse struct {
	Results []FinancialsResult `json:"results"`
}

// Financials fetches financial filings for ticker. A 403/404 response is
// "not available" (soft-skip, spec.md §6) rather than an error.
func (c *Client) Financials(ctx context.Context, ticker string, limit int) ([]FinancialsResult, error) {
	var out financialsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("ticker", ticker).
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		SetResult(&out).
		Get("/vX/reference/financials")
	if err != nil {
		return nil, ingesterr.New(ingesterr.Transient, "Financials", err)
	}
	if resp.StatusCode() == 403 || resp.StatusCode() == 404 {
		return nil, ingesterr.New(ingesterr.NotAvailable, "Financials", fmt.Errorf("financials not available for %s", ticker))
	}
	if resp.IsError() {
		return nil, statusErr("Financials", resp.StatusCode())
	}
	return out.Results, nil
}

// MarketStatusResult is the vendor's market-status shape.
type MarketStatusResult struct {
	Market     string `json:"market"`
	AfterHours bool   `json:"afterHours,omitempty"`
	EarlyHours bool   `json:"earlyHours,omitempty"`
}

// MarketStatus fetches the vendor's current market-status, used as the
// primary source for the market-status cache (spec.md §6, §5).
func (c *Client) MarketStatus(ctx context.Context) (MarketStatusResult, error) {
	var out MarketStatusResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v1/marketstatus/now")
	if err != nil {
		return MarketStatusResult{}, ingesterr.New(ingesterr.Transient, "MarketStatus", err)
	}
	if resp.IsError() {
		return MarketStatusResult{}, statusErr("MarketStatus", resp.StatusCode())
	}
	return out, nil
}

func statusErr(op string, code int) error {
	if code == 401 || code == 403 {
		return ingesterr.New(ingesterr.AuthFail, op, fmt.Errorf("status %d", code))
	}
	if code == 429 {
		return ingesterr.New(ingesterr.RateLimit, op, fmt.Errorf("status %d", code))
	}
	return ingesterr.New(ingesterr.Transient, op, fmt.Errorf("status %d", code))
}
