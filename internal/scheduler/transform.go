package scheduler

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wavepilot/ingestd/internal/domain"
	"github.com/wavepilot/ingestd/internal/massive"
)

// barToDomain maps a vendor aggregate bar into a domain.Bar.
func barToDomain(ticker domain.Ticker, b massive.Bar, market domain.Market) domain.Bar {
	bar := domain.Bar{
		Ticker: ticker,
		Market: market,
		Time:   time.UnixMilli(b.Time).UTC(),
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
	if b.Trades != 0 {
		trades := b.Trades
		bar.Trades = &trades
	}
	return bar
}

// groupedBarToDailyBar maps a grouped-daily/range-day aggregate bar into
// a domain.DailyBar, deriving Change/ChangePercent from open/close.
func groupedBarToDailyBar(ticker domain.Ticker, b massive.Bar, market domain.Market) domain.DailyBar {
	d := domain.DailyBar{
		Ticker: ticker,
		Market: market,
		Date:   time.UnixMilli(b.Time).UTC(),
		Open:   decimal.NewFromFloat(b.Open),
		High:   decimal.NewFromFloat(b.High),
		Low:    decimal.NewFromFloat(b.Low),
		Close:  decimal.NewFromFloat(b.Close),
		Volume: int64(b.Volume),
	}
	if b.VWAP != 0 {
		vwap := decimal.NewFromFloat(b.VWAP)
		d.VWAP = &vwap
	}
	if b.Trades != 0 {
		trades := b.Trades
		d.Trades = &trades
	}
	d.DeriveChange()
	return d
}

// snapshotToDailyBar maps a vendor snapshot ticker into a domain.DailyBar
// timestamped at the snapshot poll time.
func snapshotToDailyBar(ticker domain.Ticker, t massive.SnapshotTicker, market domain.Market, at time.Time) domain.DailyBar {
	d := domain.DailyBar{
		Ticker: ticker,
		Market: market,
		Date:   at,
		Open:   decimal.NewFromFloat(t.Day.Open),
		High:   decimal.NewFromFloat(t.Day.High),
		Low:    decimal.NewFromFloat(t.Day.Low),
		Close:  decimal.NewFromFloat(t.Day.Close),
		Volume: int64(t.Day.Volume),

		Change:        decimal.NewFromFloat(t.TodaysChange),
		ChangePercent: decimal.NewFromFloat(t.TodaysChangePerc),
	}
	if t.Day.VWAP != 0 {
		vwap := decimal.NewFromFloat(t.Day.VWAP)
		d.VWAP = &vwap
	}
	return d
}

// newsResultToDomain maps a vendor news result into a domain.NewsItem,
// taking the first matching-ticker insight's sentiment if present.
func newsResultToDomain(r massive.NewsResult) domain.NewsItem {
	published, _ := time.Parse(time.RFC3339, r.PublishedAt)

	item := domain.NewsItem{
		ID:      r.ID,
		Time:    published,
		Title:   r.Title,
		URL:     r.ArticleURL,
		Source:  r.Publisher.Name,
		Tickers: r.Tickers,
	}
	if len(r.Tickers) > 0 {
		tk, err := domain.NewTicker(r.Tickers[0])
		if err == nil {
			item.Ticker = tk
		}
	}
	if r.Author != "" {
		item.Author = &r.Author
	}
	if r.Description != "" {
		item.Description = &r.Description
	}
	if r.ImageURL != "" {
		item.ImageURL = &r.ImageURL
	}
	if len(r.Keywords) > 0 {
		item.Keywords = r.Keywords
	}
	for _, insight := range r.Insights {
		if insight.Ticker == string(item.Ticker) {
			sentiment := domain.Sentiment(insight.Sentiment)
			item.Sentiment = &sentiment
			if insight.SentimentReasoning != "" {
				item.SentimentReasoning = &insight.SentimentReasoning
			}
			break
		}
	}
	return item
}

// financialsResultToDomain maps a vendor financials filing into a
// domain.Fundamentals record.
func financialsResultToDomain(ticker domain.Ticker, r massive.FinancialsResult, market domain.Market) domain.Fundamentals {
	endDate, _ := time.Parse("2006-01-02", r.EndDate)

	f := domain.Fundamentals{
		Ticker:            ticker,
		Market:            market,
		PeriodType:        periodTypeFromTimeframe(r.Timeframe),
		EndDate:           endDate,
		IncomeStatement:   flattenFinancials(r.Financials.IncomeStatement),
		BalanceSheet:      flattenFinancials(r.Financials.BalanceSheet),
		CashFlowStatement: flattenFinancials(r.Financials.CashFlowStatement),
	}
	if r.StartDate != "" {
		if t, err := time.Parse("2006-01-02", r.StartDate); err == nil {
			f.StartDate = &t
		}
	}
	if r.FilingDate != "" {
		if t, err := time.Parse("2006-01-02", r.FilingDate); err == nil {
			f.FilingDate = &t
		}
	}
	if r.FiscalYear != "" {
		if y, err := strconv.Atoi(r.FiscalYear); err == nil {
			f.FiscalYear = &y
		}
	}
	if r.FiscalPeriod != "" {
		f.FiscalPeriod = &r.FiscalPeriod
	}
	if r.CompanyName != "" {
		f.CompanyName = &r.CompanyName
	}
	if r.CIK != "" {
		f.CIK = &r.CIK
	}
	if r.SIC != "" {
		f.SIC = &r.SIC
	}
	return f
}

func periodTypeFromTimeframe(timeframe string) domain.PeriodType {
	if timeframe == "annual" {
		return domain.PeriodAnnual
	}
	return domain.PeriodQuarterly
}

func flattenFinancials(section map[string]map[string]any) map[string]float64 {
	out := make(map[string]float64, len(section))
	for key, fields := range section {
		v, ok := fields["value"]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			out[key] = n
		case int:
			out[key] = float64(n)
		}
	}
	return out
}
