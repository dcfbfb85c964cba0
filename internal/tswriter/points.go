package tswriter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wavepilot/ingestd/internal/domain"
)

// Measurement names, fixed per spec.md §4.1.
const (
	measureQuotesRaw        = "stock_quotes_raw"
	measureQuotesAggregated = "stock_quotes_aggregated"
	measureNews             = "news"
	measureFundamentals     = "fundamentals"
)

// point is a single time-series write: a measurement, its tag set (the
// query axes), a field set (the values), and a timestamp. Identical
// (measurement, tags, time) in a later batch overwrites an earlier one
// -- this is the only correction mechanism (spec.md I1).
type point struct {
	measurement string
	tags        map[string]string
	fields      map[string]any
	time        time.Time
}

// barPoint normalises a minute bar into a stock_quotes_raw point. It
// returns ok=false if the bar is missing time, open, or close -- those
// are dropped with a warning by the caller, not written (spec.md §4.1).
func barPoint(b domain.Bar) (point, bool) {
	if !b.Valid() {
		return point{}, false
	}
	fields := map[string]any{
		"open":   b.Open.InexactFloat64(),
		"high":   b.High.InexactFloat64(),
		"low":    b.Low.InexactFloat64(),
		"close":  b.Close.InexactFloat64(),
		"volume": b.Volume,
	}
	if b.VWAP != nil {
		fields["vwap"] = b.VWAP.InexactFloat64()
	}
	if b.Trades != nil {
		fields["trades"] = *b.Trades
	}
	if b.Change != nil {
		fields["change"] = b.Change.InexactFloat64()
	}
	if b.ChangePercent != nil {
		fields["changePercent"] = b.ChangePercent.InexactFloat64()
	}
	if b.PreviousClose != nil {
		fields["previousClose"] = b.PreviousClose.InexactFloat64()
	}
	return point{
		measurement: measureQuotesRaw,
		tags: map[string]string{
			"ticker": sanitizeTag(b.Ticker.String()),
			"market": sanitizeTag(string(b.Market)),
		},
		fields: fields,
		time:   b.Time,
	}, true
}

// dailyBarPoint normalises a daily bar into a stock_quotes_aggregated
// point.
func dailyBarPoint(d domain.DailyBar) (point, bool) {
	if !d.Valid() {
		return point{}, false
	}
	fields := map[string]any{
		"open":          d.Open.InexactFloat64(),
		"high":          d.High.InexactFloat64(),
		"low":           d.Low.InexactFloat64(),
		"close":         d.Close.InexactFloat64(),
		"volume":        d.Volume,
		"change":        d.Change.InexactFloat64(),
		"changePercent": d.ChangePercent.InexactFloat64(),
	}
	if d.VWAP != nil {
		fields["vwap"] = d.VWAP.InexactFloat64()
	}
	if d.Trades != nil {
		fields["trades"] = *d.Trades
	}
	return point{
		measurement: measureQuotesAggregated,
		tags: map[string]string{
			"ticker": sanitizeTag(d.Ticker.String()),
			"market": sanitizeTag(string(d.Market)),
		},
		fields: fields,
		time:   d.Date,
	}, true
}

// newsPoint normalises a news item into a news point. The body text
// itself is never a field here (spec.md I4): only metadata and the
// s3Path back-reference.
func newsPoint(n domain.NewsItem, market domain.Market) (point, bool) {
	if n.ID == "" || n.Ticker == "" || n.Time.IsZero() {
		return point{}, false
	}
	fields := map[string]any{
		"title": sanitizeField(n.Title),
		"url":   sanitizeField(n.URL),
		"id":    n.ID,
	}
	if n.Author != nil {
		fields["author"] = sanitizeField(*n.Author)
	}
	if n.Description != nil {
		fields["description"] = sanitizeField(*n.Description)
	}
	if n.ImageURL != nil {
		fields["imageUrl"] = sanitizeField(*n.ImageURL)
	}
	if len(n.Keywords) > 0 {
		fields["keywords"] = sanitizeField(strings.Join(n.Keywords, "|"))
	}
	if len(n.Tickers) > 0 {
		fields["tickers"] = sanitizeField(strings.Join(n.Tickers, "|"))
	}
	if n.Sentiment != nil {
		fields["sentiment"] = string(*n.Sentiment)
	}
	if n.SentimentReasoning != nil {
		fields["sentimentReasoning"] = sanitizeField(*n.SentimentReasoning)
	}
	if n.S3Path != nil {
		fields["s3Path"] = *n.S3Path
	}

	source := ""
	if n.Source != "" {
		source = n.Source
	}
	return point{
		measurement: measureNews,
		tags: map[string]string{
			"ticker": sanitizeTag(n.Ticker.String()),
			"market": sanitizeTag(string(market)),
			"source": sanitizeTag(source),
		},
		fields: fields,
		time:   n.Time,
	}, true
}

// fundamentalsPoint normalises a fundamentals record into a fundamentals
// point.
func fundamentalsPoint(f domain.Fundamentals) (point, bool) {
	if f.Ticker == "" || f.EndDate.IsZero() {
		return point{}, false
	}
	fields := map[string]any{}
	for k, v := range f.IncomeStatement {
		fields["income_"+k] = v
	}
	for k, v := range f.BalanceSheet {
		fields["balance_"+k] = v
	}
	for k, v := range f.CashFlowStatement {
		fields["cashflow_"+k] = v
	}
	if f.CompanyName != nil {
		fields["companyName"] = sanitizeField(*f.CompanyName)
	}
	if f.FiscalYear != nil {
		fields["fiscalYear"] = *f.FiscalYear
	}
	if f.FiscalPeriod != nil {
		fields["fiscalPeriod"] = sanitizeField(*f.FiscalPeriod)
	}
	if len(fields) == 0 {
		fields["periodType"] = string(f.PeriodType)
	}
	return point{
		measurement: measureFundamentals,
		tags: map[string]string{
			"ticker":     sanitizeTag(f.Ticker.String()),
			"market":     sanitizeTag(string(f.Market)),
			"periodType": sanitizeTag(string(f.PeriodType)),
		},
		fields: fields,
		time:   f.EndDate,
	}, true
}

// lineProtocol encodes p as a single InfluxDB line-protocol line with
// millisecond timestamp precision.
func (p point) lineProtocol() string {
	var b strings.Builder
	b.WriteString(escapeMeasurement(p.measurement))

	tagKeys := make([]string, 0, len(p.tags))
	for k := range p.tags {
		tagKeys = append(tagKeys, k)
	}
	sort.Strings(tagKeys)
	for _, k := range tagKeys {
		b.WriteByte(',')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(p.tags[k])
	}

	b.WriteByte(' ')

	fieldKeys := make([]string, 0, len(p.fields))
	for k := range p.fields {
		fieldKeys = append(fieldKeys, k)
	}
	sort.Strings(fieldKeys)
	for i, k := range fieldKeys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(encodeFieldValue(p.fields[k]))
	}

	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(p.time.UnixMilli(), 10))
	return b.String()
}

func escapeMeasurement(m string) string {
	return strings.ReplaceAll(strings.ReplaceAll(m, " ", "_"), ",", "_")
}

func encodeFieldValue(v any) string {
	switch val := v.(type) {
	case string:
		escaped := strings.ReplaceAll(val, `"`, `\"`)
		return fmt.Sprintf(`"%s"`, escaped)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10) + "i"
	case int:
		return strconv.Itoa(val) + "i"
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf(`"%v"`, val)
	}
}
