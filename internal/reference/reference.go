// Package reference loads an optional CSV-backed symbol classification
// (ETF vs common stock), used to override domain.Filter's regex-only
// FilterCommon tier for the small set of tickers the regex alone can't
// classify correctly (e.g. dotted share classes that are legitimate
// common stock, not warrants). Absent REFERENCE_DATA_DIR, callers see
// an empty, always-"OTHER" Classifier and fall back to the regex tier
// unchanged.
package reference

import (
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SymbolType is the classification a Classifier reports for a ticker.
type SymbolType string

const (
	TypeETF   SymbolType = "ETF"
	TypeStock SymbolType = "STOCK"
	TypeOther SymbolType = "OTHER"
)

// Classifier holds ETF and common-stock classification loaded from
// reference CSVs.
type Classifier struct {
	etfs   map[string]bool
	stocks map[string]bool
}

// Load finds the latest date-stamped us_etf_*.csv and us_stock_*.csv in
// dir, falling back to undated us_etf.csv/us_stock.csv. An empty dir
// yields an empty Classifier, not an error.
func Load(dir string, log *slog.Logger) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	if dir == "" {
		return &Classifier{etfs: map[string]bool{}, stocks: map[string]bool{}}
	}

	etfPath := findLatestRefFile(dir, "us_etf")
	stockPath := findLatestRefFile(dir, "us_stock")

	c := &Classifier{
		etfs:   loadSymbolSet(etfPath, "ETF", log),
		stocks: loadSymbolSet(stockPath, "stock", log),
	}
	log.Info("loaded reference data", "etfs", len(c.etfs), "stocks", len(c.stocks),
		"etf_file", filepath.Base(etfPath), "stock_file", filepath.Base(stockPath))
	return c
}

// SymbolType returns ticker's classification, or TypeOther if it
// appears in neither reference set.
func (c *Classifier) SymbolType(ticker string) SymbolType {
	sym := strings.ToUpper(ticker)
	if c.etfs[sym] {
		return TypeETF
	}
	if c.stocks[sym] {
		return TypeStock
	}
	return TypeOther
}

// IncludeAsCommon reports whether ticker should be treated as common
// stock even though it failed the regex-only FilterCommon check --
// used for dotted share classes (e.g. BRK.B) the pure-letter mainboard
// pattern rejects but the reference CSV confirms are ordinary stock.
func (c *Classifier) IncludeAsCommon(ticker string) bool {
	return c.SymbolType(ticker) == TypeStock
}

func findLatestRefFile(dir, prefix string) string {
	pattern := filepath.Join(dir, prefix+"_????-??-??.csv")
	matches, err := filepath.Glob(pattern)
	if err == nil && len(matches) > 0 {
		sort.Strings(matches)
		return matches[len(matches)-1]
	}
	return filepath.Join(dir, prefix+".csv")
}

func loadSymbolSet(path, label string, log *slog.Logger) map[string]bool {
	set := make(map[string]bool)

	f, err := os.Open(path)
	if err != nil {
		log.Warn("reference file not found", "label", label, "path", path)
		return set
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		log.Warn("failed to read CSV header", "label", label, "path", path, "error", err)
		return set
	}

	symbolIdx := 0
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), "symbol") {
			symbolIdx = i
			break
		}
	}

	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		if len(record) > symbolIdx {
			sym := strings.ToUpper(strings.TrimSpace(record[symbolIdx]))
			if sym != "" {
				set[sym] = true
			}
		}
	}

	return set
}
