package reference

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCSV(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestLoadClassifiesFromCSV(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "us_etf.csv"), "symbol\nSPY\nQQQ\n")
	writeCSV(t, filepath.Join(dir, "us_stock.csv"), "symbol\nBRK.B\n")

	c := Load(dir, nil)
	if c.SymbolType("spy") != TypeETF {
		t.Errorf("SPY = %v, want ETF", c.SymbolType("spy"))
	}
	if c.SymbolType("BRK.B") != TypeStock {
		t.Errorf("BRK.B = %v, want STOCK", c.SymbolType("BRK.B"))
	}
	if c.SymbolType("UNKNOWN") != TypeOther {
		t.Errorf("UNKNOWN = %v, want OTHER", c.SymbolType("UNKNOWN"))
	}
}

func TestLoadPrefersLatestDatedFile(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "us_stock_2025-01-01.csv"), "symbol\nOLD\n")
	writeCSV(t, filepath.Join(dir, "us_stock_2026-01-01.csv"), "symbol\nNEW\n")

	c := Load(dir, nil)
	if c.SymbolType("NEW") != TypeStock {
		t.Error("expected the latest dated file to be loaded")
	}
	if c.SymbolType("OLD") == TypeStock {
		t.Error("expected the older dated file to be ignored")
	}
}

func TestLoadWithEmptyDirYieldsEmptyClassifier(t *testing.T) {
	c := Load("", nil)
	if c.SymbolType("AAPL") != TypeOther {
		t.Error("expected an empty Classifier to classify everything as OTHER")
	}
}

func TestIncludeAsCommonMatchesStockEntries(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, "us_stock.csv"), "symbol\nBRK.B\n")

	c := Load(dir, nil)
	if !c.IncludeAsCommon("brk.b") {
		t.Error("expected BRK.B to be included as common stock")
	}
	if c.IncludeAsCommon("SPY") {
		t.Error("expected SPY (not in the stock set) to not be included")
	}
}
