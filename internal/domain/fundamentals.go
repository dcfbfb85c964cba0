package domain

import "time"

// PeriodType distinguishes quarterly from annual fundamentals filings.
type PeriodType string

const (
	PeriodQuarterly PeriodType = "quarterly"
	PeriodAnnual    PeriodType = "annual"
)

// Fundamentals holds a single filing period's scalar financial figures.
// Identity is (Ticker, Market, PeriodType, EndDate).
type Fundamentals struct {
	Ticker     Ticker
	Market     Market
	PeriodType PeriodType
	EndDate    time.Time

	StartDate   *time.Time
	FilingDate  *time.Time
	FiscalYear  *int
	FiscalPeriod *string
	CompanyName *string
	CIK         *string
	SIC         *string

	IncomeStatement  map[string]float64
	BalanceSheet     map[string]float64
	CashFlowStatement map[string]float64
}
