// Package models defines data structures for the stock-skills risk core
package models

import (
	"strings"
	"time"
)

// CashSymbol is the symbol used for the cash pseudo-position when the ledger does not name one.
const CashSymbol = "CASH"

// UnclassifiedSector is the sector group for positions without a sector classification.
const UnclassifiedSector = "Unclassified"

// Position represents a single portfolio holding as supplied by the ledger
type Position struct {
	Symbol       string  `json:"symbol"`
	Shares       float64 `json:"shares"`
	CostBasis    float64 `json:"cost_basis"` // average cost per share, position currency
	CurrentPrice float64 `json:"current_price"`
	Currency     string  `json:"currency"`
	Sector       string  `json:"sector,omitempty"`
	FXRate       float64 `json:"fx_rate,omitempty"` // base currency per unit of Currency; only used to derive weights
	Weight       float64 `json:"weight"`            // fraction of portfolio market value, 0-1
	MarketValue  float64 `json:"market_value"`      // base currency, set during valuation
	IsCash       bool    `json:"is_cash,omitempty"`

	// SensitivityOverrides supplies direct factor sensitivities (e.g. a known
	// currency exposure fraction) used when no regression estimate exists.
	SensitivityOverrides map[string]float64 `json:"sensitivity_overrides,omitempty"`
}

// SectorGroup returns the sector used for grouping, falling back to UnclassifiedSector.
func (p Position) SectorGroup() string {
	if strings.TrimSpace(p.Sector) == "" {
		return UnclassifiedSector
	}
	return p.Sector
}

// IsForeign reports whether the position is denominated in a currency other than base.
func (p Position) IsForeign(baseCurrency string) bool {
	if p.IsCash && p.Currency == "" {
		return false
	}
	return p.Currency != "" && !strings.EqualFold(p.Currency, baseCurrency)
}

// UnrealizedReturnPct returns the unrealized return on cost as a fraction.
func (p Position) UnrealizedReturnPct() float64 {
	if p.CostBasis <= 0 {
		return 0
	}
	return p.CurrentPrice/p.CostBasis - 1
}

// PortfolioSnapshot is a point-in-time view of a portfolio from the ledger
type PortfolioSnapshot struct {
	Name         string     `json:"name"`
	BaseCurrency string     `json:"base_currency"`
	AsOf         time.Time  `json:"as_of"`
	Positions    []Position `json:"positions"`
}

// Symbols returns the non-cash symbols in snapshot order.
func (s *PortfolioSnapshot) Symbols() []string {
	symbols := make([]string, 0, len(s.Positions))
	for _, p := range s.Positions {
		if p.IsCash {
			continue
		}
		symbols = append(symbols, p.Symbol)
	}
	return symbols
}

// PricePoint is one adjusted close observation
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"adjusted_close"`
}

// PriceHistory is the ordered price history for one symbol
type PriceHistory struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"points"`
}

// FactorHistory is the price (or index level) history of a named risk factor,
// e.g. "market", "rate", "sector:Technology" or "currency:USD".
type FactorHistory struct {
	Factor string       `json:"factor"`
	Points []PricePoint `json:"points"`
}

// SentimentSignal is an optional, independently sourced sentiment score for a symbol.
// Score ranges from -1 (very negative) to 1 (very positive).
type SentimentSignal struct {
	Symbol string  `json:"symbol"`
	Score  float64 `json:"score"`
	Source string  `json:"source,omitempty"`
}

// AnalysisRequest is the typed input to one risk analysis run
type AnalysisRequest struct {
	Snapshot  PortfolioSnapshot `json:"snapshot"`
	Histories []PriceHistory    `json:"histories"`
	Factors   []FactorHistory   `json:"factors,omitempty"`
	Signals   []SentimentSignal `json:"signals,omitempty"`
}
