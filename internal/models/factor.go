package models

import "strings"

// FactorKind classifies a named risk factor
type FactorKind string

const (
	FactorKindMarket   FactorKind = "market"
	FactorKindRate     FactorKind = "rate"
	FactorKindSector   FactorKind = "sector"
	FactorKindCurrency FactorKind = "currency"
)

// Broad factor names
const (
	FactorMarket = "market"
	FactorRate   = "rate"
)

// SectorFactor returns the factor name for a sector, e.g. "sector:Technology".
func SectorFactor(sector string) string {
	return string(FactorKindSector) + ":" + strings.TrimSpace(sector)
}

// CurrencyFactor returns the factor name for a currency, e.g. "currency:USD".
func CurrencyFactor(currency string) string {
	return string(FactorKindCurrency) + ":" + strings.ToUpper(strings.TrimSpace(currency))
}

// ParseFactor splits a factor name into its kind and qualifier.
// Returns ok=false for names that are not a recognised factor.
func ParseFactor(name string) (kind FactorKind, qualifier string, ok bool) {
	switch name {
	case FactorMarket:
		return FactorKindMarket, "", true
	case FactorRate:
		return FactorKindRate, "", true
	}
	prefix, rest, found := strings.Cut(name, ":")
	if !found || strings.TrimSpace(rest) == "" {
		return "", "", false
	}
	switch FactorKind(prefix) {
	case FactorKindSector:
		return FactorKindSector, rest, true
	case FactorKindCurrency:
		if rest != strings.ToUpper(rest) {
			return "", "", false
		}
		return FactorKindCurrency, rest, true
	}
	return "", "", false
}

// ApplicableFactors lists the factors a position can be exposed to, in a fixed order:
// market, rate, sector (when classified) and currency (when foreign).
func ApplicableFactors(p Position, baseCurrency string) []string {
	if p.IsCash {
		return nil
	}
	factors := []string{FactorMarket, FactorRate}
	if strings.TrimSpace(p.Sector) != "" {
		factors = append(factors, SectorFactor(p.Sector))
	}
	if p.IsForeign(baseCurrency) {
		factors = append(factors, CurrencyFactor(p.Currency))
	}
	return factors
}
