package risk

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/enori/stock-skills/internal/models"
)

// DefaultMinObservations is the minimum number of returns a series needs to be
// used for correlation, factor regression or VaR.
const DefaultMinObservations = 20

// AlignOptions configures return alignment
type AlignOptions struct {
	MinObservations int       // minimum returns per symbol; DefaultMinObservations when <= 0
	Intersect       bool      // restrict every series to the common trading dates
	Since           time.Time // drop prices before this date; zero keeps everything
}

// AlignedReturns holds return series for the symbols that passed alignment
type AlignedReturns struct {
	Dates    []time.Time // common return dates; nil unless intersected
	Series   []models.ReturnSeries
	Excluded []models.Exclusion
}

// Symbols returns included symbols in input order.
func (a *AlignedReturns) Symbols() []string {
	out := make([]string, len(a.Series))
	for i, s := range a.Series {
		out[i] = s.Symbol
	}
	return out
}

// Get returns the series for symbol.
func (a *AlignedReturns) Get(symbol string) (models.ReturnSeries, bool) {
	for _, s := range a.Series {
		if s.Symbol == symbol {
			return s, true
		}
	}
	return models.ReturnSeries{}, false
}

// Exclusion returns the exclusion record for symbol.
func (a *AlignedReturns) Exclusion(symbol string) (models.Exclusion, bool) {
	for _, e := range a.Excluded {
		if e.Symbol == symbol {
			return e, true
		}
	}
	return models.Exclusion{}, false
}

// Observations returns the common observation count, or the shortest series
// length when the series were not intersected.
func (a *AlignedReturns) Observations() int {
	if a.Dates != nil {
		return len(a.Dates)
	}
	n := 0
	for i, s := range a.Series {
		if i == 0 || s.Len() < n {
			n = s.Len()
		}
	}
	return n
}

// IsIntersected reports whether every series shares the same dates.
func (a *AlignedReturns) IsIntersected() bool {
	if a.Dates == nil {
		return false
	}
	for _, s := range a.Series {
		if s.Len() != len(a.Dates) {
			return false
		}
	}
	return true
}

// AlignReturns converts raw price histories into return series.
//
// Symbols whose own history yields fewer than MinObservations returns are excluded
// as insufficient data. With Intersect set, the remaining symbols are cut to their
// common trading dates. While that window is too short, the symbol whose removal
// widens it most is excluded, so one stale history cannot sink the rest.
// Missing dates are never interpolated or forward-filled.
func AlignReturns(histories []models.PriceHistory, opts AlignOptions) *AlignedReturns {
	minObs := opts.MinObservations
	if minObs <= 0 {
		minObs = DefaultMinObservations
	}

	// First occurrence of a symbol wins.
	unique := make([]models.PriceHistory, 0, len(histories))
	seen := make(map[string]bool, len(histories))
	for _, h := range histories {
		if seen[h.Symbol] {
			continue
		}
		seen[h.Symbol] = true
		unique = append(unique, h)
	}

	normalized := make([][]models.PricePoint, len(unique))
	var wg sync.WaitGroup
	for i := range unique {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			normalized[i] = normalizePrices(unique[i].Points, opts.Since)
		}(i)
	}
	wg.Wait()

	result := &AlignedReturns{}
	var survivors []int
	for i, prices := range normalized {
		n := len(prices) - 1
		if n < 0 {
			n = 0
		}
		if n < minObs {
			result.Excluded = append(result.Excluded, models.Exclusion{
				Symbol:       unique[i].Symbol,
				Reason:       models.IssueInsufficientData,
				Observations: n,
				Required:     minObs,
				Detail:       fmt.Sprintf("%d returns available, %d required", n, minObs),
			})
			continue
		}
		survivors = append(survivors, i)
	}

	if !opts.Intersect {
		for _, i := range survivors {
			result.Series = append(result.Series, models.ReturnSeries{
				Symbol: unique[i].Symbol,
				Points: returnsFromPrices(normalized[i]),
			})
		}
		return result
	}

	common := commonDates(normalized, survivors)
	for len(survivors) > 0 && len(common)-1 < minObs {
		drop, next := leastOverlapping(normalized, survivors)
		result.Excluded = append(result.Excluded, models.Exclusion{
			Symbol:       unique[survivors[drop]].Symbol,
			Reason:       models.IssueInsufficientData,
			Observations: max(len(common)-1, 0),
			Required:     minObs,
			Detail:       fmt.Sprintf("common window has %d returns, %d required", max(len(common)-1, 0), minObs),
		})
		survivors = append(survivors[:drop:drop], survivors[drop+1:]...)
		common = next
	}
	if len(survivors) == 0 {
		return result
	}

	result.Dates = common[1:]
	for _, i := range survivors {
		result.Series = append(result.Series, models.ReturnSeries{
			Symbol: unique[i].Symbol,
			Points: returnsFromPrices(restrictTo(normalized[i], common)),
		})
	}
	return result
}

// normalizePrices truncates dates to UTC days, drops unusable prices, sorts and
// de-duplicates (the last quote of a day wins).
func normalizePrices(points []models.PricePoint, since time.Time) []models.PricePoint {
	out := make([]models.PricePoint, 0, len(points))
	cutoff := truncateDay(since)
	for _, p := range points {
		if p.Close <= 0 || math.IsNaN(p.Close) || math.IsInf(p.Close, 0) || p.Date.IsZero() {
			continue
		}
		d := truncateDay(p.Date)
		if !since.IsZero() && d.Before(cutoff) {
			continue
		}
		out = append(out, models.PricePoint{Date: d, Close: p.Close})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	deduped := out[:0]
	for _, p := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(p.Date) {
			deduped[n-1] = p
			continue
		}
		deduped = append(deduped, p)
	}
	return deduped
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func returnsFromPrices(prices []models.PricePoint) []models.ReturnPoint {
	if len(prices) < 2 {
		return nil
	}
	out := make([]models.ReturnPoint, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		out[i-1] = models.ReturnPoint{
			Date:   prices[i].Date,
			Return: prices[i].Close/prices[i-1].Close - 1,
		}
	}
	return out
}

func commonDates(normalized [][]models.PricePoint, members []int) []time.Time {
	if len(members) == 0 {
		return nil
	}
	counts := make(map[time.Time]int)
	for _, i := range members {
		for _, p := range normalized[i] {
			counts[p.Date]++
		}
	}
	var dates []time.Time
	for d, c := range counts {
		if c == len(members) {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// leastOverlapping picks the member whose removal leaves the longest common window.
// Ties go to the shorter history, then to the later member.
func leastOverlapping(normalized [][]models.PricePoint, members []int) (int, []time.Time) {
	best, bestLen := -1, -1
	var bestDates []time.Time
	rest := make([]int, 0, len(members))
	for k := range members {
		rest = append(rest[:0], members[:k]...)
		rest = append(rest, members[k+1:]...)
		dates := commonDates(normalized, rest)
		switch {
		case len(dates) > bestLen,
			len(dates) == bestLen && len(normalized[members[k]]) <= len(normalized[members[best]]):
			best, bestLen, bestDates = k, len(dates), dates
		}
	}
	return best, bestDates
}

func restrictTo(prices []models.PricePoint, dates []time.Time) []models.PricePoint {
	keep := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		keep[d] = true
	}
	out := make([]models.PricePoint, 0, len(dates))
	for _, p := range prices {
		if keep[p.Date] {
			out = append(out, p)
		}
	}
	return out
}

// pairValues returns the values of a and b on their shared dates.
func pairValues(a, b models.ReturnSeries) ([]float64, []float64) {
	if sameDates(a, b) {
		return a.Values(), b.Values()
	}
	byDate := make(map[time.Time]float64, len(b.Points))
	for _, p := range b.Points {
		byDate[p.Date] = p.Return
	}
	var x, y []float64
	for _, p := range a.Points {
		if v, ok := byDate[p.Date]; ok {
			x = append(x, p.Return)
			y = append(y, v)
		}
	}
	return x, y
}

func sameDates(a, b models.ReturnSeries) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := range a.Points {
		if !a.Points[i].Date.Equal(b.Points[i].Date) {
			return false
		}
	}
	return true
}
