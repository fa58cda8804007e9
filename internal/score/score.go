// Package score turns a product's noisy price history into a bounded,
// confidence-adjusted convenience score: "is now a good time to buy".
package score

import (
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
)

// Observation is one price reading for a product.
type Observation struct {
	Timestamp time.Time
	Price     float64
}

// Algorithm parameters.
const (
	historyWindowDays = 365  // observations older than this are ignored
	recentWindowDays  = 60   // range and volatility window
	recencyTauDays    = 90.0 // e-folding time of the recency weights
	ewmaSpanDays      = 90.0 // span of the baseline EWMA
	maxDiscount       = 0.25 // discount treated as "as good as it gets"
	volatilityScale   = 0.03 // e-folding volatility of the reliability term
	minRecentSamples  = 6    // below this, recent data counts half

	// Composite weights: percentile, baseline discount, recent range.
	weightPercentile = 0.45
	weightBaseline   = 0.35
	weightRange      = 0.20

	// volatilitySentinel stands in for "full uncertainty" when the recent
	// window is empty.
	volatilitySentinel = 1.0
)

// dailyPoint is one calendar day's conservative (minimum) price.
type dailyPoint struct {
	day   time.Time // midnight UTC
	price float64
}

// Convenience computes the convenience score in [0, 10], rounded to one
// decimal, for a product with the given history and current price,
// evaluated at evalAt. It is a pure function: identical inputs and an
// identical evaluation instant always yield the identical score. Every
// degenerate case (empty history, no data inside the window, zero total
// weight) resolves to 0.0; it never returns an error.
func Convenience(history []Observation, currentPrice float64, evalAt time.Time) float64 {
	if len(history) == 0 {
		return 0.0
	}

	daily := dailyMinSeries(history)
	if len(daily) == 0 {
		return 0.0
	}
	daily = iqrFilter(daily)

	series := windowedSeries(daily, evalAt, historyWindowDays)
	if len(series) == 0 {
		return 0.0
	}

	weights := recencyWeights(series, evalAt)
	totalWeight := 0.0
	for _, w := range weights {
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0.0
	}

	sA := percentileTerm(series, weights, totalWeight, currentPrice)
	baseline := ewmaSeries(series)
	sB := baselineTerm(baseline[len(baseline)-1], currentPrice)

	recent := windowedSeries(series, evalAt, recentWindowDays)
	sC, volatility := rangeTerm(series, baseline, recent, currentPrice, evalAt)
	reliability := reliabilityFactor(volatility, len(recent))

	base := weightPercentile*sA + weightBaseline*sB + weightRange*sC
	return math.Round(clip(reliability*base, 0, 10)*10) / 10
}

// dailyMinSeries collapses observations to one point per UTC calendar day
// using the minimum price seen that day. Conservative: never overstates
// convenience. Days without observations are absent, not interpolated.
func dailyMinSeries(history []Observation) []dailyPoint {
	byDay := make(map[time.Time]float64)
	for _, obs := range history {
		t := obs.Timestamp.UTC()
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		if p, ok := byDay[day]; !ok || obs.Price < p {
			byDay[day] = obs.Price
		}
	}

	series := make([]dailyPoint, 0, len(byDay))
	for day, price := range byDay {
		series = append(series, dailyPoint{day: day, price: price})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].day.Before(series[j].day) })
	return series
}

// iqrFilter removes outliers outside [Q1-1.5·IQR, Q3+1.5·IQR]. If the
// filter would remove every point, the series is returned unfiltered.
func iqrFilter(series []dailyPoint) []dailyPoint {
	if len(series) < 2 {
		return series
	}
	prices := make([]float64, len(series))
	for i, p := range series {
		prices[i] = p.price
	}
	q, err := stats.Quartile(prices)
	if err != nil {
		return series
	}
	iqr := q.Q3 - q.Q1
	lower := q.Q1 - 1.5*iqr
	upper := q.Q3 + 1.5*iqr

	filtered := make([]dailyPoint, 0, len(series))
	for _, p := range series {
		if p.price >= lower && p.price <= upper {
			filtered = append(filtered, p)
		}
	}
	if len(filtered) == 0 {
		return series
	}
	return filtered
}

// windowedSeries keeps the points at most days calendar days before evalAt.
func windowedSeries(series []dailyPoint, evalAt time.Time, days int) []dailyPoint {
	cutoff := evalAt.UTC().AddDate(0, 0, -days)
	out := make([]dailyPoint, 0, len(series))
	for _, p := range series {
		if !p.day.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

// recencyWeights assigns each day w = exp(-Δdays/τ): older observations
// count exponentially less.
func recencyWeights(series []dailyPoint, evalAt time.Time) []float64 {
	weights := make([]float64, len(series))
	for i, p := range series {
		delta := evalAt.UTC().Sub(p.day).Hours() / 24
		if delta < 0 {
			delta = 0
		}
		weights[i] = math.Exp(-delta / recencyTauDays)
	}
	return weights
}

// percentileTerm rewards a current price that undercuts most of the
// weighted historical distribution: S_A = 10·(1-q) with q the weighted
// share of days priced at or below the current price.
func percentileTerm(series []dailyPoint, weights []float64, totalWeight, currentPrice float64) float64 {
	atOrBelow := 0.0
	for i, p := range series {
		if p.price <= currentPrice {
			atOrBelow += weights[i]
		}
	}
	q := atOrBelow / totalWeight
	return 10 * (1 - q)
}

// ewmaSeries computes the running exponentially-weighted moving average of
// the daily prices (span ewmaSpanDays, bias-corrected), one value per day.
func ewmaSeries(series []dailyPoint) []float64 {
	alpha := 2.0 / (ewmaSpanDays + 1.0)
	out := make([]float64, len(series))
	num, den := 0.0, 0.0
	for i, p := range series {
		num = num*(1-alpha) + p.price
		den = den*(1-alpha) + 1
		out[i] = num / den
	}
	return out
}

// baselineTerm scores the discount of the current price against the
// expected (EWMA) price: S_B = 10·clip(d/d_max, 0, 1).
func baselineTerm(expected, currentPrice float64) float64 {
	if expected == 0 {
		expected = 1.0
	}
	d := (expected - currentPrice) / expected
	return 10 * clip(d/maxDiscount, 0, 1)
}

// rangeTerm positions the current price against the trailing window's
// [min, max] range and measures that window's volatility against the
// baseline. The term is deliberately unbounded: a price beyond the window
// extremes pushes past 10 or below 0, and only the final composite is
// clipped. An empty window yields the neutral midpoint 5.0 and the full
// uncertainty sentinel volatility.
func rangeTerm(series []dailyPoint, baseline []float64, recent []dailyPoint, currentPrice float64, evalAt time.Time) (sC, volatility float64) {
	if len(recent) == 0 {
		return 5.0, volatilitySentinel
	}

	lo, hi := recent[0].price, recent[0].price
	for _, p := range recent[1:] {
		if p.price < lo {
			lo = p.price
		}
		if p.price > hi {
			hi = p.price
		}
	}
	r := 0.5
	if hi != lo {
		r = (hi - currentPrice) / (hi - lo)
	}
	sC = 10 * r

	// Volatility: median absolute deviation of (price - baseline) over the
	// window, relative to the window's median price.
	cutoff := evalAt.UTC().AddDate(0, 0, -recentWindowDays)
	var diffs, prices []float64
	for i, p := range series {
		if p.day.Before(cutoff) {
			continue
		}
		diffs = append(diffs, math.Abs(p.price-baseline[i]))
		prices = append(prices, p.price)
	}
	mad, errMAD := stats.Median(diffs)
	medPrice, errMed := stats.Median(prices)
	if errMAD != nil || errMed != nil || medPrice == 0 {
		return sC, 0
	}
	return sC, mad / medPrice
}

// reliabilityFactor discounts the composite for volatile or sparse recent
// data: R = exp(-v/v0)·coverage, with coverage halved below
// minRecentSamples observations.
func reliabilityFactor(volatility float64, recentSamples int) float64 {
	coverage := 1.0
	if recentSamples < minRecentSamples {
		coverage = 0.5
	}
	return math.Exp(-volatility/volatilityScale) * coverage
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
