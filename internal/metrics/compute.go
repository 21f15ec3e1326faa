// Package metrics summarizes stored trading metric series.
package metrics

import (
	"math"
	"sort"

	"vectorquant/internal/domain"
)

// Summary describes one metric series over a time window.
type Summary struct {
	Name  string
	Count int

	First float64
	Last  float64
	// Change is Last - First.
	Change float64

	Mean   float64
	Median float64
	P10    float64
	P25    float64
	P75    float64
	P90    float64
	Min    float64
	Max    float64
	Stddev float64

	// MaxDrawdown is the largest fall from a running peak, in value units.
	MaxDrawdown float64
}

// computeSummary summarizes points, which must all share name.
// Points are ordered by Timestamp ASC before order-dependent fields
// (First, Last, MaxDrawdown) are computed.
func computeSummary(name string, points []*domain.TradingMetric) *Summary {
	n := len(points)
	if n == 0 {
		return &Summary{Name: name}
	}

	ordered := make([]*domain.TradingMetric, n)
	copy(ordered, points)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	values := make([]float64, n)
	for i, p := range ordered {
		values[i] = p.MetricValue
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	mean := computeMean(values)

	return &Summary{
		Name:  name,
		Count: n,

		First:  values[0],
		Last:   values[n-1],
		Change: values[n-1] - values[0],

		Mean:   mean,
		Median: computePercentile(sorted, 0.50),
		P10:    computePercentile(sorted, 0.10),
		P25:    computePercentile(sorted, 0.25),
		P75:    computePercentile(sorted, 0.75),
		P90:    computePercentile(sorted, 0.90),
		Min:    sorted[0],
		Max:    sorted[n-1],
		Stddev: computeStddev(values, mean),

		MaxDrawdown: computeMaxDrawdown(values),
	}
}

func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC; p is a fraction (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown returns the worst peak-to-trough fall of a level series.
// Values must be in chronological order.
func computeMaxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	peak := values[0]
	maxDrawdown := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if dd := peak - v; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}
