// Package metrics provides the statistical helpers behind the cost and log
// anomaly detectors.
package metrics

import (
	"math"
	"sort"
)

// Trend directions returned by DetectTrend.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the sample standard deviation of values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// AnomalyThreshold computes mean + sensitivity standard deviations over the
// historical values. Fewer than two samples yields 0, meaning no usable
// baseline.
func AnomalyThreshold(historical []float64, sensitivity float64) float64 {
	if len(historical) < 2 {
		return 0
	}
	return Mean(historical) + sensitivity*StdDev(historical)
}

// DetectTrend compares the mean of the most recent window against the mean
// of the window before it. A swing of more than 10% either way counts as a
// trend; anything smaller is stable.
func DetectTrend(values []float64, windowSize int) string {
	if windowSize <= 0 || len(values) < windowSize {
		return TrendStable
	}

	recent := values[len(values)-windowSize:]
	var older []float64
	if len(values) >= windowSize*2 {
		older = values[len(values)-windowSize*2 : len(values)-windowSize]
	} else {
		older = values[:len(values)-windowSize]
	}
	if len(older) == 0 {
		return TrendStable
	}

	olderAvg := Mean(older)
	if olderAvg == 0 {
		return TrendStable
	}
	changePct := (Mean(recent) - olderAvg) / olderAvg * 100

	switch {
	case changePct > 10:
		return TrendIncreasing
	case changePct < -10:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// Percentiles returns p50/p90/p95/p99 over values using linear
// interpolation between ranks. Empty input yields an empty map.
func Percentiles(values []float64) map[string]float64 {
	if len(values) == 0 {
		return map[string]float64{}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	return map[string]float64{
		"p50": percentile(sorted, 50),
		"p90": percentile(sorted, 90),
		"p95": percentile(sorted, 95),
		"p99": percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(idx))
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
