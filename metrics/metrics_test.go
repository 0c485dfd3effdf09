package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnomalyThreshold(t *testing.T) {
	// Mean 10, sample stddev 0 -> threshold equals mean.
	assert.InDelta(t, 10.0, AnomalyThreshold([]float64{10, 10, 10}, 2.0), 1e-9)

	// Not enough history for a baseline.
	assert.Equal(t, 0.0, AnomalyThreshold([]float64{42}, 2.0))
	assert.Equal(t, 0.0, AnomalyThreshold(nil, 2.0))

	// Mean 15, sample stddev ~7.071; 2 sigma above.
	got := AnomalyThreshold([]float64{10, 20}, 2.0)
	assert.InDelta(t, 15+2*7.0710678, got, 1e-4)
}

func TestDetectTrend(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		window int
		want   string
	}{
		{"too short", []float64{1, 2}, 5, TrendStable},
		{"flat", []float64{10, 10, 10, 10, 10, 10}, 3, TrendStable},
		{"increasing", []float64{10, 10, 10, 20, 20, 20}, 3, TrendIncreasing},
		{"decreasing", []float64{20, 20, 20, 10, 10, 10}, 3, TrendDecreasing},
		{"small change is stable", []float64{100, 100, 100, 105, 105, 105}, 3, TrendStable},
		{"zero baseline", []float64{0, 0, 0, 5, 5, 5}, 3, TrendStable},
		{"bad window", []float64{1, 2, 3}, 0, TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectTrend(tt.values, tt.window))
		})
	}
}

func TestPercentiles(t *testing.T) {
	assert.Empty(t, Percentiles(nil))

	vals := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	got := Percentiles(vals)

	assert.InDelta(t, 5.5, got["p50"], 1e-9)
	assert.InDelta(t, 9.1, got["p90"], 1e-9)
	assert.InDelta(t, 9.55, got["p95"], 1e-9)
	assert.InDelta(t, 9.91, got["p99"], 1e-9)

	// Single value: every percentile is that value.
	one := Percentiles([]float64{7})
	for _, p := range []string{"p50", "p90", "p95", "p99"} {
		assert.Equal(t, 7.0, one[p])
	}
}

func TestMeanAndStdDev(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-9)
	assert.Equal(t, 0.0, StdDev([]float64{5}))
	assert.InDelta(t, 1.0, StdDev([]float64{1, 2, 3}), 1e-9)
}
