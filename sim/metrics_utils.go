// sim/metrics_utils.go
package sim

import (
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/stat"
)

// TimeWeightedMean averages a piecewise-constant series: each sample holds from its
// own time until the next sample (the last one until end). value picks the field to average.
// Returns 0 for an empty or zero-length window.
func TimeWeightedMean(samples []QueueSample, end float64, value func(QueueSample) int) float64 {
	if len(samples) == 0 {
		return 0
	}
	xs := make([]float64, len(samples))
	ws := make([]float64, len(samples))
	total := 0.0
	for i, s := range samples {
		until := end
		if i+1 < len(samples) {
			until = samples[i+1].Time
		}
		w := until - s.Time
		if w < 0 {
			w = 0
		}
		xs[i] = float64(value(s))
		ws[i] = w
		total += w
	}
	if total == 0 {
		return 0
	}
	return stat.Mean(xs, ws)
}

// CalculatePercentile returns the p-th percentile (0..100) of data using the empirical
// quantile. data is not modified. Returns 0 for empty input.
func CalculatePercentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := slices.Clone(data)
	slices.Sort(sorted)
	return stat.Quantile(p/100, stat.Empirical, sorted, nil)
}

// CalculateMean returns the arithmetic mean of data, 0 for empty input.
func CalculateMean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}
