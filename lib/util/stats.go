package util

import (
	"fmt"
	"math"
)

// ----------------------------------------------------------------------------
// Load statistics
// ----------------------------------------------------------------------------

// Stats summarizes a set of counters, e.g. the processed elements per sender
type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
	// Balance is 1 for a perfectly even load and approaches 0 for a skewed one
	Balance float64 `json:"balance"`
}

// NewStats computes the summary of the given counters
func NewStats(values []int64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	min := float64(values[0])
	max := float64(values[0])

	var sum float64
	for _, raw := range values {
		v := float64(raw)
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	mean := sum / float64(len(values))

	var sumSquaredDiffs float64
	for _, raw := range values {
		diff := float64(raw) - mean
		sumSquaredDiffs += diff * diff
	}

	// population standard deviation
	stdDev := math.Sqrt(sumSquaredDiffs / float64(len(values)))

	minMaxRatio := 1.0
	if max > 0 {
		minMaxRatio = min / max
	}

	// combines the coefficient of variation and the min/max ratio
	var cv float64
	if mean > 0 {
		cv = stdDev / mean
	}
	balance := (1.0-math.Min(1.0, cv))*0.5 + minMaxRatio*0.5

	return Stats{
		StdDeviation: stdDev,
		Min:          min,
		Max:          max,
		Mean:         mean,
		MinMaxRatio:  minMaxRatio,
		Balance:      balance,
	}
}

// String returns a one line representation for progress logs
func (s Stats) String() string {
	return fmt.Sprintf("min=%.0f max=%.0f mean=%.1f stddev=%.1f balance=%.2f",
		s.Min, s.Max, s.Mean, s.StdDeviation, s.Balance)
}
