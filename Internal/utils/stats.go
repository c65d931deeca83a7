package utils

import (
	"math"
	"sort"
)

// Average is the mean of the finite values, false when there are none.
func Average(values []float64) (float64, bool) {
	sum, n := 0.0, 0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Median of the finite values, false when there are none.
func Median(values []float64) (float64, bool) {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return 0, false
	}
	sort.Float64s(clean)
	mid := len(clean) / 2
	if len(clean)%2 == 1 {
		return clean[mid], true
	}
	return (clean[mid-1] + clean[mid]) / 2, true
}

// RollingMax is the max over a trailing window, shrinking at the start.
func RollingMax(values []float64, window int) []float64 {
	return rolling(values, window, math.Max)
}

// RollingMin is the min over a trailing window, shrinking at the start.
func RollingMin(values []float64, window int) []float64 {
	return rolling(values, window, math.Min)
}

func rolling(values []float64, window int, pick func(a, b float64) float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		acc := math.NaN()
		for _, v := range values[start : i+1] {
			if math.IsNaN(v) {
				continue
			}
			if math.IsNaN(acc) {
				acc = v
			} else {
				acc = pick(acc, v)
			}
		}
		out[i] = acc
	}
	return out
}
