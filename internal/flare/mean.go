package flare

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// mean returns the arithmetic mean of x refined by a second pass over the residuals. A slice
// holding a single repeated value yields that value exactly.
func mean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	if floats.Min(x) == floats.Max(x) {
		return x[0]
	}

	m := stat.Mean(x, nil)
	var residual float64
	for _, v := range x {
		residual += v - m
	}
	return m + residual/float64(len(x))
}
