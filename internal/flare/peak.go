package flare

import "gonum.org/v1/gonum/floats"

// LocatePeak returns the maximum rate and the index of its first occurrence.
// rates must not be empty.
func LocatePeak(rates []float64) (float64, int) {
	idx := floats.MaxIdx(rates)
	return rates[idx], idx
}
