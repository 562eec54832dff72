package flare

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Classify assigns the letter-coded magnitude class of a flare from its peak rate above the
// background. Each letter covers one decade of intensity (A < B < C < M < X) and the numeric
// part is the intensity scaled into that decade, with one decimal.
//
// When the peak does not clear the background, the A-class value is measured against the mean
// of the candidate range instead.
func Classify(peak, background float64, candidate []float64) string {
	diff := peak - background

	switch {
	case diff > 0 && diff <= 1:
		return fmt.Sprintf("%.1fA", diff*10)
	case diff <= 0:
		return fmt.Sprintf("%.1fA", (peak-stat.Mean(candidate, nil))*10)
	case diff < 10:
		return fmt.Sprintf("%.1fB", diff)
	case diff < 100:
		return fmt.Sprintf("%.1fC", diff/10)
	case diff < 1000:
		return fmt.Sprintf("%.1fM", diff/100)
	default:
		return fmt.Sprintf("%.1fX", diff/1000)
	}
}
