package flare

import "fmt"

// BoxSmooth replaces each rate with the mean of a centered window of kernelWidth samples.
// Windows are truncated at the ends of the curve and averaged over the samples they still
// cover, so the edges are not pulled toward zero. Times are passed through.
func BoxSmooth(curve LightCurve, kernelWidth int) (LightCurve, error) {
	if kernelWidth < 1 {
		return nil, fmt.Errorf("%w: kernel width must be at least 1, got %d", ErrInvalidParams, kernelWidth)
	}

	n := len(curve)
	rates := curve.Rates()
	smoothed := make(LightCurve, n)
	half := kernelWidth / 2

	for i := 0; i < n; i++ {
		lo := i - half
		hi := lo + kernelWidth
		if lo < 0 {
			lo = 0
		}
		if hi > n {
			hi = n
		}

		smoothed[i] = Sample{
			Time: curve[i].Time,
			Rate: mean(rates[lo:hi]),
		}
	}

	return smoothed, nil
}
