package flare

import "gonum.org/v1/gonum/floats"

// EstimateBackground returns the background level to use for a flare whose rise starts at
// flareIndex, given the background carried over from the previous detection.
//
// The estimator walks backward from flareIndex+2 looking for a sample that sits more than
// DropThreshold counts below the rise sample, or for the start of the curve. At such a point
// it takes the mean of the history between there and the rise and decides, in order:
//   - the mean is more than BackgroundRatio above the running background: keep the background
//   - the rest of the curve climbs more than BackgroundRatio above the mean: the mean is the
//     new background
//   - the rise sample is below the mean: the rise sample is the new background
//
// Otherwise the walk continues. If it runs out the background is left unchanged.
func EstimateBackground(rates []float64, flareIndex int, background float64, params Params) float64 {
	for check := flareIndex + 2; check >= 0; check-- {
		if check < len(rates) && rates[flareIndex]-rates[check] <= params.DropThreshold && check != 0 {
			continue
		}
		if check >= flareIndex {
			// empty history window
			continue
		}

		localMean := mean(rates[check:flareIndex])
		ratio := localMean / background

		if ratio > params.BackgroundRatio {
			return background
		}
		if ratio <= params.BackgroundRatio && flareIndex+4 < len(rates) &&
			floats.Max(rates[flareIndex+4:])/localMean > params.BackgroundRatio {
			return localMean
		}
		if rates[flareIndex] < localMean {
			return rates[flareIndex]
		}
	}

	return background
}
