package flare

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Rebin aggregates the curve into bins of binWidth samples. Each output sample takes the time
// of the first sample in its bin and the bin's rate sum divided by binWidth. A short trailing
// bin is still divided by the full width, so its rate reads low.
func Rebin(curve LightCurve, binWidth int) (LightCurve, error) {
	if binWidth < 1 {
		return nil, fmt.Errorf("%w: bin width must be at least 1, got %d", ErrInvalidParams, binWidth)
	}

	rates := curve.Rates()
	rebinned := make(LightCurve, 0, (len(curve)+binWidth-1)/binWidth)

	for i := 0; i < len(curve); i += binWidth {
		end := i + binWidth
		if end > len(curve) {
			end = len(curve)
		}

		var rate float64
		if end-i == binWidth {
			rate = mean(rates[i:end])
		} else {
			rate = floats.Sum(rates[i:end]) / float64(binWidth)
		}

		rebinned = append(rebinned, Sample{Time: curve[i].Time, Rate: rate})
	}

	return rebinned, nil
}
