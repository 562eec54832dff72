package flare

import (
	"fmt"
	"math"
)

const (
	decayMinA      = 0.0001
	decayInitA     = 1.0
	decayInitAlpha = 1.0
)

// DecayModel is a power-law decay expressed as the time offset from the peak at which the
// flare has fallen to a given rate: x = (rate/|A|)^(-Alpha).
type DecayModel struct {
	A     float64 `json:"a"`
	Alpha float64 `json:"alpha"`
}

// Offset returns the time offset from the peak at which the model reaches rate
func (m DecayModel) Offset(rate float64) float64 {
	return math.Pow(rate/math.Abs(m.A), -m.Alpha)
}

// DecayFit is the result of a successful decay fit
type DecayFit struct {
	Model DecayModel `json:"model"`
	// Time is the extrapolated moment the flare decayed to background plus the decay offset
	Time float64 `json:"time"`
}

// decayModel maps unconstrained coordinates onto A >= 0.0001 and a free Alpha
func decayModel(p []float64) DecayModel {
	return DecayModel{A: decayMinA + p[0]*p[0], Alpha: p[1]}
}

// FitDecay fits the power-law decay to the samples in window, starting at the peak, and
// extrapolates the time at which the rate reaches background + DecayOffset.
func FitDecay(window LightCurve, background, peakTime float64, params Params) (DecayFit, error) {
	if len(window) < 2 {
		return DecayFit{}, fmt.Errorf("%w: decay fit needs 2 samples, got %d", ErrInsufficientData, len(window))
	}

	rates, offsets := peakOffsets(window, peakTime)
	f := func(p []float64, rate float64) float64 {
		return decayModel(p).Offset(rate)
	}
	p0 := []float64{math.Sqrt(decayInitA - decayMinA), decayInitAlpha}

	p, err := fitLeastSquares(f, rates, offsets, p0, params.MaxFitEvaluations)
	if err != nil {
		return DecayFit{}, err
	}

	m := decayModel(p)
	offset := m.Offset(background + params.DecayOffset)
	if !isFinite(offset) {
		return DecayFit{}, fmt.Errorf("%w: decay never reaches %v", ErrFitFailed, background+params.DecayOffset)
	}

	return DecayFit{Model: m, Time: offset + peakTime}, nil
}
