package flare

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Bounds and starting point of the onset fit
const (
	onsetMaxA  = -1.0
	onsetMaxB  = -0.1
	onsetInitA = -1.0
	onsetInitB = 1.0
	onsetInitC = 1.0
)

// OnsetModel is the rising branch of the parabola rate = A*x² + B*x + C solved for x, the time
// offset from the peak at which the curve reaches a given rate.
type OnsetModel struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
}

// Offset returns the time offset from the peak at which the model reaches rate.
// It is NaN when rate lies above the vertex of the parabola.
func (m OnsetModel) Offset(rate float64) float64 {
	return -m.B/(2*m.A) - math.Sqrt((rate-m.C)/m.A+m.B*m.B/(4*m.A*m.A))
}

// OnsetFit is the result of a successful onset fit
type OnsetFit struct {
	Model OnsetModel `json:"model"`
	// Time is the extrapolated moment the rise left the background
	Time float64 `json:"time"`
}

// onsetModel maps unconstrained coordinates onto A <= -1, B <= -0.1 and a free C
func onsetModel(p []float64) OnsetModel {
	return OnsetModel{
		A: onsetMaxA - p[0]*p[0],
		B: onsetMaxB - p[1]*p[1],
		C: p[2],
	}
}

// onsetStart returns the unconstrained starting point. The nominal guess is clipped into the
// feasible box; if it still leaves some rate above the parabola's vertex, C is raised to the
// window's highest rate so every point starts inside the model's domain.
func onsetStart(rates []float64) []float64 {
	a := math.Min(onsetInitA, onsetMaxA)
	b := math.Min(onsetInitB, onsetMaxB)
	p0 := []float64{math.Sqrt(onsetMaxA - a), math.Sqrt(onsetMaxB - b), onsetInitC}

	m := onsetModel(p0)
	for _, r := range rates {
		if !isFinite(m.Offset(r)) {
			p0[2] = floats.Max(rates)
			break
		}
	}
	return p0
}

// FitOnset fits the onset model to the rise samples in window, with times taken relative to
// peakTime, and extrapolates the time at which the rise leaves background.
func FitOnset(window LightCurve, background, peakTime float64, params Params) (OnsetFit, error) {
	if len(window) < 3 {
		return OnsetFit{}, fmt.Errorf("%w: onset fit needs 3 samples, got %d", ErrInsufficientData, len(window))
	}

	rates, offsets := peakOffsets(window, peakTime)
	f := func(p []float64, rate float64) float64 {
		return onsetModel(p).Offset(rate)
	}

	p, err := fitLeastSquares(f, rates, offsets, onsetStart(rates), params.MaxFitEvaluations)
	if err != nil {
		return OnsetFit{}, err
	}

	m := onsetModel(p)
	offset := m.Offset(background)
	if !isFinite(offset) {
		return OnsetFit{}, fmt.Errorf("%w: background %v lies outside the fitted rise", ErrFitFailed, background)
	}

	return OnsetFit{Model: m, Time: offset + peakTime}, nil
}
