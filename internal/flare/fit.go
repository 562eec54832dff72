package flare

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// model evaluates a fitted curve at x for the unconstrained parameter vector p.
// Bounded parameters are mapped into their feasible range inside the model.
type model func(p []float64, x float64) float64

// fitLeastSquares minimizes the sum of squared residuals of m over the points (xs, ys) with
// Nelder-Mead, starting from p0. Parameter combinations that push a point outside the model's
// domain score +Inf so the simplex steers away from them.
func fitLeastSquares(m model, xs, ys, p0 []float64, maxEvals int) ([]float64, error) {
	objective := func(p []float64) float64 {
		var sum float64
		for i, x := range xs {
			r := m(p, x) - ys[i]
			sum += r * r
		}
		if math.IsNaN(sum) {
			return math.Inf(1)
		}
		return sum
	}

	if math.IsInf(objective(p0), 0) {
		return nil, fmt.Errorf("%w: residuals are not finite at the initial point", ErrFitFailed)
	}

	problem := optimize.Problem{Func: objective}
	settings := &optimize.Settings{FuncEvaluations: maxEvals}

	result, err := optimize.Minimize(problem, p0, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFitFailed, err)
	}
	if result.Status == optimize.FunctionEvaluationLimit {
		return nil, fmt.Errorf("%w: no convergence within %d evaluations", ErrFitFailed, maxEvals)
	}
	if math.IsInf(result.F, 0) || math.IsNaN(result.F) {
		return nil, fmt.Errorf("%w: residuals diverged", ErrFitFailed)
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite parameter", ErrFitFailed)
		}
	}

	return result.X, nil
}

// peakOffsets returns the rates of the window and their times relative to peakTime
func peakOffsets(window LightCurve, peakTime float64) ([]float64, []float64) {
	offsets := window.Times()
	floats.AddConst(-peakTime, offsets)
	return window.Rates(), offsets
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
