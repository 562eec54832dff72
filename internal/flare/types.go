// Package flare detects and characterizes flares in a light curve of photon count rate versus time.
// The pipeline rebins the raw samples, box-smooths them and then scans the smoothed curve for
// rise patterns, fitting the onset and decay of each candidate to extrapolate its start and end.
package flare

import (
	"errors"
	"fmt"
	"math"
)

// MinSamples is the shortest raw light curve accepted by Detect: one rise pattern plus the
// samples the fall search and fit windows need.
const MinSamples = 9

// Detection defaults. The thresholds are empirical and are part of the output contract, so
// changing them changes which flares are found and how they are classified.
const (
	DefaultBinWidth          = 60
	DefaultKernelWidth       = 10
	DefaultRiseRatio         = 1.03
	DefaultDropThreshold     = 900.0
	DefaultBackgroundRatio   = 1.5
	DefaultDecayOffset       = 0.47
	DefaultMaxFitEvaluations = 50000
)

var (
	ErrEmptyCurve         = errors.New("light curve is empty")
	ErrTooShort           = errors.New("light curve is too short")
	ErrUnordered          = errors.New("light curve times are not ordered")
	ErrInvalidRate        = errors.New("light curve contains an invalid rate")
	ErrInvalidParams      = errors.New("invalid detection parameters")
	ErrFitFailed          = errors.New("curve fit failed")
	ErrInsufficientData   = errors.New("not enough samples to fit")
	ErrCandidateAbandoned = errors.New("flare candidate abandoned")
)

// Sample is a single count rate measurement
type Sample struct {
	Time float64 `json:"time"`
	Rate float64 `json:"rate"`
}

// LightCurve is a time-ordered sequence of samples
type LightCurve []Sample

// Rates returns the rate column of the curve
func (c LightCurve) Rates() []float64 {
	rates := make([]float64, len(c))
	for i, s := range c {
		rates[i] = s.Rate
	}
	return rates
}

// Times returns the time column of the curve
func (c LightCurve) Times() []float64 {
	times := make([]float64, len(c))
	for i, s := range c {
		times[i] = s.Time
	}
	return times
}

// Validate checks the input contract of Detect: at least MinSamples samples, finite
// non-decreasing times and finite non-negative rates.
func (c LightCurve) Validate() error {
	if len(c) == 0 {
		return ErrEmptyCurve
	}
	if len(c) < MinSamples {
		return fmt.Errorf("%w: %d samples, need at least %d", ErrTooShort, len(c), MinSamples)
	}

	for i, s := range c {
		if math.IsNaN(s.Time) || math.IsInf(s.Time, 0) {
			return fmt.Errorf("%w: non-finite time at index %d", ErrUnordered, i)
		}
		if i > 0 && s.Time < c[i-1].Time {
			return fmt.Errorf("%w: time %v at index %d precedes %v", ErrUnordered, s.Time, i, c[i-1].Time)
		}
		if math.IsNaN(s.Rate) || math.IsInf(s.Rate, 0) || s.Rate < 0 {
			return fmt.Errorf("%w: %v at index %d", ErrInvalidRate, s.Rate, i)
		}
	}

	return nil
}

// FlareRecord describes one detected flare
type FlareRecord struct {
	// StartTime is the time of the first sample of the rise pattern
	StartTime float64 `json:"start_time"`
	Class     string  `json:"flare_class"`
	// StartPoint is the onset extrapolated from the rise fit; it is not tied to any sample
	StartPoint      float64 `json:"start_point"`
	PeakTime        float64 `json:"peak_time"`
	EndTime         float64 `json:"end_time"`
	PeakRate        float64 `json:"peak_rate"`
	BackgroundLevel float64 `json:"background_level"`
	RiseRate        float64 `json:"rise_rate"`
}

// Params holds the tunables of the detection pipeline
type Params struct {
	// BinWidth is the number of raw samples aggregated into one rebinned sample
	BinWidth int

	// KernelWidth is the width of the box smoothing window in rebinned samples
	KernelWidth int

	// RiseRatio is the minimum ratio between the last and first sample of a rise pattern
	RiseRatio float64

	// DropThreshold is the absolute count drop below the rise sample that marks the end of
	// the quiescent history considered by the background estimator
	DropThreshold float64

	// BackgroundRatio bounds how far a local mean may move from the running background
	BackgroundRatio float64

	// DecayOffset is added to the background to obtain the rate at which a flare has decayed
	DecayOffset float64

	// MaxFitEvaluations caps the objective evaluations of each curve fit
	MaxFitEvaluations int
}

// DefaultParams returns the standard detection parameters
func DefaultParams() Params {
	return Params{
		BinWidth:          DefaultBinWidth,
		KernelWidth:       DefaultKernelWidth,
		RiseRatio:         DefaultRiseRatio,
		DropThreshold:     DefaultDropThreshold,
		BackgroundRatio:   DefaultBackgroundRatio,
		DecayOffset:       DefaultDecayOffset,
		MaxFitEvaluations: DefaultMaxFitEvaluations,
	}
}

// Validate reports the first out-of-range parameter
func (p Params) Validate() error {
	switch {
	case p.BinWidth < 1:
		return fmt.Errorf("%w: bin width must be at least 1, got %d", ErrInvalidParams, p.BinWidth)
	case p.KernelWidth < 1:
		return fmt.Errorf("%w: kernel width must be at least 1, got %d", ErrInvalidParams, p.KernelWidth)
	case !(p.RiseRatio > 0):
		return fmt.Errorf("%w: rise ratio must be positive, got %v", ErrInvalidParams, p.RiseRatio)
	case !(p.DropThreshold >= 0):
		return fmt.Errorf("%w: drop threshold must not be negative, got %v", ErrInvalidParams, p.DropThreshold)
	case !(p.BackgroundRatio > 0):
		return fmt.Errorf("%w: background ratio must be positive, got %v", ErrInvalidParams, p.BackgroundRatio)
	case math.IsNaN(p.DecayOffset) || math.IsInf(p.DecayOffset, 0):
		return fmt.Errorf("%w: decay offset must be finite", ErrInvalidParams)
	case p.MaxFitEvaluations < 1:
		return fmt.Errorf("%w: fit evaluation cap must be positive, got %d", ErrInvalidParams, p.MaxFitEvaluations)
	}
	return nil
}
