package flare

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Observer is notified of scan progress. It is how the detector reports to metrics.
type Observer interface {
	OnsetFallback(riseIndex int, err error)
	CandidateAbandoned(riseIndex int, err error)
	FlareDetected(record FlareRecord)
}

type nopObserver struct{}

func (nopObserver) OnsetFallback(int, error)      {}
func (nopObserver) CandidateAbandoned(int, error) {}
func (nopObserver) FlareDetected(FlareRecord)     {}

// Detector runs the flare detection pipeline
type Detector struct {
	params   Params
	logger   *zap.SugaredLogger
	observer Observer
	// onsetFit fits one onset window; FitOnset outside of tests
	onsetFit func(window LightCurve, background, peakTime float64, params Params) (OnsetFit, error)
}

// NewDetector creates a Detector with the given parameters
func NewDetector(params Params, logger *zap.SugaredLogger) (*Detector, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Detector{
		params:   params,
		logger:   logger,
		observer: nopObserver{},
		onsetFit: FitOnset,
	}, nil
}

// SetObserver installs an observer for scan events. A nil observer disables reporting.
func (d *Detector) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	d.observer = o
}

// Params returns the detector's parameters
func (d *Detector) Params() Params {
	return d.params
}

// Prepare validates a raw light curve, rebins it and smooths it
func (d *Detector) Prepare(raw LightCurve) (LightCurve, error) {
	if err := raw.Validate(); err != nil {
		return nil, err
	}

	rebinned, err := Rebin(raw, d.params.BinWidth)
	if err != nil {
		return nil, err
	}

	return BoxSmooth(rebinned, d.params.KernelWidth)
}

// Detect runs the whole pipeline on a raw light curve
func (d *Detector) Detect(ctx context.Context, raw LightCurve) ([]FlareRecord, error) {
	smoothed, err := d.Prepare(raw)
	if err != nil {
		return nil, err
	}

	d.logger.Debugf("scanning %d samples rebinned from %d (bin width %d, kernel width %d)",
		len(smoothed), len(raw), d.params.BinWidth, d.params.KernelWidth)

	return d.Scan(ctx, smoothed)
}

// RiseAt reports whether the five rates starting at i increase strictly and the last exceeds
// the first by more than ratio.
func RiseAt(rates []float64, i int, ratio float64) bool {
	if i < 0 || i+4 >= len(rates) {
		return false
	}
	for k := i; k < i+4; k++ {
		if !(rates[k] < rates[k+1]) {
			return false
		}
	}
	return rates[i+4]/rates[i] > ratio
}

// fallAt reports whether the rates fall three times in a row starting at j
func fallAt(rates []float64, j int) bool {
	return rates[j] > rates[j+1] && rates[j+1] > rates[j+2] && rates[j+2] > rates[j+3]
}

// candidate is the index bookkeeping for one rise pattern
type candidate struct {
	rise int
	// fall is the first index of the decrease pattern, or the last index searched
	fall int
	// next is where scanning resumes
	next int
	// [start, end) is the range searched for the peak
	start int
	end   int
}

func (d *Detector) locate(rates []float64, rise int) candidate {
	n := len(rates)
	c := candidate{rise: rise, fall: rise + 4, next: rise + 5}

	for j := rise + 4; j <= n-4; j++ {
		c.fall = j
		if fallAt(rates, j) {
			c.next = j + 4
			break
		}
	}

	c.start, c.end = rise+4, c.fall
	if c.end <= c.start {
		c.start, c.end = rise+3, rise+5
	}
	return c
}

// Scan walks a smoothed light curve and returns the flares it finds in detection order.
//
// A candidate whose onset cannot be fitted on either window is dropped and the scan resumes
// after it. A failed decay fit aborts the scan.
func (d *Detector) Scan(ctx context.Context, curve LightCurve) ([]FlareRecord, error) {
	if len(curve) == 0 {
		return nil, ErrEmptyCurve
	}

	n := len(curve)
	rates := curve.Rates()
	background := rates[0]
	var flares []FlareRecord

	i := 0
	for i < n-4 {
		if !RiseAt(rates, i, d.params.RiseRatio) {
			i++
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c := d.locate(rates, i)
		background = EstimateBackground(rates, i, background, d.params)

		record, err := d.characterize(curve, rates, c, background)
		switch {
		case err == nil:
			flares = append(flares, record)
			d.observer.FlareDetected(record)
			d.logger.Debugw("flare detected",
				"class", record.Class,
				"peak_time", record.PeakTime,
				"peak_rate", record.PeakRate,
				"background", record.BackgroundLevel)
		case errors.Is(err, ErrCandidateAbandoned):
			d.observer.CandidateAbandoned(i, err)
			d.logger.Warnf("skipping flare candidate at index %d (t=%v): %v", i, curve[i].Time, err)
		default:
			return nil, fmt.Errorf("flare candidate at index %d: %w", i, err)
		}

		i = c.next
	}

	return flares, nil
}

// characterize runs the peak, onset, decay and class steps for one candidate
func (d *Detector) characterize(curve LightCurve, rates []float64, c candidate, background float64) (FlareRecord, error) {
	n := len(curve)
	peakRange := rates[c.start:c.end]
	peakRate, offset := LocatePeak(peakRange)
	indexMax := c.start + offset
	peakTime := curve[indexMax].Time

	onset, err := d.fitOnset(curve, c.rise, indexMax, background, peakTime)
	if err != nil {
		return FlareRecord{}, err
	}

	decayEnd := c.fall + 6
	if decayEnd > n {
		decayEnd = n
	}
	decay, err := FitDecay(curve[indexMax:decayEnd], background, peakTime, d.params)
	if errors.Is(err, ErrInsufficientData) {
		// the observation ends before the flare decays
		return FlareRecord{}, fmt.Errorf("%w: %v", ErrCandidateAbandoned, err)
	}
	if err != nil {
		return FlareRecord{}, fmt.Errorf("decay fit: %w", err)
	}

	return FlareRecord{
		StartTime:       curve[c.rise].Time,
		Class:           Classify(peakRate, background, peakRange),
		StartPoint:      onset.Time,
		PeakTime:        peakTime,
		EndTime:         decay.Time,
		PeakRate:        peakRate,
		BackgroundLevel: background,
		RiseRate:        rates[c.rise],
	}, nil
}

// fitOnset fits the four samples before the peak and, if that fails, every sample from the
// start of the rise to the peak.
func (d *Detector) fitOnset(curve LightCurve, rise, indexMax int, background, peakTime float64) (OnsetFit, error) {
	lo := indexMax - 4
	if lo < 0 {
		lo = 0
	}

	fit, narrowErr := d.onsetFit(curve[lo:indexMax], background, peakTime, d.params)
	if narrowErr == nil {
		return fit, nil
	}
	d.observer.OnsetFallback(rise, narrowErr)
	d.logger.Debugf("onset fit on samples %d-%d failed, widening to %d-%d: %v", lo, indexMax, rise, indexMax, narrowErr)

	fit, wideErr := d.onsetFit(curve[rise:indexMax], background, peakTime, d.params)
	if wideErr == nil {
		return fit, nil
	}

	return OnsetFit{}, fmt.Errorf("%w: onset fit failed on both windows: %v; %v", ErrCandidateAbandoned, narrowErr, wideErr)
}
