// Command lightcurve-simulator writes a synthetic X-ray light curve with injected flares as CSV.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/chrissnell/flarewatch/internal/ingest"
)

// injection describes one simulated flare
type injection struct {
	Start     float64 // seconds from the start of the curve
	Amplitude float64 // counts/s above background at the peak
	Rise      float64 // seconds from start to peak
	Decay     float64 // power-law time scale in seconds
}

// Simulator generates count rates at a fixed one-second cadence
type Simulator struct {
	Background float64
	Noise      float64
	Flares     []injection
	rng        *rand.Rand
}

// NewSimulator places count flares at random times within duration seconds
func NewSimulator(seed int64, duration int, background, noise float64, count int) *Simulator {
	rng := rand.New(rand.NewSource(seed))
	s := &Simulator{Background: background, Noise: noise, rng: rng}

	for i := 0; i < count; i++ {
		// log-uniform amplitudes span the A to X classes
		amp := math.Pow(10, -0.5+rng.Float64()*3.5)
		s.Flares = append(s.Flares, injection{
			Start:     rng.Float64() * float64(duration) * 0.9,
			Amplitude: amp,
			Rise:      300 + rng.Float64()*600,
			Decay:     200 + rng.Float64()*800,
		})
	}
	sort.Slice(s.Flares, func(i, j int) bool { return s.Flares[i].Start < s.Flares[j].Start })
	return s
}

// Rate returns the noiseless count rate t seconds into the curve
func (s *Simulator) Rate(t float64) float64 {
	rate := s.Background
	for _, f := range s.Flares {
		peak := f.Start + f.Rise
		switch {
		case t < f.Start:
		case t <= peak:
			x := (t - f.Start) / f.Rise
			rate += f.Amplitude * x * x
		default:
			rate += f.Amplitude * math.Pow(1+(t-peak)/f.Decay, -1.5)
		}
	}
	return rate
}

// Write emits duration samples starting at start seconds of mission elapsed time
func (s *Simulator) Write(w io.Writer, start float64, duration int, timestamps bool) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"TIME", "RATE"}); err != nil {
		return err
	}

	for i := 0; i < duration; i++ {
		t := start + float64(i)
		rate := s.Rate(float64(i)) + s.rng.NormFloat64()*s.Noise
		if rate < 0 {
			rate = 0
		}

		timeCell := strconv.FormatFloat(t, 'f', 3, 64)
		if timestamps {
			at := ingest.METEpoch.Add(time.Duration(t * float64(time.Second)))
			timeCell = at.Format("2006-01-02 15:04:05.000000")
		}
		if err := writer.Write([]string{timeCell, strconv.FormatFloat(rate, 'f', 6, 64)}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func main() {
	output := flag.String("output", "", "Output CSV path (default stdout)")
	duration := flag.Int("duration", 86400, "Length of the light curve in seconds")
	start := flag.Float64("start", 0, "Mission elapsed time of the first sample")
	background := flag.Float64("background", 10, "Background count rate")
	noise := flag.Float64("noise", 0.2, "Standard deviation of the Gaussian noise")
	flares := flag.Int("flares", 5, "Number of flares to inject")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	timestamps := flag.Bool("timestamps", false, "Write TIME as UTC timestamps instead of MET seconds")
	flag.Parse()

	if *duration < 1 || *flares < 0 || *background < 0 || *noise < 0 {
		fmt.Fprintln(os.Stderr, "Error: duration must be positive and background, noise and flares non-negative")
		os.Exit(1)
	}

	out := io.Writer(os.Stdout)
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", *output, err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	sim := NewSimulator(*seed, *duration, *background, *noise, *flares)
	for _, f := range sim.Flares {
		fmt.Fprintf(os.Stderr, "injected flare at t=%.0f peak %.2f above background\n", *start+f.Start+f.Rise, f.Amplitude)
	}

	if err := sim.Write(out, *start, *duration, *timestamps); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing light curve: %v\n", err)
		os.Exit(1)
	}
}
