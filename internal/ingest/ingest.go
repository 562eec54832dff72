// Package ingest reads light curves from the tabular files produced by X-ray instrument
// pipelines.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/flarewatch/internal/flare"
)

// METEpoch is the zero point of mission elapsed time
var METEpoch = time.Date(2017, time.January, 1, 0, 0, 0, 0, time.UTC)

var (
	ErrUnsupportedFormat = errors.New("unsupported light curve format")
	ErrMissingColumn     = errors.New("missing column")
	ErrBadTimestamp      = errors.New("unrecognized timestamp")
)

// timestamp layouts seen in instrument exports, day-first before month-first
var layouts = []string{
	"02-01-2006 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"01-02-2006 15:04:05.999999999",
}

// ParseMET converts a time cell into seconds of mission elapsed time. Numeric cells are
// already in MET and pass through unchanged.
func ParseMET(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}

	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t.Sub(METEpoch).Seconds(), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
}

// ReadCSV reads a light curve from CSV with a header row naming TIME and RATE columns.
// Rows without a usable rate are skipped and the result is sorted by time.
func ReadCSV(r io.Reader) (flare.LightCurve, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	timeCol, rateCol := -1, -1
	for i, name := range header {
		switch strings.ToUpper(strings.TrimSpace(name)) {
		case "TIME":
			timeCol = i
		case "RATE":
			rateCol = i
		}
	}
	if timeCol < 0 {
		return nil, fmt.Errorf("%w: TIME", ErrMissingColumn)
	}
	if rateCol < 0 {
		return nil, fmt.Errorf("%w: RATE", ErrMissingColumn)
	}

	var curve flare.LightCurve
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if timeCol >= len(record) || rateCol >= len(record) {
			continue
		}

		rateCell := strings.TrimSpace(record[rateCol])
		if rateCell == "" {
			continue
		}
		rate, err := strconv.ParseFloat(rateCell, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid rate %q: %w", line, rateCell, err)
		}
		if math.IsNaN(rate) {
			continue
		}

		t, err := ParseMET(record[timeCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		curve = append(curve, flare.Sample{Time: t, Rate: rate})
	}

	sort.SliceStable(curve, func(i, j int) bool { return curve[i].Time < curve[j].Time })
	return curve, nil
}

// IsSupported reports whether name has an extension the service accepts for upload
func IsSupported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".lc", ".fits":
		return true
	}
	return false
}

// Read decodes a light curve from r according to the extension of name
func Read(name string, r io.Reader) (flare.LightCurve, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv":
		return ReadCSV(r)
	case ".lc", ".fits":
		return ReadFITS(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// ReadFile opens path and decodes its light curve
func ReadFile(path string) (flare.LightCurve, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(filepath.Base(path), f)
}
