package ingest

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/astrogo/fitsio"

	"github.com/chrissnell/flarewatch/internal/flare"
)

// ReadFITS reads a light curve from the TIME and RATE columns of the first table extension of
// a FITS file, the layout of .lc products. Rows with a NaN rate are skipped and the result is
// sorted by time.
func ReadFITS(r io.Reader) (flare.LightCurve, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open FITS stream: %w", err)
	}
	defer f.Close()

	table := firstTable(f)
	if table == nil {
		return nil, fmt.Errorf("%w: no table extension", ErrMissingColumn)
	}

	timeName, rateName := "", ""
	for _, col := range table.Cols() {
		switch strings.ToUpper(strings.TrimSpace(col.Name)) {
		case "TIME":
			timeName = col.Name
		case "RATE":
			rateName = col.Name
		}
	}
	if timeName == "" {
		return nil, fmt.Errorf("%w: TIME", ErrMissingColumn)
	}
	if rateName == "" {
		return nil, fmt.Errorf("%w: RATE", ErrMissingColumn)
	}

	rows, err := table.Read(0, table.NumRows())
	if err != nil {
		return nil, fmt.Errorf("failed to read table %s: %w", table.Name(), err)
	}
	defer rows.Close()

	curve := make(flare.LightCurve, 0, table.NumRows())
	for row := 0; rows.Next(); row++ {
		data := map[string]interface{}{timeName: nil, rateName: nil}
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		rate, err := toFloat(data[rateName])
		if err != nil {
			return nil, fmt.Errorf("row %d: RATE: %w", row, err)
		}
		if math.IsNaN(rate) {
			continue
		}
		t, err := toFloat(data[timeName])
		if err != nil {
			return nil, fmt.Errorf("row %d: TIME: %w", row, err)
		}

		curve = append(curve, flare.Sample{Time: t, Rate: rate})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(curve, func(i, j int) bool { return curve[i].Time < curve[j].Time })
	return curve, nil
}

func firstTable(f *fitsio.File) *fitsio.Table {
	for _, hdu := range f.HDUs() {
		switch hdu.Type() {
		case fitsio.BINARY_TBL, fitsio.ASCII_TBL:
			if table, ok := hdu.(*fitsio.Table); ok {
				return table
			}
		}
	}
	return nil
}

// toFloat widens a scalar table cell to float64
func toFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("unsupported cell type %T", v)
	}
}
