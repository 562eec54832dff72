// Package report renders detected flares as CSV, XLSX and PDF documents.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/chrissnell/flarewatch/internal/flare"
)

// Header is the column order of result.csv
var Header = []string{
	"flare_class",
	"start_time",
	"start_point",
	"rise_rate",
	"peak_time",
	"peak_rate",
	"background_level",
	"end_time",
}

// Summary describes the run a report was produced from
type Summary struct {
	RunID       string
	Source      string
	SampleCount int
	BinWidth    int
	KernelWidth int
	CreatedAt   time.Time
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 8, 64)
}

func row(r flare.FlareRecord) []string {
	return []string{
		r.Class,
		formatFloat(r.StartTime),
		formatFloat(r.StartPoint),
		formatFloat(r.RiseRate),
		formatFloat(r.PeakTime),
		formatFloat(r.PeakRate),
		formatFloat(r.BackgroundLevel),
		formatFloat(r.EndTime),
	}
}

// WriteCSV writes flares as result.csv
func WriteCSV(w io.Writer, flares []flare.FlareRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return err
	}
	for _, f := range flares {
		if err := writer.Write(row(f)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// BuildXLSX renders a workbook with a summary sheet and a flares sheet
func BuildXLSX(s Summary, flares []flare.FlareRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	flaresSheet := "flares"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(flaresSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Flare Detection Report")
	_ = f.SetCellValue(summarySheet, "A3", "Run")
	_ = f.SetCellValue(summarySheet, "B3", s.RunID)
	_ = f.SetCellValue(summarySheet, "A4", "Source")
	_ = f.SetCellValue(summarySheet, "B4", s.Source)
	_ = f.SetCellValue(summarySheet, "A5", "Samples")
	_ = f.SetCellValue(summarySheet, "B5", s.SampleCount)
	_ = f.SetCellValue(summarySheet, "A6", "Bin width")
	_ = f.SetCellValue(summarySheet, "B6", s.BinWidth)
	_ = f.SetCellValue(summarySheet, "A7", "Kernel width")
	_ = f.SetCellValue(summarySheet, "B7", s.KernelWidth)
	_ = f.SetCellValue(summarySheet, "A8", "Flares")
	_ = f.SetCellValue(summarySheet, "B8", len(flares))
	if !s.CreatedAt.IsZero() {
		_ = f.SetCellValue(summarySheet, "A9", "Generated")
		_ = f.SetCellValue(summarySheet, "B9", s.CreatedAt.Format(time.RFC3339))
	}

	for col, name := range Header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(flaresSheet, cell, name)
	}
	for i, r := range flares {
		values := []any{r.Class, r.StartTime, r.StartPoint, r.RiseRate, r.PeakTime, r.PeakRate, r.BackgroundLevel, r.EndTime}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(flaresSheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPDF renders a one-page table of the detected flares
func BuildPDF(s Summary, flares []flare.FlareRecord) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Flare Detection Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	if s.RunID != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Run: %s", s.RunID))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Source: %s", s.Source))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Samples: %d  Bin width: %d  Kernel width: %d", s.SampleCount, s.BinWidth, s.KernelWidth))
	pdf.Ln(5)
	if !s.CreatedAt.IsZero() {
		pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", s.CreatedAt.Format(time.RFC3339)))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Flares detected: %d", len(flares)))
	pdf.Ln(8)

	widths := []float64{24, 34, 34, 30, 34, 30, 36, 34}
	pdf.SetFont("Arial", "B", 9)
	for i, name := range Header {
		pdf.CellFormat(widths[i], 6, name, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, r := range flares {
		cells := []string{
			r.Class,
			fmt.Sprintf("%.2f", r.StartTime),
			fmt.Sprintf("%.2f", r.StartPoint),
			fmt.Sprintf("%.3f", r.RiseRate),
			fmt.Sprintf("%.2f", r.PeakTime),
			fmt.Sprintf("%.3f", r.PeakRate),
			fmt.Sprintf("%.3f", r.BackgroundLevel),
			fmt.Sprintf("%.2f", r.EndTime),
		}
		for i, c := range cells {
			align := "R"
			if i == 0 {
				align = "C"
			}
			pdf.CellFormat(widths[i], 6, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
