// Command flare-detect runs the flare detection pipeline over a single light curve file and
// prints the detections.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chrissnell/flarewatch/internal/flare"
	"github.com/chrissnell/flarewatch/internal/ingest"
	"github.com/chrissnell/flarewatch/internal/log"
	"github.com/chrissnell/flarewatch/internal/report"
)

func main() {
	input := flag.String("input", "", "Light curve to analyze (.csv with TIME and RATE columns)")
	binWidth := flag.Int("bin", flare.DefaultBinWidth, "Number of raw samples averaged into one bin")
	kernelWidth := flag.Int("kernel", flare.DefaultKernelWidth, "Box smoothing kernel width in bins")
	format := flag.String("format", "json", "Output format for stdout: 'json' or 'csv'")
	xlsxOut := flag.String("xlsx", "", "Also write an XLSX report to this path")
	pdfOut := flag.String("pdf", "", "Also write a PDF report to this path")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	flag.Parse()

	if *input == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -input <lightcurve.csv>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *format != "json" && *format != "csv" {
		fmt.Fprintf(os.Stderr, "Error: unsupported format %q. Use 'json' or 'csv'\n", *format)
		os.Exit(1)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	params := flare.DefaultParams()
	params.BinWidth = *binWidth
	params.KernelWidth = *kernelWidth

	curve, flares, err := detect(context.Background(), *input, params)
	if err != nil {
		log.Errorf("detection failed: %v", err)
		os.Exit(1)
	}
	log.Infof("found %d flares in %d samples of %s", len(flares), len(curve), *input)

	if err := writeFlares(os.Stdout, *format, flares); err != nil {
		log.Errorf("failed to write results: %v", err)
		os.Exit(1)
	}

	summary := report.Summary{
		Source:      filepath.Base(*input),
		SampleCount: len(curve),
		BinWidth:    params.BinWidth,
		KernelWidth: params.KernelWidth,
	}
	if *xlsxOut != "" {
		if err := writeReport(*xlsxOut, summary, flares, report.BuildXLSX); err != nil {
			log.Errorf("failed to write XLSX report: %v", err)
			os.Exit(1)
		}
	}
	if *pdfOut != "" {
		if err := writeReport(*pdfOut, summary, flares, report.BuildPDF); err != nil {
			log.Errorf("failed to write PDF report: %v", err)
			os.Exit(1)
		}
	}
}

func detect(ctx context.Context, path string, params flare.Params) (flare.LightCurve, []flare.FlareRecord, error) {
	detector, err := flare.NewDetector(params, log.Named("detector"))
	if err != nil {
		return nil, nil, err
	}

	curve, err := ingest.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	flares, err := detector.Detect(ctx, curve)
	if err != nil {
		return curve, nil, err
	}
	return curve, flares, nil
}

func writeFlares(w io.Writer, format string, flares []flare.FlareRecord) error {
	if format == "csv" {
		return report.WriteCSV(w, flares)
	}

	if flares == nil {
		flares = []flare.FlareRecord{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(flares)
}

func writeReport(path string, summary report.Summary, flares []flare.FlareRecord,
	build func(report.Summary, []flare.FlareRecord) ([]byte, error)) error {
	data, err := build(summary, flares)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
