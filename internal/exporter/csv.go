// Package exporter writes analysis products as CSV.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"seb-platform/internal/services"
)

// formatFloat renders a value with four decimals; NaN becomes an empty cell
func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', 4, 64)
}

// WritePanel writes one row per panel point: the label followed by every
// radiative and surface line, in panel order.
func WritePanel(w io.Writer, p *services.Panel) error {
	lines := append(append([]services.Line{}, p.Radiative...), p.Surface...)

	headers := make([]string, 0, len(lines)+1)
	headers = append(headers, "period")
	for _, l := range lines {
		headers = append(headers, l.Label)
	}

	records := make([][]string, len(p.Labels))
	for i, label := range p.Labels {
		row := make([]string, 0, len(headers))
		row = append(row, label)
		for _, l := range lines {
			row = append(row, formatFloat(l.Values[i]))
		}
		records[i] = row
	}
	return writeAll(w, headers, records)
}

// WriteWarming writes the cumulative melt of both runs per time step
func WriteWarming(w io.Writer, res *services.WarmingResult) error {
	headers := []string{"time", "observed_melt_m", "warmed_melt_m"}
	records := make([][]string, len(res.Times))
	for i, t := range res.Times {
		records[i] = []string{
			t.UTC().Format(time.RFC3339),
			formatFloat(res.Observed[i]),
			formatFloat(res.Warmed[i]),
		}
	}
	return writeAll(w, headers, records)
}

// WriteFile creates path, including its directory, and fills it with write
func WriteFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func writeAll(w io.Writer, headers []string, records [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
