package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"

	"seb-platform/internal/config"
	"seb-platform/internal/dataset"
	"seb-platform/internal/exporter"
	"seb-platform/internal/services"
	"seb-platform/pkg/logging"
	"seb-platform/pkg/metrics"
)

const version = "1.0.0"

func main() {
	station := flag.String("station", "S5", "Station code: S5, S6, S9 or S10")
	file := flag.String("file", "", "Path of an SEB file (overrides -station)")
	plot := flag.String("plot", string(services.PlotAvgMonth), "Plot type: AvgMonth, Monthly or Daily")
	list := flag.Bool("list", false, "List the variables of the file and exit")
	stations := flag.Bool("stations", false, "List the known station files and exit")
	csvPath := flag.String("csv", "", "Write the result as CSV to this path instead of a table")
	warming := flag.Float64("warming", 0, "Run the warming experiment with this atmospheric temperature increase in K")
	flag.Parse()

	if *stations {
		files := services.StationFiles()
		codes := make([]string, 0, len(files))
		for code := range files {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			fmt.Printf("%-4s %s\n", code, files[code])
		}
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger(cfg.Logging.Service+"-analyse", version, logging.ParseLevel(cfg.Logging.Level))
	logger.SetOutput(os.Stderr)
	metricsCollector := metrics.NewCollector("seb_analyse", prometheus.NewRegistry())
	analysis := services.NewAnalysisService(cfg.Data, logger, metricsCollector)

	ctx := context.Background()

	var ds *dataset.Dataset
	if *file != "" {
		ds, err = analysis.OpenFile(ctx, *file)
	} else {
		ds, err = analysis.OpenStation(ctx, *station)
	}
	if err != nil {
		logger.Fatal(ctx, "[ANALYSE_ERROR] Failed to open data", logging.Fields{"station": *station, "file": *file}, err)
	}

	if *list {
		fmt.Println(ds.FileName())
		for _, line := range analysis.ListVariables(ds) {
			fmt.Println(line)
		}
		return
	}

	if *warming != 0 {
		res, err := analysis.Warming(ctx, ds, *warming)
		if err != nil {
			logger.Fatal(ctx, "[ANALYSE_ERROR] Warming experiment failed", logging.Fields{"delta_t": *warming}, err)
		}
		if *csvPath != "" {
			writeCSV(ctx, logger, *csvPath, func(w io.Writer) error { return exporter.WriteWarming(w, res) })
			return
		}
		observed, warmed := res.Totals()
		fmt.Printf("Station %s, atmosphere +%.1f K\n", res.Station, res.DeltaT)
		fmt.Printf("Cumulative melt observed: %8.3f m w.e.\n", observed)
		fmt.Printf("Cumulative melt warmed:   %8.3f m w.e.\n", warmed)
		return
	}

	plotType, err := services.ParsePlotType(*plot)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	panel, err := analysis.Panel(ctx, ds, plotType)
	if err != nil {
		logger.Fatal(ctx, "[ANALYSE_ERROR] Failed to build panel", logging.Fields{"plot_type": *plot}, err)
	}
	if len(panel.Missing) > 0 {
		fmt.Fprintf(os.Stderr, "Variables not found, shown as NaN: %s\n", strings.Join(panel.Missing, ", "))
	}

	if *csvPath != "" {
		writeCSV(ctx, logger, *csvPath, func(w io.Writer) error { return exporter.WritePanel(w, panel) })
		return
	}
	printPanel(os.Stdout, panel)
}

func writeCSV(ctx context.Context, logger *logging.StructuredLogger, path string, write func(io.Writer) error) {
	if err := exporter.WriteFile(path, write); err != nil {
		logger.Fatal(ctx, "[ANALYSE_ERROR] Failed to write CSV", logging.Fields{"path": path}, err)
	}
	logger.Info(ctx, "[ANALYSE_EXPORT] CSV written", logging.Fields{"path": path})
}

func printPanel(out io.Writer, p *services.Panel) {
	for _, section := range []struct {
		title string
		lines []services.Line
	}{
		{"Radiative fluxes (W m-2)", p.Radiative},
		{"Surface energy balance (W m-2)", p.Surface},
	} {
		fmt.Fprintf(out, "%s %s: %s\n", p.Station, p.PlotType, section.title)

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprint(tw, "period\t")
		for _, l := range section.lines {
			fmt.Fprintf(tw, "%s\t", l.Label)
		}
		fmt.Fprintln(tw)
		for i, label := range p.Labels {
			fmt.Fprintf(tw, "%s\t", label)
			for _, l := range section.lines {
				if math.IsNaN(l.Values[i]) {
					fmt.Fprint(tw, "NaN\t")
					continue
				}
				fmt.Fprintf(tw, "%.1f\t", l.Values[i])
			}
			fmt.Fprintln(tw)
		}
		tw.Flush()
		fmt.Fprintln(out)
	}
}
