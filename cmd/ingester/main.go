package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"seb-platform/internal/config"
	"seb-platform/internal/repository"
	"seb-platform/internal/services"
	"seb-platform/pkg/database"
	"seb-platform/pkg/logging"
	"seb-platform/pkg/metrics"
)

const version = "1.0.0"

func main() {
	stationsFlag := flag.String("stations", "", "Comma-separated station codes to ingest (default: all configured)")
	concurrency := flag.Int("concurrency", 2, "Number of stations processed in parallel")
	dataDir := flag.String("data-dir", "", "Directory containing the SEB files (overrides configuration)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Data.Dir = *dataDir
	}

	logger := logging.NewStructuredLogger(cfg.Logging.Service+"-ingester", version, logging.ParseLevel(cfg.Logging.Level))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsCollector := metrics.NewCollector("seb_ingester", prometheus.DefaultRegisterer)

	db, err := database.NewPostgresDB(ctx, cfg.Database.Connection(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	sebRepo := repository.NewSEBRepository(db, logger, metricsCollector)

	analysis := services.NewAnalysisService(cfg.Data, logger, metricsCollector)
	statsService := services.NewStatisticsService(sebRepo, logger, metricsCollector)
	ingestionService := services.NewIngestionService(analysis, statsService, sebRepo, cfg.Data, logger, metricsCollector)

	codes := analysis.StationCodes()
	if *stationsFlag != "" {
		codes = nil
		for _, c := range strings.Split(*stationsFlag, ",") {
			if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
				codes = append(codes, c)
			}
		}
	}

	logger.Info(ctx, "[INGESTER_START] Starting SEB ingestion", logging.Fields{
		"version":     version,
		"data_dir":    cfg.Data.Dir,
		"stations":    strings.Join(codes, ","),
		"concurrency": *concurrency,
	})

	result, err := ingestionService.IngestStations(ctx, codes, *concurrency)
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{}, err)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Stations:           %d\n", result.TotalStations)
	fmt.Printf("Successful:         %d\n", result.SuccessfulStations)
	fmt.Printf("Variables:          %d\n", result.Variables)
	fmt.Printf("Aggregates stored:  %d\n", result.Aggregates)
	fmt.Printf("Duration:           %v\n", result.Duration)

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion finished", logging.Fields{
		"stations":         result.TotalStations,
		"successful":       result.SuccessfulStations,
		"aggregates":       result.Aggregates,
		"duration_seconds": result.Duration.Seconds(),
	})
	if result.SuccessfulStations < result.TotalStations {
		os.Exit(1)
	}
}
