package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-harvest-wb/config"
	"github.com/aluiziolira/go-harvest-wb/harvester"
	"github.com/aluiziolira/go-harvest-wb/models"
	"github.com/aluiziolira/go-harvest-wb/pipeline"
)

func main() {
	cfg := config.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	slog.Info("starting harvest",
		slog.String("query", cfg.Query),
		slog.Int("concurrency", cfg.Concurrency),
		slog.Int("max_pages", cfg.MaxPages),
	)

	h, err := harvester.New(cfg)
	if err != nil {
		slog.Error("initialising harvester", slog.Any("error", err))
		os.Exit(1)
	}

	// Both artifacts are created up front: an aborted run still leaves two
	// header-only files behind.
	fullWriter, err := createWriter(cfg.OutputFormat, cfg.FullOutput)
	if err != nil {
		slog.Error("creating full dataset writer", slog.Any("error", err))
		os.Exit(1)
	}
	filteredWriter, err := createWriter(cfg.OutputFormat, cfg.FilteredOutput)
	if err != nil {
		fullWriter.Close()
		slog.Error("creating filtered dataset writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := filteredWriter.Close(); err != nil {
			slog.Error("close filtered writer", slog.Any("error", err))
		}
		if err := fullWriter.Close(); err != nil {
			slog.Error("close full writer", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && h.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(h.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p := pipeline.NewPipeline(fullWriter, filteredWriter)
	p.Start()
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	result, runErr := h.Run(ctx, p)
	if runErr != nil {
		slog.Error("harvest failed, persisting accumulated records", slog.Any("error", runErr))
	}

	// Persist-on-exit: drain the pipeline and validate both artifacts before
	// reporting anything, even when the harvest aborted mid-run.
	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
	}
	if err := fullWriter.Validate(); err != nil {
		slog.Error("full output validation failed", slog.Any("error", err))
	}
	if err := filteredWriter.Validate(); err != nil {
		slog.Error("filtered output validation failed", slog.Any("error", err))
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, cfg)

	if runErr != nil {
		os.Exit(1)
	}
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "jsonl":
		return pipeline.NewJSONLWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonlFilename := strings.TrimSuffix(filename, ".csv") + ".jsonl"
		return pipeline.NewDualWriter(filename, jsonlFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(result *models.HarvestResult, cfg *config.Config) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Harvest complete")

	duration := result.EndTime.Sub(result.StartTime)
	counters := result.Counters

	fmt.Printf("  Pages:            %d\n", result.Pages)
	fmt.Printf("  Unique articles:  %d\n", result.UniqueArticles)
	fmt.Printf("  Full records:     %d\n", counters.Full)
	fmt.Printf("  Filtered records: %d\n", counters.Filtered)
	fmt.Printf("  Empty responses:  %d\n", counters.Empty)
	fmt.Printf("  Failed fetches:   %d\n", counters.Failed)
	fmt.Printf("  Retries:          %d\n", result.RetryCount)
	fmt.Printf("  Duration:         %v\n", duration)
	if duration.Seconds() > 0 {
		fmt.Printf("  Records/sec:      %.2f\n", float64(counters.Full)/duration.Seconds())
	}
	fmt.Printf("  Full output:      %s\n", cfg.FullOutput)
	fmt.Printf("  Filtered output:  %s\n", cfg.FilteredOutput)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
