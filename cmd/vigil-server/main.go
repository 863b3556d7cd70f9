package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/samijaber1/vigil-ml/internal/api"
	"github.com/samijaber1/vigil-ml/internal/collector"
	"github.com/samijaber1/vigil-ml/internal/config"
	"github.com/samijaber1/vigil-ml/internal/scheduler"
	"github.com/samijaber1/vigil-ml/internal/storage/sqlite"
	"github.com/samijaber1/vigil-ml/internal/telemetry"
)

func main() {
	// Parse flags
	cfg := parseFlags()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Starting VigilML server...")
	log.Printf("Config: port=%d, suite-dir=%s, collector=%s", cfg.Port, cfg.SuiteDirectory, cfg.CollectorType)

	// Create metric collector
	var metricCollector collector.Collector
	switch cfg.CollectorType {
	case "prometheus":
		promConfig := collector.DefaultPrometheusConfig(cfg.PrometheusURL)
		metricCollector = collector.NewPrometheus(promConfig)
		log.Printf("Using Prometheus collector: %s", cfg.PrometheusURL)

	case "synthetic":
		synthetic := collector.NewSynthetic()
		if cfg.SyntheticFixDir != "" {
			if err := loadFixtures(synthetic, cfg.SyntheticFixDir); err != nil {
				log.Fatalf("Failed to load fixtures: %v", err)
			}
			log.Printf("Using synthetic collector with fixtures from: %s", cfg.SyntheticFixDir)
		} else {
			log.Printf("Using synthetic collector (no fixtures directory specified)")
		}
		metricCollector = synthetic

	default:
		log.Fatalf("Unknown collector type: %s", cfg.CollectorType)
	}

	// Create scheduler
	sched := scheduler.NewScheduler(metricCollector, cfg.SuiteDirectory, cfg.SchemaPath)

	// Attach audit storage if configured
	if cfg.DBPath != "" {
		store, err := sqlite.NewStore(cfg.DBPath)
		if err != nil {
			log.Fatalf("Failed to open audit storage: %v", err)
		}
		defer store.Close()
		sched.SetAuditStorage(store)
		log.Printf("Audit storage: %s", cfg.DBPath)
	}

	// Wire telemetry
	metrics := telemetry.NewMetrics()
	sched.SetReportHook(metrics.ObserveReport)

	// Load suites
	if err := sched.LoadSuites(); err != nil {
		log.Fatalf("Failed to load suites: %v", err)
	}

	// Start scheduler
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Watch suite directory for changes
	if cfg.WatchSuites {
		if err := sched.Watch(); err != nil {
			log.Fatalf("Failed to watch suite directory: %v", err)
		}
	}

	// Create and start HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	apiServer := api.NewServer(sched, addr, metrics.Handler())

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- apiServer.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatalf("Server error: %v", err)

	case sig := <-shutdown:
		log.Printf("Received signal: %v", sig)

		// Graceful shutdown
		ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
		defer cancel()

		log.Println("Shutting down server...")
		if err := apiServer.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}

		log.Println("Stopping scheduler...")
		sched.Stop()

		log.Println("Shutdown complete")
	}
}

func parseFlags() config.Config {
	cfg := config.DefaultConfig()

	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.Host, "host", cfg.Host, "HTTP server host")
	flag.StringVar(&cfg.SuiteDirectory, "suite-dir", cfg.SuiteDirectory, "Directory containing evaluation suite YAML files")
	flag.StringVar(&cfg.SchemaPath, "schema", cfg.SchemaPath, "Path to the suite JSON schema")
	flag.BoolVar(&cfg.WatchSuites, "watch", cfg.WatchSuites, "Reload suites when the directory changes")
	flag.StringVar(&cfg.CollectorType, "collector", cfg.CollectorType, "Metric collector type (prometheus|synthetic)")
	flag.StringVar(&cfg.PrometheusURL, "prometheus-url", cfg.PrometheusURL, "Prometheus server URL (required for prometheus collector)")
	flag.StringVar(&cfg.SyntheticFixDir, "synthetic-fixtures", cfg.SyntheticFixDir, "Directory containing synthetic metric fixtures")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite audit database path (empty disables audit storage)")

	flag.Parse()

	return cfg
}

// loadFixtures loads every JSON fixture file in a directory into the
// synthetic collector.
func loadFixtures(c *collector.Synthetic, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if err := c.LoadFixture(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
