package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ekaracan/newspulse/app/ai"
	"github.com/ekaracan/newspulse/app/api"
	"github.com/ekaracan/newspulse/app/breaker"
	"github.com/ekaracan/newspulse/app/cfg"
	"github.com/ekaracan/newspulse/app/database"
	"github.com/ekaracan/newspulse/app/feed"
	"github.com/ekaracan/newspulse/app/ingest"
	"github.com/ekaracan/newspulse/app/instability"
	"github.com/ekaracan/newspulse/app/scheduler"
	"github.com/ekaracan/newspulse/app/sources"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting NewsPulse server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	loader := sources.NewLoader(appCfg.SourcesDir)
	srcs, err := loader.LoadAll()
	if err != nil {
		log.Fatalf("Failed to load source descriptors: %v", err)
	}
	slog.Info("Loaded source descriptors", "count", len(srcs), "dir", appCfg.SourcesDir)

	stores, err := database.NewStoryStores(db)
	if err != nil {
		log.Fatalf("Failed to initialize story stores: %v", err)
	}
	categories := database.NewCategoryRepository(db)

	circuits := breaker.NewRegistry()
	aiClient := ai.NewClient(appCfg.AIEndpoint, appCfg.AIFastEndpoint, appCfg.AIAPIKey, appCfg.AIModel, circuits)

	httpClient := &http.Client{}
	parser := feed.NewParser()
	fetcher := feed.NewFetcher(httpClient, parser, appCfg.UserAgent)
	extractor := feed.NewContentExtractor(httpClient, appCfg.UserAgent)

	orchestrator := ingest.NewOrchestrator(fetcher, aiClient, extractor, stores, categories)

	ingestScheduler := scheduler.NewScheduler(orchestrator, loader,
		time.Duration(appCfg.SchedulerInterval)*time.Second,
		time.Duration(appCfg.SourceDelay)*time.Second)
	ingestScheduler.Start()
	defer ingestScheduler.Stop()
	slog.Info("Ingestion scheduler started", "interval_seconds", appCfg.SchedulerInterval)

	engine := instability.NewEngine(stores)

	apiHandler := api.NewHandler(ingestScheduler, engine, circuits, database.SupportedCountries, appCfg.Version)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler stops via defer after the HTTP server drains
	slog.Info("Shutdown complete")
}
