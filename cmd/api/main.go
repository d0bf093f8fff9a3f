package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-assistant/internal/api"
	"github.com/dvloznov/finance-assistant/internal/api/handlers"
	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/extract"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/jobs/inmemory"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/pipeline"
	"github.com/dvloznov/finance-assistant/internal/resolver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	port := flag.String("port", cfg.Server.Port, "HTTP server port (or set PORT env)")
	flag.Parse()

	log := logger.NewWithLevel(os.Stdout, cfg.Log.Level)
	ctx := logger.WithContext(context.Background(), log)

	ledger, err := pipeline.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}

	unsubscribe, err := ledger.OnDuplicate(func(ctx context.Context, entry resolver.Entry) error {
		log.Warn().
			Str("pending_id", entry.PendingID).
			Str("existing_id", entry.Existing.ID).
			Str("reason", entry.Reason).
			Msg("Possible duplicate awaiting decision")
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to subscribe to duplicates")
	}
	defer unsubscribe()

	alerts := handlers.NewAlerts(handlers.DefaultAlertCapacity)
	if cfg.Monitor.Enabled {
		stopMonitor, err := ledger.StartCSVMonitor(ctx, alerts.Record)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to start store monitor")
		}
		defer stopMonitor()
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.QueueSize, cfg.Jobs.Workers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	var smsHandler *handlers.SMSHandler
	client, err := extract.NewGeminiClient(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Gemini client unavailable - SMS ingestion disabled")
	} else {
		extractor := extract.NewGeminiExtractor(client.Models, cfg.Model.Name, extract.NewCategoryValidator(extract.DefaultCategories), cfg.Ledger.OwnerPhone)
		if err := jobQueue.Start(workerCtx, jobs.NewIngestSMSHandler(extractor, ledger)); err != nil {
			log.Fatal().Err(err).Msg("Failed to start job workers")
		}
		log.Info().Int("workers", cfg.Jobs.Workers).Msg("Started SMS job workers")
		smsHandler = handlers.NewSMSHandler(jobQueue, log)
	}

	handler := api.NewRouter(api.Handlers{
		Transactions: handlers.NewTransactionsHandler(ledger, cfg.Ledger.OwnerPhone, log),
		Duplicates:   handlers.NewDuplicatesHandler(ledger, log),
		SMS:          smsHandler,
		Jobs:         handlers.NewJobsHandler(jobStore, log),
		Alerts:       handlers.NewAlertsHandler(alerts),
	}, log, cfg.Server.APIToken)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Str("store", ledger.Store().Path()).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
