package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/extract"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/jobs/inmemory"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/pipeline"
)

// The worker reads one bank SMS per line from stdin, extracts and ingests each
// on the job queue, and exits once every message has been processed.
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	sender := flag.String("sender", "", "Sender recorded on every job")
	flag.Parse()

	log := logger.NewWithLevel(os.Stderr, cfg.Log.Level)
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	ledger, err := pipeline.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}

	client, err := extract.NewGeminiClient(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	extractor := extract.NewGeminiExtractor(client.Models, cfg.Model.Name, extract.NewCategoryValidator(extract.DefaultCategories), cfg.Ledger.OwnerPhone)

	// Initialize job store and queue
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.QueueSize, cfg.Jobs.Workers, jobStore)

	if err := jobQueue.Start(ctx, jobs.NewIngestSMSHandler(extractor, ledger)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Int("workers", cfg.Jobs.Workers).Msg("Worker service started, reading SMS from stdin")

	done := make(chan struct{})
	go func() {
		defer close(done)
		published := 0
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if err := jobQueue.PublishIngestSMS(ctx, &jobs.IngestSMSJob{Message: line, Sender: *sender}); err != nil {
				log.Error().Err(err).Msg("Failed to enqueue SMS")
				continue
			}
			published++
		}
		if err := scanner.Err(); err != nil {
			log.Error().Err(err).Msg("Failed to read stdin")
		}
		waitForJobs(ctx, jobStore, published)
	}()

	// Wait for interrupt signal or drained input
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Info().Msg("Shutting down worker service...")
	case <-done:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	cancel()

	summarize(jobStore, log)
	log.Info().Msg("Worker service exited")
}

// waitForJobs blocks until n jobs reached a terminal status or ctx ends.
func waitForJobs(ctx context.Context, store jobs.JobStore, n int) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		if sum, err := store.Summarize(ctx); err == nil && sum.Terminal >= n {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// summarize logs one line per job plus the status and outcome counts.
func summarize(store jobs.JobStore, log zerolog.Logger) {
	ctx := context.Background()
	all, err := store.ListJobs(ctx, jobs.JobFilter{})
	if err != nil {
		log.Error().Err(err).Msg("Failed to list jobs")
		return
	}
	for _, job := range all {
		log.Info().
			Str("job_id", job.JobID).
			Str("status", string(job.Status)).
			Str("outcome", job.Outcome).
			Str("transaction_id", job.TransactionID).
			Str("pending_id", job.PendingID).
			Str("error", job.Error).
			Msg("SMS job")
	}

	sum, err := store.Summarize(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to summarize jobs")
		return
	}
	event := log.Info().Int("total", sum.Total)
	for status, n := range sum.ByStatus {
		event = event.Int("status_"+string(status), n)
	}
	for outcome, n := range sum.ByOutcome {
		event = event.Int(outcome, n)
	}
	event.Msg("Worker summary")
}
