package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/gcsuploader"
	infraBQ "github.com/dvloznov/finance-assistant/internal/infra/bigquery"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/normalize"
	"github.com/dvloznov/finance-assistant/internal/notionsync"
	"github.com/dvloznov/finance-assistant/internal/pipeline"
	"github.com/dvloznov/finance-assistant/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(os.Stderr, cfg.Log.Level)

	switch os.Args[1] {
	case "ingest":
		runIngest(cfg, log)
	case "pending":
		runPending(cfg, log)
	case "resolve":
		runResolve(cfg, log)
	case "watch":
		runWatch(cfg, log)
	case "archive":
		runArchive(cfg, log)
	case "restore":
		runRestore(cfg, log)
	case "export-analytics":
		runExportAnalytics(cfg, log)
	case "sync-notion":
		runSyncNotion(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finance Assistant ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  ingest            Record one transaction in the local ledger")
	fmt.Println("  pending           List possible duplicates held by the API server")
	fmt.Println("  resolve           Record or ignore a pending duplicate on the API server")
	fmt.Println("  watch             Report rows added to the ledger file by other tools")
	fmt.Println("  archive           Upload the ledger and analytics files to GCS")
	fmt.Println("  restore           Download an archived ledger file from GCS")
	fmt.Println("  export-analytics  Insert missing analytics rows into BigQuery")
	fmt.Println("  sync-notion       Mirror ledger rows into a Notion database")
	fmt.Println("  help              Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runIngest(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	amount := fs.String("amount", "", "Transaction amount (required)")
	direction := fs.String("direction", "expense", "expense|income (debit/credit accepted)")
	description := fs.String("description", "", "Short description")
	raw := fs.String("raw", "", "Original message text used for date, time and currency detection")
	currency := fs.String("currency", "", "ISO currency code (detected or defaulted when empty)")
	date := fs.String("date", "", "Event date YYYY-MM-DD")
	clock := fs.String("time", "", "Event time HH:MM[:SS]")
	category := fs.String("category", "", "Category name")
	flavor := fs.String("flavor", "", "Spending flavor, e.g. essential")
	tags := fs.String("tags", "", "Comma-separated tags")
	counterparty := fs.String("counterparty", "", "Payee or payer")
	medium := fs.String("medium", "", "upi|card|cash|netbanking")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)
	ledger, err := pipeline.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}

	var tagList []string
	for _, t := range strings.Split(*tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tagList = append(tagList, t)
		}
	}

	tx, err := ledger.Ingest(ctx,
		normalize.Payload{
			Amount:       normalize.Amount(*amount),
			Description:  *description,
			Direction:    *direction,
			RawText:      *raw,
			Currency:     *currency,
			Counterparty: *counterparty,
			Medium:       *medium,
			OwnerPhone:   cfg.Ledger.OwnerPhone,
			EventDate:    *date,
			EventTime:    *clock,
		},
		normalize.Categorization{Category: *category, Flavor: *flavor, Tags: tagList},
		normalize.Options{Source: "cli"},
	)

	var dup *pipeline.DuplicateTransactionError
	switch status := pipeline.StatusOf(err); status {
	case pipeline.StatusLogged:
		fmt.Printf("Logged %s %s %s (%s)\n", tx.Amount.StringFixed(2), tx.Currency, tx.Direction, tx.ID)
	case pipeline.StatusSuppressed:
		fmt.Printf("Suppressed: %v\n", err)
	case pipeline.StatusDuplicate:
		// The pending entry lives only as long as this process.
		errors.As(err, &dup)
		fmt.Printf("Possible duplicate of %s (%s); not recorded. Submit through the API to resolve it later.\n", dup.Existing.ID, dup.Reason)
		os.Exit(2)
	default:
		log.Fatal().Err(err).Str("status", string(status)).Msg("Ingest failed")
	}
}

func runPending(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("pending", flag.ExitOnError)
	server := fs.String("server", "http://localhost:"+cfg.Server.Port, "API server base URL")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	entries, err := newAPIClient(*server, cfg.Server.APIToken).ListDuplicates(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list pending duplicates")
	}
	if len(entries) == 0 {
		fmt.Println("No pending duplicates.")
		return
	}
	for _, e := range entries {
		fmt.Printf("%s  %s  %s %s %q  (existing %s, %s)\n",
			e.PendingID,
			e.CreatedAt.Format(time.RFC3339),
			e.Candidate.Amount.StringFixed(2),
			e.Candidate.Currency,
			e.Candidate.Description,
			e.Existing.ID,
			e.Reason,
		)
	}
}

func runResolve(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	server := fs.String("server", "http://localhost:"+cfg.Server.Port, "API server base URL")
	id := fs.String("id", "", "Pending duplicate ID")
	action := fs.String("action", "", "record|ignore")
	fs.Parse(os.Args[2:])

	if *id == "" || *action == "" {
		log.Fatal().Msg("Usage: cli resolve -id PENDING_ID -action record|ignore")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := newAPIClient(*server, cfg.Server.APIToken).Resolve(ctx, *id, *action)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve duplicate")
	}
	fmt.Printf("%s: %s\n", *id, result)
}

func runWatch(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	ledger, err := pipeline.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}

	stop, err := ledger.StartCSVMonitor(ctx, func(ctx context.Context, txs []*domain.Transaction) {
		for _, tx := range txs {
			fmt.Printf("External row %s: %s %s %s %q\n", tx.ID, tx.Amount.StringFixed(2), tx.Currency, tx.Direction, tx.Description)
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start monitor")
	}
	defer stop()

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", ledger.Store().Path())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

func runArchive(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	bucket := fs.String("bucket", cfg.Cloud.Bucket, "GCS bucket name (or set GCS_BUCKET env)")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	objects, err := gcsuploader.NewBucketStore(ctx, *bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open bucket")
	}
	defer objects.Close()

	uris, err := gcsuploader.NewArchiver(objects).Archive(ctx, cfg.Ledger.StorePath, cfg.Ledger.AnalyticsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Archive failed")
	}
	for _, uri := range uris {
		fmt.Println(uri)
	}
}

func runRestore(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	uri := fs.String("uri", "", "gs:// URI of the archived file")
	bucket := fs.String("bucket", cfg.Cloud.Bucket, "Archive bucket; defaults to the URI's bucket")
	dest := fs.String("dest", cfg.Ledger.StorePath, "Local destination; must not exist")
	fs.Parse(os.Args[2:])

	if *uri == "" {
		log.Fatal().Msg("Usage: cli restore -uri gs://BUCKET/OBJECT [-dest PATH]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	if *bucket == "" {
		b, _, err := gcsuploader.ParseGCSURI(*uri)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid URI")
		}
		*bucket = b
	}

	objects, err := gcsuploader.NewBucketStore(ctx, *bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open bucket")
	}
	defer objects.Close()

	if err := gcsuploader.NewArchiver(objects).Restore(ctx, *uri, *dest); err != nil {
		log.Fatal().Err(err).Msg("Restore failed")
	}
	fmt.Printf("Restored %s to %s\n", *uri, *dest)
}

func runExportAnalytics(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("export-analytics", flag.ExitOnError)
	projectID := fs.String("project", cfg.Cloud.ProjectID, "BigQuery project (or set BQ_PROJECT_ID env)")
	dataset := fs.String("dataset", cfg.Cloud.Dataset, "BigQuery dataset")
	table := fs.String("table", cfg.Cloud.AnalyticsTable, "BigQuery table")
	dryRun := fs.Bool("dry-run", false, "Report what would be inserted without writing")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	repo, err := infraBQ.NewBigQueryAnalyticsRepository(ctx, *projectID, *dataset, *table)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	exporter := infraBQ.NewExporter(repo)
	exporter.DryRun = *dryRun

	result, err := exporter.Export(ctx, cfg.Ledger.AnalyticsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}
	fmt.Printf("Read %d rows: %d inserted, %d already present, %d invalid\n",
		result.Read, result.Inserted, result.Existing, result.Invalid)
}

func runSyncNotion(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("sync-notion", flag.ExitOnError)
	dbID := fs.String("db", cfg.Notion.DatabaseID, "Notion database ID (or set NOTION_DB_ID env)")
	dryRun := fs.Bool("dry-run", false, "Report what would be created without writing")
	fs.Parse(os.Args[2:])

	if cfg.Notion.Token == "" {
		log.Fatal().Msg("NOTION_TOKEN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	loc, err := cfg.Ledger.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid timezone")
	}

	txs, err := store.ReadFile(ctx, cfg.Ledger.StorePath, loc)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read ledger")
	}

	result, err := notionsync.SyncLedger(ctx, txs, notionsync.NewClient(cfg.Notion.Token), *dbID, loc, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Notion sync failed")
	}
	fmt.Printf("Synced %d rows: %d created, %d already mirrored, %d failed\n",
		result.Total, result.Created, result.Skipped, result.Failed)
}
