package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/logger"
)

const (
	// BatchSize defines the number of transactions logged as one progress batch
	BatchSize = 100
)

// SyncResult summarizes a mirror run.
type SyncResult struct {
	Total   int
	Created int
	Skipped int
	Failed  int
}

// SyncLedger mirrors ledger records into a Notion database. Pages are keyed by
// the Transaction ID property; records that already have a page are skipped
// and existing pages are never updated or deleted.
// Individual create failures are logged and counted, not returned.
func SyncLedger(ctx context.Context, txs []*domain.Transaction, pages PageStore, notionDBID string, loc *time.Location, dryRun bool) (SyncResult, error) {
	log := logger.FromContext(ctx)
	result := SyncResult{Total: len(txs)}

	if notionDBID == "" {
		return result, fmt.Errorf("SyncLedger: database ID is required")
	}

	log.Info().
		Int("transaction_count", len(txs)).
		Bool("dry_run", dryRun).
		Msg("Starting ledger sync to Notion")

	existing, err := mirroredIDs(ctx, pages, notionDBID)
	if err != nil {
		return result, fmt.Errorf("SyncLedger: %w", err)
	}

	log.Info().Int("mirrored_count", len(existing)).Msg("Retrieved existing Notion pages")

	for i, tx := range txs {
		if i > 0 && i%BatchSize == 0 {
			log.Info().Int("processed", i).Int("created", result.Created).Msg("Sync progress")
		}

		if existing[tx.ID] {
			result.Skipped++
			continue
		}

		if dryRun {
			log.Info().
				Str("transaction_id", tx.ID).
				Msg("[DRY RUN] Would create new Notion page")
			result.Created++
			existing[tx.ID] = true
			continue
		}

		pageID, err := pages.CreatePage(ctx, notionDBID, TransactionToNotionProperties(tx, loc))
		if err != nil {
			log.Warn().
				Err(err).
				Str("transaction_id", tx.ID).
				Msg("Failed to create Notion page")
			result.Failed++
			continue
		}
		log.Debug().
			Str("transaction_id", tx.ID).
			Str("page_id", string(pageID)).
			Msg("Created Notion page")
		result.Created++
		existing[tx.ID] = true
	}

	log.Info().
		Int("total", result.Total).
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Bool("dry_run", dryRun).
		Msg("Ledger sync completed")

	return result, nil
}

// mirroredIDs collects the transaction IDs already present in the database.
func mirroredIDs(ctx context.Context, pages PageStore, databaseID string) (map[string]bool, error) {
	ids := make(map[string]bool)
	var cursor notionapi.Cursor
	for {
		batch, next, err := pages.ListPages(ctx, databaseID, cursor)
		if err != nil {
			return nil, fmt.Errorf("mirroredIDs: %w", err)
		}
		for _, page := range batch {
			if id := extractTransactionID(page); id != "" {
				ids[id] = true
			}
		}
		if next == "" {
			return ids, nil
		}
		cursor = next
	}
}
