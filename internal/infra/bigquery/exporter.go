package bigquery

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/store"
)

// DefaultBatchSize caps the IDs per lookup query and rows per insert.
const DefaultBatchSize = 500

// ExportResult summarizes one export run.
type ExportResult struct {
	Read     int
	Invalid  int
	Existing int
	Inserted int
}

// Exporter pushes the local analytics file into the warehouse, inserting only
// rows whose transaction ID is not there yet.
type Exporter struct {
	repo      AnalyticsRepository
	BatchSize int
	DryRun    bool
	now       func() time.Time
}

// NewExporter creates an exporter on repo.
func NewExporter(repo AnalyticsRepository) *Exporter {
	return &Exporter{repo: repo, BatchSize: DefaultBatchSize, now: time.Now}
}

// Export reads the analytics file at path and inserts the missing rows.
func (e *Exporter) Export(ctx context.Context, path string) (ExportResult, error) {
	log := logger.FromContext(ctx)
	var result ExportResult

	lines, err := store.ReadAnalyticsFile(ctx, path)
	if err != nil {
		return result, fmt.Errorf("Export: %w", err)
	}
	result.Read = len(lines)

	exportedAt := e.now().UTC()
	seen := make(map[string]bool, len(lines))
	rows := make([]*AnalyticsRow, 0, len(lines))
	for _, line := range lines {
		if seen[line.TransactionID] {
			continue
		}
		seen[line.TransactionID] = true

		row, err := toAnalyticsRow(line, exportedAt)
		if err != nil {
			result.Invalid++
			log.Warn().Err(err).Str("transaction_id", line.TransactionID).Msg("Skipping unexportable analytics row")
			continue
		}
		rows = append(rows, row)
	}

	size := e.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		ids := make([]string, len(batch))
		for i, row := range batch {
			ids[i] = row.TransactionID
		}
		existing, err := e.repo.ExistingIDs(ctx, ids)
		if err != nil {
			return result, fmt.Errorf("Export: %w", err)
		}

		missing := make([]*AnalyticsRow, 0, len(batch))
		for _, row := range batch {
			if existing[row.TransactionID] {
				result.Existing++
				continue
			}
			missing = append(missing, row)
		}

		if e.DryRun {
			result.Inserted += len(missing)
			continue
		}
		if err := e.repo.InsertRows(ctx, missing); err != nil {
			return result, fmt.Errorf("Export: %w", err)
		}
		result.Inserted += len(missing)
	}

	log.Info().
		Int("read", result.Read).
		Int("invalid", result.Invalid).
		Int("existing", result.Existing).
		Int("inserted", result.Inserted).
		Bool("dry_run", e.DryRun).
		Msg("Analytics export finished")
	return result, nil
}
