package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/extract"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/normalize"
	"github.com/dvloznov/finance-assistant/internal/pipeline"
)

// OutcomeNotFinancial is the job outcome for messages the model rejected.
const OutcomeNotFinancial = "not-financial"

// Ingester is the ledger entry point used by SMS jobs; *pipeline.Pipeline
// satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, payload normalize.Payload, cat normalize.Categorization, opts normalize.Options) (*domain.Transaction, error)
}

// NewIngestSMSHandler returns a handler that extracts a transaction from the
// job's SMS and ingests it. Duplicate outcomes complete the job; invalid
// payloads fail it without retry.
func NewIngestSMSHandler(extractor extract.Extractor, ingester Ingester) JobHandler {
	return func(ctx context.Context, job *IngestSMSJob) error {
		log := logger.FromContext(ctx).With().Str("job_id", job.JobID).Logger()

		result, err := extractor.Extract(ctx, job.Message)
		if errors.Is(err, extract.ErrNotFinancial) {
			job.Outcome = OutcomeNotFinancial
			log.Info().Msg("SMS is not a transaction, skipping")
			return nil
		}
		if err != nil {
			return fmt.Errorf("IngestSMS: %w", err)
		}

		tx, err := ingester.Ingest(ctx, result.Payload, result.Categorization, normalize.Options{
			Source:    "sms",
			ExtraTags: []string{"sms"},
		})
		if tx != nil {
			job.TransactionID = tx.ID
		}

		status := pipeline.StatusOf(err)
		job.Outcome = string(status)

		switch status {
		case pipeline.StatusLogged, pipeline.StatusSuppressed:
			log.Info().Str("outcome", job.Outcome).Str("transaction_id", job.TransactionID).Msg("SMS ingested")
			return nil
		case pipeline.StatusDuplicate:
			var dup *pipeline.DuplicateTransactionError
			if errors.As(err, &dup) {
				job.PendingID = dup.PendingID
			}
			log.Info().Str("pending_id", job.PendingID).Msg("SMS parked as possible duplicate")
			return nil
		case pipeline.StatusInvalid:
			return Permanent(fmt.Errorf("IngestSMS: %w", err))
		default:
			return fmt.Errorf("IngestSMS: %w", err)
		}
	}
}
