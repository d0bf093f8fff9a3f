package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/extract"
	"github.com/dvloznov/finance-assistant/internal/normalize"
	"github.com/dvloznov/finance-assistant/internal/pipeline"
)

// MockExtractor is a mock implementation of extract.Extractor for testing.
type MockExtractor struct {
	ExtractFunc func(ctx context.Context, sms string) (*extract.Result, error)
}

func (m *MockExtractor) Extract(ctx context.Context, sms string) (*extract.Result, error) {
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, sms)
	}
	return &extract.Result{Payload: normalize.Payload{Amount: "1", Direction: "debit"}}, nil
}

// MockIngester is a mock implementation of Ingester for testing.
type MockIngester struct {
	IngestFunc func(ctx context.Context, p normalize.Payload, c normalize.Categorization, o normalize.Options) (*domain.Transaction, error)
}

func (m *MockIngester) Ingest(ctx context.Context, p normalize.Payload, c normalize.Categorization, o normalize.Options) (*domain.Transaction, error) {
	if m.IngestFunc != nil {
		return m.IngestFunc(ctx, p, c, o)
	}
	return &domain.Transaction{ID: "tx-1"}, nil
}

func TestIngestSMSHandler(t *testing.T) {
	tx := &domain.Transaction{ID: "tx-1"}

	tests := []struct {
		name          string
		extractErr    error
		ingestErr     error
		wantErr       bool
		wantPermanent bool
		wantOutcome   string
		wantPendingID string
	}{
		{name: "logged", wantOutcome: "logged"},
		{name: "suppressed", ingestErr: &pipeline.SuppressedDuplicateError{Existing: tx}, wantOutcome: "suppressed"},
		{name: "duplicate", ingestErr: &pipeline.DuplicateTransactionError{PendingID: "tx-1", Existing: tx}, wantOutcome: "duplicate", wantPendingID: "tx-1"},
		{name: "invalid", ingestErr: &pipeline.InvalidPayloadError{Err: normalize.ErrInvalidPayload}, wantErr: true, wantPermanent: true, wantOutcome: "invalid"},
		{name: "io failure", ingestErr: errors.New("disk full"), wantErr: true, wantOutcome: "failed"},
		{name: "not financial", extractErr: extract.ErrNotFinancial, wantOutcome: OutcomeNotFinancial},
		{name: "model failure", extractErr: errors.New("quota"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotOpts normalize.Options
			extractor := &MockExtractor{
				ExtractFunc: func(ctx context.Context, sms string) (*extract.Result, error) {
					if tt.extractErr != nil {
						return nil, tt.extractErr
					}
					return &extract.Result{Payload: normalize.Payload{Amount: "75", Direction: "debit", RawText: sms}}, nil
				},
			}
			ingester := &MockIngester{
				IngestFunc: func(ctx context.Context, p normalize.Payload, c normalize.Categorization, o normalize.Options) (*domain.Transaction, error) {
					gotOpts = o
					return tx, tt.ingestErr
				},
			}

			job := &IngestSMSJob{JobID: "job-1", Message: "Rs.75 debited"}
			err := NewIngestSMSHandler(extractor, ingester)(context.Background(), job)

			if (err != nil) != tt.wantErr {
				t.Fatalf("handler error = %v, wantErr %v", err, tt.wantErr)
			}
			if IsPermanent(err) != tt.wantPermanent {
				t.Errorf("IsPermanent = %v, want %v", IsPermanent(err), tt.wantPermanent)
			}
			if job.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %q, want %q", job.Outcome, tt.wantOutcome)
			}
			if job.PendingID != tt.wantPendingID {
				t.Errorf("PendingID = %q, want %q", job.PendingID, tt.wantPendingID)
			}
			if tt.extractErr == nil && gotOpts.Source != "sms" {
				t.Errorf("Source = %q, want sms", gotOpts.Source)
			}
		})
	}
}

func TestPermanent(t *testing.T) {
	base := errors.New("boom")

	if Permanent(nil) != nil {
		t.Error("Permanent(nil) must be nil")
	}
	err := Permanent(base)
	if !IsPermanent(err) || !errors.Is(err, base) {
		t.Errorf("Permanent(base) = %v, want permanent wrapping base", err)
	}
	if IsPermanent(base) {
		t.Error("plain errors are not permanent")
	}
}
