package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-assistant/internal/dedup"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/normalize"
	"github.com/dvloznov/finance-assistant/internal/resolver"
	"github.com/dvloznov/finance-assistant/internal/store"
)

// PipelineStep represents a single step of an ingestion.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across the steps of one submission.
type PipelineState struct {
	Payload        normalize.Payload
	Categorization normalize.Categorization
	Options        normalize.Options

	Transaction *domain.Transaction
	Existing    *domain.Transaction
	Decision    dedup.Decision
	Pending     *resolver.Entry
	Status      Status
}

// Step 1: NormalizeStep turns the payload into a canonical record.
type NormalizeStep struct {
	Normalizer *normalize.Normalizer
}

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	tx, err := s.Normalizer.Normalize(state.Payload, state.Categorization, state.Options)
	if err != nil {
		if errors.Is(err, normalize.ErrInvalidPayload) {
			state.Status = StatusInvalid
			return &InvalidPayloadError{Err: err}
		}
		return fmt.Errorf("NormalizeStep: %w", err)
	}
	state.Transaction = tx
	return nil
}

// Step 2: RecordStep looks the record up and then appends it, drops it or
// parks it as a pending duplicate. Everything here runs under the store lock.
type RecordStep struct {
	Store  *store.Store
	Policy dedup.Policy
	Table  *resolver.Table
}

func (s *RecordStep) Execute(ctx context.Context, state *PipelineState) error {
	tx := state.Transaction

	return s.Store.WithLock(func(l store.Locked) error {
		existing, found := l.Lookup(tx)
		if !found {
			if err := l.Append(ctx, tx); err != nil {
				state.Status = StatusFailed
				return fmt.Errorf("RecordStep: %w", err)
			}
			state.Status = StatusLogged
			return nil
		}

		state.Existing = existing
		state.Decision = s.Policy.Decide(tx, existing)
		if state.Decision.Action == dedup.Suppress {
			state.Status = StatusSuppressed
			return nil
		}

		entry := resolver.Entry{
			PendingID: tx.ID,
			Candidate: tx,
			Existing:  existing,
			Reason:    state.Decision.Reason,
		}
		if err := s.Table.Add(entry); err != nil {
			state.Status = StatusFailed
			return fmt.Errorf("RecordStep: %w", err)
		}
		state.Pending = &entry
		state.Status = StatusDuplicate
		return nil
	})
}

// Step 3: NotifyStep makes a new pending duplicate listable and tells the
// subscribers about it. It runs after the store lock is released.
type NotifyStep struct {
	Table       *resolver.Table
	Subscribers *resolver.Subscribers
}

func (s *NotifyStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Pending == nil {
		return nil
	}

	entry, ok := s.Table.Promote(state.Pending.PendingID)
	if !ok {
		log := logger.FromContext(ctx)
		log.Warn().Str("pending_id", state.Pending.PendingID).Msg("Pending duplicate vanished before promotion")
		return nil
	}
	state.Pending = &entry
	s.Subscribers.Notify(ctx, entry)
	return nil
}

// Runner executes a sequence of steps in order.
type Runner struct {
	steps []PipelineStep
}

// NewRunner creates a runner with the given steps.
func NewRunner(steps ...PipelineStep) *Runner {
	return &Runner{steps: steps}
}

// Execute runs all steps sequentially and stops at the first error.
func (r *Runner) Execute(ctx context.Context, state *PipelineState) error {
	for _, step := range r.steps {
		if err := step.Execute(ctx, state); err != nil {
			return err
		}
	}
	return nil
}
