// Package pipeline is the single entry point for chat and SMS collaborators:
// normalization, the duplicate check, the store write and pending-duplicate
// resolution.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-assistant/internal/dedup"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/monitor"
	"github.com/dvloznov/finance-assistant/internal/normalize"
	"github.com/dvloznov/finance-assistant/internal/resolver"
	"github.com/dvloznov/finance-assistant/internal/store"
)

// Deps are the collaborators of a Pipeline. Store and Normalizer are
// required; the rest fall back to defaults.
type Deps struct {
	Store           *store.Store
	Normalizer      *normalize.Normalizer
	Policy          *dedup.Policy
	Table           *resolver.Table
	Subscribers     *resolver.Subscribers
	MonitorDebounce time.Duration
}

// Pipeline is constructed once per store.
type Pipeline struct {
	store       *store.Store
	table       *resolver.Table
	subscribers *resolver.Subscribers
	debounce    time.Duration
	runner      *Runner
}

// New wires a pipeline from deps.
func New(deps Deps) (*Pipeline, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("New: store is required")
	}
	if deps.Normalizer == nil {
		return nil, fmt.Errorf("New: normalizer is required")
	}

	policy := dedup.DefaultPolicy(deps.Store.Location())
	if deps.Policy != nil {
		policy = *deps.Policy
	}
	table := deps.Table
	if table == nil {
		table = resolver.NewTable()
	}
	subs := deps.Subscribers
	if subs == nil {
		subs = resolver.NewSubscribers(resolver.DefaultMaxSubscribers)
	}

	return &Pipeline{
		store:       deps.Store,
		table:       table,
		subscribers: subs,
		debounce:    deps.MonitorDebounce,
		runner: NewRunner(
			&NormalizeStep{Normalizer: deps.Normalizer},
			&RecordStep{Store: deps.Store, Policy: policy, Table: table},
			&NotifyStep{Table: table, Subscribers: subs},
		),
	}, nil
}

// Ingest normalizes a submission and records it. A nil error means the record
// was logged; otherwise the error is one of *InvalidPayloadError,
// *SuppressedDuplicateError, *DuplicateTransactionError or an I/O failure.
func (p *Pipeline) Ingest(ctx context.Context, payload normalize.Payload, cat normalize.Categorization, opts normalize.Options) (*domain.Transaction, error) {
	log := logger.FromContext(ctx)

	state := &PipelineState{Payload: payload, Categorization: cat, Options: opts}
	if err := p.runner.Execute(ctx, state); err != nil {
		log.Warn().Err(err).Str("status", string(StatusOf(err))).Msg("Ingest rejected")
		return state.Transaction, err
	}

	tx := state.Transaction
	switch state.Status {
	case StatusSuppressed:
		log.Info().
			Str("transaction_id", tx.ID).
			Str("existing_id", state.Existing.ID).
			Str("reason", state.Decision.Reason).
			Msg("Suppressed duplicate submission")
		return tx, &SuppressedDuplicateError{Reason: state.Decision.Reason, Existing: state.Existing, Candidate: tx}
	case StatusDuplicate:
		log.Info().
			Str("pending_id", tx.ID).
			Str("existing_id", state.Existing.ID).
			Str("reason", state.Decision.Reason).
			Msg("Escalated possible duplicate")
		return tx, &DuplicateTransactionError{PendingID: tx.ID, Reason: state.Decision.Reason, Existing: state.Existing, Candidate: tx}
	default:
		log.Info().
			Str("transaction_id", tx.ID).
			Str("amount", tx.Amount.String()).
			Str("currency", tx.Currency).
			Msg("Transaction logged")
		return tx, nil
	}
}

// ResolveDuplicate applies a human decision. An unknown or already resolved
// ID yields ResolutionNotFound with a nil error.
func (p *Pipeline) ResolveDuplicate(ctx context.Context, pendingID string, action resolver.Action) (Resolution, error) {
	action, err := resolver.ParseAction(string(action))
	if err != nil {
		return "", fmt.Errorf("ResolveDuplicate: %w", err)
	}
	log := logger.FromContext(ctx).With().Str("pending_id", pendingID).Logger()

	entry, ok := p.table.Take(pendingID)
	if !ok {
		log.Info().Msg("Pending duplicate not found")
		return ResolutionNotFound, nil
	}

	if action == resolver.ActionIgnore {
		log.Info().Msg("Pending duplicate ignored")
		return ResolutionIgnored, nil
	}

	if err := p.store.Append(ctx, entry.Candidate); err != nil {
		if errors.Is(err, store.ErrAlreadyRecorded) {
			log.Info().Msg("Pending duplicate was already in the store")
			return ResolutionRecorded, nil
		}
		p.table.Restore(entry)
		return "", fmt.Errorf("ResolveDuplicate: %w", err)
	}
	log.Info().Msg("Pending duplicate recorded")
	return ResolutionRecorded, nil
}

// ListPendingDuplicates returns entries awaiting a decision, oldest first.
func (p *Pipeline) ListPendingDuplicates() []resolver.Entry {
	return p.table.List()
}

// OnDuplicate registers a handler for new pending duplicates.
func (p *Pipeline) OnDuplicate(h resolver.Handler) (func(), error) {
	unsubscribe, err := p.subscribers.Subscribe(h)
	if err != nil {
		return nil, fmt.Errorf("OnDuplicate: %w", err)
	}
	return unsubscribe, nil
}

// StartCSVMonitor watches the store file for rows written by anything other
// than this pipeline.
func (p *Pipeline) StartCSVMonitor(ctx context.Context, handler monitor.Callback) (func(), error) {
	stop, err := monitor.New(p.store, p.debounce).Start(ctx, handler)
	if err != nil {
		return nil, fmt.Errorf("StartCSVMonitor: %w", err)
	}
	return stop, nil
}

// Store exposes the underlying store for read-only tooling.
func (p *Pipeline) Store() *store.Store {
	return p.store
}
