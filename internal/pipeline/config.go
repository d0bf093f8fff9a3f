package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/dedup"
	"github.com/dvloznov/finance-assistant/internal/normalize"
	"github.com/dvloznov/finance-assistant/internal/resolver"
	"github.com/dvloznov/finance-assistant/internal/store"
)

// PolicyFromConfig builds the suppression policy from the dedup settings.
func PolicyFromConfig(cfg config.DedupConfig, ledger config.LedgerConfig) (dedup.Policy, error) {
	loc, err := ledger.Location()
	if err != nil {
		return dedup.Policy{}, err
	}
	policy := dedup.DefaultPolicy(loc)
	policy.SuppressWindow = cfg.SuppressWindow
	policy.DescriptionSlack = cfg.DescriptionSlack
	policy.AmountTolerance = cfg.AmountTolerance
	return policy, nil
}

// Open opens the configured store and wires a pipeline around it.
func Open(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	loc, err := cfg.Ledger.Location()
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	s, err := store.Open(ctx, store.Options{
		Path:          cfg.Ledger.StorePath,
		AnalyticsPath: cfg.Ledger.AnalyticsPath,
		Location:      loc,
	})
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	policy, err := PolicyFromConfig(cfg.Dedup, cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	return New(Deps{
		Store:           s,
		Normalizer:      normalize.New(cfg.Ledger.DefaultCurrency, loc),
		Policy:          &policy,
		Subscribers:     resolver.NewSubscribers(cfg.Notify.MaxSubscribers),
		MonitorDebounce: cfg.Monitor.Debounce,
	})
}
