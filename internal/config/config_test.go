package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Ledger.StorePath != "data/transactions.csv" {
		t.Errorf("Ledger.StorePath = %q, want %q", cfg.Ledger.StorePath, "data/transactions.csv")
	}
	if cfg.Ledger.DefaultCurrency != "INR" {
		t.Errorf("Ledger.DefaultCurrency = %q, want INR", cfg.Ledger.DefaultCurrency)
	}
	if cfg.Dedup.SuppressWindow != 2*time.Minute {
		t.Errorf("Dedup.SuppressWindow = %v, want 2m", cfg.Dedup.SuppressWindow)
	}
	if cfg.Dedup.DescriptionSlack != 12 {
		t.Errorf("Dedup.DescriptionSlack = %d, want 12", cfg.Dedup.DescriptionSlack)
	}
	if cfg.Dedup.AmountTolerance.String() != "0.005" {
		t.Errorf("Dedup.AmountTolerance = %s, want 0.005", cfg.Dedup.AmountTolerance)
	}
	if cfg.Monitor.Debounce != 200*time.Millisecond {
		t.Errorf("Monitor.Debounce = %v, want 200ms", cfg.Monitor.Debounce)
	}
	if !cfg.Monitor.Enabled {
		t.Error("Monitor.Enabled = false, want true")
	}
	if cfg.Notify.MaxSubscribers != 16 {
		t.Errorf("Notify.MaxSubscribers = %d, want 16", cfg.Notify.MaxSubscribers)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LEDGER_STORE_PATH", "/tmp/ledger.csv")
	t.Setenv("LEDGER_DEFAULT_CURRENCY", "usd")
	t.Setenv("DEDUP_SUPPRESS_WINDOW", "90s")
	t.Setenv("MONITOR_ENABLED", "no")
	t.Setenv("API_TOKEN", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Ledger.StorePath != "/tmp/ledger.csv" {
		t.Errorf("Ledger.StorePath = %q", cfg.Ledger.StorePath)
	}
	if cfg.Ledger.DefaultCurrency != "USD" {
		t.Errorf("Ledger.DefaultCurrency = %q, want USD", cfg.Ledger.DefaultCurrency)
	}
	if cfg.Dedup.SuppressWindow != 90*time.Second {
		t.Errorf("Dedup.SuppressWindow = %v, want 90s", cfg.Dedup.SuppressWindow)
	}
	if cfg.Monitor.Enabled {
		t.Error("Monitor.Enabled = true, want false")
	}
	if cfg.Server.APIToken != "s3cret" {
		t.Errorf("Server.APIToken = %q", cfg.Server.APIToken)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad window", "DEDUP_SUPPRESS_WINDOW", "two minutes"},
		{"bad slack", "DEDUP_DESCRIPTION_SLACK", "twelve"},
		{"bad tolerance", "DEDUP_AMOUNT_TOLERANCE", "half a paisa"},
		{"negative tolerance", "DEDUP_AMOUNT_TOLERANCE", "-0.01"},
		{"bad debounce", "MONITOR_DEBOUNCE", "soon"},
		{"zero subscribers", "MAX_DUPLICATE_SUBSCRIBERS", "0"},
		{"long currency", "LEDGER_DEFAULT_CURRENCY", "RUPEE"},
		{"unknown timezone", "LEDGER_TIMEZONE", "Mars/Olympus"},
		{"same paths", "LEDGER_ANALYTICS_PATH", "data/transactions.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() expected error for %s=%q, got nil", tt.key, tt.value)
			}
		})
	}
}
