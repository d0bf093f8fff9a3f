package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Ledger  LedgerConfig
	Dedup   DedupConfig
	Monitor MonitorConfig
	Notify  NotifyConfig
	Server  ServerConfig
	Jobs    JobsConfig
	Log     LogConfig
	Cloud   CloudConfig
	Notion  NotionConfig
	Model   ModelConfig
}

type LedgerConfig struct {
	StorePath       string
	AnalyticsPath   string
	DefaultCurrency string
	Timezone        string
	OwnerPhone      string
}

// DedupConfig holds the auto-suppression thresholds. The window and the
// description slack have no documented rationale and are expected to be tuned.
type DedupConfig struct {
	SuppressWindow   time.Duration
	DescriptionSlack int
	AmountTolerance  decimal.Decimal
}

type MonitorConfig struct {
	Enabled  bool
	Debounce time.Duration
}

type NotifyConfig struct {
	MaxSubscribers int
}

type ServerConfig struct {
	Port     string
	APIToken string // empty disables bearer auth
}

type JobsConfig struct {
	Workers   int
	QueueSize int
}

type LogConfig struct {
	Level string
}

type CloudConfig struct {
	Bucket         string
	ProjectID      string
	Dataset        string
	AnalyticsTable string
}

type NotionConfig struct {
	Token      string
	DatabaseID string
}

type ModelConfig struct {
	Name string
}

func Load() (*Config, error) {
	window, err := getDurationEnv("DEDUP_SUPPRESS_WINDOW", 2*time.Minute)
	if err != nil {
		return nil, err
	}
	slack, err := getIntEnv("DEDUP_DESCRIPTION_SLACK", 12)
	if err != nil {
		return nil, err
	}
	tolerance, err := decimal.NewFromString(getEnv("DEDUP_AMOUNT_TOLERANCE", "0.005"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEDUP_AMOUNT_TOLERANCE: %w", err)
	}
	debounce, err := getDurationEnv("MONITOR_DEBOUNCE", 200*time.Millisecond)
	if err != nil {
		return nil, err
	}
	maxSubscribers, err := getIntEnv("MAX_DUPLICATE_SUBSCRIBERS", 16)
	if err != nil {
		return nil, err
	}
	workers, err := getIntEnv("JOBS_WORKERS", 2)
	if err != nil {
		return nil, err
	}
	queueSize, err := getIntEnv("JOBS_QUEUE_SIZE", 100)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Ledger: LedgerConfig{
			StorePath:       getEnv("LEDGER_STORE_PATH", "data/transactions.csv"),
			AnalyticsPath:   getEnv("LEDGER_ANALYTICS_PATH", "data/analytics.csv"),
			DefaultCurrency: strings.ToUpper(getEnv("LEDGER_DEFAULT_CURRENCY", "INR")),
			Timezone:        getEnv("LEDGER_TIMEZONE", "Local"),
			OwnerPhone:      getEnv("LEDGER_OWNER_PHONE", ""),
		},
		Dedup: DedupConfig{
			SuppressWindow:   window,
			DescriptionSlack: slack,
			AmountTolerance:  tolerance,
		},
		Monitor: MonitorConfig{
			Enabled:  getBoolEnv("MONITOR_ENABLED", true),
			Debounce: debounce,
		},
		Notify: NotifyConfig{
			MaxSubscribers: maxSubscribers,
		},
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			APIToken: getEnv("API_TOKEN", ""),
		},
		Jobs: JobsConfig{
			Workers:   workers,
			QueueSize: queueSize,
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Cloud: CloudConfig{
			Bucket:         getEnv("GCS_BUCKET", ""),
			ProjectID:      getEnv("BQ_PROJECT_ID", ""),
			Dataset:        getEnv("BQ_DATASET", "finance"),
			AnalyticsTable: getEnv("BQ_ANALYTICS_TABLE", "ledger_analytics"),
		},
		Notion: NotionConfig{
			Token:      getEnv("NOTION_TOKEN", ""),
			DatabaseID: getEnv("NOTION_DB_ID", ""),
		},
		Model: ModelConfig{
			Name: getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
	}

	if cfg.Ledger.StorePath == cfg.Ledger.AnalyticsPath {
		return nil, fmt.Errorf("LEDGER_STORE_PATH and LEDGER_ANALYTICS_PATH must differ")
	}
	if len(cfg.Ledger.DefaultCurrency) != 3 {
		return nil, fmt.Errorf("LEDGER_DEFAULT_CURRENCY must be a 3-letter code, got %q", cfg.Ledger.DefaultCurrency)
	}
	if _, err := cfg.Ledger.Location(); err != nil {
		return nil, err
	}
	if cfg.Dedup.SuppressWindow < 0 {
		return nil, fmt.Errorf("DEDUP_SUPPRESS_WINDOW must not be negative")
	}
	if cfg.Dedup.AmountTolerance.IsNegative() {
		return nil, fmt.Errorf("DEDUP_AMOUNT_TOLERANCE must not be negative")
	}
	if cfg.Notify.MaxSubscribers < 1 {
		return nil, fmt.Errorf("MAX_DUPLICATE_SUBSCRIBERS must be at least 1")
	}
	if cfg.Jobs.Workers < 1 {
		return nil, fmt.Errorf("JOBS_WORKERS must be at least 1")
	}

	return cfg, nil
}

// Location resolves the configured timezone used for event dates.
func (c *LedgerConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
