package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds harvester configuration. Values are fixed at run time; the
// harvester exposes no flag or environment surface.
type Config struct {
	Query     string
	SearchURL string
	DetailURL string

	// Search query envelope.
	Destination int
	Currency    string
	Locale      string
	Sort        string

	PageSize int
	MaxPages int

	Concurrency int
	BatchSize   int

	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      time.Duration

	PageDelay  time.Duration
	BatchDelay time.Duration

	Timeout   time.Duration
	UserAgent string

	FullOutput     string
	FilteredOutput string
	OutputFormat   string // csv, jsonl, or dual

	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns conservative defaults for the public catalog API.
func DefaultConfig() *Config {
	return &Config{
		Query:          "пальто из натуральной шерсти",
		SearchURL:      "https://search.wb.ru/exactmatch/ru/common/v4/search",
		DetailURL:      "https://card.wb.ru/cards/v1/detail",
		Destination:    -1257786,
		Currency:       "rub",
		Locale:         "ru",
		Sort:           "popular",
		PageSize:       100,
		MaxPages:       50,
		Concurrency:    12,
		BatchSize:      100,
		MaxAttempts:    5,
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		Jitter:         1200 * time.Millisecond,
		PageDelay:      350 * time.Millisecond,
		BatchDelay:     400 * time.Millisecond,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		FullOutput:     "output/wb_catalog_full.csv",
		FilteredOutput: "output/wb_catalog_filtered.csv",
		OutputFormat:   "csv",
		MetricsAddr:    "",
		Verbose:        false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	for name, raw := range map[string]string{"search URL": c.SearchURL, "detail URL": c.DetailURL} {
		if raw == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
		parsed, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("%s must include a host", name)
		}
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be positive")
	}
	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("max delay (%s) cannot be below base delay (%s)", c.MaxDelay, c.BaseDelay)
	}
	if c.Jitter < 0 {
		return fmt.Errorf("jitter cannot be negative")
	}
	if c.PageDelay < 0 {
		return fmt.Errorf("page delay cannot be negative")
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("batch delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.FullOutput == "" || c.FilteredOutput == "" {
		return fmt.Errorf("output files cannot be empty")
	}
	if c.FullOutput == c.FilteredOutput {
		return fmt.Errorf("full and filtered outputs must differ")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "jsonl" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, jsonl, or dual")
	}
	return nil
}
