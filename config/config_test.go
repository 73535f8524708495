package config

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty query",
			mutate: func(cfg *Config) {
				cfg.Query = ""
			},
			wantErr: "query",
		},
		{
			name: "invalid search url",
			mutate: func(cfg *Config) {
				cfg.SearchURL = "http://"
			},
			wantErr: "search URL",
		},
		{
			name: "empty detail url",
			mutate: func(cfg *Config) {
				cfg.DetailURL = ""
			},
			wantErr: "detail URL",
		},
		{
			name: "zero page size",
			mutate: func(cfg *Config) {
				cfg.PageSize = 0
			},
			wantErr: "page size",
		},
		{
			name: "zero max pages",
			mutate: func(cfg *Config) {
				cfg.MaxPages = 0
			},
			wantErr: "max pages",
		},
		{
			name: "negative concurrency",
			mutate: func(cfg *Config) {
				cfg.Concurrency = -1
			},
			wantErr: "concurrency",
		},
		{
			name: "zero max attempts",
			mutate: func(cfg *Config) {
				cfg.MaxAttempts = 0
			},
			wantErr: "max attempts",
		},
		{
			name: "max delay below base delay",
			mutate: func(cfg *Config) {
				cfg.BaseDelay = 10 * time.Second
				cfg.MaxDelay = time.Second
			},
			wantErr: "max delay",
		},
		{
			name: "negative jitter",
			mutate: func(cfg *Config) {
				cfg.Jitter = -time.Second
			},
			wantErr: "jitter",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "matching outputs",
			mutate: func(cfg *Config) {
				cfg.FilteredOutput = cfg.FullOutput
			},
			wantErr: "must differ",
		},
		{
			name: "unknown output format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xlsx"
			},
			wantErr: "output format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}
