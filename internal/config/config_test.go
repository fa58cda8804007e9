package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty base url",
			mutate:  func(cfg *Config) { cfg.Crawler.BaseURL = "" },
			wantErr: "base_url",
		},
		{
			name:    "base url without host",
			mutate:  func(cfg *Config) { cfg.Crawler.BaseURL = "https://" },
			wantErr: "base_url",
		},
		{
			name:    "no categories",
			mutate:  func(cfg *Config) { cfg.Crawler.Categories = nil },
			wantErr: "categories",
		},
		{
			name:    "negative min delay",
			mutate:  func(cfg *Config) { cfg.Crawler.DelayMinMinutes = -1 },
			wantErr: "delay_min_minutes",
		},
		{
			name: "max delay below min delay",
			mutate: func(cfg *Config) {
				cfg.Crawler.DelayMinMinutes = 5
				cfg.Crawler.DelayMaxMinutes = 1
			},
			wantErr: "delay_max_minutes",
		},
		{
			name:    "zero cooldown",
			mutate:  func(cfg *Config) { cfg.Crawler.Cooldown = 0 },
			wantErr: "cooldown",
		},
		{
			name:    "zero idle interval",
			mutate:  func(cfg *Config) { cfg.Crawler.IdleInterval = 0 },
			wantErr: "idle_interval",
		},
		{
			name:    "zero page cache",
			mutate:  func(cfg *Config) { cfg.Crawler.PageCacheSize = 0 },
			wantErr: "page_cache_size",
		},
		{
			name:    "negative request timeout",
			mutate:  func(cfg *Config) { cfg.Fetcher.RequestTimeout = -time.Second },
			wantErr: "request_timeout",
		},
		{
			name:    "empty user agent",
			mutate:  func(cfg *Config) { cfg.Fetcher.UserAgent = "" },
			wantErr: "user_agent",
		},
		{
			name:    "empty storage uri",
			mutate:  func(cfg *Config) { cfg.Storage.URI = "" },
			wantErr: "storage.uri",
		},
		{
			name:    "empty database",
			mutate:  func(cfg *Config) { cfg.Storage.Database = "" },
			wantErr: "database",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Crawler.BaseURL != DefaultConfig().Crawler.BaseURL {
		t.Errorf("base url = %q", cfg.Crawler.BaseURL)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("loaded defaults should validate, got %v", err)
	}
}
