package config

import (
	"fmt"
	"net/url"
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for enotrack.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler" yaml:"crawler"`
	Fetcher FetcherConfig `mapstructure:"fetcher" yaml:"fetcher"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// CrawlerConfig controls the pagination engine and the scheduler loop.
type CrawlerConfig struct {
	// BaseURL is the catalog origin, e.g. "https://www.bernabei.it".
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Categories are the category path suffixes crawled in order.
	Categories []string `mapstructure:"categories" yaml:"categories"`

	// DelayMinMinutes and DelayMaxMinutes bound the uniform random
	// inter-page delay. Minutes, not seconds: the primary defense against
	// tripping the origin's blocking again.
	DelayMinMinutes int `mapstructure:"delay_min_minutes" yaml:"delay_min_minutes"`
	DelayMaxMinutes int `mapstructure:"delay_max_minutes" yaml:"delay_max_minutes"`

	// Cooldown is how long the scheduler sleeps after a blocking event
	// before resuming from the persisted cursor.
	Cooldown time.Duration `mapstructure:"cooldown" yaml:"cooldown"`

	// IdleInterval is the pause between fully successful crawl cycles,
	// and after unexpected failures.
	IdleInterval time.Duration `mapstructure:"idle_interval" yaml:"idle_interval"`

	// CursorPath is where the resume cursor is persisted.
	CursorPath string `mapstructure:"cursor_path" yaml:"cursor_path"`

	// PageCacheSize bounds the LRU of page signatures used as the
	// identical-page stop safeguard.
	PageCacheSize int `mapstructure:"page_cache_size" yaml:"page_cache_size"`
}

// FetcherConfig controls the single-page fetcher.
type FetcherConfig struct {
	UserAgent       string        `mapstructure:"user_agent"        yaml:"user_agent"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	ProxyURL        string        `mapstructure:"proxy_url"         yaml:"proxy_url"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
}

// StorageConfig controls the persistence collaborator.
type StorageConfig struct {
	URI       string `mapstructure:"uri"       yaml:"uri"`
	Database  string `mapstructure:"database"  yaml:"database"`
	ExportDir string `mapstructure:"export_dir" yaml:"export_dir"`
}

// APIConfig controls the read-only HTTP API.
type APIConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port"    yaml:"port"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Crawler: CrawlerConfig{
			BaseURL:         "https://www.bernabei.it",
			Categories:      []string{"/vino-online/", "/champagne/"},
			DelayMinMinutes: 1,
			DelayMaxMinutes: 5,
			Cooldown:        30 * time.Minute,
			IdleInterval:    60 * time.Second,
			CursorPath:      "./data/cursor.json",
			PageCacheSize:   256,
		},
		Fetcher: FetcherConfig{
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RequestTimeout:  30 * time.Second,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			MaxIdleConns:    10,
			IdleConnTimeout: 90 * time.Second,
		},
		Storage: StorageConfig{
			URI:       "mongodb://localhost:27017",
			Database:  "enotrack",
			ExportDir: "./export",
		},
		API: APIConfig{
			Enabled: true,
			Port:    8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// Validate ensures all configuration values are coherent.
func Validate(cfg *Config) error {
	if cfg.Crawler.BaseURL == "" {
		return fmt.Errorf("crawler.base_url cannot be empty")
	}
	parsed, err := url.Parse(cfg.Crawler.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid crawler.base_url: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("crawler.base_url must include a host")
	}
	if len(cfg.Crawler.Categories) == 0 {
		return fmt.Errorf("crawler.categories cannot be empty")
	}
	if cfg.Crawler.DelayMinMinutes < 0 {
		return fmt.Errorf("crawler.delay_min_minutes cannot be negative")
	}
	if cfg.Crawler.DelayMaxMinutes < cfg.Crawler.DelayMinMinutes {
		return fmt.Errorf("crawler.delay_max_minutes (%d) cannot be below delay_min_minutes (%d)",
			cfg.Crawler.DelayMaxMinutes, cfg.Crawler.DelayMinMinutes)
	}
	if cfg.Crawler.Cooldown <= 0 {
		return fmt.Errorf("crawler.cooldown must be positive")
	}
	if cfg.Crawler.IdleInterval <= 0 {
		return fmt.Errorf("crawler.idle_interval must be positive")
	}
	if cfg.Crawler.PageCacheSize <= 0 {
		return fmt.Errorf("crawler.page_cache_size must be positive")
	}
	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be positive")
	}
	if cfg.Fetcher.UserAgent == "" {
		return fmt.Errorf("fetcher.user_agent cannot be empty")
	}
	if cfg.Fetcher.ProxyURL != "" {
		if _, err := url.Parse(cfg.Fetcher.ProxyURL); err != nil {
			return fmt.Errorf("invalid fetcher.proxy_url: %w", err)
		}
	}
	if cfg.Storage.URI == "" {
		return fmt.Errorf("storage.uri cannot be empty")
	}
	if cfg.Storage.Database == "" {
		return fmt.Errorf("storage.database cannot be empty")
	}
	return nil
}
