package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("ENOTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("enotrack")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".enotrack"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("crawler.base_url", cfg.Crawler.BaseURL)
	v.SetDefault("crawler.categories", cfg.Crawler.Categories)
	v.SetDefault("crawler.delay_min_minutes", cfg.Crawler.DelayMinMinutes)
	v.SetDefault("crawler.delay_max_minutes", cfg.Crawler.DelayMaxMinutes)
	v.SetDefault("crawler.cooldown", cfg.Crawler.Cooldown)
	v.SetDefault("crawler.idle_interval", cfg.Crawler.IdleInterval)
	v.SetDefault("crawler.cursor_path", cfg.Crawler.CursorPath)
	v.SetDefault("crawler.page_cache_size", cfg.Crawler.PageCacheSize)

	v.SetDefault("fetcher.user_agent", cfg.Fetcher.UserAgent)
	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.proxy_url", cfg.Fetcher.ProxyURL)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)

	v.SetDefault("storage.uri", cfg.Storage.URI)
	v.SetDefault("storage.database", cfg.Storage.Database)
	v.SetDefault("storage.export_dir", cfg.Storage.ExportDir)

	v.SetDefault("api.enabled", cfg.API.Enabled)
	v.SetDefault("api.port", cfg.API.Port)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
