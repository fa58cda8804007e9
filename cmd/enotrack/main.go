package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/enotrack/enotrack/internal/api"
	"github.com/enotrack/enotrack/internal/config"
	"github.com/enotrack/enotrack/internal/engine"
	"github.com/enotrack/enotrack/internal/fetcher"
	"github.com/enotrack/enotrack/internal/observability"
	"github.com/enotrack/enotrack/internal/parser"
	"github.com/enotrack/enotrack/internal/score"
	"github.com/enotrack/enotrack/internal/storage"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "enotrack",
		Short: "enotrack — wine catalog price tracker",
		Long: `enotrack follows an online wine catalog page by page, records every
price it sees, and scores each product on how convenient its current
price is against its own history.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(rescoreCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runCmd creates the "run" subcommand: the long-running tracker.
func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the tracker: crawl continuously, rescore, serve the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := storage.NewMongoStore(ctx, cfg.Storage.URI, cfg.Storage.Database, logger)
			if err != nil {
				return fmt.Errorf("connect storage: %w", err)
			}
			defer store.Close(context.Background())

			metrics := observability.NewMetrics()
			if cfg.Metrics.Enabled {
				metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path, logger)
			}
			if cfg.API.Enabled {
				api.NewServer(cfg.API.Port, store, logger).Start()
			}

			sched, err := buildScheduler(cfg, store, metrics, logger)
			if err != nil {
				return err
			}

			logger.Info("tracker starting",
				"base_url", cfg.Crawler.BaseURL,
				"categories", cfg.Crawler.Categories,
			)
			sched.Run(ctx)
			logger.Info("tracker stopped")
			return nil
		},
	}
}

// crawlCmd creates the "crawl" subcommand: exactly one crawl cycle.
func crawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Run a single crawl cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := storage.NewMongoStore(ctx, cfg.Storage.URI, cfg.Storage.Database, logger)
			if err != nil {
				return fmt.Errorf("connect storage: %w", err)
			}
			defer store.Close(context.Background())

			sched, err := buildScheduler(cfg, store, observability.NewMetrics(), logger)
			if err != nil {
				return err
			}

			result := sched.RunCycle(ctx)
			fmt.Printf("cycle finished: %s (cursor %s)\n", result, sched.Cursor())
			if result == engine.CycleError {
				return fmt.Errorf("crawl cycle failed")
			}
			return nil
		},
	}
}

// rescoreCmd creates the "rescore" subcommand.
func rescoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rescore",
		Short: "Recompute every product's convenience score from stored history",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := storage.NewMongoStore(ctx, cfg.Storage.URI, cfg.Storage.Database, logger)
			if err != nil {
				return fmt.Errorf("connect storage: %w", err)
			}
			defer store.Close(context.Background())

			updated, err := score.NewRecomputer(store, logger).RescoreAll(ctx)
			if err != nil {
				return fmt.Errorf("rescore: %w", err)
			}
			fmt.Printf("scores updated: %d\n", updated)
			return nil
		},
	}
}

// exportCmd creates the "export" subcommand.
func exportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the stored catalog to flat files",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := storage.NewMongoStore(ctx, cfg.Storage.URI, cfg.Storage.Database, logger)
			if err != nil {
				return fmt.Errorf("connect storage: %w", err)
			}
			defer store.Close(context.Background())

			exporter, err := storage.NewExporter(store, cfg.Storage.ExportDir, logger)
			if err != nil {
				return err
			}

			var paths []string
			switch strings.ToLower(format) {
			case "csv":
				p1, err := exporter.ExportProductsCSV(ctx)
				if err != nil {
					return err
				}
				p2, err := exporter.ExportHistoryCSV(ctx)
				if err != nil {
					return err
				}
				paths = append(paths, p1, p2)
			case "json":
				p, err := exporter.ExportProductsJSON(ctx)
				if err != nil {
					return err
				}
				paths = append(paths, p)
			default:
				return fmt.Errorf("unknown export format %q (want csv or json)", format)
			}

			for _, p := range paths {
				fmt.Printf("wrote %s\n", p)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "export format: csv, json")
	return cmd
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("Crawler:\n")
			fmt.Printf("  Base URL:          %s\n", cfg.Crawler.BaseURL)
			fmt.Printf("  Categories:        %s\n", strings.Join(cfg.Crawler.Categories, ", "))
			fmt.Printf("  Page Delay:        %d-%d min\n", cfg.Crawler.DelayMinMinutes, cfg.Crawler.DelayMaxMinutes)
			fmt.Printf("  Cooldown:          %s\n", cfg.Crawler.Cooldown)
			fmt.Printf("  Idle Interval:     %s\n", cfg.Crawler.IdleInterval)
			fmt.Printf("  Cursor Path:       %s\n", cfg.Crawler.CursorPath)
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Request Timeout:   %s\n", cfg.Fetcher.RequestTimeout)
			fmt.Printf("  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("  Proxy:             %v\n", cfg.Fetcher.ProxyURL != "")
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  URI:               %s\n", cfg.Storage.URI)
			fmt.Printf("  Database:          %s\n", cfg.Storage.Database)
			fmt.Printf("  Export Dir:        %s\n", cfg.Storage.ExportDir)
			fmt.Printf("\nAPI:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.API.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.API.Port)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("enotrack %s\n", config.Version)
		},
	}
}

// buildScheduler wires the fetch/extract/store/score collaborators into a
// scheduler ready to run.
func buildScheduler(cfg *config.Config, store *storage.MongoStore,
	metrics *observability.Metrics, logger *slog.Logger) (*engine.Scheduler, error) {

	pageFetcher, err := fetcher.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}
	extractor := parser.NewListingExtractor(cfg.Crawler.BaseURL, metrics, logger)

	eng, err := engine.New(&cfg.Crawler, pageFetcher, extractor, store, metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	cursors := engine.NewCursorStore(cfg.Crawler.CursorPath)
	rescorer := score.NewRecomputer(store, logger)

	sched, err := engine.NewScheduler(&cfg.Crawler, eng, cursors, rescorer, metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return sched, nil
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setupLogger creates a structured logger.
func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
