package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/IshaanNene/sheetscrape/internal/automation"
	"github.com/IshaanNene/sheetscrape/internal/config"
	"github.com/IshaanNene/sheetscrape/internal/engine"
	"github.com/IshaanNene/sheetscrape/internal/fetcher"
	"github.com/IshaanNene/sheetscrape/internal/observability"
	"github.com/IshaanNene/sheetscrape/internal/parser"
	"github.com/IshaanNene/sheetscrape/internal/pipeline"
	"github.com/IshaanNene/sheetscrape/internal/storage"
)

var (
	cfgFile    string
	outputPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sheetscrape",
		Short: "SheetScrape scrapes product sites into a spreadsheet",
		Long: `SheetScrape reads a list of sites from a config file and writes one
worksheet per site into a single workbook.

Site types:
  static   server-rendered HTML, href pagination
  dynamic  browser-rendered pages, click pagination, color/size variations
  api      JSON endpoints with retries`,
		SilenceUsage: true,
		RunE:         runScrape,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.json", "config file path (JSON or YAML)")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "output/scraped_data.xlsx", "output workbook path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runCmd creates the "run" subcommand. It is also the root default.
func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Scrape every configured site",
		Args:  cobra.NoArgs,
		RunE:  runScrape,
	}
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.ValidateSettings(&cfg.Settings); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	runID := uuid.NewString()
	logger, closeLog, err := setupLogger(&cfg.Settings.Logging, verbose)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer closeLog()
	logger = logger.With("run_id", runID)

	ctx := context.Background()
	settings := &cfg.Settings

	logger.Info("starting run",
		"config", cfgFile,
		"output", outputPath,
		"sites", len(cfg.Sites),
	)

	metrics := observability.NewMetrics(logger)
	extractor := parser.NewExtractor(logger)

	pageFetcher, err := fetcher.NewHTTPFetcher(&settings.HTTP, settings.HTTP.Timeout, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer pageFetcher.Close()

	apiHTTP, err := fetcher.NewHTTPFetcher(&settings.HTTP, settings.API.Timeout, logger)
	if err != nil {
		return fmt.Errorf("create API fetcher: %w", err)
	}
	defer apiHTTP.Close()

	var proxies *fetcher.ProxyRotator
	if len(settings.HTTP.Proxies) > 0 {
		proxies = fetcher.NewProxyRotator(settings.HTTP.Proxies, logger)
	}
	launcher := automation.NewLauncher(&settings.Browser, proxies, logger)

	driver := engine.NewDriver(
		engine.NewStaticWalker(pageFetcher, extractor, settings.HTTP.PolitenessDelay, metrics, logger),
		engine.NewDynamicWalker(launcher, extractor, &settings.Browser, metrics, logger),
		fetcher.NewAPIFetcher(apiHTTP, &settings.API, logger),
		settings.API.Retries,
		metrics,
		logger,
	)

	sink, err := storage.Open(ctx, outputPath, &settings.Sinks, runID, logger)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}

	start := time.Now()
	runner := engine.NewRunner(driver, sink, pipeline.Default(settings.Sinks.ListSeparator, logger), metrics, logger)
	sum := runner.Run(ctx, cfg.Sites)

	if err := sink.Close(); err != nil {
		logger.Error("output close error", "error", err)
	}

	pushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := metrics.Push(pushCtx, settings.Metrics.PushURL, settings.Metrics.Job); err != nil {
		logger.Warn("metrics push failed", "url", settings.Metrics.PushURL, "error", err)
	}

	fmt.Printf("\nRun complete in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("   Sites:    %d total, %d written, %d skipped, %d failed\n", sum.Sites, sum.Written, sum.Skipped, sum.Failed)
	fmt.Printf("   Records:  %d\n", sum.Records)
	if sum.Written > 0 {
		fmt.Printf("   Output:   %s\n", outputPath)
	} else {
		fmt.Println("   No data scraped, workbook not written.")
	}
	return nil
}

// validateCmd creates the "validate" subcommand.
func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config file without scraping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := config.ValidateSettings(&cfg.Settings); err != nil {
				return fmt.Errorf("invalid settings: %w", err)
			}

			bad := 0
			for i := range cfg.Sites {
				site := &cfg.Sites[i]
				if err := config.ValidateSite(site); err != nil {
					bad++
					fmt.Printf("  [%d] %-30s invalid: %v\n", site.Index, site.Label(), err)
					continue
				}
				fmt.Printf("  [%d] %-30s ok (%s, %d fields)\n", site.Index, site.Label(), site.Type, len(site.Fields))
			}
			if bad > 0 {
				return fmt.Errorf("%d of %d sites are invalid", bad, len(cfg.Sites))
			}
			return nil
		},
	}
}

// configCmd creates the "config" subcommand. It prints the effective run
// settings, defaults and env overrides applied.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective run settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadSettings(cfgFile)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(struct {
				Settings *config.Settings `yaml:"settings"`
			}{settings})
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("SheetScrape %s\n", config.Version)
		},
	}
}

// setupLogger creates the run logger. The returned func closes the log
// file, if any.
func setupLogger(cfg *config.LoggingSettings, debug bool) (*slog.Logger, func(), error) {
	level := parseLevel(cfg.Level)
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var w io.Writer = os.Stderr
	closer := func() {}
	switch out := strings.TrimSpace(cfg.Output); out {
	case "", "stderr":
	case "stdout":
		w = os.Stdout
	default:
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		w = f
		closer = func() { _ = f.Close() }
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), closer, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
