package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/masahif/supplycheck/internal/checker"
	"github.com/masahif/supplycheck/internal/config"
	"github.com/masahif/supplycheck/internal/notify"
	"github.com/masahif/supplycheck/internal/parser"
	"github.com/masahif/supplycheck/internal/proxysource"
	"github.com/masahif/supplycheck/internal/storage"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check every supplier page of the inventory",
	Long: `Check reads the inventory CSV, fetches each supplier page through a random
proxy and writes the updated rows to the processing cache. Business exceptions
such as out of stock items go to the errors file. The run report is printed at
the end and published to the notification service when one is configured.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringP("inventory", "i", "inventory.csv", "Inventory CSV file")
	checkCmd.Flags().String("cache", "processing/process.csv", "Processed rows CSV file")
	checkCmd.Flags().String("errors", "processing/errors.csv", "Diagnostic records CSV file")
	checkCmd.Flags().StringP("database", "d", "", "SQLite run store (disabled when empty)")
	checkCmd.Flags().StringP("strategy", "s", string(parser.StrategyDrop), "Shop strategy: drop or listings")
	checkCmd.Flags().IntP("batch-size", "b", checker.DefaultBatchSize, "Rows fetched concurrently")
	checkCmd.Flags().DurationP("timeout", "t", checker.DefaultTimeout, "HTTP request timeout")
	checkCmd.Flags().Duration("delay", 0, "Minimum delay between requests to one host (0 disables)")
	checkCmd.Flags().Duration("busy-backoff", 0, "Sleep after a 429 or 503 answer (0 disables)")
	checkCmd.Flags().String("proxies-file", "", "Proxy descriptors file, one login:password@host:port per line")
	checkCmd.Flags().String("user-agents-file", "", "User agents file, JSON array or one per line")
	checkCmd.Flags().String("exceptions-file", "", "SKUs that are never fetched, one per line")
	checkCmd.Flags().String("notify-url", "", "Websocket URL of the notification service")

	bindFlags(checkCmd, []flagBinding{
		{"inventory_path", "inventory"},
		{"cache_path", "cache"},
		{"errors_path", "errors"},
		{"database_path", "database"},
		{"strategy", "strategy"},
		{"batch_size", "batch-size"},
		{"request_timeout", "timeout"},
		{"request_delay", "delay"},
		{"server_busy_backoff", "busy-backoff"},
		{"proxies_file", "proxies-file"},
		{"user_agents_file", "user-agents-file"},
		{"exceptions_file", "exceptions-file"},
		{"notify.url", "notify-url"},
	})
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Handle --show-config: display current configuration and exit
	if showConfig, _ := cmd.Flags().GetBool("show-config"); showConfig {
		return showCurrentConfig(cmd.OutOrStdout(), cfg)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	closer, err := setupLogging(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = closer.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var notifier *notify.Client
	if cfg.Notify.URL != "" {
		notifier = notify.NewClient(cfg.Notify.URL, cfg.Notify.Timeout)
	}

	err = runCheckWith(ctx, cmd.OutOrStdout(), cfg, notifier)
	if err != nil && notifier != nil {
		// The run context may already be cancelled.
		if _, postErr := notifier.PostError(context.WithoutCancel(ctx), cfg.ShopName, err); postErr != nil {
			slog.Warn("Failed to publish run error", "error", postErr)
		}
	}
	return err
}

// runCheckWith performs one check run. Errors returned before the first
// batch are fatal configuration or input problems.
func runCheckWith(ctx context.Context, out io.Writer, cfg *config.CheckConfig, notifier *notify.Client) error {
	started := time.Now()

	rows, err := storage.ReadInventory(cfg.InventoryPath, cfg.Columns)
	if err != nil {
		return err
	}

	descriptors, err := proxysource.Collect(ctx, proxySources(cfg, notifier)...)
	if errors.Is(err, proxysource.ErrNoDescriptors) {
		return fmt.Errorf("%w: %w", checker.ErrNoProxies, err)
	}
	if err != nil {
		return fmt.Errorf("failed to collect proxies: %w", err)
	}
	pool, err := checker.NewProxyPool(descriptors)
	if err != nil {
		return err
	}

	var userAgents checker.UserAgents
	if len(cfg.UserAgents) > 0 {
		if userAgents, err = checker.NewUserAgents(cfg.UserAgents); err != nil {
			return err
		}
	}

	// The cache holds the rows of the current run only.
	if err := os.Remove(cfg.CachePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to reset cache: %w", err)
	}
	sinks := checker.MultiSink{storage.NewCSVSink(cfg.CachePath, cfg.ErrorsPath, cfg.Columns)}

	var store *storage.SQLiteStore
	if cfg.DatabasePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0750); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		if store, err = storage.NewSQLiteStore(cfg.DatabasePath); err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer func() { _ = store.Close() }()
		runID, err := store.BeginRun(cfg.ShopName)
		if err != nil {
			return err
		}
		slog.Info("Run registered", "run_id", runID, "database", cfg.DatabasePath)
		sinks = append(sinks, store)
	}

	fetcher := checker.NewFetcher(checker.FetcherOptions{
		Timeout:           cfg.RequestTimeout,
		RequestDelay:      cfg.RequestDelay,
		ServerBusyBackoff: cfg.ServerBusyBackoff,
		HostDelays:        cfg.HostDelayMap(),
		Headers:           cfg.Headers,
	})
	defer fetcher.Close()

	ck, err := checker.New(fetcher, parser.Ebay(), pool, userAgents, sinks, checker.Options{
		Strategy:   parser.Strategy(cfg.Strategy),
		Fields:     cfg.ParseFields(),
		Exceptions: cfg.Exceptions,
		BatchSize:  cfg.BatchSize,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Starting check with configuration:\n")
	fmt.Fprintf(out, "  Shop: %s\n", cfg.ShopName)
	fmt.Fprintf(out, "  Inventory: %s (%d rows)\n", cfg.InventoryPath, len(rows))
	fmt.Fprintf(out, "  Strategy: %s\n", cfg.Strategy)
	fmt.Fprintf(out, "  Batch Size: %d\n", cfg.BatchSize)
	fmt.Fprintf(out, "  Proxies: %d\n", pool.Len())

	_, runErr := ck.Run(ctx, rows)

	elapsed := time.Since(started)
	snap := ck.Report().Snapshot()
	if store != nil {
		if err := store.FinishRun(snap); err != nil {
			slog.Error("Failed to store report", "error", err)
		}
	}
	printReport(out, snap, elapsed)

	if notifier != nil {
		msg := notify.NewReportMessage(cfg.ShopName, snap, elapsed, pool.Len())
		if _, err := notifier.PostReport(context.WithoutCancel(ctx), msg); err != nil {
			slog.Warn("Failed to publish report", "error", err)
		}
	}
	return runErr
}

// proxySources lists the configured descriptor sources in priority order.
func proxySources(cfg *config.CheckConfig, notifier *notify.Client) []proxysource.Source {
	sources := []proxysource.Source{proxysource.Static(cfg.Proxies)}
	if cfg.ProxiesFile != "" {
		sources = append(sources, proxysource.File(cfg.ProxiesFile))
	}
	if key := cfg.ProxyAPIKey(); key != "" {
		sources = append(sources, proxysource.NewSpaceProxy(cfg.ProxyAPI.URL, key))
	}
	if notifier != nil && cfg.Notify.Proxies {
		sources = append(sources, proxysource.Func{Label: "notify", Fetch: notifier.Proxies})
	}
	return sources
}

func printReport(w io.Writer, snap checker.ReportSnapshot, elapsed time.Duration) {
	fmt.Fprintf(w, "\nCheck finished in %s\n", elapsed.Round(time.Second))
	fmt.Fprintf(w, "  All processed: %d\n", snap.AllProcessed)
	fmt.Fprintf(w, "  New price: %d\n", snap.NewPrice)
	fmt.Fprintf(w, "  New shipping price: %d\n", snap.NewShipPrice)
	fmt.Fprintf(w, "  Back in stock: %d\n", snap.StockNew)
	fmt.Fprintf(w, "  Out of stock: %d\n", snap.NonesNew)
	fmt.Fprintf(w, "  Errors: %d\n", snap.TotalErrors())
	for _, kind := range checker.ErrorKinds() {
		if n := snap.Errors[kind.CounterKey()]; n > 0 {
			fmt.Fprintf(w, "    %s: %d\n", kind.CounterKey(), n)
		}
	}
}
