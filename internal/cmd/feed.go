package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/masahif/supplycheck/internal/checker"
	"github.com/masahif/supplycheck/internal/config"
	"github.com/masahif/supplycheck/internal/feed"
	"github.com/masahif/supplycheck/internal/notify"
	"github.com/masahif/supplycheck/internal/storage"
)

// errNoRuns is returned by feed --from-db when the store holds no run
var errNoRuns = errors.New("database holds no check run")

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Build marketplace listing feed files from checked rows",
	Long: `Feed turns the rows of the last check into listing PATCH messages and
writes them as JSON feed documents of at most chunk-size messages. Rows come
from the processing cache, or from the last run in the SQLite store with
--from-db. SKUs listed as repricer exceptions are left out.`,
	Args: cobra.NoArgs,
	RunE: runFeed,
}

func init() {
	feedCmd.Flags().String("seller-id", "", "Marketplace seller id written in the feed header")
	feedCmd.Flags().StringP("output-dir", "o", "uploads", "Directory for feed files")
	feedCmd.Flags().String("prefix", "feed", "Feed file name prefix")
	feedCmd.Flags().Int("chunk-size", feed.DefaultChunkSize, "Messages per feed file")
	feedCmd.Flags().Int("standard-qty", 5, "Quantity sent when the supplier has 6 or more")
	feedCmd.Flags().String("repricer-exceptions-file", "", "SKUs left out of the feed, one per line")
	feedCmd.Flags().Bool("from-db", false, "Read rows of the last run from the SQLite store")
	feedCmd.Flags().Bool("send", false, "Upload the written files to the notification service")

	bindFlags(feedCmd, []flagBinding{
		{"feed.seller_id", "seller-id"},
		{"feed.output_dir", "output-dir"},
		{"feed.file_prefix", "prefix"},
		{"feed.chunk_size", "chunk-size"},
		{"feed.standard_qty", "standard-qty"},
		{"repricer_exceptions_file", "repricer-exceptions-file"},
	})
}

func runFeed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if showConfig, _ := cmd.Flags().GetBool("show-config"); showConfig {
		return showCurrentConfig(cmd.OutOrStdout(), cfg)
	}

	closer, err := setupLogging(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = closer.Close() }()

	fromDB, _ := cmd.Flags().GetBool("from-db")
	rows, err := feedRows(cfg, fromDB)
	if err != nil {
		return err
	}

	paths, err := writeFeed(cmd.OutOrStdout(), cfg, rows)
	if err != nil {
		return err
	}

	if send, _ := cmd.Flags().GetBool("send"); send {
		if cfg.Notify.URL == "" {
			return notify.ErrNoURL
		}
		return sendFeed(cmd.Context(), notify.NewClient(cfg.Notify.URL, cfg.Notify.Timeout), cfg.ShopName, paths)
	}
	return nil
}

// feedRows loads the checked rows, one per SKU.
func feedRows(cfg *config.CheckConfig, fromDB bool) ([]*checker.Row, error) {
	if !fromDB {
		rows, err := storage.ReadInventory(cfg.CachePath, cfg.Columns)
		if err != nil {
			return nil, err
		}
		return feed.LatestBySKU(rows), nil
	}

	if cfg.DatabasePath == "" {
		return nil, fmt.Errorf("--from-db needs database_path")
	}
	store, err := storage.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.DatabasePath, err)
	}
	defer func() { _ = store.Close() }()

	runID, err := store.LastRunID()
	if err != nil {
		return nil, err
	}
	if runID == "" {
		return nil, fmt.Errorf("%w: %s", errNoRuns, cfg.DatabasePath)
	}
	slog.Info("Reading rows of the last run", "run_id", runID)
	return store.Rows(runID)
}

func writeFeed(out io.Writer, cfg *config.CheckConfig, rows []*checker.Row) ([]string, error) {
	builder := feed.NewBuilder(cfg.Feed.StandardQty, cfg.Feed.ShippingGroups, cfg.RepricerExceptions)
	msgs := builder.Messages(rows)

	w := &feed.Writer{
		Dir:       cfg.Feed.OutputDir,
		Prefix:    cfg.Feed.FilePrefix,
		SellerID:  cfg.Feed.SellerID,
		ChunkSize: cfg.Feed.ChunkSize,
	}
	paths, err := w.Write(msgs)
	if err != nil {
		return paths, err
	}

	fmt.Fprintf(out, "Feed built from %d rows: %d messages in %d files\n", len(rows), len(msgs), len(paths))
	for _, p := range paths {
		fmt.Fprintf(out, "  %s\n", p)
	}
	return paths, nil
}

func sendFeed(ctx context.Context, client *notify.Client, shop string, paths []string) error {
	for _, p := range paths {
		if _, err := client.SendFile(ctx, shop+" listings feed", p); err != nil {
			return fmt.Errorf("failed to send %s: %w", p, err)
		}
		slog.Info("Feed file sent", "file", p)
	}
	if _, err := client.SendMessage(ctx, shop, fmt.Sprintf("%d listings feed file(s) sent", len(paths))); err != nil {
		return fmt.Errorf("failed to send feed summary: %w", err)
	}
	return nil
}
