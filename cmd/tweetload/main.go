package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/japaniel/tweetload/pkg/config"
	"github.com/japaniel/tweetload/pkg/load"
	"github.com/japaniel/tweetload/pkg/store"
	"github.com/japaniel/tweetload/pkg/store/migrations"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	flagConfig     string
	flagDB         string
	flagSchema     string
	flagWorkers    int
	flagBatchSize  int
	flagPrintEvery int
	flagStream     bool
)

var rootCmd = &cobra.Command{
	Use:   "tweetload",
	Short: "Load status archives into PostgreSQL",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to TOML config file")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "PostgreSQL connection URL (overrides config)")

	loadCmd.Flags().IntVar(&flagWorkers, "workers", 0, "concurrent files (overrides config)")
	loadCmd.Flags().IntVar(&flagBatchSize, "batch-size", 0, "documents per batch (overrides config)")
	loadCmd.Flags().IntVar(&flagPrintEvery, "print-every", 0, "progress line interval in documents")
	loadCmd.Flags().BoolVar(&flagStream, "stream", false, "load files sequentially through shared batches")
	rootCmd.AddCommand(loadCmd)

	migrateCmd.Flags().StringVar(&flagSchema, "schema", "", "schema variant (overrides config)")
	rootCmd.AddCommand(migrateCmd)
}

// loadConfig merges flag overrides on top of the config file (or defaults).
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if flagConfig != "" {
		var err error
		cfg, err = config.ReadFromFile(flagConfig)
		if err != nil {
			return nil, err
		}
	}
	if flagDB != "" {
		cfg.Database = flagDB
	}
	if flagSchema != "" {
		cfg.Schema = flagSchema
	}
	if flagWorkers > 0 {
		cfg.Workers = flagWorkers
	}
	if flagBatchSize > 0 {
		cfg.BatchSize = flagBatchSize
	}
	if flagPrintEvery > 0 {
		cfg.PrintEvery = flagPrintEvery
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("no database URL; set --db or the config file's database key")
	}
	return cfg, nil
}

var loadCmd = &cobra.Command{
	Use:   "load [files...]",
	Short: "Load archive files of status documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		db, err := store.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		policy, err := cfg.Policy()
		if err != nil {
			return err
		}
		logger := log.New(os.Stderr, "", log.LstdFlags)
		writer := store.NewWriter(db, policy)
		writer.MaxRetries = cfg.Write.MaxRetries
		writer.Backoff = cfg.Backoff()
		writer.PostGIS = cfg.PostGIS
		writer.Logger = logger

		loader := &load.Loader{
			Writer:     writer,
			Extract:    cfg.ExtractOptions(),
			BatchSize:  cfg.BatchSize,
			PrintEvery: cfg.PrintEvery,
			Logger:     logger,
		}

		var sum load.Summary
		if flagStream {
			sum = load.Summarize(loader.LoadFiles(ctx, args))
		} else {
			c := &load.Coordinator{Workers: cfg.Workers, Loader: loader, Logger: logger}
			sum = c.Run(ctx, args)
		}

		fmt.Printf("%d files: %d documents, %d skipped, %d decode errors, %d without author\n",
			len(sum.Files), sum.Docs, sum.Skipped, sum.DecodeErrors, sum.NoAuthor)
		fmt.Printf("%d batches in %d attempts (%d deadlocks retried)\n",
			sum.Batches, sum.Attempts, sum.Deadlocks)

		if failed := sum.Failed(); len(failed) > 0 {
			for _, r := range failed {
				fmt.Fprintf(os.Stderr, "failed: %s: %v\n", r.File, r.Err)
			}
			return fmt.Errorf("%d of %d files failed", len(failed), len(sum.Files))
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		db, err := store.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := migrations.Up(db, cfg.Schema); err != nil {
			return err
		}
		fmt.Printf("schema %q is up to date\n", cfg.Schema)
		return nil
	},
}
