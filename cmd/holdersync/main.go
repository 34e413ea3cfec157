package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	root := &cobra.Command{
		Use:          "holdersync",
		Short:        "Pool holder and price synchronization",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	syncPoolCmd := &cobra.Command{
		Use:   "sync-pool",
		Short: "Sync holders and metrics for one pool",
		RunE:  runSyncPool,
	}
	syncPoolCmd.Flags().Int64("pool-id", 0, "pool id to sync")
	addSyncFlags(syncPoolCmd)
	root.AddCommand(syncPoolCmd)

	syncAllCmd := &cobra.Command{
		Use:   "sync-all",
		Short: "Run one bulk sync over every tracked pool",
		RunE:  runSyncAll,
	}
	addSyncFlags(syncAllCmd)
	syncAllCmd.Flags().Duration("inter-pool-delay", 2*time.Second, "delay between pools")
	root.AddCommand(syncAllCmd)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run bulk syncs on an interval and serve the admin API",
		RunE:  runService,
	}
	addSyncFlags(runCmd)
	runCmd.Flags().Duration("inter-pool-delay", 2*time.Second, "delay between pools")
	runCmd.Flags().Duration("interval", 6*time.Hour, "bulk sync interval")
	runCmd.Flags().String("http-addr", "", "admin HTTP listen address, empty disables the server")
	root.AddCommand(runCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema",
		RunE:  runMigrate,
	}
	migrateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	migrateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(migrateCmd)

	holdersCmd := &cobra.Command{
		Use:   "holders",
		Short: "Print the stored holder snapshot of a pool",
		RunE:  runHolders,
	}
	holdersCmd.Flags().Int64("pool-id", 0, "pool id")
	holdersCmd.Flags().Int("limit", 20, "rows to print, 0 prints all")
	holdersCmd.Flags().String("out", "", "optional JSONL export path")
	holdersCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	holdersCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(holdersCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSyncFlags(cmd *cobra.Command) {
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().String("redis-addr", "", "optional Redis address for the price cache")
	cmd.Flags().StringSlice("providers", nil, "holder providers in priority order (moralis,covalent,onchain)")
	cmd.Flags().Int("top-n", 100, "holders stored per pool")
	cmd.Flags().Duration("fetch-timeout", 60*time.Second, "primary holder fetch timeout")
	cmd.Flags().Duration("fallback-timeout", 15*time.Second, "fallback race timeout")
	cmd.Flags().Int("wallet-concurrency", 4, "parallel wallet value lookups")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
