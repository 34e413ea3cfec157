package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"holdersync/internal/config"
	"holdersync/internal/poolsync"
)

func runSyncPool(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	poolID, _ := cmd.Flags().GetInt64("pool-id")
	if poolID <= 0 {
		return fmt.Errorf("pool-id is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.coordinator.SyncPool(ctx, poolID)
	if errors.Is(err, poolsync.ErrNoHoldersFound) {
		logger.Warn("pool left unchanged", zap.Int64("pool_id", poolID), zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "pool %d: %d holders stored via %s, %d total (%s), price %s from %s, took %s\n",
		result.PoolID,
		result.HoldersStored,
		result.Provider,
		result.TotalHolders,
		result.CountStatus,
		result.Price.String(),
		result.PriceSource,
		result.Duration.Round(time.Millisecond),
	)
	return nil
}

func runSyncAll(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.scheduler.RunOnce(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d pools, %d succeeded, %d failed, took %s\n",
		result.RunID,
		result.Total,
		result.Succeeded,
		result.Failed,
		result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond),
	)
	return nil
}
