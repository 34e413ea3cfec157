package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"holdersync/internal/config"
	"holdersync/internal/storage"
	"holdersync/internal/storage/postgres"
)

func runHolders(cmd *cobra.Command, _ []string) error {
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
	limit, _ := cmd.Flags().GetInt("limit")
	out, _ := cmd.Flags().GetString("out")

	ctx := context.Background()
	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	pool, err := store.GetPool(ctx, poolID)
	if err != nil {
		return err
	}
	records, err := store.ListHolders(ctx, poolID)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s (%s) %s\n", pool.PairName, pool.Chain, pool.Address)

	snapshot, err := store.GetPoolMetrics(ctx, poolID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fmt.Fprintln(w, "holders: never synced")
	case err != nil:
		return err
	default:
		fmt.Fprintf(w, "holders: %s total (%s), updated %s\n",
			humanize.Comma(snapshot.TotalHolders),
			snapshot.Status,
			humanize.Time(snapshot.UpdatedAt),
		)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "rank\tholder\tbalance\tusd\twallet usd\tshare %\t")
	for i, record := range records {
		if limit > 0 && i >= limit {
			break
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t$%s\t$%s\t%s\t\n",
			record.Rank,
			record.HolderAddress,
			humanize.CommafWithDigits(record.FormattedBalance.InexactFloat64(), 4),
			humanize.CommafWithDigits(record.USDValue.InexactFloat64(), 2),
			humanize.CommafWithDigits(record.WalletUSDValue.InexactFloat64(), 2),
			record.PoolShare.StringFixed(2),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if out != "" {
		if err := storage.ExportHoldersJSONL(out, records); err != nil {
			return err
		}
		logger.Info("holders exported", zap.String("out", out), zap.Int("records", len(records)))
	}
	return nil
}
