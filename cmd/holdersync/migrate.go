package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"holdersync/internal/config"
	"holdersync/internal/storage/migrations"
	"holdersync/internal/storage/postgres"
)

func runMigrate(cmd *cobra.Command, _ []string) error {
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

	ctx := context.Background()
	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := migrations.RunPostgresMigrations(ctx, store); err != nil {
		return err
	}
	logger.Info("schema migrated")
	return nil
}
