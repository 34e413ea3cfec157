package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"holdersync/internal/api"
	"holdersync/internal/config"
	"holdersync/internal/metrics"
)

func runService(cmd *cobra.Command, _ []string) error {
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

	if cfg.Interval <= 0 {
		return errors.New("interval must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	metrics.Init()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.scheduler.Run(ctx, cfg.Interval)
	})

	if cfg.HTTPAddr != "" {
		server := api.NewServer(ctx, api.Config{Addr: cfg.HTTPAddr}, a.coordinator, a.scheduler, logger)
		group.Go(server.Start)
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	logger.Info("service started",
		zap.Duration("interval", cfg.Interval),
		zap.Duration("inter_pool_delay", cfg.InterPoolDelay),
		zap.String("http_addr", cfg.HTTPAddr),
	)
	err = group.Wait()
	// background runs from POST /sync/all still hold the store
	a.scheduler.Wait()
	return err
}
