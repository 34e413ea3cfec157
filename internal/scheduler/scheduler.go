// Package scheduler runs bulk syncs over every tracked pool.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"holdersync/internal/metrics"
	"holdersync/internal/model"
	"holdersync/internal/poolsync"
	"holdersync/internal/storage"
)

// ErrBulkRunSkipped is returned when a bulk run is triggered while another is in progress.
var ErrBulkRunSkipped = errors.New("bulk run already in progress")

// PoolSyncer syncs a single pool. *poolsync.Coordinator satisfies it.
type PoolSyncer interface {
	Sync(ctx context.Context, pool model.Pool) (poolsync.SyncResult, error)
}

type Config struct {
	InterPoolDelay time.Duration
}

// RunResult summarizes one bulk run.
type RunResult struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Total      int              `json:"total"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Skipped    bool             `json:"skipped"`
	Errors     map[int64]string `json:"errors,omitempty"`
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running    bool       `json:"running"`
	Runs       int64      `json:"runs"`
	LastResult *RunResult `json:"last_result,omitempty"`
}

type Scheduler struct {
	cfg    Config
	pools  storage.PoolReader
	syncer PoolSyncer
	logger *zap.Logger
	now    func() time.Time

	running    atomic.Bool
	runs       atomic.Int64
	background sync.WaitGroup

	mu   sync.RWMutex
	last *RunResult
}

func New(cfg Config, pools storage.PoolReader, syncer PoolSyncer, logger *zap.Logger) *Scheduler {
	if cfg.InterPoolDelay < 0 {
		cfg.InterPoolDelay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:    cfg,
		pools:  pools,
		syncer: syncer,
		logger: logger,
		now:    time.Now,
	}
}

// RunOnce syncs every eligible pool sequentially. If a run is already in progress it returns
// immediately with a skipped result and ErrBulkRunSkipped.
func (s *Scheduler) RunOnce(ctx context.Context) (RunResult, error) {
	result, ok := s.begin()
	if !ok {
		return result, ErrBulkRunSkipped
	}
	return s.execute(ctx, result)
}

// Trigger starts a bulk run in the background and returns its id.
func (s *Scheduler) Trigger(ctx context.Context) (string, error) {
	result, ok := s.begin()
	if !ok {
		return "", ErrBulkRunSkipped
	}
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		_, _ = s.execute(ctx, result)
	}()
	return result.RunID, nil
}

// Wait blocks until every run started by Trigger has returned.
func (s *Scheduler) Wait() {
	s.background.Wait()
}

// Run performs a bulk run immediately and then every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval: %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("bulk sync scheduler started", zap.Duration("interval", interval))
	for {
		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("bulk run did not complete", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			s.Wait()
			s.logger.Info("bulk sync scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := Status{Running: s.running.Load(), Runs: s.runs.Load()}
	if s.last != nil {
		last := *s.last
		status.LastResult = &last
	}
	return status
}

func (s *Scheduler) begin() (RunResult, bool) {
	now := s.now().UTC()
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("bulk run skipped, previous run still in progress")
		metrics.RecordBulkRun("skipped", 0, 0)
		return RunResult{StartedAt: now, FinishedAt: now, Skipped: true}, false
	}
	return RunResult{RunID: uuid.NewString(), StartedAt: now, Errors: make(map[int64]string)}, true
}

func (s *Scheduler) execute(ctx context.Context, result RunResult) (RunResult, error) {
	defer s.running.Store(false)
	logger := s.logger.With(zap.String("run_id", result.RunID))

	finish := func(outcome string) {
		result.FinishedAt = s.now().UTC()
		s.runs.Add(1)
		metrics.RecordBulkRun(outcome, result.Succeeded, result.Failed)
		s.mu.Lock()
		last := result
		s.last = &last
		s.mu.Unlock()
	}

	pools, err := s.pools.ListSyncablePools(ctx)
	if err != nil {
		finish("failed")
		logger.Error("list pools failed", zap.Error(err))
		return result, fmt.Errorf("list pools: %w", err)
	}
	result.Total = len(pools)
	logger.Info("bulk run started", zap.Int("pools", len(pools)))

	for i, pool := range pools {
		if i > 0 && s.cfg.InterPoolDelay > 0 {
			if err := sleep(ctx, s.cfg.InterPoolDelay); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		if _, err := s.syncer.Sync(ctx, pool); err != nil {
			result.Failed++
			result.Errors[pool.ID] = err.Error()
			logger.Warn("pool sync failed", zap.Int64("pool_id", pool.ID), zap.Error(err))
			continue
		}
		result.Succeeded++
	}

	if err := ctx.Err(); err != nil {
		finish("cancelled")
		return result, err
	}
	finish("completed")
	logger.Info("bulk run finished",
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.FinishedAt.Sub(result.StartedAt)),
	)
	return result, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
