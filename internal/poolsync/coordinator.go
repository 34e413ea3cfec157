// Package poolsync refreshes the holder snapshot and metrics of a single pool.
package poolsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"holdersync/internal/holders"
	"holdersync/internal/metrics"
	"holdersync/internal/model"
	"holdersync/internal/pricing"
	"holdersync/internal/provider"
	"holdersync/internal/storage"
)

const (
	defaultTopN            = 100
	defaultFetchTimeout    = 60 * time.Second
	defaultFallbackTimeout = 15 * time.Second
)

// Store is the persistence the coordinator needs.
type Store interface {
	storage.PoolReader
	storage.HolderStore
	storage.MetricsStore
	storage.EventRecorder
}

// PriceResolver resolves a token's USD unit price. *pricing.Resolver satisfies it.
type PriceResolver interface {
	Resolve(ctx context.Context, chainName, token string) pricing.Resolution
}

// HolderProcessor builds holder records. *holders.Processor satisfies it.
type HolderProcessor interface {
	Process(ctx context.Context, in holders.Input) ([]model.HolderRecord, error)
}

type Config struct {
	TopN int
	// FetchTimeout bounds the sequential primary fetch. FetchTimeouts overrides it per chain.
	FetchTimeout    time.Duration
	FetchTimeouts   map[string]time.Duration
	FallbackTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.TopN <= 0 {
		c.TopN = defaultTopN
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	if c.FallbackTimeout <= 0 {
		c.FallbackTimeout = defaultFallbackTimeout
	}
	timeouts := make(map[string]time.Duration, len(c.FetchTimeouts))
	for chainName, timeout := range c.FetchTimeouts {
		timeouts[provider.NormalizeChain(chainName)] = timeout
	}
	c.FetchTimeouts = timeouts
	return c
}

func (c Config) fetchTimeout(chainName string) time.Duration {
	if timeout, ok := c.FetchTimeouts[provider.NormalizeChain(chainName)]; ok && timeout > 0 {
		return timeout
	}
	return c.FetchTimeout
}

// SyncResult summarizes one pool sync.
type SyncResult struct {
	PoolID        int64                   `json:"pool_id"`
	Provider      string                  `json:"provider,omitempty"`
	HoldersStored int                     `json:"holders_stored"`
	TotalHolders  int64                   `json:"total_holders"`
	CountStatus   model.HolderCountStatus `json:"holder_count_status"`
	Price         decimal.Decimal         `json:"price"`
	PriceSource   string                  `json:"price_source,omitempty"`
	PriceDegraded bool                    `json:"price_degraded"`
	Duration      time.Duration           `json:"duration"`
}

type Coordinator struct {
	cfg       Config
	store     Store
	listers   []provider.HolderLister
	counters  []provider.HolderCounter
	prices    PriceResolver
	processor HolderProcessor
	logger    *zap.Logger
	now       func() time.Time

	locks sync.Map
}

func NewCoordinator(
	cfg Config,
	store Store,
	listers []provider.HolderLister,
	counters []provider.HolderCounter,
	prices PriceResolver,
	processor HolderProcessor,
	logger *zap.Logger,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		cfg:       cfg.withDefaults(),
		store:     store,
		listers:   listers,
		counters:  counters,
		prices:    prices,
		processor: processor,
		logger:    logger,
		now:       time.Now,
	}
}

// SyncPool loads the pool by id and syncs it.
func (c *Coordinator) SyncPool(ctx context.Context, poolID int64) (SyncResult, error) {
	pool, err := c.store.GetPool(ctx, poolID)
	if err != nil {
		return SyncResult{PoolID: poolID}, fmt.Errorf("load pool: %w", err)
	}
	return c.Sync(ctx, pool)
}

// Sync refreshes one pool. An empty fetch leaves the stored holder rows untouched.
func (c *Coordinator) Sync(ctx context.Context, pool model.Pool) (result SyncResult, err error) {
	result.PoolID = pool.ID
	if strings.TrimSpace(pool.Address) == "" {
		return result, fmt.Errorf("pool %d has no contract address: %w", pool.ID, storage.ErrInvalidInput)
	}

	lock := c.lockFor(pool.ID)
	if !lock.TryLock() {
		return result, ErrSyncInProgress
	}
	defer lock.Unlock()

	pool.Chain = provider.NormalizeChain(pool.Chain)
	logger := c.logger.With(
		zap.Int64("pool_id", pool.ID),
		zap.String("pool", pool.PairName),
		zap.String("chain", pool.Chain),
	)

	start := c.now()
	defer func() {
		result.Duration = c.now().Sub(start)
		metrics.RecordPoolSync(pool.Chain, syncStatus(err), result.Duration)
	}()

	fetched, providerName, fetchErr := c.fetchHolders(ctx, pool, logger)
	capped := holders.TopN(fetched, c.cfg.TopN)
	if len(capped) > 0 {
		result.Provider = providerName
	}

	total, counted := c.countHolders(ctx, pool, logger)
	snapshot := model.PoolMetricsSnapshot{PoolID: pool.ID, UpdatedAt: c.now().UTC()}
	switch {
	case counted:
		snapshot.TotalHolders = total
		snapshot.Status = model.HolderCountSuccess
	case len(capped) > 0:
		snapshot.TotalHolders = int64(len(capped))
		snapshot.Status = model.HolderCountUnknown
	default:
		snapshot.Status = model.HolderCountFailure
	}
	result.TotalHolders = snapshot.TotalHolders
	result.CountStatus = snapshot.Status

	if len(capped) == 0 {
		logger.Warn("no holders found", zap.Error(fetchErr))
		c.recordEvent(ctx, logger, model.SyncEvent{
			PoolID:   pool.ID,
			Kind:     model.EventNoHoldersFound,
			Severity: model.SeverityMedium,
			Message:  fmt.Sprintf("no holders returned for %s on %s", pool.Address, pool.Chain),
		})
		if metricsErr := c.updateMetrics(ctx, snapshot, logger); metricsErr != nil {
			return result, metricsErr
		}
		if fetchErr != nil {
			return result, fmt.Errorf("%w: %w", ErrNoHoldersFound, fetchErr)
		}
		return result, ErrNoHoldersFound
	}

	resolution := c.prices.Resolve(ctx, pool.Chain, pool.Address)
	result.Price = resolution.Price
	result.PriceSource = resolution.Source
	result.PriceDegraded = resolution.Degraded
	if resolution.Degraded {
		c.recordEvent(ctx, logger, model.SyncEvent{
			PoolID:   pool.ID,
			Kind:     model.EventPriceDegraded,
			Severity: model.SeverityLow,
			Message:  fmt.Sprintf("%v for %s, using %s", ErrPriceUnresolved, pool.Address, resolution.Price.String()),
		})
	}

	records, err := c.processor.Process(ctx, holders.Input{Pool: pool, Holders: capped, Price: resolution.Price})
	if err != nil {
		return result, fmt.Errorf("process holders: %w", err)
	}
	if len(records) == 0 {
		return result, fmt.Errorf("%w: processed holder set is empty", ErrNoHoldersFound)
	}

	var persistErr error
	if err := c.store.ReplaceHolders(ctx, pool.ID, records); err != nil {
		persistErr = fmt.Errorf("%w: replace holders: %w", ErrPersistence, err)
		logger.Error("persist holders failed", zap.Error(err))
		c.recordEvent(ctx, logger, model.SyncEvent{
			PoolID:   pool.ID,
			Kind:     model.EventPersistenceFailure,
			Severity: model.SeverityHigh,
			Message:  err.Error(),
		})
	} else {
		result.HoldersStored = len(records)
	}

	if err := c.updateMetrics(ctx, snapshot, logger); err != nil && persistErr == nil {
		persistErr = err
	}
	if persistErr != nil {
		return result, persistErr
	}

	logger.Info("pool synced",
		zap.String("provider", result.Provider),
		zap.Int("holders", result.HoldersStored),
		zap.Int64("total_holders", result.TotalHolders),
		zap.String("price_source", result.PriceSource),
	)
	return result, nil
}

func (c *Coordinator) lockFor(poolID int64) *sync.Mutex {
	lock, _ := c.locks.LoadOrStore(poolID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (c *Coordinator) updateMetrics(ctx context.Context, snapshot model.PoolMetricsSnapshot, logger *zap.Logger) error {
	if err := c.store.UpsertPoolMetrics(ctx, snapshot); err != nil {
		logger.Error("persist pool metrics failed", zap.Error(err))
		return fmt.Errorf("%w: upsert pool metrics: %w", ErrPersistence, err)
	}
	return nil
}

func (c *Coordinator) recordEvent(ctx context.Context, logger *zap.Logger, event model.SyncEvent) {
	event.CreatedAt = c.now().UTC()
	if err := c.store.RecordSyncEvent(ctx, event); err != nil {
		logger.Warn("record sync event failed", zap.String("kind", string(event.Kind)), zap.Error(err))
	}
}

func syncStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrSyncInProgress):
		return "in_progress"
	case errors.Is(err, ErrNoHoldersFound):
		return "no_holders"
	case errors.Is(err, ErrPersistence):
		return "persistence_failure"
	default:
		return "error"
	}
}
