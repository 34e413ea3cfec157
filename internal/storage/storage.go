package storage

import (
	"context"
	"errors"

	"holdersync/internal/model"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// PoolReader loads tracked pools. Pools are owned by admin tooling and read-only here.
type PoolReader interface {
	GetPool(ctx context.Context, id int64) (model.Pool, error)
	// ListSyncablePools returns pools with a non-empty contract address ordered by id.
	ListSyncablePools(ctx context.Context) ([]model.Pool, error)
}

// HolderStore owns the per-pool holder rows.
type HolderStore interface {
	// ReplaceHolders swaps the full holder set of a pool. Readers see either the old set or
	// the new one, never a mix.
	ReplaceHolders(ctx context.Context, poolID int64, records []model.HolderRecord) error
	ListHolders(ctx context.Context, poolID int64) ([]model.HolderRecord, error)
}

// MetricsStore owns the per-pool aggregate row.
type MetricsStore interface {
	// UpsertPoolMetrics writes the snapshot by pool id. A failure status keeps the stored count.
	UpsertPoolMetrics(ctx context.Context, snapshot model.PoolMetricsSnapshot) error
	GetPoolMetrics(ctx context.Context, poolID int64) (model.PoolMetricsSnapshot, error)
}

// PriceCache is the read-through token price cache.
type PriceCache interface {
	GetTokenPrice(ctx context.Context, tokenAddress string) (model.CachedTokenPrice, error)
	PutTokenPrice(ctx context.Context, price model.CachedTokenPrice) error
}

// EventRecorder persists operator-visible sync events.
type EventRecorder interface {
	RecordSyncEvent(ctx context.Context, event model.SyncEvent) error
	ListSyncEvents(ctx context.Context, poolID int64, limit int) ([]model.SyncEvent, error)
}

// Store is the full persistence surface used by the sync engine.
type Store interface {
	PoolReader
	HolderStore
	MetricsStore
	PriceCache
	EventRecorder
}
