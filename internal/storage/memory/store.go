// Package memory is an in-process Store used by tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"holdersync/internal/model"
	"holdersync/internal/storage"
)

type Store struct {
	mu      sync.RWMutex
	pools   map[int64]model.Pool
	holders map[int64][]model.HolderRecord
	metrics map[int64]model.PoolMetricsSnapshot
	prices  map[string]model.CachedTokenPrice
	events  []model.SyncEvent
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		pools:   make(map[int64]model.Pool),
		holders: make(map[int64][]model.HolderRecord),
		metrics: make(map[int64]model.PoolMetricsSnapshot),
		prices:  make(map[string]model.CachedTokenPrice),
	}
}

// AddPool registers a tracked pool.
func (s *Store) AddPool(pool model.Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[pool.ID] = pool
}

func (s *Store) GetPool(_ context.Context, id int64) (model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pool, ok := s.pools[id]
	if !ok {
		return model.Pool{}, fmt.Errorf("pool %d: %w", id, storage.ErrNotFound)
	}
	return pool, nil
}

func (s *Store) ListSyncablePools(_ context.Context) ([]model.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Pool, 0, len(s.pools))
	for _, pool := range s.pools {
		if strings.TrimSpace(pool.Address) == "" {
			continue
		}
		out = append(out, pool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ReplaceHolders(_ context.Context, poolID int64, records []model.HolderRecord) error {
	if err := validateHolders(poolID, records); err != nil {
		return err
	}
	next := make([]model.HolderRecord, len(records))
	copy(next, records)

	s.mu.Lock()
	s.holders[poolID] = next
	s.mu.Unlock()
	return nil
}

func (s *Store) ListHolders(_ context.Context, poolID int64) ([]model.HolderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	current := s.holders[poolID]
	out := make([]model.HolderRecord, len(current))
	copy(out, current)
	return out, nil
}

func (s *Store) UpsertPoolMetrics(_ context.Context, snapshot model.PoolMetricsSnapshot) error {
	if snapshot.PoolID <= 0 {
		return fmt.Errorf("pool id %d: %w", snapshot.PoolID, storage.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if snapshot.Status == model.HolderCountFailure {
		if prev, ok := s.metrics[snapshot.PoolID]; ok {
			snapshot.TotalHolders = prev.TotalHolders
		}
	}
	s.metrics[snapshot.PoolID] = snapshot
	return nil
}

func (s *Store) GetPoolMetrics(_ context.Context, poolID int64) (model.PoolMetricsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.metrics[poolID]
	if !ok {
		return model.PoolMetricsSnapshot{}, fmt.Errorf("pool metrics %d: %w", poolID, storage.ErrNotFound)
	}
	return snapshot, nil
}

func (s *Store) GetTokenPrice(_ context.Context, tokenAddress string) (model.CachedTokenPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.prices[strings.ToLower(tokenAddress)]
	if !ok {
		return model.CachedTokenPrice{}, fmt.Errorf("token price %s: %w", tokenAddress, storage.ErrNotFound)
	}
	return price, nil
}

func (s *Store) PutTokenPrice(_ context.Context, price model.CachedTokenPrice) error {
	if price.TokenAddress == "" {
		return fmt.Errorf("token address: %w", storage.ErrInvalidInput)
	}
	price.TokenAddress = strings.ToLower(price.TokenAddress)
	s.mu.Lock()
	s.prices[price.TokenAddress] = price
	s.mu.Unlock()
	return nil
}

func (s *Store) RecordSyncEvent(_ context.Context, event model.SyncEvent) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

// ListSyncEvents returns the newest events first. poolID 0 matches every pool.
func (s *Store) ListSyncEvents(_ context.Context, poolID int64, limit int) ([]model.SyncEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.SyncEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if poolID != 0 && s.events[i].PoolID != poolID {
			continue
		}
		out = append(out, s.events[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func validateHolders(poolID int64, records []model.HolderRecord) error {
	if poolID <= 0 {
		return fmt.Errorf("pool id %d: %w", poolID, storage.ErrInvalidInput)
	}
	for i, record := range records {
		if record.PoolID != poolID {
			return fmt.Errorf("record %d belongs to pool %d: %w", i, record.PoolID, storage.ErrInvalidInput)
		}
		if record.HolderAddress == "" || record.RawBalance == "" {
			return fmt.Errorf("record %d missing holder data: %w", i, storage.ErrInvalidInput)
		}
		if record.Rank != i+1 {
			return fmt.Errorf("record %d has rank %d: %w", i, record.Rank, storage.ErrInvalidInput)
		}
	}
	return nil
}
