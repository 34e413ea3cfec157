package poolsync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"holdersync/internal/holders"
	"holdersync/internal/metrics"
	"holdersync/internal/model"
	"holdersync/internal/provider"
)

type fetchResult struct {
	provider string
	holders  []model.RawHolder
}

// fetchHolders walks the listers in priority order within the chain's fetch timeout. When that
// window expires with nothing, all listers race for the fallback window and the first
// non-empty answer wins.
func (c *Coordinator) fetchHolders(ctx context.Context, pool model.Pool, logger *zap.Logger) ([]model.RawHolder, string, error) {
	if len(c.listers) == 0 {
		return nil, "", ErrProviderUnavailable
	}

	primaryCtx, cancel := context.WithTimeout(ctx, c.cfg.fetchTimeout(pool.Chain))
	defer cancel()

	failures := 0
	for _, lister := range c.listers {
		if primaryCtx.Err() != nil {
			break
		}
		list, err := c.listFrom(primaryCtx, lister, pool, logger)
		if err != nil {
			failures++
			continue
		}
		if len(list) > 0 {
			return list, lister.Name(), nil
		}
	}

	if ctx.Err() != nil {
		return nil, "", ctx.Err()
	}
	if errors.Is(primaryCtx.Err(), context.DeadlineExceeded) {
		logger.Warn("primary holder fetch timed out, racing providers", zap.Duration("fallback_timeout", c.cfg.FallbackTimeout))
		if result, ok := c.race(ctx, pool, logger); ok {
			return result.holders, result.provider, nil
		}
		return nil, "", fmt.Errorf("%w: fetch timed out", ErrProviderUnavailable)
	}
	if failures == len(c.listers) {
		return nil, "", ErrProviderUnavailable
	}
	return nil, "", nil
}

func (c *Coordinator) race(ctx context.Context, pool model.Pool, logger *zap.Logger) (fetchResult, bool) {
	raceCtx, cancel := context.WithTimeout(ctx, c.cfg.FallbackTimeout)
	defer cancel()

	// buffered so losing goroutines never block after the winner is taken
	results := make(chan fetchResult, len(c.listers))
	for _, lister := range c.listers {
		go func(lister provider.HolderLister) {
			list, err := c.listFrom(raceCtx, lister, pool, logger)
			if err != nil {
				list = nil
			}
			results <- fetchResult{provider: lister.Name(), holders: list}
		}(lister)
	}

	for range c.listers {
		select {
		case result := <-results:
			if len(result.holders) > 0 {
				return result, true
			}
		case <-raceCtx.Done():
			return fetchResult{}, false
		}
	}
	return fetchResult{}, false
}

// listFrom returns the lister's holders normalized and capped to TopN. Rows with zero or
// unparsable balances are dropped here, so a list of only such rows counts as empty.
func (c *Coordinator) listFrom(ctx context.Context, lister provider.HolderLister, pool model.Pool, logger *zap.Logger) ([]model.RawHolder, error) {
	list, err := lister.ListHolders(ctx, pool.Address, pool.Chain, c.cfg.TopN)
	if err != nil {
		metrics.RecordProviderCall(lister.Name(), provider.CapabilityListHolders, provider.StatusOf(err, true))
		logger.Warn("holder provider failed", zap.String("provider", lister.Name()), zap.Error(err))
		return nil, err
	}
	usable := holders.TopN(list, c.cfg.TopN)
	metrics.RecordProviderCall(lister.Name(), provider.CapabilityListHolders, provider.StatusOf(nil, len(usable) == 0))
	if len(usable) == 0 && len(list) > 0 {
		logger.Warn("holder provider returned no usable balances",
			zap.String("provider", lister.Name()),
			zap.Int("rows", len(list)),
		)
	}
	return usable, nil
}

// countHolders asks the counters in order and returns the first positive count.
func (c *Coordinator) countHolders(ctx context.Context, pool model.Pool, logger *zap.Logger) (int64, bool) {
	for _, counter := range c.counters {
		if ctx.Err() != nil {
			return 0, false
		}
		countCtx, cancel := context.WithTimeout(ctx, c.cfg.fetchTimeout(pool.Chain))
		count, err := counter.CountHolders(countCtx, pool.Address, pool.Chain)
		cancel()
		metrics.RecordProviderCall(counter.Name(), provider.CapabilityCountHolders, provider.StatusOf(err, count <= 0))
		if err != nil {
			logger.Warn("holder count provider failed", zap.String("provider", counter.Name()), zap.Error(err))
			continue
		}
		if count > 0 {
			return count, true
		}
	}
	return 0, false
}
