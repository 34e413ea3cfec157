package poolsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holdersync/internal/holders"
	"holdersync/internal/model"
	"holdersync/internal/pricing"
	"holdersync/internal/provider"
	"holdersync/internal/storage/memory"
)

type listerFunc struct {
	name string
	fn   func(ctx context.Context) ([]model.RawHolder, error)
}

func (l listerFunc) Name() string { return l.name }

func (l listerFunc) ListHolders(ctx context.Context, _, _ string, _ int) ([]model.RawHolder, error) {
	return l.fn(ctx)
}

type counterFunc struct {
	count int64
	err   error
}

func (c counterFunc) Name() string { return "counter" }

func (c counterFunc) CountHolders(context.Context, string, string) (int64, error) {
	return c.count, c.err
}

type fixedPrice struct {
	res pricing.Resolution
}

func (f fixedPrice) Resolve(context.Context, string, string) pricing.Resolution { return f.res }

var stablePrice = fixedPrice{res: pricing.Resolution{Price: decimal.NewFromInt(1), Source: pricing.SourceStablecoin}}

type failingStore struct {
	*memory.Store
}

func (failingStore) ReplaceHolders(context.Context, int64, []model.HolderRecord) error {
	return errors.New("connection reset")
}

func makeHolders(n int) []model.RawHolder {
	out := make([]model.RawHolder, n)
	for i := range out {
		out[i] = model.RawHolder{Address: fmt.Sprintf("0x%040x", i+1), Balance: fmt.Sprintf("%d000000", i+1)}
	}
	return out
}

func returning(name string, list []model.RawHolder, err error) listerFunc {
	return listerFunc{name: name, fn: func(context.Context) ([]model.RawHolder, error) { return list, err }}
}

func newTestStore() *memory.Store {
	store := memory.New()
	store.AddPool(model.Pool{ID: 1, PairName: "steakUSDC", Address: "0x1111111111111111111111111111111111111111", Chain: "ethereum"})
	return store
}

func newCoordinator(cfg Config, store Store, listers []provider.HolderLister, counters []provider.HolderCounter, prices PriceResolver) *Coordinator {
	return NewCoordinator(cfg, store, listers, counters, prices, holders.NewProcessor(holders.Config{}, nil, nil, nil), nil)
}

func TestSyncCapsToTopNAndKeepsTrueCount(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()

	c := newCoordinator(Config{TopN: 100}, store,
		[]provider.HolderLister{returning("primary", makeHolders(250), nil)},
		[]provider.HolderCounter{counterFunc{count: 250}},
		stablePrice,
	)

	result, err := c.SyncPool(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "primary", result.Provider)
	assert.Equal(t, 100, result.HoldersStored)
	assert.Equal(t, int64(250), result.TotalHolders)

	rows, err := store.ListHolders(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 100)
	for i, row := range rows {
		assert.Equal(t, i+1, row.Rank)
	}
	assert.Equal(t, "250000000", rows[0].RawBalance)

	snapshot, err := store.GetPoolMetrics(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(250), snapshot.TotalHolders)
	assert.Equal(t, model.HolderCountSuccess, snapshot.Status)
}

func TestSyncFallsBackToNextProvider(t *testing.T) {
	store := newTestStore()
	c := newCoordinator(Config{}, store,
		[]provider.HolderLister{
			returning("primary", nil, errors.New("503")),
			returning("secondary", nil, nil),
			returning("tertiary", makeHolders(3), nil),
		},
		nil,
		stablePrice,
	)

	result, err := c.SyncPool(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "tertiary", result.Provider)
	assert.Equal(t, model.HolderCountUnknown, result.CountStatus)
	assert.Equal(t, int64(3), result.TotalHolders)
}

func TestSyncSkipsProviderWithOnlyZeroBalances(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	previous := []model.HolderRecord{{PoolID: 1, HolderAddress: "0xaa", RawBalance: "10", Rank: 1}}
	require.NoError(t, store.ReplaceHolders(ctx, 1, previous))

	c := newCoordinator(Config{}, store,
		[]provider.HolderLister{
			returning("primary", []model.RawHolder{{Address: "0xbb", Balance: "0"}, {Address: "0xcc", Balance: "n/a"}}, nil),
			returning("secondary", makeHolders(3), nil),
		},
		nil,
		stablePrice,
	)

	result, err := c.SyncPool(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "secondary", result.Provider)
	assert.Equal(t, 3, result.HoldersStored)

	rows, err := store.ListHolders(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "3000000", rows[0].RawBalance)
}

func TestSyncZeroBalancesOnlyKeepsPreviousRows(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	previous := []model.HolderRecord{{PoolID: 1, HolderAddress: "0xaa", RawBalance: "10", Rank: 1}}
	require.NoError(t, store.ReplaceHolders(ctx, 1, previous))

	c := newCoordinator(Config{}, store,
		[]provider.HolderLister{returning("primary", []model.RawHolder{{Address: "0xbb", Balance: "0"}}, nil)},
		nil,
		stablePrice,
	)

	result, err := c.SyncPool(ctx, 1)
	require.ErrorIs(t, err, ErrNoHoldersFound)
	assert.Empty(t, result.Provider)
	assert.Zero(t, result.HoldersStored)

	rows, err := store.ListHolders(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, previous, rows)

	events, err := store.ListSyncEvents(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventNoHoldersFound, events[0].Kind)

	snapshot, err := store.GetPoolMetrics(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.HolderCountFailure, snapshot.Status)
}

func TestSyncAllEmptyKeepsPreviousRows(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	previous := []model.HolderRecord{{PoolID: 1, HolderAddress: "0xaa", RawBalance: "10", Rank: 1}}
	require.NoError(t, store.ReplaceHolders(ctx, 1, previous))
	require.NoError(t, store.UpsertPoolMetrics(ctx, model.PoolMetricsSnapshot{PoolID: 1, TotalHolders: 42, Status: model.HolderCountSuccess}))

	c := newCoordinator(Config{}, store,
		[]provider.HolderLister{
			returning("primary", nil, nil),
			returning("secondary", nil, errors.New("timeout")),
			returning("tertiary", []model.RawHolder{}, nil),
		},
		[]provider.HolderCounter{counterFunc{err: errors.New("down")}},
		stablePrice,
	)

	_, err := c.SyncPool(ctx, 1)
	require.ErrorIs(t, err, ErrNoHoldersFound)

	rows, err := store.ListHolders(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, previous, rows)

	events, err := store.ListSyncEvents(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventNoHoldersFound, events[0].Kind)
	assert.Equal(t, model.SeverityMedium, events[0].Severity)

	snapshot, err := store.GetPoolMetrics(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(42), snapshot.TotalHolders)
	assert.Equal(t, model.HolderCountFailure, snapshot.Status)
}

func TestSyncPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	store := failingStore{Store: newTestStore()}

	c := newCoordinator(Config{}, store,
		[]provider.HolderLister{returning("primary", makeHolders(5), nil)},
		[]provider.HolderCounter{counterFunc{count: 5}},
		stablePrice,
	)

	_, err := c.SyncPool(ctx, 1)
	require.ErrorIs(t, err, ErrPersistence)

	events, err := store.ListSyncEvents(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventPersistenceFailure, events[0].Kind)

	snapshot, err := store.GetPoolMetrics(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), snapshot.TotalHolders)
}

func TestSyncTimeoutRacesProviders(t *testing.T) {
	store := newTestStore()
	slow := listerFunc{name: "slow", fn: func(ctx context.Context) ([]model.RawHolder, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	c := newCoordinator(Config{FetchTimeout: 20 * time.Millisecond, FallbackTimeout: time.Second}, store,
		[]provider.HolderLister{slow, returning("fast", makeHolders(2), nil)},
		nil,
		stablePrice,
	)

	result, err := c.SyncPool(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "fast", result.Provider)
	assert.Equal(t, 2, result.HoldersStored)
}

func TestSyncRecordsDegradedPrice(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	c := newCoordinator(Config{}, store,
		[]provider.HolderLister{returning("primary", makeHolders(1), nil)},
		nil,
		fixedPrice{res: pricing.Resolution{Price: decimal.NewFromInt(1), Source: pricing.SourceFallback, Degraded: true}},
	)

	result, err := c.SyncPool(ctx, 1)
	require.NoError(t, err)
	assert.True(t, result.PriceDegraded)

	events, err := store.ListSyncEvents(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventPriceDegraded, events[0].Kind)
}

func TestSyncSamePoolIsSingleFlight(t *testing.T) {
	store := newTestStore()
	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := listerFunc{name: "blocking", fn: func(context.Context) ([]model.RawHolder, error) {
		close(entered)
		<-release
		return makeHolders(1), nil
	}}

	c := newCoordinator(Config{}, store, []provider.HolderLister{blocking}, nil, stablePrice)

	done := make(chan error, 1)
	go func() {
		_, err := c.SyncPool(context.Background(), 1)
		done <- err
	}()

	<-entered
	_, err := c.SyncPool(context.Background(), 1)
	require.ErrorIs(t, err, ErrSyncInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestSyncUnknownPool(t *testing.T) {
	c := newCoordinator(Config{}, newTestStore(), nil, nil, stablePrice)
	_, err := c.SyncPool(context.Background(), 99)
	require.Error(t, err)
}
