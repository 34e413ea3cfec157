package pricing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"holdersync/internal/model"
	"holdersync/internal/provider"
	"holdersync/internal/storage/memory"
)

type countingSource struct {
	price decimal.Decimal
	ok    bool
	err   error
	calls int32
}

func (s *countingSource) Name() string { return "fake" }

func (s *countingSource) PriceOf(context.Context, string, string) (decimal.Decimal, bool, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.price, s.ok, s.err
}

type fakeMeta map[string]model.TokenMeta

func (m fakeMeta) Meta(_ context.Context, _ string, address string) (model.TokenMeta, error) {
	meta, ok := m[address]
	if !ok {
		return model.TokenMeta{}, errors.New("no metadata")
	}
	return meta, nil
}

type fakeVaults map[string]struct {
	underlying string
	rate       decimal.Decimal
}

func (v fakeVaults) VaultExchangeRate(_ context.Context, _ string, vault string) (string, decimal.Decimal, bool, error) {
	entry, ok := v[vault]
	if !ok {
		return "", decimal.Zero, false, nil
	}
	return entry.underlying, entry.rate, true, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestStablecoinAllowListSkipsProviders(t *testing.T) {
	source := &countingSource{price: dec("2"), ok: true}
	r := NewResolver(Config{Stablecoins: DefaultStablecoins}, Deps{Sources: []provider.PriceSource{source}}, nil)

	res := r.Resolve(context.Background(), "ethereum", "0xA0b86991c6218b36c1d19d4a2e9eB0cE3606eB48")
	assert.True(t, res.Price.Equal(dec("1")))
	assert.Equal(t, SourceStablecoin, res.Source)
	assert.False(t, res.Degraded)
	assert.Zero(t, atomic.LoadInt32(&source.calls))
}

func TestStablecoinSymbolHeuristic(t *testing.T) {
	meta := fakeMeta{"0x1111": {Symbol: "sUSDe"}}
	r := NewResolver(Config{StablecoinTickers: DefaultStablecoinTickers}, Deps{Meta: meta}, nil)

	res := r.Resolve(context.Background(), "ethereum", "0x1111")
	assert.Equal(t, SourceStablecoin, res.Source)
	assert.True(t, res.Price.Equal(dec("1")))
}

func TestHeuristicSkipsConfiguredTables(t *testing.T) {
	meta := fakeMeta{"0xvault": {Symbol: "steakUSDC"}}
	r := NewResolver(Config{
		StablecoinTickers: DefaultStablecoinTickers,
		VaultRates:        map[string]VaultRate{"0xVAULT": {Multiplier: dec("3.6")}},
	}, Deps{Meta: meta}, nil)

	res := r.Resolve(context.Background(), "ethereum", "0xvault")
	assert.Equal(t, SourceVaultTable, res.Source)
	assert.True(t, res.Price.Equal(dec("3.6")))
}

func TestTablesAndCacheAreSideEffectFree(t *testing.T) {
	ctx := context.Background()
	cache := memory.New()
	require.NoError(t, cache.PutTokenPrice(ctx, model.CachedTokenPrice{
		TokenAddress: "0xcached", PriceUSD: dec("42.5"), UpdatedAt: time.Now(),
	}))
	source := &countingSource{price: dec("9"), ok: true}

	r := NewResolver(Config{
		Stablecoins: DefaultStablecoins,
		KnownPrices: map[string]decimal.Decimal{"0xKnown": dec("1")},
		VaultRates: map[string]VaultRate{
			"0xVAULT":  {Multiplier: dec("3.6")},
			"0xnested": {Multiplier: dec("2"), Underlying: "0xdac17f958d2ee523a2206206994597c13d831ec7"},
		},
		CacheTTL: time.Hour,
	}, Deps{Cache: cache, Sources: []provider.PriceSource{source}}, nil)

	cases := []struct {
		token  string
		price  string
		source string
	}{
		{"0xknown", "1", SourceKnown},
		{"0xVAULT", "3.6", SourceVaultTable},
		{"0xnested", "2", SourceVaultTable},
		{"0xcached", "42.5", SourceCache},
	}
	for _, tc := range cases {
		res := r.Resolve(ctx, "ethereum", tc.token)
		assert.True(t, res.Price.Equal(dec(tc.price)), tc.token)
		assert.Equal(t, tc.source, res.Source, tc.token)
	}
	assert.Zero(t, atomic.LoadInt32(&source.calls))
}

func TestExpiredCacheFallsThroughToProviderAndRefreshes(t *testing.T) {
	ctx := context.Background()
	cache := memory.New()
	require.NoError(t, cache.PutTokenPrice(ctx, model.CachedTokenPrice{
		TokenAddress: "0xnew", PriceUSD: dec("1.5"), UpdatedAt: time.Now().Add(-2 * time.Hour),
	}))
	failing := &countingSource{err: errors.New("boom")}
	source := &countingSource{price: dec("1.75"), ok: true}

	r := NewResolver(Config{CacheTTL: time.Hour}, Deps{Cache: cache, Sources: []provider.PriceSource{failing, source}}, nil)
	res := r.Resolve(ctx, "ethereum", "0xNEW")
	assert.Equal(t, SourceProvider, res.Source)
	assert.True(t, res.Price.Equal(dec("1.75")))
	assert.Equal(t, int32(1), atomic.LoadInt32(&failing.calls))

	cached, err := cache.GetTokenPrice(ctx, "0xnew")
	require.NoError(t, err)
	assert.True(t, cached.PriceUSD.Equal(dec("1.75")))

	res = r.Resolve(ctx, "ethereum", "0xnew")
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, int32(1), atomic.LoadInt32(&source.calls))
}

func TestOnchainVaultMultipliesUnderlying(t *testing.T) {
	vaults := fakeVaults{
		"0xshare": {underlying: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", rate: dec("1.0835")},
	}
	r := NewResolver(Config{Stablecoins: DefaultStablecoins}, Deps{Vaults: vaults}, nil)

	res := r.Resolve(context.Background(), "ethereum", "0xshare")
	assert.Equal(t, SourceVault, res.Source)
	assert.True(t, res.Price.Equal(dec("1.0835")))
	assert.False(t, res.Degraded)
}

func TestVaultRecursionIsBounded(t *testing.T) {
	vaults := fakeVaults{
		"0xloop": {underlying: "0xloop", rate: dec("2")},
	}
	r := NewResolver(Config{}, Deps{Vaults: vaults}, nil)

	res := r.Resolve(context.Background(), "ethereum", "0xloop")
	assert.Equal(t, SourceVault, res.Source)
	assert.True(t, res.Degraded)
	assert.True(t, res.Price.Equal(dec("4")))
}

func TestExhaustedChainFallsBackDegraded(t *testing.T) {
	source := &countingSource{ok: false}
	r := NewResolver(Config{}, Deps{Sources: []provider.PriceSource{source}}, nil)

	res := r.Resolve(context.Background(), "base", "0xunknown")
	assert.Equal(t, SourceFallback, res.Source)
	assert.True(t, res.Degraded)
	assert.True(t, res.Price.Equal(dec("1")))
}
