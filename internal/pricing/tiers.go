package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"holdersync/internal/metrics"
	"holdersync/internal/model"
	"holdersync/internal/provider"
	"holdersync/internal/storage"
)

var one = decimal.NewFromInt(1)

// MetaLookup returns ERC20 metadata for the symbol heuristic.
type MetaLookup interface {
	Meta(ctx context.Context, chainName, address string) (model.TokenMeta, error)
}

// VaultRater reads an ERC-4626 share's exchange rate. ok is false for non-vault tokens.
type VaultRater interface {
	VaultExchangeRate(ctx context.Context, chainName, vault string) (underlying string, rate decimal.Decimal, ok bool, err error)
}

type stablecoinTier struct {
	addresses map[string]struct{}
	tickers   []string
	skip      map[string]struct{}
	meta      MetaLookup
}

func (t *stablecoinTier) Name() string { return SourceStablecoin }

func (t *stablecoinTier) Resolve(ctx context.Context, ref TokenRef) (Outcome, error) {
	if _, ok := t.addresses[ref.Address]; ok {
		return resolved(one, SourceStablecoin), nil
	}
	if t.meta == nil || len(t.tickers) == 0 {
		return NotApplicable, nil
	}
	if _, ok := t.skip[ref.Address]; ok {
		return NotApplicable, nil
	}

	meta, err := t.meta.Meta(ctx, ref.Chain, ref.Address)
	if err != nil {
		return NotApplicable, fmt.Errorf("load token metadata: %w", err)
	}
	symbol := strings.ToUpper(meta.Symbol)
	name := strings.ToUpper(meta.Name)
	for _, ticker := range t.tickers {
		if strings.Contains(symbol, ticker) || strings.Contains(name, ticker) {
			return resolved(one, SourceStablecoin), nil
		}
	}
	return NotApplicable, nil
}

type staticTier struct {
	prices map[string]decimal.Decimal
}

func (t *staticTier) Name() string { return SourceKnown }

func (t *staticTier) Resolve(_ context.Context, ref TokenRef) (Outcome, error) {
	price, ok := t.prices[ref.Address]
	if !ok {
		return NotApplicable, nil
	}
	return resolved(price, SourceKnown), nil
}

// VaultRate is a fixed share-to-underlying multiplier. An empty Underlying is priced at 1.00.
type VaultRate struct {
	Multiplier decimal.Decimal
	Underlying string
}

type vaultTableTier struct {
	rates      map[string]VaultRate
	underlying underlyingResolver
}

func (t *vaultTableTier) Name() string { return SourceVaultTable }

func (t *vaultTableTier) Resolve(ctx context.Context, ref TokenRef) (Outcome, error) {
	rate, ok := t.rates[ref.Address]
	if !ok {
		return NotApplicable, nil
	}
	if rate.Underlying == "" {
		return resolved(rate.Multiplier, SourceVaultTable), nil
	}

	base := t.underlying.resolveRef(ctx, newRef(rate.Underlying, ref.Chain, ref.Depth+1))
	out := resolved(rate.Multiplier.Mul(base.Price), SourceVaultTable)
	out.Degraded = base.Degraded
	return out, nil
}

type cacheTier struct {
	cache storage.PriceCache
	ttl   time.Duration
	now   func() time.Time
}

func (t *cacheTier) Name() string { return SourceCache }

func (t *cacheTier) Resolve(ctx context.Context, ref TokenRef) (Outcome, error) {
	cached, err := t.cache.GetTokenPrice(ctx, ref.Address)
	if errors.Is(err, storage.ErrNotFound) {
		return NotApplicable, nil
	}
	if err != nil {
		return NotApplicable, fmt.Errorf("read price cache: %w", err)
	}
	if cached.Expired(t.now(), t.ttl) || !cached.PriceUSD.IsPositive() {
		return NotApplicable, nil
	}
	return resolved(cached.PriceUSD, SourceCache), nil
}

type providerTier struct {
	sources []provider.PriceSource
	store   func(ctx context.Context, ref TokenRef, price decimal.Decimal)
	logger  *zap.Logger
}

func (t *providerTier) Name() string { return SourceProvider }

func (t *providerTier) Resolve(ctx context.Context, ref TokenRef) (Outcome, error) {
	for _, source := range t.sources {
		price, ok, err := source.PriceOf(ctx, ref.Address, ref.Chain)
		metrics.RecordProviderCall(source.Name(), provider.CapabilityPrice, provider.StatusOf(err, !ok))
		if err != nil {
			t.logger.Warn("provider price lookup failed",
				zap.String("provider", source.Name()),
				zap.String("token", ref.Address),
				zap.String("chain", ref.Chain),
				zap.Error(err),
			)
			continue
		}
		if !ok || !price.IsPositive() {
			continue
		}
		t.store(ctx, ref, price)
		return resolved(price, SourceProvider), nil
	}
	return NotApplicable, nil
}

type vaultTier struct {
	rater      VaultRater
	maxDepth   int
	underlying underlyingResolver
	store      func(ctx context.Context, ref TokenRef, price decimal.Decimal)
}

func (t *vaultTier) Name() string { return SourceVault }

func (t *vaultTier) Resolve(ctx context.Context, ref TokenRef) (Outcome, error) {
	if ref.Depth >= t.maxDepth {
		return NotApplicable, nil
	}
	underlying, rate, ok, err := t.rater.VaultExchangeRate(ctx, ref.Chain, ref.Address)
	if err != nil {
		return NotApplicable, fmt.Errorf("read vault rate: %w", err)
	}
	if !ok || !rate.IsPositive() {
		return NotApplicable, nil
	}

	base := t.underlying.resolveRef(ctx, newRef(underlying, ref.Chain, ref.Depth+1))
	out := resolved(rate.Mul(base.Price), SourceVault)
	out.Degraded = base.Degraded
	if !out.Degraded {
		t.store(ctx, ref, out.Price)
	}
	return out, nil
}
