package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"holdersync/internal/metrics"
	"holdersync/internal/model"
	"holdersync/internal/provider"
	"holdersync/internal/storage"
)

const defaultMaxDepth = 2

// Config holds the static tables and cache policy of the resolver.
type Config struct {
	Stablecoins       []string
	StablecoinTickers []string
	KnownPrices       map[string]decimal.Decimal
	VaultRates        map[string]VaultRate
	CacheTTL          time.Duration
	MaxDepth          int
}

// Deps are the optional collaborators. A nil dependency disables the tiers that need it.
type Deps struct {
	Meta    MetaLookup
	Vaults  VaultRater
	Cache   storage.PriceCache
	Sources []provider.PriceSource
}

// Resolution is the result of a price lookup.
type Resolution struct {
	Price    decimal.Decimal
	Source   string
	Degraded bool
}

// Resolver walks its tiers in order until one resolves. It never fails: an exhausted chain
// returns 1.00 marked degraded.
type Resolver struct {
	tiers    []Tier
	maxDepth int
	cache    storage.PriceCache
	logger   *zap.Logger
	now      func() time.Time
}

func NewResolver(cfg Config, deps Deps, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		cache:  deps.Cache,
		logger: logger,
		now:    time.Now,
	}

	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	r.maxDepth = maxDepth

	known := lowerKeys(cfg.KnownPrices)
	vaults := lowerKeys(cfg.VaultRates)
	skip := make(map[string]struct{}, len(known)+len(vaults))
	for addr := range known {
		skip[addr] = struct{}{}
	}
	for addr := range vaults {
		skip[addr] = struct{}{}
	}

	stable := &stablecoinTier{
		addresses: make(map[string]struct{}, len(cfg.Stablecoins)),
		tickers:   upper(cfg.StablecoinTickers),
		skip:      skip,
		meta:      deps.Meta,
	}
	for _, addr := range cfg.Stablecoins {
		stable.addresses[strings.ToLower(strings.TrimSpace(addr))] = struct{}{}
	}

	r.tiers = append(r.tiers,
		stable,
		&staticTier{prices: known},
		&vaultTableTier{rates: vaults, underlying: r},
	)
	if deps.Cache != nil {
		r.tiers = append(r.tiers, &cacheTier{cache: deps.Cache, ttl: cfg.CacheTTL, now: func() time.Time { return r.now() }})
	}
	if len(deps.Sources) > 0 {
		r.tiers = append(r.tiers, &providerTier{sources: deps.Sources, store: r.storePrice, logger: logger})
	}
	if deps.Vaults != nil {
		r.tiers = append(r.tiers, &vaultTier{rater: deps.Vaults, maxDepth: maxDepth, underlying: r, store: r.storePrice})
	}
	return r
}

// Resolve returns the USD unit price of token on chainName.
func (r *Resolver) Resolve(ctx context.Context, chainName, token string) Resolution {
	out := r.resolveRef(ctx, newRef(token, chainName, 0))
	metrics.RecordPriceResolution(out.Source)
	if out.Degraded {
		r.logger.Warn("price resolution degraded",
			zap.String("token", token),
			zap.String("chain", chainName),
			zap.String("source", out.Source),
		)
	}
	return Resolution{Price: out.Price, Source: out.Source, Degraded: out.Degraded}
}

func (r *Resolver) resolveRef(ctx context.Context, ref TokenRef) Outcome {
	if ref.Depth > r.maxDepth {
		return Outcome{Resolved: true, Price: one, Source: SourceFallback, Degraded: true}
	}
	for _, tier := range r.tiers {
		if ctx.Err() != nil {
			break
		}
		out, err := tier.Resolve(ctx, ref)
		if err != nil {
			r.logger.Debug("price tier failed",
				zap.String("tier", tier.Name()),
				zap.String("token", ref.Address),
				zap.String("chain", ref.Chain),
				zap.Error(err),
			)
			continue
		}
		if out.Resolved {
			return out
		}
	}
	return Outcome{Resolved: true, Price: one, Source: SourceFallback, Degraded: true}
}

func (r *Resolver) storePrice(ctx context.Context, ref TokenRef, price decimal.Decimal) {
	if r.cache == nil {
		return
	}
	entry := model.CachedTokenPrice{TokenAddress: ref.Address, PriceUSD: price, UpdatedAt: r.now().UTC()}
	if err := r.cache.PutTokenPrice(ctx, entry); err != nil {
		r.logger.Warn("write price cache failed", zap.String("token", ref.Address), zap.Error(err))
	}
}

func lowerKeys[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for key, value := range in {
		out[strings.ToLower(strings.TrimSpace(key))] = value
	}
	return out
}

func upper(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToUpper(strings.TrimSpace(value))
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}
