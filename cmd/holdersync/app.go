package main

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"holdersync/internal/cache/redis"
	"holdersync/internal/chain"
	"holdersync/internal/config"
	"holdersync/internal/holders"
	"holdersync/internal/poolsync"
	"holdersync/internal/pricing"
	"holdersync/internal/provider"
	"holdersync/internal/provider/covalent"
	"holdersync/internal/provider/geckoterminal"
	"holdersync/internal/provider/moralis"
	"holdersync/internal/provider/onchain"
	"holdersync/internal/scheduler"
	"holdersync/internal/storage"
	"holdersync/internal/storage/postgres"
	"holdersync/internal/token"
)

// app holds the wired sync engine for one command invocation.
type app struct {
	store       *postgres.Store
	registry    *chain.Registry
	rdb         *goredis.Client
	coordinator *poolsync.Coordinator
	scheduler   *scheduler.Scheduler
}

type adapterSet struct {
	listers  []provider.HolderLister
	counters []provider.HolderCounter
	prices   []provider.PriceSource
	wallets  []provider.PortfolioValuer
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a := &app{store: store}

	rpcURLs := make(map[string]string, len(cfg.RPC))
	for name, url := range cfg.RPC {
		rpcURLs[provider.NormalizeChain(name)] = url
	}
	a.registry, err = chain.Dial(ctx, rpcURLs)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	var priceCache storage.PriceCache = store
	if cfg.RedisAddr != "" {
		redisCfg := redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.PriceCacheTTL,
		}
		a.rdb, err = redis.Dial(ctx, redisCfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		priceCache = redis.NewPriceCache(a.rdb, redisCfg, store, logger)
	}

	tokens := token.NewService(token.FromRegistry(a.registry), logger)
	adapters := buildAdapters(cfg, a.registry, logger)
	if len(adapters.listers) == 0 {
		a.Close()
		return nil, fmt.Errorf("no holder provider is usable, check api keys and rpc config")
	}

	resolver := pricing.NewResolver(pricing.Config{
		Stablecoins:       append(append([]string{}, pricing.DefaultStablecoins...), cfg.Stablecoins...),
		StablecoinTickers: pricing.DefaultStablecoinTickers,
		KnownPrices:       cfg.KnownPrices,
		VaultRates:        cfg.VaultRates,
		CacheTTL:          cfg.PriceCacheTTL,
	}, pricing.Deps{
		Meta:    tokens,
		Vaults:  tokens,
		Cache:   priceCache,
		Sources: adapters.prices,
	}, logger)

	processor := holders.NewProcessor(holders.Config{WalletConcurrency: cfg.WalletConcurrency}, tokens, adapters.wallets, logger)

	a.coordinator = poolsync.NewCoordinator(poolsync.Config{
		TopN:            cfg.TopN,
		FetchTimeout:    cfg.FetchTimeout,
		FetchTimeouts:   cfg.FetchTimeouts,
		FallbackTimeout: cfg.FallbackTimeout,
	}, store, adapters.listers, adapters.counters, resolver, processor, logger)

	a.scheduler = scheduler.New(scheduler.Config{InterPoolDelay: cfg.InterPoolDelay}, store, a.coordinator, logger)

	logger.Info("sync engine ready",
		zap.Strings("providers", names(adapters.listers)),
		zap.Strings("chains", a.registry.Chains()),
		zap.Bool("redis_cache", a.rdb != nil),
		zap.Int("top_n", cfg.TopN),
	)
	return a, nil
}

func buildAdapters(cfg config.Config, registry *chain.Registry, logger *zap.Logger) adapterSet {
	var set adapterSet
	for _, name := range cfg.Providers {
		switch name {
		case config.ProviderMoralis:
			if cfg.MoralisAPIKey == "" {
				logger.Warn("moralis api key missing, provider disabled")
				continue
			}
			client := moralis.New(cfg.MoralisBaseURL, cfg.MoralisAPIKey, httpConfig(cfg, name), logger)
			set.listers = append(set.listers, client)
			set.counters = append(set.counters, client)
			set.prices = append(set.prices, client)
			set.wallets = append(set.wallets, client)
		case config.ProviderCovalent:
			if cfg.CovalentAPIKey == "" {
				logger.Warn("covalent api key missing, provider disabled")
				continue
			}
			client := covalent.New(cfg.CovalentBaseURL, cfg.CovalentAPIKey, httpConfig(cfg, name), logger)
			set.listers = append(set.listers, client)
			set.counters = append(set.counters, client)
			set.prices = append(set.prices, client)
			set.wallets = append(set.wallets, client)
		case config.ProviderOnchain:
			if len(registry.Chains()) == 0 {
				logger.Warn("no rpc endpoints configured, onchain provider disabled")
				continue
			}
			scanner := onchain.NewScanner(onchain.Config{
				LookbackBlocks: cfg.OnchainLookbackBlocks,
				BatchSize:      cfg.OnchainBatchSize,
				MaxRetries:     cfg.MaxRetries,
				RetryBackoff:   cfg.RetryBackoff,
			}, onchain.FromRegistry(registry), logger)
			set.listers = append(set.listers, scanner)
			set.counters = append(set.counters, scanner)
		}
	}
	if cfg.GeckoTerminalEnabled {
		set.prices = append(set.prices, geckoterminal.New(cfg.GeckoTerminalBaseURL, httpConfig(cfg, geckoterminal.Name), logger))
	}
	return set
}

func httpConfig(cfg config.Config, name string) provider.HTTPConfig {
	httpCfg := provider.DefaultHTTPConfig
	if rps, ok := cfg.ProviderRPS[name]; ok {
		httpCfg.RequestsPerSecond = rps
	}
	httpCfg.MaxRetries = cfg.MaxRetries
	if cfg.RetryBackoff > 0 {
		httpCfg.RetryBackoff = cfg.RetryBackoff
	}
	return httpCfg
}

func names(listers []provider.HolderLister) []string {
	out := make([]string, 0, len(listers))
	for _, lister := range listers {
		out = append(out, lister.Name())
	}
	return out
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.registry != nil {
		a.registry.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}
