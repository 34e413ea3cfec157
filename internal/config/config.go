package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"holdersync/internal/pricing"
)

const envPrefix = "HOLDERSYNC"

// Provider names accepted in the providers list.
const (
	ProviderMoralis  = "moralis"
	ProviderCovalent = "covalent"
	ProviderOnchain  = "onchain"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	PGDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RPC map[string]string

	Providers            []string
	MoralisAPIKey        string
	MoralisBaseURL       string
	CovalentAPIKey       string
	CovalentBaseURL      string
	GeckoTerminalEnabled bool
	GeckoTerminalBaseURL string
	ProviderRPS          map[string]float64
	MaxRetries           int
	RetryBackoff         time.Duration

	TopN              int
	InterPoolDelay    time.Duration
	Interval          time.Duration
	FetchTimeout      time.Duration
	FetchTimeouts     map[string]time.Duration
	FallbackTimeout   time.Duration
	WalletConcurrency int

	PriceCacheTTL time.Duration
	Stablecoins   []string
	KnownPrices   map[string]decimal.Decimal
	VaultRates    map[string]pricing.VaultRate

	OnchainLookbackBlocks uint64
	OnchainBatchSize      uint64

	HTTPAddr string
	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("providers", []string{ProviderMoralis, ProviderCovalent, ProviderOnchain})
	v.SetDefault("geckoterminal-enabled", true)
	v.SetDefault("max-retries", 2)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("top-n", 100)
	v.SetDefault("inter-pool-delay", 2*time.Second)
	v.SetDefault("interval", 6*time.Hour)
	v.SetDefault("fetch-timeout", 60*time.Second)
	v.SetDefault("fetch-timeouts", map[string]string{
		"base":     "30s",
		"arbitrum": "30s",
		"optimism": "30s",
		"ethereum": "90s",
	})
	v.SetDefault("fallback-timeout", 15*time.Second)
	v.SetDefault("wallet-concurrency", 4)
	v.SetDefault("price-cache-ttl", time.Hour)
	v.SetDefault("onchain-lookback-blocks", uint64(200_000))
	v.SetDefault("onchain-batch-size", uint64(2000))
	v.SetDefault("http-addr", "")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		PGDSN:                 v.GetString("pg-dsn"),
		RedisAddr:             v.GetString("redis-addr"),
		RedisPassword:         v.GetString("redis-password"),
		RedisDB:               v.GetInt("redis-db"),
		RPC:                   lowerKeys(getStringMap(v, "rpc")),
		Providers:             lowerAll(getStringSlice(v, "providers")),
		MoralisAPIKey:         v.GetString("moralis-api-key"),
		MoralisBaseURL:        v.GetString("moralis-base-url"),
		CovalentAPIKey:        v.GetString("covalent-api-key"),
		CovalentBaseURL:       v.GetString("covalent-base-url"),
		GeckoTerminalEnabled:  v.GetBool("geckoterminal-enabled"),
		GeckoTerminalBaseURL:  v.GetString("geckoterminal-base-url"),
		MaxRetries:            v.GetInt("max-retries"),
		RetryBackoff:          v.GetDuration("retry-backoff"),
		TopN:                  v.GetInt("top-n"),
		InterPoolDelay:        v.GetDuration("inter-pool-delay"),
		Interval:              v.GetDuration("interval"),
		FetchTimeout:          v.GetDuration("fetch-timeout"),
		FallbackTimeout:       v.GetDuration("fallback-timeout"),
		WalletConcurrency:     v.GetInt("wallet-concurrency"),
		PriceCacheTTL:         v.GetDuration("price-cache-ttl"),
		OnchainLookbackBlocks: v.GetUint64("onchain-lookback-blocks"),
		OnchainBatchSize:      v.GetUint64("onchain-batch-size"),
		HTTPAddr:              v.GetString("http-addr"),
		LogLevel:              v.GetString("log-level"),
	}

	var err error
	if cfg.FetchTimeouts, err = parseDurationMap(getStringMap(v, "fetch-timeouts")); err != nil {
		return Config{}, fmt.Errorf("parse fetch-timeouts: %w", err)
	}
	if cfg.ProviderRPS, err = parseFloatMap(getStringMap(v, "provider-rps")); err != nil {
		return Config{}, fmt.Errorf("parse provider-rps: %w", err)
	}
	if cfg.KnownPrices, err = parseDecimalMap(getStringMap(v, "known-prices")); err != nil {
		return Config{}, fmt.Errorf("parse known-prices: %w", err)
	}
	if cfg.VaultRates, err = parseVaultRates(getStringMap(v, "vault-rates")); err != nil {
		return Config{}, fmt.Errorf("parse vault-rates: %w", err)
	}
	stablecoins, err := ParseAddresses(getStringSlice(v, "stablecoins"))
	if err != nil {
		return Config{}, fmt.Errorf("parse stablecoins: %w", err)
	}
	for _, addr := range stablecoins {
		cfg.Stablecoins = append(cfg.Stablecoins, strings.ToLower(addr.Hex()))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a sync.
func (c Config) Validate() error {
	var errs []error
	if c.TopN <= 0 {
		errs = append(errs, fmt.Errorf("top-n must be positive, got %d", c.TopN))
	}
	if c.WalletConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("wallet-concurrency must be positive, got %d", c.WalletConcurrency))
	}
	if c.InterPoolDelay < 0 {
		errs = append(errs, fmt.Errorf("inter-pool-delay must not be negative"))
	}
	if len(c.Providers) == 0 {
		errs = append(errs, fmt.Errorf("at least one provider is required"))
	}
	for _, name := range c.Providers {
		switch name {
		case ProviderMoralis, ProviderCovalent, ProviderOnchain:
		default:
			errs = append(errs, fmt.Errorf("unknown provider %q", name))
		}
	}
	return errors.Join(errs...)
}
