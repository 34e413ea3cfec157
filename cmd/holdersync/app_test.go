package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"holdersync/internal/chain"
	"holdersync/internal/config"
)

func TestBuildAdaptersSkipsUnconfiguredProviders(t *testing.T) {
	cfg := config.Config{
		Providers:            []string{config.ProviderMoralis, config.ProviderCovalent, config.ProviderOnchain},
		CovalentAPIKey:       "key",
		GeckoTerminalEnabled: true,
	}

	set := buildAdapters(cfg, chain.NewRegistry(), zap.NewNop())
	require.Len(t, set.listers, 1)
	assert.Equal(t, "covalent", set.listers[0].Name())
	assert.Len(t, set.counters, 1)
	assert.Len(t, set.wallets, 1)
	require.Len(t, set.prices, 2)
	assert.Equal(t, "geckoterminal", set.prices[1].Name())
}

func TestBuildAdaptersKeepsPriorityOrder(t *testing.T) {
	cfg := config.Config{
		Providers:      []string{config.ProviderCovalent, config.ProviderMoralis},
		MoralisAPIKey:  "m",
		CovalentAPIKey: "c",
	}

	set := buildAdapters(cfg, chain.NewRegistry(), zap.NewNop())
	assert.Equal(t, []string{"covalent", "moralis"}, names(set.listers))
	assert.Len(t, set.prices, 2)
}

func TestHTTPConfigOverrides(t *testing.T) {
	cfg := config.Config{
		ProviderRPS:  map[string]float64{"moralis": 1.5},
		MaxRetries:   4,
		RetryBackoff: time.Second,
	}
	httpCfg := httpConfig(cfg, "moralis")
	assert.Equal(t, 1.5, httpCfg.RequestsPerSecond)
	assert.Equal(t, 4, httpCfg.MaxRetries)
	assert.Equal(t, time.Second, httpCfg.RetryBackoff)

	other := httpConfig(cfg, "covalent")
	assert.Equal(t, 5.0, other.RequestsPerSecond)
}
