// Package geckoterminal reads token prices from the public GeckoTerminal API.
package geckoterminal

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"holdersync/internal/provider"
)

const (
	Name           = "geckoterminal"
	DefaultBaseURL = "https://api.geckoterminal.com/api/v2"
)

var networks = map[string]string{
	provider.ChainEthereum:  "eth",
	provider.ChainBase:      "base",
	provider.ChainArbitrum:  "arbitrum",
	provider.ChainOptimism:  "optimism",
	provider.ChainPolygon:   "polygon_pos",
	provider.ChainBSC:       "bsc",
	provider.ChainAvalanche: "avax",
}

// Client implements provider.PriceSource.
type Client struct {
	baseURL string
	http    *provider.HTTPClient
}

func New(baseURL string, httpCfg provider.HTTPConfig, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    provider.NewHTTPClient(Name, httpCfg, logger),
	}
}

func (c *Client) Name() string { return Name }

type tokenResponse struct {
	Data struct {
		Attributes struct {
			Symbol   string  `json:"symbol"`
			PriceUSD *string `json:"price_usd"`
		} `json:"attributes"`
	} `json:"data"`
}

// PriceOf returns the aggregated USD price GeckoTerminal computes from on-chain pools.
func (c *Client) PriceOf(ctx context.Context, token, chain string) (decimal.Decimal, bool, error) {
	network, ok := networks[provider.NormalizeChain(chain)]
	if !ok {
		return decimal.Zero, false, fmt.Errorf("geckoterminal network %s: %w", chain, provider.ErrUnsupported)
	}

	var resp tokenResponse
	endpoint := fmt.Sprintf("%s/networks/%s/tokens/%s", c.baseURL, network, provider.NormalizeAddress(token))
	if err := c.http.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		if provider.IsNotFound(err) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("geckoterminal token: %w", err)
	}
	if resp.Data.Attributes.PriceUSD == nil {
		return decimal.Zero, false, nil
	}
	price, err := decimal.NewFromString(*resp.Data.Attributes.PriceUSD)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("geckoterminal token: parse price: %w", err)
	}
	if !price.IsPositive() {
		return decimal.Zero, false, nil
	}
	return price, true, nil
}
