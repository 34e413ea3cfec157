// Package moralis adapts the Moralis Web3 Data API to the provider capabilities.
package moralis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"holdersync/internal/model"
	"holdersync/internal/provider"
)

const (
	Name           = "moralis"
	DefaultBaseURL = "https://deep-index.moralis.io/api/v2.2"
	maxPageSize    = 100
)

var chainNames = map[string]string{
	provider.ChainEthereum:  "eth",
	provider.ChainBase:      "base",
	provider.ChainArbitrum:  "arbitrum",
	provider.ChainOptimism:  "optimism",
	provider.ChainPolygon:   "polygon",
	provider.ChainBSC:       "bsc",
	provider.ChainAvalanche: "avalanche",
}

// Client implements HolderLister, HolderCounter, PriceSource and PortfolioValuer.
type Client struct {
	baseURL string
	apiKey  string
	http    *provider.HTTPClient
	logger  *zap.Logger
}

func New(baseURL, apiKey string, httpCfg provider.HTTPConfig, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    provider.NewHTTPClient(Name, httpCfg, logger),
		logger:  logger.With(zap.String("provider", Name)),
	}
}

func (c *Client) Name() string { return Name }

func (c *Client) headers() map[string]string {
	return map[string]string{"X-API-Key": c.apiKey}
}

func chainParam(chain string) (string, error) {
	name, ok := chainNames[provider.NormalizeChain(chain)]
	if !ok {
		return "", fmt.Errorf("moralis chain %s: %w", chain, provider.ErrUnsupported)
	}
	return name, nil
}

type ownersResponse struct {
	Cursor string `json:"cursor"`
	Result []struct {
		OwnerAddress string `json:"owner_address"`
		Balance      string `json:"balance"`
	} `json:"result"`
}

// ListHolders pages through /erc20/{token}/owners ordered by balance descending.
func (c *Client) ListHolders(ctx context.Context, token, chain string, max int) ([]model.RawHolder, error) {
	chainName, err := chainParam(chain)
	if err != nil {
		return nil, err
	}
	if max <= 0 {
		max = maxPageSize
	}

	holders := make([]model.RawHolder, 0, max)
	cursor := ""
	for len(holders) < max {
		q := url.Values{}
		q.Set("chain", chainName)
		q.Set("order", "DESC")
		q.Set("limit", fmt.Sprintf("%d", min(max-len(holders), maxPageSize)))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var resp ownersResponse
		endpoint := fmt.Sprintf("%s/erc20/%s/owners?%s", c.baseURL, provider.NormalizeAddress(token), q.Encode())
		if err := c.http.GetJSON(ctx, endpoint, c.headers(), &resp); err != nil {
			return nil, fmt.Errorf("moralis owners: %w", err)
		}
		for _, item := range resp.Result {
			if item.OwnerAddress == "" || item.Balance == "" {
				continue
			}
			holders = append(holders, model.RawHolder{
				Address: provider.NormalizeAddress(item.OwnerAddress),
				Balance: item.Balance,
			})
		}
		if resp.Cursor == "" || len(resp.Result) == 0 {
			break
		}
		cursor = resp.Cursor
	}

	if len(holders) > max {
		holders = holders[:max]
	}
	return holders, nil
}

type holdersSummaryResponse struct {
	TotalHolders json.Number `json:"totalHolders"`
}

// CountHolders reads the holder summary endpoint.
func (c *Client) CountHolders(ctx context.Context, token, chain string) (int64, error) {
	chainName, err := chainParam(chain)
	if err != nil {
		return 0, err
	}
	var resp holdersSummaryResponse
	endpoint := fmt.Sprintf("%s/erc20/%s/holders?chain=%s", c.baseURL, provider.NormalizeAddress(token), url.QueryEscape(chainName))
	if err := c.http.GetJSON(ctx, endpoint, c.headers(), &resp); err != nil {
		return 0, fmt.Errorf("moralis holders summary: %w", err)
	}
	count, err := resp.TotalHolders.Int64()
	if err != nil {
		return 0, fmt.Errorf("moralis holders summary: parse total: %w", err)
	}
	return count, nil
}

type priceResponse struct {
	USDPrice *decimal.Decimal `json:"usdPrice"`
}

// PriceOf reads the token price endpoint. Unknown tokens answer 404.
func (c *Client) PriceOf(ctx context.Context, token, chain string) (decimal.Decimal, bool, error) {
	chainName, err := chainParam(chain)
	if err != nil {
		return decimal.Zero, false, err
	}
	var resp priceResponse
	endpoint := fmt.Sprintf("%s/erc20/%s/price?chain=%s", c.baseURL, provider.NormalizeAddress(token), url.QueryEscape(chainName))
	if err := c.http.GetJSON(ctx, endpoint, c.headers(), &resp); err != nil {
		if provider.IsNotFound(err) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("moralis price: %w", err)
	}
	if resp.USDPrice == nil || !resp.USDPrice.IsPositive() {
		return decimal.Zero, false, nil
	}
	return *resp.USDPrice, true, nil
}

type netWorthResponse struct {
	TotalNetworthUSD decimal.Decimal `json:"total_networth_usd"`
}

// WalletValue reads the wallet net-worth endpoint for one chain.
func (c *Client) WalletValue(ctx context.Context, wallet, chain string) (decimal.Decimal, error) {
	chainName, err := chainParam(chain)
	if err != nil {
		return decimal.Zero, err
	}
	q := url.Values{}
	q.Set("chains[0]", chainName)
	q.Set("exclude_spam", "true")
	q.Set("exclude_unverified_contracts", "true")

	var resp netWorthResponse
	endpoint := fmt.Sprintf("%s/wallets/%s/net-worth?%s", c.baseURL, provider.NormalizeAddress(wallet), q.Encode())
	if err := c.http.GetJSON(ctx, endpoint, c.headers(), &resp); err != nil {
		return decimal.Zero, fmt.Errorf("moralis net worth: %w", err)
	}
	return resp.TotalNetworthUSD, nil
}
