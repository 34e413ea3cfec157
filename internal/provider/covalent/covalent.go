// Package covalent adapts the Covalent (GoldRush) API to the provider capabilities.
package covalent

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"holdersync/internal/model"
	"holdersync/internal/provider"
)

const (
	Name           = "covalent"
	DefaultBaseURL = "https://api.covalenthq.com/v1"
	maxPageSize    = 100
)

var chainNames = map[string]string{
	provider.ChainEthereum:  "eth-mainnet",
	provider.ChainBase:      "base-mainnet",
	provider.ChainArbitrum:  "arbitrum-mainnet",
	provider.ChainOptimism:  "optimism-mainnet",
	provider.ChainPolygon:   "matic-mainnet",
	provider.ChainBSC:       "bsc-mainnet",
	provider.ChainAvalanche: "avalanche-mainnet",
}

// Client implements HolderLister, HolderCounter, PriceSource and PortfolioValuer.
type Client struct {
	baseURL string
	apiKey  string
	http    *provider.HTTPClient
}

func New(baseURL, apiKey string, httpCfg provider.HTTPConfig, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    provider.NewHTTPClient(Name, httpCfg, logger),
	}
}

func (c *Client) Name() string { return Name }

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}

func chainParam(chain string) (string, error) {
	name, ok := chainNames[provider.NormalizeChain(chain)]
	if !ok {
		return "", fmt.Errorf("covalent chain %s: %w", chain, provider.ErrUnsupported)
	}
	return name, nil
}

type pagination struct {
	HasMore    bool  `json:"has_more"`
	PageNumber int   `json:"page_number"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
}

type holdersResponse struct {
	Data struct {
		Items []struct {
			Address string `json:"address"`
			Balance string `json:"balance"`
		} `json:"items"`
		Pagination *pagination `json:"pagination"`
	} `json:"data"`
	Error        bool   `json:"error"`
	ErrorMessage string `json:"error_message"`
}

func (c *Client) holdersPage(ctx context.Context, chainName, token string, pageSize, page int) (holdersResponse, error) {
	q := url.Values{}
	q.Set("page-size", fmt.Sprintf("%d", pageSize))
	q.Set("page-number", fmt.Sprintf("%d", page))

	var resp holdersResponse
	endpoint := fmt.Sprintf("%s/%s/tokens/%s/token_holders_v2/?%s", c.baseURL, chainName, provider.NormalizeAddress(token), q.Encode())
	if err := c.http.GetJSON(ctx, endpoint, c.headers(), &resp); err != nil {
		return resp, err
	}
	if resp.Error {
		return resp, fmt.Errorf("covalent error: %s", resp.ErrorMessage)
	}
	return resp, nil
}

// ListHolders pages through token_holders_v2, which is ordered by balance descending.
func (c *Client) ListHolders(ctx context.Context, token, chain string, max int) ([]model.RawHolder, error) {
	chainName, err := chainParam(chain)
	if err != nil {
		return nil, err
	}
	if max <= 0 {
		max = maxPageSize
	}

	holders := make([]model.RawHolder, 0, max)
	pageSize := min(max, maxPageSize)
	for page := 0; len(holders) < max; page++ {
		resp, err := c.holdersPage(ctx, chainName, token, pageSize, page)
		if err != nil {
			return nil, fmt.Errorf("covalent token holders: %w", err)
		}
		for _, item := range resp.Data.Items {
			if item.Address == "" || item.Balance == "" {
				continue
			}
			holders = append(holders, model.RawHolder{
				Address: provider.NormalizeAddress(item.Address),
				Balance: item.Balance,
			})
		}
		if resp.Data.Pagination == nil || !resp.Data.Pagination.HasMore || len(resp.Data.Items) == 0 {
			break
		}
	}

	if len(holders) > max {
		holders = holders[:max]
	}
	return holders, nil
}

// CountHolders reads pagination.total_count from a single-item page.
func (c *Client) CountHolders(ctx context.Context, token, chain string) (int64, error) {
	chainName, err := chainParam(chain)
	if err != nil {
		return 0, err
	}
	resp, err := c.holdersPage(ctx, chainName, token, 1, 0)
	if err != nil {
		return 0, fmt.Errorf("covalent holder count: %w", err)
	}
	if resp.Data.Pagination == nil {
		return 0, fmt.Errorf("covalent holder count: pagination missing")
	}
	return resp.Data.Pagination.TotalCount, nil
}

type pricingResponse struct {
	Data []struct {
		Items []struct {
			Price *decimal.Decimal `json:"price"`
		} `json:"items"`
	} `json:"data"`
}

// PriceOf reads the latest historical price for the token.
func (c *Client) PriceOf(ctx context.Context, token, chain string) (decimal.Decimal, bool, error) {
	chainName, err := chainParam(chain)
	if err != nil {
		return decimal.Zero, false, err
	}
	var resp pricingResponse
	endpoint := fmt.Sprintf("%s/pricing/historical_by_addresses_v2/%s/USD/%s/", c.baseURL, chainName, provider.NormalizeAddress(token))
	if err := c.http.GetJSON(ctx, endpoint, c.headers(), &resp); err != nil {
		if provider.IsNotFound(err) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("covalent pricing: %w", err)
	}
	for _, entry := range resp.Data {
		for _, item := range entry.Items {
			if item.Price != nil && item.Price.IsPositive() {
				return *item.Price, true, nil
			}
		}
	}
	return decimal.Zero, false, nil
}

type balancesResponse struct {
	Data struct {
		Items []struct {
			Quote *decimal.Decimal `json:"quote"`
		} `json:"items"`
	} `json:"data"`
}

// WalletValue sums the USD quotes of every non-spam balance of the wallet.
func (c *Client) WalletValue(ctx context.Context, wallet, chain string) (decimal.Decimal, error) {
	chainName, err := chainParam(chain)
	if err != nil {
		return decimal.Zero, err
	}
	var resp balancesResponse
	endpoint := fmt.Sprintf("%s/%s/address/%s/balances_v2/?no-spam=true", c.baseURL, chainName, provider.NormalizeAddress(wallet))
	if err := c.http.GetJSON(ctx, endpoint, c.headers(), &resp); err != nil {
		return decimal.Zero, fmt.Errorf("covalent balances: %w", err)
	}
	total := decimal.Zero
	for _, item := range resp.Data.Items {
		if item.Quote != nil {
			total = total.Add(*item.Quote)
		}
	}
	return total, nil
}
