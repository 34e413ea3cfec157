package provider

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"holdersync/internal/model"
)

var (
	// ErrUnsupported is returned when an adapter cannot serve a capability for a chain.
	ErrUnsupported = errors.New("unsupported by provider")
	// ErrRateLimited is returned when the upstream API rejected the call with HTTP 429.
	ErrRateLimited = errors.New("rate limited by provider")
)

// Capability names used in logs and metrics.
const (
	CapabilityListHolders  = "list_holders"
	CapabilityCountHolders = "count_holders"
	CapabilityPrice        = "price"
	CapabilityWalletValue  = "wallet_value"
)

// Named is implemented by every adapter.
type Named interface {
	Name() string
}

// HolderLister returns the top holders of a token ordered by balance, at most max entries.
type HolderLister interface {
	Named
	ListHolders(ctx context.Context, token, chain string, max int) ([]model.RawHolder, error)
}

// HolderCounter returns the total number of holders of a token.
type HolderCounter interface {
	Named
	CountHolders(ctx context.Context, token, chain string) (int64, error)
}

// PriceSource returns a USD unit price. ok is false when the provider has no price for the token.
type PriceSource interface {
	Named
	PriceOf(ctx context.Context, token, chain string) (price decimal.Decimal, ok bool, err error)
}

// PortfolioValuer returns the total USD value held by a wallet on a chain.
type PortfolioValuer interface {
	Named
	WalletValue(ctx context.Context, wallet, chain string) (decimal.Decimal, error)
}

// StatusOf maps a call result to the metrics status label.
func StatusOf(err error, empty bool) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case err != nil:
		return "error"
	case empty:
		return "empty"
	default:
		return "success"
	}
}
