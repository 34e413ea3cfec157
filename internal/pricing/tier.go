// Package pricing resolves USD unit prices through an ordered chain of tiers.
package pricing

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Source names reported with every resolution.
const (
	SourceStablecoin = "stablecoin"
	SourceKnown      = "known"
	SourceVaultTable = "vault_table"
	SourceCache      = "cache"
	SourceProvider   = "provider"
	SourceVault      = "vault"
	SourceFallback   = "fallback"
)

// TokenRef identifies the token being priced. Depth counts nested underlying lookups.
type TokenRef struct {
	Address string
	Chain   string
	Depth   int
}

func newRef(address, chainName string, depth int) TokenRef {
	return TokenRef{Address: strings.ToLower(strings.TrimSpace(address)), Chain: chainName, Depth: depth}
}

// Outcome is either Resolved with a price and source, or not applicable.
type Outcome struct {
	Resolved bool
	Price    decimal.Decimal
	Source   string
	// Degraded is set when the price depends on a fallback further down.
	Degraded bool
}

func resolved(price decimal.Decimal, source string) Outcome {
	return Outcome{Resolved: true, Price: price, Source: source}
}

// NotApplicable tells the chain to move on to the next tier.
var NotApplicable = Outcome{}

// Tier is one step of the price chain. Errors are logged and treated as NotApplicable.
type Tier interface {
	Name() string
	Resolve(ctx context.Context, ref TokenRef) (Outcome, error)
}

// underlyingResolver prices an underlying asset one level deeper.
type underlyingResolver interface {
	resolveRef(ctx context.Context, ref TokenRef) Outcome
}
