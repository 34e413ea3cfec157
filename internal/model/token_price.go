package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CachedTokenPrice is a previously resolved USD unit price.
type CachedTokenPrice struct {
	TokenAddress string          `json:"token_address"`
	PriceUSD     decimal.Decimal `json:"price_usd"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Expired reports whether the cached price is older than ttl at now.
func (p CachedTokenPrice) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(p.UpdatedAt) > ttl
}
