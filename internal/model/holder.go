package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawHolder is a holder as returned by a provider. Balance is the raw integer amount in base units.
type RawHolder struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// HolderRecord is one ranked holder row persisted for a pool.
type HolderRecord struct {
	PoolID           int64           `json:"pool_id"`
	TokenAddress     string          `json:"token_address"`
	HolderAddress    string          `json:"holder_address"`
	RawBalance       string          `json:"raw_balance"`
	FormattedBalance decimal.Decimal `json:"formatted_balance"`
	USDValue         decimal.Decimal `json:"usd_value"`
	WalletUSDValue   decimal.Decimal `json:"wallet_usd_value"`
	ETHBalance       decimal.Decimal `json:"eth_balance"`
	PoolShare        decimal.Decimal `json:"pool_share"`
	Rank             int             `json:"rank"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
