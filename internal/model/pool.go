package model

// Pool is a tracked on-chain vault or pool. Address is the join key for all provider lookups.
type Pool struct {
	ID         int64  `json:"id"`
	PairName   string `json:"pair_name"`
	Address    string `json:"address"`
	Chain      string `json:"chain"`
	PlatformID int64  `json:"platform_id"`
}
