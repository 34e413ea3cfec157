package model

import "time"

// HolderCountStatus describes how the total holder count was obtained.
type HolderCountStatus string

const (
	HolderCountSuccess HolderCountStatus = "success"
	HolderCountFailure HolderCountStatus = "failure"
	HolderCountUnknown HolderCountStatus = "unknown"
)

// PoolMetricsSnapshot is the per-pool aggregate row, upserted by pool id.
type PoolMetricsSnapshot struct {
	PoolID       int64             `json:"pool_id"`
	TotalHolders int64             `json:"total_holders"`
	Status       HolderCountStatus `json:"holder_count_status"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
