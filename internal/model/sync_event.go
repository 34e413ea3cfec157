package model

import "time"

// SyncEventKind names an operational event raised during a pool sync.
type SyncEventKind string

const (
	EventNoHoldersFound     SyncEventKind = "no_holders_found"
	EventPersistenceFailure SyncEventKind = "persistence_failure"
	EventPriceDegraded      SyncEventKind = "price_degraded"
)

// Severity of a SyncEvent.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SyncEvent is an operator-visible record of a degraded or failed sync step.
type SyncEvent struct {
	PoolID    int64         `json:"pool_id"`
	Kind      SyncEventKind `json:"kind"`
	Severity  Severity      `json:"severity"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"created_at"`
}
