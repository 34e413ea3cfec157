package poolsync

import "errors"

var (
	// ErrProviderUnavailable means every adapter errored or timed out.
	ErrProviderUnavailable = errors.New("all holder providers unavailable")
	// ErrNoHoldersFound means no adapter returned a non-empty holder list. Stored rows are untouched.
	ErrNoHoldersFound = errors.New("no holders found")
	// ErrPriceUnresolved marks a sync that used the 1.00 fallback price.
	ErrPriceUnresolved = errors.New("price unresolved")
	// ErrPersistence wraps storage write failures.
	ErrPersistence = errors.New("persist pool sync")
	// ErrSyncInProgress is returned when the same pool is already being synced.
	ErrSyncInProgress = errors.New("pool sync already in progress")
)
