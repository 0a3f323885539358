package state

import (
	"context"
	"time"
)

// State is the per-key record persisted between evaluations. LastAlertAt is
// nil until the first alert for the key fires. CorrelationID identifies the
// current incident and is cleared on recovery.
type State struct {
	LastOK              bool       `json:"last_ok"`
	LastAlertAt         *time.Time `json:"last_alert_at"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	CorrelationID       string     `json:"correlation_id,omitempty"`
}

// Default is the state assumed for a key never seen before.
func Default() State {
	return State{LastOK: true}
}

// Store persists per-key check state across process restarts. Get never
// fails: unknown keys and unreadable records yield the default state. Put
// failures are non-fatal for the engine but degrade deduplication, so
// callers log them loudly.
type Store interface {
	Get(ctx context.Context, key string) State
	Put(ctx context.Context, key string, st State) error
	// Prune drops persisted keys not present in active.
	Prune(ctx context.Context, active map[string]struct{}) error
	Close() error
}
