package ports

import (
	"context"
	"time"
)

// LockoutState is the current failure window for a login or rate-limit key.
type LockoutState struct {
	FailedCount int
	LockedUntil *time.Time
}

// LockoutStore holds short-lived brute-force protection state.
type LockoutStore interface {
	Get(ctx context.Context, key string) (LockoutState, error)
	RecordFailure(ctx context.Context, key string, now time.Time, threshold int, lockoutWindow time.Duration) (LockoutState, error)
	Clear(ctx context.Context, key string) error
}
