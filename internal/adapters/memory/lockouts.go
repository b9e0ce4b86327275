package memory

import (
	"context"
	"sync"
	"time"

	"github.com/viralforge/invoicing-accounts/internal/ports"
)

type lockoutEntry struct {
	state     ports.LockoutState
	expiresAt time.Time
}

// LockoutStore is an in-process ports.LockoutStore with the same fixed
// windows as the redis store: an entry lapses one window after its first
// failure, or one window after it locks.
type LockoutStore struct {
	mu      sync.Mutex
	entries map[string]lockoutEntry
}

func NewLockoutStore() *LockoutStore {
	return &LockoutStore{entries: make(map[string]lockoutEntry)}
}

func (s *LockoutStore) Get(_ context.Context, key string) (ports.LockoutState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[key].state, nil
}

func (s *LockoutStore) RecordFailure(_ context.Context, key string, now time.Time, threshold int, lockoutWindow time.Duration) (ports.LockoutState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok || !now.Before(entry.expiresAt) {
		entry = lockoutEntry{expiresAt: now.Add(lockoutWindow)}
	}
	entry.state.FailedCount++
	if entry.state.FailedCount >= threshold {
		until := now.Add(lockoutWindow)
		entry.state.LockedUntil = &until
		entry.expiresAt = until
	}
	s.entries[key] = entry
	return entry.state, nil
}

func (s *LockoutStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
