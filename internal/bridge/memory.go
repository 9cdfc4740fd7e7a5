package bridge

import (
	"context"
	"sync"
	"time"
)

// defaultCleanupInterval is how often the background sweep runs.
const defaultCleanupInterval = time.Minute

// timedEntry wraps a value with its expiry for TTL tracking.
type timedEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// MemoryStore implements Store with mutex-guarded maps. Suitable for a
// single-instance deployment and for tests; codes minted here cannot be
// redeemed on another instance.
type MemoryStore struct {
	mu      sync.Mutex
	codes   map[string]timedEntry[CodeEntry]
	pending map[string]timedEntry[PendingAuth]

	now func() time.Time

	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// MemoryStoreOption configures a MemoryStore instance.
type MemoryStoreOption func(*MemoryStore)

// WithClock overrides the store's clock. Used by tests to simulate expiry.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates a MemoryStore and starts the background sweep
// goroutine that purges expired entries.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		codes:       make(map[string]timedEntry[CodeEntry]),
		pending:     make(map[string]timedEntry[PendingAuth]),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.cleanupLoop()
	return s
}

func (s *MemoryStore) PutCode(_ context.Context, code string, entry CodeEntry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code] = timedEntry[CodeEntry]{value: entry, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) TakeCode(_ context.Context, code string) (CodeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.codes[code]
	if !ok {
		return CodeEntry{}, ErrNotFound
	}
	// Consumed either way: a second take must fail
	delete(s.codes, code)

	if s.now().After(entry.expiresAt) {
		return CodeEntry{}, ErrExpired
	}
	return entry.value, nil
}

func (s *MemoryStore) PutPending(_ context.Context, state string, pending PendingAuth, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[state] = timedEntry[PendingAuth]{value: pending, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) TakePending(_ context.Context, state string) (PendingAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pending[state]
	if !ok {
		return PendingAuth{}, ErrNotFound
	}
	delete(s.pending, state)

	if s.now().After(entry.expiresAt) {
		return PendingAuth{}, ErrExpired
	}
	return entry.value, nil
}

// Close stops the background sweep goroutine.
func (s *MemoryStore) Close() error {
	close(s.stopCleanup)
	<-s.cleanupDone
	return nil
}

func (s *MemoryStore) cleanupLoop() {
	defer close(s.cleanupDone)

	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.purgeExpired()
		}
	}
}

func (s *MemoryStore) purgeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for code, entry := range s.codes {
		if now.After(entry.expiresAt) {
			delete(s.codes, code)
		}
	}
	for state, entry := range s.pending {
		if now.After(entry.expiresAt) {
			delete(s.pending, state)
		}
	}
}
