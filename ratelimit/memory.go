package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps one counter per subject in process memory. A window is
// anchored at the first request that opens it; once the window length has
// elapsed the counter is replaced, never merged. Idle subjects are evicted by
// a janitor goroutine.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memCounter

	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type memCounter struct {
	windowStart time.Time
	count       int64
	lastSeen    time.Time
}

type MemoryOption func(*MemoryStore)

func WithIdleTTL(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.cleanupEvery = d }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries:      make(map[string]*memCounter),
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Incr implements Store. The mutex is held only for O(1) map work, so
// contention across subjects stays negligible.
func (s *MemoryStore) Incr(_ context.Context, subject string, window time.Duration) (int64, time.Time, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[subject]
	if !ok {
		ent = &memCounter{windowStart: now}
		s.entries[subject] = ent
	} else if now.Sub(ent.windowStart) >= window {
		// Expired window: logically replaced, not merged.
		ent.windowStart = now
		ent.count = 0
	}
	ent.count++
	ent.lastSeen = now

	return ent.count, ent.windowStart, nil
}

// Cleanup drops counters that have not been touched within the idle TTL.
func (s *MemoryStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor evicts idle subjects periodically until ctx is canceled.
func (s *MemoryStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// Len reports the number of live counters. Used by tests and stats.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
