package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps limiter state in process memory. State is lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[int64][]time.Time
	blocks  map[int64]time.Time
}

// NewMemoryStore creates an empty in-memory state store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[int64][]time.Time),
		blocks:  make(map[int64]time.Time),
	}
}

func (s *MemoryStore) Record(ctx context.Context, userID int64, now time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	kept := s.windows[userID][:0]
	for _, t := range s.windows[userID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	s.windows[userID] = kept
	return len(kept), nil
}

func (s *MemoryStore) ClearWindow(ctx context.Context, userID int64) error {
	s.mu.Lock()
	delete(s.windows, userID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Block(ctx context.Context, userID int64, now, until time.Time) error {
	s.mu.Lock()
	s.blocks[userID] = until
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) BlockedUntil(ctx context.Context, userID int64) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.blocks[userID]
	return until, ok, nil
}

func (s *MemoryStore) Unblock(ctx context.Context, userID int64) error {
	s.mu.Lock()
	delete(s.blocks, userID)
	s.mu.Unlock()
	return nil
}
