package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryAttemptStore keeps failures in process. It serves single-instance
// deployments that set LOGIN_ATTEMPT_STORE=memory, and tests.
type MemoryAttemptStore struct {
	mu       sync.Mutex
	failures map[AttemptKey][]time.Time
}

func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{failures: map[AttemptKey][]time.Time{}}
}

func (s *MemoryAttemptStore) RecordFailure(_ context.Context, key AttemptKey, at time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := prune(s.failures[key], at.Add(-window))
	kept = append(kept, at)
	s.failures[key] = kept

	return CountRecent(kept, at, window), nil
}

func (s *MemoryAttemptStore) Failures(_ context.Context, key AttemptKey, since time.Time) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]time.Time, 0, len(s.failures[key]))
	for _, at := range s.failures[key] {
		if at.After(since) {
			out = append(out, at)
		}
	}
	return out, nil
}

func (s *MemoryAttemptStore) Reset(_ context.Context, key AttemptKey) error {
	s.mu.Lock()
	delete(s.failures, key)
	s.mu.Unlock()
	return nil
}

func prune(history []time.Time, cutoff time.Time) []time.Time {
	kept := history[:0]
	for _, at := range history {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	return kept
}
