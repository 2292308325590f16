package auth

import (
	"context"
	"strings"
	"time"
)

const (
	LoginWindow    = 15 * time.Minute
	LoginThreshold = 5
)

// AttemptKey identifies the (origin, identity) pair a failure is charged to.
type AttemptKey struct {
	ClientIP string
	Username string
}

func NewAttemptKey(clientIP string, username string) AttemptKey {
	return AttemptKey{
		ClientIP: strings.TrimSpace(clientIP),
		Username: strings.ToLower(strings.TrimSpace(username)),
	}
}

// AttemptStore keeps failure timestamps. RecordFailure must insert, prune
// entries older than the window and count in one atomic store operation.
type AttemptStore interface {
	RecordFailure(ctx context.Context, key AttemptKey, at time.Time, window time.Duration) (int, error)
	Failures(ctx context.Context, key AttemptKey, since time.Time) ([]time.Time, error)
	Reset(ctx context.Context, key AttemptKey) error
}

// CountRecent counts failures inside the trailing window ending at now.
func CountRecent(history []time.Time, now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	count := 0
	for _, at := range history {
		if at.After(cutoff) && !at.After(now) {
			count++
		}
	}
	return count
}

// LoginLimiter applies the sliding-window policy over an AttemptStore.
type LoginLimiter struct {
	store     AttemptStore
	window    time.Duration
	threshold int
}

func NewLoginLimiter(store AttemptStore) *LoginLimiter {
	return &LoginLimiter{store: store, window: LoginWindow, threshold: LoginThreshold}
}

func (l *LoginLimiter) IsLocked(ctx context.Context, clientIP string, username string, now time.Time) (bool, error) {
	history, err := l.store.Failures(ctx, NewAttemptKey(clientIP, username), now.Add(-l.window))
	if err != nil {
		return false, err
	}
	return CountRecent(history, now, l.window) >= l.threshold, nil
}

// RecordFailure returns the failure count inside the window after recording.
func (l *LoginLimiter) RecordFailure(ctx context.Context, clientIP string, username string, now time.Time) (int, error) {
	return l.store.RecordFailure(ctx, NewAttemptKey(clientIP, username), now, l.window)
}

func (l *LoginLimiter) RecordSuccess(ctx context.Context, clientIP string, username string) error {
	return l.store.Reset(ctx, NewAttemptKey(clientIP, username))
}
