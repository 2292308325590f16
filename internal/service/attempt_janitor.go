package service

import (
	"context"
	"log/slog"
	"time"
)

// AttemptPurger drops login attempts that can no longer affect a lock.
type AttemptPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StartAttemptPurgeTicker prunes attempts older than retention every interval
// until ctx is cancelled. It runs once immediately.
func StartAttemptPurgeTicker(ctx context.Context, purger AttemptPurger, interval time.Duration, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	purgeAttempts(ctx, purger, retention)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purgeAttempts(ctx, purger, retention)
		}
	}
}

func purgeAttempts(ctx context.Context, purger AttemptPurger, retention time.Duration) {
	removed, err := purger.PurgeBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("login attempt purge failed", "error", err)
		}
		return
	}
	if removed > 0 {
		slog.Debug("login attempts purged", "removed", removed)
	}
}
