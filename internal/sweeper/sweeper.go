// Package sweeper closes out chat sessions that visitors walked away from.
package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// Store is the part of the repository the sweeper needs.
type Store interface {
	AbandonIdleSessions(ctx context.Context, ttl time.Duration) (int64, error)
}

// Start runs a background goroutine that periodically marks active sessions
// idle for longer than ttl as abandoned. It stops when ctx is done.
func Start(ctx context.Context, store Store, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("session sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				Sweep(ctx, store, ttl)
			case <-ctx.Done():
				slog.Info("session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Sweep runs one pass and returns the number of sessions abandoned.
func Sweep(ctx context.Context, store Store, ttl time.Duration) int64 {
	n, err := store.AbandonIdleSessions(ctx, ttl)
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("session sweep interrupted", "error", err)
			return 0
		}
		slog.Error("session sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		slog.Info("session sweep abandoned idle sessions", "count", n, "ttl", ttl)
	}
	return n
}
