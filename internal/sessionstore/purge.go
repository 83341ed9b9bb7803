package sessionstore

import (
	"context"
	"log/slog"
	"time"
)

// Purger removes sessions untouched since before a cutoff.
type Purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// RunPurger purges sessions older than ttl every interval until ctx is
// done. Failures are logged and retried on the next tick.
func RunPurger(ctx context.Context, p Purger, ttl, interval time.Duration) {
	if ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = max(ttl/10, time.Minute)
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := p.Purge(ctx, now.Add(-ttl))
			if err != nil {
				slog.Warn("sessionstore: purge failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Info("sessionstore: purged expired sessions", "count", n)
			}
		}
	}
}
