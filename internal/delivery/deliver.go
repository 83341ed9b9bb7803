package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultDelay paces consecutive parts to stay clear of gateway rate limits.
const DefaultDelay = 500 * time.Millisecond

// Sender delivers one part to a conversation.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// SenderFunc adapts a function to [Sender].
type SenderFunc func(ctx context.Context, text string) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, text string) error { return f(ctx, text) }

// Deliver sends parts in order, waiting delay between consecutive sends. A
// part that fails to send is logged and skipped; the remaining parts are still
// delivered. The returned error joins every per-part failure, or is the
// context error if ctx ends while waiting.
func Deliver(ctx context.Context, s Sender, parts []string, delay time.Duration) error {
	var errs []error
	for i, part := range parts {
		if i > 0 && delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return errors.Join(append(errs, ctx.Err())...)
			case <-t.C:
			}
		}
		if err := s.Send(ctx, part); err != nil {
			slog.Warn("delivery: failed to send part", "part", i+1, "of", len(parts), "error", err)
			errs = append(errs, fmt.Errorf("delivery: part %d/%d: %w", i+1, len(parts), err))
		}
	}
	return errors.Join(errs...)
}
