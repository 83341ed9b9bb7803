package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrAllFailed is returned when no entry of a [FallbackGroup] produced a
// result. The last backend error is wrapped next to it.
var ErrAllFailed = errors.New("resilience: all backends failed")

// FallbackConfig is the template for the breaker created per entry. Its Name
// is replaced by the entry name.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type member[T any] struct {
	name    string
	backend T
	breaker *CircuitBreaker
}

// FallbackGroup tries interchangeable backends in registration order, each
// behind its own [CircuitBreaker]. Register every entry before sharing the
// group between goroutines.
type FallbackGroup[T any] struct {
	cfg     FallbackConfig
	members []member[T]
}

// NewFallbackGroup returns a group whose first entry is primary.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	g := &FallbackGroup[T]{cfg: cfg}
	g.AddFallback(primaryName, primary)
	return g
}

// AddFallback appends a backend tried after all earlier ones.
func (g *FallbackGroup[T]) AddFallback(name string, backend T) {
	bc := g.cfg.CircuitBreaker
	bc.Name = name
	g.members = append(g.members, member[T]{name: name, backend: backend, breaker: NewCircuitBreaker(bc)})
}

// Names returns the entry names in try order.
func (g *FallbackGroup[T]) Names() []string {
	out := make([]string, 0, len(g.members))
	for _, m := range g.members {
		out = append(out, m.name)
	}
	return out
}

// Primary returns the first backend.
func (g *FallbackGroup[T]) Primary() T { return g.members[0].backend }

// States reports each entry's breaker state keyed by name.
func (g *FallbackGroup[T]) States() map[string]State {
	out := make(map[string]State, len(g.members))
	for _, m := range g.members {
		out[m.name] = m.breaker.State()
	}
	return out
}

// Ready fails when every breaker in the group is open. It has the shape of a
// health check function.
func (g *FallbackGroup[T]) Ready(context.Context) error {
	var open []string
	for _, m := range g.members {
		if m.breaker.State() != StateOpen {
			return nil
		}
		open = append(open, m.name)
	}
	return fmt.Errorf("%w: circuit open for %s", ErrAllFailed, strings.Join(open, ", "))
}

// Execute runs fn against the entries until one returns nil.
func (g *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(g, func(b T) (struct{}, error) { return struct{}{}, fn(b) })
	return err
}

// ExecuteWithResult runs fn against the entries until one succeeds and
// returns its result. A cancelled or expired context ends the walk with that
// error instead of trying the next entry.
func ExecuteWithResult[T, R any](g *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var zero R
	var last error
	for i := range g.members {
		m := &g.members[i]
		var out R
		err := m.breaker.Execute(func() error {
			var err error
			out, err = fn(m.backend)
			return err
		})
		switch {
		case err == nil:
			if i > 0 {
				slog.Info("resilience: served by fallback", "backend", m.name, "position", i)
			}
			return out, nil
		case !NotCancellation(err):
			return zero, err
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("resilience: skipping backend with open circuit", "backend", m.name)
		default:
			slog.Warn("resilience: backend failed", "backend", m.name, "err", err)
		}
		last = err
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, last)
}

// NotCancellation is an IsFailure predicate that does not blame the backend
// for context cancellation or deadline expiry.
func NotCancellation(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
