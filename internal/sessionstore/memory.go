// Package sessionstore persists conversation sessions.
//
// Three backends implement [content.Store]: [Memory] for single-process
// deployments and tests, [Postgres] (pgx, JSONB) and [SQLite]
// (modernc.org/sqlite). All of them serialise the session as JSON so the
// schema never changes when the session grows a field.
package sessionstore

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/reelwright/internal/content"
)

// DefaultTTL is how long an untouched session is kept.
const DefaultTTL = 24 * time.Hour

var (
	_ content.Store = (*Memory)(nil)
	_ content.Store = (*Postgres)(nil)
	_ content.Store = (*SQLite)(nil)
)

// MemoryOption is a functional option for [NewMemory].
type MemoryOption func(*Memory)

// WithTTL sets the idle lifetime of a session. Zero or less disables
// expiry.
func WithTTL(d time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = d }
}

// WithJanitorInterval sets how often expired sessions are swept. The
// default is a tenth of the TTL, at least one minute.
func WithJanitorInterval(d time.Duration) MemoryOption {
	return func(m *Memory) { m.interval = d }
}

// WithNow overrides the clock used for expiry.
func WithNow(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// Memory is an in-process session store with idle expiry. Sessions are
// copied on the way in and out, so callers never share state.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]memEntry
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

type memEntry struct {
	session content.Session
	touched time.Time
}

// NewMemory returns a Memory store. When a TTL is set a background janitor
// evicts expired sessions until [Memory.Close] is called.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		sessions: make(map[string]memEntry),
		ttl:      DefaultTTL,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	if m.ttl <= 0 {
		close(m.done)
		return m
	}
	if m.interval <= 0 {
		m.interval = max(m.ttl/10, time.Minute)
	}
	go m.janitor()
	return m
}

// Get implements content.Store. Expired sessions are reported as absent.
func (m *Memory) Get(_ context.Context, id string) (*content.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	if m.expired(e) {
		delete(m.sessions, id)
		return nil, nil
	}
	s := e.session.Clone()
	return &s, nil
}

// Put implements content.Store.
func (m *Memory) Put(_ context.Context, s *content.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = memEntry{session: s.Clone(), touched: m.now()}
	return nil
}

// Delete implements content.Store.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included until
// the next sweep.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts every expired session and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.sessions {
		if m.expired(e) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Close stops the janitor. It is safe to call more than once.
func (m *Memory) Close() error {
	m.once.Do(func() { close(m.stop) })
	<-m.done
	return nil
}

func (m *Memory) expired(e memEntry) bool {
	return m.ttl > 0 && m.now().Sub(e.touched) > m.ttl
}

func (m *Memory) janitor() {
	defer close(m.done)
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			m.Sweep()
		}
	}
}
