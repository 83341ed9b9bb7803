package sessionstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/reelwright/internal/content"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sample(id string) *content.Session {
	return &content.Session{
		ID:           id,
		Stage:        content.StageAwaitingSelection,
		Answers:      map[string]string{"soha": "SMM"},
		LastResponse: "🎥 Kontent 1\n<b>Hook:</b> h",
		Kept:         []int{1, 5},
		UpdatedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemory_PutGetDelete(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	t.Cleanup(func() { _ = m.Close() })
	ctx := context.Background()

	got, err := m.Get(ctx, "missing")
	if err != nil || got != nil {
		t.Fatalf("Get(missing) = %v, %v; want nil, nil", got, err)
	}

	s := sample("c1")
	if err := m.Put(ctx, s); err != nil {
		t.Fatal(err)
	}
	s.Answers["soha"] = "changed after put"

	got, err = m.Get(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Answers["soha"] != "SMM" || got.Stage != content.StageAwaitingSelection {
		t.Errorf("stored session shares state with the caller: %+v", got)
	}
	got.Kept[0] = 99
	again, _ := m.Get(ctx, "c1")
	if again.Kept[0] != 1 {
		t.Error("returned session shares state with the store")
	}

	if err := m.Delete(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after delete", m.Len())
	}
}

func TestMemory_Expiry(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory(WithTTL(time.Hour), WithNow(clock.Now), WithJanitorInterval(time.Hour))
	t.Cleanup(func() { _ = m.Close() })
	ctx := context.Background()

	_ = m.Put(ctx, sample("old"))
	clock.Advance(45 * time.Minute)
	_ = m.Put(ctx, sample("fresh"))
	clock.Advance(30 * time.Minute)

	if got, _ := m.Get(ctx, "old"); got != nil {
		t.Error("expired session returned")
	}
	if got, _ := m.Get(ctx, "fresh"); got == nil {
		t.Error("fresh session evicted")
	}

	clock.Advance(time.Hour)
	if n := m.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestMemory_PutRefreshesTTL(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(0, 0)}
	m := NewMemory(WithTTL(time.Hour), WithNow(clock.Now))
	t.Cleanup(func() { _ = m.Close() })
	ctx := context.Background()

	_ = m.Put(ctx, sample("c1"))
	for range 3 {
		clock.Advance(50 * time.Minute)
		s, _ := m.Get(ctx, "c1")
		if s == nil {
			t.Fatal("active session expired")
		}
		_ = m.Put(ctx, s)
	}
}

func TestMemory_JanitorSweeps(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(0, 0)}
	m := NewMemory(WithTTL(time.Minute), WithNow(clock.Now), WithJanitorInterval(5*time.Millisecond))
	t.Cleanup(func() { _ = m.Close() })

	_ = m.Put(context.Background(), sample("c1"))
	clock.Advance(2 * time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for m.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("janitor did not evict the expired session")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemory_NoTTL(t *testing.T) {
	t.Parallel()

	m := NewMemory(WithTTL(0))
	_ = m.Put(context.Background(), sample("c1"))
	if n := m.Sweep(); n != 0 {
		t.Errorf("Sweep() = %d without TTL", n)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal("second Close failed")
	}
}
