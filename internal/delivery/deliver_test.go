package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  []string
	times []time.Time
	fail  map[string]error
}

func (r *recordingSender) Send(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.times = append(r.times, time.Now())
	if err := r.fail[text]; err != nil {
		return err
	}
	r.sent = append(r.sent, text)
	return nil
}

func TestDeliver_OrderAndPacing(t *testing.T) {
	t.Parallel()
	s := &recordingSender{}
	parts := []string{"bir", "ikki", "uch"}

	if err := Deliver(context.Background(), s, parts, 20*time.Millisecond); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(s.sent) != 3 || s.sent[0] != "bir" || s.sent[2] != "uch" {
		t.Fatalf("sent = %q", s.sent)
	}
	for i := 1; i < len(s.times); i++ {
		if gap := s.times[i].Sub(s.times[i-1]); gap < 20*time.Millisecond {
			t.Errorf("gap %d = %v, want >= 20ms", i, gap)
		}
	}
}

func TestDeliver_FailedPartDoesNotStopTheRest(t *testing.T) {
	t.Parallel()
	errBoom := errors.New("rate limited")
	s := &recordingSender{fail: map[string]error{"ikki": errBoom}}

	err := Deliver(context.Background(), s, []string{"bir", "ikki", "uch"}, 0)
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want wrapped errBoom", err)
	}
	if len(s.sent) != 2 || s.sent[1] != "uch" {
		t.Fatalf("sent = %q, want bir and uch", s.sent)
	}
}

func TestDeliver_ContextCancelledWhileWaiting(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	var sent int
	sender := SenderFunc(func(context.Context, string) error {
		sent++
		cancel()
		return nil
	})

	err := Deliver(ctx, sender, []string{"a", "b", "c"}, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
}
