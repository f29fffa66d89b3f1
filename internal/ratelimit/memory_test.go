package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, rate float64, burst int) (*MemoryLimiter, *fakeClock) {
	t.Helper()
	m := NewMemoryLimiter(rate, burst)
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m.now = clock.now
	t.Cleanup(func() {
		if err := m.Close(); err != nil {
			t.Errorf("Close error: %v", err)
		}
	})
	return m, clock
}

func allow(t *testing.T, m *MemoryLimiter, key string) Decision {
	t.Helper()
	d, err := m.Allow(context.Background(), key)
	if err != nil {
		t.Fatalf("Allow error: %v", err)
	}
	return d
}

func TestMemoryLimiterBurstThenDeny(t *testing.T) {
	m, _ := newTestLimiter(t, 1, 3)

	for i := range 3 {
		d := allow(t, m, "k")
		if !d.Allowed {
			t.Fatalf("request %d: expected allowed within burst", i)
		}
		if want := 2 - i; d.Remaining != want {
			t.Fatalf("request %d: remaining = %d, want %d", i, d.Remaining, want)
		}
		if d.Limit != 3 {
			t.Fatalf("limit = %d, want 3", d.Limit)
		}
	}

	d := allow(t, m, "k")
	if d.Allowed {
		t.Fatal("expected denial after burst exhausted")
	}
	if d.RetryIn <= 0 || d.RetryIn > time.Second {
		t.Fatalf("RetryIn = %v, want in (0, 1s]", d.RetryIn)
	}
}

func TestMemoryLimiterRefill(t *testing.T) {
	m, clock := newTestLimiter(t, 2, 2) // one token every 500ms

	allow(t, m, "k")
	allow(t, m, "k")
	if allow(t, m, "k").Allowed {
		t.Fatal("expected denial with an empty bucket")
	}

	clock.advance(400 * time.Millisecond)
	if allow(t, m, "k").Allowed {
		t.Fatal("expected denial before a full token refilled")
	}

	clock.advance(200 * time.Millisecond)
	if !allow(t, m, "k").Allowed {
		t.Fatal("expected a refilled token after 600ms")
	}
}

func TestMemoryLimiterCapsAtBurst(t *testing.T) {
	m, clock := newTestLimiter(t, 100, 3)

	allow(t, m, "k")
	clock.advance(time.Hour)

	for i := range 3 {
		if !allow(t, m, "k").Allowed {
			t.Fatalf("request %d: expected allowed after long idle", i)
		}
	}
	if allow(t, m, "k").Allowed {
		t.Fatal("tokens must not accumulate past burst")
	}
}

func TestMemoryLimiterIndependentKeys(t *testing.T) {
	m, _ := newTestLimiter(t, 1, 1)

	if !allow(t, m, "10.0.0.1").Allowed {
		t.Fatal("first request for 10.0.0.1 should pass")
	}
	if allow(t, m, "10.0.0.1").Allowed {
		t.Fatal("second request for 10.0.0.1 should be denied")
	}
	if !allow(t, m, "10.0.0.2").Allowed {
		t.Fatal("10.0.0.2 has its own bucket")
	}
}

func TestMemoryLimiterConcurrent(t *testing.T) {
	m, _ := newTestLimiter(t, 1, 50)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				d, err := m.Allow(context.Background(), "shared")
				if err != nil {
					t.Errorf("Allow error: %v", err)
					return
				}
				if d.Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	// The clock is frozen, so exactly the burst is admitted.
	if allowed != 50 {
		t.Fatalf("allowed = %d, want 50", allowed)
	}
}

func TestMemoryLimiterEvictStale(t *testing.T) {
	m, clock := newTestLimiter(t, 1, 5)

	allow(t, m, "old")
	clock.advance(staleAfter + time.Minute)
	allow(t, m, "fresh")

	m.evictStale()

	m.mu.Lock()
	_, oldExists := m.buckets["old"]
	_, freshExists := m.buckets["fresh"]
	m.mu.Unlock()

	if oldExists {
		t.Fatal("expected stale bucket to be evicted")
	}
	if !freshExists {
		t.Fatal("expected recent bucket to survive eviction")
	}
}

func TestMemoryLimiterCloseIdempotent(t *testing.T) {
	m := NewMemoryLimiter(10, 5)
	if err := m.Close(); err != nil {
		t.Fatalf("first Close error: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
}

func TestNoopLimiterAlwaysAllows(t *testing.T) {
	var l NoopLimiter
	for range 1000 {
		d, err := l.Allow(context.Background(), "anything")
		if err != nil || !d.Allowed {
			t.Fatalf("NoopLimiter must allow, got %+v, %v", d, err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("NoopLimiter.Close error: %v", err)
	}
}
