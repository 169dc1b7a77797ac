package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryFixedWindow(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(3, time.Minute)
	m.now = func() time.Time { return clock }

	for i := 1; i <= 3; i++ {
		res, _ := m.Allow(ctx, "10.0.0.1")
		if !res.Allowed {
			t.Fatalf("hit %d should be allowed", i)
		}
		if res.Remaining != 3-i {
			t.Errorf("hit %d: expected remaining %d, got %d", i, 3-i, res.Remaining)
		}
	}

	res, _ := m.Allow(ctx, "10.0.0.1")
	if res.Allowed || res.Remaining != 0 {
		t.Errorf("fourth hit should be blocked, got %+v", res)
	}
	if !res.Reset.Equal(clock.Add(time.Minute)) {
		t.Errorf("unexpected reset %v", res.Reset)
	}

	// Other keys are independent.
	if res, _ := m.Allow(ctx, "10.0.0.2"); !res.Allowed {
		t.Error("other key should be allowed")
	}

	clock = clock.Add(time.Minute)
	if res, _ := m.Allow(ctx, "10.0.0.1"); !res.Allowed || res.Remaining != 2 {
		t.Errorf("new window should allow, got %+v", res)
	}
}

func TestMemoryPeek(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(2, time.Minute)
	m.now = func() time.Time { return clock }

	res, _ := m.Peek(ctx, "k")
	if !res.Allowed || res.Remaining != 2 {
		t.Fatalf("empty window should allow, got %+v", res)
	}

	m.Allow(ctx, "k")
	m.Allow(ctx, "k")

	// Peeking repeatedly never consumes the window.
	for i := 0; i < 3; i++ {
		res, _ = m.Peek(ctx, "k")
		if res.Allowed || res.Remaining != 0 {
			t.Fatalf("full window should block, got %+v", res)
		}
	}
	if !res.Reset.Equal(clock.Add(time.Minute)) {
		t.Errorf("unexpected reset %v", res.Reset)
	}

	clock = clock.Add(time.Minute)
	if res, _ := m.Peek(ctx, "k"); !res.Allowed {
		t.Error("expired window should allow")
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Now()
	tests := []struct {
		reset time.Time
		want  time.Duration
	}{
		{now.Add(30 * time.Second), 30 * time.Second},
		{now.Add(100 * time.Millisecond), time.Second},
		{now.Add(-time.Second), time.Second},
	}
	for _, tt := range tests {
		if got := (Result{Reset: tt.reset}).RetryAfter(now); got != tt.want {
			t.Errorf("RetryAfter = %v, want %v", got, tt.want)
		}
	}
}
