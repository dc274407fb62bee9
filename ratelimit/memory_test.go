package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryLimiter_WindowQuota(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter().WithClock(func() time.Time { return current })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Allow(ctx, "create:user-1", 3, time.Hour); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i+1, err)
		}
	}

	if err := l.Allow(ctx, "create:user-1", 3, time.Hour); !errors.Is(err, ErrLimited) {
		t.Fatalf("expected ErrLimited, got %v", err)
	}

	// A different key is unaffected.
	if err := l.Allow(ctx, "create:user-2", 3, time.Hour); err != nil {
		t.Fatalf("other key: unexpected error: %v", err)
	}

	// Window rollover resets the count.
	current = current.Add(time.Hour)
	if err := l.Allow(ctx, "create:user-1", 3, time.Hour); err != nil {
		t.Fatalf("after rollover: unexpected error: %v", err)
	}
}

func TestMemoryLimiter_PrunesExpiredWindows(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter().WithClock(func() time.Time { return current })
	ctx := context.Background()

	for _, key := range []string{"otp:a@x.edu", "otp:b@x.edu", "otp:c@x.edu"} {
		if err := l.Allow(ctx, key, 3, time.Hour); err != nil {
			t.Fatalf("%s: unexpected error: %v", key, err)
		}
	}
	if got := len(l.windows); got != 3 {
		t.Fatalf("expected 3 tracked windows, got %d", got)
	}

	// Once every window has lapsed, the next call sweeps the stale keys
	// instead of keeping them forever.
	current = current.Add(2 * time.Hour)
	if err := l.Allow(ctx, "otp:d@x.edu", 3, time.Hour); err != nil {
		t.Fatalf("after expiry: unexpected error: %v", err)
	}
	if got := len(l.windows); got != 1 {
		t.Fatalf("expected stale windows pruned down to 1, got %d", got)
	}

	// A live window survives the sweep.
	if err := l.Allow(ctx, "otp:e@x.edu", 3, time.Hour); err != nil {
		t.Fatalf("new key: unexpected error: %v", err)
	}
	current = current.Add(2 * time.Hour)
	if err := l.Allow(ctx, "otp:f@x.edu", 3, time.Hour); err != nil {
		t.Fatalf("trigger sweep: unexpected error: %v", err)
	}
	if _, ok := l.windows["otp:f@x.edu"]; !ok {
		t.Fatal("current window must survive the sweep")
	}
}
