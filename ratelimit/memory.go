package ratelimit

import (
	"context"
	"sync"
	"time"
)

// pruneInterval bounds how often the stale-window sweep runs.
const pruneInterval = time.Minute

type windowState struct {
	start  time.Time
	window time.Duration
	count  int
}

// MemoryLimiter is an in-process fixed-window limiter. Used when no Redis is
// configured and in tests. Windows are tracked per key and reset lazily;
// expired windows are pruned at most once per pruneInterval so the key set
// cannot grow without bound.
type MemoryLimiter struct {
	mu        sync.Mutex
	windows   map[string]*windowState
	nextPrune time.Time
	now       func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*windowState),
		now:     time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !now.Before(l.nextPrune) {
		l.prune(now)
		l.nextPrune = now.Add(pruneInterval)
	}

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= window {
		w = &windowState{start: now, window: window}
		l.windows[key] = w
	}

	w.count++
	if w.count > limit {
		return ErrLimited
	}
	return nil
}

func (l *MemoryLimiter) prune(now time.Time) {
	for key, w := range l.windows {
		if now.Sub(w.start) >= w.window {
			delete(l.windows, key)
		}
	}
}
