// Package ratelimit provides per-identity fixed-window request limiting.
// Counts are approximate under concurrent deployments, which is acceptable
// for abuse throttling.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrLimited signals the caller exceeded its window quota.
var ErrLimited = errors.New("ratelimit: limit exceeded")

// Limiter records one hit for key and reports whether it stays within limit
// per window. Implementations return ErrLimited on quota exhaustion.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) error
}
