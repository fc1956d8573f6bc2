package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one admission check. A denial is not an error;
// store failures are returned separately so the caller can apply its
// fail-open/fail-closed policy.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// Reset is when the subject's current window ends and its quota refills.
	Reset time.Time
}

// Limiter applies fixed-window counting on top of a Store.
//
// Fixed windows carry a known boundary bias: requests racing the exact window
// edge may briefly exceed the limit by the number in flight. That is accepted;
// no attempt is made to smooth it away.
type Limiter struct {
	store     Store
	limit     int
	window    time.Duration
	overrides map[string]int
}

func NewLimiter(store Store, limit int, window time.Duration, overrides map[string]int) *Limiter {
	return &Limiter{
		store:     store,
		limit:     limit,
		window:    window,
		overrides: overrides,
	}
}

// LimitFor returns the subject's effective per-window limit, honoring tier
// overrides.
func (l *Limiter) LimitFor(subject string) int {
	if n, ok := l.overrides[subject]; ok {
		return n
	}
	return l.limit
}

// Allow counts the request against the subject's current window and decides
// admission. The increment is never rolled back, even when the surrounding
// request is later aborted: the count reflects work attempted.
func (l *Limiter) Allow(ctx context.Context, subject string) (Decision, error) {
	count, windowStart, err := l.store.Incr(ctx, subject, l.window)
	if err != nil {
		return Decision{}, err
	}

	limit := l.LimitFor(subject)
	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: int(remaining),
		Reset:     windowStart.Add(l.window),
	}, nil
}
