// Package ratelimit implements fixed-window admission control backed by a
// pluggable per-subject counter store.
package ratelimit

import (
	"context"
	"time"
)

// Store is durable counter storage keyed by (subject, window). Incr atomically
// increments the subject's counter for the current fixed window, creating or
// resetting it as needed, and returns the post-increment count together with
// the start of the window it was counted in. Implementations must be safe for
// concurrent use and must honor the context deadline.
type Store interface {
	Incr(ctx context.Context, subject string, window time.Duration) (count int64, windowStart time.Time, err error)
}
