package client

import (
	"math/rand/v2"
	"time"

	"github.com/dgallion1/docbridge/internal/errs"
)

// IsRetryable reports whether err is worth retrying: the server marked it
// retryable, or the server could not be reached.
func IsRetryable(err error) bool {
	return errs.IsRetryable(err)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * 250 * time.Millisecond
	if base > 5*time.Second {
		base = 5 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3
