package repositories

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/cbodonnell/noughts/pkg/log"
)

const (
	// DefaultMaxAttempts bounds how often a conflicting transaction is retried
	DefaultMaxAttempts = 10

	retryBaseDelay = 5 * time.Millisecond
	retryMaxDelay  = 250 * time.Millisecond
)

// retryTransaction runs attempt until it succeeds, fails with an error that
// retryable rejects, or maxAttempts is reached.
func retryTransaction(ctx context.Context, maxAttempts int, retryable func(error) bool, attempt func() error) error {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	delay := retryBaseDelay
	var err error
	for i := 1; i <= maxAttempts; i++ {
		err = attempt()
		if err == nil || !retryable(err) {
			return err
		}
		log.Trace("Transaction attempt %d/%d conflicted: %v", i, maxAttempts, err)
		if i == maxAttempts {
			break
		}

		// jittered exponential backoff
		wait := delay/2 + rand.N(delay/2+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay = min(delay*2, retryMaxDelay)
	}
	return &ErrTransient{Attempts: maxAttempts, Err: err}
}

// skipStale reports whether a streamed snapshot is older than the last one
// delivered. Used by backends whose initial read races their change feed.
func skipStale(lastUpdatedAt int64, updatedAt int64) bool {
	return updatedAt < lastUpdatedAt
}
