package store

import (
	"context"
	"fmt"
	"time"
)

const (
	retryAttempts = 3
	retryBaseWait = 100 * time.Millisecond
)

// withRetry runs op up to retryAttempts times with exponential backoff.
// Transient store failures are absorbed here, at the adapter boundary; if
// every attempt fails the error surfaces as ErrStoreUnavailable.
func withRetry(ctx context.Context, op func() error) error {
	var lastErr error
	wait := retryBaseWait
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrStoreUnavailable, ctx.Err())
			}
			wait *= 2
		}
		if lastErr = op(); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, lastErr)
}
