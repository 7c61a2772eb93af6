package storage

import (
	"context"
	"time"

	"github.com/opspilot/opspilot/internal/errors"
)

const (
	retryAttempts  = 3
	retryBaseDelay = 200 * time.Millisecond
)

// retry runs fn up to attempts times with exponential backoff starting at
// base. Only errors classified as retryable are retried; cancellation of
// ctx stops immediately with the last error.
func retry(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var last error
	for i := 0; i < attempts; i++ {
		last = fn()
		if last == nil || !errors.IsRetryable(last) || i == attempts-1 {
			return last
		}
		select {
		case <-ctx.Done():
			return last
		case <-time.After(base * time.Duration(1<<i)):
		}
	}
	return last
}
