package hatch

import (
	"context"
	"errors"
	"time"
)

// withRetry runs fn, retrying rate-limited attempts with exponential
// backoff per the client's configured policy.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	return RetryRateLimited(ctx, c.retry.Attempts, time.Duration(c.retry.InitialDelay)*time.Second, fn)
}

// RetryRateLimited runs fn up to attempts times, sleeping between
// attempts when fn fails with ErrRateLimited. The delay starts at
// initialDelay and doubles after each rate-limited attempt. Any other
// error, and any rate-limit error on the final attempt, is returned
// unchanged.
//
// Parameters:
//   - ctx: Cancels the backoff sleep as well as the call
//   - attempts: Total attempt budget (minimum 1)
//   - initialDelay: Delay before the second attempt
//   - fn: The operation; should honour ctx itself
//
// Returns:
//   - error: nil on success, ctx.Err() if cancelled mid-backoff, or the
//     last error from fn
func RetryRateLimited(ctx context.Context, attempts int, initialDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	delay := initialDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, ErrRateLimited) || attempt >= attempts {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
