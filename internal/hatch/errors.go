package hatch

import "errors"

// Sentinel errors for Hatch cloud operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAuthFailed indicates the Hatch cloud rejected the account
	// credentials or the auth token has become invalid.
	ErrAuthFailed = errors.New("hatch: authentication failed")

	// ErrRateLimited indicates the cloud returned HTTP 429. The retry
	// helper keeps retrying these with backoff; callers see this error
	// only once the attempt budget is exhausted.
	ErrRateLimited = errors.New("hatch: rate limited")

	// ErrNoDevices indicates the account has no IoT devices for any of
	// the queried products.
	ErrNoDevices = errors.New("hatch: no iot devices found for account")

	// ErrAPIStatus indicates the cloud returned an unexpected HTTP status.
	ErrAPIStatus = errors.New("hatch: unexpected api status")
)
