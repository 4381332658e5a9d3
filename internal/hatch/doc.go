// Package hatch implements the Hatch cloud REST client.
//
// The bridge authenticates against the vendor's prod-sleep API to
// discover the account's devices and to bootstrap AWS IoT access:
//
//	Login → Member → IoTDevices → AWSIoTToken → AWSCredentials
//
// The resulting temporary AWS credentials sign the websocket connection
// to AWS IoT (see internal/awsiot). Credentials expire after roughly an
// hour; the bridge re-runs this chain shortly before expiry.
//
// # Rate limiting
//
// The cloud rate-limits aggressively during bursts (HTTP 429). Every
// method retries 429 responses with exponential backoff starting at the
// configured initial delay and doubling per attempt. ErrRateLimited
// surfaces only once the attempt budget is spent.
//
// # Security
//
// The auth token and AWS credentials are secrets. They are held in
// memory only and must never be logged or persisted.
package hatch
