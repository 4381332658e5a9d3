package awsiot

import "errors"

// Sentinel errors for AWS IoT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a
	// disconnected connection.
	ErrNotConnected = errors.New("awsiot: not connected")

	// ErrConnectionFailed is returned when the websocket connection to
	// the device gateway cannot be established.
	ErrConnectionFailed = errors.New("awsiot: connection failed")

	// ErrSubscribeFailed is returned when a shadow topic subscription fails.
	ErrSubscribeFailed = errors.New("awsiot: subscribe failed")

	// ErrPublishFailed is returned when a shadow publish fails.
	ErrPublishFailed = errors.New("awsiot: publish failed")
)
