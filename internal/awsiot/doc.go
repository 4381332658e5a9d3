// Package awsiot connects to the AWS IoT device gateway over MQTT
// websockets and speaks the classic device shadow protocol.
//
// The package has three layers:
//
//   - signer.go presigns the websocket URL with SigV4 using temporary
//     Cognito credentials (service "iotdevicegateway", path "/mqtt").
//     The session token is appended after signing, as the gateway
//     requires.
//   - connection.go wraps an Eclipse Paho client for the presigned URL.
//     Auto-reconnect is disabled on purpose: the credentials baked into
//     the URL expire, so reconnecting requires a freshly signed URL.
//     Callers watch SetOnConnectionLost and rebuild the connection.
//   - shadow.go subscribes to the state-bearing shadow topics for a
//     thing, normalises every document shape (get/accepted,
//     update/accepted, update/documents, update/delta) to a
//     reported-state map, and publishes desired-state updates.
//
// Credentials never appear in logs; only the signed URL's host and the
// client identifier are logged at debug level.
package awsiot
