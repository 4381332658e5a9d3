// Package hatchbridge bridges Hatch Restore devices between the AWS IoT
// cloud and the local MQTT bus.
//
// The bridge owns the cloud session lifecycle: it logs into the Hatch
// cloud, discovers the account's devices, exchanges the Cognito token
// for temporary AWS credentials, and connects to the AWS IoT device
// gateway over a presigned websocket. Because the presigned URL embeds
// expiring credentials, the whole session is torn down and rebuilt one
// refresh margin before expiry, after a connection loss, and one retry
// interval after a failed bootstrap.
//
// While a session is up the bridge:
//   - Builds a restore model per supported device and subscribes its
//     shadow topics; shadow documents flow into the models and each
//     model update is published retained on the local state topic
//   - Executes commands from hatchbridge/command/hatch/{thing_name},
//     acking every command on the ack topic
//   - Persists discovered devices, projected state and health into the
//     device registry and state history, and mirrors activity to the
//     time-series store
//   - Publishes Home Assistant MQTT discovery and serves the HA entity
//     command/state topics when the integration is enabled
//
// Health is reported retained on hatchbridge/health/hatch every 30
// seconds; the same topic carries the broker-delivered LWT when the
// bridge dies unexpectedly.
package hatchbridge
