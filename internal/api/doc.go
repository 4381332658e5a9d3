// Package api implements the HTTP REST API and WebSocket server for Hatch Bridge.
//
// This package provides:
//   - REST endpoints for device inventory, state, history, and commands
//   - WebSocket hub for real-time state/ack/health broadcasts
//   - JWT authentication against the single configured admin user
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server sits between local clients and the device registry + MQTT
// bus. Commands flow from the API to the bridge via MQTT, and state changes
// flow back via MQTT subscriptions which are broadcast to WebSocket clients.
// The bridge owns all persistence; the API only reads and relays.
//
// # Graceful Degradation
//
// The server operates without MQTT — reads and WebSocket connections work,
// only device commands fail with 503. This enables testing and partial
// operation while the broker is down.
package api
