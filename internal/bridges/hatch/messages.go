package hatchbridge

import (
	"time"

	"github.com/nerrad567/hatch-bridge/internal/device"
)

// Protocol is the protocol segment used in local MQTT topics for this
// bridge. Topic shape: hatchbridge/{category}/hatch/{thing_name}.
const Protocol = "hatch"

// CommandMessage is received on hatchbridge/command/hatch/{thing_name}
// to execute a device command.
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acks.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the AWS IoT thing name of the target device.
	DeviceID string `json:"device_id"`

	// Command is the command name (e.g., "turn_on", "set_brightness").
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"brightness": 50} for set_brightness
	//   {"red": 255, "green": 0, "blue": 0, "white": 0} for set_color
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	// Values: "api", "hass", "automation"
	Source string `json:"source,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was applied and the shadow
	// write was sent to the cloud.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage is published on hatchbridge/ack/hatch/{thing_name} in
// response to every command.
type AckMessage struct {
	CommandID string     `json:"command_id"`
	Timestamp time.Time  `json:"timestamp"`
	DeviceID  string     `json:"device_id"`
	Status    AckStatus  `json:"status"`
	Protocol  string     `json:"protocol"`
	Error     *AckError  `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeUnknownDevice     = "UNKNOWN_DEVICE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeUnsupported       = "UNSUPPORTED"
	ErrCodeCloudUnavailable  = "CLOUD_UNAVAILABLE"
)

// StateMessage is published retained on
// hatchbridge/state/hatch/{thing_name} whenever a device model changes.
type StateMessage struct {
	DeviceID  string         `json:"device_id"`
	Timestamp time.Time      `json:"timestamp"`
	State     map[string]any `json:"state"`
	Protocol  string         `json:"protocol"`
}

// DiscoveryMessage is published on hatchbridge/discovery/hatch after
// every cloud device fetch.
type DiscoveryMessage struct {
	Timestamp time.Time          `json:"timestamp"`
	Bridge    string             `json:"bridge"`
	Devices   []DiscoveredDevice `json:"devices"`
}

// DiscoveredDevice is one device row in a discovery announcement.
type DiscoveredDevice struct {
	DeviceID        string              `json:"device_id"`
	Name            string              `json:"name"`
	Product         string              `json:"product"`
	Generation      string              `json:"generation"`
	MAC             string              `json:"mac"`
	FirmwareVersion string              `json:"firmware_version,omitempty"`
	Capabilities    []device.Capability `json:"capabilities"`
}

// BridgeStatus represents the operational status of the bridge.
type BridgeStatus string

const (
	// StatusHealthy indicates local MQTT and the cloud session are up.
	StatusHealthy BridgeStatus = "healthy"

	// StatusDegraded indicates the bridge is running but the cloud
	// session or local broker is down.
	StatusDegraded BridgeStatus = "degraded"

	// StatusOffline indicates the bridge is not connected (from LWT).
	StatusOffline BridgeStatus = "offline"

	// StatusStarting indicates the bridge is starting up.
	StatusStarting BridgeStatus = "starting"

	// StatusStopping indicates the bridge is shutting down.
	StatusStopping BridgeStatus = "stopping"
)

// HealthMessage is published retained on hatchbridge/health/hatch.
type HealthMessage struct {
	Bridge         string            `json:"bridge"`
	Timestamp      time.Time         `json:"timestamp"`
	Status         BridgeStatus      `json:"status"`
	Version        string            `json:"version"`
	UptimeSeconds  int64             `json:"uptime_seconds"`
	Session        *SessionStatus    `json:"session,omitempty"`
	Statistics     *BridgeStatistics `json:"statistics,omitempty"`
	DevicesManaged int               `json:"devices_managed"`
	Reason         string            `json:"reason,omitempty"`
}

// SessionStatus describes the AWS IoT session state.
type SessionStatus struct {
	// Status is "connected", "disconnected" or "connecting".
	Status string `json:"status"`

	// ConnectedSince is when the current session was established.
	ConnectedSince *time.Time `json:"connected_since,omitempty"`

	// CredentialExpiry is when the session's AWS credentials lapse.
	CredentialExpiry *time.Time `json:"credential_expiry,omitempty"`
}

// BridgeStatistics contains operational counters.
type BridgeStatistics struct {
	StatesPublished   uint64 `json:"states_published"`
	CommandsProcessed uint64 `json:"commands_processed"`
	Errors            uint64 `json:"errors"`
}

// NewAckMessage creates an acknowledgment for a command.
func NewAckMessage(cmd CommandMessage, status AckStatus) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    status,
		Protocol:  Protocol,
	}
}

// NewAckError creates a failed acknowledgment with error details.
func NewAckError(cmd CommandMessage, code, message string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    AckFailed,
		Protocol:  Protocol,
		Error: &AckError{
			Code:    code,
			Message: message,
		},
	}
}

// NewStateMessage creates a state message for a device.
func NewStateMessage(deviceID string, state map[string]any) StateMessage {
	return StateMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		State:     state,
		Protocol:  Protocol,
	}
}

// NewLWTMessage creates the Last Will and Testament health payload the
// broker publishes if the bridge disconnects unexpectedly.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    StatusOffline,
		Reason:    "unexpected_disconnect",
	}
}
