package mqtt

import "fmt"

// Topic prefixes for the Hatch Bridge MQTT surface.
//
// All bridge topics use the flat scheme: hatchbridge/{category}/{protocol}/{address}
// The protocol segment is "hatch" for everything this daemon bridges; it keeps
// the scheme open for future protocols without reshaping the hierarchy.
const (
	// TopicPrefixBridge is the base for all bridge topics.
	// Flat scheme: hatchbridge/{category}/{protocol}/{address_or_id}
	TopicPrefixBridge = "hatchbridge"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "hatchbridge/system"
)

// Topics provides builders for Hatch Bridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.BridgeState("hatch", "rest-abc123")
//	// Returns: "hatchbridge/state/hatch/rest-abc123"
type Topics struct{}

// BridgeState returns the topic for device state updates from a bridge.
//
// Example: hatchbridge/state/hatch/rest-abc123
func (Topics) BridgeState(protocol, deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefixBridge, protocol, deviceID)
}

// BridgeCommand returns the topic for commands to a bridge.
//
// Example: hatchbridge/command/hatch/rest-abc123
func (Topics) BridgeCommand(protocol, deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefixBridge, protocol, deviceID)
}

// BridgeAck returns the topic for command acknowledgements from a bridge.
//
// Example: hatchbridge/ack/hatch/rest-abc123
func (Topics) BridgeAck(protocol, deviceID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefixBridge, protocol, deviceID)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: hatchbridge/health/hatch
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefixBridge, protocol)
}

// BridgeDiscovery returns the topic for device discovery announcements.
//
// Example: hatchbridge/discovery/hatch
func (Topics) BridgeDiscovery(protocol string) string {
	return fmt.Sprintf("%s/discovery/%s", TopicPrefixBridge, protocol)
}

// SystemStatus returns the system status topic.
// Doubles as the availability topic for Home Assistant entities.
//
// Example: hatchbridge/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllBridgeStates returns a pattern matching all bridge state updates.
//
// Pattern: hatchbridge/state/+/+
func (Topics) AllBridgeStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefixBridge)
}

// AllBridgeCommands returns a pattern matching all commands to bridges.
//
// Pattern: hatchbridge/command/+/+
func (Topics) AllBridgeCommands() string {
	return fmt.Sprintf("%s/command/+/+", TopicPrefixBridge)
}

// AllBridgeAcks returns a pattern matching all bridge acknowledgements.
//
// Pattern: hatchbridge/ack/+/+
func (Topics) AllBridgeAcks() string {
	return fmt.Sprintf("%s/ack/+/+", TopicPrefixBridge)
}

// AllBridgeHealth returns a pattern matching all bridge health updates.
//
// Pattern: hatchbridge/health/+
func (Topics) AllBridgeHealth() string {
	return fmt.Sprintf("%s/health/+", TopicPrefixBridge)
}

// AllTopics returns a pattern matching all Hatch Bridge topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: hatchbridge/#
func (Topics) AllTopics() string {
	return "hatchbridge/#"
}
