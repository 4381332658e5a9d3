package hass

import (
	"fmt"
	"strings"
)

// Topic layout for the Home Assistant integration.
//
// Discovery configs go under the configured discovery prefix so HA
// picks them up automatically. Entity command/state topics live under
// the bridge's own hatchbridge/hass/ namespace.
const (
	entityPrefix = "hatchbridge/hass"

	// AvailabilityTopic mirrors the bridge LWT topic.
	AvailabilityTopic = "hatchbridge/system/status"

	// DiscoveryQOS is the QoS for discovery and state publishes.
	DiscoveryQOS = 1
)

// TopicScheme builds discovery config topics from the configured
// Home Assistant settings. NodeID is the HA node segment grouping this
// bridge's entities, so two bridges can share a broker.
type TopicScheme struct {
	Prefix string
	NodeID string
}

// Discovery returns the retained discovery config topic for an entity,
// e.g. homeassistant/light/hatch_bridge/rest-abc123_light/config.
func (s TopicScheme) Discovery(component, deviceID, entityID string) string {
	return fmt.Sprintf("%s/%s/%s/%s_%s/config", s.Prefix, component, s.NodeID, deviceID, entityID)
}

// CommandTopic returns the topic HA publishes entity commands to.
func CommandTopic(deviceID, entityID string) string {
	return fmt.Sprintf("%s/%s/%s/set", entityPrefix, deviceID, entityID)
}

// StateTopic returns the topic the bridge publishes entity state to.
func StateTopic(deviceID, entityID string) string {
	return fmt.Sprintf("%s/%s/%s/state", entityPrefix, deviceID, entityID)
}

// AllCommandTopics returns a wildcard matching every HA entity command.
func AllCommandTopics() string {
	return entityPrefix + "/+/+/set"
}

// ParseCommandTopic extracts the device and entity IDs from an entity
// command topic. Returns ok=false for topics outside the scheme.
func ParseCommandTopic(topic string) (deviceID, entityID string, ok bool) {
	tail, found := strings.CutPrefix(topic, entityPrefix+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(tail, "/")
	if len(parts) != 3 || parts[2] != "set" || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
