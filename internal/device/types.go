package device

import (
	"strings"
	"time"
)

// Device is the locally persisted projection of a cloud-discovered
// Hatch device. The cloud inventory is authoritative; rows are upserted
// on every discovery pass so the API can serve inventory while the
// cloud session is down.
type Device struct {
	// Identity. ID is the AWS IoT thing name, stable across sessions.
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`

	// Classification
	Product    string `json:"product"`
	Generation string `json:"generation"`

	// Hardware
	MAC             string `json:"mac"`
	FirmwareVersion string `json:"firmware_version,omitempty"`

	Capabilities []Capability `json:"capabilities"`

	// Current state as projected by the device model
	State State `json:"state"`

	// Health monitoring
	HealthStatus HealthStatus `json:"health_status"`

	// Timestamps
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// DeepCopy creates a complete independent copy of the Device.
// All map and slice fields are cloned so modifications to the copy
// do not affect the original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d

	cpy.State = deepCopyMap(d.State)

	if d.Capabilities != nil {
		cpy.Capabilities = make([]Capability, len(d.Capabilities))
		copy(cpy.Capabilities, d.Capabilities)
	}

	if d.LastSeenAt != nil {
		seen := *d.LastSeenAt
		cpy.LastSeenAt = &seen
	}

	return &cpy
}

// HasCapability reports whether the device carries a capability.
func (d *Device) HasCapability(capability Capability) bool {
	for _, c := range d.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// MACVariants returns the network identifiers a device answers to.
// Hatch hardware advertises a second MAC with the final nibble zeroed,
// so both forms are registered for Home Assistant device matching.
func (d *Device) MACVariants() []string {
	mac := strings.ToLower(d.MAC)
	if mac == "" {
		return nil
	}
	variant := mac[:len(mac)-1] + "0"
	if variant == mac {
		return []string{mac}
	}
	return []string{mac, variant}
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, int, float64, etc.) are safe to copy by value
		return v
	}
}

// State holds the current device state as a JSON map.
//
// Examples:
//   - IoT generation: {"is_on": true, "red": 255, "brightness_percent": 50}
//   - Legacy: {"is_on": true, "color_id": 229, "sound_on": false}
type State map[string]any

// Generation values for the two Restore hardware families.
const (
	GenerationLegacy = "legacy"
	GenerationIoT    = "iot"
)

// AllGenerations returns all valid generation values.
func AllGenerations() []string {
	return []string{GenerationLegacy, GenerationIoT}
}

// Capability represents what a device can do.
type Capability string

// Capability constants.
const (
	CapLight      Capability = "light"
	CapBrightness Capability = "brightness"
	CapColorRGBW  Capability = "color_rgbw"
	CapColorID    Capability = "color_id"
	CapSound      Capability = "sound"
	CapVolume     Capability = "volume"
	CapRoutine    Capability = "routine"
)

// AllCapabilities returns all valid capability values.
func AllCapabilities() []Capability {
	return []Capability{
		CapLight, CapBrightness, CapColorRGBW, CapColorID,
		CapSound, CapVolume, CapRoutine,
	}
}

// CapabilitiesForGeneration returns the capability set a hardware
// generation supports.
func CapabilitiesForGeneration(generation string) []Capability {
	switch generation {
	case GenerationLegacy:
		return []Capability{CapLight, CapBrightness, CapColorID, CapSound, CapVolume, CapRoutine}
	case GenerationIoT:
		return []Capability{CapLight, CapBrightness, CapColorRGBW}
	default:
		return nil
	}
}

// HealthStatus represents the device health state.
type HealthStatus string

// HealthStatus constants.
const (
	HealthStatusOnline  HealthStatus = "online"
	HealthStatusOffline HealthStatus = "offline"
	HealthStatusUnknown HealthStatus = "unknown"
)

// AllHealthStatuses returns all valid health status values.
func AllHealthStatuses() []HealthStatus {
	return []HealthStatus{HealthStatusOnline, HealthStatusOffline, HealthStatusUnknown}
}
