package hass

// Payload constants shared by discovery configs and state payloads.
const (
	PayloadOn  = "ON"
	PayloadOff = "OFF"

	PayloadAvailable    = "online"
	PayloadNotAvailable = "offline"

	ColorModeRGBW = "rgbw"

	// Home Assistant's MQTT light brightness scale.
	brightnessScale = 255
)

// DeviceBlock is the discovery "device" object grouping entities under
// one Home Assistant device entry.
type DeviceBlock struct {
	Identifiers  []string   `json:"identifiers"`
	Connections  [][]string `json:"connections,omitempty"`
	Name         string     `json:"name"`
	Manufacturer string     `json:"manufacturer"`
	Model        string     `json:"model"`
	SWVersion    string     `json:"sw_version,omitempty"`
	ViaDevice    string     `json:"via_device,omitempty"`
}

// Availability points an entity at the bridge's status topic so
// entities drop to unavailable when the bridge goes down.
type Availability struct {
	Topic               string `json:"topic"`
	PayloadAvailable    string `json:"payload_available"`
	PayloadNotAvailable string `json:"payload_not_available"`
}

// LightDiscovery is the MQTT JSON-schema light discovery payload.
type LightDiscovery struct {
	Name                string         `json:"name"`
	UniqueID            string         `json:"unique_id"`
	ObjectID            string         `json:"object_id,omitempty"`
	Schema              string         `json:"schema"`
	CommandTopic        string         `json:"command_topic"`
	StateTopic          string         `json:"state_topic"`
	Brightness          bool           `json:"brightness"`
	BrightnessScale     int            `json:"brightness_scale,omitempty"`
	SupportedColorModes []string       `json:"supported_color_modes,omitempty"`
	Availability        []Availability `json:"availability,omitempty"`
	Device              DeviceBlock    `json:"device"`
	QOS                 int            `json:"qos"`
}

// SwitchDiscovery is the MQTT switch discovery payload.
type SwitchDiscovery struct {
	Name         string         `json:"name"`
	UniqueID     string         `json:"unique_id"`
	ObjectID     string         `json:"object_id,omitempty"`
	CommandTopic string         `json:"command_topic"`
	StateTopic   string         `json:"state_topic"`
	PayloadOn    string         `json:"payload_on"`
	PayloadOff   string         `json:"payload_off"`
	Icon         string         `json:"icon,omitempty"`
	Availability []Availability `json:"availability,omitempty"`
	Device       DeviceBlock    `json:"device"`
	QOS          int            `json:"qos"`
}

// NumberDiscovery is the MQTT number discovery payload.
type NumberDiscovery struct {
	Name              string         `json:"name"`
	UniqueID          string         `json:"unique_id"`
	ObjectID          string         `json:"object_id,omitempty"`
	CommandTopic      string         `json:"command_topic"`
	StateTopic        string         `json:"state_topic"`
	Min               float64        `json:"min"`
	Max               float64        `json:"max"`
	Step              float64        `json:"step"`
	UnitOfMeasurement string         `json:"unit_of_measurement,omitempty"`
	Mode              string         `json:"mode,omitempty"`
	Availability      []Availability `json:"availability,omitempty"`
	Device            DeviceBlock    `json:"device"`
	QOS               int            `json:"qos"`
}

// LightColor is the RGBW color object in JSON-schema light payloads.
type LightColor struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
	W int `json:"w"`
}

// LightState is the JSON-schema light state payload.
type LightState struct {
	State      string      `json:"state"`
	Brightness int         `json:"brightness,omitempty"`
	ColorMode  string      `json:"color_mode,omitempty"`
	Color      *LightColor `json:"color,omitempty"`
}

// LightCommand is a parsed JSON-schema light command.
//
// Absent fields are reported through the Has* flags so callers can
// distinguish "turn on" from "turn on at this brightness/colour".
type LightCommand struct {
	On            bool
	HasBrightness bool
	// Brightness on HA's 0-255 scale.
	Brightness int
	HasColor   bool
	Color      LightColor
}
