package hass

import (
	"fmt"

	"github.com/nerrad567/hatch-bridge/internal/device"
)

// Entity IDs used in topics and unique IDs. One light per device plus,
// for legacy Restores, the sound switch and tuning numbers.
const (
	EntityLight          = "light"
	EntitySound          = "sound"
	EntityVolume         = "volume"
	EntityColorID        = "color_id"
	EntityColorIntensity = "color_intensity"
)

// EntityConfig pairs a discovery payload with the topic it belongs on.
type EntityConfig struct {
	Topic   string
	Payload any
}

// deviceBlock builds the shared device object so all entities group
// under a single Home Assistant device entry.
func deviceBlock(d *device.Device) DeviceBlock {
	var conns [][]string
	for _, mac := range d.MACVariants() {
		conns = append(conns, []string{"mac", mac})
	}
	name := d.Name
	if name == "" {
		name = d.ID
	}
	return DeviceBlock{
		Identifiers:  []string{d.ID},
		Connections:  conns,
		Name:         name,
		Manufacturer: "Hatch",
		Model:        d.Product,
		SWVersion:    d.FirmwareVersion,
	}
}

func availability() []Availability {
	return []Availability{{
		Topic:               AvailabilityTopic,
		PayloadAvailable:    PayloadAvailable,
		PayloadNotAvailable: PayloadNotAvailable,
	}}
}

func uniqueID(d *device.Device, entityID string) string {
	return fmt.Sprintf("hatch_%s_%s", d.ID, entityID)
}

// EntityConfigs returns the discovery payloads for a device, shaped by
// its generation. IoT Restores expose a single RGBW light; legacy
// Restores expose a brightness-only light plus the sound switch and
// the volume, colour-preset and intensity numbers.
func EntityConfigs(d *device.Device, topics TopicScheme) []EntityConfig {
	block := deviceBlock(d)
	avail := availability()

	light := LightDiscovery{
		Name:            "Light",
		UniqueID:        uniqueID(d, EntityLight),
		Schema:          "json",
		CommandTopic:    CommandTopic(d.ID, EntityLight),
		StateTopic:      StateTopic(d.ID, EntityLight),
		Brightness:      true,
		BrightnessScale: brightnessScale,
		Availability:    avail,
		Device:          block,
		QOS:             DiscoveryQOS,
	}
	if d.Generation == device.GenerationIoT {
		light.SupportedColorModes = []string{ColorModeRGBW}
	}

	configs := []EntityConfig{{
		Topic:   topics.Discovery("light", d.ID, EntityLight),
		Payload: light,
	}}

	if d.Generation != device.GenerationLegacy {
		return configs
	}

	configs = append(configs,
		EntityConfig{
			Topic: topics.Discovery("switch", d.ID, EntitySound),
			Payload: SwitchDiscovery{
				Name:         "Sound",
				UniqueID:     uniqueID(d, EntitySound),
				CommandTopic: CommandTopic(d.ID, EntitySound),
				StateTopic:   StateTopic(d.ID, EntitySound),
				PayloadOn:    PayloadOn,
				PayloadOff:   PayloadOff,
				Icon:         "mdi:music-note",
				Availability: avail,
				Device:       block,
				QOS:          DiscoveryQOS,
			},
		},
		EntityConfig{
			Topic: topics.Discovery("number", d.ID, EntityVolume),
			Payload: NumberDiscovery{
				Name:              "Sound Volume",
				UniqueID:          uniqueID(d, EntityVolume),
				CommandTopic:      CommandTopic(d.ID, EntityVolume),
				StateTopic:        StateTopic(d.ID, EntityVolume),
				Min:               0,
				Max:               100,
				Step:              1,
				UnitOfMeasurement: "%",
				Mode:              "slider",
				Availability:      avail,
				Device:            block,
				QOS:               DiscoveryQOS,
			},
		},
		EntityConfig{
			Topic: topics.Discovery("number", d.ID, EntityColorID),
			Payload: NumberDiscovery{
				Name:         "Color Preset",
				UniqueID:     uniqueID(d, EntityColorID),
				CommandTopic: CommandTopic(d.ID, EntityColorID),
				StateTopic:   StateTopic(d.ID, EntityColorID),
				Min:          0,
				Max:          65535,
				Step:         1,
				Mode:         "box",
				Availability: avail,
				Device:       block,
				QOS:          DiscoveryQOS,
			},
		},
		EntityConfig{
			Topic: topics.Discovery("number", d.ID, EntityColorIntensity),
			Payload: NumberDiscovery{
				Name:         "Color Intensity",
				UniqueID:     uniqueID(d, EntityColorIntensity),
				CommandTopic: CommandTopic(d.ID, EntityColorIntensity),
				StateTopic:   StateTopic(d.ID, EntityColorIntensity),
				Min:          0,
				Max:          65535,
				Step:         1,
				Mode:         "box",
				Availability: avail,
				Device:       block,
				QOS:          DiscoveryQOS,
			},
		},
	)
	return configs
}
