package hatchbridge

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/hatch-bridge/internal/device"
	"github.com/nerrad567/hatch-bridge/internal/hass"
	"github.com/nerrad567/hatch-bridge/internal/hatch"
	"github.com/nerrad567/hatch-bridge/internal/restore"
)

// publishHassDiscovery publishes retained Home Assistant discovery
// configs for a discovered device.
func (b *Bridge) publishHassDiscovery(row hatch.IoTDevice, generation string) {
	d := &device.Device{
		ID:              row.ThingName,
		Name:            row.Name,
		Product:         row.Product,
		Generation:      generation,
		MAC:             row.MACAddress,
		FirmwareVersion: row.FirmwareVersion,
	}

	topics := hass.TopicScheme{
		Prefix: b.haCfg.DiscoveryPrefix,
		NodeID: b.haCfg.NodeID,
	}
	for _, cfg := range hass.EntityConfigs(d, topics) {
		payload, err := json.Marshal(cfg.Payload)
		if err != nil {
			b.logError("failed to marshal hass discovery", err)
			continue
		}
		if err := b.mqtt.Publish(cfg.Topic, payload, hass.DiscoveryQOS, true); err != nil {
			b.logError("failed to publish hass discovery", err)
		}
	}
}

// publishHassStates pushes the model's state onto the Home Assistant
// entity state topics. Runs on every model update when HA is enabled.
func (b *Bridge) publishHassStates(model restore.Device, state map[string]interface{}) {
	thingName := model.ThingName()

	light := hass.BuildLightState(model.Generation(), state)
	payload, err := hass.MarshalLightState(light)
	if err != nil {
		b.logError("failed to marshal hass light state", err)
		return
	}
	b.publishHassState(hass.StateTopic(thingName, hass.EntityLight), payload)

	sound, ok := model.(soundControls)
	if !ok {
		return
	}

	b.publishHassState(hass.StateTopic(thingName, hass.EntitySound),
		[]byte(hass.SwitchStatePayload(sound.IsSoundOn())))
	b.publishHassState(hass.StateTopic(thingName, hass.EntityVolume),
		[]byte(hass.NumberStatePayload(sound.VolumePercent())))
	b.publishHassState(hass.StateTopic(thingName, hass.EntityColorID),
		[]byte(hass.NumberStatePayload(float64(sound.ColorID()))))

	// The intensity number works on the device's raw 0-65535 scale.
	raw := int(sound.BrightnessPercent()/100*65535 + 0.5)
	b.publishHassState(hass.StateTopic(thingName, hass.EntityColorIntensity),
		[]byte(hass.NumberStatePayload(float64(raw))))
}

func (b *Bridge) publishHassState(topic string, payload []byte) {
	if err := b.mqtt.Publish(topic, payload, hass.DiscoveryQOS, true); err != nil {
		b.logError("failed to publish hass state", err)
	}
}

// handleHassCommand processes a command from a Home Assistant entity
// set topic.
func (b *Bridge) handleHassCommand(topic string, payload []byte) error {
	thingName, entityID, ok := hass.ParseCommandTopic(topic)
	if !ok {
		return nil
	}

	model, found := b.model(thingName)
	if !found {
		b.logWarn("hass command for unmanaged device", "device", thingName)
		return nil
	}

	var err error
	switch entityID {
	case hass.EntityLight:
		err = b.applyHassLightCommand(model, payload)

	case hass.EntitySound:
		err = b.applyHassSoundCommand(model, payload)

	case hass.EntityVolume:
		err = b.applyHassNumberCommand(model, payload, func(sound soundControls, v float64) error {
			return sound.SetVolumePercent(v)
		})

	case hass.EntityColorID:
		err = b.applyHassNumberCommand(model, payload, func(sound soundControls, v float64) error {
			return sound.SetColorID(int(v))
		})

	case hass.EntityColorIntensity:
		err = b.applyHassNumberCommand(model, payload, func(sound soundControls, v float64) error {
			return sound.SetColorIntensityRaw(int(v))
		})

	default:
		b.logWarn("hass command for unknown entity", "device", thingName, "entity", entityID)
		return nil
	}

	if err != nil {
		b.logError("hass command failed", err)
		b.health.CountError()
		return nil // Errors are logged, not redelivered.
	}

	b.health.CountCommand()
	return nil
}

// applyHassLightCommand maps a JSON-schema light command to the model.
func (b *Bridge) applyHassLightCommand(model restore.Device, payload []byte) error {
	cmd, err := hass.ParseLightCommand(payload)
	if err != nil {
		return err
	}

	if !cmd.On {
		return model.TurnOff()
	}

	if cmd.HasColor {
		color, ok := model.(colorControls)
		if !ok {
			return fmt.Errorf("%w: colour on a legacy-generation light", ErrUnsupportedOperation)
		}
		brightness := color.BrightnessPercent()
		if cmd.HasBrightness {
			brightness = hass.BrightnessToPercent(cmd.Brightness)
		}
		return color.SetColor(cmd.Color.R, cmd.Color.G, cmd.Color.B, cmd.Color.W, brightness)
	}

	if cmd.HasBrightness {
		return model.SetBrightnessPercent(hass.BrightnessToPercent(cmd.Brightness))
	}

	return model.TurnOn()
}

// applyHassSoundCommand maps an ON/OFF switch command to the legacy
// sound toggle.
func (b *Bridge) applyHassSoundCommand(model restore.Device, payload []byte) error {
	sound, err := requireSoundControls(model)
	if err != nil {
		return err
	}
	on, err := hass.ParseSwitchCommand(payload)
	if err != nil {
		return err
	}
	return sound.SetSoundEnabled(on)
}

// applyHassNumberCommand maps a number command to a legacy setter.
func (b *Bridge) applyHassNumberCommand(model restore.Device, payload []byte, apply func(soundControls, float64) error) error {
	sound, err := requireSoundControls(model)
	if err != nil {
		return err
	}
	v, err := hass.ParseNumberCommand(payload)
	if err != nil {
		return err
	}
	return apply(sound, v)
}
