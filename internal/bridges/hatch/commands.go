package hatchbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/hatch-bridge/internal/restore"
)

// soundControls is the legacy-generation surface beyond the common
// Device interface. Satisfied by *restore.LegacyRestore.
type soundControls interface {
	SetSoundEnabled(enabled bool) error
	SetVolumePercent(percent float64) error
	SetColorID(colorID int) error
	SetColorIntensityRaw(raw int) error
	StartRoutine(step int) error
	StopPlayback() error
	IsSoundOn() bool
	VolumePercent() float64
	ColorID() int
	BrightnessPercent() float64
}

// colorControls is the IoT-generation surface beyond the common Device
// interface. Satisfied by *restore.IoTRestore.
type colorControls interface {
	SetColor(red, green, blue, white int, brightnessPercent float64) error
	RGBW() (red, green, blue, white int)
	BrightnessPercent() float64
}

// handleCommandMessage processes a command from the local bus.
// Every command gets an ack, accepted or failed.
func (b *Bridge) handleCommandMessage(topic string, payload []byte) error {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err)
		b.health.CountError()
		return nil // Malformed payload carries no command ID to ack.
	}

	// The topic's trailing segment is authoritative for the target.
	if thing := commandTarget(topic); thing != "" {
		cmd.DeviceID = thing
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command", cmd.Command)

	start := time.Now()
	err := b.executeCommand(cmd)
	b.health.CountCommand()

	if b.telemetry != nil {
		b.telemetry.WriteCommandLatency(cmd.DeviceID, cmd.Command, time.Since(start))
	}

	if err != nil {
		b.publishAck(NewAckError(cmd, ackCode(err), err.Error()))
		b.health.CountError()
		return nil // Failure is reported via the ack, not the subscription.
	}

	b.publishAck(NewAckMessage(cmd, AckAccepted))
	return nil
}

// executeCommand applies a command to the target model.
func (b *Bridge) executeCommand(cmd CommandMessage) error {
	model, ok := b.model(cmd.DeviceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, cmd.DeviceID)
	}

	switch cmd.Command {
	case "turn_on":
		return model.TurnOn()

	case "turn_off":
		return model.TurnOff()

	case "set_brightness":
		percent, err := paramFloat(cmd.Parameters, "brightness", 0, 100)
		if err != nil {
			return err
		}
		return model.SetBrightnessPercent(percent)

	case "set_color":
		return b.executeSetColor(model, cmd.Parameters)

	case "set_sound":
		sound, err := requireSoundControls(model)
		if err != nil {
			return err
		}
		enabled, err := paramBool(cmd.Parameters, "enabled")
		if err != nil {
			return err
		}
		return sound.SetSoundEnabled(enabled)

	case "set_volume":
		sound, err := requireSoundControls(model)
		if err != nil {
			return err
		}
		volume, err := paramFloat(cmd.Parameters, "volume", 0, 100)
		if err != nil {
			return err
		}
		return sound.SetVolumePercent(volume)

	case "set_color_id":
		sound, err := requireSoundControls(model)
		if err != nil {
			return err
		}
		colorID, err := paramInt(cmd.Parameters, "color_id", 0, 65535)
		if err != nil {
			return err
		}
		return sound.SetColorID(colorID)

	case "set_color_intensity":
		sound, err := requireSoundControls(model)
		if err != nil {
			return err
		}
		raw, err := paramInt(cmd.Parameters, "intensity", 0, 65535)
		if err != nil {
			return err
		}
		return sound.SetColorIntensityRaw(raw)

	case "start_routine":
		sound, err := requireSoundControls(model)
		if err != nil {
			return err
		}
		step, err := paramInt(cmd.Parameters, "step", 1, 100)
		if err != nil {
			return err
		}
		return sound.StartRoutine(step)

	case "stop_playback":
		sound, err := requireSoundControls(model)
		if err != nil {
			return err
		}
		return sound.StopPlayback()

	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Command)
	}
}

// executeSetColor writes a custom colour to an IoT-generation device.
// Absent brightness keeps the device's current level.
func (b *Bridge) executeSetColor(model restore.Device, params map[string]any) error {
	color, ok := model.(colorControls)
	if !ok {
		return fmt.Errorf("%w: set_color needs an IoT-generation device", ErrUnsupportedOperation)
	}

	red, err := paramInt(params, "red", 0, 255)
	if err != nil {
		return err
	}
	green, err := paramInt(params, "green", 0, 255)
	if err != nil {
		return err
	}
	blue, err := paramInt(params, "blue", 0, 255)
	if err != nil {
		return err
	}
	white, err := paramInt(params, "white", 0, 255)
	if err != nil {
		return err
	}

	brightness := color.BrightnessPercent()
	if _, present := params["brightness"]; present {
		brightness, err = paramFloat(params, "brightness", 0, 100)
		if err != nil {
			return err
		}
	}

	return color.SetColor(red, green, blue, white, brightness)
}

// publishAck publishes a command acknowledgment.
func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}

	topic := b.topics.BridgeAck(Protocol, ack.DeviceID)
	if err := b.mqtt.Publish(topic, payload, 1, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// requireSoundControls asserts the legacy-generation surface.
func requireSoundControls(model restore.Device) (soundControls, error) {
	sound, ok := model.(soundControls)
	if !ok {
		return nil, fmt.Errorf("%w: legacy-generation device required", ErrUnsupportedOperation)
	}
	return sound, nil
}

// commandTarget extracts the thing name from a command topic.
func commandTarget(topic string) string {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 || idx+1 >= len(topic) {
		return ""
	}
	return topic[idx+1:]
}

// ackCode maps an execution error to an ack error code.
func ackCode(err error) string {
	switch {
	case errors.Is(err, ErrUnknownDevice):
		return ErrCodeUnknownDevice
	case errors.Is(err, ErrUnknownCommand):
		return ErrCodeInvalidCommand
	case errors.Is(err, ErrInvalidParameters):
		return ErrCodeInvalidParameters
	case errors.Is(err, ErrUnsupportedOperation):
		return ErrCodeUnsupported
	case errors.Is(err, ErrNoSession):
		return ErrCodeCloudUnavailable
	default:
		return ErrCodeCloudUnavailable
	}
}

// paramFloat extracts a bounded numeric parameter.
func paramFloat(params map[string]any, key string, min, max float64) (float64, error) {
	raw, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q", ErrInvalidParameters, key)
	}

	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case int:
		v = float64(n)
	default:
		return 0, fmt.Errorf("%w: %q must be a number", ErrInvalidParameters, key)
	}

	if v < min || v > max {
		return 0, fmt.Errorf("%w: %q must be %v-%v, got %v", ErrInvalidParameters, key, min, max, v)
	}
	return v, nil
}

// paramInt extracts a bounded integer parameter.
func paramInt(params map[string]any, key string, min, max int) (int, error) {
	v, err := paramFloat(params, key, float64(min), float64(max))
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// paramBool extracts a boolean parameter.
func paramBool(params map[string]any, key string) (bool, error) {
	raw, ok := params[key]
	if !ok {
		return false, fmt.Errorf("%w: missing %q", ErrInvalidParameters, key)
	}
	v, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q must be a boolean", ErrInvalidParameters, key)
	}
	return v, nil
}
