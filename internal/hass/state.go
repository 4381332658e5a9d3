package hass

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/hatch-bridge/internal/device"
)

// BuildLightState projects a device state snapshot into the JSON-schema
// light payload. The snapshot is the map produced by the restore models:
// is_on and brightness_percent for both generations, red/green/blue/white
// for IoT devices.
func BuildLightState(generation string, state map[string]any) LightState {
	ls := LightState{State: PayloadOff}
	if stateBool(state, "is_on") {
		ls.State = PayloadOn
	}
	ls.Brightness = BrightnessToScale(stateFloat(state, "brightness_percent"))
	if generation == device.GenerationIoT {
		ls.ColorMode = ColorModeRGBW
		ls.Color = &LightColor{
			R: stateInt(state, "red"),
			G: stateInt(state, "green"),
			B: stateInt(state, "blue"),
			W: stateInt(state, "white"),
		}
	}
	return ls
}

// MarshalLightState renders a light state payload for publishing.
func MarshalLightState(ls LightState) ([]byte, error) {
	return json.Marshal(ls)
}

// SwitchStatePayload renders an ON/OFF switch state.
func SwitchStatePayload(on bool) string {
	if on {
		return PayloadOn
	}
	return PayloadOff
}

// NumberStatePayload renders a number entity state.
func NumberStatePayload(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// BrightnessToScale converts a 0-100 percent to HA's 0-255 scale.
func BrightnessToScale(percent float64) int {
	if percent <= 0 {
		return 0
	}
	if percent >= 100 {
		return brightnessScale
	}
	return int(percent/100*brightnessScale + 0.5)
}

// BrightnessToPercent converts HA's 0-255 brightness to a percent,
// rounded to one decimal place to match the device projection.
func BrightnessToPercent(brightness int) float64 {
	if brightness <= 0 {
		return 0
	}
	if brightness >= brightnessScale {
		return 100
	}
	p := float64(brightness) / brightnessScale * 100
	return float64(int(p*10+0.5)) / 10
}

// lightCommandWire is the JSON-schema light command as HA sends it.
type lightCommandWire struct {
	State      *string     `json:"state"`
	Brightness *int        `json:"brightness"`
	Color      *LightColor `json:"color"`
}

// ParseLightCommand decodes a JSON-schema light command.
//
// When a colour with a nonzero white channel is present, the Hatch app's
// white offset is folded into the RGB channels so the device renders the
// same hue the app would.
func ParseLightCommand(payload []byte) (LightCommand, error) {
	var wire lightCommandWire
	if err := json.Unmarshal(payload, &wire); err != nil {
		return LightCommand{}, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if wire.State == nil {
		return LightCommand{}, fmt.Errorf("%w: missing state", ErrInvalidCommand)
	}

	cmd := LightCommand{}
	switch strings.ToUpper(*wire.State) {
	case PayloadOn:
		cmd.On = true
	case PayloadOff:
		cmd.On = false
	default:
		return LightCommand{}, fmt.Errorf("%w: state %q", ErrInvalidCommand, *wire.State)
	}

	if wire.Brightness != nil {
		b := *wire.Brightness
		if b < 0 || b > brightnessScale {
			return LightCommand{}, fmt.Errorf("%w: brightness %d out of range", ErrInvalidCommand, b)
		}
		cmd.HasBrightness = true
		cmd.Brightness = b
	}

	if wire.Color != nil {
		c := *wire.Color
		for _, ch := range []int{c.R, c.G, c.B, c.W} {
			if ch < 0 || ch > 255 {
				return LightCommand{}, fmt.Errorf("%w: color channel %d out of range", ErrInvalidCommand, ch)
			}
		}
		cmd.HasColor = true
		cmd.Color = ApplyWhiteOffset(c)
	}

	return cmd, nil
}

// ApplyWhiteOffset reproduces the Hatch app's blend of the white channel
// into RGB. The offset is the white level capped by the headroom left on
// the brightest RGB channel, so no channel overflows 255.
func ApplyWhiteOffset(c LightColor) LightColor {
	if c.W <= 0 {
		return c
	}
	maxRGB := c.R
	if c.G > maxRGB {
		maxRGB = c.G
	}
	if c.B > maxRGB {
		maxRGB = c.B
	}
	offset := c.W
	if headroom := 255 - maxRGB; headroom < offset {
		offset = headroom
	}
	if offset < 0 {
		offset = 0
	}
	c.R += offset
	c.G += offset
	c.B += offset
	return c
}

// ParseSwitchCommand decodes an ON/OFF switch command.
func ParseSwitchCommand(payload []byte) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case PayloadOn:
		return true, nil
	case PayloadOff:
		return false, nil
	default:
		return false, fmt.Errorf("%w: switch payload %q", ErrInvalidCommand, string(payload))
	}
}

// ParseNumberCommand decodes a number entity command. HA publishes the
// value as a bare decimal string.
func ParseNumberCommand(payload []byte) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: number payload %q", ErrInvalidCommand, string(payload))
	}
	return v, nil
}

func stateBool(state map[string]any, key string) bool {
	switch v := state[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	default:
		return false
	}
}

func stateFloat(state map[string]any, key string) float64 {
	switch v := state[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func stateInt(state map[string]any, key string) int {
	switch v := state[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
