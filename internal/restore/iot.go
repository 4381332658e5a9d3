package restore

// Defaults used by TurnOn before the light has ever been seen lit:
// warm mid-grey at half brightness, matching the vendor app's reset
// colour.
var defaultLightColors = lightColors{red: 127, green: 127, blue: 127, white: 127, brightnessPercent: 50}

type lightColors struct {
	red, green, blue, white int
	brightnessPercent       float64
}

// IoTRestore models the second-generation Restore hardware (products
// restoreIot, restoreV4, restoreV5).
//
// Unlike the legacy firmware these devices expose a direct RGBW colour
// block under current.color and the light is "on" exactly when any
// channel is nonzero. Colour writes go through the custom-colour shadow
// document with playing="remote".
type IoTRestore struct {
	subscriber

	currentPlaying string
	red            int
	green          int
	blue           int
	white          int
	brightnessRaw  int

	// Channels as of the last time the light was seen on, so a bare
	// TurnOn can restore the previous colour.
	lastOn lightColors
}

// NewIoTRestore constructs an IoT-generation Restore model.
func NewIoTRestore(thingName, name, mac, product string, writer ShadowWriter) *IoTRestore {
	return &IoTRestore{
		subscriber:     newSubscriber(thingName, name, mac, product, writer),
		currentPlaying: PlayingNone,
		lastOn:         defaultLightColors,
	}
}

// Generation returns GenerationIoT.
func (d *IoTRestore) Generation() string { return GenerationIoT }

// ApplyState merges a reported-state document into the model.
func (d *IoTRestore) ApplyState(doc map[string]interface{}) {
	d.mu.Lock()
	d.mergeCommon(doc)
	if playing, ok := lookupString(doc, "current.playing"); ok {
		d.currentPlaying = playing
	}
	if r, ok := lookupInt(doc, "current.color.r"); ok {
		d.red = r
	}
	if g, ok := lookupInt(doc, "current.color.g"); ok {
		d.green = g
	}
	if b, ok := lookupInt(doc, "current.color.b"); ok {
		d.blue = b
	}
	if w, ok := lookupInt(doc, "current.color.w"); ok {
		d.white = w
	}
	if i, ok := lookupInt(doc, "current.color.i"); ok {
		d.brightnessRaw = i
	}
	if d.lightOnLocked() {
		d.lastOn = lightColors{
			red:               d.red,
			green:             d.green,
			blue:              d.blue,
			white:             d.white,
			brightnessPercent: percentFromRaw(d.brightnessRaw),
		}
	}
	d.mu.Unlock()

	d.publishUpdates()
}

// lightOnLocked reports whether any colour channel is lit. Caller holds
// mu.
func (d *IoTRestore) lightOnLocked() bool {
	return d.red != 0 || d.green != 0 || d.blue != 0 || d.white != 0
}

// IsOn reports whether the light is on.
func (d *IoTRestore) IsOn() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lightOnLocked()
}

// CurrentPlaying returns the firmware playback state.
func (d *IoTRestore) CurrentPlaying() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.currentPlaying
}

// RGBW returns the colour channels, each 0-255.
func (d *IoTRestore) RGBW() (red, green, blue, white int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.red, d.green, d.blue, d.white
}

// BrightnessPercent returns the light brightness as 0-100.
func (d *IoTRestore) BrightnessPercent() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return percentFromRaw(d.brightnessRaw)
}

// SetColor writes a custom colour. Channels are 0-255, brightness is
// 0-100.
func (d *IoTRestore) SetColor(red, green, blue, white int, brightnessPercent float64) error {
	return d.writeDesired(map[string]interface{}{
		"current": map[string]interface{}{
			"srId":    0,
			"step":    0,
			"playing": PlayingRemote,
			"color": map[string]interface{}{
				"id":       0,
				"r":        clampChannel(red),
				"g":        clampChannel(green),
				"b":        clampChannel(blue),
				"w":        clampChannel(white),
				"i":        rawFromPercent(brightnessPercent),
				"duration": 0,
				"until":    "indefinite",
			},
		},
	})
}

// TurnOn restores the last colour the light was seen with, or the
// defaults if it has never been on.
func (d *IoTRestore) TurnOn() error {
	d.mu.RLock()
	colors := d.lastOn
	d.mu.RUnlock()
	return d.SetColor(colors.red, colors.green, colors.blue, colors.white, colors.brightnessPercent)
}

// TurnOff zeroes every channel and stops playback.
func (d *IoTRestore) TurnOff() error {
	return d.writeDesired(map[string]interface{}{
		"current": map[string]interface{}{
			"srId":    0,
			"step":    0,
			"playing": PlayingNone,
			"color": map[string]interface{}{
				"id":       0,
				"r":        0,
				"g":        0,
				"b":        0,
				"w":        0,
				"i":        0,
				"duration": 0,
				"until":    "indefinite",
			},
		},
	})
}

// SetBrightnessPercent adjusts brightness, keeping the current colour.
// Zero turns the light off.
func (d *IoTRestore) SetBrightnessPercent(percent float64) error {
	if clampPercent(percent) == 0 {
		return d.TurnOff()
	}

	d.mu.RLock()
	colors := lightColors{red: d.red, green: d.green, blue: d.blue, white: d.white}
	if !d.lightOnLocked() {
		colors = d.lastOn
	}
	d.mu.RUnlock()

	return d.SetColor(colors.red, colors.green, colors.blue, colors.white, percent)
}

// State projects the model for the local state topic.
func (d *IoTRestore) State() map[string]interface{} {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return map[string]interface{}{
		"generation":         GenerationIoT,
		"online":             d.online,
		"firmware_version":   d.firmware,
		"playing":            d.currentPlaying,
		"is_on":              d.lightOnLocked(),
		"red":                d.red,
		"green":              d.green,
		"blue":               d.blue,
		"white":              d.white,
		"brightness_percent": percentFromRaw(d.brightnessRaw),
	}
}

// clampChannel bounds a colour channel to [0,255].
func clampChannel(value int) int {
	if value < 0 {
		return 0
	}
	if value > 255 {
		return 255
	}
	return value
}
