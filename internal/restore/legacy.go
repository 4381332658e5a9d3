package restore

// Factory defaults reported by legacy Restore hardware before any app
// configuration. Used until the first shadow document supplies real
// values so persist-while-off writes never zero the device.
const (
	defaultColorID        = 229
	defaultColorIntensity = 32767
	defaultSoundID        = 10040
	defaultSoundVolume    = 32767
)

// Playback states the legacy firmware reports in content.playing.
const (
	PlayingNone    = "none"
	PlayingRemote  = "remote"
	PlayingRoutine = "routine"
)

// LegacyRestore models the first-generation Restore (product "restore").
//
// The firmware has no standalone light switch: light and sound run only
// while content.playing is "remote" (or "routine"). Turning either on
// therefore publishes a full remote-state document carrying BOTH the
// colour and sound blocks; turning the last one off drops playback back
// to "none". Colour id, intensity, sound id and volume survive across
// off periods via dedicated persist-while-off writes.
type LegacyRestore struct {
	subscriber

	currentPlaying string
	colorEnabled   bool
	colorID        int
	colorIntensity int
	soundEnabled   bool
	soundID        int
	soundVolume    int

	// Firmware reports sound.v=0 while sound is disabled; remember the
	// last audible volume so enabling restores it.
	lastNonzeroVolume int
}

// NewLegacyRestore constructs a legacy Restore model.
func NewLegacyRestore(thingName, name, mac, product string, writer ShadowWriter) *LegacyRestore {
	return &LegacyRestore{
		subscriber:        newSubscriber(thingName, name, mac, product, writer),
		currentPlaying:    PlayingNone,
		colorID:           defaultColorID,
		colorIntensity:    defaultColorIntensity,
		soundID:           defaultSoundID,
		soundVolume:       defaultSoundVolume,
		lastNonzeroVolume: defaultSoundVolume,
	}
}

// Generation returns GenerationLegacy.
func (d *LegacyRestore) Generation() string { return GenerationLegacy }

// ApplyState merges a reported-state document into the model. Absent
// fields keep their previous values; legacy shadows are usually
// partial.
func (d *LegacyRestore) ApplyState(doc map[string]interface{}) {
	d.mu.Lock()
	d.mergeCommon(doc)
	if playing, ok := lookupString(doc, "content.playing"); ok {
		d.currentPlaying = playing
	}
	if enabled, ok := lookupBool(doc, "color.enabled"); ok {
		d.colorEnabled = enabled
	}
	if id, ok := lookupInt(doc, "color.id"); ok {
		d.colorID = id
	}
	if intensity, ok := lookupInt(doc, "color.i"); ok {
		d.colorIntensity = intensity
	}
	if enabled, ok := lookupBool(doc, "sound.enabled"); ok {
		d.soundEnabled = enabled
	}
	if id, ok := lookupInt(doc, "sound.id"); ok {
		d.soundID = id
	}
	if volume, ok := lookupInt(doc, "sound.v"); ok {
		d.soundVolume = volume
		if volume > 0 {
			d.lastNonzeroVolume = volume
		}
	}
	d.mu.Unlock()

	d.publishUpdates()
}

// IsOn reports whether the light is on.
func (d *LegacyRestore) IsOn() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.colorEnabled
}

// IsSoundOn reports whether the sound machine is playing.
func (d *LegacyRestore) IsSoundOn() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.soundEnabled
}

// CurrentPlaying returns the firmware playback state ("none", "remote"
// or "routine").
func (d *LegacyRestore) CurrentPlaying() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.currentPlaying
}

// ColorID returns the active preset colour id.
func (d *LegacyRestore) ColorID() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.colorID
}

// BrightnessPercent returns the light intensity as 0-100.
func (d *LegacyRestore) BrightnessPercent() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return percentFromRaw(d.colorIntensity)
}

// VolumePercent returns the sound volume as 0-100.
func (d *LegacyRestore) VolumePercent() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return percentFromRaw(d.soundVolume)
}

// TurnOn enables the light, preserving the sound toggle.
func (d *LegacyRestore) TurnOn() error {
	d.mu.RLock()
	soundEnabled := d.soundEnabled
	d.mu.RUnlock()
	return d.applyRemoteState(true, soundEnabled)
}

// TurnOff disables the light, preserving the sound toggle.
func (d *LegacyRestore) TurnOff() error {
	d.mu.RLock()
	soundEnabled := d.soundEnabled
	d.mu.RUnlock()
	return d.applyRemoteState(false, soundEnabled)
}

// SetSoundEnabled toggles the sound machine. Enabling with a zero
// volume first restores the last audible volume.
func (d *LegacyRestore) SetSoundEnabled(enabled bool) error {
	d.mu.Lock()
	if enabled && d.soundVolume <= 0 {
		d.soundVolume = d.lastNonzeroVolume
	}
	colorEnabled := d.colorEnabled
	d.mu.Unlock()
	return d.applyRemoteState(colorEnabled, enabled)
}

// SetBrightnessPercent sets light intensity. Zero percent turns the
// light off; any other value turns it on.
func (d *LegacyRestore) SetBrightnessPercent(percent float64) error {
	raw := rawFromPercent(percent)

	d.mu.Lock()
	d.colorIntensity = raw
	d.colorEnabled = raw > 0
	colorEnabled := d.colorEnabled
	soundEnabled := d.soundEnabled
	d.mu.Unlock()

	return d.applyRemoteState(colorEnabled, soundEnabled)
}

// SetVolumePercent sets sound volume. While everything is off the
// preferred volume is persisted without starting playback.
func (d *LegacyRestore) SetVolumePercent(percent float64) error {
	raw := rawFromPercent(percent)

	d.mu.Lock()
	d.soundVolume = raw
	if raw > 0 {
		d.lastNonzeroVolume = raw
	}
	colorEnabled := d.colorEnabled
	soundEnabled := d.soundEnabled
	soundID := d.soundID
	d.mu.Unlock()

	if colorEnabled || soundEnabled {
		return d.applyRemoteState(colorEnabled, soundEnabled)
	}

	return d.writeDesired(map[string]interface{}{
		"content": stoppedContent(),
		"sound": map[string]interface{}{
			"enabled": false,
			"id":      soundID,
			"v":       raw,
		},
	})
}

// SetColorID selects a preset colour. While everything is off the
// choice is persisted without lighting up.
func (d *LegacyRestore) SetColorID(colorID int) error {
	if colorID < 0 {
		colorID = 0
	}

	d.mu.Lock()
	d.colorID = colorID
	colorEnabled := d.colorEnabled
	soundEnabled := d.soundEnabled
	intensity := d.colorIntensity
	d.mu.Unlock()

	if colorEnabled || soundEnabled {
		return d.applyRemoteState(colorEnabled, soundEnabled)
	}

	return d.writeDesired(map[string]interface{}{
		"content": stoppedContent(),
		"color": map[string]interface{}{
			"enabled": false,
			"id":      colorID,
			"i":       intensity,
		},
	})
}

// SetColorIntensityRaw sets intensity on the device's native 0-65535
// scale, persisting while off like SetColorID.
func (d *LegacyRestore) SetColorIntensityRaw(raw int) error {
	if raw < 0 {
		raw = 0
	}
	if raw > 65535 {
		raw = 65535
	}

	d.mu.Lock()
	d.colorIntensity = raw
	colorEnabled := d.colorEnabled
	soundEnabled := d.soundEnabled
	colorID := d.colorID
	d.mu.Unlock()

	if colorEnabled || soundEnabled {
		return d.applyRemoteState(colorEnabled, soundEnabled)
	}

	return d.writeDesired(map[string]interface{}{
		"content": stoppedContent(),
		"color": map[string]interface{}{
			"enabled": false,
			"id":      colorID,
			"i":       raw,
		},
	})
}

// StartRoutine starts the device's configured bedtime routine at the
// given step.
func (d *LegacyRestore) StartRoutine(step int) error {
	if step < 1 {
		step = 1
	}
	return d.writeDesired(map[string]interface{}{
		"content": map[string]interface{}{
			"playing": PlayingRoutine,
			"paused":  false,
			"offset":  0,
			"step":    step,
		},
	})
}

// StopPlayback stops any playback (routine or remote) outright.
func (d *LegacyRestore) StopPlayback() error {
	return d.writeDesired(map[string]interface{}{
		"content": stoppedContent(),
	})
}

// applyRemoteState publishes the full remote-state document. When
// either feature is enabled playback must be "remote" with both blocks
// present; when both are off playback drops to "none".
func (d *LegacyRestore) applyRemoteState(colorEnabled, soundEnabled bool) error {
	d.mu.RLock()
	colorID := d.colorID
	intensity := d.colorIntensity
	soundID := d.soundID
	volume := d.soundVolume
	d.mu.RUnlock()

	if colorEnabled || soundEnabled {
		return d.writeDesired(map[string]interface{}{
			"content": map[string]interface{}{
				"playing": PlayingRemote,
				"paused":  false,
				"offset":  0,
				"step":    0,
			},
			"color": map[string]interface{}{
				"enabled": colorEnabled,
				"id":      colorID,
				"i":       intensity,
			},
			"sound": map[string]interface{}{
				"enabled": soundEnabled,
				"id":      soundID,
				"v":       volume,
			},
		})
	}

	return d.writeDesired(map[string]interface{}{
		"content": stoppedContent(),
		"color":   map[string]interface{}{"enabled": false},
		"sound":   map[string]interface{}{"enabled": false},
	})
}

// stoppedContent is the content block that halts playback.
func stoppedContent() map[string]interface{} {
	return map[string]interface{}{
		"playing": PlayingNone,
		"paused":  false,
		"offset":  0,
		"step":    0,
	}
}

// State projects the model for the local state topic.
func (d *LegacyRestore) State() map[string]interface{} {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return map[string]interface{}{
		"generation":         GenerationLegacy,
		"online":             d.online,
		"firmware_version":   d.firmware,
		"playing":            d.currentPlaying,
		"is_on":              d.colorEnabled,
		"color_id":           d.colorID,
		"brightness_percent": percentFromRaw(d.colorIntensity),
		"sound_on":           d.soundEnabled,
		"sound_id":           d.soundID,
		"volume_percent":     percentFromRaw(d.soundVolume),
	}
}
