package restore

import "testing"

// fakeWriter captures desired-state writes for assertions.
type fakeWriter struct {
	writes []map[string]interface{}
}

func (f *fakeWriter) UpdateShadow(thingName string, desired map[string]interface{}) (string, error) {
	f.writes = append(f.writes, desired)
	return "token", nil
}

func (f *fakeWriter) last(t *testing.T) map[string]interface{} {
	t.Helper()
	if len(f.writes) == 0 {
		t.Fatal("no shadow write captured")
	}
	return f.writes[len(f.writes)-1]
}

func lastContent(t *testing.T, w *fakeWriter) map[string]interface{} {
	t.Helper()
	content, ok := w.last(t)["content"].(map[string]interface{})
	if !ok {
		t.Fatal("write has no content block")
	}
	return content
}

func newLegacy(w *fakeWriter) *LegacyRestore {
	return NewLegacyRestore("rest-legacy", "Nursery", "aa:bb:cc:dd:ee:ff", "restore", w)
}

func TestLegacyRestore_Defaults(t *testing.T) {
	d := newLegacy(&fakeWriter{})

	if d.IsOn() {
		t.Error("new device must start off")
	}
	if d.ColorID() != 229 {
		t.Errorf("default color id = %d, want 229", d.ColorID())
	}
	if got := d.BrightnessPercent(); got != 50.0 {
		t.Errorf("default brightness = %v, want 50.0", got)
	}
	if got := d.VolumePercent(); got != 50.0 {
		t.Errorf("default volume = %v, want 50.0", got)
	}
	if d.Generation() != GenerationLegacy {
		t.Errorf("generation = %q", d.Generation())
	}
}

func TestLegacyRestore_ApplyState(t *testing.T) {
	d := newLegacy(&fakeWriter{})

	var fired int
	d.OnUpdate(func() { fired++ })

	d.ApplyState(map[string]interface{}{
		"connected":  true,
		"deviceInfo": map[string]interface{}{"f": "3.1.10"},
		"content":    map[string]interface{}{"playing": "remote"},
		"color": map[string]interface{}{
			"enabled": true,
			"id":      float64(101),
			"i":       float64(13107),
		},
		"sound": map[string]interface{}{
			"enabled": true,
			"id":      float64(10015),
			"v":       float64(6553),
		},
	})

	if fired != 1 {
		t.Errorf("update callback fired %d times, want 1", fired)
	}
	if !d.IsOnline() {
		t.Error("device should be online")
	}
	if d.FirmwareVersion() != "3.1.10" {
		t.Errorf("firmware = %q", d.FirmwareVersion())
	}
	if !d.IsOn() || !d.IsSoundOn() {
		t.Error("light and sound should be on")
	}
	if d.CurrentPlaying() != PlayingRemote {
		t.Errorf("playing = %q", d.CurrentPlaying())
	}
	if d.ColorID() != 101 {
		t.Errorf("color id = %d", d.ColorID())
	}
	if got := d.BrightnessPercent(); got != 20.0 {
		t.Errorf("brightness = %v, want 20.0", got)
	}
	if got := d.VolumePercent(); got != 10.0 {
		t.Errorf("volume = %v, want 10.0", got)
	}
}

func TestLegacyRestore_PartialStateKeepsRest(t *testing.T) {
	d := newLegacy(&fakeWriter{})

	d.ApplyState(map[string]interface{}{
		"color": map[string]interface{}{"enabled": true, "id": float64(42)},
	})
	d.ApplyState(map[string]interface{}{
		"sound": map[string]interface{}{"enabled": true},
	})

	if !d.IsOn() || d.ColorID() != 42 {
		t.Error("partial document wiped earlier color state")
	}
	if !d.IsSoundOn() {
		t.Error("sound merge lost")
	}
}

func TestLegacyRestore_TurnOn(t *testing.T) {
	w := &fakeWriter{}
	d := newLegacy(w)

	if err := d.TurnOn(); err != nil {
		t.Fatalf("TurnOn failed: %v", err)
	}

	write := w.last(t)
	if got := lastContent(t, w)["playing"]; got != PlayingRemote {
		t.Errorf("playing = %v, want remote", got)
	}
	color := write["color"].(map[string]interface{})
	if color["enabled"] != true || color["id"] != 229 || color["i"] != 32767 {
		t.Errorf("color block = %v", color)
	}
	// Remote state always carries the sound block too.
	sound := write["sound"].(map[string]interface{})
	if sound["enabled"] != false || sound["id"] != 10040 {
		t.Errorf("sound block = %v", sound)
	}
}

func TestLegacyRestore_TurnOffBothDisabled(t *testing.T) {
	w := &fakeWriter{}
	d := newLegacy(w)
	d.ApplyState(map[string]interface{}{
		"color": map[string]interface{}{"enabled": true},
	})

	if err := d.TurnOff(); err != nil {
		t.Fatalf("TurnOff failed: %v", err)
	}

	write := w.last(t)
	if got := lastContent(t, w)["playing"]; got != PlayingNone {
		t.Errorf("playing = %v, want none", got)
	}
	if write["color"].(map[string]interface{})["enabled"] != false {
		t.Error("color not disabled")
	}
	if write["sound"].(map[string]interface{})["enabled"] != false {
		t.Error("sound not disabled")
	}
}

func TestLegacyRestore_TurnOffKeepsSoundPlaying(t *testing.T) {
	w := &fakeWriter{}
	d := newLegacy(w)
	d.ApplyState(map[string]interface{}{
		"color": map[string]interface{}{"enabled": true},
		"sound": map[string]interface{}{"enabled": true, "v": float64(20000)},
	})

	if err := d.TurnOff(); err != nil {
		t.Fatalf("TurnOff failed: %v", err)
	}

	write := w.last(t)
	if got := lastContent(t, w)["playing"]; got != PlayingRemote {
		t.Errorf("playing = %v, want remote while sound stays on", got)
	}
	if write["color"].(map[string]interface{})["enabled"] != false {
		t.Error("color should be disabled")
	}
	if write["sound"].(map[string]interface{})["enabled"] != true {
		t.Error("sound should stay enabled")
	}
}

func TestLegacyRestore_SoundEnableRestoresVolume(t *testing.T) {
	w := &fakeWriter{}
	d := newLegacy(w)
	// Device was audible at ~30%, then reported v=0 while disabled.
	d.ApplyState(map[string]interface{}{
		"sound": map[string]interface{}{"v": float64(20000)},
	})
	d.ApplyState(map[string]interface{}{
		"sound": map[string]interface{}{"enabled": false, "v": float64(0)},
	})

	if err := d.SetSoundEnabled(true); err != nil {
		t.Fatalf("SetSoundEnabled failed: %v", err)
	}

	sound := w.last(t)["sound"].(map[string]interface{})
	if sound["v"] != 20000 {
		t.Errorf("volume = %v, want last nonzero 20000", sound["v"])
	}
}

func TestLegacyRestore_SetBrightnessZeroTurnsOff(t *testing.T) {
	w := &fakeWriter{}
	d := newLegacy(w)
	d.ApplyState(map[string]interface{}{
		"color": map[string]interface{}{"enabled": true},
	})

	if err := d.SetBrightnessPercent(0); err != nil {
		t.Fatalf("SetBrightnessPercent failed: %v", err)
	}

	if w.last(t)["color"].(map[string]interface{})["enabled"] != false {
		t.Error("zero brightness must disable the light")
	}
	if got := lastContent(t, w)["playing"]; got != PlayingNone {
		t.Errorf("playing = %v, want none", got)
	}
}

func TestLegacyRestore_PersistWhileOff(t *testing.T) {
	tests := []struct {
		name  string
		apply func(d *LegacyRestore) error
		block string
	}{
		{
			name:  "color id",
			apply: func(d *LegacyRestore) error { return d.SetColorID(42) },
			block: "color",
		},
		{
			name:  "intensity",
			apply: func(d *LegacyRestore) error { return d.SetColorIntensityRaw(10000) },
			block: "color",
		},
		{
			name:  "volume",
			apply: func(d *LegacyRestore) error { return d.SetVolumePercent(25) },
			block: "sound",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWriter{}
			d := newLegacy(w)

			if err := tt.apply(d); err != nil {
				t.Fatalf("apply failed: %v", err)
			}

			write := w.last(t)
			if got := lastContent(t, w)["playing"]; got != PlayingNone {
				t.Errorf("playing = %v, persist-while-off must not start playback", got)
			}
			block, ok := write[tt.block].(map[string]interface{})
			if !ok {
				t.Fatalf("write missing %s block: %v", tt.block, write)
			}
			if block["enabled"] != false {
				t.Errorf("%s must stay disabled: %v", tt.block, block)
			}
		})
	}
}

func TestLegacyRestore_SetColorIDWhileOnRepublishes(t *testing.T) {
	w := &fakeWriter{}
	d := newLegacy(w)
	d.ApplyState(map[string]interface{}{
		"color": map[string]interface{}{"enabled": true},
	})

	if err := d.SetColorID(77); err != nil {
		t.Fatalf("SetColorID failed: %v", err)
	}

	write := w.last(t)
	if got := lastContent(t, w)["playing"]; got != PlayingRemote {
		t.Errorf("playing = %v, want remote", got)
	}
	color := write["color"].(map[string]interface{})
	if color["enabled"] != true || color["id"] != 77 {
		t.Errorf("color block = %v", color)
	}
}

func TestLegacyRestore_StartRoutine(t *testing.T) {
	w := &fakeWriter{}
	d := newLegacy(w)

	if err := d.StartRoutine(3); err != nil {
		t.Fatalf("StartRoutine failed: %v", err)
	}

	content := lastContent(t, w)
	if content["playing"] != PlayingRoutine || content["step"] != 3 {
		t.Errorf("content = %v", content)
	}
}

func TestLegacyRestore_State(t *testing.T) {
	d := newLegacy(&fakeWriter{})
	d.ApplyState(map[string]interface{}{
		"connected": true,
		"color":     map[string]interface{}{"enabled": true, "i": float64(65535)},
	})

	state := d.State()
	if state["generation"] != GenerationLegacy {
		t.Errorf("generation = %v", state["generation"])
	}
	if state["is_on"] != true || state["online"] != true {
		t.Errorf("state = %v", state)
	}
	if state["brightness_percent"] != 100.0 {
		t.Errorf("brightness_percent = %v", state["brightness_percent"])
	}
}
