package restore

import "sync"

// Device generations. The two Restore hardware families speak different
// shadow dialects and are modelled by separate types.
const (
	GenerationLegacy = "legacy"
	GenerationIoT    = "iot"
)

// ShadowWriter publishes desired-state updates for a thing. Satisfied
// by awsiot.ShadowClient.
type ShadowWriter interface {
	UpdateShadow(thingName string, desired map[string]interface{}) (string, error)
}

// Device is the surface the bridge needs from every Restore model
// regardless of generation. Generation-specific operations (colour
// channels, sound toggle) live on the concrete types.
type Device interface {
	ThingName() string
	Name() string
	MAC() string
	Product() string
	Generation() string
	FirmwareVersion() string
	IsOnline() bool
	IsOn() bool

	// ApplyState merges a (possibly partial) reported-state document
	// into the model and fires update callbacks.
	ApplyState(doc map[string]interface{})

	// OnUpdate registers a callback fired after every state merge.
	OnUpdate(fn func())

	// State projects the model as a flat JSON-ready map for the local
	// state topic.
	State() map[string]interface{}

	TurnOn() error
	TurnOff() error
	SetBrightnessPercent(percent float64) error
}

// subscriber carries the identity, connectivity and callback plumbing
// shared by both device generations.
//
// Thread Safety: mu guards all mutable state on the embedding type as
// well; models take mu themselves around their own fields. Callbacks
// are invoked outside the lock so handlers may call back into the
// model.
type subscriber struct {
	thingName string
	name      string
	mac       string
	product   string

	writer ShadowWriter

	mu        sync.RWMutex
	callbacks []func()
	online    bool
	firmware  string
}

func newSubscriber(thingName, name, mac, product string, writer ShadowWriter) subscriber {
	return subscriber{
		thingName: thingName,
		name:      name,
		mac:       mac,
		product:   product,
		writer:    writer,
	}
}

func (s *subscriber) ThingName() string { return s.thingName }
func (s *subscriber) Name() string      { return s.name }
func (s *subscriber) MAC() string       { return s.mac }
func (s *subscriber) Product() string   { return s.product }

// FirmwareVersion returns the last firmware version the device
// reported, or "" before the first full shadow document.
func (s *subscriber) FirmwareVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.firmware
}

// IsOnline reports the device's cloud connectivity as of the last
// shadow document.
func (s *subscriber) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online
}

// OnUpdate registers a callback fired after every applied state
// document. Callbacks run on the MQTT receive goroutine; keep them
// short.
func (s *subscriber) OnUpdate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

// mergeCommon absorbs the fields both generations share. Caller holds
// mu.
func (s *subscriber) mergeCommon(doc map[string]interface{}) {
	if fw, ok := lookupString(doc, "deviceInfo.f"); ok {
		s.firmware = fw
	}
	if online, ok := lookupBool(doc, "connected"); ok {
		s.online = online
	}
}

// publishUpdates fires registered callbacks with the lock released.
func (s *subscriber) publishUpdates() {
	s.mu.RLock()
	callbacks := make([]func(), len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.mu.RUnlock()

	for _, fn := range callbacks {
		fn()
	}
}

// writeDesired publishes a desired-state update for this thing.
func (s *subscriber) writeDesired(desired map[string]interface{}) error {
	_, err := s.writer.UpdateShadow(s.thingName, desired)
	return err
}

// clampPercent bounds a percentage to [0,100].
func clampPercent(percent float64) float64 {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// rawFromPercent converts a 0-100 percentage to the device's raw
// 0-65535 scale.
func rawFromPercent(percent float64) int {
	return int(clampPercent(percent)/100*65535 + 0.5)
}

// percentFromRaw converts the raw 0-65535 scale to a percentage,
// rounded to one decimal place.
func percentFromRaw(raw int) float64 {
	percent := float64(raw) / 65535 * 100
	return float64(int(percent*10+0.5)) / 10
}
