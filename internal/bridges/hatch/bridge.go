package hatchbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/hatch-bridge/internal/device"
	"github.com/nerrad567/hatch-bridge/internal/hass"
	"github.com/nerrad567/hatch-bridge/internal/hatch"
	"github.com/nerrad567/hatch-bridge/internal/infrastructure/config"
	"github.com/nerrad567/hatch-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/hatch-bridge/internal/restore"
)

// bridgeVersion is reported in health messages.
// TODO: inject from build once a release pipeline exists.
const bridgeVersion = "1.0.0"

// Logger is the minimal logging surface the bridge needs.
// Compatible with logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LocalMQTT is the local-broker surface the bridge needs.
// Satisfied by *mqtt.Client; narrowed for testability.
type LocalMQTT interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// DeviceRegistry persists discovered devices and their projected state.
// Satisfied by *device.Registry. Optional — if nil, the bridge runs
// without persistence.
type DeviceRegistry interface {
	UpsertDiscovered(ctx context.Context, d *device.Device) error
	SetDeviceState(ctx context.Context, id string, state device.State) error
	SetDeviceHealth(ctx context.Context, id string, status device.HealthStatus) error
}

// HistoryRecorder appends device state snapshots to the history table.
// Satisfied by the device package's SQLite history repository. Optional.
type HistoryRecorder interface {
	RecordStateChange(ctx context.Context, deviceID string, state device.State, source string) error
}

// Telemetry mirrors bridge activity into the time-series store.
// Satisfied by *influxdb.Client. Optional.
type Telemetry interface {
	WriteDeviceState(deviceID, product string, isOn bool, brightnessPercent float64)
	WriteCommandLatency(deviceID, command string, latency time.Duration)
	WriteSessionEvent(event string, durationSeconds float64)
}

// Bridge orchestrates the Hatch cloud session and translates between
// device shadows and the local MQTT bus. It handles:
//   - The session lifecycle: bootstrap, scheduled refresh before
//     credential expiry, rebuild after connection loss
//   - Shadow documents in, retained state messages out
//   - Local commands in, shadow writes and acks out
//   - Home Assistant discovery and entity topics (when enabled)
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg   config.HatchConfig
	haCfg config.HomeAssistantConfig

	cloud     CloudClient
	mqtt      LocalMQTT
	dial      Dialer
	registry  DeviceRegistry  // optional
	history   HistoryRecorder // optional
	telemetry Telemetry       // optional
	health    *HealthReporter
	topics    mqtt.Topics

	// Device models for the current session, keyed by thing name.
	modelsMu sync.RWMutex
	models   map[string]restore.Device

	// Current session (nil between sessions)
	sessMu sync.RWMutex
	sess   *session

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Hatch is the cloud account and session configuration.
	Hatch config.HatchConfig

	// HomeAssistant toggles discovery publishing and entity topics.
	HomeAssistant config.HomeAssistantConfig

	// Cloud is the Hatch cloud client.
	Cloud CloudClient

	// MQTT is the local broker client.
	MQTT LocalMQTT

	// Dial overrides the device-gateway dialer (tests only).
	Dial Dialer

	// Registry is optional device persistence.
	Registry DeviceRegistry

	// History is optional state history persistence.
	History HistoryRecorder

	// Telemetry is optional time-series mirroring.
	Telemetry Telemetry

	// Logger is optional structured logging.
	Logger Logger

	// HealthInterval overrides the 30s health reporting interval.
	HealthInterval time.Duration
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Cloud == nil {
		return nil, fmt.Errorf("cloud client is required")
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	dial := opts.Dial
	if dial == nil {
		dial = defaultDialer
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:       opts.Hatch,
		haCfg:     opts.HomeAssistant,
		cloud:     opts.Cloud,
		mqtt:      opts.MQTT,
		dial:      dial,
		registry:  opts.Registry,  // May be nil (optional)
		history:   opts.History,   // May be nil (optional)
		telemetry: opts.Telemetry, // May be nil (optional)
		models:    make(map[string]restore.Device),
		done:      make(chan struct{}),
		ctx:       ctx,
		ctxCancel: ctxCancel,
		logger:    opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  Protocol,
		Version:   bridgeVersion,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTT,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start begins bridge operation: subscribes to the local command
// topics, starts health reporting, and launches the session loop.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	commandTopic := fmt.Sprintf("%s/command/%s/+", mqtt.TopicPrefixBridge, Protocol)
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleCommandMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	if b.haCfg.Enabled {
		haTopic := hass.AllCommandTopics()
		if err := b.mqtt.Subscribe(haTopic, 1, b.handleHassCommand); err != nil {
			return fmt.Errorf("subscribe to hass commands: %w", err)
		}
		b.logInfo("subscribed to hass commands", "topic", haTopic)
	}

	b.health.Start(ctx)

	b.wg.Add(1)
	go b.sessionLoop()

	b.logInfo("bridge started")
	return nil
}

// Stop gracefully shuts down the bridge: tears down the cloud session,
// stops health reporting, and waits for in-flight work.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.wg.Wait()

		b.teardownSession()
		b.health.Stop()

		b.logInfo("bridge stopped")
	})
}

// sessionLoop owns the cloud session lifecycle. Each iteration
// bootstraps a session, wires the devices, and then waits for whichever
// comes first: shutdown, connection loss, or the refresh point one
// margin before credential expiry. Failed bootstraps retry on the
// configured interval without crashing the daemon.
func (b *Bridge) sessionLoop() {
	defer b.wg.Done()

	for {
		start := time.Now()
		sess, err := b.establishSession(b.ctx)
		if err != nil {
			if b.ctx.Err() != nil {
				return
			}
			b.logError("session bootstrap failed", err)
			b.health.CountError()
			b.writeSessionEvent("bootstrap_failed", time.Since(start).Seconds())

			select {
			case <-b.done:
				return
			case <-time.After(b.cfg.GetRetryInterval()):
				continue
			}
		}

		b.installSession(sess)
		b.writeSessionEvent("established", time.Since(start).Seconds())
		b.health.SetSession(true, sess.established, sess.expiry)

		delay := refreshDelay(sess.expiry, b.cfg.GetRefreshMargin())
		b.logInfo("session established",
			"devices", len(sess.devices),
			"credential_expiry", sess.expiry.Format(time.RFC3339),
			"refresh_in", delay.String())

		refresh := time.NewTimer(delay)
		select {
		case <-b.done:
			refresh.Stop()
			return
		case err := <-sess.lost:
			refresh.Stop()
			b.logError("device gateway connection lost", err)
			b.health.CountError()
			b.writeSessionEvent("connection_lost", time.Since(sess.established).Seconds())
		case <-refresh.C:
			b.writeSessionEvent("refresh", time.Since(sess.established).Seconds())
		}

		b.health.SetSession(false, time.Time{}, time.Time{})
		b.teardownSession()
	}
}

// installSession wires the freshly fetched devices: builds a model per
// supported product, subscribes its shadow topics, requests the initial
// shadow document, and persists/announces the discovery.
func (b *Bridge) installSession(sess *session) {
	b.sessMu.Lock()
	b.sess = sess
	b.sessMu.Unlock()

	// Fresh session replaces any models from the previous one.
	b.modelsMu.Lock()
	b.models = make(map[string]restore.Device)
	b.modelsMu.Unlock()

	announced := make([]DiscoveredDevice, 0, len(sess.devices))

	for _, row := range sess.devices {
		if !row.Valid() {
			b.logWarn("skipping partial device row", "thing_name", row.ThingName)
			continue
		}
		if !restore.SupportedProduct(row.Product) {
			b.logDebug("skipping unsupported product",
				"thing_name", row.ThingName, "product", row.Product)
			continue
		}

		model, err := restore.New(row.Product, row.ThingName, row.Name, row.MACAddress, sess.shadow)
		if err != nil {
			b.logError("failed to build device model", err)
			continue
		}

		model.OnUpdate(func() { b.publishDeviceState(model) })

		// The model must be reachable by handleShadowState before the
		// shadow get goes out: the get/accepted reply can arrive while
		// the rest of this loop is still subscribing other devices.
		b.modelsMu.Lock()
		b.models[row.ThingName] = model
		b.modelsMu.Unlock()

		if err := sess.shadow.SubscribeShadow(row.ThingName, b.handleShadowState); err != nil {
			b.logError("shadow subscribe failed", err)
			b.health.CountError()
			b.modelsMu.Lock()
			delete(b.models, row.ThingName)
			b.modelsMu.Unlock()
			continue
		}
		if err := sess.shadow.RequestShadow(row.ThingName); err != nil {
			b.logError("shadow get failed", err)
			b.health.CountError()
		}

		announced = append(announced, DiscoveredDevice{
			DeviceID:        row.ThingName,
			Name:            row.Name,
			Product:         row.Product,
			Generation:      model.Generation(),
			MAC:             row.MACAddress,
			FirmwareVersion: row.FirmwareVersion,
			Capabilities:    device.CapabilitiesForGeneration(model.Generation()),
		})

		b.persistDiscovered(row, model.Generation())
		if b.haCfg.Enabled {
			b.publishHassDiscovery(row, model.Generation())
		}
	}

	b.modelsMu.RLock()
	managed := len(b.models)
	b.modelsMu.RUnlock()
	b.health.SetDeviceCount(managed)

	b.publishDiscovery(announced)
}

// teardownSession closes the current device-gateway connection and
// marks every managed device offline.
func (b *Bridge) teardownSession() {
	b.sessMu.Lock()
	sess := b.sess
	b.sess = nil
	b.sessMu.Unlock()

	if sess == nil {
		return
	}
	sess.close()

	if b.registry != nil {
		b.modelsMu.RLock()
		ids := make([]string, 0, len(b.models))
		for id := range b.models {
			ids = append(ids, id)
		}
		b.modelsMu.RUnlock()

		for _, id := range ids {
			if err := b.registry.SetDeviceHealth(context.Background(), id, device.HealthStatusOffline); err != nil {
				b.logDebug("registry health update skipped", "device", id, "reason", err.Error())
			}
		}
	}
}

// model returns the device model for a thing name, if managed.
func (b *Bridge) model(thingName string) (restore.Device, bool) {
	b.modelsMu.RLock()
	defer b.modelsMu.RUnlock()
	m, ok := b.models[thingName]
	return m, ok
}

// handleShadowState receives normalised reported-state documents from
// the shadow client and merges them into the matching model. The model
// fires its update callback, which publishes the projected state.
func (b *Bridge) handleShadowState(thingName string, reported map[string]interface{}) {
	model, ok := b.model(thingName)
	if !ok {
		return
	}
	model.ApplyState(reported)
}

// publishDeviceState projects a model onto the local bus and the
// persistence/telemetry sinks. Runs on every model update.
func (b *Bridge) publishDeviceState(model restore.Device) {
	state := model.State()
	thingName := model.ThingName()

	msg := NewStateMessage(thingName, state)
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state", err)
		b.health.CountError()
		return
	}

	if err := b.mqtt.Publish(b.topics.BridgeState(Protocol, thingName), payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
		b.health.CountError()
		return
	}
	b.health.CountStatePublished()

	if b.registry != nil {
		if err := b.registry.SetDeviceState(b.ctx, thingName, device.State(state)); err != nil {
			b.logDebug("registry state update skipped", "device", thingName, "reason", err.Error())
		} else {
			health := device.HealthStatusOffline
			if model.IsOnline() {
				health = device.HealthStatusOnline
			}
			if err := b.registry.SetDeviceHealth(b.ctx, thingName, health); err != nil {
				b.logDebug("registry health update skipped", "device", thingName, "reason", err.Error())
			}
		}
	}

	if b.history != nil {
		if err := b.history.RecordStateChange(b.ctx, thingName, device.State(state), "shadow"); err != nil {
			b.logDebug("history record skipped", "device", thingName, "reason", err.Error())
		}
	}

	if b.telemetry != nil {
		b.telemetry.WriteDeviceState(thingName, model.Product(), model.IsOn(), stateFloat(state, "brightness_percent"))
	}

	if b.haCfg.Enabled {
		b.publishHassStates(model, state)
	}
}

// persistDiscovered upserts a discovered device into the registry.
// Identity fields follow the cloud; locally projected state survives.
func (b *Bridge) persistDiscovered(row hatch.IoTDevice, generation string) {
	if b.registry == nil {
		return
	}

	d := &device.Device{
		ID:              row.ThingName,
		Name:            row.Name,
		Product:         row.Product,
		Generation:      generation,
		MAC:             row.MACAddress,
		FirmwareVersion: row.FirmwareVersion,
		Capabilities:    device.CapabilitiesForGeneration(generation),
	}
	if err := b.registry.UpsertDiscovered(b.ctx, d); err != nil {
		b.logError("registry upsert failed", err)
		b.health.CountError()
	}
}

// publishDiscovery announces the discovered device set on the local bus.
func (b *Bridge) publishDiscovery(devices []DiscoveredDevice) {
	msg := DiscoveryMessage{
		Timestamp: time.Now().UTC(),
		Bridge:    Protocol,
		Devices:   devices,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal discovery", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.BridgeDiscovery(Protocol), payload, 1, true); err != nil {
		b.logError("failed to publish discovery", err)
	}
}

// writeSessionEvent mirrors a session lifecycle event to telemetry.
func (b *Bridge) writeSessionEvent(event string, seconds float64) {
	if b.telemetry != nil {
		b.telemetry.WriteSessionEvent(event, seconds)
	}
}

// BridgeMetrics contains metrics data for the API metrics endpoint.
type BridgeMetrics struct {
	SessionConnected  bool
	Status            string
	StatesPublished   uint64
	CommandsProcessed uint64
	Errors            uint64
	DevicesManaged    int
}

// GetMetrics returns current bridge metrics for the API metrics endpoint.
func (b *Bridge) GetMetrics() BridgeMetrics {
	b.sessMu.RLock()
	sess := b.sess
	b.sessMu.RUnlock()

	connected := sess != nil && sess.conn.IsConnected()
	status := "disconnected"
	if connected {
		status = "healthy"
	}

	b.modelsMu.RLock()
	deviceCount := len(b.models)
	b.modelsMu.RUnlock()

	stats := b.health.Snapshot()
	return BridgeMetrics{
		SessionConnected:  connected,
		Status:            status,
		StatesPublished:   stats.StatesPublished,
		CommandsProcessed: stats.CommandsProcessed,
		Errors:            stats.Errors,
		DevicesManaged:    deviceCount,
	}
}

// Health exposes the health reporter for LWT wiring at connect time.
func (b *Bridge) Health() *HealthReporter {
	return b.health
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

// stateFloat reads a float value from a projected state map.
func stateFloat(state map[string]interface{}, key string) float64 {
	switch v := state[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
