package hatchbridge

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/hatch-bridge/internal/infrastructure/mqtt"
)

// HealthReporter publishes bridge health to the local broker at regular
// intervals and on demand.
type HealthReporter struct {
	bridgeID  string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher

	// Session view (updated by the bridge's session loop)
	sessionMu        sync.RWMutex
	sessionConnected bool
	connectedSince   time.Time
	credentialExpiry time.Time

	// Device count (updated after each discovery)
	deviceCount   int
	deviceCountMu sync.RWMutex

	// Operational counters (atomic, bumped from hot paths)
	statesPublished   atomic.Uint64
	commandsProcessed atomic.Uint64
	errorCount        atomic.Uint64

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// HealthPublisher is the local-broker surface the reporter needs.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// BridgeID is the bridge identifier for health messages.
	BridgeID string

	// Version is the bridge software version.
	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher
}

// NewHealthReporter creates a new health reporter.
// Call Start to begin periodic reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval == 0 {
		interval = 30 * time.Second
	}

	return &HealthReporter{
		bridgeID:  cfg.BridgeID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop gracefully stops health reporting and publishes a final
// "stopping" status. Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publishStatus(StatusStopping, "")
	})
}

// SetSession updates the reporter's view of the AWS IoT session.
func (h *HealthReporter) SetSession(connected bool, since, credentialExpiry time.Time) {
	h.sessionMu.Lock()
	h.sessionConnected = connected
	h.connectedSince = since
	h.credentialExpiry = credentialExpiry
	h.sessionMu.Unlock()
}

// SetDeviceCount updates the managed device count.
func (h *HealthReporter) SetDeviceCount(count int) {
	h.deviceCountMu.Lock()
	h.deviceCount = count
	h.deviceCountMu.Unlock()
}

// CountStatePublished bumps the published-state counter.
func (h *HealthReporter) CountStatePublished() { h.statesPublished.Add(1) }

// CountCommand bumps the processed-command counter.
func (h *HealthReporter) CountCommand() { h.commandsProcessed.Add(1) }

// CountError bumps the error counter.
func (h *HealthReporter) CountError() { h.errorCount.Add(1) }

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status during initialization.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(StatusStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// GetLWTPayload returns the Last Will and Testament payload to register
// with the broker at connect time.
func (h *HealthReporter) GetLWTPayload() ([]byte, error) {
	msg := NewLWTMessage(h.bridgeID)
	return json.Marshal(msg)
}

// GetLWTTopic returns the topic for the Last Will and Testament.
func (h *HealthReporter) GetLWTTopic() string {
	return mqtt.Topics{}.BridgeHealth(Protocol)
}

// Snapshot returns the current counters for the metrics endpoint.
func (h *HealthReporter) Snapshot() BridgeStatistics {
	return BridgeStatistics{
		StatesPublished:   h.statesPublished.Load(),
		CommandsProcessed: h.commandsProcessed.Load(),
		Errors:            h.errorCount.Load(),
	}
}

// reportLoop runs the periodic health reporting.
func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (BridgeStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return StatusDegraded, "MQTT disconnected"
	}

	h.sessionMu.RLock()
	connected := h.sessionConnected
	h.sessionMu.RUnlock()

	if !connected {
		return StatusDegraded, "cloud session down"
	}

	return StatusHealthy, ""
}

// publishStatus publishes a health status message (QoS 1, retained).
func (h *HealthReporter) publishStatus(status BridgeStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	h.deviceCountMu.RLock()
	deviceCount := h.deviceCount
	h.deviceCountMu.RUnlock()

	h.sessionMu.RLock()
	connected := h.sessionConnected
	since := h.connectedSince
	expiry := h.credentialExpiry
	h.sessionMu.RUnlock()

	stats := h.Snapshot()
	msg := HealthMessage{
		Bridge:         h.bridgeID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        h.version,
		UptimeSeconds:  int64(time.Since(h.startTime).Seconds()),
		Statistics:     &stats,
		DevicesManaged: deviceCount,
		Reason:         reason,
	}

	session := &SessionStatus{Status: "disconnected"}
	if connected {
		session.Status = "connected"
		if !since.IsZero() {
			s := since
			session.ConnectedSince = &s
		}
		if !expiry.IsZero() {
			e := expiry
			session.CredentialExpiry = &e
		}
	}
	msg.Session = session

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return h.publisher.Publish(h.GetLWTTopic(), payload, 1, true)
}

// logError logs an error if a logger is set.
func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
