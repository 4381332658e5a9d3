package hatchbridge

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// fakeHealthPublisher records health publishes.
type fakeHealthPublisher struct {
	mu        sync.Mutex
	published []publishedMessage
	connected bool
}

func (f *fakeHealthPublisher) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMessage{topic, payload, qos, retained})
	return nil
}

func (f *fakeHealthPublisher) IsConnected() bool { return f.connected }

func (f *fakeHealthPublisher) last(t *testing.T) HealthMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		t.Fatal("no health message published")
	}
	var msg HealthMessage
	if err := json.Unmarshal(f.published[len(f.published)-1].payload, &msg); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	return msg
}

func newTestReporter(connected bool) (*HealthReporter, *fakeHealthPublisher) {
	pub := &fakeHealthPublisher{connected: connected}
	h := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "hatch",
		Version:   "test",
		Publisher: pub,
	})
	return h, pub
}

func TestHealthReporter_DegradedWithoutSession(t *testing.T) {
	h, pub := newTestReporter(true)

	if err := h.PublishNow(); err != nil {
		t.Fatalf("PublishNow: %v", err)
	}

	msg := pub.last(t)
	if msg.Status != StatusDegraded {
		t.Errorf("status = %q, want degraded", msg.Status)
	}
	if msg.Reason != "cloud session down" {
		t.Errorf("reason = %q", msg.Reason)
	}
	if msg.Session == nil || msg.Session.Status != "disconnected" {
		t.Errorf("session = %+v", msg.Session)
	}
}

func TestHealthReporter_HealthyWithSession(t *testing.T) {
	h, pub := newTestReporter(true)

	since := time.Now().UTC()
	expiry := since.Add(time.Hour)
	h.SetSession(true, since, expiry)
	h.SetDeviceCount(2)
	h.CountStatePublished()
	h.CountCommand()

	if err := h.PublishNow(); err != nil {
		t.Fatalf("PublishNow: %v", err)
	}

	msg := pub.last(t)
	if msg.Status != StatusHealthy {
		t.Errorf("status = %q, want healthy", msg.Status)
	}
	if msg.DevicesManaged != 2 {
		t.Errorf("devices = %d, want 2", msg.DevicesManaged)
	}
	if msg.Session == nil || msg.Session.Status != "connected" {
		t.Fatalf("session = %+v", msg.Session)
	}
	if msg.Session.CredentialExpiry == nil || !msg.Session.CredentialExpiry.Equal(expiry) {
		t.Errorf("credential expiry = %v, want %v", msg.Session.CredentialExpiry, expiry)
	}
	if msg.Statistics == nil || msg.Statistics.StatesPublished != 1 || msg.Statistics.CommandsProcessed != 1 {
		t.Errorf("statistics = %+v", msg.Statistics)
	}
}

func TestHealthReporter_DegradedWhenBrokerDown(t *testing.T) {
	h, pub := newTestReporter(false)

	h.SetSession(true, time.Now(), time.Now().Add(time.Hour))
	if err := h.PublishNow(); err != nil {
		t.Fatalf("PublishNow: %v", err)
	}

	msg := pub.last(t)
	if msg.Status != StatusDegraded || msg.Reason != "MQTT disconnected" {
		t.Errorf("status = %q reason = %q", msg.Status, msg.Reason)
	}
}

func TestHealthReporter_LWT(t *testing.T) {
	h, _ := newTestReporter(true)

	if got := h.GetLWTTopic(); got != "hatchbridge/health/hatch" {
		t.Errorf("LWT topic = %q", got)
	}

	payload, err := h.GetLWTPayload()
	if err != nil {
		t.Fatalf("GetLWTPayload: %v", err)
	}
	var msg HealthMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal LWT: %v", err)
	}
	if msg.Status != StatusOffline || msg.Reason != "unexpected_disconnect" {
		t.Errorf("LWT = %+v", msg)
	}
}

func TestHealthReporter_StopPublishesStopping(t *testing.T) {
	h, pub := newTestReporter(true)

	h.Stop()
	h.Stop() // idempotent

	msg := pub.last(t)
	if msg.Status != StatusStopping {
		t.Errorf("final status = %q, want stopping", msg.Status)
	}
}

func TestHealthReporter_Snapshot(t *testing.T) {
	h, _ := newTestReporter(true)

	for i := 0; i < 3; i++ {
		h.CountStatePublished()
	}
	h.CountCommand()
	h.CountError()

	s := h.Snapshot()
	if s.StatesPublished != 3 || s.CommandsProcessed != 1 || s.Errors != 1 {
		t.Errorf("snapshot = %+v", s)
	}
}
