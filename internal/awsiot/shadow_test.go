package awsiot

import (
	"encoding/json"
	"errors"
	"testing"
)

// fakeConn records subscriptions and publishes for shadow tests.
type fakeConn struct {
	subs      map[string]func(topic string, payload []byte)
	published map[string][]byte
	subErr    error
	pubErr    error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		subs:      make(map[string]func(topic string, payload []byte)),
		published: make(map[string][]byte),
	}
}

func (f *fakeConn) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	if f.subErr != nil {
		return f.subErr
	}
	f.subs[topic] = handler
	return nil
}

func (f *fakeConn) Publish(topic string, qos byte, payload []byte) error {
	if f.pubErr != nil {
		return f.pubErr
	}
	f.published[topic] = payload
	return nil
}

func TestShadowTopic(t *testing.T) {
	got := ShadowTopic("rest-0a1b2c", "update/delta")
	want := "$aws/things/rest-0a1b2c/shadow/update/delta"
	if got != want {
		t.Errorf("ShadowTopic = %q, want %q", got, want)
	}
}

func TestThingFromTopic(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		want  string
	}{
		{"get accepted", "$aws/things/rest-abc/shadow/get/accepted", "rest-abc"},
		{"update documents", "$aws/things/restore-x1/shadow/update/documents", "restore-x1"},
		{"not a shadow topic", "hatchbridge/state/iot/rest-abc", ""},
		{"missing thing", "$aws/things//shadow/get", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ThingFromTopic(tt.topic); got != tt.want {
				t.Errorf("ThingFromTopic(%q) = %q, want %q", tt.topic, got, tt.want)
			}
		})
	}
}

func TestSubscribeShadow_AllTopics(t *testing.T) {
	conn := newFakeConn()
	client := NewShadowClient(conn)

	if err := client.SubscribeShadow("rest-abc", func(string, map[string]interface{}) {}); err != nil {
		t.Fatalf("SubscribeShadow failed: %v", err)
	}

	for _, suffix := range []string{"get/accepted", "update/accepted", "update/documents", "update/delta"} {
		if _, ok := conn.subs[ShadowTopic("rest-abc", suffix)]; !ok {
			t.Errorf("missing subscription for %s", suffix)
		}
	}
}

func TestSubscribeShadow_PropagatesError(t *testing.T) {
	conn := newFakeConn()
	conn.subErr = ErrSubscribeFailed
	client := NewShadowClient(conn)

	err := client.SubscribeShadow("rest-abc", func(string, map[string]interface{}) {})
	if !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("expected ErrSubscribeFailed, got %v", err)
	}
}

func TestSubscribeShadow_DeliversNormalisedState(t *testing.T) {
	conn := newFakeConn()
	client := NewShadowClient(conn)

	var got []map[string]interface{}
	err := client.SubscribeShadow("rest-abc", func(thing string, reported map[string]interface{}) {
		if thing != "rest-abc" {
			t.Errorf("handler thing = %q", thing)
		}
		got = append(got, reported)
	})
	if err != nil {
		t.Fatalf("SubscribeShadow failed: %v", err)
	}

	accepted := ShadowTopic("rest-abc", "get/accepted")
	conn.subs[accepted](accepted, []byte(`{"state":{"reported":{"isPowered":true}}}`))

	docs := ShadowTopic("rest-abc", "update/documents")
	conn.subs[docs](docs, []byte(`{"current":{"state":{"reported":{"current":{"color":{"i":32767}}}}}}`))

	delta := ShadowTopic("rest-abc", "update/delta")
	conn.subs[delta](delta, []byte(`{"state":{"isPowered":false}}`))

	// Garbage must be dropped silently.
	conn.subs[accepted](accepted, []byte(`not json`))
	conn.subs[accepted](accepted, []byte(`{"state":{}}`))

	if len(got) != 3 {
		t.Fatalf("handler called %d times, want 3", len(got))
	}
	if v, ok := got[0]["isPowered"].(bool); !ok || !v {
		t.Errorf("get/accepted state = %v", got[0])
	}
	if _, ok := got[1]["current"]; !ok {
		t.Errorf("update/documents state = %v", got[1])
	}
	if v, ok := got[2]["isPowered"].(bool); !ok || v {
		t.Errorf("update/delta state = %v", got[2])
	}
}

func TestRequestShadow(t *testing.T) {
	conn := newFakeConn()
	client := NewShadowClient(conn)

	if err := client.RequestShadow("rest-abc"); err != nil {
		t.Fatalf("RequestShadow failed: %v", err)
	}

	payload, ok := conn.published["$aws/things/rest-abc/shadow/get"]
	if !ok {
		t.Fatal("no publish to the shadow get topic")
	}
	if string(payload) != "{}" {
		t.Errorf("get payload = %q, want empty object", payload)
	}
}

func TestUpdateShadow(t *testing.T) {
	conn := newFakeConn()
	client := NewShadowClient(conn)

	token, err := client.UpdateShadow("rest-abc", map[string]interface{}{
		"isPowered": true,
	})
	if err != nil {
		t.Fatalf("UpdateShadow failed: %v", err)
	}
	if token == "" {
		t.Error("empty client token")
	}

	payload, ok := conn.published["$aws/things/rest-abc/shadow/update"]
	if !ok {
		t.Fatal("no publish to the shadow update topic")
	}

	var envelope struct {
		State struct {
			Desired map[string]interface{} `json:"desired"`
		} `json:"state"`
		ClientToken string `json:"clientToken"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		t.Fatalf("update payload does not parse: %v", err)
	}
	if envelope.ClientToken != token {
		t.Errorf("clientToken = %q, want %q", envelope.ClientToken, token)
	}
	if v, ok := envelope.State.Desired["isPowered"].(bool); !ok || !v {
		t.Errorf("desired state = %v", envelope.State.Desired)
	}
}

func TestUpdateShadow_PropagatesError(t *testing.T) {
	conn := newFakeConn()
	conn.pubErr = ErrPublishFailed
	client := NewShadowClient(conn)

	if _, err := client.UpdateShadow("rest-abc", map[string]interface{}{"x": 1}); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("expected ErrPublishFailed, got %v", err)
	}
}

func TestExtractReportedState_DeltaWithoutState(t *testing.T) {
	if _, ok := ExtractReportedState("$aws/things/t/shadow/update/delta", []byte(`{"version":3}`)); ok {
		t.Error("delta without state must not deliver")
	}
}
