package awsiot

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Classic shadow topic suffixes.
const (
	shadowGet             = "get"
	shadowGetAccepted     = "get/accepted"
	shadowUpdate          = "update"
	shadowUpdateAccepted  = "update/accepted"
	shadowUpdateDelta     = "update/delta"
	shadowUpdateDocuments = "update/documents"

	// shadowQoS is the QoS for all shadow traffic. The gateway only
	// supports 0 and 1; the vendor apps use 1 for shadows.
	shadowQoS = 1
)

// StateHandler receives reported-state documents for a thing.
//
// Documents may be partial: legacy devices report only the subtree that
// changed, so handlers must merge rather than replace.
type StateHandler func(thingName string, reported map[string]interface{})

// publisher is the slice of Connection the shadow client needs.
// Narrowed for testability.
type publisher interface {
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	Publish(topic string, qos byte, payload []byte) error
}

// ShadowClient speaks the classic AWS IoT device shadow protocol on top
// of a device gateway connection.
//
// For each subscribed thing it listens on get/accepted, update/accepted,
// update/documents and update/delta, normalises every document shape to
// a reported-state map, and hands it to the registered handler.
type ShadowClient struct {
	conn publisher
}

// NewShadowClient creates a shadow client on top of a connection.
func NewShadowClient(conn publisher) *ShadowClient {
	return &ShadowClient{conn: conn}
}

// ShadowTopic builds a classic shadow topic for a thing.
//
// Example: ShadowTopic("rest-abc", "update/delta")
// returns "$aws/things/rest-abc/shadow/update/delta"
func ShadowTopic(thingName, suffix string) string {
	return fmt.Sprintf("$aws/things/%s/shadow/%s", thingName, suffix)
}

// ThingFromTopic extracts the thing name from a shadow topic, or ""
// if the topic is not a shadow topic.
func ThingFromTopic(topic string) string {
	const prefix = "$aws/things/"
	if !strings.HasPrefix(topic, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(topic, prefix)
	idx := strings.Index(rest, "/shadow/")
	if idx <= 0 {
		return ""
	}
	return rest[:idx]
}

// SubscribeShadow subscribes to all state-bearing shadow topics for a
// thing. Every incoming document is normalised and delivered to handler.
//
// Parameters:
//   - thingName: AWS IoT thing name
//   - handler: Receives (possibly partial) reported-state maps
//
// Returns:
//   - error: ErrSubscribeFailed if any of the four subscriptions fails
func (s *ShadowClient) SubscribeShadow(thingName string, handler StateHandler) error {
	receive := func(topic string, payload []byte) {
		reported, ok := ExtractReportedState(topic, payload)
		if !ok {
			return
		}
		handler(thingName, reported)
	}

	suffixes := []string{shadowGetAccepted, shadowUpdateAccepted, shadowUpdateDocuments, shadowUpdateDelta}
	for _, suffix := range suffixes {
		if err := s.conn.Subscribe(ShadowTopic(thingName, suffix), shadowQoS, receive); err != nil {
			return err
		}
	}
	return nil
}

// RequestShadow asks the gateway to publish the thing's current shadow
// document to get/accepted. Call after SubscribeShadow to prime state.
func (s *ShadowClient) RequestShadow(thingName string) error {
	// Classic shadow get: empty payload
	return s.conn.Publish(ShadowTopic(thingName, shadowGet), shadowQoS, []byte("{}"))
}

// UpdateShadow publishes a desired-state update for a thing.
//
// The payload wraps desired in the classic envelope with a client token
// so acks can be correlated:
//
//	{"state":{"desired":{...}},"clientToken":"..."}
//
// Parameters:
//   - thingName: AWS IoT thing name
//   - desired: Desired-state subtree (partial updates are fine)
//
// Returns:
//   - string: The client token sent with the update
//   - error: ErrPublishFailed on publish failure
func (s *ShadowClient) UpdateShadow(thingName string, desired map[string]interface{}) (string, error) {
	token := uuid.New().String()
	payload, err := json.Marshal(map[string]interface{}{
		"state": map[string]interface{}{
			"desired": desired,
		},
		"clientToken": token,
	})
	if err != nil {
		return "", fmt.Errorf("encoding shadow update: %w", err)
	}

	if err := s.conn.Publish(ShadowTopic(thingName, shadowUpdate), shadowQoS, payload); err != nil {
		return "", err
	}
	return token, nil
}

// shadowDocument covers the envelope shapes of every shadow topic the
// client subscribes to.
type shadowDocument struct {
	State struct {
		Reported map[string]interface{} `json:"reported"`
	} `json:"state"`
	Current struct {
		State struct {
			Reported map[string]interface{} `json:"reported"`
		} `json:"state"`
	} `json:"current"`
}

// deltaDocument is the update/delta envelope; its state member IS the
// delta, not a reported/desired wrapper.
type deltaDocument struct {
	State map[string]interface{} `json:"state"`
}

// ExtractReportedState normalises a shadow document to a reported-state
// map based on the topic it arrived on.
//
//   - get/accepted, update/accepted: state.reported
//   - update/documents: current.state.reported
//   - update/delta: state (the delta itself, delivered as a partial)
//
// Returns ok=false for unparseable payloads or documents without state.
func ExtractReportedState(topic string, payload []byte) (map[string]interface{}, bool) {
	if strings.HasSuffix(topic, "/"+shadowUpdateDelta) {
		var doc deltaDocument
		if err := json.Unmarshal(payload, &doc); err != nil || len(doc.State) == 0 {
			return nil, false
		}
		return doc.State, true
	}

	var doc shadowDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, false
	}

	if strings.HasSuffix(topic, "/"+shadowUpdateDocuments) {
		if len(doc.Current.State.Reported) == 0 {
			return nil, false
		}
		return doc.Current.State.Reported, true
	}

	if len(doc.State.Reported) == 0 {
		return nil, false
	}
	return doc.State.Reported, true
}
