package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceState writes a projected light state sample to InfluxDB.
//
// Called by the bridge whenever a device shadow update changes the
// projected state. The write is non-blocking; data is batched and sent
// asynchronously.
//
// Parameters:
//   - deviceID: AWS IoT thing name (e.g., "rest-abc123")
//   - product: Hatch product family (e.g., "restore", "restoreIot")
//   - isOn: Whether the light is currently on
//   - brightnessPercent: Brightness 0-100 (0 when off)
//
// Example:
//
//	client.WriteDeviceState("rest-abc123", "restoreIot", true, 42.5)
func (c *Client) WriteDeviceState(deviceID, product string, isOn bool, brightnessPercent float64) {
	if !c.IsConnected() {
		return
	}

	on := 0.0
	if isOn {
		on = 1.0
	}

	point := write.NewPoint(
		"device_state",
		map[string]string{
			"device_id": deviceID,
			"product":   product,
		},
		map[string]interface{}{
			"is_on":              on,
			"brightness_percent": brightnessPercent,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteCommandLatency records how long a command took from MQTT receipt to
// shadow publish. Used to watch for cloud session degradation.
//
// Parameters:
//   - deviceID: Device identifier
//   - command: Command name (e.g., "turn_on", "set_color")
//   - latency: Time from receipt to shadow publish
func (c *Client) WriteCommandLatency(deviceID, command string, latency time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"command_latency",
		map[string]string{
			"device_id": deviceID,
			"command":   command,
		},
		map[string]interface{}{
			"latency_ms": float64(latency.Milliseconds()),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSessionEvent records a cloud session lifecycle event.
//
// Events: "bootstrap", "refresh", "refresh_failed", "disconnect"
//
// Parameters:
//   - event: Event name
//   - durationSeconds: How long the operation took (0 if not applicable)
func (c *Client) WriteSessionEvent(event string, durationSeconds float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"session_events",
		map[string]string{
			"event": event,
		},
		map[string]interface{}{
			"count":            1.0,
			"duration_seconds": durationSeconds,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "bridge-01"},
//	    map[string]interface{}{"goroutines": 42.0})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed shadow data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
