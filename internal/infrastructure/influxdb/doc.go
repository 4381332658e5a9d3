// Package influxdb provides time-series metric storage for Hatch Bridge.
//
// This package manages:
//   - Connection to InfluxDB v2 with token authentication
//   - Non-blocking, batched metric writes
//   - Connection health monitoring
//
// # What gets recorded
//
//   - device_state: projected light state samples per shadow update
//   - command_latency: MQTT receipt to shadow publish timings
//   - session_events: cloud session bootstrap/refresh lifecycle
//
// InfluxDB is optional; when disabled in config the bridge runs without
// metrics and Connect returns ErrDisabled.
//
// # Usage
//
//	tsdb, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without metrics
//	}
//	defer tsdb.Close()
//
//	tsdb.WriteDeviceState("rest-abc123", "restoreIot", true, 42.5)
package influxdb
