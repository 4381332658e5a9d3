// Package device provides the device registry for Hatch Bridge.
//
// The registry is the local catalogue of every Hatch device the cloud
// session has discovered. The cloud inventory is authoritative; the
// registry persists a projection of it (plus the last known state and
// health) so the REST API can serve inventory while the cloud session
// is down.
//
// # Key Types
//
//   - Device: Persisted projection of a discovered device, keyed by
//     AWS IoT thing name
//   - Capability: What a device supports (light, color_rgbw, sound, ...)
//   - HealthStatus: online/offline/unknown connectivity state
//   - StateHistoryRepository: Bounded local ring of state transitions
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	// Load devices into cache on startup
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	// Seed from a cloud discovery pass
//	registry.UpsertDiscovered(ctx, &device.Device{
//	    ID:         "rest-abc123",
//	    Name:       "Nursery Restore",
//	    Product:    "restoreV4",
//	    Generation: device.GenerationIoT,
//	    MAC:        "aa:bb:cc:dd:ee:ff",
//	    Capabilities: device.CapabilitiesForGeneration(device.GenerationIoT),
//	})
//
//	// Project state from the bridge
//	registry.SetDeviceState(ctx, id, device.State{"is_on": true})
//
// # Thread Safety
//
// The Registry is safe for concurrent use. All operations are protected
// by a read-write mutex over an in-memory cache; reads return deep
// copies so callers can never mutate cached rows. The Repository
// implementation must also be thread-safe.
package device
