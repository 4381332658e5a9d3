// Package hass renders the bridge's devices onto Home Assistant's MQTT
// integration surface.
//
// It covers three concerns:
//
//   - Discovery: EntityConfigs builds retained discovery payloads under
//     the configured discovery prefix. An IoT Restore appears as a single RGBW
//     JSON-schema light; a legacy Restore appears as a brightness-only
//     light plus a sound switch and volume/colour-preset/intensity
//     number entities.
//
//   - State: BuildLightState, SwitchStatePayload and NumberStatePayload
//     project the restore model snapshots into the payloads HA expects
//     on each entity's state topic.
//
//   - Commands: ParseLightCommand, ParseSwitchCommand and
//     ParseNumberCommand decode what HA publishes to the set topics.
//     Light commands carrying a white channel get the Hatch app's white
//     offset folded into RGB so colours match what the app would show.
//
// The package is pure data shaping; publishing and subscribing is the
// bridge's job. All entities share the bridge status topic for
// availability, so everything drops to unavailable together when the
// bridge disconnects.
package hass
