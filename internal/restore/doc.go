// Package restore models Hatch Restore devices on top of their AWS IoT
// shadow documents.
//
// Two hardware generations exist with different shadow dialects:
//
//   - LegacyRestore (product "restore"): light and sound only run while
//     content.playing is "remote" or "routine". Toggling either feature
//     publishes a combined remote-state document; preferred colour id,
//     intensity and volume are persisted with dedicated writes while
//     playback is off.
//   - IoTRestore (restoreIot, restoreV4, restoreV5): direct RGBW colour
//     under current.color, lit exactly when any channel is nonzero.
//
// Both embed a shared subscriber carrying identity, connectivity and
// update-callback plumbing. Models merge partial documents — shadow
// deltas routinely carry a single subtree — and fire callbacks after
// every merge. Intensity and volume use the device's raw 0-65535 scale
// internally and 0-100 percentages at the API surface.
package restore
