// Package session owns the MQTT session lifecycle on the uplink side.
//
// It contains three pieces:
//   - Event and EventKind, the closed set of session lifecycle events
//     delivered by the session library (see infrastructure/mqtt)
//   - Controller, the single event sink that keeps the health flag in step
//     with Connected/Disconnected and re-applies the fixed subscription set
//     on every Connected
//   - Manager, the create-or-get owner of the session handle that the link
//     monitor calls when an address is acquired
//
// # Event Ordering
//
// The session library delivers events for one handle serially, so
// HandleEvent is never re-entered for the same session. It may still run
// concurrently with link events and with the producer loop; the only state
// it shares with them is the health flag.
//
// # Error Events
//
// An Error event is logged and counted but does not change health. The
// underlying client reports a lost connection as a separate Disconnected
// event, which is what clears the flag.
package session
