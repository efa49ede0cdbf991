// Package link supervises the network link beneath the MQTT session.
//
// A Driver (the link library) reports lifecycle events; the Monitor reacts:
//
//	Started          -> connect request
//	Connected        -> record only
//	AddressAcquired  -> start the session (create-or-get, so re-delivery is harmless)
//	Disconnected     -> connect request again
//
// # Retry Policy
//
// Reconnection timing is delegated to a RetryPolicy. It applies after a
// drop only; the first connect on Started is always immediate. The default,
// ImmediatePolicy, reconnects at once with no cap. BackoffPolicy
// (cenkalti/backoff) is available for deployments where a flapping link
// should not be hammered; it is selected with link.retry.policy=backoff.
//
// # Drivers
//
//   - InterfaceDriver watches an OS network interface (e.g. wlan0)
//   - StaticDriver treats the link as always available, for containers and
//     hosts where the network is managed elsewhere
package link
