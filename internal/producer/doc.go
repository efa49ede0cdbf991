// Package producer runs the periodic publish loop.
//
// The loop publishes one message per interval while the session is healthy.
// While unhealthy it parks on the health flag's change channel instead of
// re-checking in a spin, so the first publish after a reconnect happens as
// soon as the session controller marks the session healthy.
//
// Publish results are logged and counted but never acted upon: the loop
// only ever sees "healthy" or "not healthy".
package producer
