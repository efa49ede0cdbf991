// Package health holds the session-health flag shared between the session
// controller and the producer loop.
//
// The flag has a single writer (the session controller, running in the MQTT
// event context) and any number of readers. Reads are atomic loads; writes
// that change the value also close a broadcast channel so that readers
// blocked in Changed or WaitHealthy wake immediately instead of polling.
//
// Usage:
//
//	flag := health.New()
//
//	// writer (session event context)
//	flag.Set(true)
//
//	// reader (producer goroutine)
//	changed := flag.Changed()
//	if !flag.Healthy() {
//	    <-changed
//	}
package health
