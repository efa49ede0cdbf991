// Package api implements the uplink's HTTP status API and WebSocket stream.
//
// Endpoints (all under /api/v1):
//
//	GET /health    200 while the session is healthy, 503 otherwise
//	GET /status    link, session and producer snapshot plus runtime stats
//	GET /journal   connectivity journal, newest first
//	GET /ws        WebSocket; subscribe to lifecycle channels
//
// WebSocket clients send {"type":"subscribe","payload":{"channels":[...]}}
// and then receive {"type":"event","event_type":<channel>,...} messages for
// the channels listed in Channels.
//
// The API is read-only. It observes the uplink and never drives the link or
// session.
package api
