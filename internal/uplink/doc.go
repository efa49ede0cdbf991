// Package uplink assembles the connectivity supervisor.
//
// A Service owns one of each component and wires them together:
//
//	link driver ──events──▶ link.Monitor ──EnsureStarted──▶ session.Manager
//	                                                          │
//	                               MQTT library ◀─────────────┘
//	                                    │ events
//	                                    ▼
//	                          session.Controller ──Set──▶ health.Flag
//	                                                          │ Changed
//	                                                          ▼
//	                                     producer.Loop ──Publish──▶ session.Manager
//
// Every component reports to a single fan-out observer that feeds the
// SQLite journal, optional InfluxDB metrics and the status API's WebSocket
// hub. None of those sinks can block the link or session delivery paths.
//
// Start order is store, status API, health watcher, link driver, producer.
// Stop runs in reverse: producer, link, session, API, journal, stores.
package uplink
