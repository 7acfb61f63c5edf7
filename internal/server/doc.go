// Package server exposes the relay over HTTP: two WebSocket upgrade
// endpoints, one for connector processes and one for dashboard clients, plus
// a health endpoint.
//
// Endpoints:
//
//	GET /api/ws/connector?token=...&connection_id=...&broker=...
//	GET /api/ws/client?token=...
//	GET /healthz
//
// Missing required query parameters are rejected with HTTP 400 before any
// upgrade. Authentication failures after the upgrade are reported with a
// close frame, since the protocol has switched by then.
package server
