// Package api exposes the hub's HTTP surface: a read-only REST API for
// session inspection (consumed by dashboards and the MCP tool proxy) and
// the /ws WebSocket mount. Everything that mutates state goes over the
// WebSocket protocol, so there are no mutating REST routes.
package api
