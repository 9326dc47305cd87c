// Package service exposes a read-only view of the collaboration hub's
// registries for the REST and MCP inspection surfaces.
//
// All mutation happens over the WebSocket protocol, gated by capability and
// user keys, so this layer is deliberately a query surface: it aggregates
// session summaries and presence records and never exposes a capability key
// or bearer user key.
package service
