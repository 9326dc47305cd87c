// Package mcp exposes the hub's inspection surface as MCP tools.
//
// The Client is a thin proxy: every tool handler calls the REST API and
// returns the response body, so the MCP surface can never drift from what
// the HTTP surface reports. The embedded MCP server is mounted by main at
// POST /mcp.
//
// Tools:
//   - list_sessions: all live sessions with participants and scene state
//   - get_session: one session's summary
//   - scene_state: one session's current camera parameters
//   - hub_stats: session and user counters
package mcp
