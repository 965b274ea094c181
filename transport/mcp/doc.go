// Package mcp provides a Model Context Protocol surface over the REST API.
//
// The client here is a thin proxy: every tool call is translated into an HTTP
// request against a running API server, so the MCP surface never holds state
// of its own and can run either embedded in the server process (mounted at
// /mcp) or as a separate stdio process pointed at a remote server.
//
// MCP Tools:
//
//   - health: server health and version
//   - create_session: create a new open session
//   - find_session: find or create an open session for a mode
//   - list_sessions: list known sessions with their labels
//   - player_record: a player's stored statistics
//   - leaderboard: players ranked by rating
//
// Gameplay is not reachable over MCP; moves travel over the WebSocket
// transport only. The tools cover the directory and stats surface, which is
// what an agent needs to discover sessions and report on results.
package mcp
