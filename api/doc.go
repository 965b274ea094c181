// Package api provides the HTTP entry points of the match server.
//
// The api package implements:
//   - RESTful endpoints for the session directory and player records
//   - Matchmaker enqueue/poll/cancel endpoints
//   - WebSocket upgrade handling for joining sessions
//
// Endpoints:
//
// Health:
//   - GET /healthz - liveness probe with version info
//
// Session Directory:
//   - POST /api/sessions - Create a new open session {mode}
//   - POST /api/sessions/find - Find an open session by mode, create on miss
//   - GET /api/sessions - List all known sessions with parsed labels
//
// Player Records:
//   - GET /api/records/{playerID} - Get a player's stored record
//   - POST /api/records - Manually record an outcome {player_id, outcome}
//   - GET /api/leaderboard?limit=N - Ranked records by rating
//
// Matchmaker:
//   - POST /api/matchmaker - Enqueue {player_id, username, properties}
//   - GET /api/matchmaker/{ticket} - Poll ticket status
//   - DELETE /api/matchmaker/{ticket} - Withdraw a waiting ticket
//
// WebSocket:
//   - GET /ws?session=<id>&player_id=<id>&username=<name> - Join a session
//
// All endpoints accept and return JSON. Errors are returned as JSON with
// appropriate HTTP status codes:
//
//	{
//	  "error": "error message"
//	}
package api
