// Package websocket provides the real-time transport players connect through.
//
// The package uses a hub-and-spoke model: a central Hub tracks every live
// connection and implements the match transport, while each connection runs a
// dedicated read pump and write pump goroutine.
//
// Message Protocol:
//
// Every frame in both directions is a JSON envelope carrying a numeric opcode
// and an opaque payload:
//
//	{"op_code": 2, "data": {"position": 4}}
//
// Inbound frames are forwarded to the session actor and processed on its tick;
// outbound frames are addressed to specific presences and dropped silently
// when the presence has already disconnected.
//
// Connection Lifecycle:
//
//  1. Client connects to /ws?session=<id>&player_id=<id>&username=<name>
//  2. The session actor decides admission before any state changes
//  3. Rejected connections receive one error frame and are closed
//  4. Accepted connections are registered, joined, and pumped
//  5. A read error or close triggers leave and cleanup
//
// Disconnection mid-game forfeits the match to the remaining player; the
// enrolled seat survives, so reconnecting with the same player_id before the
// game settles resumes with a full state snapshot.
package websocket
