package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gridmatch/gridmatch/game/match"
	"github.com/gridmatch/gridmatch/identity"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		return true
	},
}

// Envelope frames every message on the wire in both directions: the opcode
// plus the opaque JSON payload for that message type.
type Envelope struct {
	OpCode int64           `json:"op_code"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// ActorProvider resolves a session ID to its running actor.
type ActorProvider interface {
	Get(id string) (*match.Actor, error)
}

// ActorProviderFunc adapts a function to ActorProvider. Used to break the
// construction cycle between the hub and the session registry.
type ActorProviderFunc func(id string) (*match.Actor, error)

// Get implements ActorProvider.
func (f ActorProviderFunc) Get(id string) (*match.Actor, error) { return f(id) }

// Client represents one WebSocket connection bound to a session. It doubles
// as the presence handle the match layer addresses messages to.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	actor    *match.Actor
	playerID string
	username string
	connID   string
}

// PlayerID implements match.Presence.
func (c *Client) PlayerID() string { return c.playerID }

// Username implements match.Presence.
func (c *Client) Username() string { return c.username }

// ConnID implements match.Presence.
func (c *Client) ConnID() string { return c.connID }

// Hub tracks live connections and delivers outbound frames. It implements
// match.Transport; delivery to a presence that already disconnected is
// silently dropped.
type Hub struct {
	actors ActorProvider
	users  identity.Store

	mu      sync.RWMutex
	clients map[string]*Client // connID -> client
}

// NewHub creates a hub resolving sessions through actors and recording
// connecting users in the identity store.
func NewHub(actors ActorProvider, users identity.Store) *Hub {
	return &Hub{
		actors:  actors,
		users:   users,
		clients: make(map[string]*Client),
	}
}

// ServeWS upgrades an HTTP request into a session connection. The client
// declares itself via query parameters: session, player_id, username.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	sessionID := query.Get("session")
	playerID := query.Get("player_id")
	username := query.Get("username")

	if sessionID == "" || playerID == "" {
		http.Error(w, "session and player_id are required", http.StatusBadRequest)
		return
	}

	actor, err := h.actors.Get(sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket: upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 256),
		actor:    actor,
		playerID: playerID,
		username: username,
		connID:   uuid.NewString(),
	}

	// Admission decision happens before any session mutation.
	accept, reason := actor.JoinAttempt(client)
	if !accept {
		log.Printf("websocket: join rejected for %s on %s: %s", playerID, sessionID, reason)
		client.writeReject(reason)
		conn.Close()
		return
	}

	if err := h.users.Upsert(r.Context(), identity.User{PlayerID: playerID, Username: username}); err != nil {
		log.Printf("websocket: failed to record user %s: %v", playerID, err)
	}

	h.register(client)
	go client.writePump()
	go client.readPump()

	actor.Join(client)
	log.Printf("websocket: %s joined session %s (conn %s)", playerID, sessionID, client.connID)
}

// Send implements match.Transport.
func (h *Hub) Send(op match.OpCode, payload []byte, to []match.Presence) {
	frame, err := json.Marshal(Envelope{OpCode: int64(op), Data: payload})
	if err != nil {
		log.Printf("websocket: failed to marshal frame: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, p := range to {
		client, ok := h.clients[p.ConnID()]
		if !ok {
			continue // presence already gone, drop silently
		}
		select {
		case client.send <- frame:
		default:
			// Client's send buffer is full; drop the connection.
			go client.conn.Close()
		}
	}
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.connID] = client
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.connID]; ok {
		delete(h.clients, client.connID)
		close(client.send)
	}
}

// writeReject sends a single error frame before closing a refused connection.
func (c *Client) writeReject(reason string) {
	payload, _ := json.Marshal(map[string]string{"type": "error", "message": reason})
	frame, _ := json.Marshal(Envelope{OpCode: int64(match.OpError), Data: payload})
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.TextMessage, frame)
}

// readPump pumps inbound frames from the connection into the session actor.
func (c *Client) readPump() {
	defer func() {
		c.actor.Leave(c)
		c.hub.unregister(c)
		c.conn.Close()
		log.Printf("websocket: %s left session %s", c.playerID, c.actor.ID())
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket: read error: %v", err)
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("websocket: dropping malformed frame from %s: %v", c.playerID, err)
			continue
		}
		c.actor.Data(c, match.OpCode(env.OpCode), env.Data)
	}
}

// writePump pumps outbound frames from the hub to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ match.Transport = (*Hub)(nil)
var _ match.Presence = (*Client)(nil)
