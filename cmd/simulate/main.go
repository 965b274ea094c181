// Command simulate plays one full game against a running server. It creates a
// session over the REST API, connects both seats over WebSocket, and plays a
// scripted or random game to completion, printing every state update. Useful
// as an end-to-end smoke check and as a reference client implementation.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var (
	serverURL = flag.String("server", "http://localhost:8080", "Base URL of the match server")
	mode      = flag.String("mode", "classic", "Game mode for the created session")
	script    = flag.String("script", "", "Comma-separated positions to play in order (empty plays randomly)")
)

// envelope mirrors the wire frame: opcode plus opaque payload.
type envelope struct {
	OpCode int64           `json:"op_code"`
	Data   json.RawMessage `json:"data,omitempty"`
}

const (
	opGameState = 1
	opMove      = 2
	opGameOver  = 3
	opError     = 4
)

// player is one simulated seat.
type player struct {
	id     string
	conn   *websocket.Conn
	symbol string
	board  []string
	myTurn bool
	over   bool
}

func main() {
	flag.Parse()

	sessionID, err := createSession(*serverURL, *mode)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	log.Printf("Created session %s", sessionID)

	one := connect(*serverURL, sessionID, "sim-one")
	two := connect(*serverURL, sessionID, "sim-two")
	defer one.conn.Close()
	defer two.conn.Close()

	moves := parseScript(*script)
	scripted := len(moves) > 0

	// Pump both connections until somebody reports game over.
	for turn := 0; !one.over && !two.over; {
		for _, p := range []*player{one, two} {
			p.pump()
		}

		current := one
		if two.myTurn {
			current = two
		} else if !one.myTurn {
			continue
		}

		var position int
		if scripted {
			if turn >= len(moves) {
				log.Fatalf("Script exhausted after %d moves with no result", turn)
			}
			position = moves[turn]
		} else {
			position = randomFree(current.board)
			if position < 0 {
				continue
			}
		}
		turn++

		log.Printf("%s (%s) plays %d", current.id, current.symbol, position)
		frame := fmt.Sprintf(`{"op_code":%d,"data":{"position":%d}}`, opMove, position)
		if err := current.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			log.Fatalf("Write failed: %v", err)
		}
		current.myTurn = false
	}

	log.Println("Game finished")
}

func createSession(baseURL, mode string) (string, error) {
	body, _ := json.Marshal(map[string]string{"mode": mode})
	resp, err := http.Post(baseURL+"/api/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.SessionID == "" {
		return "", fmt.Errorf("server returned no session ID (status %d)", resp.StatusCode)
	}
	return result.SessionID, nil
}

func connect(baseURL, sessionID, playerID string) *player {
	wsURL := strings.Replace(baseURL, "http", "ws", 1)
	url := fmt.Sprintf("%s/ws?session=%s&player_id=%s&username=%s", wsURL, sessionID, playerID, playerID)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("Dial failed for %s: %v", playerID, err)
	}
	return &player{id: playerID, conn: conn}
}

// pump drains pending frames without blocking for long, updating the seat's
// view of the game.
func (p *player) pump() {
	for {
		p.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			return // deadline or close; caller loops
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("%s: malformed frame: %v", p.id, err)
			continue
		}

		switch env.OpCode {
		case opGameState:
			var state struct {
				Type        string   `json:"type"`
				Board       []string `json:"board"`
				YourSymbol  string   `json:"yourSymbol"`
				IsYourTurn  bool     `json:"isYourTurn"`
				CurrentTurn string   `json:"currentTurn"`
			}
			json.Unmarshal(env.Data, &state)
			p.board = state.Board
			p.symbol = state.YourSymbol
			p.myTurn = state.IsYourTurn
			if state.Type == "game_start" {
				log.Printf("%s: game started as %s, %s to move", p.id, p.symbol, state.CurrentTurn)
			}
			printBoard(p.id, state.Board)

		case opGameOver:
			var over struct {
				Reason string   `json:"reason"`
				Winner string   `json:"winner"`
				Board  []string `json:"board"`
			}
			json.Unmarshal(env.Data, &over)
			log.Printf("%s: game over (%s), winner: %s", p.id, over.Reason, over.Winner)
			printBoard(p.id, over.Board)
			p.over = true
			p.myTurn = false

		case opError:
			var e struct {
				Message string `json:"message"`
			}
			json.Unmarshal(env.Data, &e)
			log.Printf("%s: server error: %s", p.id, e.Message)
		}
	}
}

func printBoard(id string, board []string) {
	if len(board) != 9 {
		return
	}
	cells := make([]string, 9)
	for i, c := range board {
		if c == "" {
			cells[i] = "."
		} else {
			cells[i] = c
		}
	}
	log.Printf("%s board:\n %s | %s | %s\n %s | %s | %s\n %s | %s | %s",
		id, cells[0], cells[1], cells[2], cells[3], cells[4], cells[5], cells[6], cells[7], cells[8])
}

func parseScript(script string) []int {
	if script == "" {
		return nil
	}
	var moves []int
	for _, part := range strings.Split(script, ",") {
		var position int
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%d", &position); err != nil {
			log.Fatalf("Bad script entry %q: %v", part, err)
		}
		moves = append(moves, position)
	}
	return moves
}

func randomFree(board []string) int {
	var free []int
	for i, c := range board {
		if c == "" {
			free = append(free, i)
		}
	}
	if len(free) == 0 {
		return -1
	}
	return free[rand.Intn(len(free))]
}
