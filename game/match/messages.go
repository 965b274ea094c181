package match

import (
	"encoding/json"
	"log"
)

// OpCode identifies the logical type of a transport frame. Values are part of
// the client protocol and never change.
type OpCode int64

const (
	OpGameState   OpCode = 1
	OpMove        OpCode = 2
	OpGameOver    OpCode = 3
	OpError       OpCode = 4
	OpTurnUpdate  OpCode = 5
	OpPlayerJoin  OpCode = 6
	OpPlayerLeave OpCode = 7
)

// playerView is the per-player block embedded in state snapshots.
type playerView struct {
	Username string `json:"username"`
	Symbol   string `json:"symbol"`
}

// lastMove describes the most recent placement in a state update.
type lastMove struct {
	Position int    `json:"position"`
	Symbol   string `json:"symbol"`
}

type playerAssignMsg struct {
	Type       string `json:"type"`
	YourSymbol string `json:"yourSymbol"`
	PlayerID   string `json:"playerId"`
}

type gameStartMsg struct {
	Type          string                `json:"type"`
	Board         []string              `json:"board"`
	CurrentTurn   string                `json:"currentTurn"`
	CurrentSymbol string                `json:"currentSymbol"`
	YourSymbol    string                `json:"yourSymbol"`
	IsYourTurn    bool                  `json:"isYourTurn"`
	Players       map[string]playerView `json:"players"`
}

type gameStateMsg struct {
	Type          string                `json:"type"`
	Board         []string              `json:"board"`
	LastMove      *lastMove             `json:"lastMove,omitempty"`
	CurrentTurn   string                `json:"currentTurn"`
	CurrentSymbol string                `json:"currentSymbol"`
	YourSymbol    string                `json:"yourSymbol"`
	IsYourTurn    bool                  `json:"isYourTurn"`
	MoveCount     int                   `json:"moveCount"`
	Players       map[string]playerView `json:"players,omitempty"`
	GameOver      bool                  `json:"gameOver,omitempty"`
	Winner        string                `json:"winner,omitempty"`
	GameStarted   bool                  `json:"gameStarted,omitempty"`
}

type gameOverMsg struct {
	Type        string   `json:"type"`
	Reason      string   `json:"reason"`
	Winner      string   `json:"winner"`
	Board       []string `json:"board"`
	WinningLine []int    `json:"winningLine,omitempty"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type playerLeftMsg struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
}

// movePayload is the inbound move request body: {"position": n}.
type movePayload struct {
	Position *int `json:"position"`
}

// mustMarshal encodes a payload struct that cannot fail for our message types.
func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("match: failed to marshal message: %v", err)
		return []byte("{}")
	}
	return data
}
