// Package match implements the authoritative session state machine for one
// two-player game, plus the actor loop and registry that host it. All events
// for one session (joins, leaves, moves, ticks) are serialized on a single
// goroutine; the State methods themselves are not safe for concurrent use.
package match

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gridmatch/gridmatch/game/board"
)

// Status is the single source of truth for a session's lifecycle stage.
type Status int

const (
	// StatusLobby is the pre-game stage where players can join.
	StatusLobby Status = iota
	// StatusActive is the playing stage; only the two enrolled players act.
	StatusActive
	// StatusFinished means the game concluded with a win or a draw.
	StatusFinished
	// StatusAbandoned means a player disconnected mid-game and forfeited.
	StatusAbandoned
)

// String returns the lowercase name used in API responses.
func (s Status) String() string {
	switch s {
	case StatusLobby:
		return "lobby"
	case StatusActive:
		return "active"
	case StatusFinished:
		return "finished"
	case StatusAbandoned:
		return "abandoned"
	}
	return "unknown"
}

// Terminal reports whether no further board mutation is possible.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusAbandoned
}

// idleTickLimit is the number of consecutive ticks with zero connected
// presences after which a session terminates itself.
const idleTickLimit = 60

// maxPlayers is the enrollment capacity of a session.
const maxPlayers = 2

// Presence is a live transport connection for a player. Implementations come
// from the websocket hub; tests use lightweight fakes.
type Presence interface {
	PlayerID() string
	Username() string
	ConnID() string
}

// Dispatcher delivers messages to connected presences and keeps the session's
// queryable label in sync with its state.
type Dispatcher interface {
	Send(op OpCode, payload []byte, to []Presence)
	UpdateLabel(label Label)
}

// Recorder receives game outcomes for durable player stats. Implementations
// must be best-effort: a Recorder never blocks session progression.
type Recorder interface {
	RecordResult(playerID string, outcome string)
}

// Outcome strings passed to a Recorder.
const (
	ResultWin  = "win"
	ResultLoss = "loss"
	ResultDraw = "draw"
)

// Label is the externally queryable descriptor registered with the session
// directory.
type Label struct {
	Open    bool   `json:"open"`
	Started bool   `json:"started,omitempty"`
	Players int    `json:"players"`
	Mode    string `json:"mode"`
}

// String renders the label as the opaque JSON string the directory stores.
func (l Label) String() string {
	return string(mustMarshal(l))
}

// Player is a participant enrolled in the session. Enrollment outlives the
// connection: a disconnected player stays enrolled until the session ends.
type Player struct {
	Symbol   board.Symbol
	Username string
}

// Message is one inbound transport frame addressed to the session.
type Message struct {
	Sender Presence
	OpCode OpCode
	Data   []byte
}

// Params configures a new session state.
type Params struct {
	ID   string
	Mode string
	// Invited pre-declares players so join admission treats them as expected
	// even after the game starts. Symbol assignment follows this order when
	// set. Populated by the pairing service.
	Invited     []string
	FromPairing bool
}

// State holds all authoritative data for one session.
type State struct {
	id          string
	mode        string
	invited     []string
	fromPairing bool

	board         board.Board
	players       map[string]*Player
	playerOrder   []string
	currentTurn   string
	currentSymbol board.Symbol
	status        Status
	winner        board.Symbol
	draw          bool
	winningLine   []int
	moveCount     int

	presences  map[string]Presence
	emptyTicks int
	createdAt  time.Time
}

// NewState creates a fresh session in the lobby stage.
func NewState(params Params) *State {
	mode := params.Mode
	if mode == "" {
		mode = "classic"
	}
	return &State{
		id:            params.ID,
		mode:          mode,
		invited:       params.Invited,
		fromPairing:   params.FromPairing,
		players:       make(map[string]*Player),
		presences:     make(map[string]Presence),
		status:        StatusLobby,
		currentSymbol: board.SymbolX,
		createdAt:     time.Now(),
	}
}

// ID returns the session identifier.
func (s *State) ID() string { return s.id }

// Mode returns the game mode the session was created with.
func (s *State) Mode() string { return s.mode }

// Status returns the current lifecycle stage.
func (s *State) Status() Status { return s.status }

// CreatedAt returns the session creation time.
func (s *State) CreatedAt() time.Time { return s.createdAt }

// PlayerCount returns the number of enrolled participants.
func (s *State) PlayerCount() int { return len(s.players) }

// Label derives the queryable descriptor from the current state.
func (s *State) Label() Label {
	return Label{
		Open:    s.status == StatusLobby && len(s.players) < maxPlayers,
		Started: s.status != StatusLobby,
		Players: len(s.players),
		Mode:    s.mode,
	}
}

// Info is a read-only snapshot of session metadata for listings.
type Info struct {
	ID        string    `json:"id"`
	Mode      string    `json:"mode"`
	Status    string    `json:"status"`
	Players   int       `json:"players"`
	Connected int       `json:"connected"`
	CreatedAt time.Time `json:"created_at"`
}

// Info returns a metadata snapshot of the session.
func (s *State) Info() Info {
	return Info{
		ID:        s.id,
		Mode:      s.mode,
		Status:    s.status.String(),
		Players:   len(s.players),
		Connected: len(s.presences),
		CreatedAt: s.createdAt,
	}
}

// invitedIndex returns the position of playerID in the pre-declared list, or
// -1 when the player was not invited.
func (s *State) invitedIndex(playerID string) int {
	for i, id := range s.invited {
		if id == playerID {
			return i
		}
	}
	return -1
}

// JoinAttempt decides admission without mutating state. Reconnection by an
// enrolled player is always accepted; otherwise the session must have spare
// capacity and be either in the lobby or expecting the player via the
// pre-declared invite list.
func (s *State) JoinAttempt(p Presence) (accept bool, reason string) {
	if _, enrolled := s.players[p.PlayerID()]; enrolled {
		return true, ""
	}
	if len(s.players) >= maxPlayers {
		return false, "Match is full"
	}
	if s.status != StatusLobby && s.invitedIndex(p.PlayerID()) < 0 {
		return false, "Game already started"
	}
	return true, ""
}

// Join processes accepted joiners: tracks their presence, assigns a symbol to
// new players, resyncs reconnecting ones, and starts the game when the second
// player arrives.
func (s *State) Join(d Dispatcher, presences ...Presence) {
	for _, p := range presences {
		s.presences[p.PlayerID()] = p

		if _, enrolled := s.players[p.PlayerID()]; enrolled {
			// Reconnection: resend current state, no transition.
			s.sendSnapshot(d, p)
			continue
		}

		symbol := s.assignSymbol(p.PlayerID())
		username := p.Username()
		if username == "" {
			username = fmt.Sprintf("Player%d", len(s.playerOrder)+1)
		}
		s.players[p.PlayerID()] = &Player{Symbol: symbol, Username: username}
		s.playerOrder = append(s.playerOrder, p.PlayerID())

		d.Send(OpPlayerJoin, mustMarshal(playerAssignMsg{
			Type:       "player_assign",
			YourSymbol: string(symbol),
			PlayerID:   p.PlayerID(),
		}), []Presence{p})

		if len(s.players) == maxPlayers && s.status == StatusLobby {
			s.startGame(d)
		}
	}
	s.emptyTicks = 0
	d.UpdateLabel(s.Label())
}

// assignSymbol picks X or O for a newly enrolled player. When the session was
// created by the pairing service the pre-declared order governs; otherwise
// enrollment order does (first joiner gets X).
func (s *State) assignSymbol(playerID string) board.Symbol {
	if idx := s.invitedIndex(playerID); idx >= 0 && len(s.invited) > 1 {
		if idx == 0 {
			return board.SymbolX
		}
		return board.SymbolO
	}
	if len(s.playerOrder) == 0 {
		return board.SymbolX
	}
	return board.SymbolO
}

// startGame transitions Lobby -> Active, gives X the first turn, and sends
// each player a personalized game_start.
func (s *State) startGame(d Dispatcher) {
	s.status = StatusActive
	s.currentSymbol = board.SymbolX
	for id, pl := range s.players {
		if pl.Symbol == board.SymbolX {
			s.currentTurn = id
			break
		}
	}

	for id, p := range s.presences {
		pl, ok := s.players[id]
		if !ok {
			continue
		}
		d.Send(OpGameState, mustMarshal(gameStartMsg{
			Type:          "game_start",
			Board:         s.board.Cells(),
			CurrentTurn:   s.currentTurn,
			CurrentSymbol: string(board.SymbolX),
			YourSymbol:    string(pl.Symbol),
			IsYourTurn:    s.currentTurn == id,
			Players:       s.playerViews(),
		}), []Presence{p})
	}
}

// Leave removes departing presences and, when an active game is left with a
// single enrolled opponent, settles it as a forfeit in that opponent's favor.
// A non-authoritative player_left notice always goes to whoever remains.
func (s *State) Leave(d Dispatcher, rec Recorder, presences ...Presence) {
	for _, p := range presences {
		// A reconnect replaces the tracked presence; the old connection's
		// departure must not evict the new one.
		if cur, ok := s.presences[p.PlayerID()]; ok && cur.ConnID() != p.ConnID() {
			continue
		}
		delete(s.presences, p.PlayerID())

		if s.status == StatusActive {
			var remaining []string
			for id := range s.players {
				if id != p.PlayerID() {
					remaining = append(remaining, id)
				}
			}
			if len(remaining) == 1 {
				winnerID := remaining[0]
				s.status = StatusAbandoned
				s.winner = s.players[winnerID].Symbol

				rec.RecordResult(winnerID, ResultWin)
				rec.RecordResult(p.PlayerID(), ResultLoss)

				if wp, connected := s.presences[winnerID]; connected {
					d.Send(OpGameOver, mustMarshal(gameOverMsg{
						Type:   "game_over",
						Reason: "forfeit",
						Winner: string(s.winner),
						Board:  s.board.Cells(),
					}), []Presence{wp})
				}
				d.UpdateLabel(s.Label())
			}
		}

		s.broadcast(d, OpPlayerLeave, mustMarshal(playerLeftMsg{
			Type:     "player_left",
			PlayerID: p.PlayerID(),
			Username: p.Username(),
		}))
	}
}

// Loop runs one scheduler tick: the idle sweep followed by the inbound batch,
// strictly in arrival order. It returns false when the session should
// terminate.
func (s *State) Loop(d Dispatcher, rec Recorder, tick int64, messages []Message) bool {
	if len(s.presences) == 0 {
		s.emptyTicks++
		if s.emptyTicks > idleTickLimit {
			return false
		}
	} else {
		s.emptyTicks = 0
	}

	for _, msg := range messages {
		if msg.OpCode == OpMove {
			s.processMove(d, rec, msg)
		}
	}
	return true
}

// processMove validates and applies one move request. Validation order is
// fixed: status, turn, position range, cell vacancy. Any failure sends a
// targeted error to the sender and mutates nothing.
func (s *State) processMove(d Dispatcher, rec Recorder, msg Message) {
	senderID := msg.Sender.PlayerID()

	if s.status.Terminal() {
		s.sendError(d, msg.Sender, "Game is already over")
		return
	}
	if s.status == StatusLobby {
		s.sendError(d, msg.Sender, "Game hasn't started")
		return
	}
	if s.currentTurn != senderID {
		s.sendError(d, msg.Sender, "Not your turn")
		return
	}

	var payload movePayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		s.sendError(d, msg.Sender, "Invalid move data")
		return
	}
	if payload.Position == nil || *payload.Position < 0 || *payload.Position >= board.Size {
		s.sendError(d, msg.Sender, "Invalid position")
		return
	}
	position := *payload.Position

	symbol := s.players[senderID].Symbol
	if err := s.board.Apply(position, symbol); err != nil {
		s.sendError(d, msg.Sender, "Cell already taken")
		return
	}
	s.moveCount++

	if won, line := s.board.CheckWin(symbol); won {
		s.finishWin(d, rec, symbol, line)
		return
	}
	if s.moveCount >= board.Size {
		s.finishDraw(d, rec)
		return
	}

	// Flip the turn to the other enrolled player.
	s.currentSymbol = symbol.Other()
	for id := range s.players {
		if id != senderID {
			s.currentTurn = id
			break
		}
	}

	for id, p := range s.presences {
		pl, ok := s.players[id]
		if !ok {
			continue
		}
		d.Send(OpGameState, mustMarshal(gameStateMsg{
			Type:          "game_state",
			Board:         s.board.Cells(),
			LastMove:      &lastMove{Position: position, Symbol: string(symbol)},
			CurrentTurn:   s.currentTurn,
			CurrentSymbol: string(s.currentSymbol),
			YourSymbol:    string(pl.Symbol),
			IsYourTurn:    s.currentTurn == id,
			MoveCount:     s.moveCount,
		}), []Presence{p})
	}
}

// finishWin settles the game for the winning symbol, records one outcome per
// participant, and broadcasts game_over with the winning line.
func (s *State) finishWin(d Dispatcher, rec Recorder, symbol board.Symbol, line []int) {
	s.status = StatusFinished
	s.winner = symbol
	s.winningLine = line

	for id, pl := range s.players {
		if pl.Symbol == symbol {
			rec.RecordResult(id, ResultWin)
		} else {
			rec.RecordResult(id, ResultLoss)
		}
	}

	s.broadcast(d, OpGameOver, mustMarshal(gameOverMsg{
		Type:        "game_over",
		Reason:      "win",
		Winner:      string(symbol),
		Board:       s.board.Cells(),
		WinningLine: line,
	}))
	d.UpdateLabel(s.Label())
}

// finishDraw settles a full board with no winner.
func (s *State) finishDraw(d Dispatcher, rec Recorder) {
	s.status = StatusFinished
	s.draw = true

	for id := range s.players {
		rec.RecordResult(id, ResultDraw)
	}

	s.broadcast(d, OpGameOver, mustMarshal(gameOverMsg{
		Type:   "game_over",
		Reason: "draw",
		Winner: "draw",
		Board:  s.board.Cells(),
	}))
	d.UpdateLabel(s.Label())
}

// Terminate runs when the host stops the session. The state machine has no
// cleanup of its own; connected players get a final notice.
func (s *State) Terminate(d Dispatcher) {
	s.broadcast(d, OpError, mustMarshal(errorMsg{
		Type:    "error",
		Message: "Session terminated",
	}))
}

// sendSnapshot resends the full current state to one presence, personalized
// to its perspective. Used on reconnection.
func (s *State) sendSnapshot(d Dispatcher, p Presence) {
	pl, ok := s.players[p.PlayerID()]
	if !ok {
		return
	}
	winner := string(s.winner)
	if s.draw {
		winner = "draw"
	}
	d.Send(OpGameState, mustMarshal(gameStateMsg{
		Type:          "game_state",
		Board:         s.board.Cells(),
		CurrentTurn:   s.currentTurn,
		CurrentSymbol: string(s.currentSymbol),
		YourSymbol:    string(pl.Symbol),
		IsYourTurn:    s.currentTurn == p.PlayerID(),
		MoveCount:     s.moveCount,
		Players:       s.playerViews(),
		GameOver:      s.status.Terminal(),
		Winner:        winner,
		GameStarted:   s.status != StatusLobby,
	}), []Presence{p})
}

func (s *State) sendError(d Dispatcher, p Presence, message string) {
	d.Send(OpError, mustMarshal(errorMsg{Type: "error", Message: message}), []Presence{p})
}

// broadcast sends payload to every connected presence. Sessions with nobody
// connected skip the send entirely.
func (s *State) broadcast(d Dispatcher, op OpCode, payload []byte) {
	if len(s.presences) == 0 {
		return
	}
	to := make([]Presence, 0, len(s.presences))
	for _, p := range s.presences {
		to = append(to, p)
	}
	d.Send(op, payload, to)
}

func (s *State) playerViews() map[string]playerView {
	views := make(map[string]playerView, len(s.players))
	for id, pl := range s.players {
		views[id] = playerView{Username: pl.Username, Symbol: string(pl.Symbol)}
	}
	return views
}
