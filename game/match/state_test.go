package match

import (
	"encoding/json"
	"fmt"
	"testing"
)

// fakePresence is a test stand-in for a live connection.
type fakePresence struct {
	id   string
	name string
	conn string
}

func (p *fakePresence) PlayerID() string { return p.id }
func (p *fakePresence) Username() string { return p.name }
func (p *fakePresence) ConnID() string   { return p.conn }

func presence(id string) *fakePresence {
	return &fakePresence{id: id, name: id, conn: "conn-" + id}
}

// sentFrame captures one dispatched message and its recipients.
type sentFrame struct {
	op   OpCode
	data []byte
	to   []string
}

// fakeDispatcher records everything the state machine sends.
type fakeDispatcher struct {
	frames []sentFrame
	labels []Label
}

func (d *fakeDispatcher) Send(op OpCode, payload []byte, to []Presence) {
	ids := make([]string, 0, len(to))
	for _, p := range to {
		ids = append(ids, p.PlayerID())
	}
	d.frames = append(d.frames, sentFrame{op: op, data: payload, to: ids})
}

func (d *fakeDispatcher) UpdateLabel(label Label) {
	d.labels = append(d.labels, label)
}

// framesFor returns the frames addressed to playerID with the given opcode.
func (d *fakeDispatcher) framesFor(playerID string, op OpCode) []sentFrame {
	var out []sentFrame
	for _, f := range d.frames {
		if f.op != op {
			continue
		}
		for _, id := range f.to {
			if id == playerID {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func (d *fakeDispatcher) lastFrame(op OpCode) (sentFrame, bool) {
	for i := len(d.frames) - 1; i >= 0; i-- {
		if d.frames[i].op == op {
			return d.frames[i], true
		}
	}
	return sentFrame{}, false
}

// fakeRecorder captures outcome recordings per player.
type fakeRecorder struct {
	outcomes map[string][]string
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{outcomes: make(map[string][]string)}
}

func (r *fakeRecorder) RecordResult(playerID string, outcome string) {
	r.outcomes[playerID] = append(r.outcomes[playerID], outcome)
}

func moveMsg(p Presence, position int) Message {
	return Message{
		Sender: p,
		OpCode: OpMove,
		Data:   []byte(fmt.Sprintf(`{"position":%d}`, position)),
	}
}

// startedSession returns a session with alice and bob joined and the game
// started. Alice joined first, so she plays X and moves first.
func startedSession(t *testing.T) (*State, *fakeDispatcher, *fakeRecorder, *fakePresence, *fakePresence) {
	t.Helper()
	s := NewState(Params{ID: "s1"})
	d := &fakeDispatcher{}
	rec := newFakeRecorder()
	alice, bob := presence("alice"), presence("bob")
	s.Join(d, alice)
	s.Join(d, bob)
	if s.Status() != StatusActive {
		t.Fatalf("Session not active after two joins: %v", s.Status())
	}
	return s, d, rec, alice, bob
}

func TestJoin_AssignsSymbolsInJoinOrder(t *testing.T) {
	s := NewState(Params{ID: "s1"})
	d := &fakeDispatcher{}
	alice, bob := presence("alice"), presence("bob")

	s.Join(d, alice)
	if s.Status() != StatusLobby {
		t.Errorf("Expected lobby with one player, got %v", s.Status())
	}

	assigns := d.framesFor("alice", OpPlayerJoin)
	if len(assigns) != 1 {
		t.Fatalf("Expected 1 player_assign for alice, got %d", len(assigns))
	}
	var assign struct {
		Type       string `json:"type"`
		YourSymbol string `json:"yourSymbol"`
		PlayerID   string `json:"playerId"`
	}
	if err := json.Unmarshal(assigns[0].data, &assign); err != nil {
		t.Fatalf("Failed to decode player_assign: %v", err)
	}
	if assign.YourSymbol != "X" || assign.PlayerID != "alice" {
		t.Errorf("Unexpected assignment: %+v", assign)
	}

	s.Join(d, bob)
	assigns = d.framesFor("bob", OpPlayerJoin)
	if len(assigns) != 1 {
		t.Fatalf("Expected 1 player_assign for bob, got %d", len(assigns))
	}
	if err := json.Unmarshal(assigns[0].data, &assign); err != nil {
		t.Fatalf("Failed to decode player_assign: %v", err)
	}
	if assign.YourSymbol != "O" {
		t.Errorf("Second joiner got symbol %q, want O", assign.YourSymbol)
	}
}

func TestJoin_PairedSessionUsesInvitedOrder(t *testing.T) {
	s := NewState(Params{
		ID:          "s1",
		Invited:     []string{"bob", "alice"},
		FromPairing: true,
	})
	d := &fakeDispatcher{}

	// Alice connects first but was invited second, so she plays O.
	s.Join(d, presence("alice"))
	s.Join(d, presence("bob"))

	frame := d.framesFor("alice", OpPlayerJoin)[0]
	var assign struct {
		YourSymbol string `json:"yourSymbol"`
	}
	json.Unmarshal(frame.data, &assign)
	if assign.YourSymbol != "O" {
		t.Errorf("Invited-second player got %q, want O", assign.YourSymbol)
	}
}

func TestJoin_SecondPlayerStartsGame(t *testing.T) {
	s, d, _, alice, bob := startedSession(t)

	for _, p := range []*fakePresence{alice, bob} {
		starts := d.framesFor(p.id, OpGameState)
		if len(starts) != 1 {
			t.Fatalf("Expected 1 game_start for %s, got %d", p.id, len(starts))
		}
		var start struct {
			Type        string `json:"type"`
			CurrentTurn string `json:"currentTurn"`
			YourSymbol  string `json:"yourSymbol"`
			IsYourTurn  bool   `json:"isYourTurn"`
		}
		if err := json.Unmarshal(starts[0].data, &start); err != nil {
			t.Fatalf("Failed to decode game_start: %v", err)
		}
		if start.Type != "game_start" {
			t.Errorf("Expected game_start, got %q", start.Type)
		}
		if start.CurrentTurn != "alice" {
			t.Errorf("Expected alice (X) to move first, got %q", start.CurrentTurn)
		}
		if start.IsYourTurn != (p.id == "alice") {
			t.Errorf("%s: isYourTurn = %v", p.id, start.IsYourTurn)
		}
	}

	if s.Label().Open {
		t.Error("Started session still labeled open")
	}
}

func TestJoinAttempt(t *testing.T) {
	s, _, _, _, _ := startedSession(t)

	tests := []struct {
		name   string
		p      Presence
		accept bool
		reason string
	}{
		{"enrolled player reconnects", &fakePresence{id: "alice", conn: "conn2"}, true, ""},
		{"stranger after start", presence("mallory"), false, "Game already started"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accept, reason := s.JoinAttempt(tt.p)
			if accept != tt.accept || reason != tt.reason {
				t.Errorf("JoinAttempt = (%v, %q), want (%v, %q)", accept, reason, tt.accept, tt.reason)
			}
		})
	}
}

func TestJoinAttempt_FullLobby(t *testing.T) {
	// A lobby with both seats enrolled but the game not yet started rejects a
	// third player with the capacity reason.
	s := NewState(Params{ID: "s1", Invited: []string{"alice", "bob"}, FromPairing: true})
	d := &fakeDispatcher{}
	s.Join(d, presence("alice"), presence("bob"))

	accept, reason := s.JoinAttempt(presence("carol"))
	if accept || reason != "Match is full" {
		t.Errorf("JoinAttempt = (%v, %q), want (false, %q)", accept, reason, "Match is full")
	}
}

func TestLoop_TopRowWin(t *testing.T) {
	s, d, rec, alice, bob := startedSession(t)

	// X: 0, 1, 2 (top row); O: 3, 4.
	ok := s.Loop(d, rec, 1, []Message{
		moveMsg(alice, 0),
		moveMsg(bob, 3),
		moveMsg(alice, 1),
		moveMsg(bob, 4),
		moveMsg(alice, 2),
	})
	if !ok {
		t.Fatal("Loop terminated session unexpectedly")
	}

	if s.Status() != StatusFinished {
		t.Fatalf("Expected finished, got %v", s.Status())
	}

	frame, found := d.lastFrame(OpGameOver)
	if !found {
		t.Fatal("No game_over sent")
	}
	var over struct {
		Reason      string   `json:"reason"`
		Winner      string   `json:"winner"`
		WinningLine []int    `json:"winningLine"`
		Board       []string `json:"board"`
	}
	if err := json.Unmarshal(frame.data, &over); err != nil {
		t.Fatalf("Failed to decode game_over: %v", err)
	}
	if over.Reason != "win" || over.Winner != "X" {
		t.Errorf("Unexpected game_over: %+v", over)
	}
	if len(over.WinningLine) != 3 || over.WinningLine[0] != 0 || over.WinningLine[2] != 2 {
		t.Errorf("Expected winning line [0 1 2], got %v", over.WinningLine)
	}

	if got := rec.outcomes["alice"]; len(got) != 1 || got[0] != ResultWin {
		t.Errorf("alice outcomes = %v, want [win]", got)
	}
	if got := rec.outcomes["bob"]; len(got) != 1 || got[0] != ResultLoss {
		t.Errorf("bob outcomes = %v, want [loss]", got)
	}
}

func TestLoop_Draw(t *testing.T) {
	s, d, rec, alice, bob := startedSession(t)

	// X O X / X X O / O X O — full board, no line.
	moves := []Message{
		moveMsg(alice, 0), moveMsg(bob, 1),
		moveMsg(alice, 2), moveMsg(bob, 5),
		moveMsg(alice, 3), moveMsg(bob, 6),
		moveMsg(alice, 4), moveMsg(bob, 8),
		moveMsg(alice, 7),
	}
	s.Loop(d, rec, 1, moves)

	if s.Status() != StatusFinished {
		t.Fatalf("Expected finished, got %v", s.Status())
	}

	frame, found := d.lastFrame(OpGameOver)
	if !found {
		t.Fatal("No game_over sent")
	}
	var over struct {
		Reason string `json:"reason"`
		Winner string `json:"winner"`
	}
	json.Unmarshal(frame.data, &over)
	if over.Reason != "draw" || over.Winner != "draw" {
		t.Errorf("Unexpected game_over: %+v", over)
	}

	for _, id := range []string{"alice", "bob"} {
		if got := rec.outcomes[id]; len(got) != 1 || got[0] != ResultDraw {
			t.Errorf("%s outcomes = %v, want [draw]", id, got)
		}
	}
}

func TestProcessMove_Validation(t *testing.T) {
	tests := []struct {
		name    string
		prep    func(s *State, d *fakeDispatcher, rec *fakeRecorder, alice, bob *fakePresence)
		msg     func(alice, bob *fakePresence) Message
		wantErr string
	}{
		{
			name:    "out of turn",
			msg:     func(alice, bob *fakePresence) Message { return moveMsg(bob, 0) },
			wantErr: "Not your turn",
		},
		{
			name: "occupied cell",
			prep: func(s *State, d *fakeDispatcher, rec *fakeRecorder, alice, bob *fakePresence) {
				s.Loop(d, rec, 1, []Message{moveMsg(alice, 4)})
			},
			msg:     func(alice, bob *fakePresence) Message { return moveMsg(bob, 4) },
			wantErr: "Cell already taken",
		},
		{
			name:    "position out of range",
			msg:     func(alice, bob *fakePresence) Message { return moveMsg(alice, 9) },
			wantErr: "Invalid position",
		},
		{
			name:    "negative position",
			msg:     func(alice, bob *fakePresence) Message { return moveMsg(alice, -1) },
			wantErr: "Invalid position",
		},
		{
			name: "missing position",
			msg: func(alice, bob *fakePresence) Message {
				return Message{Sender: alice, OpCode: OpMove, Data: []byte(`{}`)}
			},
			wantErr: "Invalid position",
		},
		{
			name: "malformed payload",
			msg: func(alice, bob *fakePresence) Message {
				return Message{Sender: alice, OpCode: OpMove, Data: []byte(`not json`)}
			},
			wantErr: "Invalid move data",
		},
		{
			name: "after game over",
			prep: func(s *State, d *fakeDispatcher, rec *fakeRecorder, alice, bob *fakePresence) {
				s.Loop(d, rec, 1, []Message{
					moveMsg(alice, 0), moveMsg(bob, 3),
					moveMsg(alice, 1), moveMsg(bob, 4),
					moveMsg(alice, 2),
				})
			},
			msg:     func(alice, bob *fakePresence) Message { return moveMsg(bob, 5) },
			wantErr: "Game is already over",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, d, rec, alice, bob := startedSession(t)
			if tt.prep != nil {
				tt.prep(s, d, rec, alice, bob)
			}
			before := s.Info()
			d.frames = nil

			s.Loop(d, rec, 2, []Message{tt.msg(alice, bob)})

			sender := tt.msg(alice, bob).Sender.PlayerID()
			errs := d.framesFor(sender, OpError)
			if len(errs) != 1 {
				t.Fatalf("Expected 1 error frame to %s, got %d", sender, len(errs))
			}
			var e struct {
				Message string `json:"message"`
			}
			json.Unmarshal(errs[0].data, &e)
			if e.Message != tt.wantErr {
				t.Errorf("Error = %q, want %q", e.Message, tt.wantErr)
			}

			// Rejected moves must not mutate state.
			if after := s.Info(); after.Status != before.Status {
				t.Errorf("Status changed on rejected move: %s -> %s", before.Status, after.Status)
			}
		})
	}
}

func TestProcessMove_BeforeStart(t *testing.T) {
	s := NewState(Params{ID: "s1"})
	d := &fakeDispatcher{}
	rec := newFakeRecorder()
	alice := presence("alice")
	s.Join(d, alice)

	s.Loop(d, rec, 1, []Message{moveMsg(alice, 0)})

	errs := d.framesFor("alice", OpError)
	if len(errs) != 1 {
		t.Fatalf("Expected 1 error frame, got %d", len(errs))
	}
	var e struct {
		Message string `json:"message"`
	}
	json.Unmarshal(errs[0].data, &e)
	if e.Message != "Game hasn't started" {
		t.Errorf("Error = %q, want %q", e.Message, "Game hasn't started")
	}
}

func TestProcessMove_TurnAlternates(t *testing.T) {
	s, d, rec, alice, _ := startedSession(t)

	s.Loop(d, rec, 1, []Message{moveMsg(alice, 4)})

	frames := d.framesFor("bob", OpGameState)
	// game_start plus one game_state.
	if len(frames) != 2 {
		t.Fatalf("Expected 2 state frames for bob, got %d", len(frames))
	}
	var state struct {
		Type        string `json:"type"`
		CurrentTurn string `json:"currentTurn"`
		IsYourTurn  bool   `json:"isYourTurn"`
		MoveCount   int    `json:"moveCount"`
	}
	json.Unmarshal(frames[1].data, &state)
	if state.Type != "game_state" {
		t.Errorf("Expected game_state, got %q", state.Type)
	}
	if state.CurrentTurn != "bob" || !state.IsYourTurn {
		t.Errorf("Turn did not pass to bob: %+v", state)
	}
	if state.MoveCount != 1 {
		t.Errorf("MoveCount = %d, want 1", state.MoveCount)
	}

	// A repeat move by alice is now out of turn.
	d.frames = nil
	s.Loop(d, rec, 2, []Message{moveMsg(alice, 0)})
	if errs := d.framesFor("alice", OpError); len(errs) != 1 {
		t.Errorf("Expected out-of-turn rejection, got %d error frames", len(errs))
	}
}

func TestLeave_ForfeitDuringGame(t *testing.T) {
	s, d, rec, _, bob := startedSession(t)

	s.Leave(d, rec, bob)

	if s.Status() != StatusAbandoned {
		t.Fatalf("Expected abandoned, got %v", s.Status())
	}
	if got := rec.outcomes["alice"]; len(got) != 1 || got[0] != ResultWin {
		t.Errorf("alice outcomes = %v, want [win]", got)
	}
	if got := rec.outcomes["bob"]; len(got) != 1 || got[0] != ResultLoss {
		t.Errorf("bob outcomes = %v, want [loss]", got)
	}

	overs := d.framesFor("alice", OpGameOver)
	if len(overs) != 1 {
		t.Fatalf("Expected 1 game_over for alice, got %d", len(overs))
	}
	var over struct {
		Reason string `json:"reason"`
		Winner string `json:"winner"`
	}
	json.Unmarshal(overs[0].data, &over)
	if over.Reason != "forfeit" || over.Winner != "X" {
		t.Errorf("Unexpected game_over: %+v", over)
	}

	if lefts := d.framesFor("alice", OpPlayerLeave); len(lefts) != 1 {
		t.Errorf("Expected player_left notice for alice, got %d", len(lefts))
	}
}

func TestLeave_LobbyNoForfeit(t *testing.T) {
	s := NewState(Params{ID: "s1"})
	d := &fakeDispatcher{}
	rec := newFakeRecorder()
	alice := presence("alice")
	s.Join(d, alice)

	s.Leave(d, rec, alice)

	if s.Status() != StatusLobby {
		t.Errorf("Lobby leave changed status to %v", s.Status())
	}
	if len(rec.outcomes) != 0 {
		t.Errorf("Lobby leave recorded outcomes: %v", rec.outcomes)
	}
}

func TestLeave_StaleConnectionIgnored(t *testing.T) {
	s, d, rec, alice, _ := startedSession(t)

	// Alice reconnects on a new connection, then the old one unwinds.
	alice2 := &fakePresence{id: "alice", name: "alice", conn: "conn-alice-2"}
	s.Join(d, alice2)
	s.Leave(d, rec, alice)

	if s.Status() != StatusActive {
		t.Fatalf("Stale leave forfeited the game: %v", s.Status())
	}
	if len(rec.outcomes) != 0 {
		t.Errorf("Stale leave recorded outcomes: %v", rec.outcomes)
	}
}

func TestReconnect_ResendsSnapshot(t *testing.T) {
	s, d, rec, alice, _ := startedSession(t)
	s.Loop(d, rec, 1, []Message{moveMsg(alice, 4)})

	d.frames = nil
	bob2 := &fakePresence{id: "bob", name: "bob", conn: "conn-bob-2"}
	s.Join(d, bob2)

	frames := d.framesFor("bob", OpGameState)
	if len(frames) != 1 {
		t.Fatalf("Expected 1 snapshot for reconnecting bob, got %d", len(frames))
	}
	var snap struct {
		Board       []string `json:"board"`
		CurrentTurn string   `json:"currentTurn"`
		YourSymbol  string   `json:"yourSymbol"`
		IsYourTurn  bool     `json:"isYourTurn"`
		MoveCount   int      `json:"moveCount"`
		GameStarted bool     `json:"gameStarted"`
	}
	json.Unmarshal(frames[0].data, &snap)
	if snap.Board[4] != "X" {
		t.Errorf("Snapshot board missing prior move: %v", snap.Board)
	}
	if snap.YourSymbol != "O" || !snap.IsYourTurn || snap.MoveCount != 1 || !snap.GameStarted {
		t.Errorf("Unexpected snapshot: %+v", snap)
	}

	// Reconnection must not re-enroll or re-assign.
	if s.PlayerCount() != 2 {
		t.Errorf("Reconnect changed player count to %d", s.PlayerCount())
	}
	if assigns := d.framesFor("bob", OpPlayerJoin); len(assigns) != 0 {
		t.Errorf("Reconnect re-sent player_assign %d times", len(assigns))
	}
}

func TestLoop_IdleSweep(t *testing.T) {
	s := NewState(Params{ID: "s1"})
	d := &fakeDispatcher{}
	rec := newFakeRecorder()

	for tick := int64(1); tick <= idleTickLimit; tick++ {
		if !s.Loop(d, rec, tick, nil) {
			t.Fatalf("Session terminated early at tick %d", tick)
		}
	}
	if s.Loop(d, rec, idleTickLimit+1, nil) {
		t.Error("Session survived past the idle limit")
	}
}

func TestLoop_IdleCounterResetsOnPresence(t *testing.T) {
	s := NewState(Params{ID: "s1"})
	d := &fakeDispatcher{}
	rec := newFakeRecorder()

	for tick := int64(1); tick <= idleTickLimit; tick++ {
		s.Loop(d, rec, tick, nil)
	}
	s.Join(d, presence("alice"))

	// One presence resets the countdown; even after another full idle window
	// starting from zero the session survives one more tick than before.
	if !s.Loop(d, rec, idleTickLimit+1, nil) {
		t.Error("Session with a presence terminated")
	}
}

func TestLabelTransitions(t *testing.T) {
	s := NewState(Params{ID: "s1", Mode: "classic"})
	d := &fakeDispatcher{}

	if l := s.Label(); !l.Open || l.Players != 0 {
		t.Errorf("Fresh label = %+v", l)
	}

	s.Join(d, presence("alice"))
	if l := s.Label(); !l.Open || l.Players != 1 {
		t.Errorf("One-player label = %+v", l)
	}

	s.Join(d, presence("bob"))
	if l := s.Label(); l.Open || !l.Started || l.Players != 2 {
		t.Errorf("Started label = %+v", l)
	}
}

func TestTerminate_NotifiesConnected(t *testing.T) {
	s, d, _, _, _ := startedSession(t)
	d.frames = nil

	s.Terminate(d)

	frame, found := d.lastFrame(OpError)
	if !found {
		t.Fatal("No termination notice sent")
	}
	var e struct {
		Message string `json:"message"`
	}
	json.Unmarshal(frame.data, &e)
	if e.Message != "Session terminated" {
		t.Errorf("Notice = %q", e.Message)
	}
	if len(frame.to) != 2 {
		t.Errorf("Notice went to %d presences, want 2", len(frame.to))
	}
}

func TestNewState_DefaultsMode(t *testing.T) {
	s := NewState(Params{ID: "s1"})
	if s.Mode() != "classic" {
		t.Errorf("Default mode = %q, want classic", s.Mode())
	}
}

func TestWinBeatsDrawOnNinthMove(t *testing.T) {
	// The ninth move both fills the board and completes a line; the game must
	// settle as a win, not a draw.
	s, d, rec, alice, bob := startedSession(t)

	// X: 0,1,4,5,8 — wins on the diagonal with the final move.
	// O: 2,3,6,7.
	moves := []Message{
		moveMsg(alice, 0), moveMsg(bob, 2),
		moveMsg(alice, 1), moveMsg(bob, 3),
		moveMsg(alice, 4), moveMsg(bob, 6),
		moveMsg(alice, 5), moveMsg(bob, 7),
		moveMsg(alice, 8),
	}
	s.Loop(d, rec, 1, moves)

	frame, found := d.lastFrame(OpGameOver)
	if !found {
		t.Fatal("No game_over sent")
	}
	var over struct {
		Reason string `json:"reason"`
		Winner string `json:"winner"`
	}
	json.Unmarshal(frame.data, &over)
	if over.Reason != "win" || over.Winner != "X" {
		t.Errorf("Full-board win settled as %+v", over)
	}
	if got := rec.outcomes["alice"]; len(got) != 1 || got[0] != ResultWin {
		t.Errorf("alice outcomes = %v, want [win]", got)
	}
}
