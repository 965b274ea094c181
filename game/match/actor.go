package match

import (
	"log"
	"time"
)

// DefaultTickInterval drives one scheduler tick per second, matching the
// idle-sweep budget of 60 empty ticks to roughly one minute.
const DefaultTickInterval = time.Second

// event is one unit of work delivered to the actor goroutine.
type event struct {
	kind      eventKind
	presence  Presence
	message   Message
	joinReply chan joinDecision
	infoReply chan Info
}

type eventKind int

const (
	evJoinAttempt eventKind = iota
	evJoin
	evLeave
	evData
	evInfo
	evTerminate
)

type joinDecision struct {
	accept bool
	reason string
}

// Actor owns one session State and serializes every event for it on a single
// goroutine. Inbound data frames are batched and drained once per tick;
// join/leave are applied as they arrive, on the same goroutine.
type Actor struct {
	id           string
	state        *State
	dispatcher   Dispatcher
	recorder     Recorder
	tickInterval time.Duration

	events chan event
	done   chan struct{}
	onStop func(id string)
}

// newActor wires a started actor around a fresh state. Callers go through
// Registry.Create.
func newActor(state *State, d Dispatcher, rec Recorder, tickInterval time.Duration, onStop func(id string)) *Actor {
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	a := &Actor{
		id:           state.ID(),
		state:        state,
		dispatcher:   d,
		recorder:     rec,
		tickInterval: tickInterval,
		events:       make(chan event, 64),
		done:         make(chan struct{}),
		onStop:       onStop,
	}
	go a.run()
	return a
}

// ID returns the session identifier.
func (a *Actor) ID() string { return a.id }

// run is the actor loop. It exits when the state machine signals termination
// from its idle sweep or when the host terminates the session.
func (a *Actor) run() {
	ticker := time.NewTicker(a.tickInterval)
	defer ticker.Stop()
	defer close(a.done)
	defer a.drainEvents()

	var pending []Message
	var tick int64

	for {
		select {
		case ev := <-a.events:
			switch ev.kind {
			case evJoinAttempt:
				accept, reason := a.state.JoinAttempt(ev.presence)
				ev.joinReply <- joinDecision{accept: accept, reason: reason}
			case evJoin:
				a.state.Join(a.dispatcher, ev.presence)
			case evLeave:
				a.state.Leave(a.dispatcher, a.recorder, ev.presence)
			case evData:
				pending = append(pending, ev.message)
			case evInfo:
				ev.infoReply <- a.state.Info()
			case evTerminate:
				a.state.Terminate(a.dispatcher)
				a.stop()
				return
			}

		case <-ticker.C:
			tick++
			batch := pending
			pending = nil
			if !a.state.Loop(a.dispatcher, a.recorder, tick, batch) {
				log.Printf("match %s: idle for too long, terminating", a.id)
				a.stop()
				return
			}
		}
	}
}

// stop notifies the registry that the actor is gone.
func (a *Actor) stop() {
	if a.onStop != nil {
		a.onStop(a.id)
	}
}

// drainEvents answers any callers still blocked on a reply channel after the
// loop exited.
func (a *Actor) drainEvents() {
	for {
		select {
		case ev := <-a.events:
			switch ev.kind {
			case evJoinAttempt:
				ev.joinReply <- joinDecision{accept: false, reason: "Session closed"}
			case evInfo:
				ev.infoReply <- a.state.Info()
			}
		default:
			return
		}
	}
}

// deliver enqueues an event unless the actor already stopped.
func (a *Actor) deliver(ev event) bool {
	select {
	case <-a.done:
		return false
	case a.events <- ev:
		return true
	}
}

// JoinAttempt runs the admission decision on the actor goroutine and blocks
// for the verdict. A stopped actor rejects.
func (a *Actor) JoinAttempt(p Presence) (accept bool, reason string) {
	reply := make(chan joinDecision, 1)
	if !a.deliver(event{kind: evJoinAttempt, presence: p, joinReply: reply}) {
		return false, "Session closed"
	}
	select {
	case d := <-reply:
		return d.accept, d.reason
	case <-a.done:
		return false, "Session closed"
	}
}

// Join registers an accepted presence with the session.
func (a *Actor) Join(p Presence) {
	a.deliver(event{kind: evJoin, presence: p})
}

// Leave removes a presence from the session.
func (a *Actor) Leave(p Presence) {
	a.deliver(event{kind: evLeave, presence: p})
}

// Data queues an inbound frame for the next tick's batch.
func (a *Actor) Data(sender Presence, op OpCode, data []byte) {
	a.deliver(event{kind: evData, message: Message{Sender: sender, OpCode: op, Data: data}})
}

// Info fetches a metadata snapshot from the actor goroutine.
func (a *Actor) Info() Info {
	reply := make(chan Info, 1)
	if !a.deliver(event{kind: evInfo, infoReply: reply}) {
		return a.state.Info()
	}
	select {
	case info := <-reply:
		return info
	case <-a.done:
		return a.state.Info()
	}
}

// Terminate asks the actor to finish its current work and stop.
func (a *Actor) Terminate() {
	a.deliver(event{kind: evTerminate})
}

// Done exposes actor shutdown for tests and the registry.
func (a *Actor) Done() <-chan struct{} { return a.done }
