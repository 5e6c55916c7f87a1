// Package statemachine provides the small explicit state machine that
// drives a round's protocol phases. It replaces the Qt signal/slot and
// round<->state-machine<->timer reference cycle of the original
// implementation with a plain struct a Round owns directly: states are
// named, each can bind a triggering incoming message kind to a
// handler, and transitions between states are declared up front so
// StateComplete/HandleMessage have a fixed table to consult instead of
// ad hoc branching.
package statemachine

import "github.com/dedis/dissent/errors"

// Handler processes an incoming message payload belonging to the
// current state's trigger kind. StateMachine does not interpret a
// returned error beyond surfacing it to whatever called HandleMessage
// (or SetState, when a buffered message is replayed).
type Handler func(payload []byte) error

// EntryAction runs once when a state is entered, before any trigger
// message is expected. Most states use it to do the actual protocol
// work (generate a key, compute a shuffle step, broadcast a message)
// and then call StateMachine.StateComplete to advance.
type EntryAction func() error

type state struct {
	name        string
	triggerKind int
	hasTrigger  bool
	handler     Handler
	entry       EntryAction
	cycle       bool // SetCycleState: re-entering this state bumps the phase counter instead of moving on
	pending     [][]byte
}

// StateMachine is a named-state machine with explicit transitions.
// Messages for a state that has not been reached yet are buffered
// (pending) and replayed once that state is entered, so a fast peer's
// message sent slightly ahead of the local state transition is not
// lost; messages for a state already passed are simply dropped, with
// the single exception the round layer makes for blame accusations
// (handled above this package, not inside it).
type StateMachine struct {
	states  map[string]*state
	order   []string
	trans   map[string]string
	current string
	phase   int
}

// New returns an empty state machine. Callers add states with
// AddState, declare the linear transition order with AddTransition,
// and then call SetState to enter the first state.
func New() *StateMachine {
	return &StateMachine{
		states: make(map[string]*state),
		trans:  make(map[string]string),
	}
}

// AddState registers a named state. triggerKind/handler are optional:
// pass hasTrigger=false and a nil handler for states that do no
// message handling (OFFLINE, FINISHED, and pure compute states that
// immediately call StateComplete from their EntryAction).
func (m *StateMachine) AddState(name string, hasTrigger bool, triggerKind int, handler Handler, entry EntryAction) {
	m.states[name] = &state{
		name:        name,
		triggerKind: triggerKind,
		hasTrigger:  hasTrigger,
		handler:     handler,
		entry:       entry,
	}
	m.order = append(m.order, name)
}

// AddTransition declares that StateComplete on `from` moves the
// machine to `to`.
func (m *StateMachine) AddTransition(from, to string) {
	m.trans[from] = to
}

// SetCycleState marks a state as cyclic: StateComplete on a cyclic
// state re-enters the SAME state and increments Phase() instead of
// following a transition, which is how a round with a fixed number of
// repeating phases (e.g. each server's shuffle turn, or CSBulk's
// per-phase cipher exchange) is expressed without a transition per
// phase.
func (m *StateMachine) SetCycleState(name string) {
	if s, ok := m.states[name]; ok {
		s.cycle = true
	}
}

// SetState forces a jump to the named state, bypassing the declared
// transition table. Used for blame: an accusation can arrive in any
// state and must force an immediate jump to the accusation-handling
// state regardless of where the round currently is.
func (m *StateMachine) SetState(name string) error {
	s, ok := m.states[name]
	if !ok {
		return errors.New("statemachine: unknown state %q", name)
	}
	m.current = name
	if s.entry != nil {
		if err := s.entry(); err != nil {
			return err
		}
	}
	return m.replayPending(s)
}

// StateComplete signals that the current state's work is done, moving
// the machine along its declared transition (or cycling, for a state
// registered with SetCycleState).
func (m *StateMachine) StateComplete() error {
	s, ok := m.states[m.current]
	if !ok {
		return errors.New("statemachine: current state %q is not registered", m.current)
	}
	if s.cycle {
		m.phase++
		return m.SetState(m.current)
	}
	next, ok := m.trans[m.current]
	if !ok {
		return errors.New("statemachine: no transition declared from %q", m.current)
	}
	return m.SetState(next)
}

// CurrentState returns the name of the active state.
func (m *StateMachine) CurrentState() string {
	return m.current
}

// Phase returns the number of times the current cyclic state has
// looped; it is 0 until the first cycle completes.
func (m *StateMachine) Phase() int {
	return m.phase
}

// HandleMessage dispatches an incoming message of the given kind. If
// it matches the current state's trigger kind it is handled
// immediately. Otherwise it is buffered against whichever registered
// state declares that trigger kind, so a message for a state not yet
// reached is replayed once that state is entered; a message for a
// kind no longer claimed by any future state (the blame exception
// aside, which callers route by forcing SetState directly) is simply
// buffered and never replayed, which is equivalent to dropping it.
func (m *StateMachine) HandleMessage(kind int, payload []byte) error {
	cur, ok := m.states[m.current]
	if ok && cur.hasTrigger && cur.triggerKind == kind {
		return cur.handler(payload)
	}
	for _, name := range m.order {
		if name == m.current {
			continue
		}
		s := m.states[name]
		if s.hasTrigger && s.triggerKind == kind {
			s.pending = append(s.pending, payload)
			return nil
		}
	}
	return nil
}

func (m *StateMachine) replayPending(s *state) error {
	if !s.hasTrigger || len(s.pending) == 0 {
		return nil
	}
	pending := s.pending
	s.pending = nil
	for _, payload := range pending {
		if err := s.handler(payload); err != nil {
			return err
		}
	}
	return nil
}
