package session

import (
	"sync"
	"time"

	"eloquence-server-go/internal/domain/agent"
	"eloquence-server-go/internal/domain/dialogue"
	"eloquence-server-go/internal/domain/scenario"
)

// Session is the server-side state of one coaching conversation. It is
// created over HTTP and later bound to a websocket connection.
type Session struct {
	ID        string
	UserID    string
	Language  string
	Goal      string
	Agent     *agent.Profile
	Scenario  *scenario.State
	History   *dialogue.Manager
	Arbiter   *Arbiter
	CreatedAt time.Time

	mu         sync.Mutex
	state      TurnState
	lastActive time.Time
	bound      bool
}

// NewSession builds a session in the listening state.
func NewSession(id string, profile *agent.Profile, scState *scenario.State) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Agent:      profile,
		Scenario:   scState,
		History:    dialogue.NewManager(),
		Arbiter:    NewArbiter(),
		CreatedAt:  now,
		state:      StateListening,
		lastActive: now,
	}
}

// Lang returns the session language, falling back to the agent's.
func (s *Session) Lang() string {
	if s.Language != "" {
		return s.Language
	}
	if s.Agent != nil && s.Agent.Language != "" {
		return s.Agent.Language
	}
	return "fr"
}

// State returns the current turn state.
func (s *Session) State() TurnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState validates and applies a transition.
func (s *Session) SetState(to TurnState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := Transition(s.state, to)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// Touch refreshes the idle clock.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
}

// IdleFor reports whether the session saw no activity for longer than d.
func (s *Session) IdleFor(d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActive) > d
}

// Bind marks the session as attached to a websocket connection. Only
// one connection may hold a session at a time.
func (s *Session) Bind() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound || s.state == StateClosed {
		return false
	}
	s.bound = true
	s.lastActive = time.Now()
	return true
}

// Unbind releases the websocket binding.
func (s *Session) Unbind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bound = false
}

// Closed reports whether the session reached its terminal state.
func (s *Session) Closed() bool {
	return s.State() == StateClosed
}

// Close moves the session to the terminal state and stops any turn.
func (s *Session) Close(cause error) {
	s.mu.Lock()
	if s.state != StateClosed {
		s.state = StateClosed
	}
	s.mu.Unlock()
	s.Arbiter.Stop(cause)
}
