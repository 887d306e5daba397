package session

import (
	"context"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"

	"eloquence-server-go/internal/domain/agent"
	"eloquence-server-go/internal/domain/scenario"
	"eloquence-server-go/internal/platform/logging"
)

// Event topics published on the session bus.
const (
	TopicCreated  = "session:created"
	TopicClosed   = "session:closed"
	TopicExpired  = "session:expired"
	TopicBargeIn  = "session:barge_in"
	TopicDegraded = "session:degraded"
)

// Registry owns every live session.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	logger   *logging.Logger
	bus      EventBus.Bus
}

func NewRegistry(logger *logging.Logger, bus EventBus.Bus) *Registry {
	if bus == nil {
		bus = EventBus.New()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger,
		bus:      bus,
	}
}

// Bus exposes the session event bus.
func (r *Registry) Bus() EventBus.Bus {
	return r.bus
}

// Create mints a new session with a fresh identifier.
func (r *Registry) Create(profile *agent.Profile, scState *scenario.State) *Session {
	s := NewSession(uuid.NewString(), profile, scState)

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.InfoTag("Session", "created %s agent=%s", s.ID, profile.ID)
	}
	r.bus.Publish(TopicCreated, s.ID)
	return s
}

// Get returns the session by ID.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Delete closes and removes the session. The boolean reports whether it
// existed, so deletion stays idempotent at the API surface.
func (r *Registry) Delete(id string, cause error) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	s.Close(cause)
	if r.logger != nil {
		r.logger.InfoTag("Session", "closed %s", id)
	}
	r.bus.Publish(TopicClosed, id)
	return true
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep periodically removes sessions idle beyond the timeout. It
// blocks until ctx is done.
func (r *Registry) Sweep(ctx context.Context, idleTimeout, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.expireIdle(idleTimeout)
		}
	}
}

func (r *Registry) expireIdle(idleTimeout time.Duration) {
	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.IdleFor(idleTimeout) {
			delete(r.sessions, id)
			expired = append(expired, s)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close(context.DeadlineExceeded)
		if r.logger != nil {
			r.logger.WarnTag("Session", "expired %s after inactivity", s.ID)
		}
		r.bus.Publish(TopicExpired, s.ID)
	}
}

// CloseAll terminates every session, used during shutdown.
func (r *Registry) CloseAll(cause error) {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range all {
		s.Close(cause)
		r.bus.Publish(TopicClosed, s.ID)
	}
}
