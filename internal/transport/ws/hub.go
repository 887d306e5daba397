package ws

import (
	"sync"

	"eloquence-server-go/internal/platform/logging"
)

// Hub tracks the active websocket sessions for a transport instance.
type Hub struct {
	logger   *logging.Logger
	sessions sync.Map // map[string]*Session
}

// NewHub builds a fresh session hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger: logger,
	}
}

// Register adds a new session to the hub.
func (h *Hub) Register(session *Session) {
	if session == nil {
		return
	}
	h.sessions.Store(session.ID(), session)
}

// Unregister removes the session from the hub.
func (h *Hub) Unregister(id string) {
	if id == "" {
		return
	}
	h.sessions.Delete(id)
}

// Get returns the session registered under id, if any.
func (h *Hub) Get(id string) (*Session, bool) {
	value, ok := h.sessions.Load(id)
	if !ok {
		return nil, false
	}
	session, ok := value.(*Session)
	return session, ok
}

// CloseAll terminates all active sessions and waits for their shutdown.
func (h *Hub) CloseAll(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}

	h.sessions.Range(func(key, value any) bool {
		if session, ok := value.(*Session); ok {
			session.Close(reason)
		}
		h.sessions.Delete(key)
		return true
	})
}

// Count exposes the number of active websocket sessions.
func (h *Hub) Count() int {
	count := 0
	h.sessions.Range(func(key, value any) bool {
		count++
		return true
	})
	return count
}
