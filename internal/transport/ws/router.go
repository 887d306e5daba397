package ws

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"eloquence-server-go/internal/platform/logging"
)

// HandlerBuilder creates a session handler for an upgraded websocket
// connection. Returning an error closes the connection immediately.
type HandlerBuilder func(conn *Connection, req *http.Request) (SessionHandler, error)

// Router is responsible for upgrading HTTP connections to websocket sessions.
type Router struct {
	hub    *Hub
	logger *logging.Logger

	upgrader         *websocket.Upgrader
	handshakeTimeout time.Duration
	builder          atomic.Value // HandlerBuilder
}

// RouterOptions configures the websocket router.
type RouterOptions struct {
	HandshakeTimeout time.Duration
	AllowedOrigins   []string
}

// NewRouter constructs a websocket router.
func NewRouter(hub *Hub, logger *logging.Logger, opts RouterOptions) *Router {
	upgrader := &websocket.Upgrader{
		CheckOrigin: originChecker(opts.AllowedOrigins),
	}

	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Router{
		hub:              hub,
		logger:           logger,
		upgrader:         upgrader,
		handshakeTimeout: timeout,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	for _, origin := range allowed {
		if origin == "*" {
			return func(r *http.Request) bool { return true }
		}
	}
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		set[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return set[origin]
	}
}

// SetHandlerBuilder registers the handler builder invoked after a successful upgrade.
func (r *Router) SetHandlerBuilder(builder HandlerBuilder) {
	r.builder.Store(builder)
}

// Handle upgrades the HTTP connection and launches a new websocket session.
func (r *Router) Handle(w http.ResponseWriter, req *http.Request) {
	value := r.builder.Load()
	if value == nil {
		http.Error(w, "websocket handler not ready", http.StatusServiceUnavailable)
		return
	}
	builder := value.(HandlerBuilder)

	handshakeCtx, cancel := context.WithTimeoutCause(req.Context(), r.handshakeTimeout, ErrHandshakeTimeout)
	defer cancel()
	req = req.WithContext(handshakeCtx)

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		if r.logger != nil {
			r.logger.ErrorTag("WebSocket", "upgrade failed: %v", err)
		}
		return
	}

	clientID := resolveClientID(req, conn)
	if r.logger != nil {
		r.logger.InfoTag("WebSocket", "connection established client=%s", clientID)
	}

	wsConn := NewConnection(clientID, conn)

	handler, err := builder(wsConn, req)
	if err != nil || handler == nil {
		if r.logger != nil {
			r.logger.ErrorTag("WebSocket", "handler creation failed: %v", err)
		}
		_ = wsConn.Close()
		return
	}

	// The handshake deadline only covers the upgrade, the session lives
	// until the connection ends.
	session := NewSession(context.Background(), handler, wsConn, r.logger)
	r.hub.Register(session)

	go session.Run(func() {
		r.hub.Unregister(session.ID())
		if r.logger != nil {
			r.logger.InfoTag("WebSocket", "connection ended client=%s", session.ID())
		}
	})
}

func resolveClientID(req *http.Request, conn *websocket.Conn) string {
	clientID := req.URL.Query().Get("session_id")
	if clientID == "" {
		clientID = req.Header.Get("Client-Id")
	}
	if clientID == "" {
		clientID = fmt.Sprintf("%p", conn)
	}
	return clientID
}
