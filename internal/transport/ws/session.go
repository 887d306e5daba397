package ws

import (
	"context"
	"sync/atomic"
	"time"

	"eloquence-server-go/internal/platform/logging"
)

const defaultCloseTimeout = 5 * time.Second

// SessionHandler runs the conversation loop bound to one connection.
type SessionHandler interface {
	Handle()
	Close()
	GetSessionID() string
}

// Session is the transport-side lifecycle of one websocket connection.
// It lives and dies with the connection; the coaching session behind
// the handler survives it and can be rebound after a drop.
type Session struct {
	id      string
	handler SessionHandler
	conn    *Connection
	logger  *logging.Logger

	ctx    context.Context
	cancel context.CancelCauseFunc

	closed atomic.Bool
}

// NewSession constructs a managed websocket session.
func NewSession(parent context.Context, handler SessionHandler, conn *Connection, logger *logging.Logger) *Session {
	sessionCtx, cancel := context.WithCancelCause(parent)
	return &Session{
		id:      handler.GetSessionID(),
		handler: handler,
		conn:    conn,
		logger:  logger,
		ctx:     sessionCtx,
		cancel:  cancel,
	}
}

// Context returns the session context.
func (s *Session) Context() context.Context {
	return s.ctx
}

// ID exposes the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Run blocks in the handler's read loop and tears the transport
// session down when it returns, whatever the reason. onDone fires
// after teardown so the hub can drop its entry.
func (s *Session) Run(onDone func()) {
	defer func() {
		s.Close(nil)
		if onDone != nil {
			onDone()
		}
	}()

	s.handler.Handle()
}

// Close terminates the transport session: the handler gets a bounded
// window to release the coaching session binding, then the connection
// is closed regardless.
func (s *Session) Close(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}

	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	if s.cancel != nil {
		s.cancel(reason)
	}

	shutdownCtx, cancel := context.WithTimeoutCause(context.Background(), defaultCloseTimeout, reason)
	defer cancel()

	if s.handler != nil {
		done := make(chan struct{})
		go func() {
			s.handler.Close()
			close(done)
		}()

		select {
		case <-done:
		case <-shutdownCtx.Done():
			if s.logger != nil {
				s.logger.Warn("session %s handler close timed out: %v", s.id, context.Cause(shutdownCtx))
			}
		}
	}

	if s.conn != nil {
		if err := s.conn.Close(); err != nil && s.logger != nil {
			s.logger.Warn("session %s connection close failed: %v", s.id, err)
		}
	}
}
