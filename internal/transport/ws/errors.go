package ws

import "errors"

var (
	// ErrHandshakeTimeout indicates the websocket handshake exceeded the configured timeout.
	ErrHandshakeTimeout = errors.New("websocket handshake timed out")
	// ErrSessionShutdown is emitted when the server requests a session shutdown.
	ErrSessionShutdown = errors.New("websocket session shutdown")
	// ErrIdleTimeout is emitted when a session saw no client activity for too long.
	ErrIdleTimeout = errors.New("websocket session idle timeout")
	// ErrSlowConsumer is emitted when the client cannot keep up with inbound audio.
	ErrSlowConsumer = errors.New("websocket client too slow")
)
