// Package transport provides the two delivery mechanisms for session
// messages: a native WebSocket wrapper and a long-poll emulation. Both
// implement Conn, so the session engine never knows which one it is
// talking to.
package transport

import "errors"

// ErrClosed is returned by Send once a connection is closing or closed.
var ErrClosed = errors.New("transport: connection closed")

// Conn is one client's bidirectional channel.
//
// Close shuts the connection down cooperatively: buffered outbound messages
// are still delivered and the peer observes a clean end-of-stream. Terminate
// severs the connection immediately; it is used when a newer connection for
// the same client supersedes this one and must not be mistaken by the peer
// for a graceful hang-up.
type Conn interface {
	Send(payload []byte) error
	Close()
	Terminate()
}

// Handler receives inbound traffic from a Conn. OnClose fires exactly once,
// after the connection is no longer readable, regardless of which side
// initiated the shutdown.
type Handler struct {
	OnMessage func(payload []byte)
	OnClose   func()
}
