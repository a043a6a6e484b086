package transport

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketConfig holds the connection-level knobs for native sockets.
type WebSocketConfig struct {
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

// DefaultWebSocketConfig returns the production defaults. The ping interval
// must stay below the pong timeout so a live peer always answers in time.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteTimeout:   10 * time.Second,
		PingInterval:   54 * time.Second,
		PongTimeout:    60 * time.Second,
		MaxMessageSize: 1 << 20,
		SendBuffer:     256,
	}
}

// WebSocketConn adapts a gorilla connection to the Conn interface. Writes go
// through a buffered channel drained by a write pump, so Send never blocks
// the session engine; a client too slow to drain its buffer is terminated.
type WebSocketConn struct {
	conn *websocket.Conn
	cfg  WebSocketConfig

	send chan []byte
	done chan struct{}

	closeOnce sync.Once
}

// NewWebSocketConn wraps an upgraded connection. The caller must invoke Run
// to start the pumps; no messages are read or written before that.
func NewWebSocketConn(conn *websocket.Conn, cfg WebSocketConfig) *WebSocketConn {
	return &WebSocketConn{
		conn: conn,
		cfg:  cfg,
		send: make(chan []byte, cfg.SendBuffer),
		done: make(chan struct{}),
	}
}

// Run starts the write pump and reads inbound messages until the connection
// fails or is closed. It blocks; the HTTP handler goroutine that performed
// the upgrade is expected to park here. h.OnClose fires before Run returns.
func (c *WebSocketConn) Run(h Handler) {
	go c.writePump()
	c.readPump(h)
}

// Send queues one outbound message. Messages to a closed connection or one
// with a full send buffer are dropped; the latter also terminates the
// connection, since an unresponsive reader will only fall further behind.
func (c *WebSocketConn) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		log.Warn().Str("remote", c.conn.RemoteAddr().String()).
			Msg("websocket send buffer full, terminating connection")
		c.Terminate()
		return ErrClosed
	}
}

// Close performs a graceful shutdown: a close frame is sent so the peer sees
// a normal closure, then the underlying connection is torn down.
func (c *WebSocketConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(c.cfg.WriteTimeout)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		_ = c.conn.Close()
	})
}

// Terminate severs the connection without a close handshake.
func (c *WebSocketConn) Terminate() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *WebSocketConn) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				c.Terminate()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Msg("websocket ping failed")
				c.Terminate()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *WebSocketConn) readPump(h Handler) {
	defer func() {
		c.Terminate()
		if h.OnClose != nil {
			h.OnClose()
		}
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived) {
				log.Debug().Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}
		if h.OnMessage != nil {
			h.OnMessage(payload)
		}
	}
}
