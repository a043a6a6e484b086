package session

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/tibordp/planning-poker/internal/metrics"
	"github.com/tibordp/planning-poker/internal/protocol"
	"github.com/tibordp/planning-poker/internal/transport"
)

// Config holds the session lifecycle timeouts.
type Config struct {
	// HeartbeatTimeout closes a websocket client that has not pinged.
	HeartbeatTimeout time.Duration
	// SessionTTL keeps an empty session around for reconnects.
	SessionTTL time.Duration
	// FinishedSessionTTL is the shorter grace period for finished sessions.
	FinishedSessionTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		HeartbeatTimeout:   10 * time.Second,
		SessionTTL:         30 * time.Second,
		FinishedSessionTTL: 10 * time.Second,
	}
}

// Store owns every session. A single mutex guards the whole map and all
// session state; handlers are short and CPU-bound so contention is not a
// concern at the scale of a planning session. Transport sends never block,
// so holding the lock across a broadcast is fine.
type Store struct {
	clock   clockwork.Clock
	cfg     Config
	metrics *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore(clock clockwork.Clock, cfg Config, m *metrics.Metrics) *Store {
	return &Store{
		clock:    clock,
		cfg:      cfg,
		metrics:  m,
		sessions: map[string]*Session{},
	}
}

// Connect attaches a transport to a session, creating the session if it
// does not exist. If the client id is already connected the new transport
// supersedes the old one, which is terminated without touching the
// client's state; that is what makes page reloads and websocket-to-poll
// fallbacks seamless.
func (s *Store) Connect(sessionName, clientID string, conn transport.Conn, useHeartbeat bool) {
	s.mu.Lock()
	now := s.clock.Now().UnixMilli()

	sess := s.sessions[sessionName]
	if sess == nil {
		sess = newSession(now, sessionName, clientID)
		s.sessions[sessionName] = sess
		s.metrics.SessionOpened()
		log.Info().Str("session", sessionName).Msg("creating new session")
	} else if sess.ttlTimer != nil {
		sess.ttlTimer.Stop()
		sess.ttlTimer = nil
	}

	var stale transport.Conn
	client := sess.clients[clientID]
	if client != nil {
		stale = client.conn
		client.conn = conn
		client.useHeartbeat = useHeartbeat
		log.Debug().Str("session", sessionName).Str("client_id", clientID).Msg("client replaced its transport")
	} else {
		client = &Client{id: clientID, conn: conn, useHeartbeat: useHeartbeat}
		sess.clients[clientID] = client
		s.metrics.ClientConnected()
		log.Info().Str("session", sessionName).Str("client_id", clientID).Msg("client connected")
	}
	s.armHeartbeat(sessionName, client)
	s.broadcast(now, sess)
	s.mu.Unlock()

	if stale != nil {
		stale.Terminate()
	}
}

// Receive handles one raw message from a transport. Messages from a
// superseded transport are dropped so a lingering connection cannot act
// on behalf of the client that replaced it.
func (s *Store) Receive(sessionName, clientID string, conn transport.Conn, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[sessionName]
	if sess == nil {
		return
	}
	client := sess.clients[clientID]
	if client == nil || client.conn != conn {
		return
	}
	s.metrics.MessageReceived()
	now := s.clock.Now().UnixMilli()
	s.armHeartbeat(sessionName, client)

	action, err := protocol.DecodeAction(payload)
	if err != nil {
		log.Warn().Str("session", sessionName).Str("client_id", clientID).Err(err).Msg("rejecting message")
		s.sendError(now, client, err)
		return
	}
	if sess.finished {
		return
	}
	if err := s.apply(now, sess, client, action); err != nil {
		s.metrics.ActionError()
		s.sendError(now, client, err)
	}
}

// Disconnect detaches a transport. If another transport already took the
// client over the call is a no-op. When the last client leaves, the
// session is scheduled for deletion rather than deleted, so the state
// survives a brief full disconnect.
func (s *Store) Disconnect(sessionName, clientID string, conn transport.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[sessionName]
	if sess == nil {
		return
	}
	client := sess.clients[clientID]
	if client == nil || client.conn != conn {
		return
	}
	client.stopHeartbeat()
	delete(sess.clients, clientID)
	s.metrics.ClientDisconnected()
	log.Info().Str("session", sessionName).Str("client_id", clientID).Msg("client disconnected")

	now := s.clock.Now().UnixMilli()
	if len(sess.clients) == 0 {
		ttl := s.cfg.SessionTTL
		if sess.finished {
			ttl = s.cfg.FinishedSessionTTL
		}
		sess.ttlTimer = s.clock.AfterFunc(ttl, func() {
			s.expireSession(sessionName)
		})
		log.Info().Str("session", sessionName).Dur("ttl", ttl).Msg("scheduling session for deletion")
		return
	}
	s.broadcast(now, sess)
}

func (s *Store) expireSession(sessionName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[sessionName]
	if sess == nil || len(sess.clients) != 0 {
		return
	}
	delete(s.sessions, sessionName)
	s.metrics.SessionClosed()
	log.Info().Str("session", sessionName).Msg("deleting session")
}

// armHeartbeat restarts the client's liveness deadline. Long-poll clients
// do not use it; an idle poller sends nothing, so their liveness is the
// channel idle timeout instead.
func (s *Store) armHeartbeat(sessionName string, client *Client) {
	if !client.useHeartbeat {
		client.stopHeartbeat()
		return
	}
	if client.heartbeat != nil {
		client.heartbeat.Reset(s.cfg.HeartbeatTimeout)
		return
	}
	clientID := client.id
	client.heartbeat = s.clock.AfterFunc(s.cfg.HeartbeatTimeout, func() {
		s.expireHeartbeat(sessionName, clientID)
	})
}

func (s *Store) expireHeartbeat(sessionName, clientID string) {
	s.mu.Lock()
	var conn transport.Conn
	if sess := s.sessions[sessionName]; sess != nil {
		if client := sess.clients[clientID]; client != nil {
			conn = client.conn
		}
	}
	s.mu.Unlock()

	if conn != nil {
		log.Info().Str("session", sessionName).Str("client_id", clientID).Msg("client heartbeat expired")
		conn.Close()
	}
}

// broadcast pushes a fresh per-client view to everyone. Called with the
// store lock held.
func (s *Store) broadcast(now int64, sess *Session) {
	for _, client := range sess.clients {
		view := serializeSession(sess, client)
		s.send(now, client, protocol.ServerMessage{
			Action: protocol.MessageUpdateState,
			Value:  view,
		})
	}
}

func (s *Store) sendError(now int64, client *Client, err error) {
	s.send(now, client, protocol.ServerMessage{
		Action: protocol.MessageError,
		Error:  err.Error(),
	})
}

func (s *Store) send(now int64, client *Client, msg protocol.ServerMessage) {
	msg.ServerTime = now
	data, err := msg.Encode()
	if err != nil {
		log.Error().Err(err).Msg("failed to encode message")
		return
	}
	if err := client.conn.Send(data); err != nil {
		s.metrics.MessageDropped()
		return
	}
	s.metrics.MessageSent()
}

// SessionCount reports the number of live sessions, including empty ones
// still inside their reconnect grace period.
func (s *Store) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
