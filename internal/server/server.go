// Package server wires the session engine to its two transports and
// exposes them over a single HTTP listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/tibordp/planning-poker/internal/config"
	"github.com/tibordp/planning-poker/internal/metrics"
	"github.com/tibordp/planning-poker/internal/session"
	"github.com/tibordp/planning-poker/internal/transport"
)

type Server struct {
	cfg      config.Config
	store    *session.Store
	longpoll *transport.LongPoll
	wsCfg    transport.WebSocketConfig
	upgrader websocket.Upgrader
	registry *prometheus.Registry
}

func New(cfg config.Config, clock clockwork.Clock) *Server {
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	store := session.NewStore(clock, session.Config{
		HeartbeatTimeout:   cfg.HeartbeatTimeout,
		SessionTTL:         cfg.SessionTTL,
		FinishedSessionTTL: cfg.FinishedSessionTTL,
	}, m)

	wsCfg := transport.DefaultWebSocketConfig()
	wsCfg.MaxMessageSize = cfg.MaxPayloadBytes

	s := &Server{
		cfg:   cfg,
		store: store,
		wsCfg: wsCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The session protocol has no cookie or origin-bound
			// authority, so cross-origin upgrades are safe.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		registry: registry,
	}
	s.longpoll = transport.NewLongPoll(clock, transport.LongPollConfig{
		PollTimeout:     cfg.PollTimeout,
		IdleTimeout:     cfg.IdleTimeout,
		MaxPayloadBytes: cfg.MaxPayloadBytes,
	}, s.connectChannel, m)
	return s
}

// Store exposes the session store, mainly for tests.
func (s *Server) Store() *session.Store { return s.store }

// Handler builds the full route table wrapped in CORS and h2c.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.longpoll.RegisterRoutes(mux)
	s.setupHealthCheck(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return h2c.NewHandler(c.Handler(mux), &http2.Server{})
}

// Run serves until ctx is cancelled, then shuts down gracefully within
// the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	return nil
}

// handleWebSocket upgrades a native connection. The session name and the
// client-generated identity both come from the query string; websocket
// clients use the application heartbeat, fed by the periodic ping the
// client sends over the socket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionName := r.URL.Query().Get("session")
	clientID := r.URL.Query().Get("client_id")
	if sessionName == "" || clientID == "" {
		http.Error(w, "session and client_id are required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("failed to upgrade WebSocket connection")
		return
	}

	ws := transport.NewWebSocketConn(conn, s.wsCfg)
	s.store.Connect(sessionName, clientID, ws, true)
	ws.Run(transport.Handler{
		OnMessage: func(payload []byte) {
			s.store.Receive(sessionName, clientID, ws, payload)
		},
		OnClose: func() {
			s.store.Disconnect(sessionName, clientID, ws)
		},
	})
}

// connectChannel attaches a fresh long-poll channel to a session.
// Long-poll clients skip the application heartbeat: they send nothing
// while idle, and the channel's own idle timeout tracks their liveness.
func (s *Server) connectChannel(ch *transport.Channel, r *http.Request) error {
	sessionName := r.URL.Query().Get("session")
	clientID := r.URL.Query().Get("client_id")
	if sessionName == "" || clientID == "" {
		return fmt.Errorf("session and client_id are required")
	}

	ch.Bind(transport.Handler{
		OnMessage: func(payload []byte) {
			s.store.Receive(sessionName, clientID, ch, payload)
		},
		OnClose: func() {
			s.store.Disconnect(sessionName, clientID, ch)
		},
	})
	s.store.Connect(sessionName, clientID, ch, false)
	return nil
}

func (s *Server) setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Warn().Err(err).Msg("failed to write health check response")
		}
	})
}
