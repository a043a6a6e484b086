package transport

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/tibordp/planning-poker/internal/metrics"
)

// LongPollConfig configures the dispatcher and the channels it creates.
type LongPollConfig struct {
	PollTimeout     time.Duration
	IdleTimeout     time.Duration
	MaxPayloadBytes int64
}

// DefaultLongPollConfig returns the production defaults.
func DefaultLongPollConfig() LongPollConfig {
	return LongPollConfig{
		PollTimeout:     30 * time.Second,
		IdleTimeout:     60 * time.Second,
		MaxPayloadBytes: 1 << 20,
	}
}

// ConnectFunc attaches a freshly created channel to its consumer (the
// session engine). Returning an error rejects the connect request before
// the channel id is revealed.
type ConnectFunc func(ch *Channel, r *http.Request) error

// LongPoll multiplexes virtual channels behind four stateless HTTP verbs,
// routing by the opaque channel id handed out on connect.
type LongPoll struct {
	clock     clockwork.Clock
	cfg       LongPollConfig
	onConnect ConnectFunc
	metrics   *metrics.Metrics

	mu       sync.Mutex
	channels map[string]*Channel
}

// NewLongPoll creates a dispatcher. onConnect is required; metrics may be nil.
func NewLongPoll(clock clockwork.Clock, cfg LongPollConfig, onConnect ConnectFunc, m *metrics.Metrics) *LongPoll {
	return &LongPoll{
		clock:     clock,
		cfg:       cfg,
		onConnect: onConnect,
		metrics:   m,
		channels:  make(map[string]*Channel),
	}
}

// RegisterRoutes mounts the four long-poll verbs on mux.
func (lp *LongPoll) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/lp/connect", lp.handleConnect)
	mux.HandleFunc("/lp/poll", lp.handlePoll)
	mux.HandleFunc("/lp/send", lp.handleSend)
	mux.HandleFunc("/lp/disconnect", lp.handleDisconnect)
}

// ChannelCount returns the number of open channels.
func (lp *LongPoll) ChannelCount() int {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return len(lp.channels)
}

func (lp *LongPoll) channel(r *http.Request) *Channel {
	id := r.URL.Query().Get("socket_id")
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.channels[id]
}

func (lp *LongPoll) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := uuid.NewString()
	ch := NewChannel(id, lp.clock, ChannelConfig{
		PollTimeout: lp.cfg.PollTimeout,
		IdleTimeout: lp.cfg.IdleTimeout,
	})
	ch.onTeardown = func() {
		lp.mu.Lock()
		delete(lp.channels, id)
		lp.mu.Unlock()
		lp.metrics.ChannelClosed()
		log.Debug().Str("socket_id", id).Msg("long-poll channel closed")
	}

	lp.mu.Lock()
	lp.channels[id] = ch
	lp.mu.Unlock()
	lp.metrics.ChannelOpened()

	if err := lp.onConnect(ch, r); err != nil {
		log.Warn().Err(err).Msg("long-poll connect rejected")
		ch.Terminate()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	log.Debug().Str("socket_id", id).Msg("long-poll channel opened")
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(id))
}

func (lp *LongPoll) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ch := lp.channel(r)
	if ch == nil {
		w.WriteHeader(http.StatusGone)
		return
	}

	messages, status := ch.Poll(r.Context())
	switch status {
	case http.StatusOK:
		encoded := make([]string, len(messages))
		for i, payload := range messages {
			encoded[i] = base64.StdEncoding.EncodeToString(payload)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(encoded)
	case http.StatusGone:
		w.WriteHeader(http.StatusGone)
	default:
		// Terminated channel or abandoned request: sever without a response.
		panic(http.ErrAbortHandler)
	}
}

func (lp *LongPoll) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, lp.cfg.MaxPayloadBytes))
	if err != nil {
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	ch := lp.channel(r)
	if ch == nil {
		w.WriteHeader(http.StatusGone)
		return
	}
	if err := ch.Deliver(body); err != nil {
		w.WriteHeader(http.StatusGone)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
}

func (lp *LongPoll) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if ch := lp.channel(r); ch != nil {
		ch.Close()
	}
	w.WriteHeader(http.StatusOK)
}
