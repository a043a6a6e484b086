package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ChannelConfig holds the two durations governing long-poll timing.
// PollTimeout bounds how long a poll response may be held open before being
// flushed empty; IdleTimeout bounds how long a channel survives with no poll
// at all. Together they give pushed messages an end-to-end latency of at most
// PollTimeout without requiring the client to poll faster than IdleTimeout.
type ChannelConfig struct {
	PollTimeout time.Duration
	IdleTimeout time.Duration
}

type pollResult struct {
	status   int
	messages [][]byte
}

type pendingPoll struct {
	arrivedAt time.Time
	result    chan pollResult
}

// Channel emulates a bidirectional socket over HTTP request/response cycles.
// Outbound messages accumulate in a buffer and are flushed to the oldest
// pending poll; a single timer wakes the channel at the earlier of the idle
// deadline and the oldest poll's flush deadline.
type Channel struct {
	id    string
	clock clockwork.Clock
	cfg   ChannelConfig

	mu       sync.Mutex
	handler  Handler
	messages [][]byte
	polls    []pendingPoll
	lastPoll time.Time
	closing  bool
	closed   bool
	timer    clockwork.Timer

	// onTeardown deregisters the channel from its dispatcher. Fired once,
	// on a fresh goroutine, together with handler.OnClose.
	onTeardown func()
}

// NewChannel creates an open channel whose idle countdown starts immediately.
func NewChannel(id string, clock clockwork.Clock, cfg ChannelConfig) *Channel {
	c := &Channel{
		id:       id,
		clock:    clock,
		cfg:      cfg,
		lastPoll: clock.Now(),
	}
	c.timer = clock.AfterFunc(cfg.IdleTimeout, c.onTimer)
	return c
}

// ID returns the opaque identifier the dispatcher routes by.
func (c *Channel) ID() string { return c.id }

// Bind attaches the consumer of inbound traffic. It must be called before
// the first Deliver; the dispatcher guarantees this by binding during
// connect, before the channel id is revealed to the client.
func (c *Channel) Bind(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Send queues one outbound message and flushes it into a pending poll if one
// is waiting.
func (c *Channel) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing || c.closed {
		return ErrClosed
	}
	c.messages = append(c.messages, payload)
	c.check(c.clock.Now())
	return nil
}

// Deliver routes one inbound message to the bound handler.
func (c *Channel) Deliver(payload []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	h := c.handler
	c.mu.Unlock()

	if h.OnMessage != nil {
		h.OnMessage(payload)
	}
	return nil
}

// Poll attaches a caller as a pending receiver and blocks until the channel
// flushes messages to it, holds it for the full poll timeout, or goes away.
// The returned status is http.StatusOK with messages, http.StatusGone when
// the channel is no longer usable, or 0 when the response must be aborted
// without a status (terminated channel or abandoned request).
func (c *Channel) Poll(ctx context.Context) ([][]byte, int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, http.StatusGone
	}
	now := c.clock.Now()
	p := pendingPoll{arrivedAt: now, result: make(chan pollResult, 1)}
	c.polls = append(c.polls, p)
	c.lastPoll = now
	c.check(now)
	c.mu.Unlock()

	select {
	case res := <-p.result:
		return res.messages, res.status
	case <-ctx.Done():
		// The poller went away. Any flush into this slot is lost, which is
		// fine: state is reconstructed from the next full broadcast.
		return nil, 0
	}
}

// Close marks the channel closing. Buffered messages are still flushed to a
// pending or subsequent poll; once the buffer is empty the channel is torn
// down and held polls complete with a gone status.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closing = true
	c.check(c.clock.Now())
}

// Terminate tears the channel down immediately. Held polls are aborted
// rather than completed, so the consumer does not mistake the teardown for a
// graceful hang-up.
func (c *Channel) Terminate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, p := range c.polls {
		p.result <- pollResult{status: 0}
	}
	c.polls = nil
	c.teardown()
}

func (c *Channel) onTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.check(c.clock.Now())
	}
}

// check is the single scheduling step: flush polls that have messages or
// have been held long enough, tear down when closing-and-drained or idle,
// otherwise rearm the timer for the next deadline. Caller holds c.mu.
func (c *Channel) check(now time.Time) {
	for len(c.polls) > 0 &&
		(len(c.messages) > 0 || now.Sub(c.polls[0].arrivedAt) >= c.cfg.PollTimeout) {
		p := c.polls[0]
		c.polls = c.polls[1:]
		p.result <- pollResult{status: http.StatusOK, messages: c.messages}
		c.messages = nil
	}

	idleDeadline := c.lastPoll.Add(c.cfg.IdleTimeout)
	if (len(c.messages) == 0 && c.closing) || !now.Before(idleDeadline) {
		for _, p := range c.polls {
			p.result <- pollResult{status: http.StatusGone}
		}
		c.polls = nil
		c.teardown()
		return
	}

	next := idleDeadline
	if len(c.polls) > 0 {
		if flushAt := c.polls[0].arrivedAt.Add(c.cfg.PollTimeout); flushAt.Before(next) {
			next = flushAt
		}
	}
	c.timer.Reset(next.Sub(now))
}

// teardown finalizes the channel. Caller holds c.mu; the teardown and close
// callbacks run on their own goroutine to keep lock ordering one-way
// (store -> channel, never channel -> store).
func (c *Channel) teardown() {
	c.closed = true
	c.timer.Stop()
	h := c.handler
	cb := c.onTeardown
	go func() {
		if cb != nil {
			cb()
		}
		if h.OnClose != nil {
			h.OnClose()
		}
	}()
}
