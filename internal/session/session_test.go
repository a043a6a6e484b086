package session

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tibordp/planning-poker/internal/protocol"
	"github.com/tibordp/planning-poker/internal/transport"
)

// fakeConn records everything the store sends so tests can inspect the
// broadcast views without a real transport.
type fakeConn struct {
	mu         sync.Mutex
	sent       [][]byte
	closed     bool
	terminated bool
}

func (f *fakeConn) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return transport.ErrClosed
	}
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) Terminate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.terminated = true
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) isTerminated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminated
}

// messages decodes everything sent so far.
func (f *fakeConn) messages(t *testing.T) []protocol.ServerMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.ServerMessage, len(f.sent))
	for i, payload := range f.sent {
		if err := json.Unmarshal(payload, &out[i]); err != nil {
			t.Fatalf("malformed server message %q: %v", payload, err)
		}
	}
	return out
}

// lastView returns the view carried by the most recent updateState message.
func (f *fakeConn) lastView(t *testing.T) *protocol.View {
	t.Helper()
	msgs := f.messages(t)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Action == protocol.MessageUpdateState {
			return msgs[i].Value
		}
	}
	t.Fatal("no updateState message received")
	return nil
}

// lastAction returns the discriminator of the most recent message.
func (f *fakeConn) lastAction(t *testing.T) string {
	t.Helper()
	msgs := f.messages(t)
	if len(msgs) == 0 {
		t.Fatal("no messages received")
	}
	return msgs[len(msgs)-1].Action
}

func newTestStore() (*Store, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return NewStore(clock, DefaultConfig(), nil), clock
}

// act sends one raw action through the store on behalf of a connected client.
func act(s *Store, sessionName, clientID string, conn transport.Conn, payload string) {
	s.Receive(sessionName, clientID, conn, []byte(payload))
}

// join connects a fresh fake client and names it.
func joinClient(s *Store, sessionName, clientID, name string) *fakeConn {
	conn := &fakeConn{}
	s.Connect(sessionName, clientID, conn, false)
	if name != "" {
		act(s, sessionName, clientID, conn, `{"action":"join","name":"`+name+`"}`)
	}
	return conn
}

// eventually polls for a condition produced by a timer goroutine.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
