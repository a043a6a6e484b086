package session

import (
	"testing"
	"time"
)

func TestSessionCreatedLazily(t *testing.T) {
	s, _ := newTestStore()
	if got := s.SessionCount(); got != 0 {
		t.Fatalf("SessionCount() = %d, want 0", got)
	}
	conn := joinClient(s, "room", "a", "alice")
	if got := s.SessionCount(); got != 1 {
		t.Fatalf("SessionCount() = %d, want 1", got)
	}
	view := conn.lastView(t)
	if view.Host != "a" {
		t.Errorf("host = %q, want the creating client", view.Host)
	}
	if view.Epoch != 0 {
		t.Errorf("epoch = %d, want 0", view.Epoch)
	}
}

func TestSessionExpiresAfterTTL(t *testing.T) {
	s, clock := newTestStore()
	conn := joinClient(s, "room", "a", "alice")
	s.Disconnect("room", "a", conn)

	if got := s.SessionCount(); got != 1 {
		t.Fatalf("session deleted before its TTL elapsed")
	}
	clock.Advance(DefaultConfig().SessionTTL + time.Millisecond)
	eventually(t, func() bool { return s.SessionCount() == 0 })
}

func TestReconnectWithinTTLKeepsState(t *testing.T) {
	s, clock := newTestStore()
	conn := joinClient(s, "room", "a", "alice")
	act(s, "room", "a", conn, `{"action":"vote","score":"5"}`)
	act(s, "room", "a", conn, `{"action":"resetBoard"}`)
	act(s, "room", "a", conn, `{"action":"vote","score":"8"}`)
	epoch := conn.lastView(t).Epoch
	s.Disconnect("room", "a", conn)

	clock.Advance(DefaultConfig().SessionTTL - time.Second)

	conn2 := &fakeConn{}
	s.Connect("room", "a", conn2, false)
	view := conn2.lastView(t)
	if view.Epoch != epoch {
		t.Errorf("epoch = %d, want %d preserved across the disconnect", view.Epoch, epoch)
	}
	if _, ok := view.DisconnectedClients["alice"]; !ok {
		t.Errorf("stored vote lost: %v", view.DisconnectedClients)
	}

	// The reconnect cancelled the deletion timer.
	clock.Advance(DefaultConfig().SessionTTL * 2)
	time.Sleep(20 * time.Millisecond)
	if got := s.SessionCount(); got != 1 {
		t.Errorf("SessionCount() = %d, session reaped despite a live client", got)
	}
}

func TestExpiredSessionStartsFresh(t *testing.T) {
	s, clock := newTestStore()
	conn := joinClient(s, "room", "a", "alice")
	act(s, "room", "a", conn, `{"action":"resetBoard"}`)
	s.Disconnect("room", "a", conn)

	clock.Advance(DefaultConfig().SessionTTL + time.Millisecond)
	eventually(t, func() bool { return s.SessionCount() == 0 })

	conn2 := &fakeConn{}
	s.Connect("room", "a", conn2, false)
	if got := conn2.lastView(t).Epoch; got != 0 {
		t.Errorf("epoch = %d, want a fresh session after expiry", got)
	}
}

func TestFinishedSessionShorterTTL(t *testing.T) {
	s, clock := newTestStore()
	conn := joinClient(s, "room", "a", "alice")
	act(s, "room", "a", conn, `{"action":"finishSession"}`)
	s.Disconnect("room", "a", conn)

	clock.Advance(DefaultConfig().FinishedSessionTTL + time.Millisecond)
	eventually(t, func() bool { return s.SessionCount() == 0 })
}

func TestTransportReplacement(t *testing.T) {
	s, _ := newTestStore()
	conn1 := joinClient(s, "room", "a", "alice")

	conn2 := &fakeConn{}
	s.Connect("room", "a", conn2, false)
	if !conn1.isTerminated() {
		t.Error("superseded transport not terminated")
	}

	// Traffic from the stale transport is ignored.
	before := conn2.lastView(t)
	act(s, "room", "a", conn1, `{"action":"resetBoard"}`)
	if got := conn2.lastView(t); got.Epoch != before.Epoch {
		t.Error("stale transport mutated session state")
	}

	// A stale disconnect must not detach the replacement.
	s.Disconnect("room", "a", conn1)
	act(s, "room", "a", conn2, `{"action":"resetBoard"}`)
	if got := conn2.lastView(t); got.Epoch != before.Epoch+1 {
		t.Error("replacement transport detached by a stale disconnect")
	}
	// The name survived the whole handover.
	if me := conn2.lastView(t).Me; me.Name == nil || *me.Name != "alice" {
		t.Errorf("identity lost across transport replacement: %+v", me)
	}
}

func TestHeartbeatExpiry(t *testing.T) {
	s, clock := newTestStore()
	conn := &fakeConn{}
	s.Connect("room", "a", conn, true)

	clock.Advance(DefaultConfig().HeartbeatTimeout + time.Millisecond)
	eventually(t, conn.isClosed)
}

func TestHeartbeatResetByTraffic(t *testing.T) {
	s, clock := newTestStore()
	conn := &fakeConn{}
	s.Connect("room", "a", conn, true)

	timeout := DefaultConfig().HeartbeatTimeout
	clock.Advance(timeout / 2)
	act(s, "room", "a", conn, `{"action":"ping"}`)
	clock.Advance(timeout - time.Second)
	time.Sleep(20 * time.Millisecond)
	if conn.isClosed() {
		t.Fatal("connection closed despite recent traffic")
	}
	clock.Advance(timeout)
	eventually(t, conn.isClosed)
}

func TestLongPollClientSkipsHeartbeat(t *testing.T) {
	s, clock := newTestStore()
	conn := &fakeConn{}
	s.Connect("room", "a", conn, false)

	// A long-poll client sends nothing while the user is idle; only the
	// channel idle timeout may take it down, never the heartbeat.
	clock.Advance(DefaultConfig().HeartbeatTimeout * 3)
	time.Sleep(20 * time.Millisecond)
	if conn.isClosed() {
		t.Error("heartbeat applied to a transport that does not use it")
	}
}

func TestDisconnectBroadcastsToRemaining(t *testing.T) {
	s, _ := newTestStore()
	alice := joinClient(s, "room", "a", "alice")
	bob := joinClient(s, "room", "b", "bob")

	before := len(alice.messages(t))
	s.Disconnect("room", "b", bob)
	msgs := alice.messages(t)
	if len(msgs) != before+1 {
		t.Fatalf("remaining client got %d extra messages, want 1", len(msgs)-before)
	}
	view := alice.lastView(t)
	if len(view.Clients) != 1 {
		t.Errorf("clients = %d, want the departed client gone", len(view.Clients))
	}
}
