package session

import (
	"testing"
	"time"

	"github.com/tibordp/planning-poker/internal/protocol"
)

func TestClientOrderingStable(t *testing.T) {
	s, _ := newTestStore()
	// Join in non-alphabetical order, plus one observer.
	joinClient(s, "room", "3", "carol")
	joinClient(s, "room", "1", "alice")
	observer := joinClient(s, "room", "9", "")
	joinClient(s, "room", "2", "bob")

	view := observer.lastView(t)
	var order []string
	for _, c := range view.Clients {
		order = append(order, c.ClientID)
	}
	want := []string{"1", "2", "3", "9"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("client order = %v, want %v (named alphabetically, observers last)", order, want)
		}
	}
}

func TestObserverCount(t *testing.T) {
	s, _ := newTestStore()
	joinClient(s, "room", "a", "alice")
	observer := joinClient(s, "room", "o", "")

	view := observer.lastView(t)
	if view.Observers != 1 {
		t.Errorf("observers = %d, want 1", view.Observers)
	}
	if view.Me == nil || view.Me.Name != nil {
		t.Errorf("observer's me entry = %+v, want unnamed", view.Me)
	}
}

func TestDisconnectedVotesMasked(t *testing.T) {
	s, _ := newTestStore()
	alice := joinClient(s, "room", "a", "alice")
	bob := joinClient(s, "room", "b", "bob")
	act(s, "room", "b", bob, `{"action":"vote","score":"8"}`)
	s.Disconnect("room", "b", bob)

	view := alice.lastView(t)
	if got := view.DisconnectedClients["bob"]; got != protocol.HiddenScore {
		t.Errorf("hidden disconnected vote = %q, want %q", got, protocol.HiddenScore)
	}

	act(s, "room", "a", alice, `{"action":"setVotesVisible","votesVisible":true}`)
	view = alice.lastView(t)
	if got := view.DisconnectedClients["bob"]; got != "8" {
		t.Errorf("revealed disconnected vote = %q, want 8", got)
	}
}

func TestViewCarriesServerTime(t *testing.T) {
	s, clock := newTestStore()
	conn := joinClient(s, "room", "a", "alice")
	msgs := conn.messages(t)
	want := clock.Now().UnixMilli()
	for _, msg := range msgs {
		if msg.ServerTime != want {
			t.Errorf("serverTime = %d, want %d", msg.ServerTime, want)
		}
	}
}

func TestTimerSerialization(t *testing.T) {
	s, clock := newTestStore()
	conn := joinClient(s, "room", "a", "alice")

	start := clock.Now().UnixMilli()
	view := conn.lastView(t)
	if view.TimerState.StartTime != start {
		t.Errorf("startTime = %d, want %d", view.TimerState.StartTime, start)
	}
	if view.TimerState.PausedTime != nil {
		t.Error("fresh session timer is paused")
	}

	clock.Advance(5 * time.Second)
	act(s, "room", "a", conn, `{"action":"pauseTimer"}`)
	view = conn.lastView(t)
	if view.TimerState.PausedTime == nil {
		t.Fatal("pauseTimer did not pause")
	}
	if got := *view.TimerState.PausedTime - view.TimerState.StartTime - view.TimerState.PausedTotal; got != 5000 {
		t.Errorf("elapsed = %dms, want 5000", got)
	}

	clock.Advance(3 * time.Second)
	act(s, "room", "a", conn, `{"action":"startTimer"}`)
	clock.Advance(2 * time.Second)
	act(s, "room", "a", conn, `{"action":"pauseTimer"}`)
	view = conn.lastView(t)
	if got := *view.TimerState.PausedTime - view.TimerState.StartTime - view.TimerState.PausedTotal; got != 7000 {
		t.Errorf("elapsed = %dms, want 7000", got)
	}

	act(s, "room", "a", conn, `{"action":"resetTimer"}`)
	view = conn.lastView(t)
	if got := *view.TimerState.PausedTime - view.TimerState.StartTime - view.TimerState.PausedTotal; got != 0 {
		t.Errorf("elapsed after reset = %dms, want 0", got)
	}
}
