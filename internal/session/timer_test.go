package session

import "testing"

func TestTimerTransitions(t *testing.T) {
	timer := TimerState{StartTime: 0}

	if got := timer.Elapsed(1000); got != 1000 {
		t.Errorf("Elapsed = %d, want 1000", got)
	}

	timer.Start(1000) // starting a running timer is a no-op
	if got := timer.Elapsed(2000); got != 2000 {
		t.Errorf("Elapsed after redundant start = %d, want 2000", got)
	}

	timer.Pause(2000)
	timer.Pause(3000) // pausing a paused timer is a no-op
	if got := timer.Elapsed(5000); got != 2000 {
		t.Errorf("Elapsed while paused = %d, want 2000", got)
	}

	timer.Start(5000)
	if got := timer.Elapsed(6000); got != 3000 {
		t.Errorf("Elapsed after resume = %d, want 3000", got)
	}

	timer.Reset(6000)
	if got := timer.Elapsed(6500); got != 500 {
		t.Errorf("Elapsed after reset = %d, want 500", got)
	}

	// Reset preserves paused-ness.
	timer.Pause(7000)
	timer.Reset(8000)
	if got := timer.Elapsed(9000); got != 0 {
		t.Errorf("Elapsed after paused reset = %d, want 0", got)
	}
}
