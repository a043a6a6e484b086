package session

import "github.com/tibordp/planning-poker/internal/protocol"

// TimerState is the shared stopwatch. All fields are Unix milliseconds;
// PausedTime is zero while the timer runs. Elapsed time is
// (pausedTime ?? now) - startTime - pausedTotal, and clients recompute it
// locally between pushes, so these transitions must keep the formula exact.
type TimerState struct {
	StartTime   int64
	PausedTime  int64
	PausedTotal int64
}

// Start resumes the timer, folding the just-ended paused interval into
// PausedTotal. Starting a running timer is a no-op.
func (t *TimerState) Start(now int64) {
	if t.PausedTime != 0 {
		t.PausedTotal += now - t.PausedTime
		t.PausedTime = 0
	}
}

// Pause freezes the timer. Pausing a paused timer is a no-op.
func (t *TimerState) Pause(now int64) {
	if t.PausedTime == 0 {
		t.PausedTime = now
	}
}

// Reset restarts the elapsed time from zero, preserving paused-ness.
func (t *TimerState) Reset(now int64) {
	t.StartTime = now
	if t.PausedTime != 0 {
		t.PausedTime = now
	}
	t.PausedTotal = 0
}

// Elapsed returns the running total in milliseconds.
func (t TimerState) Elapsed(now int64) int64 {
	reference := t.PausedTime
	if reference == 0 {
		reference = now
	}
	return reference - t.StartTime - t.PausedTotal
}

func (t TimerState) view() protocol.TimerView {
	v := protocol.TimerView{
		StartTime:   t.StartTime,
		PausedTotal: t.PausedTotal,
	}
	if t.PausedTime != 0 {
		paused := t.PausedTime
		v.PausedTime = &paused
	}
	return v
}
