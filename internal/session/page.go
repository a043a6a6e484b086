package session

// Page is the persisted snapshot of one board page. Votes are keyed by
// participant name, not client id, so a participant who reconnects under
// a new client id picks their vote back up. The "" name is never stored.
type Page struct {
	Description string
	Timer       TimerState
	Votes       map[string]string
}

func newPage(now int64) *Page {
	return &Page{
		Timer: TimerState{StartTime: now, PausedTime: now},
		Votes: map[string]string{},
	}
}
