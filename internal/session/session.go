package session

import (
	"github.com/jonboulle/clockwork"

	"github.com/tibordp/planning-poker/internal/protocol"
)

// Session holds the live state of one board plus the connected clients.
// The live fields (description, timer, client scores) shadow the current
// page; savePage folds them back into pages[pageIndex] and restorePage
// loads them out again, mirroring what a page turn does.
type Session struct {
	name string

	description  string
	settings     protocol.Settings
	pages        []*Page
	pageIndex    int
	timer        TimerState
	votesVisible bool
	host         string
	epoch        int64
	finished     bool

	clients  map[string]*Client
	ttlTimer clockwork.Timer
}

func newSession(now int64, name, hostID string) *Session {
	sess := &Session{
		name:     name,
		settings: protocol.DefaultSettings(),
		pages:    []*Page{newPage(now)},
		timer:    TimerState{StartTime: now},
		host:     hostID,
		clients:  map[string]*Client{},
	}
	sess.savePage(now)
	return sess
}

func (sess *Session) currentPage() *Page {
	return sess.pages[sess.pageIndex]
}

// savePage merges the live state into the current page. Votes already on
// the page are kept unless a connected participant overrides them, which
// is what keeps votes of disconnected participants around; a connected
// participant with no vote removes any stale one under their name.
func (sess *Session) savePage(now int64) {
	page := sess.currentPage()
	votes := page.Votes
	if votes == nil {
		votes = map[string]string{}
	}
	for _, c := range sess.clients {
		if c.name == "" {
			continue
		}
		if c.score != "" {
			votes[c.name] = c.score
		} else {
			delete(votes, c.name)
		}
	}
	saved := sess.timer
	if saved.PausedTime == 0 {
		saved.PausedTime = now
	}
	sess.pages[sess.pageIndex] = &Page{
		Description: sess.description,
		Timer:       saved,
		Votes:       votes,
	}
}

// restorePage loads the current page into the live state. Each connected
// participant gets their stored vote back, and vote visibility is
// recomputed so a fully-voted page comes back revealed.
func (sess *Session) restorePage() {
	page := sess.currentPage()
	sess.description = page.Description
	sess.timer = page.Timer
	for _, c := range sess.clients {
		c.score = page.Votes[c.name]
	}
	sess.votesVisible = sess.allVoted()
}

// resetBoard starts a new voting round: hides votes, bumps the epoch,
// clears all live and stored votes and optionally restarts the timer.
func (sess *Session) resetBoard(now int64, resetTimer bool) {
	sess.votesVisible = false
	sess.epoch++
	if resetTimer {
		sess.timer.Reset(now)
	}
	for _, c := range sess.clients {
		c.score = ""
	}
	sess.currentPage().Votes = map[string]string{}
}

func (sess *Session) participants() int {
	n := 0
	for _, c := range sess.clients {
		if c.name != "" {
			n++
		}
	}
	return n
}

func (sess *Session) allVoted() bool {
	if sess.participants() < 2 {
		return false
	}
	for _, c := range sess.clients {
		if c.name != "" && c.score == "" {
			return false
		}
	}
	return true
}

func (sess *Session) nameTaken(name string, except *Client) bool {
	for _, c := range sess.clients {
		if c != except && c.name == name {
			return true
		}
	}
	return false
}
