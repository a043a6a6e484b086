package session

import (
	"errors"
	"fmt"

	"github.com/tibordp/planning-poker/internal/protocol"
)

var errNameInUse = errors.New("there is already a participant with this name")

// apply executes one action against the session. Most actions fall
// through to the tail, which persists the live state into the current
// page and broadcasts; actions that change nothing visible return early.
// Called with the store lock held.
func (s *Store) apply(now int64, sess *Session, client *Client, action protocol.Action) error {
	switch act := action.(type) {
	case *protocol.Ping:
		s.send(now, client, protocol.ServerMessage{Action: protocol.MessagePong})
		return nil

	case *protocol.Nudge:
		if target, ok := sess.clients[act.ClientID]; ok {
			s.send(now, target, protocol.ServerMessage{Action: protocol.MessageNudge})
		}
		return nil

	case *protocol.FinishSession:
		sess.timer.Pause(now)
		sess.savePage(now)
		sess.epoch++
		sess.finished = true
		for _, c := range sess.clients {
			s.send(now, c, protocol.ServerMessage{Action: protocol.MessageFinished})
			c.conn.Close()
		}
		return nil

	case *protocol.SetDescription:
		sess.description = act.Description

	case *protocol.Join:
		if sess.nameTaken(act.Name, nil) {
			return errNameInUse
		}
		client.name = act.Name
		client.score = sess.currentPage().Votes[act.Name]

	case *protocol.Leave:
		client.name = ""
		client.score = ""

	case *protocol.Vote:
		score := ""
		if act.Score != nil {
			score = *act.Score
		}
		if act.Score == nil || sess.settings.HasScore(score) {
			firstVote := client.score == ""
			client.score = score
			if firstVote && sess.allVoted() {
				sess.votesVisible = true
			}
		}

	case *protocol.SetVotesVisible:
		sess.votesVisible = act.VotesVisible

	case *protocol.SetSettings:
		sess.settings = act.Settings.Clone()
		sess.resetBoard(now, true)

	case *protocol.SetHost:
		sess.host = act.ClientID

	case *protocol.Kick:
		if target, ok := sess.clients[act.ClientID]; ok {
			delete(sess.currentPage().Votes, target.name)
			target.name = ""
			target.score = ""
			s.send(now, target, protocol.ServerMessage{Action: protocol.MessageKicked})
		}

	case *protocol.KickDisconnected:
		delete(sess.currentPage().Votes, act.Name)

	case *protocol.Reconnect:
		s.reconnect(sess, client, act)

	case *protocol.ResetBoard:
		sess.resetBoard(now, sess.settings.ResetTimerOnNewEpoch)

	case *protocol.StartTimer:
		sess.timer.Start(now)

	case *protocol.PauseTimer:
		sess.timer.Pause(now)

	case *protocol.ResetTimer:
		sess.timer.Reset(now)

	case *protocol.ImportSession:
		sess.settings = act.SessionData.Settings.Clone()
		pages := make([]*Page, len(act.SessionData.Pages))
		for i, p := range act.SessionData.Pages {
			page := newPage(now)
			page.Description = p.Description
			pages[i] = page
		}
		sess.pages = pages
		sess.pageIndex = 0
		sess.restorePage()
		sess.resetBoard(now, false)

	case *protocol.NewPage:
		sess.savePage(now)
		sess.description = act.Description
		sess.pages = append(sess.pages, newPage(now))
		sess.pageIndex = len(sess.pages) - 1
		sess.epoch++
		sess.resetBoard(now, true)

	case *protocol.DeletePage:
		if len(sess.pages) > 1 {
			sess.pages = append(sess.pages[:sess.pageIndex], sess.pages[sess.pageIndex+1:]...)
			if sess.pageIndex == len(sess.pages) {
				sess.pageIndex--
			}
			sess.epoch++
			sess.restorePage()
		}

	case *protocol.Navigate:
		if act.PageIndex < len(sess.pages) {
			sess.savePage(now)
			sess.pageIndex = act.PageIndex
			sess.epoch++
			sess.restorePage()
		}

	default:
		return fmt.Errorf("unsupported action %q", protocol.Name(action))
	}

	sess.savePage(now)
	s.broadcast(now, sess)
	return nil
}

// reconnect restores a client's identity after a new connection replaced
// a dropped one. The claimed name is honored only if nobody else holds
// it. The claimed vote is honored only if the client last saw the
// current epoch or a later one; otherwise the vote stored on the page
// under that name, if any, wins.
func (s *Store) reconnect(sess *Session, client *Client, act *protocol.Reconnect) {
	if act.Name == nil {
		return
	}
	if sess.nameTaken(*act.Name, client) {
		return
	}
	client.name = *act.Name

	score := ""
	if act.Score != nil {
		score = *act.Score
	}
	if act.Epoch >= sess.epoch && (act.Score == nil || sess.settings.HasScore(score)) {
		client.score = score
	} else {
		client.score = sess.currentPage().Votes[client.name]
	}
}
