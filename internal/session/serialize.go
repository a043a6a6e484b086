package session

import (
	"sort"

	"github.com/tibordp/planning-poker/internal/protocol"
)

// serializeSession builds the state view for one recipient. Views are
// per-recipient because hidden votes are masked server-side: until
// votes are visible, other participants' votes show up only as "voted",
// never the actual score. The recipient always sees their own vote.
func serializeSession(sess *Session, me *Client) *protocol.View {
	clients := make([]protocol.ClientView, 0, len(sess.clients))
	var meView *protocol.ClientView
	observers := 0
	for _, c := range sess.clients {
		if c.name == "" {
			observers++
		}
		cv := protocol.ClientView{
			ClientID: c.id,
			Name:     nullable(c.name),
			Score:    nullable(maskScore(sess, c, me)),
		}
		clients = append(clients, cv)
		if c == me {
			own := cv
			meView = &own
		}
	}
	sort.SliceStable(clients, func(i, j int) bool {
		return clientLess(clients[i], clients[j])
	})

	disconnected := map[string]string{}
	for name, score := range sess.currentPage().Votes {
		if sess.nameTaken(name, nil) {
			continue
		}
		if !sess.votesVisible {
			score = protocol.HiddenScore
		}
		disconnected[name] = score
	}

	return &protocol.View{
		Epoch:        sess.epoch,
		Host:         sess.host,
		Settings:     sess.settings,
		Finished:     sess.finished,
		Description:  sess.description,
		VotesVisible: sess.votesVisible,
		TimerState:   sess.timer.view(),
		Pagination: protocol.PaginationView{
			PageIndex: sess.pageIndex,
			PageCount: len(sess.pages),
		},
		Clients:             clients,
		DisconnectedClients: disconnected,
		Me:                  meView,
		Observers:           observers,
	}
}

func maskScore(sess *Session, c, me *Client) string {
	if sess.votesVisible || c == me || c.score == "" {
		return c.score
	}
	return protocol.HiddenScore
}

// clientLess orders named clients alphabetically, then by client id as a
// stable tiebreak, with observers at the end. A stable order keeps the
// board from reshuffling on every state push.
func clientLess(a, b protocol.ClientView) bool {
	switch {
	case a.Name == nil && b.Name == nil:
		return a.ClientID < b.ClientID
	case a.Name == nil:
		return false
	case b.Name == nil:
		return true
	case *a.Name != *b.Name:
		return *a.Name < *b.Name
	default:
		return a.ClientID < b.ClientID
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
