package session

import (
	"github.com/jonboulle/clockwork"

	"github.com/tibordp/planning-poker/internal/transport"
)

// Client is one live connection to a session. An empty name means the
// client is an observer; an empty score means no vote on the current
// page. Both use "" as the absent sentinel and serialize as JSON null.
type Client struct {
	id    string
	name  string
	score string

	conn         transport.Conn
	useHeartbeat bool
	heartbeat    clockwork.Timer
}

func (c *Client) stopHeartbeat() {
	if c.heartbeat != nil {
		c.heartbeat.Stop()
		c.heartbeat = nil
	}
}
