package protocol

import "encoding/json"

// Server-to-client message discriminators.
const (
	MessagePong        = "pong"
	MessageUpdateState = "updateState"
	MessageNudge       = "nudge"
	MessageKicked      = "kicked"
	MessageFinished    = "finished"
	MessageError       = "error"
)

// HiddenScore is the placeholder substituted for another participant's score
// while votes are hidden. It is not a member of any score preset.
const HiddenScore = "?"

// ServerMessage is the envelope for every message pushed to a client.
// ServerTime is Unix milliseconds at send time; clients use it to compensate
// for clock skew when rendering the shared timer.
type ServerMessage struct {
	Action     string `json:"action"`
	Value      *View  `json:"value,omitempty"`
	Error      string `json:"error,omitempty"`
	ServerTime int64  `json:"serverTime"`
}

// Encode serializes the message for the wire.
func (m ServerMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// View is the per-recipient projection of session state carried by
// updateState messages. Hidden votes of other participants are masked before
// the view leaves the server.
type View struct {
	Epoch               int64             `json:"epoch"`
	Host                string            `json:"host"`
	Settings            Settings          `json:"settings"`
	Finished            bool              `json:"finished"`
	Pagination          PaginationView    `json:"pagination"`
	Description         string            `json:"description"`
	TimerState          TimerView         `json:"timerState"`
	VotesVisible        bool              `json:"votesVisible"`
	Clients             []ClientView      `json:"clients"`
	DisconnectedClients map[string]string `json:"disconnectedClients"`
	Me                  *ClientView       `json:"me,omitempty"`
	Observers           int               `json:"observers"`
}

// ClientView is one participant entry in the view. Score and Name are null
// for observers and not-yet-voted participants.
type ClientView struct {
	ClientID string  `json:"clientId"`
	Score    *string `json:"score"`
	Name     *string `json:"name"`
}

// PaginationView summarizes the page list; individual pages are private to
// the server and only surface through description/votes of the current one.
type PaginationView struct {
	PageIndex int `json:"pageIndex"`
	PageCount int `json:"pageCount"`
}

// TimerView is the wire form of the shared timer. All fields are Unix
// milliseconds; PausedTime is null while the timer is running. Elapsed time
// is (pausedTime ?? now) - startTime - pausedTotal.
type TimerView struct {
	StartTime   int64  `json:"startTime"`
	PausedTime  *int64 `json:"pausedTime"`
	PausedTotal int64  `json:"pausedTotal"`
}
