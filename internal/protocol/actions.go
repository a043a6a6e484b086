package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Action is a client request decoded from the wire. The concrete types below
// form a closed set; the session state machine switches over them exhaustively.
type Action interface {
	actionName() string
}

// Ping requests a pong reply to the sender only.
type Ping struct{}

// Nudge delivers a one-shot nudge notice to another connected client.
type Nudge struct {
	ClientID string `json:"clientId"`
}

// SetDescription replaces the current page's live description.
type SetDescription struct {
	Description string `json:"description"`
}

// Join names the sending client, turning an observer into a participant.
type Join struct {
	Name string `json:"name"`
}

// Leave clears the sending client's name and score.
type Leave struct{}

// Vote casts (or retracts, with a null score) the sender's vote.
type Vote struct {
	Score *string `json:"score"`
}

// SetVotesVisible explicitly shows or hides the board.
type SetVotesVisible struct {
	VotesVisible bool `json:"votesVisible"`
}

// SetSettings replaces the session settings and resets the board.
type SetSettings struct {
	Settings Settings `json:"settings"`
}

// SetHost transfers the host role to another client.
type SetHost struct {
	ClientID string `json:"clientId"`
}

// Kick removes a connected participant's name, score and stored vote.
type Kick struct {
	ClientID string `json:"clientId"`
}

// KickDisconnected deletes a disconnected participant's stored vote by name.
type KickDisconnected struct {
	Name string `json:"name"`
}

// Reconnect restores a returning client's name and, epoch permitting, score.
type Reconnect struct {
	Epoch int64   `json:"epoch"`
	Score *string `json:"score"`
	Name  *string `json:"name"`
}

// ResetBoard clears all votes and hides the board.
type ResetBoard struct{}

// StartTimer resumes the shared timer.
type StartTimer struct{}

// PauseTimer pauses the shared timer.
type PauseTimer struct{}

// ResetTimer restarts the shared timer from zero.
type ResetTimer struct{}

// ImportSession replaces the settings and page list from an export.
type ImportSession struct {
	SessionData SessionExport `json:"sessionData"`
}

// NewPage appends a new page and navigates to it.
type NewPage struct {
	Description string `json:"description"`
}

// DeletePage removes the current page.
type DeletePage struct{}

// Navigate switches to another page.
type Navigate struct {
	PageIndex int `json:"pageIndex"`
}

// FinishSession finalizes the session and disconnects everyone.
type FinishSession struct{}

// SessionExport is the externally supplied session dump consumed by
// importSession. Only settings and page descriptions survive a round trip;
// votes and timers are reset on import.
type SessionExport struct {
	Settings Settings     `json:"settings"`
	Pages    []PageExport `json:"pages"`
}

// PageExport is one page of a session export.
type PageExport struct {
	Description string `json:"description"`
}

func (Ping) actionName() string             { return "ping" }
func (Nudge) actionName() string            { return "nudge" }
func (SetDescription) actionName() string   { return "setDescription" }
func (Join) actionName() string             { return "join" }
func (Leave) actionName() string            { return "leave" }
func (Vote) actionName() string             { return "vote" }
func (SetVotesVisible) actionName() string  { return "setVotesVisible" }
func (SetSettings) actionName() string      { return "setSettings" }
func (SetHost) actionName() string          { return "setHost" }
func (Kick) actionName() string             { return "kick" }
func (KickDisconnected) actionName() string { return "kickDisconnected" }
func (Reconnect) actionName() string        { return "reconnect" }
func (ResetBoard) actionName() string       { return "resetBoard" }
func (StartTimer) actionName() string       { return "startTimer" }
func (PauseTimer) actionName() string       { return "pauseTimer" }
func (ResetTimer) actionName() string       { return "resetTimer" }
func (ImportSession) actionName() string    { return "importSession" }
func (NewPage) actionName() string          { return "newPage" }
func (DeletePage) actionName() string       { return "deletePage" }
func (Navigate) actionName() string         { return "navigate" }
func (FinishSession) actionName() string    { return "finishSession" }

// Name returns the wire discriminator for an action.
func Name(a Action) string { return a.actionName() }

func (a Nudge) validate() error {
	if a.ClientID == "" {
		return errors.New("clientId is required")
	}
	return nil
}

func (a Join) validate() error {
	if a.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func (a SetHost) validate() error {
	if a.ClientID == "" {
		return errors.New("clientId is required")
	}
	return nil
}

func (a Kick) validate() error {
	if a.ClientID == "" {
		return errors.New("clientId is required")
	}
	return nil
}

func (a KickDisconnected) validate() error {
	if a.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func (a Reconnect) validate() error {
	if a.Name != nil && *a.Name == "" {
		return errors.New("name must be null or non-empty")
	}
	return nil
}

func (a SetSettings) validate() error {
	return a.Settings.Validate()
}

func (a ImportSession) validate() error {
	if err := a.SessionData.Settings.Validate(); err != nil {
		return err
	}
	if len(a.SessionData.Pages) == 0 {
		return errors.New("session data must contain at least one page")
	}
	return nil
}

func (a Navigate) validate() error {
	if a.PageIndex < 0 {
		return errors.New("pageIndex must not be negative")
	}
	return nil
}

// DecodeAction parses and validates one inbound client message. Malformed or
// unknown payloads are protocol errors: the caller reports them back to the
// offending client and leaves session state untouched.
func DecodeAction(data []byte) (Action, error) {
	var probe struct {
		Action *string `json:"action"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("malformed message: %w", err)
	}
	if probe.Action == nil {
		return nil, errors.New("missing action field")
	}

	var action Action
	switch *probe.Action {
	case "ping":
		action = &Ping{}
	case "nudge":
		action = &Nudge{}
	case "setDescription":
		action = &SetDescription{}
	case "join":
		action = &Join{}
	case "leave":
		action = &Leave{}
	case "vote":
		action = &Vote{}
	case "setVotesVisible":
		action = &SetVotesVisible{}
	case "setSettings":
		action = &SetSettings{}
	case "setHost":
		action = &SetHost{}
	case "kick":
		action = &Kick{}
	case "kickDisconnected":
		action = &KickDisconnected{}
	case "reconnect":
		action = &Reconnect{}
	case "resetBoard":
		action = &ResetBoard{}
	case "startTimer":
		action = &StartTimer{}
	case "pauseTimer":
		action = &PauseTimer{}
	case "resetTimer":
		action = &ResetTimer{}
	case "importSession":
		action = &ImportSession{}
	case "newPage":
		action = &NewPage{}
	case "deletePage":
		action = &DeletePage{}
	case "navigate":
		action = &Navigate{}
	case "finishSession":
		action = &FinishSession{}
	default:
		return nil, fmt.Errorf("unknown action %q", *probe.Action)
	}

	if err := json.Unmarshal(data, action); err != nil {
		return nil, fmt.Errorf("invalid %s action: %w", *probe.Action, err)
	}
	if v, ok := action.(interface{ validate() error }); ok {
		if err := v.validate(); err != nil {
			return nil, fmt.Errorf("invalid %s action: %w", *probe.Action, err)
		}
	}
	return action, nil
}
