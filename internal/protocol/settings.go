package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ScorePreset is a named, ordered score set offered to new sessions.
type ScorePreset struct {
	Type   string   `json:"type"`
	Name   string   `json:"name"`
	Scores []string `json:"scores"`
}

// ScorePresets lists the built-in score sets, in display order.
var ScorePresets = []ScorePreset{
	{
		Type:   "fibonacci",
		Name:   "Fibonacci",
		Scores: []string{"0.5", "1", "2", "3", "5", "8", "13", "21", "100", "Pass"},
	},
	{
		Type:   "tshirt",
		Name:   "T-shirt sizes",
		Scores: []string{"XS", "S", "M", "L", "XL", "XXL", "Pass"},
	},
}

// Settings holds per-session configuration. Settings are replaced wholesale
// by the setSettings action; the session never mutates them in place.
type Settings struct {
	ScoreSet                   []string `json:"scoreSet"`
	AllowParticipantControl    bool     `json:"allowParticipantControl"`
	AllowOpenVoting            bool     `json:"allowOpenVoting"`
	AllowParticipantPagination bool     `json:"allowParticipantPagination"`
	AllowParticipantAddDelete  bool     `json:"allowParticipantAddDelete"`
	ShowTimer                  bool     `json:"showTimer"`
	ResetTimerOnNewEpoch       bool     `json:"resetTimerOnNewEpoch"`
}

// DefaultSettings returns the settings a freshly created session starts with.
func DefaultSettings() Settings {
	return Settings{
		ScoreSet:                   append([]string(nil), ScorePresets[0].Scores...),
		AllowParticipantControl:    true,
		AllowOpenVoting:            true,
		AllowParticipantPagination: true,
		AllowParticipantAddDelete:  true,
		ShowTimer:                  true,
		ResetTimerOnNewEpoch:       false,
	}
}

// UnmarshalJSON fills absent fields with their defaults, so that partial
// settings objects behave the same as they did under the original schema.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var aux struct {
		ScoreSet                   *[]string `json:"scoreSet"`
		AllowParticipantControl    *bool     `json:"allowParticipantControl"`
		AllowOpenVoting            *bool     `json:"allowOpenVoting"`
		AllowParticipantPagination *bool     `json:"allowParticipantPagination"`
		AllowParticipantAddDelete  *bool     `json:"allowParticipantAddDelete"`
		ShowTimer                  *bool     `json:"showTimer"`
		ResetTimerOnNewEpoch       *bool     `json:"resetTimerOnNewEpoch"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*s = DefaultSettings()
	if aux.ScoreSet != nil {
		s.ScoreSet = *aux.ScoreSet
	}
	if aux.AllowParticipantControl != nil {
		s.AllowParticipantControl = *aux.AllowParticipantControl
	}
	if aux.AllowOpenVoting != nil {
		s.AllowOpenVoting = *aux.AllowOpenVoting
	}
	if aux.AllowParticipantPagination != nil {
		s.AllowParticipantPagination = *aux.AllowParticipantPagination
	}
	if aux.AllowParticipantAddDelete != nil {
		s.AllowParticipantAddDelete = *aux.AllowParticipantAddDelete
	}
	if aux.ShowTimer != nil {
		s.ShowTimer = *aux.ShowTimer
	}
	if aux.ResetTimerOnNewEpoch != nil {
		s.ResetTimerOnNewEpoch = *aux.ResetTimerOnNewEpoch
	}
	return nil
}

// Validate checks the structural constraints on a settings object.
func (s Settings) Validate() error {
	if len(s.ScoreSet) < 2 {
		return errors.New("score set must contain at least two scores")
	}
	for i, score := range s.ScoreSet {
		if score == "" {
			return fmt.Errorf("score set entry %d is empty", i)
		}
	}
	return nil
}

// HasScore reports whether score is a member of the score set.
func (s Settings) HasScore(score string) bool {
	for _, candidate := range s.ScoreSet {
		if candidate == score {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Settings changes are copy-on-write so that
// views serialized from previous broadcasts stay valid.
func (s Settings) Clone() Settings {
	out := s
	out.ScoreSet = append([]string(nil), s.ScoreSet...)
	return out
}
