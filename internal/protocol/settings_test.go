package protocol

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestSettingsUnmarshalDefaults(t *testing.T) {
	var s Settings
	if err := json.Unmarshal([]byte(`{}`), &s); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(s, DefaultSettings()) {
		t.Errorf("empty settings = %+v, want defaults %+v", s, DefaultSettings())
	}

	if err := json.Unmarshal([]byte(`{"showTimer":false,"resetTimerOnNewEpoch":true}`), &s); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if s.ShowTimer || !s.ResetTimerOnNewEpoch {
		t.Errorf("explicit fields not applied: %+v", s)
	}
	if !s.AllowOpenVoting {
		t.Errorf("absent field lost its default: %+v", s)
	}
	if !reflect.DeepEqual(s.ScoreSet, ScorePresets[0].Scores) {
		t.Errorf("ScoreSet = %v, want fibonacci preset", s.ScoreSet)
	}
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(); err != nil {
		t.Errorf("default settings invalid: %v", err)
	}

	s.ScoreSet = []string{"1"}
	if err := s.Validate(); err == nil {
		t.Error("single-score set passed validation")
	}

	s.ScoreSet = []string{"1", ""}
	if err := s.Validate(); err == nil {
		t.Error("empty score passed validation")
	}
}

func TestSettingsClone(t *testing.T) {
	s := DefaultSettings()
	clone := s.Clone()
	clone.ScoreSet[0] = "tampered"
	if s.ScoreSet[0] == "tampered" {
		t.Error("Clone() shares the score set backing array")
	}
}

func TestSettingsHasScore(t *testing.T) {
	s := DefaultSettings()
	if !s.HasScore("13") {
		t.Error(`HasScore("13") = false`)
	}
	if s.HasScore(HiddenScore) {
		t.Error("hidden score placeholder is a member of the default score set")
	}
}
