// Package content drives the scenario-writing conversation.
//
// The conversation is a state machine over [Session]. [Machine.Transition]
// is a pure function from a session and an [Input] to the next session and
// a list of [Effect] values describing the side effects to run: replies,
// language-model generations, transcriptions and avatar renders. [Engine]
// executes those effects against its collaborators, feeds their outcomes
// back into the machine and persists the session after every step.
package content

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Stage is the position of a conversation in the workflow.
type Stage int

const (
	// StageIdle is a conversation without an active brief.
	StageIdle Stage = iota

	// StageCollecting walks the questionnaire; Session.Step is the current
	// 1-based question.
	StageCollecting

	// StageAwaitingVoiceBrief waits for a recording that replaces the
	// questionnaire.
	StageAwaitingVoiceBrief

	// StageAwaitingSelection waits for the kept ordinals, "keep all" or
	// "finalize" after a batch was delivered.
	StageAwaitingSelection

	// StageAwaitingScenarioChoice waits for the ordinal of the scenario to
	// finalize.
	StageAwaitingScenarioChoice

	// StageAwaitingFollowupAudio waits for the recording that goes with the
	// chosen scenario.
	StageAwaitingFollowupAudio

	// StageAwaitingAvatar waits for the avatar name of the render.
	StageAwaitingAvatar

	// StageAwaitingVoice waits for the voice name of the render.
	StageAwaitingVoice
)

var stageNames = [...]string{
	StageIdle:                   "idle",
	StageCollecting:             "collecting",
	StageAwaitingVoiceBrief:     "awaiting_voice_brief",
	StageAwaitingSelection:      "awaiting_selection",
	StageAwaitingScenarioChoice: "awaiting_scenario_choice",
	StageAwaitingFollowupAudio:  "awaiting_followup_audio",
	StageAwaitingAvatar:         "awaiting_avatar",
	StageAwaitingVoice:          "awaiting_voice",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Session is the persisted state of one conversation.
type Session struct {
	ID    string `json:"id"`
	Stage Stage  `json:"stage"`
	Step  int    `json:"step,omitempty"`

	// Answers holds the questionnaire answers keyed by field key. Iteration
	// order comes from the questionnaire, not from the map.
	Answers map[string]string `json:"answers,omitempty"`

	// Transcript is the voice brief that replaces the questionnaire.
	Transcript string `json:"transcript,omitempty"`

	// LastResponse is the raw text of the last generation, or the error
	// text shown in its place.
	LastResponse string `json:"last_response,omitempty"`

	// Kept are the ordinals of the regeneration in flight.
	Kept []int `json:"kept,omitempty"`

	Scenario           string `json:"scenario,omitempty"`
	ScenarioNumber     int    `json:"scenario_number,omitempty"`
	FollowupTranscript string `json:"followup_transcript,omitempty"`
	AvatarID           string `json:"avatar_id,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession returns an idle session for id.
func NewSession(id string) Session {
	return Session{ID: id, Stage: StageIdle}
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	s.Answers = maps.Clone(s.Answers)
	s.Kept = slices.Clone(s.Kept)
	return s
}

// HasBrief reports whether the session holds enough input to generate.
func (s Session) HasBrief() bool {
	return s.Transcript != "" || len(s.Answers) > 0
}
