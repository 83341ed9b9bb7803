package content

import (
	"time"

	"github.com/MrWong99/reelwright/internal/scenario"
)

// InputKind tells the machine what happened.
type InputKind int

const (
	// InputStart begins the questionnaire, discarding the session.
	InputStart InputKind = iota

	// InputVoiceStart begins the voice entry mode, discarding the session.
	InputVoiceStart

	// InputReset clears the session.
	InputReset

	// InputText is a typed user message.
	InputText

	// InputAudio is a user recording, already saved to local disk.
	InputAudio

	// InputKeepAll is the "keep all" button.
	InputKeepAll

	// InputFinalize is the "finalize" button.
	InputFinalize

	// InputGenerated carries the outcome of an [EffectGenerate].
	InputGenerated

	// InputTranscribed carries the outcome of an [EffectTranscribe].
	InputTranscribed

	// InputRendered carries the outcome of an [EffectRender].
	InputRendered
)

// Audio is a recording on local disk.
type Audio struct {
	Path     string
	Size     int64
	Duration time.Duration
}

// Outcome classifies a collaborator result. Collaborator errors never reach
// the machine as Go errors.
type Outcome int

const (
	OutcomeOK Outcome = iota

	// OutcomeEmpty is a transcription without recognised speech.
	OutcomeEmpty

	// OutcomeTooLarge is a recording over the size limit.
	OutcomeTooLarge

	// OutcomeFailed is any other collaborator failure.
	OutcomeFailed
)

// Input is one event for [Machine.Transition].
type Input struct {
	Kind InputKind

	// Text is the user message for InputText, the generated text (or
	// error text) for InputGenerated, the transcript for InputTranscribed
	// and the video URL for InputRendered.
	Text string

	// Audio is set for InputAudio.
	Audio Audio

	// Purpose echoes the [EffectTranscribe] an InputTranscribed answers.
	Purpose Purpose

	Outcome Outcome
}

// Purpose says what a transcription is for.
type Purpose int

const (
	// PurposeBrief transcribes a voice brief.
	PurposeBrief Purpose = iota

	// PurposeFollowup transcribes the recording for a chosen scenario.
	PurposeFollowup
)

// EffectKind is the kind of side effect requested by the machine.
type EffectKind int

const (
	// EffectReply sends a short message.
	EffectReply EffectKind = iota

	// EffectChoices sends a message with buttons.
	EffectChoices

	// EffectDeliver sends long text split into delivery-safe parts.
	EffectDeliver

	// EffectGenerate calls the language model and answers with
	// InputGenerated.
	EffectGenerate

	// EffectTranscribe runs the transcription pipeline and answers with
	// InputTranscribed.
	EffectTranscribe

	// EffectRender asks the avatar service for a video and answers with
	// InputRendered.
	EffectRender
)

// Button identifiers shared with the messaging gateway.
const (
	ChoiceKeepAll  = "keep_all"
	ChoiceFinalize = "finalize"
)

// Choice is one button.
type Choice struct {
	ID    string
	Label string
}

// GenerationKind distinguishes first batches from regenerations.
type GenerationKind string

const (
	GenerationInitial    GenerationKind = "initial"
	GenerationRegenerate GenerationKind = "regenerate"
)

// Generation is the payload of an [EffectGenerate].
type Generation struct {
	Kind   GenerationKind
	System string
	Prompt string
	Kept   scenario.Selection
}

// Render is the payload of an [EffectRender].
type Render struct {
	Script   string
	AvatarID string
	VoiceID  string
}

// Effect is one side effect requested by [Machine.Transition].
type Effect struct {
	Kind EffectKind

	// Text is the message body of EffectReply, EffectChoices and
	// EffectDeliver.
	Text string

	// Structural asks EffectDeliver to keep scenario records whole.
	Structural bool

	Choices    []Choice
	Generation Generation
	Audio      Audio
	Purpose    Purpose
	Render     Render
}

func reply(text string) Effect { return Effect{Kind: EffectReply, Text: text} }

func deliver(text string, structural bool) Effect {
	return Effect{Kind: EffectDeliver, Text: text, Structural: structural}
}
