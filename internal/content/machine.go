package content

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/reelwright/internal/prompt"
	"github.com/MrWong99/reelwright/internal/scenario"
)

// maxEchoedOrdinals caps the ignored ordinals repeated back to the user.
const maxEchoedOrdinals = 10

// Catalog resolves user-typed avatar and voice names. A name that matches
// nothing yields an error and the user is asked again.
type Catalog interface {
	Avatars() []string
	Voices() []string
	Avatar(name string) (id string, err error)
	Voice(name string) (id string, err error)
}

// Machine is the conversation state machine. It is immutable and safe for
// concurrent use.
type Machine struct {
	prompts *prompt.Builder
	grammar *scenario.Grammar
	msgs    prompt.Messages
	catalog Catalog
	now     func() time.Time
}

// MachineOption is a functional option for [NewMachine].
type MachineOption func(*Machine)

// WithCatalog enables the avatar branch after the follow-up recording.
func WithCatalog(c Catalog) MachineOption {
	return func(m *Machine) { m.catalog = c }
}

// WithClock overrides the time source used for Session.UpdatedAt.
func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) { m.now = now }
}

// NewMachine returns a Machine rendering prompts and texts with b.
func NewMachine(b *prompt.Builder, opts ...MachineOption) *Machine {
	m := &Machine{
		prompts: b,
		grammar: b.Grammar(),
		msgs:    b.Messages(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Prompts returns the prompt builder of the machine.
func (m *Machine) Prompts() *prompt.Builder { return m.prompts }

// Transition applies in to s. It never mutates s; the returned session is a
// fresh copy with UpdatedAt set.
func (m *Machine) Transition(s Session, in Input) (Session, []Effect) {
	next := s.Clone()
	var effects []Effect

	switch in.Kind {
	case InputStart:
		next = NewSession(s.ID)
		next.Stage = StageCollecting
		next.Step = 1
		next.Answers = make(map[string]string, m.prompts.Steps())
		q, _ := m.prompts.Question(1)
		effects = append(effects, reply(m.msgs.Greeting), reply(q))
	case InputVoiceStart:
		next = NewSession(s.ID)
		next.Stage = StageAwaitingVoiceBrief
		effects = append(effects, reply(m.msgs.VoiceGreeting))
	case InputReset:
		next = NewSession(s.ID)
		effects = append(effects, reply(m.msgs.Reset))
	case InputText:
		effects = m.onText(&next, strings.TrimSpace(in.Text))
	case InputAudio:
		effects = m.onAudio(&next, in.Audio)
	case InputKeepAll:
		if next.Stage != StageAwaitingSelection {
			effects = m.hint(next)
			break
		}
		effects = m.regenerate(&next, scenario.KeepAll(m.prompts.BatchSize()))
	case InputFinalize:
		effects = m.onFinalize(&next)
	case InputGenerated:
		effects = m.onGenerated(&next, in)
	case InputTranscribed:
		effects = m.onTranscribed(&next, in)
	case InputRendered:
		if in.Outcome == OutcomeOK {
			effects = append(effects, reply(fmt.Sprintf(m.msgs.RenderReady, in.Text)))
		} else {
			effects = append(effects, reply(m.msgs.RenderFailed))
		}
	}

	next.UpdatedAt = m.now()
	return next, effects
}

func (m *Machine) onText(s *Session, text string) []Effect {
	switch s.Stage {
	case StageCollecting:
		return m.onAnswer(s, text)
	case StageAwaitingSelection:
		if m.prompts.IsKeepAll(text) {
			return m.regenerate(s, scenario.KeepAll(m.prompts.BatchSize()))
		}
		sel, err := scenario.ParseSelection(text, m.prompts.BatchSize())
		if err != nil {
			return []Effect{reply(m.msgs.InvalidSelection)}
		}
		var effects []Effect
		if len(sel.Ignored) > 0 {
			effects = append(effects, reply(fmt.Sprintf(m.msgs.IgnoredOrdinals, sel.IgnoredString(maxEchoedOrdinals))))
		}
		return append(effects, m.regenerate(s, sel)...)
	case StageAwaitingScenarioChoice:
		return m.onScenarioChoice(s, text)
	case StageAwaitingAvatar, StageAwaitingVoice:
		if m.catalog == nil {
			// Rendering was disabled while the session waited.
			s.Stage = StageAwaitingSelection
			return m.hint(*s)
		}
		return m.onCatalogChoice(s, text)
	default:
		return m.hint(*s)
	}
}

func (m *Machine) onCatalogChoice(s *Session, text string) []Effect {
	switch s.Stage {
	case StageAwaitingAvatar:
		id, err := m.catalog.Avatar(text)
		if err != nil {
			return []Effect{reply(fmt.Sprintf(m.msgs.UnknownName, text, strings.Join(m.catalog.Avatars(), ", ")))}
		}
		s.AvatarID = id
		if len(m.catalog.Voices()) == 0 {
			return m.render(s, "")
		}
		s.Stage = StageAwaitingVoice
		return []Effect{reply(fmt.Sprintf(m.msgs.ChooseVoice, strings.Join(m.catalog.Voices(), ", ")))}
	case StageAwaitingVoice:
		id, err := m.catalog.Voice(text)
		if err != nil {
			return []Effect{reply(fmt.Sprintf(m.msgs.UnknownName, text, strings.Join(m.catalog.Voices(), ", ")))}
		}
		return m.render(s, id)
	}
	return nil
}

func (m *Machine) onAnswer(s *Session, text string) []Effect {
	fields := m.prompts.Fields()
	if text == "" || s.Step < 1 || s.Step > len(fields) {
		return m.hint(*s)
	}
	if s.Answers == nil {
		s.Answers = make(map[string]string, len(fields))
	}
	s.Answers[fields[s.Step-1].Key] = text
	if s.Step < len(fields) {
		s.Step++
		q, _ := m.prompts.Question(s.Step)
		return []Effect{reply(q)}
	}
	s.Step = 0
	return m.generate(s, GenerationInitial, m.prompts.Initial(m.brief(*s)), scenario.Selection{})
}

func (m *Machine) onAudio(s *Session, a Audio) []Effect {
	var purpose Purpose
	switch s.Stage {
	case StageAwaitingVoiceBrief:
		purpose = PurposeBrief
	case StageAwaitingFollowupAudio:
		purpose = PurposeFollowup
	default:
		return []Effect{reply(m.msgs.AudioNotExpected)}
	}
	return []Effect{
		reply(m.msgs.Transcribing),
		{Kind: EffectTranscribe, Audio: a, Purpose: purpose},
	}
}

func (m *Machine) onFinalize(s *Session) []Effect {
	if s.Stage != StageAwaitingSelection {
		return m.hint(*s)
	}
	if m.grammar.Parse(s.LastResponse).Empty() {
		return []Effect{reply(m.msgs.NoScenarios)}
	}
	s.Stage = StageAwaitingScenarioChoice
	return []Effect{reply(m.msgs.ChooseScenario)}
}

func (m *Machine) onScenarioChoice(s *Session, text string) []Effect {
	n, err := scenario.ParseOrdinal(text)
	if err != nil {
		return []Effect{reply(m.msgs.ChooseScenario)}
	}
	item, ok := m.grammar.Parse(s.LastResponse).Find(n)
	if !ok {
		return []Effect{reply(fmt.Sprintf(m.msgs.ScenarioNotFound, n))}
	}
	s.Scenario = item.Raw
	s.ScenarioNumber = n
	s.FollowupTranscript = ""
	s.Stage = StageAwaitingFollowupAudio
	return []Effect{deliver(fmt.Sprintf(m.msgs.ScenarioChosen, n, item.Raw), false)}
}

func (m *Machine) onGenerated(s *Session, in Input) []Effect {
	if s.Stage != StageAwaitingSelection {
		return nil
	}
	text := in.Text
	if in.Outcome == OutcomeOK && len(s.Kept) > 0 {
		text, _ = m.grammar.Preserve(m.grammar.Parse(s.LastResponse), m.grammar.Parse(text), s.Kept)
	}
	follow := m.msgs.SelectionPrompt
	if s.LastResponse != "" {
		follow = m.msgs.AgainPrompt
	}
	s.LastResponse = text
	s.Kept = nil
	return []Effect{
		deliver(text, true),
		m.selectionChoices(follow),
	}
}

func (m *Machine) onTranscribed(s *Session, in Input) []Effect {
	want := StageAwaitingVoiceBrief
	if in.Purpose == PurposeFollowup {
		want = StageAwaitingFollowupAudio
	}
	if s.Stage != want {
		return nil
	}

	switch in.Outcome {
	case OutcomeEmpty:
		return []Effect{reply(m.msgs.NothingRecognized)}
	case OutcomeTooLarge:
		return []Effect{reply(m.msgs.TooLarge)}
	case OutcomeFailed:
		return []Effect{reply(m.msgs.TranscribeFailed)}
	}

	effects := []Effect{deliver(m.msgs.TranscriptHeader+"\n"+in.Text, false)}
	if in.Purpose == PurposeBrief {
		s.Transcript = in.Text
		return append(effects, m.generate(s, GenerationInitial, m.prompts.FromTranscript(in.Text), scenario.Selection{})...)
	}

	s.FollowupTranscript = in.Text
	if m.catalog == nil {
		s.Stage = StageAwaitingSelection
		return append(effects, m.selectionChoices(m.msgs.AgainPrompt))
	}
	s.Stage = StageAwaitingAvatar
	return append(effects, reply(fmt.Sprintf(m.msgs.ChooseAvatar, strings.Join(m.catalog.Avatars(), ", "))))
}

func (m *Machine) regenerate(s *Session, sel scenario.Selection) []Effect {
	p := m.prompts.Regenerate(m.brief(*s), s.LastResponse, sel)
	return m.generate(s, GenerationRegenerate, p, sel)
}

func (m *Machine) generate(s *Session, kind GenerationKind, p string, kept scenario.Selection) []Effect {
	notice := m.msgs.Analyzing
	if kind == GenerationRegenerate {
		notice = m.msgs.Regenerating
	}
	s.Stage = StageAwaitingSelection
	s.Kept = kept.Numbers
	return []Effect{
		reply(notice),
		{Kind: EffectGenerate, Generation: Generation{
			Kind:   kind,
			System: m.prompts.System(),
			Prompt: p,
			Kept:   kept,
		}},
	}
}

func (m *Machine) render(s *Session, voiceID string) []Effect {
	script := s.FollowupTranscript
	if script == "" {
		script = s.Scenario
	}
	r := Render{Script: script, AvatarID: s.AvatarID, VoiceID: voiceID}
	s.Stage = StageAwaitingSelection
	return []Effect{
		reply(m.msgs.Rendering),
		{Kind: EffectRender, Render: r},
	}
}

func (m *Machine) selectionChoices(text string) Effect {
	return Effect{
		Kind: EffectChoices,
		Text: text,
		Choices: []Choice{
			{ID: ChoiceKeepAll, Label: m.msgs.KeepAllButton},
			{ID: ChoiceFinalize, Label: m.msgs.FinalizeButton},
		},
	}
}

// hint repeats what the current stage is waiting for.
func (m *Machine) hint(s Session) []Effect {
	switch s.Stage {
	case StageCollecting:
		if q, ok := m.prompts.Question(s.Step); ok {
			return []Effect{reply(q)}
		}
	case StageAwaitingVoiceBrief, StageAwaitingFollowupAudio:
		return []Effect{reply(m.msgs.AwaitingAudio)}
	case StageAwaitingSelection:
		return []Effect{m.selectionChoices(m.msgs.SelectionPrompt)}
	case StageAwaitingScenarioChoice:
		return []Effect{reply(m.msgs.ChooseScenario)}
	case StageAwaitingAvatar:
		if m.catalog != nil {
			return []Effect{reply(fmt.Sprintf(m.msgs.ChooseAvatar, strings.Join(m.catalog.Avatars(), ", ")))}
		}
	case StageAwaitingVoice:
		if m.catalog != nil {
			return []Effect{reply(fmt.Sprintf(m.msgs.ChooseVoice, strings.Join(m.catalog.Voices(), ", ")))}
		}
	}
	return []Effect{reply(m.msgs.Idle)}
}

func (m *Machine) brief(s Session) prompt.Brief {
	return prompt.Brief{Answers: s.Answers, Transcript: s.Transcript}
}
