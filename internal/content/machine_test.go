package content

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/reelwright/internal/prompt"
	"github.com/MrWong99/reelwright/internal/scenario"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type stubCatalog struct {
	voices bool
}

func (c stubCatalog) Avatars() []string { return []string{"Angela", "Josh"} }

func (c stubCatalog) Voices() []string {
	if !c.voices {
		return nil
	}
	return []string{"Female", "Male"}
}

func (c stubCatalog) Avatar(name string) (string, error) {
	switch strings.ToLower(name) {
	case "angela":
		return "angela-id", nil
	case "josh":
		return "josh-id", nil
	}
	return "", errors.New("unknown")
}

func (c stubCatalog) Voice(name string) (string, error) {
	if strings.EqualFold(name, "male") {
		return "male-id", nil
	}
	return "", errors.New("unknown")
}

func newTestMachine(t *testing.T, opts ...MachineOption) *Machine {
	t.Helper()
	b, err := prompt.New("uz")
	if err != nil {
		t.Fatalf("prompt.New: %v", err)
	}
	opts = append([]MachineOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewMachine(b, opts...)
}

func batch(k int, tag string) string {
	var sb strings.Builder
	for i := 1; i <= k; i++ {
		fmt.Fprintf(&sb, "🎥 Kontent %d\n<b>Hook:</b> %s hook %d\n<b>Kontent:</b> %s body %d\n\n", i, tag, i, tag, i)
	}
	return sb.String()
}

func kinds(effects []Effect) []EffectKind {
	out := make([]EffectKind, len(effects))
	for i, e := range effects {
		out[i] = e.Kind
	}
	return out
}

func find(effects []Effect, k EffectKind) (Effect, bool) {
	for _, e := range effects {
		if e.Kind == k {
			return e, true
		}
	}
	return Effect{}, false
}

// selecting returns a session that has received its first batch.
func selecting(last string) Session {
	return Session{
		ID:           "c1",
		Stage:        StageAwaitingSelection,
		Answers:      map[string]string{"soha": "SMM"},
		LastResponse: last,
	}
}

func TestTransition_Questionnaire(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	s, effects := m.Transition(NewSession("c1"), Input{Kind: InputStart})
	if s.Stage != StageCollecting || s.Step != 1 {
		t.Fatalf("after start: stage %s step %d", s.Stage, s.Step)
	}
	if len(effects) != 2 || !strings.Contains(effects[1].Text, "Sohangiz nima?") {
		t.Fatalf("start effects = %+v", effects)
	}
	if !s.UpdatedAt.Equal(fixedNow) {
		t.Errorf("UpdatedAt = %v", s.UpdatedAt)
	}

	answers := []string{"SMM", "Tadbirkorlar", "Sotuv", "Kam mijoz", "Daromad", "Keys", "Reels", "Tezlik"}
	for i, a := range answers[:7] {
		s, effects = m.Transition(s, Input{Kind: InputText, Text: a})
		if s.Stage != StageCollecting || s.Step != i+2 {
			t.Fatalf("after answer %d: stage %s step %d", i+1, s.Stage, s.Step)
		}
		if len(effects) != 1 || effects[0].Kind != EffectReply {
			t.Fatalf("answer %d effects = %+v", i+1, effects)
		}
	}

	s, effects = m.Transition(s, Input{Kind: InputText, Text: answers[7]})
	if s.Stage != StageAwaitingSelection {
		t.Fatalf("after last answer: stage %s", s.Stage)
	}
	if len(s.Answers) != 8 || s.Answers["unique"] != "Tezlik" || s.Answers["soha"] != "SMM" {
		t.Errorf("answers = %v", s.Answers)
	}
	if got := kinds(effects); !slices.Equal(got, []EffectKind{EffectReply, EffectGenerate}) {
		t.Fatalf("effects = %v", got)
	}
	g := effects[1].Generation
	if g.Kind != GenerationInitial || !strings.Contains(g.Prompt, "Soha: SMM") || g.System == "" {
		t.Errorf("generation = %+v", g)
	}
}

func TestTransition_BlankAnswerRepeatsQuestion(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	s, _ := m.Transition(NewSession("c1"), Input{Kind: InputStart})
	s, effects := m.Transition(s, Input{Kind: InputText, Text: "   "})
	if s.Step != 1 || len(s.Answers) != 0 {
		t.Errorf("blank answer advanced: step %d answers %v", s.Step, s.Answers)
	}
	if len(effects) != 1 || !strings.Contains(effects[0].Text, "Sohangiz nima?") {
		t.Errorf("effects = %+v", effects)
	}
}

func TestTransition_FirstBatchDelivered(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	s := selecting("")
	text := batch(15, "a")
	s, effects := m.Transition(s, Input{Kind: InputGenerated, Outcome: OutcomeOK, Text: text})
	if s.LastResponse != text || s.Stage != StageAwaitingSelection {
		t.Fatalf("session = %+v", s)
	}
	if got := kinds(effects); !slices.Equal(got, []EffectKind{EffectDeliver, EffectChoices}) {
		t.Fatalf("effects = %v", got)
	}
	if !effects[0].Structural {
		t.Error("batches must be delivered structurally")
	}
	choices := effects[1].Choices
	if len(choices) != 2 || choices[0].ID != ChoiceKeepAll || choices[1].ID != ChoiceFinalize {
		t.Errorf("choices = %+v", choices)
	}
	if !strings.Contains(effects[1].Text, "Qaysi mavzular sizga yoqdi?") {
		t.Errorf("follow-up = %q", effects[1].Text)
	}
}

func TestTransition_Selection(t *testing.T) {
	t.Parallel()

	prev := batch(15, "a")
	tests := []struct {
		name        string
		in          Input
		wantKept    []int
		wantIgnored bool
		wantInvalid bool
	}{
		{name: "list", in: Input{Kind: InputText, Text: "1, 5, 10"}, wantKept: []int{1, 5, 10}},
		{name: "spaces", in: Input{Kind: InputText, Text: "1 5"}, wantKept: []int{1, 5}},
		{name: "range", in: Input{Kind: InputText, Text: "3-5"}, wantKept: []int{3, 4, 5}},
		{name: "out of range ignored", in: Input{Kind: InputText, Text: "2, 99"}, wantKept: []int{2}, wantIgnored: true},
		{name: "keep all button", in: Input{Kind: InputKeepAll}, wantKept: scenario.KeepAll(15).Numbers},
		{name: "keep all word", in: Input{Kind: InputText, Text: "Hammasi"}, wantKept: scenario.KeepAll(15).Numbers},
		{name: "non numeric", in: Input{Kind: InputText, Text: "birinchi"}, wantInvalid: true},
		{name: "only out of range", in: Input{Kind: InputText, Text: "0, 16"}, wantInvalid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := newTestMachine(t)
			before := selecting(prev)
			s, effects := m.Transition(before, tt.in)

			if tt.wantInvalid {
				if len(effects) != 1 || !strings.Contains(effects[0].Text, "faqat raqamlarni") {
					t.Fatalf("effects = %+v", effects)
				}
				if s.Stage != StageAwaitingSelection || s.LastResponse != prev || s.Kept != nil {
					t.Errorf("invalid selection changed the session: %+v", s)
				}
				return
			}

			gen, ok := find(effects, EffectGenerate)
			if !ok {
				t.Fatalf("no generation in %v", kinds(effects))
			}
			if gen.Generation.Kind != GenerationRegenerate {
				t.Errorf("kind = %s", gen.Generation.Kind)
			}
			if !slices.Equal(s.Kept, tt.wantKept) || !slices.Equal(gen.Generation.Kept.Numbers, tt.wantKept) {
				t.Errorf("kept = %v / %v, want %v", s.Kept, gen.Generation.Kept.Numbers, tt.wantKept)
			}
			if !strings.Contains(gen.Generation.Prompt, "OLDINGI GENERATSIYA:\n"+strings.TrimSpace(prev)) {
				t.Error("regeneration prompt must carry the previous batch")
			}
			if !strings.Contains(gen.Generation.Prompt, "Soha: SMM") {
				t.Error("regeneration prompt must carry the answers")
			}
			hasIgnored := strings.Contains(effects[0].Text, "e'tiborga olinmadi: 99")
			if hasIgnored != tt.wantIgnored {
				t.Errorf("ignored notice = %v, want %v (%q)", hasIgnored, tt.wantIgnored, effects[0].Text)
			}
			if s.Stage != StageAwaitingSelection {
				t.Errorf("stage = %s", s.Stage)
			}
		})
	}
}

func TestTransition_IgnoredNoticeIsCapped(t *testing.T) {
	t.Parallel()
	m := newTestMachine(t)
	s, effects := m.Transition(selecting(batch(15, "a")), Input{Kind: InputText, Text: "1, 16-1016"})

	if len(effects) == 0 || effects[0].Kind != EffectReply {
		t.Fatalf("effects = %v", kinds(effects))
	}
	notice := effects[0].Text
	if !strings.Contains(notice, "16, 17, 18, 19, 20, 21, 22, 23, 24, 25, …") {
		t.Errorf("notice = %q", notice)
	}
	if strings.Contains(notice, "26") || len(notice) > 4000 {
		t.Errorf("notice not capped: %d bytes", len(notice))
	}
	if !slices.Equal(s.Kept, []int{1}) {
		t.Errorf("kept = %v, want [1]", s.Kept)
	}
	if _, ok := find(effects, EffectGenerate); !ok {
		t.Errorf("no generation in %v", kinds(effects))
	}
}

// TestTransition_KeptRecordsSurviveRegeneration drives the loop with a model
// that rewrites everything, including the kept records.
func TestTransition_KeptRecordsSurviveRegeneration(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	prev := batch(15, "a")
	s, _ := m.Transition(selecting(prev), Input{Kind: InputText, Text: "2, 7"})

	s, effects := m.Transition(s, Input{Kind: InputGenerated, Outcome: OutcomeOK, Text: batch(15, "b")})
	if s.Kept != nil {
		t.Errorf("Kept not cleared: %v", s.Kept)
	}
	prevBatch := scenario.Parse(prev)
	got := scenario.Parse(s.LastResponse)
	if len(got.Items) != 15 {
		t.Fatalf("got %d records, want 15", len(got.Items))
	}
	for _, it := range got.Items {
		old, _ := prevBatch.Find(it.Number)
		kept := it.Number == 2 || it.Number == 7
		if kept && it.Raw != old.Raw {
			t.Errorf("kept record %d = %q, want %q", it.Number, it.Raw, old.Raw)
		}
		if !kept && it.Raw == old.Raw {
			t.Errorf("record %d was not replaced", it.Number)
		}
	}
	if !strings.Contains(effects[len(effects)-1].Text, "Yana o'zgartiramizmi?") {
		t.Errorf("follow-up = %q", effects[len(effects)-1].Text)
	}
}

func TestTransition_GenerationFailureBecomesLastResponse(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	s, _ := m.Transition(selecting(batch(15, "a")), Input{Kind: InputText, Text: "1"})
	errText := "❌ ChatGPT bilan bog'lanishda xatolik: timeout"
	s, effects := m.Transition(s, Input{Kind: InputGenerated, Outcome: OutcomeFailed, Text: errText})
	if s.LastResponse != errText {
		t.Fatalf("LastResponse = %q", s.LastResponse)
	}
	if effects[0].Kind != EffectDeliver || effects[0].Text != errText {
		t.Errorf("effects = %+v", effects)
	}

	// The next regeneration tolerates the error text as previous batch.
	s, effects = m.Transition(s, Input{Kind: InputText, Text: "3"})
	gen, ok := find(effects, EffectGenerate)
	if !ok || !strings.Contains(gen.Generation.Prompt, errText) {
		t.Fatalf("regeneration after failure: %+v", effects)
	}
	s, _ = m.Transition(s, Input{Kind: InputGenerated, Outcome: OutcomeOK, Text: batch(15, "c")})
	if s.LastResponse != batch(15, "c") {
		t.Error("nothing to preserve from an error text; the new batch is kept as is")
	}
}

func TestTransition_Finalize(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	prev := batch(15, "a")
	s, effects := m.Transition(selecting(prev), Input{Kind: InputFinalize})
	if s.Stage != StageAwaitingScenarioChoice {
		t.Fatalf("stage = %s", s.Stage)
	}
	if len(effects) != 1 {
		t.Fatalf("effects = %+v", effects)
	}

	s, effects = m.Transition(s, Input{Kind: InputText, Text: "uchinchi"})
	if s.Stage != StageAwaitingScenarioChoice || !strings.Contains(effects[0].Text, "ssenariyni tanlaysiz") {
		t.Errorf("non-numeric choice: stage %s effects %+v", s.Stage, effects)
	}

	s, effects = m.Transition(s, Input{Kind: InputText, Text: "20"})
	if s.Stage != StageAwaitingScenarioChoice || !strings.Contains(effects[0].Text, "20-raqamli") {
		t.Errorf("missing choice: stage %s effects %+v", s.Stage, effects)
	}

	s, effects = m.Transition(s, Input{Kind: InputText, Text: "3"})
	if s.Stage != StageAwaitingFollowupAudio {
		t.Fatalf("stage = %s", s.Stage)
	}
	want, _ := scenario.Parse(prev).Find(3)
	if s.Scenario != want.Raw || s.ScenarioNumber != 3 {
		t.Errorf("scenario = %d %q", s.ScenarioNumber, s.Scenario)
	}
	if !strings.Contains(effects[0].Text, want.Raw) {
		t.Errorf("chosen scenario not echoed: %q", effects[0].Text)
	}
}

func TestTransition_FinalizeWithoutRecords(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	s, effects := m.Transition(selecting("❌ xatolik"), Input{Kind: InputFinalize})
	if s.Stage != StageAwaitingSelection {
		t.Errorf("stage = %s", s.Stage)
	}
	if len(effects) != 1 || !strings.Contains(effects[0].Text, "topilmadi") {
		t.Errorf("effects = %+v", effects)
	}
}

func TestTransition_FollowupWithoutCatalog(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	s := selecting(batch(15, "a"))
	s.Stage = StageAwaitingFollowupAudio
	s.Scenario = "🎥 Kontent 1"

	s, effects := m.Transition(s, Input{Kind: InputAudio, Audio: Audio{Path: "/tmp/v.ogg", Size: 10}})
	tr, ok := find(effects, EffectTranscribe)
	if !ok || tr.Purpose != PurposeFollowup || tr.Audio.Path != "/tmp/v.ogg" {
		t.Fatalf("effects = %+v", effects)
	}

	s, effects = m.Transition(s, Input{Kind: InputTranscribed, Purpose: PurposeFollowup, Outcome: OutcomeOK, Text: "salom"})
	if s.Stage != StageAwaitingSelection || s.FollowupTranscript != "salom" {
		t.Fatalf("session = %+v", s)
	}
	if got := kinds(effects); !slices.Equal(got, []EffectKind{EffectDeliver, EffectChoices}) {
		t.Errorf("effects = %v", got)
	}
}

func TestTransition_AvatarBranch(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t, WithCatalog(stubCatalog{voices: true}))
	s := selecting(batch(15, "a"))
	s.Stage = StageAwaitingFollowupAudio
	s.Scenario = "🎥 Kontent 4"

	s, _ = m.Transition(s, Input{Kind: InputTranscribed, Purpose: PurposeFollowup, Outcome: OutcomeOK, Text: "mening skriptim"})
	if s.Stage != StageAwaitingAvatar {
		t.Fatalf("stage = %s", s.Stage)
	}

	s, effects := m.Transition(s, Input{Kind: InputText, Text: "Bob"})
	if s.Stage != StageAwaitingAvatar || !strings.Contains(effects[0].Text, "Angela, Josh") {
		t.Errorf("unknown avatar: stage %s effects %+v", s.Stage, effects)
	}

	s, _ = m.Transition(s, Input{Kind: InputText, Text: "angela"})
	if s.Stage != StageAwaitingVoice || s.AvatarID != "angela-id" {
		t.Fatalf("session = %+v", s)
	}

	s, effects = m.Transition(s, Input{Kind: InputText, Text: "male"})
	r, ok := find(effects, EffectRender)
	if !ok {
		t.Fatalf("effects = %v", kinds(effects))
	}
	want := Render{Script: "mening skriptim", AvatarID: "angela-id", VoiceID: "male-id"}
	if r.Render != want {
		t.Errorf("render = %+v, want %+v", r.Render, want)
	}
	if s.Stage != StageAwaitingSelection {
		t.Errorf("stage = %s", s.Stage)
	}

	_, effects = m.Transition(s, Input{Kind: InputRendered, Outcome: OutcomeOK, Text: "https://v/1.mp4"})
	if !strings.Contains(effects[0].Text, "https://v/1.mp4") {
		t.Errorf("render ready = %+v", effects)
	}
}

func TestTransition_AvatarWithoutVoices(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t, WithCatalog(stubCatalog{}))
	s := Session{ID: "c1", Stage: StageAwaitingAvatar, Scenario: "scenario text"}
	s, effects := m.Transition(s, Input{Kind: InputText, Text: "Josh"})
	r, ok := find(effects, EffectRender)
	if !ok {
		t.Fatalf("effects = %v", kinds(effects))
	}
	if r.Render.Script != "scenario text" || r.Render.AvatarID != "josh-id" || r.Render.VoiceID != "" {
		t.Errorf("render = %+v", r.Render)
	}
	if s.Stage != StageAwaitingSelection {
		t.Errorf("stage = %s", s.Stage)
	}
}

func TestTransition_VoiceBrief(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	s, _ := m.Transition(NewSession("c1"), Input{Kind: InputVoiceStart})
	if s.Stage != StageAwaitingVoiceBrief {
		t.Fatalf("stage = %s", s.Stage)
	}

	_, effects := m.Transition(s, Input{Kind: InputText, Text: "salom"})
	if !strings.Contains(effects[0].Text, "ovozli xabar yuboring") {
		t.Errorf("text in voice mode: %+v", effects)
	}

	s, effects = m.Transition(s, Input{Kind: InputAudio, Audio: Audio{Path: "/tmp/a.ogg"}})
	if tr, ok := find(effects, EffectTranscribe); !ok || tr.Purpose != PurposeBrief {
		t.Fatalf("effects = %+v", effects)
	}

	for _, o := range []Outcome{OutcomeEmpty, OutcomeTooLarge, OutcomeFailed} {
		next, effects := m.Transition(s, Input{Kind: InputTranscribed, Purpose: PurposeBrief, Outcome: o})
		if next.Stage != StageAwaitingVoiceBrief || len(effects) != 1 {
			t.Errorf("outcome %d: stage %s effects %+v", o, next.Stage, effects)
		}
	}

	s, effects = m.Transition(s, Input{Kind: InputTranscribed, Purpose: PurposeBrief, Outcome: OutcomeOK, Text: "men psixologman"})
	if s.Stage != StageAwaitingSelection || s.Transcript != "men psixologman" {
		t.Fatalf("session = %+v", s)
	}
	gen, ok := find(effects, EffectGenerate)
	if !ok || !strings.Contains(gen.Generation.Prompt, "men psixologman") {
		t.Fatalf("effects = %+v", effects)
	}

	// Regenerations reuse the transcript as the brief.
	s.LastResponse = batch(15, "a")
	_, effects = m.Transition(s, Input{Kind: InputText, Text: "1"})
	gen, _ = find(effects, EffectGenerate)
	if !strings.Contains(gen.Generation.Prompt, "men psixologman") {
		t.Error("regeneration lost the transcript")
	}
}

func TestTransition_UnexpectedInputs(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	idle := NewSession("c1")

	tests := []struct {
		name string
		s    Session
		in   Input
		want string
	}{
		{name: "text while idle", s: idle, in: Input{Kind: InputText, Text: "salom"}, want: "/start"},
		{name: "audio while idle", s: idle, in: Input{Kind: InputAudio}, want: "kutilmayapti"},
		{name: "finalize while idle", s: idle, in: Input{Kind: InputFinalize}, want: "/start"},
		{name: "keep all while collecting", s: Session{ID: "c1", Stage: StageCollecting, Step: 2}, in: Input{Kind: InputKeepAll}, want: "Auditoriyangiz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, effects := m.Transition(tt.s, tt.in)
			if s.Stage != tt.s.Stage {
				t.Errorf("stage = %s, want %s", s.Stage, tt.s.Stage)
			}
			if len(effects) != 1 || !strings.Contains(effects[0].Text, tt.want) {
				t.Errorf("effects = %+v, want text containing %q", effects, tt.want)
			}
		})
	}
}

func TestTransition_ResetAndRestart(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	busy := selecting(batch(15, "a"))
	busy.Kept = []int{1}

	s, _ := m.Transition(busy, Input{Kind: InputReset})
	if s.Stage != StageIdle || s.LastResponse != "" || s.Answers != nil || s.ID != "c1" {
		t.Errorf("after reset: %+v", s)
	}
	s, _ = m.Transition(busy, Input{Kind: InputStart})
	if s.Stage != StageCollecting || s.Step != 1 || len(s.Answers) != 0 || s.LastResponse != "" {
		t.Errorf("after restart: %+v", s)
	}
}

func TestTransition_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	m := newTestMachine(t)
	s := Session{ID: "c1", Stage: StageCollecting, Step: 1, Answers: map[string]string{}}
	_, _ = m.Transition(s, Input{Kind: InputText, Text: "SMM"})
	if len(s.Answers) != 0 || s.Step != 1 {
		t.Errorf("input session mutated: %+v", s)
	}
}

func TestStage_String(t *testing.T) {
	t.Parallel()

	if StageAwaitingSelection.String() != "awaiting_selection" {
		t.Errorf("got %q", StageAwaitingSelection.String())
	}
	if Stage(42).String() != "Stage(42)" {
		t.Errorf("got %q", Stage(42).String())
	}
}
