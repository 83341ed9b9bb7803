// Package prompt renders the language-model prompts of the content workflow
// and owns the questionnaire and conversation texts for each supported
// language.
//
// A [Builder] is immutable after construction and safe for concurrent use.
package prompt

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MrWong99/reelwright/internal/scenario"
)

// DefaultLanguage is used when no language is configured.
const DefaultLanguage = "uz"

// Brief is everything the user told us about themselves: either the
// questionnaire answers keyed by [Field.Key], or a single free-text
// transcript from the voice entry mode. A non-empty Transcript wins.
type Brief struct {
	Answers    map[string]string
	Transcript string
}

// Option is a functional option for [New].
type Option func(*Builder)

// WithBatchSize sets the number of records requested per batch. Non-positive
// values are ignored.
func WithBatchSize(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.size = n
		}
	}
}

// WithMarker overrides the record marker of the locale.
func WithMarker(marker string) Option {
	return func(b *Builder) {
		if m := strings.TrimSpace(marker); m != "" {
			b.locale.Marker = m
		}
	}
}

// Builder renders prompts for one locale.
type Builder struct {
	locale  Locale
	size    int
	grammar *scenario.Grammar
}

// New returns a Builder for lang ("uz" or "en"). An empty lang selects
// [DefaultLanguage].
func New(lang string, opts ...Option) (*Builder, error) {
	if lang == "" {
		lang = DefaultLanguage
	}
	loc, ok := locales[strings.ToLower(lang)]
	if !ok {
		return nil, fmt.Errorf("prompt: unsupported language %q (want one of %s)", lang, strings.Join(Languages(), ", "))
	}
	b := &Builder{locale: loc, size: scenario.DefaultBatchSize}
	for _, o := range opts {
		o(b)
	}
	b.grammar = scenario.NewGrammar(b.locale.Marker, b.locale.HookLabel, b.locale.BodyLabel)
	return b, nil
}

// Languages returns the supported language codes in sorted order.
func Languages() []string {
	out := make([]string, 0, len(locales))
	for k := range locales {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Language returns the locale code.
func (b *Builder) Language() string { return b.locale.Name }

// BatchSize returns the number of records requested per batch.
func (b *Builder) BatchSize() int { return b.size }

// Grammar returns the record grammar matching the rendered format block.
func (b *Builder) Grammar() *scenario.Grammar { return b.grammar }

// System returns the system instruction sent with every generation.
func (b *Builder) System() string { return b.locale.System }

// Messages returns the conversation texts of the locale.
func (b *Builder) Messages() Messages { return b.locale.Messages }

// Fields returns the questionnaire steps in order.
func (b *Builder) Fields() []Field { return slices.Clone(b.locale.Fields) }

// Steps returns the number of questionnaire steps.
func (b *Builder) Steps() int { return len(b.locale.Fields) }

// Question returns the question of the 1-based step.
func (b *Builder) Question(step int) (string, bool) {
	if step < 1 || step > len(b.locale.Fields) {
		return "", false
	}
	return b.locale.Fields[step-1].Question, true
}

// Initial renders the first-generation prompt for br.
func (b *Builder) Initial(br Brief) string {
	var sb strings.Builder
	b.writeBrief(&sb, br)
	sb.WriteString("\n")
	fmt.Fprintf(&sb, b.locale.Task, b.size)
	sb.WriteString("\n\n")
	b.writeFormat(&sb)
	return sb.String()
}

// FromTranscript renders the first-generation prompt for the voice entry
// mode, where a transcript replaces the questionnaire.
func (b *Builder) FromTranscript(text string) string {
	return b.Initial(Brief{Transcript: text})
}

// Regenerate renders the prompt that keeps the records numbered in kept
// verbatim from previous and replaces the rest.
func (b *Builder) Regenerate(br Brief, previous string, kept scenario.Selection) string {
	var sb strings.Builder
	b.writeBrief(&sb, br)
	sb.WriteString(b.locale.Divider)
	sb.WriteString("\n")
	sb.WriteString(b.locale.PreviousLabel)
	sb.WriteString("\n")
	sb.WriteString(strings.TrimSpace(previous))
	sb.WriteString("\n")
	sb.WriteString(b.locale.Divider)
	sb.WriteString("\n\n")
	sb.WriteString(b.locale.SelectedLabel)
	sb.WriteString(" ")
	sb.WriteString(kept.String())
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, b.locale.RegenerateTask, b.size)
	sb.WriteString("\n\n")
	b.writeFormat(&sb)
	return sb.String()
}

func (b *Builder) writeBrief(sb *strings.Builder, br Brief) {
	if t := strings.TrimSpace(br.Transcript); t != "" {
		sb.WriteString(b.locale.TranscriptLabel)
		sb.WriteString("\n")
		sb.WriteString(t)
		sb.WriteString("\n")
		return
	}
	for _, f := range b.locale.Fields {
		fmt.Fprintf(sb, "%s: %s\n", f.Label, strings.TrimSpace(br.Answers[f.Key]))
	}
}

func (b *Builder) writeFormat(sb *strings.Builder) {
	fmt.Fprintf(sb, b.locale.Format, b.locale.Marker, b.locale.HookLabel, b.locale.BodyLabel)
	sb.WriteString("\n\n")
	sb.WriteString(b.locale.Footer)
}

// IsKeepAll reports whether text is one of the locale's "keep all" words.
func (b *Builder) IsKeepAll(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return slices.Contains(b.locale.Messages.KeepAllWords, t)
}
