// Package anyllm implements [llm.Provider] for every vendor supported by
// github.com/mozilla-ai/any-llm-go. It is the usual choice for a fallback
// model next to the OpenAI provider.
//
//	p, err := anyllm.New("anthropic", "claude-sonnet-4-5", anyllmlib.WithAPIKey(key))
package anyllm

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/reelwright/pkg/provider/llm"
)

var _ llm.Provider = (*Provider)(nil)

type constructor func(...anyllmlib.Option) (anyllmlib.Provider, error)

var vendors = map[string]constructor{
	"openai":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return anyllmoai.New(o...) },
	"anthropic": func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return anthropic.New(o...) },
	"gemini":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return gemini.New(o...) },
	"ollama":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return ollama.New(o...) },
	"deepseek":  func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return deepseek.New(o...) },
	"mistral":   func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return mistral.New(o...) },
	"groq":      func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return groq.New(o...) },
	"llamacpp":  func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return llamacpp.New(o...) },
	"llamafile": func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return llamafile.New(o...) },
}

// The Anthropic API rejects requests without max_tokens.
var requiresMaxTokens = map[string]bool{"anthropic": true}

// Vendors returns the vendor names accepted by [New], sorted.
func Vendors() []string {
	return slices.Sorted(maps.Keys(vendors))
}

// Provider is safe for concurrent use.
type Provider struct {
	backend anyllmlib.Provider
	vendor  string
	model   string
	caps    llm.ModelCapabilities
}

// New returns a provider for model on the named vendor. opts are any-llm-go
// options such as anyllmlib.WithAPIKey; without a key the backend reads its
// vendor environment variable (ANTHROPIC_API_KEY, GEMINI_API_KEY, ...).
func New(vendor, model string, opts ...anyllmlib.Option) (*Provider, error) {
	switch {
	case vendor == "":
		return nil, errors.New("anyllm: vendor is required")
	case model == "":
		return nil, errors.New("anyllm: model is required")
	}
	vendor = strings.ToLower(vendor)
	newBackend, ok := vendors[vendor]
	if !ok {
		return nil, fmt.Errorf("anyllm: unsupported vendor %q (have %s)", vendor, strings.Join(Vendors(), ", "))
	}
	backend, err := newBackend(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %s backend: %w", vendor, err)
	}
	return &Provider{backend: backend, vendor: vendor, model: model, caps: lookupModel(model)}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if req.SystemPrompt == "" && len(req.Messages) == 0 {
		return nil, errors.New("anyllm: request has no messages")
	}
	out, err := p.backend.Completion(ctx, p.params(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: complete with %s/%s: %w", p.vendor, p.model, err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: %s response has no choices", p.vendor)
	}

	first := out.Choices[0]
	resp := &llm.CompletionResponse{
		Content:      first.Message.ContentString(),
		FinishReason: first.FinishReason,
	}
	if u := out.Usage; u != nil {
		resp.Usage = llm.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	return resp, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities { return p.caps }

// modelRule matches a model family by substring, so vendor-prefixed names
// such as "models/gemini-2.5-flash" resolve too. First match wins.
type modelRule struct {
	match     string
	context   int
	maxOutput int
	reasoning bool
}

var modelRules = []modelRule{
	{match: "claude-3-opus", context: 200_000, maxOutput: 4_096},
	{match: "claude-3-haiku", context: 200_000, maxOutput: 4_096},
	{match: "claude", context: 200_000, maxOutput: 8_192},
	{match: "gemini-1.5-pro", context: 2_097_152, maxOutput: 8_192},
	{match: "gemini", context: 1_048_576, maxOutput: 8_192},
	{match: "gpt-4o", context: 128_000, maxOutput: 16_384},
	{match: "gpt-4-turbo", context: 128_000, maxOutput: 4_096},
	{match: "gpt-4", context: 8_192, maxOutput: 4_096},
	{match: "deepseek-reasoner", context: 64_000, maxOutput: 8_192, reasoning: true},
	{match: "deepseek", context: 64_000, maxOutput: 8_192},
}

func lookupModel(model string) llm.ModelCapabilities {
	name := strings.ToLower(model)
	for _, r := range modelRules {
		if strings.Contains(name, r.match) {
			return llm.ModelCapabilities{Model: model, ContextWindow: r.context, MaxOutputTokens: r.maxOutput, FixedTemperature: r.reasoning}
		}
	}
	return llm.ModelCapabilities{Model: model, ContextWindow: 128_000, MaxOutputTokens: 4_096}
}

// params maps a request onto the any-llm shape.
func (p *Provider) params(req llm.CompletionRequest) anyllmlib.CompletionParams {
	msgs := make([]anyllmlib.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, anyllmlib.Message{Role: m.Role, Content: m.Content})
	}

	params := anyllmlib.CompletionParams{Model: p.model, Messages: msgs}
	if req.Temperature != 0 && !p.caps.FixedTemperature {
		t := req.Temperature
		params.Temperature = &t
	}
	n := p.caps.ClampTokens(req.MaxTokens)
	if n <= 0 && requiresMaxTokens[p.vendor] {
		n = p.caps.MaxOutputTokens
	}
	if n > 0 {
		params.MaxTokens = &n
	}
	return params
}
