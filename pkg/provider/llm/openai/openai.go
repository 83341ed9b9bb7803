// Package openai implements [llm.Provider] on the OpenAI chat completions
// API. [WithBaseURL] points it at any compatible server.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/reelwright/pkg/provider/llm"
)

var _ llm.Provider = (*Provider)(nil)

// Provider is safe for concurrent use.
type Provider struct {
	client oai.Client
	model  string
	caps   llm.ModelCapabilities
}

type settings struct {
	baseURL      string
	organization string
	timeout      time.Duration
	httpClient   *http.Client
}

// Option configures [New].
type Option func(*settings)

// WithBaseURL targets an OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(s *settings) { s.baseURL = url }
}

// WithOrganization sends the organization header.
func WithOrganization(org string) Option {
	return func(s *settings) { s.organization = org }
}

// WithTimeout bounds each HTTP request. Ignored when [WithHTTPClient] is set.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithHTTPClient replaces the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) { s.httpClient = hc }
}

// New returns a provider for model. The SDK's own retries are disabled;
// retry and failover belong to the resilience layer.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	switch {
	case apiKey == "":
		return nil, errors.New("openai: api key is required")
	case model == "":
		return nil, errors.New("openai: model is required")
	}
	var s settings
	for _, o := range opts {
		o(&s)
	}

	ro := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if s.baseURL != "" {
		ro = append(ro, option.WithBaseURL(s.baseURL))
	}
	if s.organization != "" {
		ro = append(ro, option.WithOrganization(s.organization))
	}
	if hc := s.httpClient; hc != nil {
		ro = append(ro, option.WithHTTPClient(hc))
	} else if s.timeout > 0 {
		ro = append(ro, option.WithHTTPClient(&http.Client{Timeout: s.timeout}))
	}

	return &Provider{client: oai.NewClient(ro...), model: model, caps: lookupModel(model)}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.params(req)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	out, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: complete with %s: %w", p.model, err)
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("openai: response has no choices")
	}
	first := out.Choices[0]
	return &llm.CompletionResponse{
		Content:      first.Message.Content,
		FinishReason: first.FinishReason,
		Usage: llm.Usage{
			PromptTokens:     int(out.Usage.PromptTokens),
			CompletionTokens: int(out.Usage.CompletionTokens),
			TotalTokens:      int(out.Usage.TotalTokens),
		},
	}, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities { return p.caps }

// modelRule describes a model family by name prefix. The first matching
// rule wins, so longer prefixes come first.
type modelRule struct {
	prefix    string
	context   int
	maxOutput int
	reasoning bool
}

var modelRules = []modelRule{
	{prefix: "gpt-4o", context: 128_000, maxOutput: 16_384},
	{prefix: "gpt-4.1", context: 1_047_576, maxOutput: 32_768},
	{prefix: "gpt-4-turbo", context: 128_000, maxOutput: 4_096},
	{prefix: "gpt-4", context: 8_192, maxOutput: 8_192},
	{prefix: "gpt-3.5-turbo", context: 16_385, maxOutput: 4_096},
	{prefix: "o1", context: 200_000, maxOutput: 100_000, reasoning: true},
	{prefix: "o3", context: 200_000, maxOutput: 100_000, reasoning: true},
	{prefix: "o4", context: 200_000, maxOutput: 100_000, reasoning: true},
}

// lookupModel returns capabilities for a model name. Unknown models get a
// conservative default.
func lookupModel(model string) llm.ModelCapabilities {
	name := strings.ToLower(model)
	for _, r := range modelRules {
		if strings.HasPrefix(name, r.prefix) {
			return llm.ModelCapabilities{Model: model, ContextWindow: r.context, MaxOutputTokens: r.maxOutput, FixedTemperature: r.reasoning}
		}
	}
	return llm.ModelCapabilities{Model: model, ContextWindow: 128_000, MaxOutputTokens: 4_096}
}

// params maps a request onto the SDK shape.
func (p *Provider) params(req llm.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	msgs := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, oai.SystemMessage(req.SystemPrompt))
	}
	for i, m := range req.Messages {
		msg, err := toSDK(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, fmt.Errorf("message %d: %w", i, err)
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return oai.ChatCompletionNewParams{}, errors.New("request has no messages")
	}

	params := oai.ChatCompletionNewParams{Model: shared.ChatModel(p.model), Messages: msgs}
	if req.Temperature != 0 && !p.caps.FixedTemperature {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if n := p.caps.ClampTokens(req.MaxTokens); n > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(n))
	}
	return params, nil
}

func toSDK(m llm.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case llm.RoleSystem:
		return oai.SystemMessage(m.Content), nil
	case llm.RoleUser:
		return oai.UserMessage(m.Content), nil
	case llm.RoleAssistant:
		return oai.AssistantMessage(m.Content), nil
	}
	return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unknown role %q", m.Role)
}
