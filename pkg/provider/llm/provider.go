// Package llm defines the Provider interface for language-model backends.
//
// A provider turns a role-tagged message list plus sampling settings into a
// single text completion. Content generation in this repository is strictly
// request/response: one system instruction, one user prompt, one answer.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a chat transcript sent to a provider.
type Message struct {
	// Role is one of RoleSystem, RoleUser or RoleAssistant.
	Role string

	// Content is the plain-text message body.
	Content string
}

// Usage reports token accounting for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest describes one completion call.
type CompletionRequest struct {
	// SystemPrompt is prepended as a system message when non-empty.
	SystemPrompt string

	// Messages is the ordered conversation after the system prompt.
	Messages []Message

	// Temperature controls sampling randomness. Zero leaves the provider
	// default in place.
	Temperature float64

	// MaxTokens caps the completion length. Zero leaves the provider default
	// in place.
	MaxTokens int
}

// CompletionResponse is the result of a completion call.
type CompletionResponse struct {
	// Content is the generated text.
	Content string

	// FinishReason is the provider's stop reason ("stop", "length", ...).
	FinishReason string

	Usage Usage
}

// Truncated reports whether the model stopped because it hit the token
// limit rather than finishing its answer.
func (r *CompletionResponse) Truncated() bool {
	return r != nil && (r.FinishReason == "length" || r.FinishReason == "max_tokens")
}

// ModelCapabilities is static metadata about the configured model.
type ModelCapabilities struct {
	// Model is the provider-specific model identifier.
	Model string

	// ContextWindow is the maximum prompt plus completion size in tokens.
	ContextWindow int

	// MaxOutputTokens is the largest completion the model can produce.
	MaxOutputTokens int

	// FixedTemperature is set for models that reject a sampling
	// temperature; providers then omit it from requests.
	FixedTemperature bool
}

// ClampTokens limits a requested completion length to what the model can
// produce. Zero and negative requests are returned unchanged.
func (c ModelCapabilities) ClampTokens(n int) int {
	if n > 0 && c.MaxOutputTokens > 0 && n > c.MaxOutputTokens {
		return c.MaxOutputTokens
	}
	return n
}

// Provider is the abstraction over any language-model backend.
type Provider interface {
	// Complete sends req and blocks until the full completion is available or
	// ctx is done.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities describes the model behind the provider.
	Capabilities() ModelCapabilities
}

// UserPrompt builds the common request shape: a fixed system instruction and
// a single user turn.
func UserPrompt(system, prompt string, temperature float64, maxTokens int) CompletionRequest {
	return CompletionRequest{
		SystemPrompt: system,
		Messages:     []Message{{Role: RoleUser, Content: prompt}},
		Temperature:  temperature,
		MaxTokens:    maxTokens,
	}
}
