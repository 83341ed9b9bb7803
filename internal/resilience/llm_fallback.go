package resilience

import (
	"context"

	"github.com/MrWong99/reelwright/pkg/provider/llm"
)

// LLMFallback is an [llm.Provider] that fails over between language models.
type LLMFallback struct {
	*FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback returns a group with primary tried first.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{NewFallbackGroup(primary, primaryName, cfg)}
}

// Complete sends the same request to each model in turn until one answers.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.FallbackGroup, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Capabilities describes the primary model only.
func (f *LLMFallback) Capabilities() llm.ModelCapabilities {
	return f.Primary().Capabilities()
}
