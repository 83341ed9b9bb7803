package anyllm

import (
	"context"
	"slices"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/reelwright/pkg/provider/llm"
)

func TestParams(t *testing.T) {
	t.Parallel()
	p := &Provider{vendor: "anthropic", model: "claude-sonnet-4-5", caps: lookupModel("claude-sonnet-4-5")}
	params := p.params(llm.UserPrompt("be brief", "write 15 items", 0.7, 4000))

	if params.Model != "claude-sonnet-4-5" {
		t.Errorf("Model = %q", params.Model)
	}
	if len(params.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem || params.Messages[0].ContentString() != "be brief" {
		t.Errorf("system message = %+v", params.Messages[0])
	}
	if params.Messages[1].Role != llm.RoleUser || params.Messages[1].ContentString() != "write 15 items" {
		t.Errorf("user message = %+v", params.Messages[1])
	}
	if params.Temperature == nil || *params.Temperature != 0.7 {
		t.Errorf("Temperature = %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 4000 {
		t.Errorf("MaxTokens = %v", params.MaxTokens)
	}
}

func TestParams_MaxTokens(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		vendor string
		model  string
		req    int
		want   int // 0 means unset
	}{
		{"unset stays unset", "ollama", "llama3", 0, 0},
		{"within limit", "gemini", "gemini-2.5-flash", 2000, 2000},
		{"clamped to model", "anthropic", "claude-3-opus-20240229", 8000, 4_096},
		{"anthropic always sends a limit", "anthropic", "claude-sonnet-4-5", 0, 8_192},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &Provider{vendor: tt.vendor, model: tt.model, caps: lookupModel(tt.model)}
			params := p.params(llm.UserPrompt("", "hi", 0, tt.req))
			switch {
			case tt.want == 0 && params.MaxTokens != nil:
				t.Errorf("MaxTokens = %d, want unset", *params.MaxTokens)
			case tt.want != 0 && (params.MaxTokens == nil || *params.MaxTokens != tt.want):
				t.Errorf("MaxTokens = %v, want %d", params.MaxTokens, tt.want)
			}
		})
	}
}

func TestParams_ReasoningModelDropsTemperature(t *testing.T) {
	t.Parallel()
	p := &Provider{vendor: "deepseek", model: "deepseek-reasoner", caps: lookupModel("deepseek-reasoner")}
	params := p.params(llm.UserPrompt("", "hi", 0.9, 0))
	if params.Temperature != nil {
		t.Errorf("Temperature = %v, want unset", *params.Temperature)
	}
	if len(params.Messages) != 1 {
		t.Errorf("got %d messages, want 1", len(params.Messages))
	}
}

func TestLookupModel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		model  string
		window int
		maxOut int
	}{
		{"gpt-4o", 128_000, 16_384},
		{"GPT-4", 8_192, 4_096},
		{"claude-3-opus-20240229", 200_000, 4_096},
		{"claude-sonnet-4-5", 200_000, 8_192},
		{"gemini-1.5-pro", 2_097_152, 8_192},
		{"models/gemini-2.5-flash", 1_048_576, 8_192},
		{"deepseek-chat", 64_000, 8_192},
		{"mistral-large", 128_000, 4_096},
	}
	for _, tt := range tests {
		caps := lookupModel(tt.model)
		if caps.Model != tt.model || caps.ContextWindow != tt.window || caps.MaxOutputTokens != tt.maxOut {
			t.Errorf("lookupModel(%q) = %+v, want window %d maxOut %d", tt.model, caps, tt.window, tt.maxOut)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := New("", "gpt-4o"); err == nil {
		t.Error("expected error for empty vendor")
	}
	if _, err := New("openai", ""); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("fakecloud", "some-model", anyllmlib.WithAPIKey("dummy")); err == nil {
		t.Error("expected error for unsupported vendor")
	}
}

func TestNew_WithAPIKey(t *testing.T) {
	t.Parallel()
	for _, vendor := range []string{"openai", "Anthropic"} {
		p, err := New(vendor, "model-x", anyllmlib.WithAPIKey("sk-test"))
		if err != nil {
			t.Fatalf("New(%q): %v", vendor, err)
		}
		if got := p.Capabilities().Model; got != "model-x" {
			t.Errorf("Capabilities().Model = %q", got)
		}
	}
}

func TestNew_OllamaNeedsNoKey(t *testing.T) {
	t.Parallel()
	if _, err := New("ollama", "llama3"); err != nil {
		t.Fatalf("New(ollama): %v", err)
	}
}

func TestComplete_EmptyRequest(t *testing.T) {
	t.Parallel()
	p, err := New("ollama", "llama3")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{}); err == nil {
		t.Error("expected error for a request without messages")
	}
}

func TestVendors(t *testing.T) {
	t.Parallel()
	got := Vendors()
	if !slices.IsSorted(got) {
		t.Errorf("Vendors() not sorted: %v", got)
	}
	for _, v := range []string{"anthropic", "gemini", "ollama", "openai"} {
		if !slices.Contains(got, v) {
			t.Errorf("Vendors() missing %q", v)
		}
	}
}
