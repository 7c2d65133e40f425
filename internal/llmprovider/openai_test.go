package llmprovider

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agentcore/runtime/internal/jobctx"
	"github.com/agentcore/runtime/internal/tools"
)

func TestOpenAIConvertMessages(t *testing.T) {
	provider := &OpenAIProvider{}
	messages := []jobctx.ChatMessage{
		jobctx.UserMessage("hello"),
		{
			Role: jobctx.RoleAssistant,
			ToolCalls: []jobctx.ToolCallRequest{
				{ID: "call_1", Name: "get_weather", Arguments: json.RawMessage(`{"location":"NYC"}`)},
			},
		},
		jobctx.ToolResultMessage("call_1", "Sunny, 72F"),
	}

	got := provider.convertMessages(messages, "you are a helpful assistant")
	if len(got) != 4 { // system + 3 messages
		t.Fatalf("expected 4 converted messages, got %d", len(got))
	}
	if got[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("expected first message to be system, got %s", got[0].Role)
	}
	if got[2].ToolCalls[0].Function.Name != "get_weather" {
		t.Fatalf("expected tool call to carry function name, got %+v", got[2].ToolCalls)
	}
	if got[3].ToolCallID != "call_1" {
		t.Fatalf("expected tool result to carry tool_call_id, got %q", got[3].ToolCallID)
	}
}

func TestOpenAIConvertTools(t *testing.T) {
	provider := &OpenAIProvider{}
	defs := []tools.Schema{
		{Name: "echo", Description: "echoes input", Parameters: json.RawMessage(`{"type":"object","properties":{"message":{"type":"string"}}}`)},
	}

	got := provider.convertTools(defs)
	if len(got) != 1 || got[0].Function.Name != "echo" {
		t.Fatalf("expected one converted tool named echo, got %+v", got)
	}
}

func TestOpenAIConvertToolsFallsBackOnInvalidSchema(t *testing.T) {
	provider := &OpenAIProvider{}
	defs := []tools.Schema{{Name: "broken", Description: "d", Parameters: json.RawMessage(`not json`)}}

	got := provider.convertTools(defs)
	if len(got) != 1 {
		t.Fatalf("expected fallback schema to still produce a tool entry")
	}
}

func TestOpenAIWrapErrorAPIError(t *testing.T) {
	provider := &OpenAIProvider{}
	apiErr := &openai.APIError{HTTPStatusCode: 429, Message: "rate limit exceeded", Code: "rate_limit_error"}

	wrapped := provider.wrapError(apiErr, "gpt-4o")
	providerErr, ok := GetProviderError(wrapped)
	if !ok {
		t.Fatalf("expected ProviderError, got %T", wrapped)
	}
	if providerErr.Status != 429 {
		t.Fatalf("expected status 429, got %d", providerErr.Status)
	}
	if providerErr.Reason != FailoverRateLimit {
		t.Fatalf("expected rate_limit reason, got %v", providerErr.Reason)
	}
	if providerErr.Code != "rate_limit_error" {
		t.Fatalf("expected code to carry through, got %q", providerErr.Code)
	}
}

func TestOpenAIWrapErrorRequestError(t *testing.T) {
	provider := &OpenAIProvider{}
	reqErr := &openai.RequestError{HTTPStatusCode: 503, Err: errors.New("upstream unavailable")}

	wrapped := provider.wrapError(reqErr, "gpt-4o")
	providerErr, ok := GetProviderError(wrapped)
	if !ok {
		t.Fatalf("expected ProviderError, got %T", wrapped)
	}
	if providerErr.Status != 503 {
		t.Fatalf("expected status 503, got %d", providerErr.Status)
	}
	if providerErr.Reason != FailoverServerError {
		t.Fatalf("expected server_error reason, got %v", providerErr.Reason)
	}
}

func TestOpenAIGetModelDefault(t *testing.T) {
	provider := &OpenAIProvider{defaultModel: "gpt-4o"}
	if got := provider.getModel(""); got != "gpt-4o" {
		t.Fatalf("expected default model, got %q", got)
	}
	if got := provider.getModel("gpt-4-turbo"); got != "gpt-4-turbo" {
		t.Fatalf("expected explicit model to pass through, got %q", got)
	}
}

func TestOpenAICompleteWithToolsRequiresTools(t *testing.T) {
	provider := &OpenAIProvider{defaultModel: "gpt-4o"}
	_, err := provider.CompleteWithTools(context.Background(), &CompletionRequest{})
	if err == nil {
		t.Fatalf("expected error when no tools are provided")
	}
}
