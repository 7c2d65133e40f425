package llmprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agentcore/runtime/internal/jobctx"
	"github.com/agentcore/runtime/internal/tools"
)

// OpenAIConfig configures an OpenAIProvider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	MaxRetries   int
	RetryDelay   int // seconds; kept as an int for simple config-file mapping
	DefaultModel string
}

// OpenAIProvider implements Provider against OpenAI's chat completions API.
type OpenAIProvider struct {
	BaseProvider
	client       *openai.Client
	defaultModel string
}

// NewOpenAIProvider builds a provider from config, applying the same
// defaults (3 retries, 1s base delay, gpt-4o) a missing optional field
// would get.
func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("llmprovider: openai API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "gpt-4o"
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		BaseProvider: NewBaseProvider("openai", config.MaxRetries, time.Duration(config.RetryDelay)*time.Second),
		client:       openai.NewClientWithConfig(clientConfig),
		defaultModel: config.DefaultModel,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Models() []Model {
	return []Model{
		{ID: "gpt-4o", Name: "GPT-4o", ContextSize: 128000, SupportsVision: true},
		{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", ContextSize: 128000, SupportsVision: true},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", ContextSize: 128000, SupportsVision: true},
	}
}

func (p *OpenAIProvider) SupportsTools() bool { return true }

func (p *OpenAIProvider) CompleteWithTools(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	if len(req.Tools) == 0 {
		return nil, errors.New("llmprovider: CompleteWithTools requires at least one tool definition")
	}
	return p.Complete(ctx, req)
}

func (p *OpenAIProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	chunks := make(chan *CompletionChunk)

	go func() {
		defer close(chunks)

		messages := p.convertMessages(req.Messages, req.System)
		chatReq := openai.ChatCompletionRequest{
			Model:    p.getModel(req.Model),
			Messages: messages,
			Stream:   true,
		}
		if req.MaxTokens > 0 {
			chatReq.MaxTokens = req.MaxTokens
		}
		if len(req.Tools) > 0 {
			chatReq.Tools = p.convertTools(req.Tools)
		}

		var stream *openai.ChatCompletionStream
		err := p.RetryStream(ctx, func(err error) bool {
			return IsRetryable(p.wrapError(err, chatReq.Model))
		}, func() error {
			var streamErr error
			stream, streamErr = p.client.CreateChatCompletionStream(ctx, chatReq)
			return streamErr
		})
		if err != nil {
			chunks <- &CompletionChunk{Error: p.wrapError(err, chatReq.Model)}
			return
		}

		p.processStream(ctx, stream, chunks, chatReq.Model)
	}()

	return chunks, nil
}

func (p *OpenAIProvider) processStream(ctx context.Context, stream *openai.ChatCompletionStream, chunks chan<- *CompletionChunk, model string) {
	defer stream.Close()

	toolCalls := make(map[int]*jobctx.ToolCallRequest)
	toolCallArgs := make(map[int]string)

	flushToolCalls := func() {
		for i := 0; i < len(toolCalls); i++ {
			tc, ok := toolCalls[i]
			if !ok || tc.ID == "" || tc.Name == "" {
				continue
			}
			tc.Arguments = json.RawMessage(toolCallArgs[i])
			chunks <- &CompletionChunk{ToolCall: tc}
		}
	}

	for {
		select {
		case <-ctx.Done():
			chunks <- &CompletionChunk{Error: ctx.Err()}
			return
		default:
		}

		response, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				flushToolCalls()
				chunks <- &CompletionChunk{Done: true}
				return
			}
			chunks <- &CompletionChunk{Error: p.wrapError(err, model)}
			return
		}

		if len(response.Choices) == 0 {
			continue
		}
		choice := response.Choices[0]

		if choice.Delta.Content != "" {
			chunks <- &CompletionChunk{Text: choice.Delta.Content}
		}

		for _, tc := range choice.Delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			if toolCalls[index] == nil {
				toolCalls[index] = &jobctx.ToolCallRequest{}
			}
			if tc.ID != "" {
				toolCalls[index].ID = tc.ID
			}
			if tc.Function.Name != "" {
				toolCalls[index].Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				toolCallArgs[index] += tc.Function.Arguments
			}
		}

		if choice.FinishReason == openai.FinishReasonToolCalls {
			flushToolCalls()
			toolCalls = make(map[int]*jobctx.ToolCallRequest)
			toolCallArgs = make(map[int]string)
		}
	}
}

func (p *OpenAIProvider) convertMessages(messages []jobctx.ChatMessage, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	if system != "" {
		result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for _, msg := range messages {
		switch msg.Role {
		case jobctx.RoleSystem:
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: msg.Content})

		case jobctx.RoleUser:
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content})

		case jobctx.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
			for _, tc := range msg.ToolCalls {
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			result = append(result, oaiMsg)

		case jobctx.RoleTool:
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		}
	}

	return result
}

func (p *OpenAIProvider) convertTools(defs []tools.Schema) []openai.Tool {
	result := make([]openai.Tool, len(defs))
	for i, def := range defs {
		var schemaMap map[string]any
		if err := json.Unmarshal(def.Parameters, &schemaMap); err != nil {
			schemaMap = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  schemaMap,
			},
		}
	}
	return result
}

func (p *OpenAIProvider) getModel(model string) string {
	if model == "" {
		return p.defaultModel
	}
	return model
}

func (p *OpenAIProvider) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if IsProviderError(err) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		providerErr := (&ProviderError{Provider: "openai", Model: model, Cause: err, Reason: FailoverUnknown}).
			WithStatus(apiErr.HTTPStatusCode)
		if code, ok := apiErr.Code.(string); ok && code != "" {
			providerErr = providerErr.WithCode(code)
		}
		if apiErr.Message != "" {
			providerErr = providerErr.WithMessage(apiErr.Message)
		}
		return providerErr
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return (&ProviderError{Provider: "openai", Model: model, Cause: err, Message: fmt.Sprint(reqErr.Err)}).
			WithStatus(reqErr.HTTPStatusCode)
	}

	return NewProviderError("openai", model, err)
}

// CountTokens estimates request size at ~4 characters per token across the
// system preamble, message content, and tool definitions. This is a rough
// approximation, not OpenAI's actual tokenizer (tiktoken).
func (p *OpenAIProvider) CountTokens(req *CompletionRequest) int {
	chars := len(req.System)
	for _, msg := range req.Messages {
		chars += len(msg.Content)
		for _, tc := range msg.ToolCalls {
			chars += len(tc.Name) + len(tc.Arguments)
		}
	}
	for _, def := range req.Tools {
		chars += len(def.Name) + len(def.Description) + len(def.Parameters)
	}
	return chars / 4
}
