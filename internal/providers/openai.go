package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/researchagent/pkg/models"
)

// OpenAIConfig configures an OpenAIProvider. BaseURL lets this double as an
// OpenRouter-compatible client (SPEC_FULL §2 domain stack:
// research_assistant's "openai/gpt-5" selection).
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// OpenAIProvider implements LLMProvider against the OpenAI/OpenRouter
// chat-completions API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider constructs a provider from cfg.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("providers: openai api key required")
	}
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	model := cfg.DefaultModel
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(conf), model: model}, nil
}

// Name implements LLMProvider.
func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) modelOrDefault(m string) string {
	if m == "" {
		return p.model
	}
	return m
}

func (p *OpenAIProvider) buildRequest(req ChatRequest) openai.ChatCompletionRequest {
	var msgs []openai.ChatCompletionMessage
	for _, m := range req.Messages {
		switch m.Role {
		case models.RoleSystem:
			msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Content})
		case models.RoleUser:
			msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		case models.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			msgs = append(msgs, msg)
		case models.RoleTool:
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		}
	}

	var tools []openai.Tool
	for _, spec := range req.Tools {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Function.Name,
				Description: spec.Function.Description,
				Parameters:  spec.Function.Parameters,
			},
		})
	}

	out := openai.ChatCompletionRequest{
		Model:       p.modelOrDefault(req.Model),
		Messages:    msgs,
		Tools:       tools,
		Temperature: float32(req.Temperature),
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}
	if req.ToolChoice == "auto" && len(tools) > 0 {
		out.ToolChoice = "auto"
	} else if req.ToolChoice == "none" {
		out.ToolChoice = "none"
	} else if req.ToolChoice != "" && req.ToolChoice != "auto" {
		out.ToolChoice = openai.ToolChoice{Type: openai.ToolTypeFunction, Function: openai.ToolFunction{Name: req.ToolChoice}}
	}
	return out
}

// Chat implements LLMProvider.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("providers: openai chat: %w", err)
	}
	return p.convertResponse(resp), nil
}

// ChatStream implements LLMProvider.
func (p *OpenAIProvider) ChatStream(ctx context.Context, req ChatRequest, sink func(StreamChunk)) (*ChatResponse, error) {
	r := p.buildRequest(req)
	r.Stream = true
	stream, err := p.client.CreateChatCompletionStream(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("providers: openai stream: %w", err)
	}
	defer stream.Close()

	var content string
	toolCalls := map[int]*models.ToolCallProposal{}
	var promptTokens int
	var stopReason string
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("providers: openai stream recv: %w", err)
		}
		if chunk.Usage != nil {
			promptTokens = chunk.Usage.PromptTokens
		}
		for _, choice := range chunk.Choices {
			if choice.FinishReason != "" {
				stopReason = string(choice.FinishReason)
			}
			if choice.Delta.Content != "" {
				content += choice.Delta.Content
				sink(StreamChunk{Text: choice.Delta.Content})
			}
			for _, tc := range choice.Delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				cur, ok := toolCalls[idx]
				if !ok {
					cur = &models.ToolCallProposal{Type: "function"}
					toolCalls[idx] = cur
				}
				if tc.ID != "" {
					cur.ID = tc.ID
				}
				if tc.Function.Name != "" {
					cur.Name = tc.Function.Name
				}
				cur.Arguments = append(cur.Arguments, []byte(tc.Function.Arguments)...)
			}
		}
	}

	resp := &ChatResponse{Content: content, PromptTokens: promptTokens, StopReason: stopReason}
	for i := 0; i < len(toolCalls); i++ {
		if tc, ok := toolCalls[i]; ok {
			resp.ToolCalls = append(resp.ToolCalls, *tc)
		}
	}
	sink(StreamChunk{Done: true, Resp: resp})
	return resp, nil
}

func (p *OpenAIProvider) convertResponse(resp openai.ChatCompletionResponse) *ChatResponse {
	out := &ChatResponse{PromptTokens: resp.Usage.PromptTokens}
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	out.Content = choice.Message.Content
	out.StopReason = string(choice.FinishReason)
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, models.ToolCallProposal{
			ID:        tc.ID,
			Type:      "function",
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out
}
