package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/researchagent/pkg/models"
)

// AnthropicConfig configures an AnthropicProvider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// AnthropicProvider implements LLMProvider against Anthropic's Messages API.
// It is the default provider for the Chat/Agent React loop and the
// compaction sub-agent's nested model calls (SPEC_FULL domain stack).
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider constructs a provider from cfg.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("providers: anthropic api key required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &AnthropicProvider{client: anthropic.NewClient(opts...), model: model}, nil
}

// Name implements LLMProvider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) modelOrDefault(m string) string {
	if m == "" {
		return p.model
	}
	return m
}

// Chat implements LLMProvider.
func (p *AnthropicProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("providers: anthropic chat: %w", err)
	}
	return p.convertResponse(msg), nil
}

// ChatStream implements LLMProvider, emitting text-delta chunks and a final
// chunk carrying the complete ChatResponse.
func (p *AnthropicProvider) ChatStream(ctx context.Context, req ChatRequest, sink func(StreamChunk)) (*ChatResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}
	stream := p.client.Messages.NewStreaming(ctx, params)
	acc := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return nil, fmt.Errorf("providers: anthropic stream accumulate: %w", err)
		}
		if delta := event.AsContentBlockDelta(); delta.Delta.Text != "" {
			sink(StreamChunk{Text: delta.Delta.Text})
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("providers: anthropic stream: %w", err)
	}
	resp := p.convertResponse(&acc)
	sink(StreamChunk{Done: true, Resp: resp})
	return resp, nil
}

func (p *AnthropicProvider) buildParams(req ChatRequest) (anthropic.MessageNewParams, error) {
	var system []anthropic.TextBlockParam
	var msgs []anthropic.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case models.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case models.RoleUser:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case models.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input map[string]any
				_ = jsonUnmarshalLoose(tc.Arguments, &input)
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			msgs = append(msgs, anthropic.NewAssistantMessage(blocks...))
		case models.RoleTool:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		}
	}

	var tools []anthropic.ToolUnionParam
	for _, spec := range req.Tools {
		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        spec.Function.Name,
				Description: anthropic.String(spec.Function.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: spec.Function.Parameters["properties"],
				},
			},
		})
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 8192
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.modelOrDefault(req.Model)),
		MaxTokens: maxTokens,
		Messages:  msgs,
		Tools:     tools,
	}
	if len(system) > 0 {
		params.System = system
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	return params, nil
}

func (p *AnthropicProvider) convertResponse(msg *anthropic.Message) *ChatResponse {
	resp := &ChatResponse{StopReason: string(msg.StopReason)}
	if msg.Usage.InputTokens > 0 {
		resp.PromptTokens = int(msg.Usage.InputTokens)
	}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Content += variant.Text
		case anthropic.ToolUseBlock:
			args, _ := MarshalArguments(variant.Input)
			resp.ToolCalls = append(resp.ToolCalls, models.ToolCallProposal{
				ID:        variant.ID,
				Type:      "function",
				Name:      variant.Name,
				Arguments: args,
			})
		}
	}
	return resp
}

// jsonUnmarshalLoose is a tolerant unmarshal used for re-hydrating
// previously-serialized tool-call arguments; a malformed blob degrades to
// an empty map rather than failing the whole request.
func jsonUnmarshalLoose(raw []byte, out *map[string]any) error {
	if len(raw) == 0 {
		*out = map[string]any{}
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		*out = map[string]any{}
	}
	return nil
}
