package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/callbacks"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-resty/resty/v2"

	"github.com/wayfarer-planner/server/internal/agent/conversation"
	logx "github.com/wayfarer-planner/server/pkg/logger"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

type AnthropicConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	RetryCount  int
}

// AnthropicChatModel speaks the Anthropic Messages API behind the eino chat model interface.
type AnthropicChatModel struct {
	cfg    AnthropicConfig
	client *resty.Client
	tools  []anthropicTool
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float32           `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	Stop        []string           `json:"stop_sequences,omitempty"`
}

type anthropicResponse struct {
	ID         string           `json:"id"`
	Content    []anthropicBlock `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewAnthropicChatModel(cfg AnthropicConfig) (*AnthropicChatModel, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = anthropicBaseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", cfg.APIKey).
		SetHeader("anthropic-version", anthropicVersion)
	client.JSONMarshal = sonic.Marshal
	client.JSONUnmarshal = sonic.Unmarshal

	return &AnthropicChatModel{cfg: cfg, client: client}, nil
}

// WithTools returns a copy bound to tools; the receiver is left untouched.
func (a *AnthropicChatModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	converted, err := convertTools(tools)
	if err != nil {
		return nil, err
	}
	cp := *a
	cp.tools = converted
	return &cp, nil
}

func (a *AnthropicChatModel) GetType() string { return "Anthropic" }

func (a *AnthropicChatModel) IsCallbacksEnabled() bool { return true }

func (a *AnthropicChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (out *schema.Message, err error) {
	temperature := a.cfg.Temperature
	maxTokens := a.cfg.MaxTokens
	modelName := a.cfg.Model
	options := einomodel.GetCommonOptions(&einomodel.Options{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		Model:       &modelName,
	}, opts...)

	tools := a.tools
	if options.Tools != nil {
		if tools, err = convertTools(options.Tools); err != nil {
			return nil, err
		}
	}

	req, err := buildAnthropicRequest(input, options, tools)
	if err != nil {
		return nil, err
	}

	ctx = callbacks.OnStart(ctx, &einomodel.CallbackInput{
		Messages: input,
		Config: &einomodel.Config{
			Model:       req.Model,
			MaxTokens:   req.MaxTokens,
			Temperature: *options.Temperature,
		},
	})
	defer func() {
		if err != nil {
			callbacks.OnError(ctx, err)
		}
	}()

	var body anthropicResponse
	var apiErr anthropicError
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&body).
		SetError(&apiErr).
		ForceContentType("application/json").
		Post("/messages")
	if err != nil {
		logx.Error().Err(err).Str("model", req.Model).Msg("anthropic request failed")
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	if !resp.IsSuccess() {
		msg := strings.TrimSpace(apiErr.Error.Message)
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return nil, fmt.Errorf("Anthropic API error: %s: %s", strings.TrimSpace(resp.Status()), msg)
	}

	out = convertAnthropicResponse(&body)
	callbacks.OnEnd(ctx, &einomodel.CallbackOutput{
		Message: out,
		TokenUsage: &einomodel.TokenUsage{
			PromptTokens:     body.Usage.InputTokens,
			CompletionTokens: body.Usage.OutputTokens,
			TotalTokens:      body.Usage.InputTokens + body.Usage.OutputTokens,
		},
	})
	return out, nil
}

// Stream yields the complete reply as a single chunk.
func (a *AnthropicChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := a.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func convertTools(infos []*schema.ToolInfo) ([]anthropicTool, error) {
	out := make([]anthropicTool, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		inputSchema := json.RawMessage(`{"type":"object","properties":{}}`)
		if info.ParamsOneOf != nil {
			js, err := info.ParamsOneOf.ToJSONSchema()
			if err != nil {
				return nil, fmt.Errorf("tool %s schema: %w", info.Name, err)
			}
			b, err := sonic.Marshal(js)
			if err != nil {
				return nil, fmt.Errorf("tool %s schema: %w", info.Name, err)
			}
			inputSchema = b
		}
		out = append(out, anthropicTool{Name: info.Name, Description: info.Desc, InputSchema: inputSchema})
	}
	return out, nil
}

// buildAnthropicRequest folds system messages into the system field and merges adjacent
// user-side messages (tool results and text) into one user turn, as the API requires
// strictly alternating roles.
func buildAnthropicRequest(input []*schema.Message, opts *einomodel.Options, tools []anthropicTool) (*anthropicRequest, error) {
	req := &anthropicRequest{
		Model:       *opts.Model,
		MaxTokens:   *opts.MaxTokens,
		Temperature: opts.Temperature,
		Tools:       tools,
		Stop:        opts.Stop,
	}

	var system []string
	for _, m := range input {
		if m == nil {
			continue
		}
		var role string
		var blocks []anthropicBlock
		switch m.Role {
		case schema.System:
			system = append(system, m.Content)
			continue
		case schema.Assistant:
			role = "assistant"
			if strings.TrimSpace(m.Content) != "" {
				blocks = append(blocks, anthropicBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				args := strings.TrimSpace(tc.Function.Arguments)
				if args == "" {
					args = "{}"
				}
				if !json.Valid([]byte(args)) {
					return nil, fmt.Errorf("tool call %s has invalid arguments", tc.ID)
				}
				blocks = append(blocks, anthropicBlock{Type: "tool_use", ID: tc.ID, Name: tc.Function.Name, Input: json.RawMessage(args)})
			}
		case schema.Tool:
			role = "user"
			blocks = append(blocks, anthropicBlock{
				Type:      "tool_result",
				ToolUseID: m.ToolCallID,
				Content:   m.Content,
				IsError:   conversation.IsErrorMessage(m),
			})
		default:
			role = "user"
			blocks = append(blocks, anthropicBlock{Type: "text", Text: m.Content})
		}
		if len(blocks) == 0 {
			continue
		}

		if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == role {
			req.Messages[n-1].Content = append(req.Messages[n-1].Content, blocks...)
			continue
		}
		req.Messages = append(req.Messages, anthropicMessage{Role: role, Content: blocks})
	}
	req.System = strings.Join(system, "\n\n")

	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("anthropic: no messages to send")
	}
	return req, nil
}

func convertAnthropicResponse(body *anthropicResponse) *schema.Message {
	var texts []string
	var calls []schema.ToolCall
	for _, b := range body.Content {
		switch b.Type {
		case "text":
			texts = append(texts, b.Text)
		case "tool_use":
			args := string(b.Input)
			if strings.TrimSpace(args) == "" {
				args = "{}"
			}
			calls = append(calls, schema.ToolCall{
				ID:       b.ID,
				Type:     "function",
				Function: schema.FunctionCall{Name: b.Name, Arguments: args},
			})
		}
	}

	msg := schema.AssistantMessage(strings.Join(texts, "\n"), calls)
	msg.ResponseMeta = &schema.ResponseMeta{
		FinishReason: body.StopReason,
		Usage: &schema.TokenUsage{
			PromptTokens:     body.Usage.InputTokens,
			CompletionTokens: body.Usage.OutputTokens,
			TotalTokens:      body.Usage.InputTokens + body.Usage.OutputTokens,
		},
	}
	return msg
}
