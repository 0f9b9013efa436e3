package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-planner/server/internal/agent/conversation"
	"github.com/wayfarer-planner/server/internal/agent/model"
	errx "github.com/wayfarer-planner/server/internal/core/error"
)

func TestNewChatModelRequiresCredential(t *testing.T) {
	cases := []struct {
		name    string
		cfg     model.ModelConfig
		wantEnv string
	}{
		{"gemini default", model.ModelConfig{}, "GEMINI_API_KEY"},
		{"openai", model.ModelConfig{Provider: "openai"}, "OPENAI_API_KEY"},
		{"anthropic placeholder", model.ModelConfig{Provider: "anthropic", AnthropicAPIKey: "your_anthropic_api_key_here"}, "ANTHROPIC_API_KEY"},
		{"shared key placeholder", model.ModelConfig{Provider: "openai", APIKey: "your_api_key_here"}, "MODEL_API_KEY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cm, err := NewChatModel(context.Background(), tc.cfg)
			require.Error(t, err)
			assert.Nil(t, cm)
			assert.Equal(t, errx.KindConfig, errx.KindOf(err))
			assert.Equal(t, tc.wantEnv+" not configured", errx.Message(err))
		})
	}
}

func TestNewChatModelUnknownProvider(t *testing.T) {
	_, err := NewChatModel(context.Background(), model.ModelConfig{Provider: "mistral", APIKey: "k"})
	require.Error(t, err)
	assert.Equal(t, errx.KindConfig, errx.KindOf(err))
}

func TestNewChatModelBuildsEachProvider(t *testing.T) {
	for _, p := range []string{model.ProviderGemini, model.ProviderOpenAI, model.ProviderAnthropic} {
		cm, err := NewChatModel(context.Background(), model.ModelConfig{Provider: p, APIKey: "test-key", MaxTokens: 1024, Temperature: 0.2})
		require.NoError(t, err, p)
		assert.NotNil(t, cm, p)
	}
}

type capturedRequest struct {
	Headers http.Header
	Body    anthropicRequest
}

func anthropicServer(t *testing.T, status int, reply string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if captured != nil {
			captured.Headers = r.Header.Clone()
			require.NoError(t, sonic.Unmarshal(b, &captured.Body))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func weatherToolInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: "weather_fetch",
		Desc: "Get the weather",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"location": {Type: schema.String, Required: true},
		}),
	}
}

func TestAnthropicGenerateConvertsConversation(t *testing.T) {
	var got capturedRequest
	srv := anthropicServer(t, http.StatusOK, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"content": [
			{"type": "text", "text": "Checking Kyoto weather."},
			{"type": "tool_use", "id": "toolu_9", "name": "weather_fetch", "input": {"location": "Kyoto"}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 120, "output_tokens": 30}
	}`, &got)

	base, err := NewAnthropicChatModel(AnthropicConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "claude-sonnet-4-5-20250929", MaxTokens: 2048})
	require.NoError(t, err)
	cm, err := base.WithTools([]*schema.ToolInfo{weatherToolInfo()})
	require.NoError(t, err)

	c := conversation.New()
	require.NoError(t, c.AddUserText("Plan Kyoto"))
	require.NoError(t, c.AddAssistant([]conversation.Block{
		conversation.ToolInvocation{ID: "toolu_1", Name: "web_search", Arguments: `{"query":"kyoto"}`},
		conversation.ToolInvocation{ID: "toolu_2", Name: "places_search", Arguments: `{"query":"temples"}`},
	}))
	require.NoError(t, c.AddToolResults([]conversation.ToolResult{
		{InvocationID: "toolu_1", ToolName: "web_search", Content: `{"results":[]}`},
		{InvocationID: "toolu_2", ToolName: "places_search", Content: `{"error":"boom"}`, IsError: true},
	}))

	out, err := cm.Generate(context.Background(), c.Messages("system rules"))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", got.Headers.Get("x-api-key"))
	assert.Equal(t, anthropicVersion, got.Headers.Get("anthropic-version"))
	assert.Equal(t, "claude-sonnet-4-5-20250929", got.Body.Model)
	assert.Equal(t, 2048, got.Body.MaxTokens)
	assert.Equal(t, "system rules", got.Body.System)
	require.Len(t, got.Body.Tools, 1)
	assert.Equal(t, "weather_fetch", got.Body.Tools[0].Name)
	assert.Contains(t, string(got.Body.Tools[0].InputSchema), "location")

	require.Len(t, got.Body.Messages, 3)
	assert.Equal(t, "user", got.Body.Messages[0].Role)
	assert.Equal(t, "assistant", got.Body.Messages[1].Role)
	require.Len(t, got.Body.Messages[1].Content, 2)
	assert.Equal(t, "tool_use", got.Body.Messages[1].Content[0].Type)
	assert.JSONEq(t, `{"query":"kyoto"}`, string(got.Body.Messages[1].Content[0].Input))

	results := got.Body.Messages[2]
	assert.Equal(t, "user", results.Role)
	require.Len(t, results.Content, 2, "consecutive tool results share one user turn")
	assert.Equal(t, "tool_result", results.Content[0].Type)
	assert.Equal(t, "toolu_1", results.Content[0].ToolUseID)
	assert.False(t, results.Content[0].IsError)
	assert.Equal(t, "toolu_2", results.Content[1].ToolUseID)
	assert.True(t, results.Content[1].IsError)

	assert.Equal(t, schema.Assistant, out.Role)
	assert.Equal(t, "Checking Kyoto weather.", out.Content)
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "toolu_9", out.ToolCalls[0].ID)
	assert.Equal(t, "weather_fetch", out.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"location":"Kyoto"}`, out.ToolCalls[0].Function.Arguments)
	require.NotNil(t, out.ResponseMeta)
	assert.Equal(t, "tool_use", out.ResponseMeta.FinishReason)
	assert.Equal(t, 120, out.ResponseMeta.Usage.PromptTokens)
	assert.Equal(t, 150, out.ResponseMeta.Usage.TotalTokens)
}

func TestAnthropicWithToolsLeavesReceiverUnbound(t *testing.T) {
	var got capturedRequest
	srv := anthropicServer(t, http.StatusOK, `{"content":[{"type":"text","text":"hi"}],"stop_reason":"end_turn","usage":{}}`, &got)

	base, err := NewAnthropicChatModel(AnthropicConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)
	_, err = base.WithTools([]*schema.ToolInfo{weatherToolInfo()})
	require.NoError(t, err)

	out, err := base.Generate(context.Background(), []*schema.Message{schema.UserMessage("hello")})
	require.NoError(t, err)
	assert.Empty(t, got.Body.Tools)
	assert.Equal(t, "hi", out.Content)
	assert.Equal(t, "end_turn", out.ResponseMeta.FinishReason)
}

func TestAnthropicErrorStatus(t *testing.T) {
	srv := anthropicServer(t, http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, nil)

	cm, err := NewAnthropicChatModel(AnthropicConfig{APIKey: "bad", BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)

	_, err = cm.Generate(context.Background(), []*schema.Message{schema.UserMessage("hello")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid x-api-key")
}

func TestAnthropicStreamYieldsOneChunk(t *testing.T) {
	srv := anthropicServer(t, http.StatusOK, `{"content":[{"type":"text","text":"done"}],"stop_reason":"end_turn","usage":{}}`, nil)
	cm, err := NewAnthropicChatModel(AnthropicConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)

	sr, err := cm.Stream(context.Background(), []*schema.Message{schema.UserMessage("hello")})
	require.NoError(t, err)
	defer sr.Close()

	chunk, err := sr.Recv()
	require.NoError(t, err)
	assert.Equal(t, "done", chunk.Content)
	_, err = sr.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestBuildAnthropicRequestRejectsEmptyHistory(t *testing.T) {
	m := "m"
	n := 10
	_, err := buildAnthropicRequest([]*schema.Message{schema.SystemMessage("only system")}, &einomodel.Options{Model: &m, MaxTokens: &n}, nil)
	assert.Error(t, err)
}
