package observers

import (
	"context"
	"errors"
	"testing"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/wayfarer-planner/server/pkg/metrics"
)

func TestToolCallbacksRecordFailures(t *testing.T) {
	const name = "observer_test_tool"
	before := testutil.ToFloat64(metrics.ToolFailuresTotal.WithLabelValues(name))

	ctx := einocb.InitCallbacks(context.Background(), &einocb.RunInfo{
		Name:      name,
		Type:      "Test",
		Component: components.ComponentOfTool,
	}, NewAllCallbacks())

	ctx = einocb.OnStart(ctx, &tool.CallbackInput{ArgumentsInJSON: `{"query":"x"}`})
	einocb.OnError(ctx, errors.New("boom"))

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ToolFailuresTotal.WithLabelValues(name)))
}

func TestModelCallbacksCountTokens(t *testing.T) {
	in := metrics.LLMTokensTotal.WithLabelValues("input")
	out := metrics.LLMTokensTotal.WithLabelValues("output")
	beforeIn, beforeOut := testutil.ToFloat64(in), testutil.ToFloat64(out)

	ctx := einocb.InitCallbacks(context.Background(), &einocb.RunInfo{
		Name:      "planner",
		Type:      "Test",
		Component: components.ComponentOfChatModel,
	}, NewAllCallbacks())

	ctx = einocb.OnStart(ctx, &model.CallbackInput{Messages: []*schema.Message{schema.UserMessage("hi")}})
	einocb.OnEnd(ctx, &model.CallbackOutput{
		Message:    schema.AssistantMessage("hello", nil),
		TokenUsage: &model.TokenUsage{PromptTokens: 10, CompletionTokens: 4},
	})

	assert.Equal(t, beforeIn+10, testutil.ToFloat64(in))
	assert.Equal(t, beforeOut+4, testutil.ToFloat64(out))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
	assert.Equal(t, "東京...", truncate("東京タワー", 2))
}
