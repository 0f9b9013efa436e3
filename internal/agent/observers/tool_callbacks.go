package observers

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/tool"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/wayfarer-planner/server/pkg/logger"
	"github.com/wayfarer-planner/server/pkg/metrics"
)

type toolStartKey struct{}

// newToolHandler logs tool executions and records their latency.
func newToolHandler() *callbackHelper.ToolCallbackHandler {
	return &callbackHelper.ToolCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *tool.CallbackInput) context.Context {
			ev := logx.Debug().Str("tool", info.Name)
			if input != nil {
				ev = ev.Str("arguments", input.ArgumentsInJSON)
			}
			ev.Msg("tool start")
			return context.WithValue(ctx, toolStartKey{}, time.Now())
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *tool.CallbackOutput) context.Context {
			elapsed := observeDuration(ctx, info.Name)
			ev := logx.Debug().Str("tool", info.Name).Dur("elapsed", elapsed)
			if output != nil {
				ev = ev.Int("response_bytes", len(output.Response))
			}
			ev.Msg("tool end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			elapsed := observeDuration(ctx, info.Name)
			metrics.ToolFailuresTotal.WithLabelValues(info.Name).Inc()
			logx.Warn().Err(err).Str("tool", info.Name).Dur("elapsed", elapsed).Msg("tool failed")
			return ctx
		},
	}
}

func observeDuration(ctx context.Context, name string) time.Duration {
	start, ok := ctx.Value(toolStartKey{}).(time.Time)
	if !ok {
		return 0
	}
	elapsed := time.Since(start)
	metrics.ToolDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	return elapsed
}
