package planner

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// StopReason is the provider-neutral reason a model reply ended.
type StopReason string

const (
	StopEndTurn StopReason = "end_turn"
	StopToolUse StopReason = "tool_use"
	StopOther   StopReason = "other"
)

// StopReasonOf classifies a reply. Tool calls win over the finish reason because some
// providers report a normal stop while still requesting tools.
func StopReasonOf(msg *schema.Message) StopReason {
	if msg == nil {
		return StopOther
	}
	if len(msg.ToolCalls) > 0 {
		return StopToolUse
	}
	if msg.ResponseMeta == nil {
		return StopOther
	}
	switch strings.ToLower(msg.ResponseMeta.FinishReason) {
	case "end_turn", "stop", "finish_reason_stop":
		return StopEndTurn
	case "tool_use", "tool_calls":
		return StopToolUse
	default:
		return StopOther
	}
}
