package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/wayfarer-planner/server/internal/agent/conversation"
	"github.com/wayfarer-planner/server/internal/agent/model"
	"github.com/wayfarer-planner/server/internal/agent/prompts"
	"github.com/wayfarer-planner/server/internal/agent/stream"
	"github.com/wayfarer-planner/server/internal/agent/tools"
	errx "github.com/wayfarer-planner/server/internal/core/error"
	logx "github.com/wayfarer-planner/server/pkg/logger"
)

// Step contents with fixed wording.
const (
	msgComplete    = "Your adventure is ready! Time to explore."
	msgExhausted   = "Reached maximum planning steps. Here's what we have so far."
	msgTimeout     = "Reached the planning time limit. Here's what we have so far."
	msgCancelled   = "Planning cancelled"
	msgNoItinerary = "Planning finished without an itinerary."
)

// session is the state of one planning run. It is owned by a single goroutine.
type session struct {
	p    *Planner
	id   string
	req  model.TripRequest
	em   stream.Emitter
	log  zerolog.Logger
	conv *conversation.Conversation

	system    string
	defaults  tools.ArgDefaults
	seq       int
	iteration int
	itinerary *model.Itinerary
	usage     model.Usage
}

func newSession(p *Planner, id string, req model.TripRequest, em stream.Emitter) *session {
	return &session{
		p:        p,
		id:       id,
		req:      req,
		em:       em,
		log:      logx.Session(id),
		conv:     conversation.New(),
		defaults: tools.ArgDefaults{StartDate: req.StartDate, Days: req.Days},
	}
}

func (s *session) run(parent context.Context) *Result {
	ctx, cancel := context.WithTimeout(parent, s.p.cfg.SessionTimeout)
	defer cancel()

	s.emit("start", model.StepThinking, fmt.Sprintf("Charting a %d-day adventure in %s...", s.req.Days, s.req.Destination), "")

	if err := s.prepare(ctx); err != nil {
		return s.fail(parent, ctx, err)
	}

	for s.iteration < s.p.cfg.MaxIterations {
		if ctx.Err() != nil {
			return s.interrupted(parent, ctx)
		}
		s.iteration++
		s.log.Debug().Int("iteration", s.iteration).Msg("calling model")

		msg, err := s.generate(ctx)
		if err != nil {
			return s.fail(parent, ctx, err)
		}

		cont, err := s.handleReply(ctx, msg)
		if err != nil {
			return s.fail(parent, ctx, err)
		}
		if s.itinerary != nil {
			return s.finish(OutcomeSuccess, nil)
		}
		if ctx.Err() != nil {
			return s.interrupted(parent, ctx)
		}
		if !cont {
			s.emit("error", model.StepError, msgNoItinerary, "")
			return s.finish(OutcomeNoItinerary, nil)
		}
	}

	s.emitFixed("max-iterations", model.StepError, msgExhausted)
	return s.finish(OutcomeExhausted, &errx.AppError{Kind: errx.KindExhausted, Message: msgExhausted})
}

// prepare renders the instructions and the opening user turn.
func (s *session) prepare(ctx context.Context) error {
	pctx := callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      "planner_prompt",
		Type:      "GoTemplate",
		Component: components.ComponentOfPrompt,
	}, s.p.cfg.Callbacks...)

	system, err := prompts.RenderSystem(pctx, s.req, s.p.cfg.Now())
	if err != nil {
		return err
	}
	user, err := prompts.RenderUserRequest(pctx, s.req)
	if err != nil {
		return err
	}
	s.system = system
	return s.conv.AddUserText(user)
}

func (s *session) generate(ctx context.Context) (*schema.Message, error) {
	mctx := callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      "planner",
		Type:      s.p.cfg.Provider,
		Component: components.ComponentOfChatModel,
	}, s.p.cfg.Callbacks...)

	msg, err := s.p.model.Generate(mctx, s.conv.Messages(s.system))
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("model returned an empty reply")
	}
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		cost := s.usage.Add(msg.ResponseMeta.Usage, model.ResolvePricing(s.p.cfg.ModelName))
		s.log.Debug().
			Int("iteration", s.iteration).
			Int("prompt_tokens", msg.ResponseMeta.Usage.PromptTokens).
			Int("completion_tokens", msg.ResponseMeta.Usage.CompletionTokens).
			Float64("cost_usd", cost).
			Float64("total_cost_usd", s.usage.CostUSD).
			Msg("LLM usage")
	}
	return msg, nil
}

// handleReply walks the reply blocks in order and records the turn. It reports whether the
// loop should call the model again.
func (s *session) handleReply(ctx context.Context, msg *schema.Message) (bool, error) {
	blocks := s.conv.BlocksFromMessage(msg)
	stop := StopReasonOf(msg)

	var results []conversation.ToolResult
	var problem string
	for _, b := range blocks {
		if ctx.Err() != nil {
			return false, nil
		}
		switch v := b.(type) {
		case conversation.Text:
			if p := s.handleText(v.Text); p != "" {
				problem = p
			}
		case conversation.ToolInvocation:
			results = append(results, s.runTool(ctx, v))
		}
	}

	if err := s.conv.AddAssistant(blocks); err != nil {
		return false, err
	}
	if len(results) > 0 {
		if err := s.conv.AddToolResults(results); err != nil {
			return false, err
		}
		return true, nil
	}
	if problem != "" && s.itinerary == nil {
		if err := s.conv.AddUserText(prompts.ParseRetryMessage(problem)); err != nil {
			return false, err
		}
		return true, nil
	}
	return stop == StopToolUse, nil
}

// handleText accepts an itinerary payload or relays narration. It returns the reason a
// payload was rejected, if one was.
func (s *session) handleText(text string) string {
	payload, found, err := ExtractPayload(text)
	if !found {
		for _, line := range ThinkingLines(text) {
			s.emit("think", model.StepThinking, line, "")
		}
		return ""
	}
	if s.itinerary != nil {
		s.log.Warn().Msg("ignoring additional itinerary payload")
		return ""
	}
	var it *model.Itinerary
	if err == nil {
		it, err = ParseItinerary(payload, s.req)
	}
	if err != nil {
		reason := errx.Message(err)
		s.log.Warn().Err(err).Int("iteration", s.iteration).Msg("itinerary rejected")
		s.emit("error", model.StepError, fmt.Sprintf("Error parsing itinerary (%s). Retrying...", reason), "")
		return reason
	}

	s.itinerary = it
	s.emit("complete", model.StepComplete, msgComplete, "")
	if err := s.em.Itinerary(it); err != nil {
		s.log.Debug().Err(err).Msg("itinerary not delivered")
	}
	return ""
}

// runTool executes one invocation and always returns a result for it; failures become
// flagged results the model can react to.
func (s *session) runTool(ctx context.Context, inv conversation.ToolInvocation) conversation.ToolResult {
	args, argMap := tools.NormalizeArguments(inv.Name, inv.Arguments, s.defaults)
	s.emit("tool", model.StepToolUse, tools.Describe(inv.Name, argMap), inv.Name)

	content, err := s.invoke(ctx, inv.Name, args)
	if err != nil {
		if ctx.Err() != nil {
			return failedResult(inv, ctx.Err().Error())
		}
		msg := errx.Message(err)
		s.log.Warn().Err(err).Str("tool", inv.Name).Msg("tool failed")
		s.emit("error", model.StepError, fmt.Sprintf("Error with %s: %s", inv.Name, msg), inv.Name)
		return failedResult(inv, msg)
	}

	var parsed map[string]any
	if err := sonic.UnmarshalString(content, &parsed); err != nil {
		s.log.Debug().Err(err).Str("tool", inv.Name).Msg("tool result is not a JSON object")
	}
	s.emit("result", model.StepToolResult, tools.Summarize(parsed), inv.Name)
	return conversation.ToolResult{InvocationID: inv.ID, ToolName: inv.Name, Content: content}
}

func (s *session) invoke(ctx context.Context, name, args string) (out string, err error) {
	t, ok := s.p.tools[name]
	if !ok {
		return "", errx.Tool("Unknown tool: %s", name)
	}

	tctx := callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      name,
		Type:      "Tool",
		Component: components.ComponentOfTool,
	}, s.p.cfg.Callbacks...)
	tctx = callbacks.OnStart(tctx, &tool.CallbackInput{ArgumentsInJSON: args})

	out, err = t.InvokableRun(tctx, args)
	if err != nil {
		callbacks.OnError(tctx, err)
		return "", err
	}
	callbacks.OnEnd(tctx, &tool.CallbackOutput{Response: out})
	return out, nil
}

func failedResult(inv conversation.ToolInvocation, msg string) conversation.ToolResult {
	body, err := sonic.MarshalString(map[string]string{"error": msg})
	if err != nil {
		body = `{"error":"tool failed"}`
	}
	return conversation.ToolResult{InvocationID: inv.ID, ToolName: inv.Name, Content: body, IsError: true}
}

// fail ends the session on an unrecoverable error, unless the error only reflects the
// session context being done.
func (s *session) fail(parent, ctx context.Context, err error) *Result {
	if ctx.Err() != nil {
		return s.interrupted(parent, ctx)
	}
	s.log.Error().Err(err).Int("iteration", s.iteration).Msg("planning failed")
	s.emitFixed("fatal-error", model.StepError, "Planning error: "+errx.Message(err))
	return s.finish(OutcomeError, err)
}

// interrupted ends a session whose context is done: the wall-clock ceiling surfaces partial
// progress like exhaustion, a cancellation is only recorded.
func (s *session) interrupted(parent, ctx context.Context) *Result {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
		s.log.Warn().Int("iteration", s.iteration).Msg("planning timed out")
		s.emitFixed("timeout", model.StepError, msgTimeout)
		return s.finish(OutcomeTimeout, &errx.AppError{Kind: errx.KindExhausted, Message: msgTimeout})
	}
	s.log.Info().Int("iteration", s.iteration).Msg("planning cancelled")
	s.emitFixed("cancelled", model.StepError, msgCancelled)
	return s.finish(OutcomeCancelled, &errx.AppError{Err: ctx.Err(), Kind: errx.KindCancelled, Message: msgCancelled})
}

func (s *session) finish(outcome Outcome, err error) *Result {
	if derr := s.em.Done(); derr != nil {
		s.log.Debug().Err(derr).Msg("done marker not delivered")
	}
	return &Result{
		SessionID:  s.id,
		Outcome:    outcome,
		Itinerary:  s.itinerary,
		Iterations: s.iteration,
		Usage:      s.usage,
		Err:        err,
	}
}

// emit publishes a step with a session-unique "<prefix>-<n>" id ("start" is used as is).
func (s *session) emit(prefix string, typ model.StepType, content, toolName string) {
	id := prefix
	if prefix != "start" {
		s.seq++
		id = fmt.Sprintf("%s-%d", prefix, s.seq)
	}
	s.publish(id, typ, content, toolName)
}

// emitFixed publishes a terminal step under a fixed id.
func (s *session) emitFixed(id string, typ model.StepType, content string) {
	s.publish(id, typ, content, "")
}

func (s *session) publish(id string, typ model.StepType, content, toolName string) {
	step := model.AgentStep{
		ID:        id,
		Type:      typ,
		Content:   content,
		ToolName:  toolName,
		Timestamp: s.p.cfg.Now().UnixMilli(),
	}
	if err := s.em.Step(step); err != nil {
		s.log.Debug().Err(err).Str("step", id).Msg("step not delivered")
	}
}
