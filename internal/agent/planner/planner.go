package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/callbacks"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/google/uuid"

	"github.com/wayfarer-planner/server/internal/agent/model"
	"github.com/wayfarer-planner/server/internal/agent/stream"
	"github.com/wayfarer-planner/server/internal/agent/tools"
	logx "github.com/wayfarer-planner/server/pkg/logger"
	"github.com/wayfarer-planner/server/pkg/metrics"
)

const (
	DefaultMaxIterations  = 10
	DefaultSessionTimeout = 5 * time.Minute

	maxThinkingLines = 3
	maxThinkingRunes = 200
)

// Outcome is how a session ended.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeExhausted   Outcome = "exhausted"
	OutcomeTimeout     Outcome = "timeout"
	OutcomeCancelled   Outcome = "cancelled"
	OutcomeError       Outcome = "error"
	OutcomeNoItinerary Outcome = "no_itinerary"
)

type Config struct {
	Model einomodel.ToolCallingChatModel
	Tools []tool.InvokableTool

	// ModelName prices token usage and labels model callbacks.
	ModelName string
	// Provider labels model callbacks, e.g. "gemini".
	Provider string

	MaxIterations  int
	SessionTimeout time.Duration

	// Now is the session clock; it decides forecast versus history in the prompt and
	// stamps every step.
	Now func() time.Time

	Callbacks []callbacks.Handler
}

// Planner runs planning sessions. It holds no per-session state, so one Planner serves
// any number of concurrent sessions.
type Planner struct {
	cfg   Config
	model einomodel.ToolCallingChatModel
	tools map[string]tool.InvokableTool
}

// New binds the tool catalog to the model.
func New(ctx context.Context, cfg Config) (*Planner, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("planner: model is required")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = DefaultSessionTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	infos, err := tools.GetToolInfos(ctx, cfg.Tools)
	if err != nil {
		return nil, err
	}
	bound, err := cfg.Model.WithTools(infos)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools")
		return nil, fmt.Errorf("failed to bind tools: %w", err)
	}

	byName := make(map[string]tool.InvokableTool, len(cfg.Tools))
	for i, t := range cfg.Tools {
		byName[infos[i].Name] = t
	}
	logx.Debug().Int("tools", len(byName)).Str("model", cfg.ModelName).Msg("Successfully bound tools to planner model")

	return &Planner{cfg: cfg, model: bound, tools: byName}, nil
}

// Result summarises a finished session.
type Result struct {
	SessionID  string
	Outcome    Outcome
	Itinerary  *model.Itinerary
	Iterations int
	Usage      model.Usage
	// Err is the failure behind an error outcome.
	Err error
}

type PlanOption func(*planOptions)

type planOptions struct {
	sessionID string
}

// WithSessionID fixes the session id instead of generating one.
func WithSessionID(id string) PlanOption {
	return func(o *planOptions) { o.sessionID = id }
}

// NewSessionID returns a fresh "session-<uuid>" id.
func NewSessionID() string {
	return "session-" + uuid.NewString()
}

// Plan runs one session for req, publishing progress to em. A request that fails validation
// is returned as an error before anything is emitted. Every other session ends with exactly
// one done marker, whatever happens.
func (p *Planner) Plan(ctx context.Context, req model.TripRequest, em stream.Emitter, opts ...PlanOption) (*Result, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	o := planOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sessionID == "" {
		o.sessionID = NewSessionID()
	}

	s := newSession(p, o.sessionID, req, em)
	started := time.Now()
	res := s.run(ctx)

	metrics.SessionsTotal.WithLabelValues(string(res.Outcome)).Inc()
	metrics.SessionDuration.WithLabelValues(string(res.Outcome)).Observe(time.Since(started).Seconds())
	metrics.Iterations.Observe(float64(res.Iterations))
	s.log.Info().
		Str("outcome", string(res.Outcome)).
		Int("iterations", res.Iterations).
		Int("prompt_tokens", res.Usage.PromptTokens).
		Int("completion_tokens", res.Usage.CompletionTokens).
		Float64("total_cost_usd", res.Usage.CostUSD).
		Dur("elapsed", time.Since(started)).
		Msg("planning session finished")
	return res, nil
}
