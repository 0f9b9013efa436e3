package main

import (
	"context"
	"os"

	"github.com/cloudwego/eino/callbacks"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/wayfarer-planner/server/internal/api/http"
	"github.com/wayfarer-planner/server/internal/agent/llm"
	"github.com/wayfarer-planner/server/internal/agent/model"
	"github.com/wayfarer-planner/server/internal/agent/observers"
	"github.com/wayfarer-planner/server/internal/agent/planner"
	"github.com/wayfarer-planner/server/internal/agent/tools"
	"github.com/wayfarer-planner/server/internal/calendar"
	"github.com/wayfarer-planner/server/internal/core"
	"github.com/wayfarer-planner/server/internal/photos"
	"github.com/wayfarer-planner/server/internal/trips"
	logx "github.com/wayfarer-planner/server/pkg/logger"
	pkgredis "github.com/wayfarer-planner/server/pkg/redis"
)

// AppConfig defines every configurable parameter of the planning server, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Env      core.Environment `envconfig:"APP_ENV" default:"development"`
	LogLevel string           `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis pkgredis.Config
	HTTP  httpapi.Config

	// Planning
	Model model.ModelConfig
	Agent model.AgentConfig
	Tools model.ToolsConfig
	Trips model.TripStoreConfig

	// Edge helpers
	Photos photos.Config
}

func main() {
	ctx := context.Background()
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		logx.Warn().Err(err).Msg("Could not load .env file")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("Failed to process environment config")
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Env, Level: cfg.LogLevel})

	var rdb redis.Cmdable
	if cfg.Redis.Enabled() {
		client, err := cfg.Redis.New(ctx)
		if err != nil {
			logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
		}
		defer client.Close()
		rdb = client
		logx.Info().Msg("Connected to Redis successfully")
	} else {
		logx.Info().Msg("REDIS_URL not set, keeping trips in memory")
	}
	stores := trips.NewStores(rdb, cfg.Trips)

	p, plannerErr := buildPlanner(ctx, cfg)
	if plannerErr != nil {
		// the server still answers health, trips and photos; plan requests report the error
		logx.Error().Err(plannerErr).Msg("Planner unavailable")
	}

	handler := httpapi.NewHandler(p, plannerErr, stores, calendar.NewExporter(nil), photos.NewFinder(cfg.Photos))
	h := httpapi.NewRouter(handler, cfg.HTTP).Build(cfg.HTTP.Addr)

	logx.Info().Str("addr", cfg.HTTP.Addr).Str("env", string(cfg.Env)).Msg("Planning server listening")
	// Spin blocks until SIGINT or SIGTERM and drains in-flight requests for HTTP_SHUTDOWN_TIMEOUT
	h.Spin()
	logx.Info().Msg("Planning server stopped")
}

// buildPlanner returns a nil Planner interface, not a typed nil, when construction fails.
func buildPlanner(ctx context.Context, cfg AppConfig) (httpapi.Planner, error) {
	chatModel, err := llm.NewChatModel(ctx, cfg.Model)
	if err != nil {
		return nil, err
	}
	p, err := planner.New(ctx, planner.Config{
		Model:          chatModel,
		Tools:          tools.Catalog(cfg.Tools),
		ModelName:      cfg.Model.ResolvedModel(),
		Provider:       cfg.Model.ResolvedProvider(),
		MaxIterations:  cfg.Agent.MaxIterations,
		SessionTimeout: cfg.Agent.SessionTimeout,
		Callbacks:      []callbacks.Handler{observers.NewAllCallbacks()},
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
