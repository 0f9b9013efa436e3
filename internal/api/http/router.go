package http

import (
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/hertz-contrib/cors"
	"github.com/samber/lo"
)

type Config struct {
	Addr              string        `envconfig:"HTTP_ADDR" default:":8080"`
	AllowOrigins      []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`
	PlanRatePerMinute int           `envconfig:"PLAN_RATE_PER_MINUTE" default:"10"`
	PlanBurst         int           `envconfig:"PLAN_RATE_BURST" default:"3"`
	ShutdownTimeout   time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

type Router struct {
	handler *Handler
	cfg     Config
	limiter *RateLimiter
}

func NewRouter(handler *Handler, cfg Config) *Router {
	return &Router{
		handler: handler,
		cfg:     cfg,
		limiter: NewRateLimiter(cfg.PlanRatePerMinute, cfg.PlanBurst),
	}
}

// Build creates the hertz server with every route registered.
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	opts = append([]config.Option{
		server.WithHostPorts(addr),
		server.WithExitWaitTime(r.cfg.ShutdownTimeout),
	}, opts...)
	h := server.Default(opts...)
	h.Use(r.cors())

	h.GET("/metrics", r.handler.Metrics)

	api := h.Group("/api")
	api.GET("/health", r.handler.HealthCheck)
	api.POST("/plan", r.limiter.Middleware("/api/plan"), r.handler.Plan)
	api.GET("/sessions/:id/events", r.handler.SessionEvents)
	api.GET("/destination-photo", r.handler.DestinationPhoto)

	trips := api.Group("/trips")
	trips.GET("", r.handler.ListTrips)
	trips.GET("/:id", r.handler.GetTrip)
	trips.DELETE("/:id", r.handler.DeleteTrip)
	trips.GET("/:id/calendar.ics", r.handler.TripCalendar)
	return h
}

func (r *Router) cors() app.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", "X-Session-Id"},
		MaxAge:        12 * time.Hour,
	}
	if len(r.cfg.AllowOrigins) == 0 || lo.Contains(r.cfg.AllowOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = r.cfg.AllowOrigins
	}
	return cors.New(cfg)
}
