package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/prometheus/common/expfmt"

	"github.com/wayfarer-planner/server/internal/agent/model"
	"github.com/wayfarer-planner/server/internal/agent/planner"
	"github.com/wayfarer-planner/server/internal/agent/stream"
	"github.com/wayfarer-planner/server/internal/calendar"
	errx "github.com/wayfarer-planner/server/internal/core/error"
	"github.com/wayfarer-planner/server/internal/photos"
	"github.com/wayfarer-planner/server/internal/trips"
	logx "github.com/wayfarer-planner/server/pkg/logger"
	"github.com/wayfarer-planner/server/pkg/metrics"
)

// Planner runs one planning session against an emitter.
type Planner interface {
	Plan(ctx context.Context, req model.TripRequest, em stream.Emitter, opts ...planner.PlanOption) (*planner.Result, error)
}

type Handler struct {
	planner     Planner
	plannerErr  error
	trips       model.TripRepository
	transcripts model.TranscriptRepository
	calendar    *calendar.Exporter
	photos      *photos.Finder
	openSink    SinkOpener
	now         func() time.Time
}

// NewHandler wires the endpoints. plannerErr is reported by every plan request when the
// planner could not be built, e.g. because the model credential is missing.
func NewHandler(p Planner, plannerErr error, stores trips.Stores, cal *calendar.Exporter, ph *photos.Finder) *Handler {
	if stores.Trips == nil {
		stores.Trips = trips.NewMemoryTripRepository()
	}
	if stores.Transcripts == nil {
		stores.Transcripts = trips.NewMemoryTranscriptRepository(time.Hour)
	}
	if cal == nil {
		cal = calendar.NewExporter(nil)
	}
	return &Handler{
		planner:     p,
		plannerErr:  plannerErr,
		trips:       stores.Trips,
		transcripts: stores.Transcripts,
		calendar:    cal,
		photos:      ph,
		openSink:    OpenSSE,
		now:         time.Now,
	}
}

// SetSinkOpener replaces how plan responses are streamed.
func (h *Handler) SetSinkOpener(o SinkOpener) {
	h.openSink = o
}

func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
}

func writeError(c *app.RequestContext, err error) {
	var ae *errx.AppError
	if !errors.As(err, &ae) {
		logx.Error().Err(err).Str("path", string(c.Path())).Msg("request failed")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": errx.SystemErrorMessage})
		return
	}
	c.JSON(errx.StatusOf(err), utils.H{"error": errx.Message(err)})
}

func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{
		"status":    "ok",
		"timestamp": h.now().Unix(),
		"service":   "wayfarer-planner",
		"planner":   h.plannerErr == nil && h.planner != nil,
	})
}

func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		writeError(c, err)
		return
	}
	c.Data(consts.StatusOK, string(expfmt.FmtText), buf.Bytes())
}

// Plan validates the trip request and streams the planning session as server-sent events.
func (h *Handler) Plan(ctx context.Context, c *app.RequestContext) {
	var req model.TripRequest
	if err := sonic.Unmarshal(c.Request.Body(), &req); err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "Invalid request body"})
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		writeError(c, err)
		return
	}
	if h.plannerErr != nil {
		writeError(c, h.plannerErr)
		return
	}
	if h.planner == nil {
		writeError(c, errx.Config("planner not configured"))
		return
	}

	sessionID := planner.NewSessionID()
	log := logx.Session(sessionID)
	c.Response.Header.Set("X-Session-Id", sessionID)

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sink, finish := h.openSink(c)
	defer finish()

	em := &sessionEmitter{
		ctx:        ctx,
		req:        req,
		client:     stream.New(sink, cancel),
		transcript: stream.New(trips.NewTranscriptSink(ctx, h.transcripts, sessionID), nil),
		trips:      h.trips,
		now:        h.now,
		log:        log,
	}
	log.Info().Str("destination", req.Destination).Int("days", req.Days).Str("client", c.ClientIP()).Msg("planning session started")

	if _, err := h.planner.Plan(sctx, req, em, planner.WithSessionID(sessionID)); err != nil {
		// the request was validated above, so this only happens if the planner disagrees
		log.Warn().Err(err).Msg("planner rejected request")
		_ = em.Step(model.AgentStep{ID: "fatal-error", Type: model.StepError, Content: errx.Message(err), Timestamp: h.now().UnixMilli()})
		_ = em.Done()
	}
}

// SessionEvents replays the recorded events of a session as one event-stream body.
func (h *Handler) SessionEvents(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	frames, err := h.transcripts.Load(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(frames) == 0 {
		writeError(c, errx.NotFound("Session not found"))
		return
	}
	sink, finish := BufferedSSE(c)
	for _, f := range frames {
		_ = sink.Send(f)
	}
	finish()
}

func (h *Handler) ListTrips(ctx context.Context, c *app.RequestContext) {
	list, err := h.trips.List(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"trips": list})
}

func (h *Handler) GetTrip(ctx context.Context, c *app.RequestContext) {
	trip, err := h.trips.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, trip)
}

func (h *Handler) DeleteTrip(ctx context.Context, c *app.RequestContext) {
	if err := h.trips.Delete(ctx, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(consts.StatusNoContent)
}

var unsafeFilename = regexp.MustCompile(`[^a-z0-9]+`)

func (h *Handler) TripCalendar(ctx context.Context, c *app.RequestContext) {
	trip, err := h.trips.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	name := strings.Trim(unsafeFilename.ReplaceAllString(strings.ToLower(trip.Itinerary.Destination), "-"), "-")
	if name == "" {
		name = "trip"
	}
	c.Response.Header.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.ics"`, name))
	c.Data(consts.StatusOK, "text/calendar; charset=utf-8", []byte(h.calendar.Export(trip)))
}

func (h *Handler) DestinationPhoto(ctx context.Context, c *app.RequestContext) {
	if h.photos == nil {
		writeError(c, errx.Config("UNSPLASH_ACCESS_KEY not configured"))
		return
	}
	url, err := h.photos.Find(ctx, c.Query("city"))
	if err != nil {
		writeError(c, err)
		return
	}
	if url == "" {
		c.JSON(consts.StatusOK, utils.H{"url": nil})
		return
	}
	c.JSON(consts.StatusOK, utils.H{"url": url})
}
