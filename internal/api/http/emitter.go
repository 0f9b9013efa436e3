package http

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/wayfarer-planner/server/internal/agent/model"
	"github.com/wayfarer-planner/server/internal/agent/stream"
	"github.com/wayfarer-planner/server/internal/trips"
)

// sessionEmitter feeds the client stream and the session transcript, and saves the accepted
// itinerary so the itinerary event can carry its trip id. Only client failures are returned:
// they are what cancels the session.
type sessionEmitter struct {
	ctx        context.Context
	req        model.TripRequest
	client     *stream.Stream
	transcript *stream.Stream
	trips      model.TripRepository
	now        func() time.Time
	log        zerolog.Logger
}

func (e *sessionEmitter) Step(step model.AgentStep) error {
	e.record(e.transcript.Step(step))
	return e.client.Step(step)
}

func (e *sessionEmitter) Itinerary(it *model.Itinerary) error {
	tripID := ""
	trip := trips.NewTrip(e.req, *it, e.now())
	if err := e.trips.Save(context.WithoutCancel(e.ctx), trip); err != nil {
		e.log.Warn().Err(err).Msg("itinerary not saved")
	} else {
		tripID = trip.ID
		e.log.Info().Str("trip_id", tripID).Msg("itinerary saved")
	}
	e.record(e.transcript.SavedItinerary(it, tripID))
	return e.client.SavedItinerary(it, tripID)
}

func (e *sessionEmitter) Done() error {
	e.record(e.transcript.Done())
	return e.client.Done()
}

func (e *sessionEmitter) record(err error) {
	if err != nil {
		e.log.Debug().Err(err).Msg("transcript write failed")
	}
}
