package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-planner/server/internal/agent/model"
	"github.com/wayfarer-planner/server/internal/agent/stream"
	errx "github.com/wayfarer-planner/server/internal/core/error"
)

func frame(t *testing.T, ev model.Event) string {
	t.Helper()
	b, err := stream.Encode(ev)
	require.NoError(t, err)
	return "data: " + string(b) + "\n\n"
}

func stepEvent(id, content string) model.Event {
	return model.Event{Type: model.EventStep, Step: &model.AgentStep{ID: id, Type: model.StepThinking, Content: content}}
}

func itineraryEvent(tripID string) model.Event {
	return model.Event{Type: model.EventItinerary, TripID: tripID, Itinerary: &model.Itinerary{
		Destination: "Kyoto, Japan",
		Currency:    "USD",
		Days:        []model.DayPlan{{DayNumber: 1, Theme: "Temples"}},
	}}
}

var doneEvent = model.Event{Type: model.EventDone}

func collect(events *[]model.Event) Handler {
	return func(ev model.Event) error {
		*events = append(*events, ev)
		return nil
	}
}

func TestConsumeFrames(t *testing.T) {
	body := ": keep-alive\n\n" +
		frame(t, stepEvent("s1", "Searching")) +
		"event: ignored\n" +
		frame(t, itineraryEvent("trip-1")) +
		frame(t, doneEvent) +
		frame(t, stepEvent("s2", "never read"))

	var events []model.Event
	require.NoError(t, Consume(context.Background(), strings.NewReader(body), collect(&events)))
	require.Len(t, events, 3)
	assert.Equal(t, "Searching", events[0].Step.Content)
	assert.Equal(t, "trip-1", events[1].TripID)
	assert.Equal(t, model.EventDone, events[2].Type)
}

func TestConsumeJoinsMultiLineData(t *testing.T) {
	body := "data: {\"type\":\"step\",\ndata:\"step\":{\"id\":\"s1\",\"type\":\"text\",\"content\":\"hi\",\"timestamp\":1}}\n\n" +
		"data: {\"type\":\"done\"}"

	var events []model.Event
	require.NoError(t, Consume(context.Background(), strings.NewReader(body), collect(&events)))
	require.Len(t, events, 2)
	assert.Equal(t, "hi", events[0].Step.Content)
	assert.Equal(t, model.EventDone, events[1].Type)
}

func TestConsumeErrors(t *testing.T) {
	t.Run("ends without done", func(t *testing.T) {
		err := Consume(context.Background(), strings.NewReader(frame(t, stepEvent("s1", "x"))), collect(new([]model.Event)))
		assert.ErrorIs(t, err, ErrIncomplete)
	})
	t.Run("undecodable frame", func(t *testing.T) {
		err := Consume(context.Background(), strings.NewReader("data: {not json}\n\n"), collect(new([]model.Event)))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stream: decode")
	})
	t.Run("handler error stops reading", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		body := frame(t, stepEvent("s1", "a")) + frame(t, stepEvent("s2", "b")) + frame(t, doneEvent)
		err := Consume(context.Background(), strings.NewReader(body), func(model.Event) error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})
	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Consume(ctx, strings.NewReader(frame(t, doneEvent)), collect(new([]model.Event)))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestStateRejectsProtocolViolations(t *testing.T) {
	var s State
	require.NoError(t, s.Apply(stepEvent("s1", "a")))
	require.NoError(t, s.Apply(model.Event{Type: model.EventStep, Step: &model.AgentStep{ID: "e", Type: model.StepError, Content: "Planning error: boom"}}))
	require.NoError(t, s.Apply(itineraryEvent("trip-1")))
	assert.ErrorIs(t, s.Apply(itineraryEvent("trip-2")), ErrSecondItinerary)
	require.NoError(t, s.Apply(doneEvent))
	assert.ErrorIs(t, s.Apply(stepEvent("s3", "late")), ErrAfterDone)
	assert.ErrorIs(t, s.Apply(doneEvent), ErrAfterDone)

	it, tripID := s.Itinerary()
	require.NotNil(t, it)
	assert.Equal(t, "trip-1", tripID)
	assert.True(t, s.Done())
	assert.Len(t, s.Steps(), 2)
	assert.Equal(t, "Planning error: boom", s.LastError())
}

func newPlanServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second)
}

func TestClientPlanStreamsEvents(t *testing.T) {
	var got model.TripRequest
	c := newPlanServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/plan", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"destination":"Kyoto"`)
		got.Destination = "Kyoto"

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, ev := range []model.Event{stepEvent("s1", "Searching"), itineraryEvent("trip-9"), doneEvent} {
			_, _ = io.WriteString(w, frame(t, ev))
			flusher.Flush()
		}
	})

	var seen []string
	state, err := c.Plan(context.Background(), model.TripRequest{Destination: "Kyoto", Days: 1}, func(ev model.Event) error {
		seen = append(seen, string(ev.Type))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"step", "itinerary", "done"}, seen)
	assert.True(t, state.Done())
	_, tripID := state.Itinerary()
	assert.Equal(t, "trip-9", tripID)
	assert.Equal(t, "Kyoto", got.Destination)
}

func TestClientPlanReportsRejection(t *testing.T) {
	c := newPlanServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"Please enter a destination"}`)
	})

	state, err := c.Plan(context.Background(), model.TripRequest{}, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Status)
	assert.Equal(t, "Please enter a destination", apiErr.Message)
	assert.False(t, state.Done())
}

func TestClientTripEndpoints(t *testing.T) {
	c := newPlanServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/trips":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"trips":[{"id":"trip-1","input":{"destination":"Kyoto"},"itinerary":{"destination":"Kyoto, Japan"},"createdAt":"2026-01-30T10:00:00Z"}]}`)
		case r.Method == http.MethodGet && r.URL.Path == "/api/trips/trip-1/calendar.ics":
			w.Header().Set("Content-Type", "text/calendar")
			_, _ = io.WriteString(w, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
		case r.Method == http.MethodDelete && r.URL.Path == "/api/trips/trip-1":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"Trip not found"}`)
		}
	})
	ctx := context.Background()

	list, err := c.Trips(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Kyoto, Japan", list[0].Itinerary.Destination)

	ics, err := c.Calendar(ctx, "trip-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(ics), "BEGIN:VCALENDAR"))

	require.NoError(t, c.DeleteTrip(ctx, "trip-1"))

	_, err = c.Trip(ctx, "trip-2")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, fmt.Sprintf("server answered 404: %s", "Trip not found"), apiErr.Error())
}

func TestLocalStore(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	req := model.TripRequest{Destination: "Kyoto", Days: 1}
	base := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)

	var empty State
	_, err := store.SaveResult(req, &empty, base)
	require.Error(t, err)

	var first State
	require.NoError(t, first.Apply(itineraryEvent("trip-from-server")))
	saved, err := store.SaveResult(req, &first, base)
	require.NoError(t, err)
	assert.Equal(t, "trip-from-server", saved.ID)

	var second State
	require.NoError(t, second.Apply(itineraryEvent("")))
	local, err := store.SaveResult(req, &second, base.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(local.ID, "trip-"))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, local.ID, list[0].ID)
	assert.Equal(t, "trip-from-server", list[1].ID)

	loaded, err := store.Load("trip-from-server")
	require.NoError(t, err)
	assert.Equal(t, "Kyoto, Japan", loaded.Itinerary.Destination)
	assert.True(t, base.Equal(loaded.CreatedAt))

	require.NoError(t, store.Delete("trip-from-server"))
	require.NoError(t, store.Delete("trip-from-server"))
	_, err = store.Load("trip-from-server")
	assert.Equal(t, errx.KindNotFound, errx.KindOf(err))

	_, err = store.Load("../etc/passwd")
	assert.Equal(t, errx.KindValidation, errx.KindOf(err))
}

func TestLocalStoreListMissingDir(t *testing.T) {
	list, err := NewLocalStore(t.TempDir() + "/nope").List()
	require.NoError(t, err)
	assert.Empty(t, list)
}
