package stream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-planner/server/internal/agent/model"
)

func TestStreamWritesEventsInOrder(t *testing.T) {
	rec := NewRecorder()
	s := New(rec, nil)

	require.NoError(t, s.Step(model.AgentStep{ID: "start", Type: model.StepThinking, Content: "Charting", Timestamp: 1}))
	require.NoError(t, s.Itinerary(&model.Itinerary{Destination: "Kyoto"}))
	require.NoError(t, s.Done())

	events := rec.Events()
	require.Len(t, events, 3)
	assert.Equal(t, model.EventStep, events[0].Type)
	assert.Equal(t, "Charting", events[0].Step.Content)
	assert.Equal(t, model.EventItinerary, events[1].Type)
	assert.Equal(t, "Kyoto", events[1].Itinerary.Destination)
	assert.Equal(t, model.EventDone, events[2].Type)
	assert.True(t, s.Closed())
}

func TestStreamWireShape(t *testing.T) {
	rec := NewRecorder()
	s := New(rec, nil)
	require.NoError(t, s.Step(model.AgentStep{ID: "tool-1", Type: model.StepToolUse, Content: "x", ToolName: "web_search", Timestamp: 42}))
	require.NoError(t, s.Done())

	frames := rec.Frames()
	require.Len(t, frames, 2)
	assert.JSONEq(t, `{"type":"step","step":{"id":"tool-1","type":"tool_use","content":"x","toolName":"web_search","timestamp":42}}`, string(frames[0]))
	assert.JSONEq(t, `{"type":"done"}`, string(frames[1]))
}

func TestStreamRejectsSecondItineraryAndWritesAfterDone(t *testing.T) {
	rec := NewRecorder()
	s := New(rec, nil)

	require.NoError(t, s.Itinerary(&model.Itinerary{Destination: "A"}))
	assert.ErrorIs(t, s.Itinerary(&model.Itinerary{Destination: "B"}), ErrDuplicateItinerary)
	require.NoError(t, s.Done())
	assert.ErrorIs(t, s.Done(), ErrClosed)
	assert.ErrorIs(t, s.Step(model.AgentStep{ID: "late"}), ErrClosed)

	assert.Len(t, rec.Frames(), 2)
}

func TestStreamCancelsSessionOnSinkFailure(t *testing.T) {
	rec := NewRecorder()
	rec.FailAfter = 1
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(rec, cancel)

	require.NoError(t, s.Step(model.AgentStep{ID: "start"}))
	err := s.Step(model.AgentStep{ID: "tool-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSinkClosed)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	// later writes fail fast with the first error
	assert.ErrorIs(t, s.Step(model.AgentStep{ID: "tool-2"}), ErrSinkClosed)
	assert.Error(t, s.Done())
	assert.True(t, s.Closed())
	assert.ErrorIs(t, s.Err(), ErrSinkClosed)
	assert.Len(t, rec.Frames(), 1)
}

func TestSinkFunc(t *testing.T) {
	var got []string
	s := New(SinkFunc(func(b []byte) error {
		got = append(got, string(b))
		return nil
	}), nil)
	require.NoError(t, s.Done())
	assert.Equal(t, []string{`{"type":"done"}`}, got)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.Error(t, err)
}

func TestSavedItineraryCarriesTripID(t *testing.T) {
	rec := NewRecorder()
	s := New(rec, nil)

	require.NoError(t, s.SavedItinerary(&model.Itinerary{Destination: "Kyoto"}, "trip-1"))
	assert.ErrorIs(t, s.Itinerary(&model.Itinerary{Destination: "Kyoto"}), ErrDuplicateItinerary)

	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "trip-1", events[0].TripID)
}
