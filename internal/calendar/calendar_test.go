package calendar

import (
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-planner/server/internal/agent/model"
)

var jst = time.FixedZone("JST", 9*60*60)

func kyotoTrip() *model.SavedTrip {
	return &model.SavedTrip{
		ID:        "trip-1",
		Input:     model.TripRequest{Destination: "Kyoto", Days: 2, StartDate: "2026-02-10", Travelers: 1, BudgetPerDay: 100, Currency: "USD"},
		CreatedAt: time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC),
		Itinerary: model.Itinerary{
			Destination:       "Kyoto",
			CenterCoordinates: model.Coordinates{Lat: 35.01, Lng: 135.77},
			Days: []model.DayPlan{
				{DayNumber: 1, Activities: []model.Activity{
					{ID: "fushimi", Name: "Fushimi Inari", Time: "9:00 AM", Duration: "2 hours", Description: "Gates", Tips: "Go early",
						Coordinates: &model.Coordinates{Lat: 34.96, Lng: 135.77}},
					{ID: "lunch", Name: "Nishiki Market", Time: "whenever", Duration: "1 hour"},
				}},
				{DayNumber: 2, Activities: []model.Activity{
					{Name: "Gion walk", Time: "19:30", Duration: "45 minutes", Address: "Gion, Kyoto"},
				}},
			},
		},
	}
}

func TestExportBuildsOneEventPerTimedActivity(t *testing.T) {
	out := NewExporter(func(lat, lng float64) *time.Location { return jst }).Export(kyotoTrip())

	assert.Contains(t, out, "X-WR-CALNAME:Trip to Kyoto")
	assert.Contains(t, out, "\r\n")

	cal, err := ics.ParseCalendar(strings.NewReader(out))
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 2, "activity without a readable time is skipped")

	assert.Equal(t, "trip-1-fushimi@wayfarer", events[0].Id())
	start, err := events[0].GetStartAt()
	require.NoError(t, err)
	assert.True(t, time.Date(2026, 2, 10, 9, 0, 0, 0, jst).Equal(start))
	end, err := events[0].GetEndAt()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, end.Sub(start))
	assert.Equal(t, "Fushimi Inari", events[0].GetProperty(ics.ComponentPropertySummary).Value)

	assert.Equal(t, "trip-1-d2-a1@wayfarer", events[1].Id())
	start, err = events[1].GetStartAt()
	require.NoError(t, err)
	assert.True(t, time.Date(2026, 2, 11, 19, 30, 0, 0, jst).Equal(start))
	assert.Equal(t, "Gion, Kyoto", events[1].GetProperty(ics.ComponentPropertyLocation).Value)
}

func TestExportWithoutCoordinatesUsesUTC(t *testing.T) {
	trip := kyotoTrip()
	trip.Itinerary.CenterCoordinates = model.Coordinates{}
	called := false
	out := NewExporter(func(lat, lng float64) *time.Location { called = true; return jst }).Export(trip)

	assert.False(t, called)
	assert.Contains(t, out, "X-WR-TIMEZONE:UTC")
	assert.Contains(t, out, "DTSTART:20260210T090000Z")
}

func TestTZFZone(t *testing.T) {
	assert.Equal(t, "Asia/Tokyo", TZFZone(35.68, 139.69).String())
	assert.Equal(t, "Europe/Lisbon", TZFZone(38.72, -9.14).String())
}

func TestParseClock(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cases := map[string]string{
		"9:00 AM":  "09:00",
		"9:00am":   "09:00",
		"12:15 PM": "12:15",
		"14:05":    "14:05",
		"7 PM":     "19:00",
	}
	for in, want := range cases {
		got, ok := ParseClock(in, day, time.UTC)
		require.True(t, ok, in)
		assert.Equal(t, want, got.Format("15:04"), in)
	}
	_, ok := ParseClock("Morning", day, time.UTC)
	assert.False(t, ok)
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"2 hours":          2 * time.Hour,
		"1.5 hrs":          90 * time.Minute,
		"45 minutes":       45 * time.Minute,
		"1 hour 30 min":    90 * time.Minute,
		"2-3 hours":        2 * time.Hour,
		"all afternoon":    time.Hour,
		"":                 time.Hour,
		"30 mins (approx)": 30 * time.Minute,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseDuration(in), in)
	}
}
