// Package calendar exports saved trips as iCalendar files.
package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/ringsaturn/tzf"

	"github.com/wayfarer-planner/server/internal/agent/model"
	logx "github.com/wayfarer-planner/server/pkg/logger"
)

const (
	productID       = "-//Wayfarer//Trip Planner//EN"
	defaultDuration = time.Hour
)

// ZoneFunc resolves the timezone at a point.
type ZoneFunc func(lat, lng float64) *time.Location

type Exporter struct {
	zone ZoneFunc
}

// NewExporter resolves timezones with zone; nil uses the tzf boundary data.
func NewExporter(zone ZoneFunc) *Exporter {
	if zone == nil {
		zone = TZFZone
	}
	return &Exporter{zone: zone}
}

var (
	finderOnce sync.Once
	finder     tzf.F
)

// TZFZone looks the point up in the bundled timezone boundaries, falling back to UTC.
func TZFZone(lat, lng float64) *time.Location {
	finderOnce.Do(func() {
		f, err := tzf.NewDefaultFinder()
		if err != nil {
			logx.Error().Err(err).Msg("failed to load timezone finder")
			return
		}
		finder = f
	})
	if finder == nil {
		return time.UTC
	}
	name := finder.GetTimezoneName(lng, lat)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logx.Warn().Err(err).Str("tz", name).Msg("unknown timezone")
		return time.UTC
	}
	return loc
}

// Export renders one VEVENT per schedulable activity of the trip.
func (e *Exporter) Export(trip *model.SavedTrip) string {
	it := trip.Itinerary
	loc := time.UTC
	if c := it.CenterCoordinates; c.Lat != 0 || c.Lng != 0 {
		loc = e.zone(c.Lat, c.Lng)
	}

	cal := ics.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ics.MethodPublish)
	cal.SetXWRCalName("Trip to " + it.Destination)
	cal.SetXWRTimezone(loc.String())

	dates := trip.Input.Dates()
	for i, day := range it.Days {
		date, ok := dayDate(day, i, dates)
		if !ok {
			continue
		}
		for j, a := range day.Activities {
			start, ok := ParseClock(a.Time, date, loc)
			if !ok {
				continue
			}
			id := a.ID
			if id == "" {
				id = fmt.Sprintf("d%d-a%d", i+1, j+1)
			}
			ev := cal.AddEvent(fmt.Sprintf("%s-%s@wayfarer", trip.ID, id))
			ev.SetDtStampTime(trip.CreatedAt)
			ev.SetStartAt(start)
			ev.SetEndAt(start.Add(ParseDuration(a.Duration)))
			ev.SetSummary(a.Name)
			if desc := description(a); desc != "" {
				ev.SetDescription(desc)
			}
			if a.Address != "" {
				ev.SetLocation(a.Address)
			}
			if a.Coordinates != nil {
				ev.SetGeo(a.Coordinates.Lat, a.Coordinates.Lng)
			}
		}
	}
	return cal.Serialize(ics.WithNewLineWindows)
}

func dayDate(day model.DayPlan, i int, dates []time.Time) (time.Time, bool) {
	if i < len(dates) {
		return dates[i], true
	}
	t, err := time.Parse(model.DisplayDateLayout, day.Date)
	return t, err == nil
}

func description(a model.Activity) string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(a.Description); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(a.Tips); s != "" {
		parts = append(parts, "Tip: "+s)
	}
	return strings.Join(parts, "\n\n")
}

var clockLayouts = []string{"3:04 PM", "3:04PM", "15:04", "3 PM", "3PM"}

// ParseClock places a wall-clock string such as "9:30 AM" or "14:00" on date in loc.
func ParseClock(s string, date time.Time, loc *time.Location) (time.Time, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc), true
		}
	}
	return time.Time{}, false
}

var durationPart = regexp.MustCompile(`(\d+(?:\.\d+)?)(?:\s*-\s*\d+(?:\.\d+)?)?\s*(hours?|hrs?|h|minutes?|mins?|m)\b`)

// ParseDuration reads strings like "2 hours", "1.5 hrs", "45 minutes" or "1 hour 30 min".
// For a range the lower bound is used. Anything unreadable is one hour.
func ParseDuration(s string) time.Duration {
	var total time.Duration
	for _, m := range durationPart.FindAllStringSubmatch(strings.ToLower(s), -1) {
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		unit := time.Minute
		if strings.HasPrefix(m[2], "h") {
			unit = time.Hour
		}
		total += time.Duration(n * float64(unit))
	}
	if total <= 0 {
		return defaultDuration
	}
	return total
}
