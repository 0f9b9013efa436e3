package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DayWeather summarises the expected weather for one trip day.
type DayWeather struct {
	Condition  string  `json:"condition"`
	TempHigh   float64 `json:"tempHigh"`
	TempLow    float64 `json:"tempLow"`
	RainChance float64 `json:"rainChance"`
	Icon       string  `json:"icon"`
}

// Activity categories outside the interest catalog.
const (
	CategoryTransport = "transport"
	CategoryMeal      = "meal"
)

type Activity struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	Time          string       `json:"time"`
	Duration      string       `json:"duration"`
	Category      string       `json:"category"`
	EstimatedCost float64      `json:"estimatedCost"`
	Rating        *float64     `json:"rating,omitempty"`
	Address       string       `json:"address,omitempty"`
	Coordinates   *Coordinates `json:"coordinates,omitempty"`
	PhotoURL      string       `json:"photoUrl,omitempty"`
	IndoorAlt     bool         `json:"isIndoorAlternative,omitempty"`
	Tips          string       `json:"tips,omitempty"`
}

type DayPlan struct {
	DayNumber     int         `json:"dayNumber"`
	Date          string      `json:"date,omitempty"`
	Theme         string      `json:"theme"`
	Weather       *DayWeather `json:"weather,omitempty"`
	Activities    []Activity  `json:"activities"`
	TotalCost     float64     `json:"totalCost"`
	TransportCost float64     `json:"transportCost"`
	FoodCost      float64     `json:"foodCost"`
	ActivityCost  float64     `json:"activityCost"`
}

// CostsReconcile reports whether totalCost matches the sum of its parts within tolerance.
func (d DayPlan) CostsReconcile(tolerance float64) bool {
	return math.Abs(d.TotalCost-(d.TransportCost+d.FoodCost+d.ActivityCost)) <= tolerance
}

type Itinerary struct {
	Destination        string      `json:"destination"`
	Days               []DayPlan   `json:"days"`
	TotalBudget        float64     `json:"totalBudget"`
	TotalEstimatedCost float64     `json:"totalEstimatedCost"`
	Currency           string      `json:"currency"`
	Tips               []string    `json:"tips"`
	CenterCoordinates  Coordinates `json:"centerCoordinates"`
}

// Validate checks the structural rules a model-produced itinerary must satisfy before it is
// accepted for a request of wantDays days.
func (it *Itinerary) Validate(wantDays int) []string {
	var problems []string
	if strings.TrimSpace(it.Destination) == "" {
		problems = append(problems, "destination is empty")
	}
	if len(it.Days) != wantDays {
		problems = append(problems, fmt.Sprintf("expected %d days, got %d", wantDays, len(it.Days)))
	}
	for i, d := range it.Days {
		for j, a := range d.Activities {
			if strings.TrimSpace(a.Name) == "" {
				problems = append(problems, fmt.Sprintf("day %d activity %d has no name", i+1, j+1))
			}
		}
	}
	return problems
}

// Normalize rewrites the fields the session owns: day numbering, dates, currency and the
// computed total budget.
func (it *Itinerary) Normalize(req TripRequest) {
	dates := req.TripDates()
	for i := range it.Days {
		it.Days[i].DayNumber = i + 1
		if i < len(dates) {
			it.Days[i].Date = dates[i]
		}
		if it.Days[i].Activities == nil {
			it.Days[i].Activities = []Activity{}
		}
	}
	if strings.TrimSpace(it.Currency) == "" {
		it.Currency = req.Currency
	}
	if it.Tips == nil {
		it.Tips = []string{}
	}
	it.TotalBudget = req.TotalBudget()
}

// SavedTrip is a completed plan kept for later viewing.
type SavedTrip struct {
	ID        string      `json:"id"`
	Input     TripRequest `json:"input"`
	Itinerary Itinerary   `json:"itinerary"`
	CreatedAt time.Time   `json:"createdAt"`
}
