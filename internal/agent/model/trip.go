package model

import (
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/text/currency"

	errx "github.com/wayfarer-planner/server/internal/core/error"
)

const (
	MinTripDays = 1
	MaxTripDays = 5

	// ForecastHorizonDays is how far ahead a real forecast is available. Trips starting later
	// get historical averages instead.
	ForecastHorizonDays = 16

	DateLayout = "2006-01-02"
	// DisplayDateLayout is how trip dates are shown to the model and stored on each day.
	DisplayDateLayout = "Mon, Jan 2, 2006"
)

// InterestID is one of the fixed interest categories a traveler can pick.
type InterestID string

const (
	InterestFood        InterestID = "food"
	InterestTemples     InterestID = "temples"
	InterestMuseums     InterestID = "museums"
	InterestNightlife   InterestID = "nightlife"
	InterestShopping    InterestID = "shopping"
	InterestNature      InterestID = "nature"
	InterestHistory     InterestID = "history"
	InterestAdventure   InterestID = "adventure"
	InterestRelaxation  InterestID = "relaxation"
	InterestPhotography InterestID = "photography"
)

// Interest pairs an id with its human label.
type Interest struct {
	ID    InterestID `json:"id"`
	Label string     `json:"label"`
	Icon  string     `json:"icon"`
}

// Interests is the closed interest catalog in display order.
var Interests = []Interest{
	{ID: InterestFood, Label: "Food & Dining", Icon: "🍜"},
	{ID: InterestTemples, Label: "Temples & Shrines", Icon: "⛩️"},
	{ID: InterestMuseums, Label: "Museums & Art", Icon: "🏛️"},
	{ID: InterestNightlife, Label: "Nightlife", Icon: "🌙"},
	{ID: InterestShopping, Label: "Shopping", Icon: "🛍️"},
	{ID: InterestNature, Label: "Nature & Parks", Icon: "🌿"},
	{ID: InterestHistory, Label: "History & Culture", Icon: "📜"},
	{ID: InterestAdventure, Label: "Adventure", Icon: "🧗"},
	{ID: InterestRelaxation, Label: "Relaxation & Spa", Icon: "🧘"},
	{ID: InterestPhotography, Label: "Photography Spots", Icon: "📸"},
}

// Label returns the human label of the interest, or the raw id when unknown.
func (id InterestID) Label() string {
	if in, ok := lo.Find(Interests, func(i Interest) bool { return i.ID == id }); ok {
		return in.Label
	}
	return string(id)
}

// Known reports whether id belongs to the catalog.
func (id InterestID) Known() bool {
	return lo.ContainsBy(Interests, func(i Interest) bool { return i.ID == id })
}

// TripRequest is the traveler's input for one planning session.
type TripRequest struct {
	Destination   string       `json:"destination"`
	Days          int          `json:"days"`
	StartDate     string       `json:"startDate"`
	Travelers     int          `json:"travelers"`
	BudgetPerDay  float64      `json:"budgetPerDay"`
	Currency      string       `json:"currency"`
	Interests     []InterestID `json:"interests"`
	HotelLocation string       `json:"hotelLocation,omitempty"`
}

// Normalize trims free text and fills defaults that do not change meaning.
func (r *TripRequest) Normalize() {
	r.Destination = strings.TrimSpace(r.Destination)
	r.StartDate = strings.TrimSpace(r.StartDate)
	r.HotelLocation = strings.TrimSpace(r.HotelLocation)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	if r.Currency == "" {
		r.Currency = "USD"
	}
	if r.Travelers == 0 {
		r.Travelers = 1
	}
	r.Interests = lo.Uniq(r.Interests)
}

// Validate rejects requests that must never start a session. Destination and day range are
// checked first so their messages win.
func (r TripRequest) Validate() error {
	if strings.TrimSpace(r.Destination) == "" {
		return errx.Validation("Please enter a destination")
	}
	if r.Days < MinTripDays || r.Days > MaxTripDays {
		return errx.Validation("Days must be between %d and %d", MinTripDays, MaxTripDays)
	}
	if _, err := r.Start(); err != nil {
		return errx.Validation("startDate must be a date in YYYY-MM-DD format")
	}
	if r.Travelers < 1 {
		return errx.Validation("travelers must be at least 1")
	}
	if r.BudgetPerDay <= 0 {
		return errx.Validation("budgetPerDay must be positive")
	}
	if _, err := currency.ParseISO(r.Currency); err != nil {
		return errx.Validation("unknown currency code %q", r.Currency)
	}
	if len(r.Interests) == 0 {
		return errx.Validation("pick at least one interest")
	}
	if bad, ok := lo.Find(r.Interests, func(id InterestID) bool { return !id.Known() }); ok {
		return errx.Validation("unknown interest %q", bad)
	}
	return nil
}

// Start parses StartDate as a calendar date in UTC.
func (r TripRequest) Start() (time.Time, error) {
	return time.ParseInLocation(DateLayout, r.StartDate, time.UTC)
}

// Dates returns Days consecutive calendar dates starting at StartDate.
func (r TripRequest) Dates() []time.Time {
	start, err := r.Start()
	if err != nil || r.Days <= 0 {
		return nil
	}
	dates := make([]time.Time, r.Days)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}

// TripDates returns the human-readable trip dates, e.g. "Sun, Feb 15, 2026".
func (r TripRequest) TripDates() []string {
	return lo.Map(r.Dates(), func(d time.Time, _ int) string { return d.Format(DisplayDateLayout) })
}

// TotalBudget is BudgetPerDay x Days x Travelers.
func (r TripRequest) TotalBudget() float64 {
	return r.BudgetPerDay * float64(r.Days) * float64(r.Travelers)
}

// DaysUntilStart counts whole calendar days from now's date to the start date.
func (r TripRequest) DaysUntilStart(now time.Time) int {
	start, err := r.Start()
	if err != nil {
		return 0
	}
	return DaysBetween(now, start)
}

// DaysBetween counts calendar days from a's date to b's date, ignoring time of day.
func DaysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}

// InterestIDs joins the selected interest ids.
func (r TripRequest) InterestIDs() string {
	return strings.Join(lo.Map(r.Interests, func(id InterestID, _ int) string { return string(id) }), ", ")
}

// CurrencySymbol renders "$" for USD and the code otherwise.
func (r TripRequest) CurrencySymbol() string {
	if r.Currency == "" || r.Currency == "USD" {
		return "$"
	}
	return r.Currency
}

// InterestLabels joins the labels of the selected interests.
func (r TripRequest) InterestLabels() string {
	return strings.Join(lo.Map(r.Interests, func(id InterestID, _ int) string { return id.Label() }), ", ")
}
