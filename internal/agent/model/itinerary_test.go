package model

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestItineraryValidate(t *testing.T) {
	it := &Itinerary{
		Destination: "Tokyo",
		Days: []DayPlan{
			{Activities: []Activity{{Name: "Senso-ji"}}},
			{Activities: []Activity{{Name: " "}}},
		},
	}
	assert.Equal(t, []string{"expected 3 days, got 2", "day 2 activity 1 has no name"}, it.Validate(3))

	it.Destination = ""
	it.Days[1].Activities[0].Name = "Meiji Shrine"
	assert.Equal(t, []string{"destination is empty"}, it.Validate(2))
}

func TestItineraryNormalize(t *testing.T) {
	req := TripRequest{Days: 2, StartDate: "2026-02-15", Travelers: 2, BudgetPerDay: 100, Currency: "EUR"}
	it := &Itinerary{
		Destination: "Paris",
		Days: []DayPlan{
			{DayNumber: 7, Date: "tomorrow"},
			{DayNumber: 7},
		},
		TotalBudget: 1,
	}
	it.Normalize(req)

	assert.Equal(t, 1, it.Days[0].DayNumber)
	assert.Equal(t, 2, it.Days[1].DayNumber)
	assert.Equal(t, "Sun, Feb 15, 2026", it.Days[0].Date)
	assert.Equal(t, "Mon, Feb 16, 2026", it.Days[1].Date)
	assert.Equal(t, 400.0, it.TotalBudget)
	assert.Equal(t, "EUR", it.Currency)
	assert.NotNil(t, it.Days[0].Activities)
	assert.NotNil(t, it.Tips)
}

func TestCostsReconcile(t *testing.T) {
	d := DayPlan{TotalCost: 100, TransportCost: 20, FoodCost: 30, ActivityCost: 49}
	assert.True(t, d.CostsReconcile(1))
	assert.False(t, d.CostsReconcile(0.5))
}

func TestUsageAdd(t *testing.T) {
	var u Usage
	cost := u.Add(&schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000}, ResolvePricing("google/gemini-2.5-flash"))
	assert.InDelta(t, 2.80, cost, 1e-9)
	assert.Equal(t, 1_000_000, u.PromptTokens)
	assert.Zero(t, u.Add(nil, Pricing{}))
	assert.Equal(t, Pricing{}, ResolvePricing("mystery-model"))
}
