package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/samber/lo"

	"github.com/wayfarer-planner/server/internal/agent/model"
	"github.com/wayfarer-planner/server/internal/agent/tools"
)

// Delimiters wrapping the final itinerary payload in model text.
const (
	ItineraryOpenTag  = "<itinerary>"
	ItineraryCloseTag = "</itinerary>"
)

//go:embed template/system_prompt.txt
var systemPromptTemplate string

//go:embed template/user_request.txt
var userRequestTemplate string

// SystemVars derives every value the system prompt needs. It is pure: the same request and
// "now" always give the same map.
func SystemVars(req model.TripRequest, now time.Time) map[string]any {
	dates := req.TripDates()
	categories := append(lo.Map(model.Interests, func(i model.Interest, _ int) string { return string(i.ID) }),
		model.CategoryTransport, model.CategoryMeal)

	return map[string]any{
		"Days":              req.Days,
		"Destination":       req.Destination,
		"DateRange":         strings.Join(dates, " → "),
		"DateList":          strings.Join(dates, ", "),
		"FirstDate":         lo.FirstOr(dates, req.StartDate),
		"Travelers":         req.Travelers,
		"Symbol":            req.CurrencySymbol(),
		"Currency":          req.Currency,
		"BudgetPerDay":      formatAmount(req.BudgetPerDay),
		"GroupBudgetPerDay": formatAmount(req.BudgetPerDay * float64(req.Travelers)),
		"Interests":         req.InterestIDs(),
		"Hotel":             req.HotelLocation,
		"Historical":        UsesHistoricalWeather(req, now),
		"HorizonDays":       model.ForecastHorizonDays,
		"WeatherTool":       tools.ToolWeatherFetch,
		"SearchTool":        tools.ToolWebSearch,
		"PlacesTool":        tools.ToolPlacesSearch,
		"Categories":        strings.Join(categories, ", "),
		"OpenTag":           ItineraryOpenTag,
		"CloseTag":          ItineraryCloseTag,
	}
}

// UsesHistoricalWeather reports whether the trip starts beyond the forecast horizon.
func UsesHistoricalWeather(req model.TripRequest, now time.Time) bool {
	return req.DaysUntilStart(now) > model.ForecastHorizonDays
}

// RenderSystem renders the session instructions through the eino prompt component so prompt
// callbacks fire.
func RenderSystem(ctx context.Context, req model.TripRequest, now time.Time) (string, error) {
	return render(ctx, schema.SystemMessage(systemPromptTemplate), SystemVars(req, now))
}

// RenderUserRequest renders the opening user turn of a session.
func RenderUserRequest(ctx context.Context, req model.TripRequest) (string, error) {
	vars := map[string]any{
		"Days":         req.Days,
		"Destination":  req.Destination,
		"StartDate":    req.StartDate,
		"Travelers":    req.Travelers,
		"Symbol":       req.CurrencySymbol(),
		"BudgetPerDay": formatAmount(req.BudgetPerDay),
		"Interests":    req.InterestIDs(),
		"Hotel":        req.HotelLocation,
	}
	return render(ctx, schema.UserMessage(userRequestTemplate), vars)
}

// ParseRetryMessage is the corrective user turn sent after a rejected itinerary payload.
func ParseRetryMessage(problem string) string {
	return fmt.Sprintf("Your itinerary could not be accepted: %s. Respond again with the complete itinerary JSON wrapped in %s%s tags.",
		problem, ItineraryOpenTag, ItineraryCloseTag)
}

func render(ctx context.Context, msg *schema.Message, vars map[string]any) (string, error) {
	tpl := prompt.FromMessages(schema.GoTemplate, msg)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("prompt render: empty result")
	}
	return msgs[0].Content, nil
}

// formatAmount prints whole amounts without decimals and keeps cents otherwise.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
