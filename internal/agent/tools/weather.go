package tools

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"github.com/wayfarer-planner/server/internal/agent/model"
	errx "github.com/wayfarer-planner/server/internal/core/error"
	logx "github.com/wayfarer-planner/server/pkg/logger"
)

const (
	historicalYears     = 5
	forecastDailyFields = "weather_code,temperature_2m_max,temperature_2m_min,precipitation_probability_max"
	archiveDailyFields  = "weather_code,temperature_2m_max,temperature_2m_min,precipitation_sum"
)

// Weather basis values reported alongside a forecast.
const (
	BasisForecast   = "forecast"
	BasisHistorical = "historical"
)

type WeatherInput struct {
	Location  string `json:"location"`
	Days      int    `json:"days"`
	StartDate string `json:"start_date,omitempty"`
}

type DayForecast struct {
	Day        int     `json:"day"`
	Date       string  `json:"date"`
	Condition  string  `json:"condition"`
	TempHigh   float64 `json:"tempHigh"`
	TempLow    float64 `json:"tempLow"`
	RainChance float64 `json:"rainChance"`
	Humidity   int     `json:"humidity"`
	Icon       string  `json:"icon"`
}

type WeatherOutput struct {
	Location string        `json:"location"`
	Basis    string        `json:"basis"`
	Forecast []DayForecast `json:"forecast"`
}

type geoPoint struct {
	Lat  float64
	Lng  float64
	Name string
}

// dailySeries is the common shape of Open-Meteo daily blocks; fields a request did not ask
// for stay nil.
type dailySeries struct {
	Time                        []string   `json:"time"`
	WeatherCode                 []*int     `json:"weather_code"`
	Temperature2mMax            []*float64 `json:"temperature_2m_max"`
	Temperature2mMin            []*float64 `json:"temperature_2m_min"`
	PrecipitationProbabilityMax []*float64 `json:"precipitation_probability_max"`
	PrecipitationSum            []*float64 `json:"precipitation_sum"`
}

// WeatherFetch geocodes a location and returns a forecast, or historical averages when the
// start date is beyond the forecast horizon.
type WeatherFetch struct {
	apiKey            string
	geocoding         *resty.Client
	forecast          *resty.Client
	archive           *resty.Client
	historicalTimeout time.Duration
	now               func() time.Time
}

type WeatherOption func(*WeatherFetch)

// WithClock replaces the clock used to decide between forecast and history.
func WithClock(now func() time.Time) WeatherOption {
	return func(w *WeatherFetch) { w.now = now }
}

func NewWeatherFetch(cfg model.ToolsConfig, opts ...WeatherOption) *WeatherFetch {
	w := &WeatherFetch{
		apiKey:            cfg.OpenMeteoAPIKey,
		geocoding:         newHTTPClient(cfg.GeocodingBaseURL, cfg.RequestTimeout, cfg.RetryCount),
		forecast:          newHTTPClient(cfg.ForecastBaseURL, cfg.RequestTimeout, cfg.RetryCount),
		archive:           newHTTPClient(cfg.ArchiveBaseURL, cfg.RequestTimeout, 0),
		historicalTimeout: cfg.HistoricalTimeout,
		now:               time.Now,
	}
	if w.historicalTimeout <= 0 {
		w.historicalTimeout = 15 * time.Second
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Fetch returns up to five days of weather starting at startDate (YYYY-MM-DD, default today).
func (w *WeatherFetch) Fetch(ctx context.Context, location string, days int, startDate string) (*WeatherOutput, error) {
	geo, err := w.geocode(ctx, location)
	if err != nil {
		return nil, err
	}

	days = clampInt(days, model.MinTripDays, model.MaxTripDays)
	today := w.now()
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if startDate = strings.TrimSpace(startDate); startDate != "" {
		start, err = time.ParseInLocation(model.DateLayout, startDate, time.UTC)
		if err != nil {
			return nil, errx.Tool("Invalid start_date %q, expected YYYY-MM-DD", startDate)
		}
	}
	end := start.AddDate(0, 0, days-1)

	if model.DaysBetween(today, start) <= model.ForecastHorizonDays {
		forecast, err := w.fetchForecast(ctx, geo, start, end)
		if err != nil {
			return nil, err
		}
		return &WeatherOutput{Location: geo.Name, Basis: BasisForecast, Forecast: forecast}, nil
	}

	forecast, err := w.fetchHistorical(ctx, geo, today.Year(), start, days)
	if err != nil {
		return nil, err
	}
	return &WeatherOutput{Location: geo.Name, Basis: BasisHistorical, Forecast: forecast}, nil
}

func (w *WeatherFetch) request(ctx context.Context, c *resty.Client) *resty.Request {
	r := c.R().SetContext(ctx).ForceContentType("application/json")
	if model.CredentialConfigured(w.apiKey) {
		r.SetQueryParam("apikey", w.apiKey)
	}
	return r
}

func (w *WeatherFetch) geocode(ctx context.Context, location string) (*geoPoint, error) {
	var body struct {
		Results []struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Name      string  `json:"name"`
		} `json:"results"`
	}
	resp, err := w.request(ctx, w.geocoding).
		SetQueryParams(map[string]string{"name": location, "count": "1"}).
		SetResult(&body).
		Get("/v1/search")
	if err != nil {
		logx.Error().Err(err).Str("location", location).Msg("geocoding request failed")
		return nil, errx.WrapTool(err, "Geocoding error: %v", err)
	}
	if !resp.IsSuccess() {
		return nil, errx.Tool("Geocoding error: %d", resp.StatusCode())
	}
	if len(body.Results) == 0 {
		return nil, errx.Tool("Location not found: %s", location)
	}
	r := body.Results[0]
	return &geoPoint{Lat: r.Latitude, Lng: r.Longitude, Name: r.Name}, nil
}

func (w *WeatherFetch) fetchForecast(ctx context.Context, geo *geoPoint, start, end time.Time) ([]DayForecast, error) {
	var body struct {
		Daily *dailySeries `json:"daily"`
	}
	resp, err := w.request(ctx, w.forecast).
		SetQueryParams(dailyParams(geo, forecastDailyFields, start, end)).
		SetResult(&body).
		Get("/v1/forecast")
	if err != nil {
		logx.Error().Err(err).Str("location", geo.Name).Msg("forecast request failed")
		return nil, errx.WrapTool(err, "Open-Meteo forecast error: %v", err)
	}
	if !resp.IsSuccess() {
		return nil, errx.Tool("Open-Meteo forecast error: %d", resp.StatusCode())
	}
	if body.Daily == nil {
		return nil, errx.Tool("Open-Meteo forecast error: missing daily data")
	}

	d := body.Daily
	out := make([]DayForecast, 0, len(d.Time))
	for i, ts := range d.Time {
		cond := ConditionForCode(intAt(d.WeatherCode, i))
		date := ts
		if t, err := time.Parse(model.DateLayout, ts); err == nil {
			date = t.Format(model.DisplayDateLayout)
		}
		out = append(out, DayForecast{
			Day:        i + 1,
			Date:       date,
			Condition:  cond.Condition,
			TempHigh:   jsRound(floatAt(d.Temperature2mMax, i)),
			TempLow:    jsRound(floatAt(d.Temperature2mMin, i)),
			RainChance: floatAt(d.PrecipitationProbabilityMax, i),
			Icon:       cond.Icon,
		})
	}
	return out, nil
}

// fetchHistorical pulls the same calendar dates from each of the previous five years
// concurrently and averages whatever came back.
func (w *WeatherFetch) fetchHistorical(ctx context.Context, geo *geoPoint, currentYear int, start time.Time, days int) ([]DayForecast, error) {
	end := start.AddDate(0, 0, days-1)
	years := make([]*dailySeries, historicalYears)

	var g errgroup.Group
	for y := 1; y <= historicalYears; y++ {
		idx := y - 1
		year := currentYear - y
		hStart := withYear(start, year)
		hEnd := withYear(end, year)
		g.Go(func() error {
			bctx, cancel := context.WithTimeout(ctx, w.historicalTimeout)
			defer cancel()

			var body struct {
				Daily *dailySeries `json:"daily"`
			}
			resp, err := w.request(bctx, w.archive).
				SetQueryParams(dailyParams(geo, archiveDailyFields, hStart, hEnd)).
				SetResult(&body).
				Get("/v1/archive")
			if err != nil {
				logx.Warn().Err(err).Int("year", year).Str("location", geo.Name).Msg("historical weather request failed")
				return nil
			}
			if !resp.IsSuccess() || body.Daily == nil {
				logx.Warn().Int("status", resp.StatusCode()).Int("year", year).Str("location", geo.Name).Msg("historical weather unavailable")
				return nil
			}
			years[idx] = body.Daily
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var got []*dailySeries
	for _, s := range years {
		if s != nil {
			got = append(got, s)
		}
	}
	if len(got) == 0 {
		return nil, errx.Tool("Could not retrieve historical weather data")
	}

	out := make([]DayForecast, days)
	for i := range out {
		out[i] = aggregateDay(got, i)
		out[i].Day = i + 1
		out[i].Date = start.AddDate(0, 0, i).Format(model.DisplayDateLayout)
	}
	return out, nil
}

// aggregateDay averages day i across years. The representative condition is the most frequent
// code, ties going to the code seen first in year order.
func aggregateDay(years []*dailySeries, i int) DayForecast {
	var sumMax, sumMin float64
	var codes []int
	for _, s := range years {
		hi, lo := ptrAt(s.Temperature2mMax, i), ptrAt(s.Temperature2mMin, i)
		code := ptrAt(s.WeatherCode, i)
		if hi == nil || lo == nil || code == nil {
			continue
		}
		sumMax += *hi
		sumMin += *lo
		codes = append(codes, *code)
	}

	cond := ConditionForCode(DominantCode(codes))
	var day DayForecast
	day.Condition, day.Icon = cond.Condition, cond.Icon
	if n := float64(len(codes)); n > 0 {
		day.TempHigh = jsRound(sumMax / n)
		day.TempLow = jsRound(sumMin / n)
		day.RainChance = RainChance(codes)
	}
	return day
}

// DominantCode returns the most frequent code, ties resolved to the first encountered.
// An empty input yields 0 (clear sky).
func DominantCode(codes []int) int {
	counts := make(map[int]int, len(codes))
	best, bestCount := 0, 0
	for _, c := range codes {
		counts[c]++
	}
	for _, c := range codes {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best
}

// RainChance is the percentage of codes that denote drizzle or worse.
func RainChance(codes []int) float64 {
	if len(codes) == 0 {
		return 0
	}
	rainy := 0
	for _, c := range codes {
		if c >= rainCodeThreshold {
			rainy++
		}
	}
	return jsRound(float64(rainy) / float64(len(codes)) * 100)
}

func dailyParams(geo *geoPoint, fields string, start, end time.Time) map[string]string {
	return map[string]string{
		"latitude":   strconv.FormatFloat(geo.Lat, 'f', -1, 64),
		"longitude":  strconv.FormatFloat(geo.Lng, 'f', -1, 64),
		"daily":      fields,
		"start_date": start.Format(model.DateLayout),
		"end_date":   end.Format(model.DateLayout),
		"timezone":   "auto",
	}
}

// withYear moves t to year, letting Feb 29 roll over to Mar 1.
func withYear(t time.Time, year int) time.Time {
	return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// jsRound rounds half up, matching how clients round temperatures.
func jsRound(v float64) float64 {
	return math.Floor(v + 0.5)
}

func ptrAt[T any](s []*T, i int) *T {
	if i < 0 || i >= len(s) {
		return nil
	}
	return s[i]
}

func floatAt(s []*float64, i int) float64 {
	if p := ptrAt(s, i); p != nil {
		return *p
	}
	return 0
}

func intAt(s []*int, i int) int {
	if p := ptrAt(s, i); p != nil {
		return *p
	}
	return 0
}

func (w *WeatherFetch) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolWeatherFetch,
		Desc: "Get the weather forecast for a destination for specific dates. Returns daily forecasts with temperature, precipitation chance, and conditions. Use this to plan weather-appropriate activities.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"location": {
				Type:     schema.String,
				Desc:     "The city or location to get weather for.",
				Required: true,
			},
			"days": {
				Type:     schema.Integer,
				Desc:     "Number of days to forecast (1-5).",
				Required: true,
			},
			"start_date": {
				Type: schema.String,
				Desc: "The start date for the forecast in YYYY-MM-DD format.",
			},
		}),
	}
}

// Tool adapts Fetch to an eino invokable tool.
func (w *WeatherFetch) Tool() tool.InvokableTool {
	return utils.NewTool(w.Info(), func(ctx context.Context, in *WeatherInput) (*WeatherOutput, error) {
		if strings.TrimSpace(in.Location) == "" {
			return nil, errx.Tool("location is required")
		}
		return w.Fetch(ctx, in.Location, in.Days, in.StartDate)
	})
}
