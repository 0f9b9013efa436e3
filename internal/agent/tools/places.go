package tools

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/go-resty/resty/v2"

	"github.com/wayfarer-planner/server/internal/agent/model"
	errx "github.com/wayfarer-planner/server/internal/core/error"
	logx "github.com/wayfarer-planner/server/pkg/logger"
)

const (
	placesMaxResults     = 10
	placesFieldMask      = "places.displayName,places.rating,places.formattedAddress,places.location,places.regularOpeningHours,places.priceLevel,places.types"
	defaultPriceLevel    = 2
	hoursNotAvailable    = "Hours not available"
	defaultVisitTime     = "1-2 hours"
	defaultPlaceCategory = "attraction"
)

// PlaceTypes is the closed set accepted by places_search.type.
var PlaceTypes = []string{"attraction", "restaurant", "hotel", "shopping", "nightlife", "temple", "museum", "park"}

var priceLevels = map[string]int{
	"PRICE_LEVEL_FREE":           0,
	"PRICE_LEVEL_INEXPENSIVE":    1,
	"PRICE_LEVEL_MODERATE":       2,
	"PRICE_LEVEL_EXPENSIVE":      3,
	"PRICE_LEVEL_VERY_EXPENSIVE": 4,
}

// placeTypeByProviderType maps provider place types to our categories.
var placeTypeByProviderType = map[string]string{
	"restaurant":         "restaurant",
	"food":               "restaurant",
	"cafe":               "restaurant",
	"bar":                "nightlife",
	"night_club":         "nightlife",
	"museum":             "museum",
	"art_gallery":        "museum",
	"park":               "park",
	"hindu_temple":       "temple",
	"church":             "temple",
	"mosque":             "temple",
	"synagogue":          "temple",
	"place_of_worship":   "temple",
	"shopping_mall":      "shopping",
	"store":              "shopping",
	"lodging":            "hotel",
	"tourist_attraction": "attraction",
	"amusement_park":     "attraction",
	"zoo":                "attraction",
}

type PlacesSearchInput struct {
	Query string `json:"query"`
	Type  string `json:"type,omitempty"`
}

type Place struct {
	Name               string            `json:"name"`
	Rating             float64           `json:"rating"`
	Address            string            `json:"address"`
	Coordinates        model.Coordinates `json:"coordinates"`
	PriceLevel         int               `json:"priceLevel"`
	OpeningHours       string            `json:"openingHours"`
	Type               string            `json:"type"`
	EstimatedVisitTime string            `json:"estimatedVisitTime"`
	EntranceFee        float64           `json:"entranceFee"`
}

type PlacesSearchOutput struct {
	Places []Place `json:"places"`
	Query  string  `json:"query"`
	Type   string  `json:"type,omitempty"`
}

type googlePlace struct {
	DisplayName *struct {
		Text string `json:"text"`
	} `json:"displayName"`
	Rating           float64 `json:"rating"`
	FormattedAddress string  `json:"formattedAddress"`
	Location         *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	RegularOpeningHours *struct {
		WeekdayDescriptions []string `json:"weekdayDescriptions"`
	} `json:"regularOpeningHours"`
	PriceLevel string   `json:"priceLevel"`
	Types      []string `json:"types"`
}

// PlacesSearch queries the Google Places text search API.
type PlacesSearch struct {
	apiKey string
	client *resty.Client
}

func NewPlacesSearch(cfg model.ToolsConfig) *PlacesSearch {
	return &PlacesSearch{
		apiKey: cfg.GooglePlacesAPIKey,
		client: newHTTPClient(cfg.PlacesBaseURL, cfg.RequestTimeout, cfg.RetryCount),
	}
}

// Search returns up to ten places. A requested placeType overrides the inferred one.
func (p *PlacesSearch) Search(ctx context.Context, query, placeType string) (*PlacesSearchOutput, error) {
	if !model.CredentialConfigured(p.apiKey) {
		return nil, errx.Config("GOOGLE_PLACES_API_KEY not configured")
	}

	var body struct {
		Places []googlePlace `json:"places"`
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("X-Goog-Api-Key", p.apiKey).
		SetHeader("X-Goog-FieldMask", placesFieldMask).
		SetBody(map[string]any{
			"textQuery":      query,
			"maxResultCount": placesMaxResults,
		}).
		SetResult(&body).
		ForceContentType("application/json").
		Post("/v1/places:searchText")
	if err != nil {
		logx.Error().Err(err).Str("query", query).Msg("places request failed")
		return nil, errx.WrapTool(err, "Google Places request failed: %v", err)
	}
	if !resp.IsSuccess() {
		logx.Warn().Int("status", resp.StatusCode()).Str("query", query).Msg("places returned non-success status")
		return nil, errx.Tool("Google Places API error: %s", strings.TrimSpace(resp.Status()))
	}

	out := &PlacesSearchOutput{Places: make([]Place, 0, len(body.Places)), Query: query, Type: placeType}
	for _, gp := range body.Places {
		out.Places = append(out.Places, convertPlace(gp, placeType))
	}
	return out, nil
}

func convertPlace(gp googlePlace, placeType string) Place {
	pl := Place{
		Rating:             gp.Rating,
		Address:            gp.FormattedAddress,
		PriceLevel:         PriceLevel(gp.PriceLevel),
		OpeningHours:       hoursNotAvailable,
		Type:               placeType,
		EstimatedVisitTime: defaultVisitTime,
	}
	if gp.DisplayName != nil {
		pl.Name = gp.DisplayName.Text
	}
	if gp.Location != nil {
		pl.Coordinates = model.Coordinates{Lat: gp.Location.Latitude, Lng: gp.Location.Longitude}
	}
	if gp.RegularOpeningHours != nil && gp.RegularOpeningHours.WeekdayDescriptions != nil {
		pl.OpeningHours = strings.Join(gp.RegularOpeningHours.WeekdayDescriptions, "; ")
	}
	if pl.Type == "" {
		pl.Type = InferPlaceType(gp.Types)
	}
	return pl
}

// PriceLevel maps a provider price enum to 0-4, defaulting to 2.
func PriceLevel(level string) int {
	if n, ok := priceLevels[level]; ok {
		return n
	}
	return defaultPriceLevel
}

// InferPlaceType returns the category of the first provider type we recognise.
func InferPlaceType(types []string) string {
	for _, t := range types {
		if c, ok := placeTypeByProviderType[t]; ok {
			return c
		}
	}
	return defaultPlaceCategory
}

func (p *PlacesSearch) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolPlacesSearch,
		Desc: "Search for specific places to get detailed information including ratings, addresses, coordinates, opening hours, and price levels. Use this after web_search to get structured data about specific attractions or restaurants.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "The place name and location to search for.",
				Required: true,
			},
			"type": {
				Type: schema.String,
				Desc: "The type of place to search for.",
				Enum: PlaceTypes,
			},
		}),
	}
}

// Tool adapts Search to an eino invokable tool.
func (p *PlacesSearch) Tool() tool.InvokableTool {
	return utils.NewTool(p.Info(), func(ctx context.Context, in *PlacesSearchInput) (*PlacesSearchOutput, error) {
		if strings.TrimSpace(in.Query) == "" {
			return nil, errx.Tool("query is required")
		}
		return p.Search(ctx, in.Query, in.Type)
	})
}
