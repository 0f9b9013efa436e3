package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-planner/server/internal/agent/model"
	errx "github.com/wayfarer-planner/server/internal/core/error"
)

const placesResponse = `{
  "places": [
    {
      "displayName": {"text": "Sri Mariamman Temple"},
      "rating": 4.6,
      "formattedAddress": "244 South Bridge Rd, Singapore",
      "location": {"latitude": 1.2826, "longitude": 103.8452},
      "regularOpeningHours": {"weekdayDescriptions": ["Monday: 6 AM-12 PM", "Tuesday: 6 AM-12 PM"]},
      "priceLevel": "PRICE_LEVEL_EXPENSIVE",
      "types": ["hindu_temple", "tourist_attraction"]
    },
    {
      "displayName": {"text": "Mystery Spot"},
      "priceLevel": "PRICE_LEVEL_UNSPECIFIED",
      "types": ["point_of_interest"]
    }
  ]
}`

func TestPlacesSearchMapsPlaces(t *testing.T) {
	var body map[string]any
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/places:searchText", r.URL.Path)
		assert.Equal(t, "places-test", r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.regularOpeningHours")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(placesResponse))
	})

	out, err := NewPlacesSearch(testConfig(srv)).Search(context.Background(), "temples in singapore", "")
	require.NoError(t, err)
	assert.Equal(t, "temples in singapore", body["textQuery"])
	assert.Equal(t, float64(10), body["maxResultCount"])

	require.Len(t, out.Places, 2)
	first := out.Places[0]
	assert.Equal(t, "Sri Mariamman Temple", first.Name)
	assert.Equal(t, "temple", first.Type)
	assert.Equal(t, 3, first.PriceLevel)
	assert.Equal(t, model.Coordinates{Lat: 1.2826, Lng: 103.8452}, first.Coordinates)
	assert.Equal(t, "Monday: 6 AM-12 PM; Tuesday: 6 AM-12 PM", first.OpeningHours)
	assert.Equal(t, "1-2 hours", first.EstimatedVisitTime)
	assert.Zero(t, first.EntranceFee)

	second := out.Places[1]
	assert.Equal(t, 2, second.PriceLevel)
	assert.Equal(t, "attraction", second.Type)
	assert.Equal(t, "Hours not available", second.OpeningHours)
	assert.Empty(t, out.Type)
}

func TestPlacesSearchRequestedTypeWins(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(placesResponse))
	})
	out, err := NewPlacesSearch(testConfig(srv)).Search(context.Background(), "q", "museum")
	require.NoError(t, err)
	assert.Equal(t, "museum", out.Type)
	assert.Equal(t, "museum", out.Places[0].Type)
}

func TestPlacesSearchErrors(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err := NewPlacesSearch(testConfig(srv)).Search(context.Background(), "q", "")
	assert.Equal(t, "Google Places API error: 403 Forbidden", errx.Message(err))

	cfg := testConfig(srv)
	cfg.GooglePlacesAPIKey = "your_google_places_api_key_here"
	_, err = NewPlacesSearch(cfg).Search(context.Background(), "q", "")
	assert.Equal(t, "GOOGLE_PLACES_API_KEY not configured", errx.Message(err))
}

func TestInferPlaceType(t *testing.T) {
	cases := map[string][]string{
		"restaurant": {"cafe"},
		"nightlife":  {"point_of_interest", "night_club"},
		"museum":     {"art_gallery"},
		"temple":     {"place_of_worship", "museum"},
		"shopping":   {"store"},
		"hotel":      {"lodging"},
		"park":       {"park", "zoo"},
		"attraction": {"unknown_kind"},
	}
	for want, types := range cases {
		assert.Equal(t, want, InferPlaceType(types), "%v", types)
	}
	assert.Equal(t, "attraction", InferPlaceType(nil))
}

func TestPriceLevel(t *testing.T) {
	assert.Equal(t, 0, PriceLevel("PRICE_LEVEL_FREE"))
	assert.Equal(t, 4, PriceLevel("PRICE_LEVEL_VERY_EXPENSIVE"))
	assert.Equal(t, 2, PriceLevel(""))
	assert.Equal(t, 2, PriceLevel("PRICE_LEVEL_UNSPECIFIED"))
}
