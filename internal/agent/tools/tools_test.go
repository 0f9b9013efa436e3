package tools

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wayfarer-planner/server/internal/agent/model"
)

// testConfig points every provider at srv with retries disabled.
func testConfig(srv *httptest.Server) model.ToolsConfig {
	return model.ToolsConfig{
		TavilyAPIKey:       "tvly-test",
		GooglePlacesAPIKey: "places-test",
		TavilyBaseURL:      srv.URL,
		PlacesBaseURL:      srv.URL,
		GeocodingBaseURL:   srv.URL,
		ForecastBaseURL:    srv.URL,
		ArchiveBaseURL:     srv.URL,
		RequestTimeout:     5 * time.Second,
		HistoricalTimeout:  5 * time.Second,
	}
}

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}
