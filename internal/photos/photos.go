// Package photos looks up a representative landscape photo for a destination.
package photos

import (
	"context"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"

	"github.com/wayfarer-planner/server/internal/agent/model"
	errx "github.com/wayfarer-planner/server/internal/core/error"
	logx "github.com/wayfarer-planner/server/pkg/logger"
)

type Config struct {
	UnsplashAccessKey string        `envconfig:"UNSPLASH_ACCESS_KEY"`
	BaseURL           string        `envconfig:"UNSPLASH_BASE_URL" default:"https://api.unsplash.com"`
	CacheTTL          time.Duration `envconfig:"PHOTO_CACHE_TTL" default:"24h"`
	Timeout           time.Duration `envconfig:"PHOTO_TIMEOUT" default:"10s"`
}

type searchResponse struct {
	Results []struct {
		URLs struct {
			Regular string `json:"regular"`
		} `json:"urls"`
	} `json:"results"`
}

// Finder queries Unsplash and caches answers, including "no photo", per city.
type Finder struct {
	cfg    Config
	client *resty.Client
	cache  *cache.Cache
}

func NewFinder(cfg Config) *Finder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.unsplash.com"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept-Version", "v1")
	client.JSONMarshal = sonic.Marshal
	client.JSONUnmarshal = sonic.Unmarshal

	return &Finder{
		cfg:    cfg,
		client: client,
		cache:  cache.New(cfg.CacheTTL, cfg.CacheTTL/2),
	}
}

func cacheKey(city string) string {
	return strings.ToLower(strings.Join(strings.Fields(city), " "))
}

// Find returns the photo URL for city, or "" when Unsplash has none.
func (f *Finder) Find(ctx context.Context, city string) (string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", errx.Validation("city parameter required")
	}
	if !model.CredentialConfigured(f.cfg.UnsplashAccessKey) {
		return "", errx.Config("UNSPLASH_ACCESS_KEY not configured")
	}

	key := cacheKey(city)
	if v, ok := f.cache.Get(key); ok {
		return v.(string), nil
	}

	var body searchResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Client-ID "+f.cfg.UnsplashAccessKey).
		SetQueryParams(map[string]string{
			"query":       city + " city landmark",
			"per_page":    "1",
			"orientation": "landscape",
		}).
		SetResult(&body).
		ForceContentType("application/json").
		Get("/search/photos")
	if err != nil {
		logx.Error().Err(err).Str("city", city).Msg("unsplash request failed")
		return "", errx.WrapTool(err, "Failed to fetch photo")
	}
	if !resp.IsSuccess() {
		logx.Warn().Int("status", resp.StatusCode()).Str("city", city).Msg("unsplash returned an error")
		return "", errx.Tool("Unsplash API error")
	}

	url := ""
	if len(body.Results) > 0 {
		url = body.Results[0].URLs.Regular
	}
	f.cache.SetDefault(key, url)
	return url, nil
}
