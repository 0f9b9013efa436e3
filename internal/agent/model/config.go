package model

import (
	"strings"
	"time"
)

// ================ Config ================

// Provider names accepted by MODEL_PROVIDER.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type ModelConfig struct {
	Provider    string  `envconfig:"MODEL_PROVIDER" default:"gemini"`
	Model       string  `envconfig:"MODEL_NAME"`
	APIKey      string  `envconfig:"MODEL_API_KEY"`
	BaseURL     string  `envconfig:"MODEL_BASE_URL"`
	MaxTokens   int     `envconfig:"MODEL_MAX_TOKENS" default:"8192"`
	Temperature float32 `envconfig:"MODEL_TEMPERATURE" default:"0.7"`
	// ThinkingBudget only applies to Gemini; 0 disables thinking output.
	ThinkingBudget int32 `envconfig:"MODEL_THINKING_BUDGET" default:"0"`

	// Provider specific keys, used when MODEL_API_KEY is empty.
	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY"`
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
}

// ResolvedProvider returns the normalised provider name.
func (c ModelConfig) ResolvedProvider() string {
	p := strings.ToLower(strings.TrimSpace(c.Provider))
	if p == "" {
		return ProviderGemini
	}
	return p
}

// ResolvedModel returns the configured model or the provider default.
func (c ModelConfig) ResolvedModel() string {
	if c.Model != "" {
		return c.Model
	}
	switch c.ResolvedProvider() {
	case ProviderOpenAI:
		return "gpt-4o"
	case ProviderAnthropic:
		return "claude-sonnet-4-5-20250929"
	default:
		return "gemini-2.5-flash"
	}
}

// ResolvedAPIKey returns the credential for the selected provider and the env name it is read from.
func (c ModelConfig) ResolvedAPIKey() (key, envName string) {
	if c.APIKey != "" {
		return c.APIKey, "MODEL_API_KEY"
	}
	switch c.ResolvedProvider() {
	case ProviderOpenAI:
		return c.OpenAIAPIKey, "OPENAI_API_KEY"
	case ProviderAnthropic:
		return c.AnthropicAPIKey, "ANTHROPIC_API_KEY"
	default:
		return c.GeminiAPIKey, "GEMINI_API_KEY"
	}
}

type AgentConfig struct {
	MaxIterations  int           `envconfig:"AGENT_MAX_ITERATIONS" default:"10"`
	SessionTimeout time.Duration `envconfig:"AGENT_SESSION_TIMEOUT" default:"5m"`
}

type ToolsConfig struct {
	TavilyAPIKey       string `envconfig:"TAVILY_API_KEY"`
	GooglePlacesAPIKey string `envconfig:"GOOGLE_PLACES_API_KEY"`
	OpenMeteoAPIKey    string `envconfig:"OPEN_METEO_API_KEY"`

	TavilyBaseURL    string `envconfig:"TAVILY_BASE_URL" default:"https://api.tavily.com"`
	PlacesBaseURL    string `envconfig:"GOOGLE_PLACES_BASE_URL" default:"https://places.googleapis.com"`
	GeocodingBaseURL string `envconfig:"OPEN_METEO_GEOCODING_URL" default:"https://geocoding-api.open-meteo.com"`
	ForecastBaseURL  string `envconfig:"OPEN_METEO_FORECAST_URL" default:"https://api.open-meteo.com"`
	ArchiveBaseURL   string `envconfig:"OPEN_METEO_ARCHIVE_URL" default:"https://archive-api.open-meteo.com"`

	RequestTimeout    time.Duration `envconfig:"TOOLS_REQUEST_TIMEOUT" default:"20s"`
	HistoricalTimeout time.Duration `envconfig:"TOOLS_HISTORICAL_TIMEOUT" default:"15s"`
	RetryCount        int           `envconfig:"TOOLS_RETRY_COUNT" default:"1"`
}

type TripStoreConfig struct {
	TTL time.Duration `envconfig:"TRIPS_TTL" default:"720h"`
	// TranscriptTTL bounds how long a session's event log can be replayed.
	TranscriptTTL time.Duration `envconfig:"TRIPS_TRANSCRIPT_TTL" default:"1h"`
}

// CredentialConfigured reports whether key is a usable credential rather than empty or a
// "your_..._here" template value.
func CredentialConfigured(key string) bool {
	k := strings.TrimSpace(key)
	if k == "" {
		return false
	}
	return !(strings.HasPrefix(k, "your_") && strings.HasSuffix(k, "_here"))
}
