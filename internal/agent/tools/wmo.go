package tools

// WeatherCondition is the display form of a WMO weather code.
type WeatherCondition struct {
	Condition string
	Icon      string
}

var unknownCondition = WeatherCondition{Condition: "Unknown", Icon: "❓"}

// wmoConditions covers the WMO codes Open-Meteo reports.
var wmoConditions = map[int]WeatherCondition{
	0:  {"Clear sky", "☀️"},
	1:  {"Mainly clear", "☀️"},
	2:  {"Partly cloudy", "⛅"},
	3:  {"Overcast", "☁️"},
	45: {"Foggy", "🌫️"},
	48: {"Rime fog", "🌫️"},
	51: {"Light drizzle", "🌦️"},
	53: {"Moderate drizzle", "🌦️"},
	55: {"Dense drizzle", "🌧️"},
	56: {"Freezing drizzle", "🌧️"},
	57: {"Heavy freezing drizzle", "🌧️"},
	61: {"Slight rain", "🌦️"},
	63: {"Moderate rain", "🌧️"},
	65: {"Heavy rain", "🌧️"},
	66: {"Freezing rain", "🌧️"},
	67: {"Heavy freezing rain", "🌧️"},
	71: {"Slight snow", "🌨️"},
	73: {"Moderate snow", "🌨️"},
	75: {"Heavy snow", "❄️"},
	77: {"Snow grains", "❄️"},
	80: {"Slight showers", "🌦️"},
	81: {"Moderate showers", "🌧️"},
	82: {"Violent showers", "🌧️"},
	85: {"Slight snow showers", "🌨️"},
	86: {"Heavy snow showers", "❄️"},
	95: {"Thunderstorm", "⛈️"},
	96: {"Thunderstorm with slight hail", "⛈️"},
	99: {"Thunderstorm with heavy hail", "⛈️"},
}

// rainCodeThreshold is the first WMO code that means precipitation (drizzle or worse).
const rainCodeThreshold = 51

// ConditionForCode maps a WMO code to its condition, falling back to Unknown.
func ConditionForCode(code int) WeatherCondition {
	if c, ok := wmoConditions[code]; ok {
		return c
	}
	return unknownCondition
}
