package tools

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/samber/lo"

	"github.com/wayfarer-planner/server/internal/agent/model"
)

// ArgDefaults fills weather arguments the model left out.
type ArgDefaults struct {
	StartDate string
	Days      int
}

// NormalizeArguments coerces model-supplied arguments into the shapes the executors expect.
// It never fails: undecodable input yields an empty argument object.
func NormalizeArguments(name, arguments string, defaults ArgDefaults) (string, map[string]any) {
	m := map[string]any{}
	if strings.TrimSpace(arguments) != "" {
		if err := sonic.UnmarshalString(arguments, &m); err != nil || m == nil {
			m = map[string]any{}
		}
	}

	switch name {
	case ToolWebSearch:
		coerceString(m, "query", true)
	case ToolPlacesSearch:
		coerceString(m, "query", true)
		coerceString(m, "type", false)
		if t, ok := m["type"].(string); ok && !lo.Contains(PlaceTypes, strings.ToLower(t)) {
			delete(m, "type")
		} else if ok {
			m["type"] = strings.ToLower(t)
		}
	case ToolWeatherFetch:
		coerceString(m, "location", true)
		coerceString(m, "start_date", false)
		if s, _ := m["start_date"].(string); s == "" && defaults.StartDate != "" {
			m["start_date"] = defaults.StartDate
		}
		m["days"] = coerceDays(m["days"], defaults.Days)
	}

	b, err := sonic.MarshalString(m)
	if err != nil {
		return arguments, m
	}
	return b, m
}

// coerceString trims string values and stringifies other scalars. Non-required keys that
// cannot be represented are dropped.
func coerceString(m map[string]any, key string, required bool) {
	v, ok := m[key]
	if !ok || v == nil {
		delete(m, key)
		if required {
			m[key] = ""
		}
		return
	}
	switch vv := v.(type) {
	case string:
		m[key] = strings.TrimSpace(vv)
	case float64, bool, int:
		m[key] = strings.TrimSpace(fmt.Sprint(vv))
	default:
		if required {
			m[key] = ""
		} else {
			delete(m, key)
		}
	}
	if s, _ := m[key].(string); s == "" && !required {
		delete(m, key)
	}
}

func coerceDays(v any, fallback int) int {
	n := fallback
	switch vv := v.(type) {
	case float64:
		n = int(vv)
	case int:
		n = vv
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(vv)); err == nil {
			n = parsed
		}
	}
	return clampInt(n, model.MinTripDays, model.MaxTripDays)
}

// clampInt returns v limited to [min, max].
func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
