package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/wayfarer-planner/server/internal/agent/model"
)

// Tool names exposed to the model.
const (
	ToolWebSearch    = "web_search"
	ToolPlacesSearch = "places_search"
	ToolWeatherFetch = "weather_fetch"
)

// Catalog returns the three planning tools backed by live providers.
func Catalog(cfg model.ToolsConfig, opts ...WeatherOption) []tool.InvokableTool {
	return []tool.InvokableTool{
		NewWebSearch(cfg).Tool(),
		NewPlacesSearch(cfg).Tool(),
		NewWeatherFetch(cfg, opts...).Tool(),
	}
}

// GetToolInfos collects the schemas the model is bound with.
func GetToolInfos(ctx context.Context, ts []tool.InvokableTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(ts))
	for _, t := range ts {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Describe renders the progress line shown when a tool starts.
func Describe(name string, args map[string]any) string {
	switch name {
	case ToolWebSearch:
		return fmt.Sprintf("Scouting the web for %q", stringArg(args, "query"))
	case ToolPlacesSearch:
		return fmt.Sprintf("Exploring %q...", stringArg(args, "query"))
	case ToolWeatherFetch:
		return fmt.Sprintf("Checking the skies over %s...", stringArg(args, "location"))
	default:
		return fmt.Sprintf("Using %s...", name)
	}
}

// Summarize renders the progress line shown when a tool succeeds.
func Summarize(result map[string]any) string {
	if n, ok := listLen(result, "results"); ok {
		return fmt.Sprintf("Discovered %d %s", n, plural(n, "spot", "spots"))
	}
	if n, ok := listLen(result, "places"); ok {
		return fmt.Sprintf("Pinned %d %s on the map", n, plural(n, "gem", "gems"))
	}
	if n, ok := listLen(result, "forecast"); ok {
		return fmt.Sprintf("%d-day forecast locked in", n)
	}
	return "Noted!"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func listLen(m map[string]any, key string) (int, bool) {
	v, ok := m[key].([]any)
	return len(v), ok
}

func stringArg(args map[string]any, key string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	if v, ok := args[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}
