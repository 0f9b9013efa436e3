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

const webSearchMaxResults = 5

type WebSearchInput struct {
	Query string `json:"query"`
}

type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

type WebSearchOutput struct {
	Results []SearchResult `json:"results"`
	Query   string         `json:"query"`
}

// WebSearch queries Tavily for travel information.
type WebSearch struct {
	apiKey string
	client *resty.Client
}

func NewWebSearch(cfg model.ToolsConfig) *WebSearch {
	return &WebSearch{
		apiKey: cfg.TavilyAPIKey,
		client: newHTTPClient(cfg.TavilyBaseURL, cfg.RequestTimeout, cfg.RetryCount),
	}
}

// Search returns at most five results for query.
func (w *WebSearch) Search(ctx context.Context, query string) (*WebSearchOutput, error) {
	if !model.CredentialConfigured(w.apiKey) {
		return nil, errx.Config("TAVILY_API_KEY not configured")
	}

	var body struct {
		Results []struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		} `json:"results"`
	}
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"api_key":      w.apiKey,
			"query":        query,
			"search_depth": "basic",
			"max_results":  webSearchMaxResults,
		}).
		SetResult(&body).
		ForceContentType("application/json").
		Post("/search")
	if err != nil {
		logx.Error().Err(err).Str("query", query).Msg("tavily request failed")
		return nil, errx.WrapTool(err, "Tavily request failed: %v", err)
	}
	if !resp.IsSuccess() {
		logx.Warn().Int("status", resp.StatusCode()).Str("query", query).Msg("tavily returned non-success status")
		return nil, errx.Tool("Tavily API error: %s", strings.TrimSpace(resp.Status()))
	}

	out := &WebSearchOutput{Results: make([]SearchResult, 0, len(body.Results)), Query: query}
	for _, r := range body.Results {
		if len(out.Results) == webSearchMaxResults {
			break
		}
		out.Results = append(out.Results, SearchResult{Title: r.Title, Snippet: r.Content})
	}
	return out, nil
}

func (w *WebSearch) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolWebSearch,
		Desc: "Search the web for current information about travel destinations, attractions, restaurants, activities, costs, and travel tips. Use this to find top-rated places, hidden gems, current prices, and local recommendations.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "The search query. Be specific - include the destination name and what you're looking for.",
				Required: true,
			},
		}),
	}
}

// Tool adapts Search to an eino invokable tool.
func (w *WebSearch) Tool() tool.InvokableTool {
	return utils.NewTool(w.Info(), func(ctx context.Context, in *WebSearchInput) (*WebSearchOutput, error) {
		if strings.TrimSpace(in.Query) == "" {
			return nil, errx.Tool("query is required")
		}
		return w.Search(ctx, in.Query)
	})
}
