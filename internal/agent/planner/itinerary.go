package planner

import (
	"strings"

	"github.com/bytedance/sonic"

	"github.com/wayfarer-planner/server/internal/agent/model"
	"github.com/wayfarer-planner/server/internal/agent/prompts"
	errx "github.com/wayfarer-planner/server/internal/core/error"
)

// ExtractPayload finds the delimited itinerary in model text. found is false when the text
// carries no open tag; an open tag without its close tag is a parse error.
func ExtractPayload(text string) (payload string, found bool, err error) {
	start := strings.Index(text, prompts.ItineraryOpenTag)
	if start < 0 {
		return "", false, nil
	}
	rest := text[start+len(prompts.ItineraryOpenTag):]
	end := strings.Index(rest, prompts.ItineraryCloseTag)
	if end < 0 {
		return "", true, errx.Parse("missing %s", prompts.ItineraryCloseTag)
	}
	return stripCodeFence(rest[:end]), true, nil
}

// stripCodeFence removes a markdown fence some models wrap around the JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ParseItinerary decodes and validates a payload for req. The accepted itinerary has its
// day numbers, dates, currency and total budget set from the request.
func ParseItinerary(payload string, req model.TripRequest) (*model.Itinerary, error) {
	if !strings.HasPrefix(payload, "{") {
		return nil, errx.Parse("payload is not a JSON object")
	}
	var it model.Itinerary
	if err := sonic.UnmarshalString(payload, &it); err != nil {
		e := errx.Parse("invalid JSON")
		e.Err = err
		return nil, e
	}
	if problems := it.Validate(req.Days); len(problems) > 0 {
		return nil, errx.Parse("%s", strings.Join(problems, "; "))
	}
	it.Normalize(req)
	return &it, nil
}

// ThinkingLines returns up to three non-blank lines of narration, each cut to 200 characters.
func ThinkingLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if r := []rune(line); len(r) > maxThinkingRunes {
			line = string(r[:maxThinkingRunes])
		}
		out = append(out, line)
		if len(out) == maxThinkingLines {
			break
		}
	}
	return out
}
