package server

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yearlog/yearlog/internal/logging"
)

// registerPrompts registers all MCP prompts for the server
func (s *Server) registerPrompts() {
	// Year in review prompt
	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "year_in_review",
		Description: "Generate a comprehensive year-in-review of training with statistics, highlights and records",
		Arguments: []*mcp.PromptArgument{
			{
				Name:        "year",
				Description: "The year to review (e.g., '2024'). Leave empty for the most recent year with activities.",
				Required:    false,
			},
		},
	}, s.yearInReviewPrompt)

	// Race recap prompt
	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "race_recap",
		Description: "Recap the races and standout events of a year, including detected triathlons",
		Arguments: []*mcp.PromptArgument{
			{
				Name:        "year",
				Description: "The year to recap (e.g., '2024'). Leave empty for the full history.",
				Required:    false,
			},
		},
	}, s.raceRecapPrompt)

	// Training patterns prompt
	s.mcp.AddPrompt(&mcp.Prompt{
		Name:        "training_patterns",
		Description: "Analyze when training happens: weekday distribution, start-time heatmap and preferred training time",
		Arguments: []*mcp.PromptArgument{
			{
				Name:        "year",
				Description: "The year to analyze (e.g., '2024'). Leave empty for the most recent year.",
				Required:    false,
			},
		},
	}, s.trainingPatternsPrompt)

	logging.Debug("MCP prompts registered", "count", 3)
}

// yearArgument extracts the optional year argument with a display fallback.
func yearArgument(req *mcp.GetPromptRequest, fallback string) (string, string) {
	if req.Params.Arguments != nil {
		if y, ok := req.Params.Arguments["year"]; ok && y != "" {
			return y, y
		}
	}
	return "", fallback
}

// yearInReviewPrompt generates a prompt for a full year review
func (s *Server) yearInReviewPrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	year, display := yearArgument(req, "the most recent year")

	logging.Info("MCP prompt requested", "prompt", "year_in_review", "year", year)

	yearParam := "{}"
	if year != "" {
		yearParam = fmt.Sprintf(`{"year": %s}`, year)
	}

	promptText := fmt.Sprintf(`Please write a comprehensive review of my training in %s.

Use the following tools to gather data:
1. **get_year_stats** with %s for totals, monthly breakdown, weekday distribution and records
2. **get_sport_highlights** with %s for per-sport totals and distance records
3. **get_race_highlights** with %s for races and triathlons

Then provide:
- **The Numbers**: Activities, total distance, time and elevation for the year
- **Month by Month**: The biggest and quietest months and any visible seasonality
- **Habits**: Most active weekday and preferred training time
- **Records**: Longest activity, biggest climb and best efforts at standard distances
- **Highlights**: Races and triathlons, in chronological order

Be specific with numbers from the data and keep the tone celebratory but honest.`, display, yearParam, yearParam, yearParam)

	return &mcp.GetPromptResult{
		Description: "Year in review prompt",
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText},
			},
		},
	}, nil
}

// raceRecapPrompt generates a prompt for reviewing races and events
func (s *Server) raceRecapPrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	year, display := yearArgument(req, "all years")

	logging.Info("MCP prompt requested", "prompt", "race_recap", "year", year)

	yearParam := "{}"
	if year != "" {
		yearParam = fmt.Sprintf(`{"year": %s}`, year)
	}

	promptText := fmt.Sprintf(`Please recap my races and standout events for %s.

Use the following tools to gather data:
1. **get_race_highlights** with %s for the detected races and triathlons
2. **get_sport_highlights** with %s to see which efforts set distance records
3. **find_activities** to pull full details of any highlight worth a closer look

Then provide:
- **Event List**: Every race and triathlon in chronological order with distance and date
- **Triathlons**: For each one, the swim, ride and run legs and whether it was a mountain event
- **Record Efforts**: Which races doubled as best efforts at a standard distance
- **Story of the Season**: How the events built on each other over the year

Use the actual names and numbers from the data.`, display, yearParam, yearParam)

	return &mcp.GetPromptResult{
		Description: "Race recap prompt",
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText},
			},
		},
	}, nil
}

// trainingPatternsPrompt generates a prompt for schedule analysis
func (s *Server) trainingPatternsPrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	year, display := yearArgument(req, "the most recent year")

	logging.Info("MCP prompt requested", "prompt", "training_patterns", "year", year)

	yearParam := "{}"
	if year != "" {
		yearParam = fmt.Sprintf(`{"year": %s}`, year)
	}

	promptText := fmt.Sprintf(`Please analyze when I train, based on %s.

Use the following tools to gather data:
1. **get_year_stats** with %s — focus on by_day_of_week, hour_day_heatmap, most_active_day and preferred_training_time

Then provide:
- **Weekly Rhythm**: Which weekdays carry the most volume and which are rest days
- **Time of Day**: The hours I usually start, from the heatmap and the preferred training block
- **Consistency**: Whether the pattern is regular or scattered
- **Suggestions**: Where a schedule tweak could add easy volume or recovery

Refer to concrete counts and distances from the data.`, display, yearParam)

	return &mcp.GetPromptResult{
		Description: "Training patterns prompt",
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText},
			},
		},
	}, nil
}
