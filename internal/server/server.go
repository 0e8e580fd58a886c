// Package server exposes the analytics pipeline over the Model Context
// Protocol: year statistics, race highlights, per-sport summaries and
// activity search, all computed from the local activity cache.
package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yearlog/yearlog/internal/logging"
	"github.com/yearlog/yearlog/internal/pipeline"
)

// ptr returns a pointer to the given value - useful for optional fields in structs
func ptr[T any](v T) *T {
	return &v
}

// Querier is the read surface the server needs from the store.
type Querier interface {
	ListActivities(ctx context.Context) ([]pipeline.Activity, error)
	ListActivitiesForYear(ctx context.Context, year int) ([]pipeline.Activity, error)
	ActivityYears(ctx context.Context) ([]int, error)
	CountActivities(ctx context.Context) (int64, error)
	LoadSettings(ctx context.Context) (pipeline.Settings, error)
	SaveSettings(ctx context.Context, settings pipeline.Settings) error
}

// Server wraps the MCP server and the activity store.
type Server struct {
	mcp     *mcp.Server
	queries Querier
}

// MCPServer returns the underlying MCP server (for use with HTTP/SSE transport)
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// New creates the MCP server and registers all tools, resources and prompts.
func New(queries Querier) *Server {
	logging.Info("MCP server initializing", "name", "yearlog", "version", "1.0.0")

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "yearlog",
		Version: "1.0.0",
	}, nil)

	s := &Server{
		mcp:     mcpServer,
		queries: queries,
	}

	logging.Debug("Registering MCP tools")
	s.registerTools()

	logging.Debug("Registering MCP resources")
	s.registerResources()

	logging.Debug("Registering MCP prompts")
	s.registerPrompts()

	logging.Info("MCP server initialized", "tools_registered", 6, "resources_registered", 3, "prompts_registered", 3)
	return s
}

// Run starts the MCP server over stdio transport
func (s *Server) Run(ctx context.Context) error {
	logging.Info("MCP server starting")
	defer logging.Info("MCP server stopped")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	logging.Debug("Registering tool", "name", "get_year_stats")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "get_year_stats",
		Description: `Get the full statistical breakdown of one year of training: totals, monthly and per-type rollups, weekday distribution, start-time heatmap and records.

Use when:
- User asks "How was my 2024?" or "Show me this year's training"
- User wants monthly volume, most active day, or preferred training time
- User needs the longest activity or biggest climb of a year

Parameters:
- year (integer): The year to summarize. Omit for the most recent year with activities.

Returns: Activity count, total distance/time/elevation/kudos, 12-month breakdown, per-type breakdown, weekday distribution, day-hour heatmap, most active day, preferred training time block, longest activity and highest elevation activity.

Example: {"year": 2024} or {} for the latest year`,
		Annotations: &mcp.ToolAnnotations{
			Title:           "Get Year Stats",
			ReadOnlyHint:    true,
			IdempotentHint:  true,
			OpenWorldHint:   ptr(false),
			DestructiveHint: ptr(false),
		},
	}, s.getYearStats)

	logging.Debug("Registering tool", "name", "get_race_highlights")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "get_race_highlights",
		Description: `Detect the notable events in the activity history: races, activities matching the configured distance filters, and same-day swim-ride-run triathlons.

Use when:
- User asks "What races did I do?" or "Show my highlights"
- User wants to find triathlons assembled from individual legs
- User needs the standout efforts of a year

Parameters:
- year (integer): Restrict detection to one year. Omit for the full history.

Returns: Chronological list of highlights. Triathlon entries carry their constituent legs and a full/mountain badge; race entries carry a "race" badge.

Example: {"year": 2024} or {} for all years`,
		Annotations: &mcp.ToolAnnotations{
			Title:           "Get Race Highlights",
			ReadOnlyHint:    true,
			IdempotentHint:  true,
			OpenWorldHint:   ptr(false),
			DestructiveHint: ptr(false),
		},
	}, s.getRaceHighlights)

	logging.Debug("Registering tool", "name", "get_sport_highlights")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "get_sport_highlights",
		Description: `Summarize each sport family (running, cycling, swimming): cumulative totals, the longest activity, the biggest climb and best efforts at the configured standard distances.

Use when:
- User asks "How much did I run this year?" or "What's my best marathon?"
- User wants per-sport totals with distance records
- User needs pace/speed for record efforts

Parameters:
- year (integer): Restrict the summary to one year. Omit for the full history.

Returns: One entry per sport family with total distance, time and elevation, the longest activity, the biggest climb and per-distance records (Half Marathon, Marathon, etc.) with pace or speed. Families with no activities are omitted.

Example: {"year": 2024} or {} for all years`,
		Annotations: &mcp.ToolAnnotations{
			Title:           "Get Sport Highlights",
			ReadOnlyHint:    true,
			IdempotentHint:  true,
			OpenWorldHint:   ptr(false),
			DestructiveHint: ptr(false),
		},
	}, s.getSportHighlights)

	logging.Debug("Registering tool", "name", "find_activities")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "find_activities",
		Description: `Search and retrieve cached activities with flexible filtering and sorting.

Use when:
- User asks "Show me my latest activity" or "What did I do in March?"
- User wants to find specific activities by type, date, or distance
- User needs a specific activity by ID

Parameters:
- query (string): Special queries: "latest", "oldest", "longest", "fastest". Overrides other filters.
- id (integer): Get a specific activity by its ID.
- type (string): Filter by activity type (Run, Ride, VirtualRide, Swim, Walk, Hike, etc.).
- year (integer): Restrict to one year.
- start_date (string): Start date in YYYY-MM-DD format.
- end_date (string): End date in YYYY-MM-DD format.
- sort_by (string): Sort by "date", "distance", "duration", or "elevation". Default: "date".
- limit (integer): Number of activities to return. Default: 20, Max: 100.

Returns: List of activities with id, name, type, date, distance, duration, pace or speed, elevation, heartrate and kudos.

Example: {"query": "latest"} or {"type": "Run", "year": 2024, "sort_by": "distance", "limit": 10}`,
		Annotations: &mcp.ToolAnnotations{
			Title:           "Find Activities",
			ReadOnlyHint:    true,
			IdempotentHint:  true,
			OpenWorldHint:   ptr(false),
			DestructiveHint: ptr(false),
		},
	}, s.findActivities)

	logging.Debug("Registering tool", "name", "get_settings")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "get_settings",
		Description: `Read the current filter configuration: excluded activity types, virtual-activity exclusions, title ignore patterns, per-type distance filters and the include lists.

Use when:
- User asks "What filters are configured?" or "Why is an activity missing from my stats?"
- User wants to inspect the settings before changing them

Parameters: none.

Returns: The full settings document.

Example: {}`,
		Annotations: &mcp.ToolAnnotations{
			Title:           "Get Settings",
			ReadOnlyHint:    true,
			IdempotentHint:  true,
			OpenWorldHint:   ptr(false),
			DestructiveHint: ptr(false),
		},
	}, s.getSettings)

	logging.Debug("Registering tool", "name", "update_settings")
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "update_settings",
		Description: `Replace the filter configuration that shapes statistics and highlights.

Use when:
- User asks to hide commutes from stats, exclude virtual rides, or add a distance filter
- User wants to change which activity types count toward highlights

Parameters:
- settings (object, required): The full settings document. This replaces the stored configuration, so read it with get_settings first and modify the relevant part.

Returns: The settings as stored.

Example: {"settings": {"title_ignore_patterns": [{"pattern": "commute", "exclude_from_stats": true, "exclude_from_highlights": false}]}}`,
		Annotations: &mcp.ToolAnnotations{
			Title:           "Update Settings",
			IdempotentHint:  true,
			OpenWorldHint:   ptr(false),
			DestructiveHint: ptr(false),
		},
	}, s.updateSettings)
}

// activitiesForScope loads the activity list for an optional year restriction.
func (s *Server) activitiesForScope(ctx context.Context, year int) ([]pipeline.Activity, error) {
	if year > 0 {
		return s.queries.ListActivitiesForYear(ctx, year)
	}
	return s.queries.ListActivities(ctx)
}

// restrictToTypes drops activities whose type is not in the include list. An
// empty list means no restriction.
func restrictToTypes(activities []pipeline.Activity, include []pipeline.ActivityType) []pipeline.Activity {
	if len(include) == 0 {
		return activities
	}
	allowed := make(map[pipeline.ActivityType]struct{}, len(include))
	for _, t := range include {
		allowed[t] = struct{}{}
	}
	kept := make([]pipeline.Activity, 0, len(activities))
	for _, a := range activities {
		if _, ok := allowed[a.Type]; ok {
			kept = append(kept, a)
		}
	}
	return kept
}
