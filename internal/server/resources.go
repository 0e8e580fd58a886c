package server

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yearlog/yearlog/internal/logging"
)

// registerResources registers all MCP resources for the server
func (s *Server) registerResources() {
	// Static resource: Latest activity
	s.mcp.AddResource(&mcp.Resource{
		URI:         "yearlog://activities/latest",
		Name:        "latest_activity",
		Description: "The most recently recorded activity with full details",
		MIMEType:    "application/json",
	}, s.readLatestActivity)

	// Static resource: Years with data
	s.mcp.AddResource(&mcp.Resource{
		URI:         "yearlog://years",
		Name:        "available_years",
		Description: "The years that have cached activities, newest first, with the total activity count",
		MIMEType:    "application/json",
	}, s.readAvailableYears)

	// Resource template: Year stats by year
	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "yearlog://stats/{year}",
		Name:        "year_stats",
		Description: "The full statistical rollup for one year",
		MIMEType:    "application/json",
	}, s.readYearStats)

	logging.Debug("MCP resources registered", "count", 3)
}

// readLatestActivity returns the most recent activity
func (s *Server) readLatestActivity(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	logging.Info("MCP resource read", "resource", "latest_activity")

	activities, err := s.queries.ListActivities(ctx)
	if err != nil {
		logging.Error("readLatestActivity failed", "error", err)
		return nil, NewDatabaseError(err)
	}
	if len(activities) == 0 {
		return jsonResource("yearlog://activities/latest", map[string]string{"error": "No activities found"})
	}

	latest := activities[0]
	for _, a := range activities[1:] {
		if a.Date.After(latest.Date) {
			latest = a
		}
	}
	return jsonResource("yearlog://activities/latest", convertActivity(latest))
}

// readAvailableYears returns the years that have cached activities
func (s *Server) readAvailableYears(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	logging.Info("MCP resource read", "resource", "available_years")

	years, err := s.queries.ActivityYears(ctx)
	if err != nil {
		logging.Error("readAvailableYears failed", "error", err)
		return nil, NewDatabaseError(err)
	}
	count, err := s.queries.CountActivities(ctx)
	if err != nil {
		logging.Error("readAvailableYears failed", "error", err)
		return nil, NewDatabaseError(err)
	}

	return jsonResource("yearlog://years", struct {
		Years []int  `json:"years"`
		Total string `json:"total"`
	}{Years: years, Total: formatCount(count)})
}

// readYearStats returns the statistical rollup for the year named in the URI
func (s *Server) readYearStats(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	// URI format: yearlog://stats/{year}
	uri := req.Params.URI
	parts := strings.Split(uri, "/")
	if len(parts) < 2 {
		return nil, NewInvalidInputError("invalid stats URI format")
	}

	yearStr := parts[len(parts)-1]
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return nil, NewInvalidInputErrorWithDetails("invalid year", yearStr)
	}

	logging.Info("MCP resource read", "resource", "year_stats", "year", year)

	stats, err := s.yearStats(ctx, year)
	if err != nil {
		return nil, err
	}
	return jsonResource(uri, stats)
}

// jsonResource wraps a value as a pretty-printed JSON resource result.
func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, NewInternalErrorWithCause("failed to marshal resource", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(jsonData),
			},
		},
	}, nil
}
