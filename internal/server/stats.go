package server

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yearlog/yearlog/internal/logging"
	"github.com/yearlog/yearlog/internal/pipeline"
)

// YearStatsInput selects the year to summarize.
type YearStatsInput struct {
	Year int `json:"year,omitempty" jsonschema:"The year to summarize (e.g., 2024). Omit or 0 for the most recent year with activities."`
}

// YearStatsOutput wraps the year rollup with formatted totals and the list
// of years that have data.
type YearStatsOutput struct {
	Stats          pipeline.YearStats `json:"stats"`
	TotalDistance  string             `json:"total_distance"`
	TotalTime      string             `json:"total_time"`
	TotalElevation string             `json:"total_elevation"`
	AvailableYears []int              `json:"available_years,omitempty"`
}

func (s *Server) getYearStats(ctx context.Context, req *mcp.CallToolRequest, input YearStatsInput) (*mcp.CallToolResult, YearStatsOutput, error) {
	logging.Info("MCP tool call", "tool", "get_year_stats", "year", input.Year)

	years, err := s.queries.ActivityYears(ctx)
	if err != nil {
		logging.Error("getYearStats failed", "error", err)
		return nil, YearStatsOutput{}, NewDatabaseError(err)
	}

	year := input.Year
	if year == 0 {
		if len(years) == 0 {
			return nil, YearStatsOutput{}, NewNotFoundError("activities")
		}
		year = years[0]
	}
	if year < 1900 || year > 2200 {
		return nil, YearStatsOutput{}, NewInvalidInputErrorWithDetails("year out of range", fmt.Sprintf("year=%d", year))
	}

	stats, err := s.yearStats(ctx, year)
	if err != nil {
		return nil, YearStatsOutput{}, err
	}

	output := YearStatsOutput{
		Stats:          stats,
		TotalDistance:  pipeline.FormatDistance(stats.TotalDistanceKm),
		TotalTime:      pipeline.FormatDuration(stats.TotalTimeHours * 60),
		TotalElevation: pipeline.FormatElevation(stats.TotalElevationMeters),
		AvailableYears: years,
	}

	if logging.IsVerbose() {
		logging.Debug("getYearStats result", "year", year, "activities", stats.ActivityCount)
	}
	return nil, output, nil
}

// yearStats loads and filters one year of activities and runs the rollup.
// Shared between the get_year_stats tool and the stats resource.
func (s *Server) yearStats(ctx context.Context, year int) (pipeline.YearStats, error) {
	settings, err := s.queries.LoadSettings(ctx)
	if err != nil {
		logging.Error("yearStats failed loading settings", "error", err)
		return pipeline.YearStats{}, NewDatabaseError(err)
	}

	activities, err := s.queries.ListActivitiesForYear(ctx, year)
	if err != nil {
		logging.Error("yearStats failed listing activities", "error", err)
		return pipeline.YearStats{}, NewDatabaseError(err)
	}

	filtered := pipeline.FilterActivities(activities, settings, pipeline.TargetStats)
	filtered = restrictToTypes(filtered, settings.IncludeInStats)

	stats, err := pipeline.CalculateYearStats(filtered, year)
	if err != nil {
		return pipeline.YearStats{}, NewInternalErrorWithCause("year stats calculation failed", err)
	}
	return stats, nil
}
