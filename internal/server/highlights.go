package server

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yearlog/yearlog/internal/logging"
	"github.com/yearlog/yearlog/internal/pipeline"
)

// RaceHighlightsInput optionally restricts detection to one year.
type RaceHighlightsInput struct {
	Year int `json:"year,omitempty" jsonschema:"Restrict detection to one year (e.g., 2024). Omit or 0 for the full history."`
}

// HighlightView is the display projection of one detected highlight.
type HighlightView struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Name       string            `json:"name"`
	Date       string            `json:"date"`
	Distance   string            `json:"distance"`
	Elevation  string            `json:"elevation,omitempty"`
	Badge      string            `json:"badge,omitempty"`
	Activities []ActivitySummary `json:"activities,omitempty"`
}

// RaceHighlightsOutput lists the detected highlights in date order.
type RaceHighlightsOutput struct {
	Highlights []HighlightView `json:"highlights"`
	Count      int             `json:"count"`
}

func (s *Server) getRaceHighlights(ctx context.Context, req *mcp.CallToolRequest, input RaceHighlightsInput) (*mcp.CallToolResult, RaceHighlightsOutput, error) {
	logging.Info("MCP tool call", "tool", "get_race_highlights", "year", input.Year)

	eligible, settings, err := s.highlightPool(ctx, input.Year)
	if err != nil {
		return nil, RaceHighlightsOutput{}, err
	}

	highlights, err := pipeline.DetectRaceHighlights(eligible, pipeline.HighlightConfig{
		TitleIgnorePatterns: settings.TitleIgnorePatterns,
		ActivityFilters:     settings.ActivityFilters,
	})
	if err != nil {
		return nil, RaceHighlightsOutput{}, NewInternalErrorWithCause("highlight detection failed", err)
	}

	views := make([]HighlightView, 0, len(highlights))
	for _, h := range highlights {
		views = append(views, convertHighlight(h))
	}

	output := RaceHighlightsOutput{Highlights: views, Count: len(views)}
	if logging.IsVerbose() {
		logging.Debug("getRaceHighlights result", "count", len(views))
	}
	return nil, output, nil
}

// SportHighlightsInput optionally restricts the summary to one year.
type SportHighlightsInput struct {
	Year int `json:"year,omitempty" jsonschema:"Restrict the summary to one year (e.g., 2024). Omit or 0 for the full history."`
}

// DistanceRecordView is the display projection of one distance record.
type DistanceRecordView struct {
	Label    string          `json:"label"`
	Distance string          `json:"distance"`
	Activity ActivitySummary `json:"activity"`
	Pace     string          `json:"pace,omitempty"`
	Speed    string          `json:"speed,omitempty"`
}

// SportHighlightView is the display projection of one sport family summary.
type SportHighlightView struct {
	Sport           string               `json:"sport"`
	TotalDistance   string               `json:"total_distance"`
	TotalTime       string               `json:"total_time"`
	TotalElevation  string               `json:"total_elevation"`
	LongestActivity *ActivitySummary     `json:"longest_activity,omitempty"`
	BiggestClimb    *ActivitySummary     `json:"biggest_climb,omitempty"`
	DistanceRecords []DistanceRecordView `json:"distance_records,omitempty"`
}

// SportHighlightsOutput lists the per-sport summaries in fixed family order.
type SportHighlightsOutput struct {
	Sports []SportHighlightView `json:"sports"`
}

func (s *Server) getSportHighlights(ctx context.Context, req *mcp.CallToolRequest, input SportHighlightsInput) (*mcp.CallToolResult, SportHighlightsOutput, error) {
	logging.Info("MCP tool call", "tool", "get_sport_highlights", "year", input.Year)

	eligible, settings, err := s.highlightPool(ctx, input.Year)
	if err != nil {
		return nil, SportHighlightsOutput{}, err
	}

	// Activities claimed by race highlights step aside as distance-record
	// candidates; totals and the longest activity are unaffected.
	_, claimed, err := pipeline.DetectRaceHighlightsWithExcluded(eligible, pipeline.HighlightConfig{
		TitleIgnorePatterns: settings.TitleIgnorePatterns,
		ActivityFilters:     settings.ActivityFilters,
	})
	if err != nil {
		return nil, SportHighlightsOutput{}, NewInternalErrorWithCause("highlight detection failed", err)
	}

	highlights, err := pipeline.CalculateSportHighlights(eligible, pipeline.SportHighlightOptions{
		ActivityFilters:     settings.ActivityFilters,
		ExcludedActivityIDs: claimed,
		TitleIgnorePatterns: settings.TitleIgnorePatterns,
		IncludeInHighlights: settings.IncludeInHighlights,
	})
	if err != nil {
		return nil, SportHighlightsOutput{}, NewInternalErrorWithCause("sport highlights calculation failed", err)
	}

	views := make([]SportHighlightView, 0, len(highlights))
	for _, h := range highlights {
		views = append(views, convertSportHighlight(h))
	}

	output := SportHighlightsOutput{Sports: views}
	if logging.IsVerbose() {
		logging.Debug("getSportHighlights result", "sports", len(views))
	}
	return nil, output, nil
}

// highlightPool loads the activities and settings for the highlight tools,
// with the highlights-target exclusion rules already applied.
func (s *Server) highlightPool(ctx context.Context, year int) ([]pipeline.Activity, pipeline.Settings, error) {
	settings, err := s.queries.LoadSettings(ctx)
	if err != nil {
		logging.Error("highlightPool failed loading settings", "error", err)
		return nil, pipeline.Settings{}, NewDatabaseError(err)
	}

	activities, err := s.activitiesForScope(ctx, year)
	if err != nil {
		logging.Error("highlightPool failed listing activities", "error", err)
		return nil, pipeline.Settings{}, NewDatabaseError(err)
	}

	return pipeline.FilterActivities(activities, settings, pipeline.TargetHighlights), settings, nil
}

func convertHighlight(h pipeline.Highlight) HighlightView {
	view := HighlightView{
		ID:       h.ID,
		Type:     string(h.Type),
		Name:     h.Name,
		Date:     h.Date.Format(time.RFC3339),
		Distance: pipeline.FormatDistance(h.DistanceKm),
		Badge:    h.Badge,
	}
	if h.ElevationGainMeters > 0 {
		view.Elevation = pipeline.FormatElevation(h.ElevationGainMeters)
	}
	for _, leg := range h.Activities {
		view.Activities = append(view.Activities, convertActivity(leg))
	}
	return view
}

func convertSportHighlight(h pipeline.SportHighlight) SportHighlightView {
	view := SportHighlightView{
		Sport:          string(h.Sport),
		TotalDistance:  pipeline.FormatDistance(h.TotalDistanceKm),
		TotalTime:      pipeline.FormatDuration(h.TotalTimeMinutes),
		TotalElevation: pipeline.FormatElevation(h.TotalElevationMeters),
	}
	if h.LongestActivity != nil {
		longest := convertActivity(*h.LongestActivity)
		view.LongestActivity = &longest
	}
	if h.BiggestClimb != nil {
		climb := convertActivity(*h.BiggestClimb)
		view.BiggestClimb = &climb
	}
	for _, r := range h.DistanceRecords {
		record := DistanceRecordView{
			Label:    r.Label,
			Distance: pipeline.FormatDistance(r.DistanceKm),
			Activity: convertActivity(r.Activity),
			Pace:     r.Pace,
		}
		if r.SpeedKmh > 0 {
			record.Speed = pipeline.FormatSpeed(r.SpeedKmh)
		}
		view.DistanceRecords = append(view.DistanceRecords, record)
	}
	return view
}
