package server

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yearlog/yearlog/internal/logging"
	"github.com/yearlog/yearlog/internal/pipeline"
)

// Default and max limits for activity queries
const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// FindActivitiesInput - consolidated input for activity search
type FindActivitiesInput struct {
	// Special queries (mutually exclusive with filters)
	Query string `json:"query,omitempty" jsonschema:"Special query shortcuts: 'latest' (most recent), 'oldest' (first ever), 'longest' (greatest distance), 'fastest' (highest average speed). When set, overrides other filter parameters."`
	ID    int64  `json:"id,omitempty" jsonschema:"Get a specific activity by its unique activity ID. When set, overrides other parameters."`

	// Filters
	Type      string `json:"type,omitempty" jsonschema:"Filter by activity type. Common values: Run, Ride, VirtualRide, Swim, Walk, Hike, Workout."`
	Year      int    `json:"year,omitempty" jsonschema:"Restrict to activities in one year (e.g., 2024)."`
	StartDate string `json:"start_date,omitempty" jsonschema:"Include activities on or after this date. Format: YYYY-MM-DD (e.g., 2024-01-15)."`
	EndDate   string `json:"end_date,omitempty" jsonschema:"Include activities on or before this date. Format: YYYY-MM-DD (e.g., 2024-12-31)."`

	// Sorting and pagination
	SortBy string `json:"sort_by,omitempty" jsonschema:"Sort results by this field. Valid values: date (newest first), distance (longest first), duration (longest first), elevation (most climbing first). Default: date."`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of activities to return. Default: 20, Maximum: 100."`
}

// ActivitySummary is the display projection of one cached activity.
type ActivitySummary struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Date         string `json:"date"`
	Distance     string `json:"distance"`
	Duration     string `json:"duration"`
	Pace         string `json:"pace,omitempty"`
	Speed        string `json:"speed,omitempty"`
	Elevation    string `json:"elevation,omitempty"`
	AvgHeartrate int    `json:"avg_heartrate,omitempty"`
	Calories     int    `json:"calories,omitempty"`
	Kudos        int    `json:"kudos,omitempty"`
	Race         bool   `json:"race,omitempty"`
}

// FindActivitiesOutput - output for activity search
type FindActivitiesOutput struct {
	Query         string            `json:"query,omitempty"`
	Activities    []ActivitySummary `json:"activities"`
	TotalMatching int               `json:"total_matching"`
}

func (s *Server) findActivities(ctx context.Context, req *mcp.CallToolRequest, input FindActivitiesInput) (*mcp.CallToolResult, FindActivitiesOutput, error) {
	logging.Info("MCP tool call", "tool", "find_activities",
		"query", input.Query, "id", input.ID, "type", input.Type, "year", input.Year)

	activities, err := s.queries.ListActivities(ctx)
	if err != nil {
		logging.Error("findActivities failed", "error", err)
		return nil, FindActivitiesOutput{}, NewDatabaseError(err)
	}

	if input.ID != 0 {
		for _, a := range activities {
			if a.ID == input.ID {
				return nil, FindActivitiesOutput{
					Activities:    []ActivitySummary{convertActivity(a)},
					TotalMatching: 1,
				}, nil
			}
		}
		return nil, FindActivitiesOutput{}, NewNotFoundErrorWithID("activity", input.ID)
	}

	if input.Query != "" {
		summary, err := querySingle(input.Query, activities)
		if err != nil {
			return nil, FindActivitiesOutput{}, err
		}
		return nil, FindActivitiesOutput{
			Query:         input.Query,
			Activities:    []ActivitySummary{summary},
			TotalMatching: 1,
		}, nil
	}

	matched, err := filterActivities(activities, input)
	if err != nil {
		return nil, FindActivitiesOutput{}, err
	}
	if err := sortActivities(matched, input.SortBy); err != nil {
		return nil, FindActivitiesOutput{}, err
	}

	total := len(matched)
	limit := input.Limit
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	summaries := make([]ActivitySummary, 0, len(matched))
	for _, a := range matched {
		summaries = append(summaries, convertActivity(a))
	}

	if logging.IsVerbose() {
		logging.Debug("findActivities result", "matching", total, "returned", len(summaries))
	}
	return nil, FindActivitiesOutput{Activities: summaries, TotalMatching: total}, nil
}

// querySingle resolves the special single-result query shortcuts.
func querySingle(query string, activities []pipeline.Activity) (ActivitySummary, error) {
	if len(activities) == 0 {
		return ActivitySummary{}, NewNotFoundError("activities")
	}

	best := activities[0]
	switch strings.ToLower(query) {
	case "latest":
		for _, a := range activities[1:] {
			if a.Date.After(best.Date) {
				best = a
			}
		}
	case "oldest":
		for _, a := range activities[1:] {
			if a.Date.Before(best.Date) {
				best = a
			}
		}
	case "longest":
		for _, a := range activities[1:] {
			if a.DistanceKm > best.DistanceKm {
				best = a
			}
		}
	case "fastest":
		for _, a := range activities[1:] {
			if a.AverageSpeedKmh > best.AverageSpeedKmh {
				best = a
			}
		}
	default:
		return ActivitySummary{}, NewInvalidInputErrorWithDetails(
			"unknown query, valid values: latest, oldest, longest, fastest", query)
	}
	return convertActivity(best), nil
}

// filterActivities applies the type, year and date-range filters.
func filterActivities(activities []pipeline.Activity, input FindActivitiesInput) ([]pipeline.Activity, error) {
	var start, end time.Time
	if input.StartDate != "" {
		parsed, err := time.Parse("2006-01-02", input.StartDate)
		if err != nil {
			return nil, NewInvalidInputErrorWithDetails("invalid start_date, expected YYYY-MM-DD", input.StartDate)
		}
		start = parsed
	}
	if input.EndDate != "" {
		parsed, err := time.Parse("2006-01-02", input.EndDate)
		if err != nil {
			return nil, NewInvalidInputErrorWithDetails("invalid end_date, expected YYYY-MM-DD", input.EndDate)
		}
		end = parsed.AddDate(0, 0, 1)
	}

	matched := make([]pipeline.Activity, 0, len(activities))
	for _, a := range activities {
		if input.Type != "" && !strings.EqualFold(string(a.Type), input.Type) {
			continue
		}
		if input.Year > 0 && a.Date.Year() != input.Year {
			continue
		}
		if !start.IsZero() && a.Date.Before(start) {
			continue
		}
		if !end.IsZero() && !a.Date.Before(end) {
			continue
		}
		matched = append(matched, a)
	}
	return matched, nil
}

// sortActivities orders the matches in place by the requested field.
func sortActivities(activities []pipeline.Activity, sortBy string) error {
	switch sortBy {
	case "", "date":
		sort.SliceStable(activities, func(i, j int) bool {
			return activities[i].Date.After(activities[j].Date)
		})
	case "distance":
		sort.SliceStable(activities, func(i, j int) bool {
			return activities[i].DistanceKm > activities[j].DistanceKm
		})
	case "duration":
		sort.SliceStable(activities, func(i, j int) bool {
			return activities[i].MovingTimeMinutes > activities[j].MovingTimeMinutes
		})
	case "elevation":
		sort.SliceStable(activities, func(i, j int) bool {
			return activities[i].ElevationGainMeters > activities[j].ElevationGainMeters
		})
	default:
		return NewInvalidInputErrorWithDetails(
			"unknown sort_by, valid values: date, distance, duration, elevation", sortBy)
	}
	return nil
}

// convertActivity builds the display projection for one activity, choosing
// pace for running-style sports, per-100m pace for swims and speed for rides.
func convertActivity(a pipeline.Activity) ActivitySummary {
	summary := ActivitySummary{
		ID:           a.ID,
		Name:         a.Name,
		Type:         string(a.Type),
		Date:         a.Date.Format(time.RFC3339),
		Distance:     pipeline.FormatDistance(a.DistanceKm),
		Duration:     pipeline.FormatDuration(a.MovingTimeMinutes),
		AvgHeartrate: int(a.AverageHeartRate),
		Calories:     int(a.Calories),
		Kudos:        a.KudosCount,
		Race:         a.IsRace(),
	}
	if a.ElevationGainMeters > 0 {
		summary.Elevation = pipeline.FormatElevation(a.ElevationGainMeters)
	}
	switch a.Type {
	case pipeline.TypeRide, pipeline.TypeVirtualRide:
		if a.AverageSpeedKmh > 0 {
			summary.Speed = pipeline.FormatSpeed(a.AverageSpeedKmh)
		}
	case pipeline.TypeSwim:
		if pace := pipeline.FormatSwimPace(a.MovingTimeMinutes, a.DistanceKm); pace != "-" {
			summary.Pace = pace
		}
	default:
		if pace := pipeline.FormatPace(a.MovingTimeMinutes, a.DistanceKm); pace != "-" {
			summary.Pace = pace
		}
	}
	return summary
}

// formatCount renders an activity count with its noun.
func formatCount(n int64) string {
	if n == 1 {
		return "1 activity"
	}
	return fmt.Sprintf("%d activities", n)
}
