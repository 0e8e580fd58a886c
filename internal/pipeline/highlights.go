package pipeline

import (
	"fmt"
	"sort"
	"time"
)

// HighlightType discriminates single-activity highlights from composite
// events.
type HighlightType string

const (
	HighlightCustom    HighlightType = "custom-highlight"
	HighlightTriathlon HighlightType = "triathlon"
)

// Highlight is a display-ready projection of a notable activity or composite
// event. For composite events Activities carries references to the
// constituent legs; the highlight does not own them.
type Highlight struct {
	ID                  string        `json:"id"`
	Type                HighlightType `json:"type"`
	Name                string        `json:"name"`
	Date                time.Time     `json:"date"`
	DistanceKm          float64       `json:"distance_km"`
	ElevationGainMeters float64       `json:"elevation_gain_meters"`
	Badge               string        `json:"badge,omitempty"`
	Activities          []Activity    `json:"activities,omitempty"`
}

// HighlightConfig carries the settings slices the race detector consumes.
type HighlightConfig struct {
	TitleIgnorePatterns []TitleIgnorePattern
	ActivityFilters     []ActivityTypeFilter
}

// DetectRaceHighlights scans the activity list for notable events: triathlon
// composites first, then single activities that either carry the explicit
// race flag or match a configured custom filter. Title patterns excluded
// from highlights are dropped before detection. Results are ordered by date.
func DetectRaceHighlights(activities []Activity, cfg HighlightConfig) ([]Highlight, error) {
	highlights, _, err := DetectRaceHighlightsWithExcluded(activities, cfg)
	return highlights, err
}

// DetectRaceHighlightsWithExcluded runs the same detection as
// DetectRaceHighlights and additionally returns the set of activity ids
// consumed by the matched highlights. The set is derived from the very same
// pass as the highlight list, never recomputed, so the two can not drift.
func DetectRaceHighlightsWithExcluded(activities []Activity, cfg HighlightConfig) ([]Highlight, map[int64]struct{}, error) {
	if err := validateActivities(activities); err != nil {
		return nil, nil, err
	}

	eligible := make([]Activity, 0, len(activities))
	for _, a := range activities {
		if titleExcluded(a.Name, cfg.TitleIgnorePatterns, TargetHighlights) {
			continue
		}
		eligible = append(eligible, a)
	}
	eligible = sortChronological(eligible)

	excluded := make(map[int64]struct{})
	var highlights []Highlight

	// Triathlon legs are claimed first so they can not double as
	// independent single-activity records.
	for _, tri := range DetectTriathlons(eligible) {
		for _, leg := range tri.Legs() {
			excluded[leg.ID] = struct{}{}
		}
		highlights = append(highlights, Highlight{
			ID:                  tri.ID,
			Type:                HighlightTriathlon,
			Name:                fmt.Sprintf("Triathlon on %s", tri.Date.Format("Jan 2, 2006")),
			Date:                tri.Date,
			DistanceKm:          tri.TotalDistanceKm,
			ElevationGainMeters: tri.TotalElevationMeters,
			Badge:               string(tri.Type),
			Activities:          tri.Legs(),
		})
	}

	settings := Settings{ActivityFilters: cfg.ActivityFilters}
	for _, a := range eligible {
		if _, claimed := excluded[a.ID]; claimed {
			continue
		}
		isRace := a.IsRace()
		if !isRace && !MatchesCustomFilters(a, settings) {
			continue
		}
		excluded[a.ID] = struct{}{}
		h := Highlight{
			ID:                  fmt.Sprintf("activity-%d", a.ID),
			Type:                HighlightCustom,
			Name:                a.Name,
			Date:                a.Date,
			DistanceKm:          a.DistanceKm,
			ElevationGainMeters: a.ElevationGainMeters,
		}
		if isRace {
			h.Badge = "race"
		}
		highlights = append(highlights, h)
	}

	sort.SliceStable(highlights, func(i, j int) bool {
		return highlights[i].Date.Before(highlights[j].Date)
	})
	return highlights, excluded, nil
}
