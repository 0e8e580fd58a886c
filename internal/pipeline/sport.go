package pipeline

import (
	"fmt"
	"math"
)

// DistanceRecord pairs a named standard distance with the best-matching
// activity and its computed pace or speed.
type DistanceRecord struct {
	Label      string   `json:"label"`
	DistanceKm float64  `json:"distance_km"`
	Activity   Activity `json:"activity"`
	Pace       string   `json:"pace,omitempty"`
	SpeedKmh   float64  `json:"speed_kmh,omitempty"`
}

// SportHighlight summarizes one sport family for the highlights view. Totals
// cover every member activity unconditionally; the longest/biggest/record
// fields honor highlight exclusions.
type SportHighlight struct {
	Sport                Sport            `json:"sport"`
	TotalDistanceKm      float64          `json:"total_distance_km"`
	TotalTimeMinutes     float64          `json:"total_time_minutes"`
	TotalElevationMeters float64          `json:"total_elevation_meters"`
	LongestActivity      *Activity        `json:"longest_activity"`
	BiggestClimb         *Activity        `json:"biggest_climb,omitempty"`
	DistanceRecords      []DistanceRecord `json:"distance_records"`
}

// SportHighlightOptions carries the settings inputs the aggregator consumes.
// ExcludedActivityIDs is the set produced by
// DetectRaceHighlightsWithExcluded; it removes candidates from the distance
// records but deliberately never reduces the totals or disqualifies the
// longest activity.
type SportHighlightOptions struct {
	ActivityFilters     []ActivityTypeFilter
	ExcludedActivityIDs map[int64]struct{}
	TitleIgnorePatterns []TitleIgnorePattern
	IncludeInHighlights []ActivityType
}

// sportOrder fixes the output ordering of the families.
var sportOrder = []Sport{SportRunning, SportCycling, SportSwimming}

// CalculateSportHighlights computes per-sport-family cumulative totals, the
// longest activity, the biggest climb and per-standard-distance records. A
// family with no member activities, or whose members are all excluded from
// highlight eligibility by title pattern, is omitted entirely.
func CalculateSportHighlights(activities []Activity, opts SportHighlightOptions) ([]SportHighlight, error) {
	if err := validateActivities(activities); err != nil {
		return nil, err
	}

	var result []SportHighlight
	for _, sport := range sportOrder {
		if h, ok := calculateFamily(sport, activities, opts); ok {
			result = append(result, h)
		}
	}
	return result, nil
}

func calculateFamily(sport Sport, activities []Activity, opts SportHighlightOptions) (SportHighlight, bool) {
	members := familyMembers(sport, activities, opts.IncludeInHighlights)
	if len(members) == 0 {
		return SportHighlight{}, false
	}

	h := SportHighlight{Sport: sport}

	// Totals run over every member unconditionally: highlight title
	// exclusions and already-claimed highlight ids must not shrink the
	// sums.
	for _, a := range members {
		h.TotalDistanceKm += a.DistanceKm
		h.TotalTimeMinutes += a.MovingTimeMinutes
		h.TotalElevationMeters += a.ElevationGainMeters
	}

	eligible := make([]Activity, 0, len(members))
	for _, a := range members {
		if titleExcluded(a.Name, opts.TitleIgnorePatterns, TargetHighlights) {
			continue
		}
		eligible = append(eligible, a)
	}
	if len(eligible) == 0 {
		return SportHighlight{}, false
	}

	// Membership in ExcludedActivityIDs does not disqualify an activity
	// from being the family's longest: the same effort can be both the
	// longest run of the year and a distance-filter record.
	longest := eligible[0]
	for _, a := range eligible[1:] {
		if a.DistanceKm > longest.DistanceKm {
			longest = a
		}
	}
	h.LongestActivity = &longest

	var climb *Activity
	for i := range eligible {
		a := eligible[i]
		if a.ElevationGainMeters <= 0 {
			continue
		}
		if climb == nil || a.ElevationGainMeters > climb.ElevationGainMeters {
			climb = &eligible[i]
		}
	}
	if climb != nil {
		copied := *climb
		h.BiggestClimb = &copied
	}

	h.DistanceRecords = distanceRecords(sport, eligible, opts)
	return h, true
}

// familyMembers selects the activities belonging to the family, restricted
// to the IncludeInHighlights candidate pool when one is supplied.
func familyMembers(sport Sport, activities []Activity, include []ActivityType) []Activity {
	included := func(t ActivityType) bool {
		if len(include) == 0 {
			return true
		}
		for _, i := range include {
			if i == t {
				return true
			}
		}
		return false
	}

	var members []Activity
	for _, a := range activities {
		s, ok := sportOf(a.Type)
		if !ok || s != sport || !included(a.Type) {
			continue
		}
		members = append(members, a)
	}
	return members
}

// distanceRecords finds, for every configured standard-distance filter
// applicable to the family, the best-matching eligible activity. Filters are
// deduplicated across Ride and VirtualRide when their values coincide.
// Activities already claimed by race highlights are skipped as record
// candidates. Distances with no match are simply omitted.
func distanceRecords(sport Sport, eligible []Activity, opts SportHighlightOptions) []DistanceRecord {
	var records []DistanceRecord
	seen := make(map[DistanceFilter]struct{})

	for _, typeFilter := range opts.ActivityFilters {
		s, ok := sportOf(typeFilter.ActivityType)
		if !ok || s != sport {
			continue
		}
		for _, df := range typeFilter.DistanceFilters {
			if _, dup := seen[df]; dup {
				continue
			}
			seen[df] = struct{}{}

			best, ok := bestMatch(df, eligible, opts.ExcludedActivityIDs)
			if !ok {
				continue
			}
			record := DistanceRecord{
				Label:      distanceLabel(sport, df),
				DistanceKm: df.TargetKm(),
				Activity:   best,
			}
			switch sport {
			case SportCycling:
				record.SpeedKmh = speedKmh(best)
			case SportSwimming:
				record.Pace = FormatSwimPace(best.MovingTimeMinutes, best.DistanceKm)
			default:
				record.Pace = FormatPace(best.MovingTimeMinutes, best.DistanceKm)
			}
			records = append(records, record)
		}
	}
	return records
}

// bestMatch picks the matching candidate whose distance is closest to the
// filter target, breaking ties by the faster effort.
func bestMatch(df DistanceFilter, candidates []Activity, excluded map[int64]struct{}) (Activity, bool) {
	target := df.TargetKm()
	var best Activity
	found := false
	for _, a := range candidates {
		if _, claimed := excluded[a.ID]; claimed {
			continue
		}
		if !df.Matches(a.DistanceKm) {
			continue
		}
		if !found {
			best, found = a, true
			continue
		}
		dNew := math.Abs(a.DistanceKm - target)
		dBest := math.Abs(best.DistanceKm - target)
		if dNew < dBest || (dNew == dBest && a.MovingTimeMinutes < best.MovingTimeMinutes) {
			best = a
		}
	}
	return best, found
}

func speedKmh(a Activity) float64 {
	if a.MovingTimeMinutes <= 0 {
		return 0
	}
	return a.DistanceKm / (a.MovingTimeMinutes / 60)
}

// distanceLabel renders the display name for a standard distance: well-known
// run distances get their race names, swim distances under a kilometer
// render in meters, everything else as value plus unit.
func distanceLabel(sport Sport, df DistanceFilter) string {
	if sport == SportRunning && df.Unit == UnitKm {
		switch int(math.Round(df.Value)) {
		case 21:
			return "Half Marathon"
		case 42:
			return "Marathon"
		}
	}
	if sport == SportSwimming && df.TargetKm() < 1 {
		return fmt.Sprintf("%gm", df.TargetKm()*1000)
	}
	return fmt.Sprintf("%g%s", df.Value, df.Unit)
}
