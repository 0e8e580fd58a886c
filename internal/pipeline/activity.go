// Package pipeline implements the activity analytics pipeline: pure,
// stateless transformations that turn a list of normalized activities into
// year statistics, race/personal-record highlights, and per-sport summaries.
// Every function takes its configuration as an explicit parameter and never
// mutates its input.
package pipeline

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// ActivityType identifies the sport kind of a raw activity, using Strava's
// type naming.
type ActivityType string

const (
	TypeRun         ActivityType = "Run"
	TypeRide        ActivityType = "Ride"
	TypeVirtualRide ActivityType = "VirtualRide"
	TypeSwim        ActivityType = "Swim"
	TypeWalk        ActivityType = "Walk"
	TypeHike        ActivityType = "Hike"
	TypeWorkout     ActivityType = "Workout"
)

// WorkoutTypeRace is Strava's workout_type value marking a run as a race.
const WorkoutTypeRace = 1

// Sport groups related activity types into one family for highlight purposes.
type Sport string

const (
	SportRunning  Sport = "running"
	SportCycling  Sport = "cycling"
	SportSwimming Sport = "swimming"
)

// sportFamilies maps each sport family to its member activity types. Cycling
// merges real and virtual rides into one family.
var sportFamilies = map[Sport][]ActivityType{
	SportRunning:  {TypeRun},
	SportCycling:  {TypeRide, TypeVirtualRide},
	SportSwimming: {TypeSwim},
}

// virtualTypeBySport maps a sport family to its virtual activity type, for
// the per-sport virtual-activity exclusion rule. Extends naturally if Strava
// introduces VirtualRun or VirtualSwim.
var virtualTypeBySport = map[Sport]ActivityType{
	SportCycling: TypeVirtualRide,
}

// Activity is an immutable normalized activity record. Distances are in
// kilometers, times in minutes, speeds in km/h and elevation in meters.
// Optional metrics (heart rate, calories) are zero when not reported.
type Activity struct {
	ID                  int64        `json:"id"`
	Type                ActivityType `json:"type"`
	Name                string       `json:"name"`
	Date                time.Time    `json:"date"`
	DistanceKm          float64      `json:"distance_km"`
	DurationMinutes     float64      `json:"duration_minutes"`
	MovingTimeMinutes   float64      `json:"moving_time_minutes"`
	ElevationGainMeters float64      `json:"elevation_gain_meters"`
	AverageSpeedKmh     float64      `json:"average_speed_kmh"`
	MaxSpeedKmh         float64      `json:"max_speed_kmh"`
	AverageHeartRate    float64      `json:"average_heart_rate,omitempty"`
	MaxHeartRate        float64      `json:"max_heart_rate,omitempty"`
	KudosCount          int          `json:"kudos_count"`
	Calories            float64      `json:"calories,omitempty"`
	WorkoutType         int          `json:"workout_type,omitempty"`
}

// IsRace reports whether the activity carries the explicit race flag.
func (a Activity) IsRace() bool {
	return a.WorkoutType == WorkoutTypeRace
}

// InvalidInputError signals a structurally impossible activity record, which
// indicates a bug in the upstream transform layer. Missing optional fields
// are never an error.
type InvalidInputError struct {
	ActivityID int64
	Reason     string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid activity %d: %s", e.ActivityID, e.Reason)
}

// validateActivities rejects records the upstream transform should never
// produce: a non-finite or negative distance, or a zero date.
func validateActivities(activities []Activity) error {
	for _, a := range activities {
		if math.IsNaN(a.DistanceKm) || math.IsInf(a.DistanceKm, 0) {
			return &InvalidInputError{ActivityID: a.ID, Reason: "distance is not finite"}
		}
		if a.DistanceKm < 0 {
			return &InvalidInputError{ActivityID: a.ID, Reason: "distance is negative"}
		}
		if a.Date.IsZero() {
			return &InvalidInputError{ActivityID: a.ID, Reason: "date is missing"}
		}
	}
	return nil
}

// Merge reconciles a freshly fetched batch into a cached activity list,
// deduplicating by id. A fetched activity whose id already exists in the
// cache is dropped in favor of the cached copy. The cached slice is not
// modified; ordering is cached-first, then new activities in fetch order.
func Merge(cached, fetched []Activity) []Activity {
	seen := make(map[int64]struct{}, len(cached))
	merged := make([]Activity, 0, len(cached)+len(fetched))
	for _, a := range cached {
		seen[a.ID] = struct{}{}
		merged = append(merged, a)
	}
	for _, a := range fetched {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		merged = append(merged, a)
	}
	return merged
}

// sortChronological returns a copy of activities ordered by start time, with
// id as the tie-breaker so results are deterministic regardless of input
// order.
func sortChronological(activities []Activity) []Activity {
	sorted := make([]Activity, len(activities))
	copy(sorted, activities)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// sportOf returns the sport family an activity type belongs to, if any.
func sportOf(t ActivityType) (Sport, bool) {
	for sport, types := range sportFamilies {
		for _, member := range types {
			if member == t {
				return sport, true
			}
		}
	}
	return "", false
}
