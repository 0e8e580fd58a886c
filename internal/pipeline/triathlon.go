package pipeline

import (
	"fmt"
	"sort"
	"time"
)

// TriathlonType classifies a detected triathlon by its total climbing.
type TriathlonType string

const (
	TriathlonFull     TriathlonType = "full"
	TriathlonMountain TriathlonType = "mountain"
)

// mountainElevationMeters is the total-climb threshold above which a
// triathlon is classified as a mountain triathlon.
const mountainElevationMeters = 1000

// Triathlon is a composite event assembled from one swim, one ride and one
// run on the same calendar day in chronological order. The legs keep their
// individual distances and elevation; only the wrapper sums them.
type Triathlon struct {
	ID                   string        `json:"id"`
	Date                 time.Time     `json:"date"`
	Swim                 Activity      `json:"swim"`
	Ride                 Activity      `json:"ride"`
	Run                  Activity      `json:"run"`
	TotalDistanceKm      float64       `json:"total_distance_km"`
	TotalElevationMeters float64       `json:"total_elevation_meters"`
	Type                 TriathlonType `json:"type"`
}

// Legs returns the triathlon's constituent activities in event order.
func (t Triathlon) Legs() []Activity {
	return []Activity{t.Swim, t.Ride, t.Run}
}

// DetectTriathlons scans for same-day Swim+Ride+Run triples whose start
// times strictly increase in swim, bike, run order. Within a day the
// earliest valid triple wins: swims are tried in chronological order, and
// for each swim the first ride after it and the first run after that ride
// are chained. A day missing any leg, or with legs out of order, yields
// nothing; no partial (duathlon) detection is attempted. An activity never
// appears in two triathlons. Results are ordered by date.
func DetectTriathlons(activities []Activity) []Triathlon {
	byDay := make(map[string][]Activity)
	for _, a := range activities {
		switch a.Type {
		case TypeSwim, TypeRide, TypeVirtualRide, TypeRun:
			key := a.Date.Format("2006-01-02")
			byDay[key] = append(byDay[key], a)
		}
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	var triathlons []Triathlon
	for _, day := range days {
		if tri, ok := assembleTriathlon(day, sortChronological(byDay[day])); ok {
			triathlons = append(triathlons, tri)
		}
	}
	return triathlons
}

// assembleTriathlon chains the earliest swim with the first ride after it
// and the first run after that ride. dayActivities must already be in
// chronological order.
func assembleTriathlon(day string, dayActivities []Activity) (Triathlon, bool) {
	for si, swim := range dayActivities {
		if swim.Type != TypeSwim {
			continue
		}
		ri := firstAfter(dayActivities, si, swim.Date, func(a Activity) bool {
			return a.Type == TypeRide || a.Type == TypeVirtualRide
		})
		if ri < 0 {
			continue
		}
		ride := dayActivities[ri]
		runIdx := firstAfter(dayActivities, ri, ride.Date, func(a Activity) bool {
			return a.Type == TypeRun
		})
		if runIdx < 0 {
			continue
		}
		run := dayActivities[runIdx]

		totalDistance := swim.DistanceKm + ride.DistanceKm + run.DistanceKm
		totalElevation := swim.ElevationGainMeters + ride.ElevationGainMeters + run.ElevationGainMeters
		triType := TriathlonFull
		if totalElevation > mountainElevationMeters {
			triType = TriathlonMountain
		}

		return Triathlon{
			ID:                   fmt.Sprintf("tri-%s", day),
			Date:                 swim.Date,
			Swim:                 swim,
			Ride:                 ride,
			Run:                  run,
			TotalDistanceKm:      totalDistance,
			TotalElevationMeters: totalElevation,
			Type:                 triType,
		}, true
	}
	return Triathlon{}, false
}

// firstAfter finds the first activity after index from with a start time
// strictly later than after, satisfying match.
func firstAfter(activities []Activity, from int, after time.Time, match func(Activity) bool) int {
	for i := from + 1; i < len(activities); i++ {
		if activities[i].Date.After(after) && match(activities[i]) {
			return i
		}
	}
	return -1
}
