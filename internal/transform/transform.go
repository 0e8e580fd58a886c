// Package transform converts Strava wire activities into the pipeline's
// normalized shape: kilometers, minutes and km/h instead of meters, seconds
// and m/s.
package transform

import (
	"github.com/yearlog/yearlog/internal/pipeline"
	"github.com/yearlog/yearlog/internal/strava"
)

const mpsToKmh = 3.6

// Activity converts a single wire activity. Local start times are preferred
// so the weekday and hour-of-day buckets reflect the athlete's clock, not
// UTC. Ride kilojoules approximate burned kilocalories one to one.
func Activity(a strava.Activity) pipeline.Activity {
	date := a.StartDateLocal
	if date.IsZero() {
		date = a.StartDate
	}

	typ := a.SportType
	if typ == "" {
		typ = a.Type
	}

	return pipeline.Activity{
		ID:                  a.ID,
		Type:                pipeline.ActivityType(typ),
		Name:                a.Name,
		Date:                date,
		DistanceKm:          a.Distance / 1000,
		DurationMinutes:     float64(a.ElapsedTime) / 60,
		MovingTimeMinutes:   float64(a.MovingTime) / 60,
		ElevationGainMeters: a.TotalElevationGain,
		AverageSpeedKmh:     a.AverageSpeed * mpsToKmh,
		MaxSpeedKmh:         a.MaxSpeed * mpsToKmh,
		AverageHeartRate:    a.AverageHeartrate,
		MaxHeartRate:        a.MaxHeartrate,
		KudosCount:          a.KudosCount,
		Calories:            a.Kilojoules,
		WorkoutType:         a.WorkoutType,
	}
}

// Activities converts a batch of wire activities.
func Activities(wire []strava.Activity) []pipeline.Activity {
	out := make([]pipeline.Activity, len(wire))
	for i, a := range wire {
		out[i] = Activity(a)
	}
	return out
}
