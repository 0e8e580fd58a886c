package pipeline

import (
	"fmt"
	"time"
)

// MonthStats is one slot of the monthly breakdown.
type MonthStats struct {
	Month           time.Month `json:"month"`
	ActivityCount   int        `json:"activity_count"`
	DistanceKm      float64    `json:"distance_km"`
	TimeHours       float64    `json:"time_hours"`
	ElevationMeters float64    `json:"elevation_meters"`
}

// TypeStats is the per-activity-type rollup.
type TypeStats struct {
	ActivityCount   int     `json:"activity_count"`
	DistanceKm      float64 `json:"distance_km"`
	TimeHours       float64 `json:"time_hours"`
	ElevationMeters float64 `json:"elevation_meters"`
}

// DayOfWeekStats is one slot of the weekday distribution, Sunday first.
type DayOfWeekStats struct {
	Day           time.Weekday `json:"day"`
	ActivityCount int          `json:"activity_count"`
	DistanceKm    float64      `json:"distance_km"`
}

// HeatmapCell is one day-of-week by hour-of-day bucket.
type HeatmapCell struct {
	ActivityCount int     `json:"activity_count"`
	DistanceKm    float64 `json:"distance_km"`
}

// trainingBlockHours is the width of the fixed hour blocks used to derive
// the preferred training time from the per-hour start counts.
const trainingBlockHours = 4

// TrainingBlock is a contiguous hour block [StartHour, EndHour) with its
// activity start count.
type TrainingBlock struct {
	StartHour     int `json:"start_hour"`
	EndHour       int `json:"end_hour"`
	ActivityCount int `json:"activity_count"`
}

// YearStats is the full year-level statistical rollup. ByMonth always has 12
// entries and ByDayOfWeek 7; ByType is sparse. The optional record fields
// are references into the input list and nil when the input is empty.
type YearStats struct {
	Year                  int                        `json:"year"`
	ActivityCount         int                        `json:"activity_count"`
	TotalDistanceKm       float64                    `json:"total_distance_km"`
	TotalElevationMeters  float64                    `json:"total_elevation_meters"`
	TotalTimeHours        float64                    `json:"total_time_hours"`
	TotalKudos            int                        `json:"total_kudos"`
	ByMonth               []MonthStats               `json:"by_month"`
	ByType                map[ActivityType]TypeStats `json:"by_type"`
	ByDayOfWeek           []DayOfWeekStats           `json:"by_day_of_week"`
	HourDayHeatmap        map[string]HeatmapCell     `json:"hour_day_heatmap"`
	MostActiveDay         *DayOfWeekStats            `json:"most_active_day,omitempty"`
	PreferredTrainingTime *TrainingBlock             `json:"preferred_training_time,omitempty"`
	LongestActivity       *Activity                  `json:"longest_activity,omitempty"`
	HighestElevation      *Activity                  `json:"highest_elevation,omitempty"`
}

// HeatmapKey builds the composite day-of-week/hour-of-day key used by the
// heatmap, with Sunday as day 0.
func HeatmapKey(day time.Weekday, hour int) string {
	return fmt.Sprintf("%d-%d", int(day), hour)
}

// CalculateYearStats computes the year rollup over the given activities.
// Activities outside the requested year are ignored. The function applies no
// exclusion logic of its own; callers filter with target stats first. Zero
// activities yield zero totals, fully populated arrays and nil record
// fields.
func CalculateYearStats(activities []Activity, year int) (YearStats, error) {
	if err := validateActivities(activities); err != nil {
		return YearStats{}, err
	}

	stats := YearStats{
		Year:           year,
		ByMonth:        make([]MonthStats, 12),
		ByType:         make(map[ActivityType]TypeStats),
		ByDayOfWeek:    make([]DayOfWeekStats, 7),
		HourDayHeatmap: make(map[string]HeatmapCell),
	}
	for i := range stats.ByMonth {
		stats.ByMonth[i].Month = time.Month(i + 1)
	}
	for i := range stats.ByDayOfWeek {
		stats.ByDayOfWeek[i].Day = time.Weekday(i)
	}

	var hourStarts [24]int
	var longest, highest *Activity

	for _, a := range sortChronological(activities) {
		if a.Date.Year() != year {
			continue
		}

		hours := a.MovingTimeMinutes / 60
		stats.ActivityCount++
		stats.TotalDistanceKm += a.DistanceKm
		stats.TotalElevationMeters += a.ElevationGainMeters
		stats.TotalTimeHours += hours
		stats.TotalKudos += a.KudosCount

		m := &stats.ByMonth[int(a.Date.Month())-1]
		m.ActivityCount++
		m.DistanceKm += a.DistanceKm
		m.TimeHours += hours
		m.ElevationMeters += a.ElevationGainMeters

		t := stats.ByType[a.Type]
		t.ActivityCount++
		t.DistanceKm += a.DistanceKm
		t.TimeHours += hours
		t.ElevationMeters += a.ElevationGainMeters
		stats.ByType[a.Type] = t

		day := a.Date.Weekday()
		d := &stats.ByDayOfWeek[int(day)]
		d.ActivityCount++
		d.DistanceKm += a.DistanceKm

		hour := a.Date.Hour()
		cell := stats.HourDayHeatmap[HeatmapKey(day, hour)]
		cell.ActivityCount++
		cell.DistanceKm += a.DistanceKm
		stats.HourDayHeatmap[HeatmapKey(day, hour)] = cell
		hourStarts[hour]++

		if longest == nil || a.DistanceKm > longest.DistanceKm {
			longest = &a
		}
		if highest == nil || a.ElevationGainMeters > highest.ElevationGainMeters {
			highest = &a
		}
	}

	stats.LongestActivity = longest
	stats.HighestElevation = highest

	if stats.ActivityCount > 0 {
		stats.MostActiveDay = mostActiveDay(stats.ByDayOfWeek)
		stats.PreferredTrainingTime = preferredTrainingTime(hourStarts)
	}
	return stats, nil
}

// mostActiveDay picks the weekday with the highest total distance.
func mostActiveDay(days []DayOfWeekStats) *DayOfWeekStats {
	best := days[0]
	for _, d := range days[1:] {
		if d.DistanceKm > best.DistanceKm {
			best = d
		}
	}
	return &best
}

// preferredTrainingTime picks the fixed-width hour block with the most
// activity starts, breaking ties by the earliest block. The per-hour counts
// in the heatmap remain the authoritative source; the blocking is
// presentation only.
func preferredTrainingTime(hourStarts [24]int) *TrainingBlock {
	best := TrainingBlock{StartHour: 0, EndHour: trainingBlockHours}
	for start := 0; start < 24; start += trainingBlockHours {
		count := 0
		for h := start; h < start+trainingBlockHours; h++ {
			count += hourStarts[h]
		}
		if count > best.ActivityCount {
			best = TrainingBlock{StartHour: start, EndHour: start + trainingBlockHours, ActivityCount: count}
		}
	}
	return &best
}
