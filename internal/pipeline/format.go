package pipeline

import (
	"fmt"
	"math"
)

// FormatDistance renders a distance in km as a human-readable string,
// dropping to meters below one kilometer.
func FormatDistance(km float64) string {
	if km <= 0 {
		return "-"
	}
	if km < 1 {
		return fmt.Sprintf("%.0f m", km*1000)
	}
	return fmt.Sprintf("%.2f km", km)
}

// FormatDuration renders a duration in minutes as a human-readable string.
func FormatDuration(minutes float64) string {
	if minutes <= 0 {
		return "-"
	}
	totalSeconds := int(math.Round(minutes * 60))
	hours := totalSeconds / 3600
	mins := (totalSeconds % 3600) / 60
	secs := totalSeconds % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	if mins > 0 {
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	return fmt.Sprintf("%ds", secs)
}

// FormatElevation renders an elevation gain in meters.
func FormatElevation(meters float64) string {
	if meters <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f m", meters)
}

// FormatPace renders a running pace as min/km from a moving time in minutes
// and a distance in km.
func FormatPace(movingMinutes, distanceKm float64) string {
	if movingMinutes <= 0 || distanceKm <= 0 {
		return "-"
	}
	secPerKm := movingMinutes * 60 / distanceKm
	return fmt.Sprintf("%d:%02d/km", int(secPerKm)/60, int(secPerKm)%60)
}

// FormatSwimPace renders a swim pace as min/100m.
func FormatSwimPace(movingMinutes, distanceKm float64) string {
	if movingMinutes <= 0 || distanceKm <= 0 {
		return "-"
	}
	secPer100m := movingMinutes * 60 / (distanceKm * 10)
	return fmt.Sprintf("%d:%02d/100m", int(secPer100m)/60, int(secPer100m)%60)
}

// FormatSpeed renders a speed in km/h.
func FormatSpeed(kmh float64) string {
	if kmh <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f km/h", kmh)
}
