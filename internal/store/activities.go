package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/yearlog/yearlog/internal/pipeline"
)

const activityColumns = `id, type, name, start_date, distance_km, duration_minutes,
	moving_time_minutes, elevation_gain_m, average_speed_kmh, max_speed_kmh,
	average_heart_rate, max_heart_rate, kudos_count, calories, workout_type`

// UpsertActivities inserts the given activities, skipping ids that already
// exist. Cached rows win over refetched ones, so re-syncing a window never
// rewrites history. Returns the number of newly inserted rows.
func (s *Store) UpsertActivities(ctx context.Context, activities []pipeline.Activity) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO activities (`+activityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, a := range activities {
		res, err := stmt.ExecContext(ctx,
			a.ID, string(a.Type), a.Name, a.Date.UTC().Format(time.RFC3339),
			a.DistanceKm, a.DurationMinutes, a.MovingTimeMinutes, a.ElevationGainMeters,
			a.AverageSpeedKmh, a.MaxSpeedKmh, a.AverageHeartRate, a.MaxHeartRate,
			a.KudosCount, a.Calories, a.WorkoutType)
		if err != nil {
			return 0, fmt.Errorf("inserting activity %d: %w", a.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("inserting activity %d: %w", a.ID, err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing activities: %w", err)
	}
	return inserted, nil
}

// ListActivities returns every stored activity in chronological order.
func (s *Store) ListActivities(ctx context.Context) ([]pipeline.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+activityColumns+`
		FROM activities ORDER BY start_date, id`)
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}
	defer rows.Close()
	return scanActivities(rows)
}

// ListActivitiesForYear returns the activities that started within the given
// calendar year, in chronological order.
func (s *Store) ListActivitiesForYear(ctx context.Context, year int) ([]pipeline.Activity, error) {
	from := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	to := time.Date(year+1, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)

	rows, err := s.db.QueryContext(ctx, `SELECT `+activityColumns+`
		FROM activities WHERE start_date >= ? AND start_date < ?
		ORDER BY start_date, id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing activities for %d: %w", year, err)
	}
	defer rows.Close()
	return scanActivities(rows)
}

// LatestActivityDate returns the start date of the most recent stored
// activity, with ok false when the table is empty.
func (s *Store) LatestActivityDate(ctx context.Context) (time.Time, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT start_date FROM activities
		ORDER BY start_date DESC LIMIT 1`).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("querying latest activity date: %w", err)
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing latest activity date %q: %w", raw, err)
	}
	return t, true, nil
}

// CountActivities returns the number of stored activities.
func (s *Store) CountActivities(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting activities: %w", err)
	}
	return count, nil
}

// ActivityYears returns the distinct calendar years with stored activities,
// most recent first.
func (s *Store) ActivityYears(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT substr(start_date, 1, 4)
		FROM activities ORDER BY 1 DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing activity years: %w", err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("scanning activity year: %w", err)
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

func scanActivities(rows *sql.Rows) ([]pipeline.Activity, error) {
	var activities []pipeline.Activity
	for rows.Next() {
		var (
			a       pipeline.Activity
			typ     string
			rawDate string
		)
		if err := rows.Scan(&a.ID, &typ, &a.Name, &rawDate, &a.DistanceKm,
			&a.DurationMinutes, &a.MovingTimeMinutes, &a.ElevationGainMeters,
			&a.AverageSpeedKmh, &a.MaxSpeedKmh, &a.AverageHeartRate, &a.MaxHeartRate,
			&a.KudosCount, &a.Calories, &a.WorkoutType); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}

		date, err := time.Parse(time.RFC3339, rawDate)
		if err != nil {
			return nil, fmt.Errorf("parsing start date %q: %w", rawDate, err)
		}
		a.Type = pipeline.ActivityType(typ)
		a.Date = date
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
