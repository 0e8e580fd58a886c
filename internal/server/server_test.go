package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yearlog/yearlog/internal/pipeline"
)

// fakeQuerier implements the Querier interface for testing
type fakeQuerier struct {
	activities []pipeline.Activity
	settings   pipeline.Settings
	err        error
}

func (f *fakeQuerier) ListActivities(ctx context.Context) ([]pipeline.Activity, error) {
	return f.activities, f.err
}

func (f *fakeQuerier) ListActivitiesForYear(ctx context.Context, year int) ([]pipeline.Activity, error) {
	if f.err != nil {
		return nil, f.err
	}
	var matched []pipeline.Activity
	for _, a := range f.activities {
		if a.Date.Year() == year {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

func (f *fakeQuerier) ActivityYears(ctx context.Context) ([]int, error) {
	if f.err != nil {
		return nil, f.err
	}
	seen := make(map[int]struct{})
	var years []int
	for _, a := range f.activities {
		if _, ok := seen[a.Date.Year()]; !ok {
			seen[a.Date.Year()] = struct{}{}
			years = append(years, a.Date.Year())
		}
	}
	for i := 0; i < len(years); i++ {
		for j := i + 1; j < len(years); j++ {
			if years[j] > years[i] {
				years[i], years[j] = years[j], years[i]
			}
		}
	}
	return years, nil
}

func (f *fakeQuerier) CountActivities(ctx context.Context) (int64, error) {
	return int64(len(f.activities)), f.err
}

func (f *fakeQuerier) LoadSettings(ctx context.Context) (pipeline.Settings, error) {
	return f.settings, f.err
}

func (f *fakeQuerier) SaveSettings(ctx context.Context, settings pipeline.Settings) error {
	if f.err != nil {
		return f.err
	}
	f.settings = settings
	return nil
}

func date(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func TestGetYearStatsDefaultsToLatestYear(t *testing.T) {
	q := &fakeQuerier{activities: []pipeline.Activity{
		{ID: 1, Type: pipeline.TypeRun, Name: "Old run", Date: date(2023, 5, 1, 7), DistanceKm: 10, MovingTimeMinutes: 55},
		{ID: 2, Type: pipeline.TypeRun, Name: "Run", Date: date(2024, 3, 1, 7), DistanceKm: 12, MovingTimeMinutes: 66},
		{ID: 3, Type: pipeline.TypeRide, Name: "Ride", Date: date(2024, 6, 1, 8), DistanceKm: 40, MovingTimeMinutes: 90},
	}}
	s := New(q)

	_, output, err := s.getYearStats(context.Background(), nil, YearStatsInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if output.Stats.Year != 2024 {
		t.Errorf("year = %d, want the latest year 2024", output.Stats.Year)
	}
	if output.Stats.ActivityCount != 2 {
		t.Errorf("activity count = %d, want 2 (2023 excluded)", output.Stats.ActivityCount)
	}
	if len(output.AvailableYears) != 2 || output.AvailableYears[0] != 2024 {
		t.Errorf("available years = %v", output.AvailableYears)
	}
	if output.TotalDistance != "52.00 km" {
		t.Errorf("total distance = %q", output.TotalDistance)
	}
}

func TestGetYearStatsAppliesStatsExclusions(t *testing.T) {
	q := &fakeQuerier{
		activities: []pipeline.Activity{
			{ID: 1, Type: pipeline.TypeRun, Name: "Morning run", Date: date(2024, 3, 1, 7), DistanceKm: 10},
			{ID: 2, Type: pipeline.TypeWorkout, Name: "Gym", Date: date(2024, 3, 2, 18), DistanceKm: 0},
			{ID: 3, Type: pipeline.TypeRun, Name: "Commute home", Date: date(2024, 3, 3, 17), DistanceKm: 5},
		},
		settings: pipeline.Settings{
			ExcludedActivityTypes: []pipeline.ActivityType{pipeline.TypeWorkout},
			TitleIgnorePatterns: []pipeline.TitleIgnorePattern{
				{Pattern: "commute", ExcludeFromStats: true},
			},
		},
	}
	s := New(q)

	_, output, err := s.getYearStats(context.Background(), nil, YearStatsInput{Year: 2024})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Stats.ActivityCount != 1 {
		t.Errorf("activity count = %d, want 1 after type and title exclusions", output.Stats.ActivityCount)
	}
	if output.Stats.TotalDistanceKm != 10 {
		t.Errorf("total distance = %v, want 10", output.Stats.TotalDistanceKm)
	}
}

func TestGetYearStatsNoActivities(t *testing.T) {
	s := New(&fakeQuerier{})

	_, _, err := s.getYearStats(context.Background(), nil, YearStatsInput{})
	var toolErr *ToolError
	if !errors.As(err, &toolErr) || toolErr.Code != ErrNotFound {
		t.Fatalf("err = %v, want NOT_FOUND tool error", err)
	}
}

func TestGetYearStatsRejectsImplausibleYear(t *testing.T) {
	s := New(&fakeQuerier{activities: []pipeline.Activity{
		{ID: 1, Type: pipeline.TypeRun, Date: date(2024, 3, 1, 7), DistanceKm: 10},
	}})

	_, _, err := s.getYearStats(context.Background(), nil, YearStatsInput{Year: 99999})
	var toolErr *ToolError
	if !errors.As(err, &toolErr) || toolErr.Code != ErrInvalidInput {
		t.Fatalf("err = %v, want INVALID_INPUT tool error", err)
	}
}

func TestGetRaceHighlightsDetectsTriathlonAndRace(t *testing.T) {
	q := &fakeQuerier{activities: []pipeline.Activity{
		{ID: 1, Type: pipeline.TypeSwim, Name: "Swim leg", Date: date(2024, 6, 1, 7), DistanceKm: 1.5},
		{ID: 2, Type: pipeline.TypeRide, Name: "Bike leg", Date: date(2024, 6, 1, 8), DistanceKm: 40},
		{ID: 3, Type: pipeline.TypeRun, Name: "Run leg", Date: date(2024, 6, 1, 10), DistanceKm: 10},
		{ID: 4, Type: pipeline.TypeRun, Name: "City 10K", Date: date(2024, 9, 1, 9), DistanceKm: 10, WorkoutType: pipeline.WorkoutTypeRace},
	}}
	s := New(q)

	_, output, err := s.getRaceHighlights(context.Background(), nil, RaceHighlightsInput{Year: 2024})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Count != 2 {
		t.Fatalf("count = %d, want a triathlon and a race", output.Count)
	}

	tri := output.Highlights[0]
	if tri.Type != "triathlon" || tri.Badge != "full" {
		t.Errorf("first highlight = %+v, want a full triathlon", tri)
	}
	if len(tri.Activities) != 3 {
		t.Errorf("triathlon legs = %d, want 3", len(tri.Activities))
	}

	race := output.Highlights[1]
	if race.Type != "custom-highlight" || race.Badge != "race" || race.Name != "City 10K" {
		t.Errorf("second highlight = %+v, want the flagged race", race)
	}
}

func TestGetSportHighlightsRecordsSkipClaimedRaces(t *testing.T) {
	q := &fakeQuerier{
		activities: []pipeline.Activity{
			{ID: 1, Type: pipeline.TypeRun, Name: "City Marathon", Date: date(2024, 4, 14, 9),
				DistanceKm: 42.5, MovingTimeMinutes: 240, WorkoutType: pipeline.WorkoutTypeRace},
			{ID: 2, Type: pipeline.TypeRun, Name: "Long training run", Date: date(2024, 3, 10, 8),
				DistanceKm: 42.0, MovingTimeMinutes: 250},
			{ID: 3, Type: pipeline.TypeRun, Name: "Easy run", Date: date(2024, 3, 12, 7),
				DistanceKm: 10, MovingTimeMinutes: 55},
		},
		settings: pipeline.Settings{
			ActivityFilters: []pipeline.ActivityTypeFilter{
				{
					ActivityType:    pipeline.TypeRun,
					DistanceFilters: []pipeline.DistanceFilter{{Operator: pipeline.OpBestMatch, Value: 42, Unit: pipeline.UnitKm}},
					TitlePatterns:   []string{"marathon"},
				},
			},
		},
	}
	s := New(q)

	_, output, err := s.getSportHighlights(context.Background(), nil, SportHighlightsInput{Year: 2024})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Sports) != 1 || output.Sports[0].Sport != "running" {
		t.Fatalf("sports = %+v, want just running", output.Sports)
	}

	running := output.Sports[0]
	if running.TotalDistance != "94.50 km" {
		t.Errorf("total distance = %q, want every member counted", running.TotalDistance)
	}
	// The claimed race stays the longest; only the record slot passes to the
	// best unclaimed effort.
	if running.LongestActivity == nil || running.LongestActivity.ID != 1 {
		t.Errorf("longest = %+v, want the marathon race", running.LongestActivity)
	}
	if len(running.DistanceRecords) != 1 {
		t.Fatalf("records = %+v, want one marathon record", running.DistanceRecords)
	}
	record := running.DistanceRecords[0]
	if record.Label != "Marathon" {
		t.Errorf("label = %q", record.Label)
	}
	if record.Activity.ID != 2 {
		t.Errorf("record activity = %d, want the unclaimed training run", record.Activity.ID)
	}
	if record.Pace == "" {
		t.Error("running record should carry a pace")
	}
}

func TestFindActivitiesLatestQuery(t *testing.T) {
	q := &fakeQuerier{activities: []pipeline.Activity{
		{ID: 1, Type: pipeline.TypeRun, Name: "First", Date: date(2024, 1, 1, 7), DistanceKm: 5, MovingTimeMinutes: 30},
		{ID: 2, Type: pipeline.TypeRun, Name: "Newest", Date: date(2024, 8, 1, 7), DistanceKm: 5, MovingTimeMinutes: 30},
	}}
	s := New(q)

	_, output, err := s.findActivities(context.Background(), nil, FindActivitiesInput{Query: "latest"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Activities) != 1 || output.Activities[0].Name != "Newest" {
		t.Errorf("activities = %+v, want just the newest", output.Activities)
	}
	if output.Activities[0].Pace != "6:00/km" {
		t.Errorf("pace = %q", output.Activities[0].Pace)
	}
}

func TestFindActivitiesFilterSortAndLimit(t *testing.T) {
	q := &fakeQuerier{activities: []pipeline.Activity{
		{ID: 1, Type: pipeline.TypeRun, Name: "Short", Date: date(2024, 2, 1, 7), DistanceKm: 5},
		{ID: 2, Type: pipeline.TypeRun, Name: "Long", Date: date(2024, 3, 1, 7), DistanceKm: 21},
		{ID: 3, Type: pipeline.TypeRun, Name: "Medium", Date: date(2024, 4, 1, 7), DistanceKm: 12},
		{ID: 4, Type: pipeline.TypeRide, Name: "Ride", Date: date(2024, 4, 2, 8), DistanceKm: 60},
		{ID: 5, Type: pipeline.TypeRun, Name: "Last year", Date: date(2023, 4, 1, 7), DistanceKm: 30},
	}}
	s := New(q)

	_, output, err := s.findActivities(context.Background(), nil, FindActivitiesInput{
		Type:   "run",
		Year:   2024,
		SortBy: "distance",
		Limit:  2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.TotalMatching != 3 {
		t.Errorf("total matching = %d, want 3", output.TotalMatching)
	}
	if len(output.Activities) != 2 {
		t.Fatalf("returned %d activities, want limit of 2", len(output.Activities))
	}
	if output.Activities[0].ID != 2 || output.Activities[1].ID != 3 {
		t.Errorf("order = [%d %d], want longest first", output.Activities[0].ID, output.Activities[1].ID)
	}
}

func TestFindActivitiesDateRange(t *testing.T) {
	q := &fakeQuerier{activities: []pipeline.Activity{
		{ID: 1, Type: pipeline.TypeRun, Name: "Before", Date: date(2024, 1, 15, 7), DistanceKm: 5},
		{ID: 2, Type: pipeline.TypeRun, Name: "Inside", Date: date(2024, 2, 10, 7), DistanceKm: 5},
		{ID: 3, Type: pipeline.TypeRun, Name: "Boundary", Date: date(2024, 2, 29, 23), DistanceKm: 5},
		{ID: 4, Type: pipeline.TypeRun, Name: "After", Date: date(2024, 3, 1, 0), DistanceKm: 5},
	}}
	s := New(q)

	_, output, err := s.findActivities(context.Background(), nil, FindActivitiesInput{
		StartDate: "2024-02-01",
		EndDate:   "2024-02-29",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.TotalMatching != 2 {
		t.Errorf("total matching = %d, want the two February activities", output.TotalMatching)
	}
}

func TestFindActivitiesByIDNotFound(t *testing.T) {
	s := New(&fakeQuerier{activities: []pipeline.Activity{
		{ID: 1, Type: pipeline.TypeRun, Date: date(2024, 1, 1, 7), DistanceKm: 5},
	}})

	_, _, err := s.findActivities(context.Background(), nil, FindActivitiesInput{ID: 42})
	var toolErr *ToolError
	if !errors.As(err, &toolErr) || toolErr.Code != ErrNotFound {
		t.Fatalf("err = %v, want NOT_FOUND tool error", err)
	}
}

func TestUpdateSettingsRoundTrip(t *testing.T) {
	q := &fakeQuerier{}
	s := New(q)

	want := pipeline.Settings{
		TitleIgnorePatterns: []pipeline.TitleIgnorePattern{
			{Pattern: "commute", ExcludeFromStats: true},
		},
	}
	_, output, err := s.updateSettings(context.Background(), nil, UpdateSettingsInput{Settings: want})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(output.Settings.TitleIgnorePatterns) != 1 {
		t.Fatalf("returned settings = %+v", output.Settings)
	}

	_, got, err := s.getSettings(context.Background(), nil, GetSettingsInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Settings.TitleIgnorePatterns) != 1 || got.Settings.TitleIgnorePatterns[0].Pattern != "commute" {
		t.Errorf("stored settings = %+v", got.Settings)
	}
}

func TestFindActivitiesRejectsBadSort(t *testing.T) {
	s := New(&fakeQuerier{activities: []pipeline.Activity{
		{ID: 1, Type: pipeline.TypeRun, Date: date(2024, 1, 1, 7), DistanceKm: 5},
	}})

	_, _, err := s.findActivities(context.Background(), nil, FindActivitiesInput{SortBy: "pace"})
	var toolErr *ToolError
	if !errors.As(err, &toolErr) || toolErr.Code != ErrInvalidInput {
		t.Fatalf("err = %v, want INVALID_INPUT tool error", err)
	}
}
