package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/yearlog/yearlog/internal/pipeline"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testActivity(id int64, name string, date time.Time) pipeline.Activity {
	return pipeline.Activity{
		ID:                  id,
		Type:                pipeline.TypeRun,
		Name:                name,
		Date:                date,
		DistanceKm:          10,
		MovingTimeMinutes:   50,
		ElevationGainMeters: 80,
		KudosCount:          2,
	}
}

func TestUpsertActivitiesKeepsCachedRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := testActivity(1, "Morning Run", time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC))
	inserted, err := s.UpsertActivities(ctx, []pipeline.Activity{first})
	if err != nil {
		t.Fatal(err)
	}
	if inserted != 1 {
		t.Fatalf("inserted = %d, want 1", inserted)
	}

	// Refetching the same id must not rewrite the stored row.
	changed := first
	changed.Name = "Renamed upstream"
	second := testActivity(2, "Evening Run", time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC))
	inserted, err = s.UpsertActivities(ctx, []pipeline.Activity{changed, second})
	if err != nil {
		t.Fatal(err)
	}
	if inserted != 1 {
		t.Fatalf("inserted = %d, want only the new row", inserted)
	}

	got, err := s.ListActivities(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].Name != "Morning Run" {
		t.Errorf("cached row was overwritten: %q", got[0].Name)
	}
	if got[0].KudosCount != 2 || got[0].DistanceKm != 10 {
		t.Errorf("round-trip lost fields: %+v", got[0])
	}
}

func TestListActivitiesForYear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertActivities(ctx, []pipeline.Activity{
		testActivity(1, "Old", time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)),
		testActivity(2, "First", time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)),
		testActivity(3, "Last", time.Date(2024, 12, 31, 8, 0, 0, 0, time.UTC)),
		testActivity(4, "Next", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.ListActivitiesForYear(ctx, 2024)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != 2 || got[1].ID != 3 {
		t.Fatalf("expected activities [2 3], got %+v", got)
	}

	years, err := s.ActivityYears(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(years) != 3 || years[0] != 2025 || years[2] != 2023 {
		t.Errorf("years = %v, want [2025 2024 2023]", years)
	}
}

func TestLatestActivityDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.LatestActivityDate(ctx); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v, want absent and nil", ok, err)
	}

	latest := time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC)
	_, err := s.UpsertActivities(ctx, []pipeline.Activity{
		testActivity(1, "a", time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)),
		testActivity(2, "b", latest),
	})
	if err != nil {
		t.Fatal(err)
	}

	got, ok, err := s.LatestActivityDate(ctx)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if !got.Equal(latest) {
		t.Errorf("latest = %v, want %v", got, latest)
	}

	count, err := s.CountActivities(ctx)
	if err != nil || count != 2 {
		t.Errorf("count = %d err=%v, want 2", count, err)
	}
}

func TestAuthConfigRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetAuthConfig(ctx); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if err := s.UpdateTokens(ctx, "a", "r", 1); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("updating tokens without config: got %v", err)
	}

	cfg := AuthConfig{
		ClientID:     "123",
		ClientSecret: "secret",
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    1700000000,
	}
	if err := s.SaveAuthConfig(ctx, cfg); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetAuthConfig(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != cfg {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if err := s.UpdateTokens(ctx, "access2", "refresh2", 1800000000); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetAuthConfig(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessToken != "access2" || got.RefreshToken != "refresh2" || got.ExpiresAt != 1800000000 {
		t.Errorf("tokens not updated: %+v", got)
	}
	if got.ClientID != "123" || got.ClientSecret != "secret" {
		t.Errorf("client credentials lost on token update: %+v", got)
	}

	if err := s.DeleteAuthConfig(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetAuthConfig(ctx); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured after delete, got %v", err)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// No saved settings yields the zero value, not an error.
	settings, err := s.LoadSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(settings.TitleIgnorePatterns) != 0 {
		t.Fatalf("expected zero-value settings, got %+v", settings)
	}

	want := pipeline.Settings{
		ExcludedActivityTypes: []pipeline.ActivityType{pipeline.TypeWorkout},
		ExcludeVirtual: map[pipeline.Sport]pipeline.VirtualExclusion{
			pipeline.SportCycling: {Highlights: true},
		},
		TitleIgnorePatterns: []pipeline.TitleIgnorePattern{
			{Pattern: "commute", ExcludeFromHighlights: true, ExcludeFromStats: true},
		},
		ActivityFilters: []pipeline.ActivityTypeFilter{
			{
				ActivityType: pipeline.TypeRun,
				DistanceFilters: []pipeline.DistanceFilter{
					{Operator: pipeline.OpBestMatch, Value: 42, Unit: pipeline.UnitKm},
				},
			},
		},
	}
	if err := s.SaveSettings(ctx, want); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.TitleIgnorePatterns) != 1 || got.TitleIgnorePatterns[0].Pattern != "commute" {
		t.Errorf("title patterns did not round trip: %+v", got)
	}
	if !got.ExcludeVirtual[pipeline.SportCycling].Highlights {
		t.Errorf("virtual exclusion did not round trip: %+v", got)
	}
	if got.ActivityFilters[0].DistanceFilters[0].Operator != pipeline.OpBestMatch {
		t.Errorf("operator did not round trip: %+v", got.ActivityFilters[0])
	}

	// Saving again overwrites the single row.
	want.TitleIgnorePatterns = nil
	if err := s.SaveSettings(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err = s.LoadSettings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.TitleIgnorePatterns) != 0 {
		t.Errorf("settings overwrite failed: %+v", got)
	}
}
