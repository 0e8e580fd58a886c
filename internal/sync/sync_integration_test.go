package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/yearlog/yearlog/internal/store"
	"github.com/yearlog/yearlog/internal/strava"
)

// TestSyncEndToEnd runs a full sync against a mocked API into a real SQLite
// store, then a second SyncLatest to verify the delta path and id dedupe.
func TestSyncEndToEnd(t *testing.T) {
	ctx := context.Background()

	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer st.Close()

	first := []strava.Activity{
		{ID: 1, Name: "Run", SportType: "Run", Distance: 10000, MovingTime: 3000,
			StartDateLocal: time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)},
		{ID: 2, Name: "Ride", SportType: "Ride", Distance: 30000, MovingTime: 4500,
			StartDateLocal: time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)},
	}
	// The delta response overlaps with id 2 and adds id 3.
	delta := []strava.Activity{
		{ID: 2, Name: "Ride renamed", SportType: "Ride", Distance: 30000, MovingTime: 4500,
			StartDateLocal: time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)},
		{ID: 3, Name: "Swim", SportType: "Swim", Distance: 2000, MovingTime: 2400,
			StartDateLocal: time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") != "1" {
			json.NewEncoder(w).Encode([]strava.Activity{})
			return
		}
		if r.URL.Query().Get("after") != "" {
			json.NewEncoder(w).Encode(delta)
			return
		}
		json.NewEncoder(w).Encode(first)
	}))
	defer server.Close()

	client := strava.NewClientWithBaseURL("test-token", server.URL).
		WithRetryConfig(1, 10*time.Millisecond, 50*time.Millisecond)
	svc := NewService(st, client)

	result, err := svc.SyncLatest(ctx, nil)
	if err != nil {
		t.Fatalf("initial sync: %v", err)
	}
	if result.Delta || result.Inserted != 2 {
		t.Fatalf("initial sync result = %+v, want full sync inserting 2", result)
	}

	result, err = svc.SyncLatest(ctx, nil)
	if err != nil {
		t.Fatalf("delta sync: %v", err)
	}
	if !result.Delta {
		t.Error("second run should be a delta sync")
	}
	if result.Inserted != 1 {
		t.Errorf("inserted = %d, want 1 (id 2 already stored)", result.Inserted)
	}

	activities, err := st.ListActivities(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(activities) != 3 {
		t.Fatalf("stored %d activities, want 3", len(activities))
	}
	// The overlapping refetch must not rename the cached row.
	if activities[1].ID != 2 || activities[1].Name != "Ride" {
		t.Errorf("cached row changed: %+v", activities[1])
	}
}
