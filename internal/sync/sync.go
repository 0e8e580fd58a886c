// Package sync moves activities from the Strava API into the local store.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/yearlog/yearlog/internal/logging"
	"github.com/yearlog/yearlog/internal/pipeline"
	"github.com/yearlog/yearlog/internal/strava"
	"github.com/yearlog/yearlog/internal/transform"
)

// deltaOverlap is how far before the newest stored activity a delta sync
// reaches back. Strava occasionally backfills uploads out of order; the
// insert-or-ignore store makes the overlap harmless.
const deltaOverlap = 24 * time.Hour

// Store is the persistence surface the sync service needs.
type Store interface {
	UpsertActivities(ctx context.Context, activities []pipeline.Activity) (int64, error)
	LatestActivityDate(ctx context.Context) (time.Time, bool, error)
}

// Fetcher is the API surface the sync service needs.
type Fetcher interface {
	FetchAllActivities(ctx context.Context, progress strava.ProgressCallback) ([]strava.Activity, error)
	FetchActivitiesSince(ctx context.Context, since time.Time, progress strava.ProgressCallback) ([]strava.Activity, error)
}

// FetchProgressCallback is invoked after each fetched page.
type FetchProgressCallback func(result strava.FetchResult)

// Service syncs activities from Strava into the store.
type Service struct {
	store  Store
	client Fetcher
}

// NewService creates a sync service.
func NewService(store Store, client Fetcher) *Service {
	return &Service{store: store, client: client}
}

// Result summarizes one sync run.
type Result struct {
	Fetched  int
	Inserted int64
	Delta    bool
}

// Sync fetches the full activity history and stores it.
func (s *Service) Sync(ctx context.Context, progress FetchProgressCallback) (Result, error) {
	activities, err := s.client.FetchAllActivities(ctx, strava.ProgressCallback(progress))
	if err != nil {
		return Result{}, fmt.Errorf("fetching activities: %w", err)
	}
	return s.save(ctx, activities, false)
}

// SyncDelta fetches only activities started after since and stores them.
func (s *Service) SyncDelta(ctx context.Context, since time.Time, progress FetchProgressCallback) (Result, error) {
	activities, err := s.client.FetchActivitiesSince(ctx, since, strava.ProgressCallback(progress))
	if err != nil {
		return Result{}, fmt.Errorf("fetching activities: %w", err)
	}
	result, err := s.save(ctx, activities, true)
	if err != nil {
		return result, err
	}
	return result, nil
}

// SyncLatest runs a full sync on an empty store and a delta sync from just
// before the newest stored activity otherwise.
func (s *Service) SyncLatest(ctx context.Context, progress FetchProgressCallback) (Result, error) {
	latest, ok, err := s.store.LatestActivityDate(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("reading latest activity date: %w", err)
	}
	if !ok {
		logging.Info("no stored activities, running full sync")
		return s.Sync(ctx, progress)
	}

	since := latest.Add(-deltaOverlap)
	logging.Debug("running delta sync", "since", since.Format(time.RFC3339))
	return s.SyncDelta(ctx, since, progress)
}

func (s *Service) save(ctx context.Context, wire []strava.Activity, delta bool) (Result, error) {
	result := Result{Fetched: len(wire), Delta: delta}
	if len(wire) == 0 {
		return result, nil
	}

	inserted, err := s.store.UpsertActivities(ctx, transform.Activities(wire))
	if err != nil {
		return result, fmt.Errorf("saving activities: %w", err)
	}
	result.Inserted = inserted

	logging.Info("sync complete",
		"fetched", result.Fetched,
		"inserted", result.Inserted,
		"delta", delta)
	return result, nil
}
