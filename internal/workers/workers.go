// Package workers holds the long-running background loops: periodic activity
// sync and OAuth token refresh.
package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/yearlog/yearlog/internal/auth"
	"github.com/yearlog/yearlog/internal/logging"
	"github.com/yearlog/yearlog/internal/store"
	"github.com/yearlog/yearlog/internal/strava"
	syncsvc "github.com/yearlog/yearlog/internal/sync"
)

// TokenStorage is the slice of auth.Storage the workers depend on.
type TokenStorage interface {
	LoadTokens(ctx context.Context) (*auth.StoredTokens, error)
	LoadClientConfig(ctx context.Context) (*auth.ClientConfig, error)
	SaveTokens(ctx context.Context, tokens *auth.TokenResponse) error
	GetValidAccessToken(ctx context.Context) (string, error)
}

// RefreshFunc exchanges a refresh token for a new token set.
type RefreshFunc func(ctx context.Context, clientID, clientSecret, refreshToken string) (*auth.TokenResponse, error)

// TokenRefresher keeps the stored auth tokens from expiring.
type TokenRefresher struct {
	storage  TokenStorage
	interval time.Duration
	refresh  RefreshFunc
}

// NewTokenRefresher creates a token refresh worker.
func NewTokenRefresher(storage TokenStorage, interval time.Duration) *TokenRefresher {
	return &TokenRefresher{
		storage:  storage,
		interval: interval,
		refresh:  auth.RefreshAccessToken,
	}
}

// Run checks token validity on the given interval until the context is
// cancelled.
func (t *TokenRefresher) Run(ctx context.Context) {
	log := logging.Logger
	log.Info().Dur("interval", t.interval).Msg("token refresher started")

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.checkAndRefresh(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("token refresher stopped")
			return
		case <-ticker.C:
			t.checkAndRefresh(ctx)
		}
	}
}

func (t *TokenRefresher) checkAndRefresh(ctx context.Context) {
	log := logging.Logger
	log.Debug().Msg("checking token validity")

	tokens, err := t.storage.LoadTokens(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load tokens for refresh check")
		return
	}

	timeUntilExpiry := time.Until(time.Unix(tokens.ExpiresAt, 0))
	if timeUntilExpiry >= 10*time.Minute {
		log.Debug().Dur("expires_in", timeUntilExpiry.Round(time.Second)).Msg("token still valid")
		return
	}

	log.Info().Dur("expires_in", timeUntilExpiry).Msg("token expiring soon, refreshing")

	clientConfig, err := t.storage.LoadClientConfig(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load client config for refresh")
		return
	}

	newTokens, err := t.refresh(ctx, clientConfig.ClientID, clientConfig.ClientSecret, tokens.RefreshToken)
	if err != nil {
		log.Error().Err(err).Msg("failed to refresh token")
		return
	}

	if err := t.storage.SaveTokens(ctx, newTokens); err != nil {
		log.Error().Err(err).Msg("failed to save refreshed tokens")
		return
	}

	log.Info().
		Str("new_expires_at", time.Unix(newTokens.ExpiresAt, 0).Format(time.RFC3339)).
		Msg("token refreshed successfully")
}

// Syncer is the sync surface the activity worker drives.
type Syncer interface {
	SyncLatest(ctx context.Context, progress syncsvc.FetchProgressCallback) (syncsvc.Result, error)
}

// ActivitySyncer periodically pulls new activities into the store.
type ActivitySyncer struct {
	store       syncsvc.Store
	storage     TokenStorage
	interval    time.Duration
	retryConfig strava.RetryConfig

	// newSyncer builds the per-run sync service; tests swap it out.
	newSyncer func(accessToken string) (Syncer, *strava.Client)
}

// NewActivitySyncer creates an activity sync worker.
func NewActivitySyncer(st syncsvc.Store, storage TokenStorage, interval time.Duration, retryConfig strava.RetryConfig) *ActivitySyncer {
	a := &ActivitySyncer{
		store:       st,
		storage:     storage,
		interval:    interval,
		retryConfig: retryConfig,
	}
	a.newSyncer = func(accessToken string) (Syncer, *strava.Client) {
		client := strava.NewClientWithRetryConfig(accessToken, retryConfig)
		return syncsvc.NewService(st, client), client
	}
	return a
}

// Run syncs on the given interval until the context is cancelled.
func (a *ActivitySyncer) Run(ctx context.Context) {
	log := logging.Logger
	log.Info().Dur("interval", a.interval).Msg("activity syncer started")

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.syncActivities(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("activity syncer stopped")
			return
		case <-ticker.C:
			a.syncActivities(ctx)
		}
	}
}

func (a *ActivitySyncer) syncActivities(ctx context.Context) {
	log := logging.Logger
	log.Info().Msg("starting activity sync")

	accessToken, err := a.storage.GetValidAccessToken(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to get access token for sync")
		return
	}

	svc, client := a.newSyncer(accessToken)

	// Respect any quota pressure left over from the previous run.
	if client != nil {
		if err := client.WaitForRateLimit(ctx); err != nil {
			log.Info().Err(err).Msg("activity sync cancelled while waiting for rate limit")
			return
		}
	}

	result, err := svc.SyncLatest(ctx, func(r strava.FetchResult) {
		rl := r.RateLimit
		logEvent := log.Debug()
		if rl.IsRateLimited {
			logEvent = log.Info()
		}
		logEvent.
			Int("page", r.Page).
			Int("activities_on_page", len(r.Activities)).
			Int("total_fetched", r.TotalFetched).
			Str("15min_usage", fmt.Sprintf("%d/%d", rl.Usage15Min, rl.Limit15Min)).
			Str("daily_usage", fmt.Sprintf("%d/%d", rl.UsageDaily, rl.LimitDaily)).
			Bool("rate_limited", rl.IsRateLimited).
			Msg("activity sync progress")
	})
	if err != nil {
		log.Error().Err(err).Msg("activity sync failed")
		return
	}

	log.Info().
		Int("fetched", result.Fetched).
		Int64("inserted", result.Inserted).
		Bool("delta", result.Delta).
		Msg("activity sync completed")
}

// SyncOnce performs a single sync, used for the initial sync on startup.
func SyncOnce(ctx context.Context, st syncsvc.Store, accessToken string, retryConfig strava.RetryConfig) error {
	log := logging.Logger
	log.Info().Msg("performing initial sync")

	client := strava.NewClientWithRetryConfig(accessToken, retryConfig)
	svc := syncsvc.NewService(st, client)

	result, err := svc.SyncLatest(ctx, func(r strava.FetchResult) {
		log.Debug().
			Int("page", r.Page).
			Int("total_fetched", r.TotalFetched).
			Msg("initial sync progress")
	})
	if err != nil {
		return err
	}

	log.Info().
		Int("fetched", result.Fetched).
		Int64("inserted", result.Inserted).
		Bool("delta", result.Delta).
		Msg("initial sync completed")
	return nil
}

// LogDatabaseStats logs the current store contents.
func LogDatabaseStats(ctx context.Context, st *store.Store) {
	log := logging.Logger

	count, err := st.CountActivities(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to count activities")
		return
	}
	if count == 0 {
		log.Info().Int64("total_activities", 0).Msg("database statistics")
		return
	}

	newest := "unknown"
	if latest, ok, err := st.LatestActivityDate(ctx); err == nil && ok {
		newest = latest.Format(time.RFC3339)
	}

	years, _ := st.ActivityYears(ctx)

	log.Info().
		Int64("total_activities", count).
		Str("newest_activity", newest).
		Ints("years", years).
		Msg("database statistics")
}
