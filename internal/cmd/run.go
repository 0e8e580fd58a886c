package cmd

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yearlog/yearlog/internal/auth"
	"github.com/yearlog/yearlog/internal/logging"
	"github.com/yearlog/yearlog/internal/server"
	"github.com/yearlog/yearlog/internal/store"
	"github.com/yearlog/yearlog/internal/strava"
	"github.com/yearlog/yearlog/internal/workers"
	"golang.org/x/sync/errgroup"

	_ "modernc.org/sqlite"
)

// RuntimeConfig holds all runtime configuration from CLI flags
type RuntimeConfig struct {
	DBPath               string
	MCPPort              int
	SyncInterval         time.Duration
	TokenRefreshInterval time.Duration
	NoSync               bool
	ForceReauth          bool
}

// Run is the main entry point for the unified run mode
func Run(cfg *RuntimeConfig) error {
	log := logging.Logger

	log.Info().
		Str("db_path", cfg.DBPath).
		Int("mcp_port", cfg.MCPPort).
		Bool("no_sync", cfg.NoSync).
		Dur("sync_interval", cfg.SyncInterval).
		Dur("token_refresh_interval", cfg.TokenRefreshInterval).
		Msg("starting yearlog")

	// Set up context for shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	// Open database with SQLite concurrency settings
	log.Info().Str("path", cfg.DBPath).Msg("opening database")
	sqlDB, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer sqlDB.Close()

	if err := store.Configure(sqlDB); err != nil {
		return fmt.Errorf("configuring SQLite: %w", err)
	}

	// Check for database lock (another instance running)
	if err := store.CheckLock(sqlDB); err != nil {
		return err
	}

	if err := store.Migrate(ctx, sqlDB); err != nil {
		return err
	}

	st := store.New(sqlDB)

	// Log database statistics
	workers.LogDatabaseStats(ctx, st)

	// Start background workers with errgroup for graceful shutdown
	g, gCtx := errgroup.WithContext(ctx)

	if !cfg.NoSync {
		storage := auth.NewStorage(st)

		// Check and handle authentication
		accessToken, err := ensureAuthenticated(ctx, storage, cfg)
		if err != nil {
			return fmt.Errorf("authentication: %w", err)
		}

		// Use default retry config (rate limiting is handled by waiting for window resets)
		retryConfig := strava.DefaultRetryConfig()

		// Perform initial sync
		if err := workers.SyncOnce(ctx, st, accessToken, retryConfig); err != nil {
			log.Warn().Err(err).Msg("initial sync failed")
			// Continue anyway - background worker will retry
		}

		// Log database statistics after initial sync
		workers.LogDatabaseStats(ctx, st)

		log.Info().Msg("starting background workers")

		// Token refresh worker
		tokenRefresher := workers.NewTokenRefresher(
			storage,
			cfg.TokenRefreshInterval,
		)
		g.Go(func() error {
			tokenRefresher.Run(gCtx)
			return nil
		})

		// Activity sync worker
		activitySyncer := workers.NewActivitySyncer(
			st,
			storage,
			cfg.SyncInterval,
			retryConfig,
		)
		g.Go(func() error {
			activitySyncer.Run(gCtx)
			return nil
		})
	} else {
		log.Info().Msg("running in offline mode (--no-sync), skipping Strava API sync")
	}

	// Start MCP server
	srv := server.New(st)

	var serverErr error
	if cfg.MCPPort > 0 {
		serverErr = runHTTPServer(ctx, srv.MCPServer(), cfg.MCPPort)
	} else {
		log.Info().Msg("MCP server running via stdio")
		serverErr = srv.Run(ctx)
	}

	// Wait for workers to finish (only if workers were started)
	if !cfg.NoSync {
		log.Info().Msg("waiting for workers to shut down")
		if err := g.Wait(); err != nil {
			log.Warn().Err(err).Msg("worker error during shutdown")
		} else {
			log.Info().Msg("all workers shut down gracefully")
		}
	}

	return serverErr
}

// ensureAuthenticated checks if we have valid auth tokens, and if not, runs the OAuth flow
func ensureAuthenticated(ctx context.Context, storage *auth.Storage, cfg *RuntimeConfig) (string, error) {
	log := logging.Logger

	// If force reauth is requested, clear existing tokens and credentials, then re-prompt
	if cfg.ForceReauth {
		log.Info().Msg("force re-authentication requested, clearing existing credentials and tokens")
		if err := storage.DeleteTokens(ctx); err != nil {
			log.Debug().Err(err).Msg("failed to delete existing auth config (may not exist)")
		}
	}

	// Check if we have credentials in the database
	clientConfig, err := storage.LoadClientConfig(ctx)
	if err != nil || cfg.ForceReauth {
		clientConfig, err = resolveCredentials()
		if err != nil {
			return "", fmt.Errorf("getting credentials: %w", err)
		}
	}

	// Try to get existing valid token (only if not force reauth)
	if !cfg.ForceReauth {
		accessToken, err := storage.GetValidAccessToken(ctx)
		if err == nil {
			log.Info().Msg("using existing authentication")
			return accessToken, nil
		}

		// Check if this was a refresh failure (token exists but refresh failed)
		if strings.Contains(err.Error(), "refreshing token") {
			log.Warn().Err(err).Msg("token refresh failed, re-authentication required")
			fmt.Println("\n=== Token Refresh Failed ===")
			fmt.Println("Your Strava authentication has expired or been revoked.")
			fmt.Println("Re-authentication is required.")
		} else {
			log.Info().Msg("no valid authentication found, starting OAuth flow")
		}
	}

	return runOAuthFlow(ctx, storage, clientConfig)
}

// resolveCredentials reads the API credentials from the environment, falling
// back to an interactive prompt.
func resolveCredentials() (*auth.ClientConfig, error) {
	clientID := strings.TrimSpace(os.Getenv("STRAVA_CLIENT_ID"))
	clientSecret := strings.TrimSpace(os.Getenv("STRAVA_CLIENT_SECRET"))
	if clientID != "" && clientSecret != "" {
		logging.Info("using API credentials from environment")
		return &auth.ClientConfig{ClientID: clientID, ClientSecret: clientSecret}, nil
	}
	return promptForCredentials()
}

// promptForCredentials prompts the user to enter their Strava API credentials
func promptForCredentials() (*auth.ClientConfig, error) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("\n=== Strava API Credentials Required ===")
	fmt.Println("Get your API credentials from: https://www.strava.com/settings/api")
	fmt.Println()

	fmt.Print("Enter your Client ID: ")
	clientID, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading client ID: %w", err)
	}
	clientID = strings.TrimSpace(clientID)

	if clientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}

	fmt.Print("Enter your Client Secret: ")
	clientSecret, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading client secret: %w", err)
	}
	clientSecret = strings.TrimSpace(clientSecret)

	if clientSecret == "" {
		return nil, fmt.Errorf("client secret is required")
	}

	return &auth.ClientConfig{
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}, nil
}

// runOAuthFlow performs the OAuth authentication flow with Strava
func runOAuthFlow(ctx context.Context, storage *auth.Storage, clientConfig *auth.ClientConfig) (string, error) {
	log := logging.Logger

	fmt.Println("\n=== Strava Authentication Required ===")
	fmt.Println("A browser window will open for you to authorize this application.")
	fmt.Println("Press Enter to continue...")

	reader := bufio.NewReader(os.Stdin)
	reader.ReadString('\n')

	tokens, err := auth.Authenticate(ctx, clientConfig.ClientID, clientConfig.ClientSecret)
	if err != nil {
		return "", fmt.Errorf("OAuth flow failed: %w", err)
	}

	log.Info().
		Str("expires_at", time.Unix(tokens.ExpiresAt, 0).Format(time.RFC3339)).
		Msg("OAuth authentication successful")

	// Save tokens with client config
	if err := storage.SaveFullConfig(ctx, clientConfig.ClientID, clientConfig.ClientSecret, tokens); err != nil {
		return "", fmt.Errorf("saving tokens: %w", err)
	}

	fmt.Printf("\nAuthentication successful! Token expires: %s\n\n",
		time.Unix(tokens.ExpiresAt, 0).Format(time.RFC1123))

	return tokens.AccessToken, nil
}

// runHTTPServer runs the MCP server over HTTP/SSE
func runHTTPServer(ctx context.Context, mcpServer *mcp.Server, port int) error {
	log := logging.Logger

	handler := mcp.NewSSEHandler(func(r *http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	addr := fmt.Sprintf(":%d", port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().
			Str("address", addr).
			Str("endpoint", fmt.Sprintf("http://localhost%s", addr)).
			Msg("MCP server running via HTTP/SSE")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down HTTP server")
		return httpServer.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}
