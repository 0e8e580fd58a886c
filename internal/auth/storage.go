package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/yearlog/yearlog/internal/store"
)

// Storage persists OAuth credentials and tokens through the store layer.
type Storage struct {
	store *store.Store
}

// NewStorage creates a Storage backed by the given store.
func NewStorage(st *store.Store) *Storage {
	return &Storage{store: st}
}

// StoredTokens is the token set as persisted.
type StoredTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// ClientConfig is the stored API application credentials.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
}

// SaveTokens updates the stored tokens, preserving the client credentials.
func (s *Storage) SaveTokens(ctx context.Context, tokens *TokenResponse) error {
	err := s.store.UpdateTokens(ctx, tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresAt)
	if errors.Is(err, store.ErrNotConfigured) {
		return fmt.Errorf("no client config found: authenticate first")
	}
	return err
}

// LoadTokens loads the stored token set.
func (s *Storage) LoadTokens(ctx context.Context) (*StoredTokens, error) {
	cfg, err := s.store.GetAuthConfig(ctx)
	if errors.Is(err, store.ErrNotConfigured) {
		return nil, fmt.Errorf("not authenticated: authenticate first")
	}
	if err != nil {
		return nil, err
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("not authenticated: authenticate first")
	}

	return &StoredTokens{
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
		ExpiresAt:    cfg.ExpiresAt,
	}, nil
}

// SaveFullConfig saves client credentials and tokens together.
func (s *Storage) SaveFullConfig(ctx context.Context, clientID, clientSecret string, tokens *TokenResponse) error {
	return s.store.SaveAuthConfig(ctx, store.AuthConfig{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
	})
}

// LoadClientConfig loads the stored API credentials.
func (s *Storage) LoadClientConfig(ctx context.Context) (*ClientConfig, error) {
	cfg, err := s.store.GetAuthConfig(ctx)
	if errors.Is(err, store.ErrNotConfigured) {
		return nil, fmt.Errorf("client not configured: authenticate first")
	}
	if err != nil {
		return nil, err
	}

	return &ClientConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}, nil
}

// DeleteTokens removes the stored credentials and tokens.
func (s *Storage) DeleteTokens(ctx context.Context) error {
	return s.store.DeleteAuthConfig(ctx)
}

// GetValidAccessToken returns a usable access token, refreshing through the
// OAuth endpoint when the stored one is expired.
func (s *Storage) GetValidAccessToken(ctx context.Context) (string, error) {
	tokens, err := s.LoadTokens(ctx)
	if err != nil {
		return "", err
	}

	if !IsTokenExpired(tokens.ExpiresAt) {
		return tokens.AccessToken, nil
	}

	cfg, err := s.LoadClientConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("loading client config for refresh: %w", err)
	}

	newTokens, err := RefreshAccessToken(ctx, cfg.ClientID, cfg.ClientSecret, tokens.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("refreshing token: %w", err)
	}

	if err := s.SaveTokens(ctx, newTokens); err != nil {
		return "", fmt.Errorf("saving refreshed tokens: %w", err)
	}

	return newTokens.AccessToken, nil
}
