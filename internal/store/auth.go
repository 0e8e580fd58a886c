package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotConfigured indicates no auth config row exists yet.
var ErrNotConfigured = errors.New("auth config not found")

// AuthConfig is the single-row OAuth state: the API application credentials
// plus the most recent token set.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// GetAuthConfig loads the auth config row, returning ErrNotConfigured when
// absent.
func (s *Store) GetAuthConfig(ctx context.Context) (AuthConfig, error) {
	var cfg AuthConfig
	err := s.db.QueryRowContext(ctx, `SELECT client_id, client_secret, access_token,
		refresh_token, expires_at FROM auth_config WHERE id = 1`).
		Scan(&cfg.ClientID, &cfg.ClientSecret, &cfg.AccessToken, &cfg.RefreshToken, &cfg.ExpiresAt)
	if err == sql.ErrNoRows {
		return AuthConfig{}, ErrNotConfigured
	}
	if err != nil {
		return AuthConfig{}, fmt.Errorf("loading auth config: %w", err)
	}
	return cfg, nil
}

// SaveAuthConfig writes the full auth config, replacing any existing row.
func (s *Store) SaveAuthConfig(ctx context.Context, cfg AuthConfig) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO auth_config
		(id, client_id, client_secret, access_token, refresh_token, expires_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			client_secret = excluded.client_secret,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at`,
		cfg.ClientID, cfg.ClientSecret, cfg.AccessToken, cfg.RefreshToken, cfg.ExpiresAt)
	if err != nil {
		return fmt.Errorf("saving auth config: %w", err)
	}
	return nil
}

// UpdateTokens replaces the token fields, preserving the client credentials.
func (s *Store) UpdateTokens(ctx context.Context, accessToken, refreshToken string, expiresAt int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE auth_config SET access_token = ?,
		refresh_token = ?, expires_at = ? WHERE id = 1`,
		accessToken, refreshToken, expiresAt)
	if err != nil {
		return fmt.Errorf("updating tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating tokens: %w", err)
	}
	if n == 0 {
		return ErrNotConfigured
	}
	return nil
}

// DeleteAuthConfig removes the stored credentials and tokens.
func (s *Store) DeleteAuthConfig(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_config WHERE id = 1`); err != nil {
		return fmt.Errorf("deleting auth config: %w", err)
	}
	return nil
}
