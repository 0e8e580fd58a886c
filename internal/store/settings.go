package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/yearlog/yearlog/internal/pipeline"
)

// LoadSettings reads the dashboard settings document, returning zero-value
// settings when none have been saved yet.
func (s *Store) LoadSettings(ctx context.Context) (pipeline.Settings, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT config FROM settings WHERE id = 1`).Scan(&raw)
	if err == sql.ErrNoRows {
		return pipeline.Settings{}, nil
	}
	if err != nil {
		return pipeline.Settings{}, fmt.Errorf("loading settings: %w", err)
	}

	var settings pipeline.Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return pipeline.Settings{}, fmt.Errorf("decoding settings: %w", err)
	}
	return settings, nil
}

// SaveSettings writes the dashboard settings document as a single JSON row.
func (s *Store) SaveSettings(ctx context.Context, settings pipeline.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO settings (id, config) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET config = excluded.config`, string(raw))
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}
