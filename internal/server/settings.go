package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yearlog/yearlog/internal/logging"
	"github.com/yearlog/yearlog/internal/pipeline"
)

// GetSettingsInput - get_settings takes no parameters
type GetSettingsInput struct{}

// SettingsOutput carries the full filter configuration document.
type SettingsOutput struct {
	Settings pipeline.Settings `json:"settings"`
}

func (s *Server) getSettings(ctx context.Context, req *mcp.CallToolRequest, input GetSettingsInput) (*mcp.CallToolResult, SettingsOutput, error) {
	logging.Info("MCP tool call", "tool", "get_settings")

	settings, err := s.queries.LoadSettings(ctx)
	if err != nil {
		logging.Error("getSettings failed", "error", err)
		return nil, SettingsOutput{}, NewDatabaseError(err)
	}
	return nil, SettingsOutput{Settings: settings}, nil
}

// UpdateSettingsInput replaces the stored filter configuration.
type UpdateSettingsInput struct {
	Settings pipeline.Settings `json:"settings" jsonschema:"The full settings document to store. Replaces the current configuration: excluded activity types, virtual-activity exclusions, title ignore patterns, per-type distance filters and the include lists."`
}

func (s *Server) updateSettings(ctx context.Context, req *mcp.CallToolRequest, input UpdateSettingsInput) (*mcp.CallToolResult, SettingsOutput, error) {
	logging.Info("MCP tool call", "tool", "update_settings")
	if logging.IsVerbose() {
		logging.Debug("updateSettings input", "settings", logging.ToJSON(input.Settings))
	}

	if err := s.queries.SaveSettings(ctx, input.Settings); err != nil {
		logging.Error("updateSettings failed", "error", err)
		return nil, SettingsOutput{}, NewDatabaseError(err)
	}
	return nil, SettingsOutput{Settings: input.Settings}, nil
}
