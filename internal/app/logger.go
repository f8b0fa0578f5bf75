package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production gets JSON output;
// everywhere else gets text with source locations for debugging.
// LOG_FORMAT=json forces JSON output regardless of environment.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{}
	if cfg == nil {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	if cfg.IsProduction() || cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	opts.AddSource = true
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
