package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production uses the format from
// config (json for log shippers); everywhere else the level drops to
// debug so planner and claim decisions are visible during development.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg == nil || !cfg.IsProduction() {
		opts.Level = slog.LevelDebug
	}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
