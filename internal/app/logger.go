package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a configured slog.Logger based on configuration.
func NewLogger(cfg *Config) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	format := "pretty"
	if cfg != nil {
		format = cfg.LogFormat
		if !cfg.IsProduction() {
			opts.Level = slog.LevelDebug
		}
	}
	switch format {
	case "json":
		opts.AddSource = true
		return slog.New(slog.NewJSONHandler(w, opts))
	case "text":
		opts.AddSource = true
		return slog.New(slog.NewTextHandler(w, opts))
	default:
		return slog.New(slog.NewTextHandler(w, opts)).With(slog.String("service", "odyssey-ledger"))
	}
}
