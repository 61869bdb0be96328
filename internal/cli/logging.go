package cli

import (
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/freezewatch/internal/config"
)

// setupLogging installs the default slog handler. --verbose forces debug.
func setupLogging(cfg config.LogConfig, verbose bool, w io.Writer) {
	level := parseLevel(cfg.Level)
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setQuietLogging is used by one-shot commands: warnings only, unless
// --verbose asks for everything.
func setQuietLogging(opts *RootOptions, w io.Writer) {
	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	setupLogging(config.LogConfig{Level: level, Format: "text"}, opts.Verbose, w)
}
