package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Config holds the settings the logging system needs.
type Config struct {
	// Level is one of debug, info, warn, error (case-insensitive).
	Level string
}

// Setup initializes the application's logging system. It creates a structured
// JSON logger with the configured level, sets it as the process default, and
// returns it for explicit injection.
func Setup(cfg Config) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo

		// Use a throwaway text logger so the warning is visible before the
		// real handler exists.
		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.Level,
			"default_level", "info")
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(handler)

	slog.SetDefault(logger)

	return logger, nil
}
