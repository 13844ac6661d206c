package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup initializes the global slog logger with a JSON handler writing to stdout.
// The indexer runs headless; log shipping and retention belong to the environment.
func Setup(levelStr string) error {
	return SetupWithWriter(levelStr, os.Stdout)
}

// SetupWithWriter is Setup with an explicit destination, used by tests to capture output.
func SetupWithWriter(levelStr string, w io.Writer) error {
	level, err := parseLevel(levelStr)
	if err != nil {
		return fmt.Errorf("failed to parse log level %q: %w", levelStr, err)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))

	slog.Info("logging initialized", "level", levelStr)

	return nil
}

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

func parseLevel(s string) (slog.Level, error) {
	level, ok := levels[strings.ToLower(s)]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
	return level, nil
}
