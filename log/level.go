package log

import (
	"fmt"
	"log/slog"
	"strings"
)

// ParseLevel converts a level name ("debug", "info", "warn", "error") to a
// slog.Level. The comparison is case-insensitive.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// VerbosityToLevel maps geth-style numeric verbosity (0-5) to a slog.Level.
// 0 silences everything below error, 5 enables debug.
func VerbosityToLevel(v int) slog.Level {
	switch {
	case v <= 1:
		return slog.LevelError
	case v == 2:
		return slog.LevelWarn
	case v == 3:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// ParseFormat converts a format name ("text", "json") to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format %q", name)
	}
}
