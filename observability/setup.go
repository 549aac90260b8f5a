package observability

import (
	"io"
	"log/slog"
)

// Setup installs the process-wide slog default: a JSON handler on w at the
// given level ("debug", "warn", "error"; anything else means info). The MCP
// stdio mode must pass stderr, since stdout carries the protocol stream.
func Setup(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}
