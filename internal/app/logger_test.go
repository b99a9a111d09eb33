package app

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogLevel(t *testing.T) {
	require.Equal(t, slog.LevelInfo, logLevel(nil))
	require.Equal(t, slog.LevelDebug, logLevel(&Config{LogLevel: "debug"}))
	require.Equal(t, slog.LevelWarn, logLevel(&Config{LogLevel: "WARN"}))
	require.Equal(t, slog.LevelError, logLevel(&Config{LogLevel: "error"}))
	require.Equal(t, slog.LevelInfo, logLevel(&Config{LogLevel: "verbose"}))
}
