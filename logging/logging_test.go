package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_ParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("debug"))
	require.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	require.Equal(t, slog.LevelError, parseLevel("ERROR"))
	require.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func Test_New_Filters_Below_Level(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "WARN")

	log.Info("dropped")
	require.Zero(t, buf.Len())

	log.Warn("kept", "questionID", "q1")
	require.Contains(t, buf.String(), `"msg":"kept"`)
	require.Contains(t, buf.String(), `"questionID":"q1"`)
}
