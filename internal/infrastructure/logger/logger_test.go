package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerWritesStructuredEntries(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "carpool-bot", "info")

	log.Info("ride matched", "action", "ride_matched", "error", errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "carpool-bot", entry["service"])
	require.Equal(t, "ride_matched", entry["action"])
	require.Equal(t, "boom", entry["error"])
	require.Contains(t, entry, "timestamp")
	require.NotContains(t, entry, "time")
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "carpool-bot", "warn")

	log.Info("hidden")
	require.Zero(t, buf.Len())

	log.Warn("shown")
	require.NotZero(t, buf.Len())
}
