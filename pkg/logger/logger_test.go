package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewJSONFormatCarriesFields(t *testing.T) {
	log := New(LoggingConfig{Level: "debug", Format: "json"})
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.WithField("routine_id", "r-1").WithError(errors.New("boom")).Warn("step replace failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "r-1", entry["routine_id"])
	require.Equal(t, "boom", entry["error"])
	require.Equal(t, "step replace failed", entry["msg"])
	require.Equal(t, "warning", entry["level"])
}

func TestNewDefaultTagsService(t *testing.T) {
	log := NewDefault("routines")
	require.Equal(t, "routines", log.Entry.Data["service"])
}

func TestLevelFiltering(t *testing.T) {
	log := New(LoggingConfig{Level: "warn", Format: "json"})
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.Info("dropped")
	require.Zero(t, buf.Len())

	log.Warn("kept")
	require.NotZero(t, buf.Len())
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	log := New(LoggingConfig{Level: "chatty"})
	var buf bytes.Buffer
	log.SetOutput(&buf)

	log.Debug("dropped")
	require.Zero(t, buf.Len())

	log.Info("kept")
	require.NotZero(t, buf.Len())
}
