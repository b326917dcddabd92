package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, ParseLevel(" debug ", zerolog.InfoLevel))
	require.Equal(t, zerolog.WarnLevel, ParseLevel("WARNING", zerolog.InfoLevel))
	require.Equal(t, zerolog.TraceLevel, ParseLevel("trace", zerolog.InfoLevel))
	require.Equal(t, zerolog.ErrorLevel, ParseLevel("bogus", zerolog.ErrorLevel))
}

func TestNew_JSONFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "json"}, &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("channel", "ch0").Msg("shown")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	require.Equal(t, "shown", rec["message"])
	require.Equal(t, "ch0", rec["channel"])
	require.Equal(t, "warn", rec["level"])
}

func TestNew_ConsoleIsHumanReadable(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info"}, &buf)
	log.Info().Str("channel", "ch1").Msg("pwm loop running")
	require.Contains(t, buf.String(), "pwm loop running")
	require.Contains(t, buf.String(), "channel=")
}
