package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_StructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.Info().Uint64("token_id", 42).Msg("note issued")

	var output map[string]any
	err := json.Unmarshal(buf.Bytes(), &output)
	require.NoError(t, err, "logger output should be valid JSON")

	assert.Equal(t, "note issued", output["message"])
	assert.Equal(t, float64(42), output["token_id"])
	assert.Equal(t, "info", output["level"])
	assert.Equal(t, serviceName, output["service"])
	assert.Contains(t, output, "time", "should include timestamp")
}

func TestComponent_AddsField(t *testing.T) {
	var buf bytes.Buffer
	log := Component(NewWithWriter("info", &buf), "issuance")

	log.Info().Msg("ready")

	var output map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &output))
	assert.Equal(t, "issuance", output["component"])
}

func TestNewWithWriter_Levels(t *testing.T) {
	tests := []struct {
		level    string
		emitted  []string
		filtered []string
	}{
		{level: "DEBUG", emitted: []string{"debug", "info"}},
		{level: "info", emitted: []string{"info", "warn"}, filtered: []string{"debug"}},
		{level: "error", emitted: []string{"error"}, filtered: []string{"debug", "info", "warn"}},
		{level: "verbose", emitted: []string{"info"}, filtered: []string{"debug"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			for _, lvl := range tt.emitted {
				var buf bytes.Buffer
				logAt(NewWithWriter(tt.level, &buf), lvl)
				assert.NotEmpty(t, buf.String(), "%s should pass at %s", lvl, tt.level)
			}
			for _, lvl := range tt.filtered {
				var buf bytes.Buffer
				logAt(NewWithWriter(tt.level, &buf), lvl)
				assert.Empty(t, buf.String(), "%s should be dropped at %s", lvl, tt.level)
			}
		})
	}
}

func logAt(log zerolog.Logger, level string) {
	switch level {
	case "debug":
		log.Debug().Msg("m")
	case "info":
		log.Info().Msg("m")
	case "warn":
		log.Warn().Msg("m")
	case "error":
		log.Error().Msg("m")
	}
}

func TestNew_PrettyMode(t *testing.T) {
	log := New("info", true)
	log.Info().Msg("pretty mode test")
}
