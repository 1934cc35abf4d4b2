package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_DefaultConfig(t *testing.T) {
	cfg := Config{
		Level:  "info",
		Pretty: false,
	}

	logger := New(cfg)
	assert.NotNil(t, logger)

	var buf bytes.Buffer
	logger = logger.Output(&buf)
	logger.Info().Msg("test message")

	assert.Contains(t, buf.String(), "test message")
}

func TestNew_AllLogLevels(t *testing.T) {
	testCases := []struct {
		level         string
		expectedLevel zerolog.Level
		name          string
	}{
		{"debug", zerolog.DebugLevel, "debug"},
		{"info", zerolog.InfoLevel, "info"},
		{"warn", zerolog.WarnLevel, "warn"},
		{"error", zerolog.ErrorLevel, "error"},
		{"unknown", zerolog.InfoLevel, "unknown defaults to info"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{
				Level:  tc.level,
				Pretty: false,
			}

			logger := New(cfg)
			assert.NotNil(t, logger)
			assert.Equal(t, tc.expectedLevel, zerolog.GlobalLevel())
		})
	}
}

func TestNew_PrettyOutput(t *testing.T) {
	cfg := Config{
		Level:  "info",
		Pretty: true,
	}

	logger := New(cfg)

	var buf bytes.Buffer
	logger = logger.Output(&buf)
	logger.Info().Msg("test message")

	assert.Contains(t, buf.String(), "test message")
}

func TestSetGlobalLogger(t *testing.T) {
	logger := New(Config{Level: "info"})
	SetGlobalLogger(logger)
}
