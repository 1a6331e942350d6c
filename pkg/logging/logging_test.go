package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestConfigLevels(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := Config(tt.level, "json")
			assert.Equal(t, tt.expected, cfg.Level.Level())
		})
	}
}

func TestConfigEncoding(t *testing.T) {
	assert.Equal(t, "console", Config("info", "console").Encoding)
	assert.Equal(t, "json", Config("info", "xml").Encoding)
	assert.Equal(t, "ts", Config("info", "json").EncoderConfig.TimeKey)
}
