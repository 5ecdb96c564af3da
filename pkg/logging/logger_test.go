package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		env   string
		level string
		want  zapcore.Level
	}{
		{"local", "debug", zapcore.DebugLevel},
		{"production", "", zapcore.InfoLevel},
		{"production", "WARN", zapcore.WarnLevel},
		{"staging", "error", zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			logger, err := NewLogger(tt.env, tt.level)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger("local", "loud")
	assert.ErrorContains(t, err, `invalid log level "loud"`)
}
