package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		l, err := New(in, "json")
		require.NoError(t, err, in)
		assert.True(t, l.Core().Enabled(want), "level %q should enable %s", in, want)
		if want > zapcore.DebugLevel {
			assert.False(t, l.Core().Enabled(want-1), "level %q should not enable %s", in, want-1)
		}
	}
}

func TestNew_Console(t *testing.T) {
	l, err := New("info", "console")
	require.NoError(t, err)
	assert.NotNil(t, l)
}
