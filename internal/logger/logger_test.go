package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/avhost/av/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLoggerLevels(t *testing.T) {
	tests := []struct {
		name          string
		level         logger.LogLevel
		logFunc       func(l logger.Logger)
		shouldContain bool
	}{
		{"debug at debug", logger.LogLevelDebug, func(l logger.Logger) { l.Debug("hello") }, true},
		{"debug at info", logger.LogLevelInfo, func(l logger.Logger) { l.Debug("hello") }, false},
		{"trace at trace", logger.LogLevelTrace, func(l logger.Logger) { l.Trace("hello") }, true},
		{"trace at debug", logger.LogLevelDebug, func(l logger.Logger) { l.Trace("hello") }, false},
		{"warn at info", logger.LogLevelInfo, func(l logger.Logger) { l.Warn("hello") }, true},
		{"info at error", logger.LogLevelError, func(l logger.Logger) { l.Info("hello") }, false},
		{"error always", logger.LogLevelError, func(l logger.Logger) { l.Error("hello") }, true},
		{"explicit warn at warn", logger.LogLevelWarn, func(l logger.Logger) { l.Log(logger.LogLevelWarn, "hello") }, true},
		{"explicit debug at warn", logger.LogLevelWarn, func(l logger.Logger) { l.Log(logger.LogLevelDebug, "hello") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.logFunc(logger.NewSlogLogger(buf, tt.level, time.UTC))
			assert.Equal(t, tt.shouldContain, strings.Contains(buf.String(), "hello"))
		})
	}
}

func TestModuleAndFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelDebug, time.UTC).
		Module("audio").
		Module("engine").
		With(logger.String("engine_id", "e1"))

	log.Info("stream opened",
		logger.Float64("samplerate", 44100),
		logger.Int("blocksize", 256),
		logger.Duration("period", 5804*time.Microsecond),
		logger.Uint64("callbacks", 7))

	out := buf.String()
	assert.Contains(t, out, "module=audio.engine")
	assert.Contains(t, out, "engine_id=e1")
	assert.Contains(t, out, "blocksize=256")
	assert.Contains(t, out, "period=5.804ms")
	assert.Contains(t, out, "callbacks=7")
	assert.NotContains(t, out, "time=")
}

func TestWithContextTraceID(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelInfo, nil)

	ctx := logger.WithTraceID(context.Background(), "req-42")
	log.WithContext(ctx).Info("handled")
	log.WithContext(context.Background()).Info("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "trace_id=req-42")
	assert.NotContains(t, lines[1], "trace_id")
}

func TestCentralLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "av.log")
	cl, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput:   &logger.FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"api": "error"},
	})
	require.NoError(t, err)

	cl.Module("audio").Debug("callback stats", logger.Int("underruns", 3))
	cl.Module("api").Info("should be filtered")
	require.NoError(t, cl.Flush())
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "callback stats", rec["msg"])
	assert.Equal(t, "audio", rec["module"])
	assert.InDelta(t, 3, rec["underruns"], 0)
}

func TestCentralLoggerInvalidTimezone(t *testing.T) {
	_, err := logger.NewCentralLogger(&logger.LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}

func TestNilConfig(t *testing.T) {
	_, err := logger.NewCentralLogger(nil)
	require.Error(t, err)
}

func TestGlobalFallback(t *testing.T) {
	assert.NotNil(t, logger.Global())
	assert.NotNil(t, logger.Global().Module("test"))
}
