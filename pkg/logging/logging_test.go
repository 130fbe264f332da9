package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ctrl "sigs.k8s.io/controller-runtime"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, test.level.String())
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{LogLevel(999), slog.LevelInfo}, // Default for unknown
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, test.level.SlogLevel())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitForCLI(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelInfo, &buf)

	Info("test-subsystem", "test message %d", 42)

	output := buf.String()
	assert.Contains(t, output, "test message 42")
	assert.Contains(t, output, "subsystem=test-subsystem")
}

func TestCLILevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelInfo, &buf)

	Debug("test", "debug message")
	Info("test", "info message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.Contains(t, output, "info message")
}

func TestErrorIncludesCause(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelDebug, &buf)

	Error("test", errors.New("boom"), "operation failed")

	output := buf.String()
	assert.Contains(t, output, "operation failed")
	assert.Contains(t, output, "error=boom")
}

func TestLoggerWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	InitForJSON(LevelDebug, &buf)

	log := With("Operator", "operator", "worker")
	log.With("namespace", "default", "name", "w1").Info("created child")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))

	assert.Equal(t, "created child", entry["msg"])
	assert.Equal(t, "Operator", entry["subsystem"])
	assert.Equal(t, "worker", entry["operator"])
	assert.Equal(t, "default", entry["namespace"])
	assert.Equal(t, "w1", entry["name"])
}

func TestLoggerWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelDebug, &buf)

	parent := With("Operator", "operator", "worker")
	_ = parent.With("name", "child-only")
	parent.Warn("parent line")

	assert.NotContains(t, buf.String(), "child-only")
}

func TestToAttrsOddArguments(t *testing.T) {
	attrs := toAttrs([]any{"a", 1, "dangling"})
	require.Len(t, attrs, 2)
	assert.Equal(t, "a", attrs[0].Key)
	assert.Equal(t, "!BADKEY", attrs[1].Key)
}

func TestControllerRuntimeLoggerInitialization(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelInfo, &buf)

	logger := ctrl.Log
	require.NotNil(t, logger.GetSink())

	// Logging through controller-runtime must not panic once a sink is installed.
	logger.Info("message from controller-runtime", "key", "value")
}
