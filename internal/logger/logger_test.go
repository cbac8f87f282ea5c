package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amm.log")
	log, err := New(&Config{LogFile: path, MaxSize: 1})
	require.NoError(t, err)

	log.WithComponent("router").Info("hello", zap.String("pair", "pair-a"))
	log.Debug("hidden")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "router", entry["component"])
	assert.Equal(t, "pair-a", entry["pair"])
	assert.Contains(t, entry, "timestamp")
}

func TestWithOperationAddsCorrelationID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	WithOperation(base, "swap").Info("a")
	WithOperation(base, "swap").Info("b")

	entries := logs.All()
	require.Len(t, entries, 2)
	first := entries[0].ContextMap()
	second := entries[1].ContextMap()
	assert.Equal(t, "swap", first["operation"])
	assert.NotEmpty(t, first["correlation_id"])
	assert.NotEqual(t, first["correlation_id"], second["correlation_id"])
}

func TestTrackPerformanceLogsDuration(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	end := TrackPerformance(zap.New(core), "reconcile")
	end()

	completed := logs.FilterMessage("Operation completed").All()
	require.Len(t, completed, 1)
	assert.Contains(t, completed[0].ContextMap(), "duration")
}

func TestLogErrorWithoutError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &Logger{Logger: zap.New(core)}

	l.LogError("failed", nil, zap.Int("unit", 1))

	entry := logs.All()[0]
	assert.NotContains(t, entry.ContextMap(), "error")
	assert.Equal(t, int64(1), entry.ContextMap()["unit"])
}

func TestStartOperationReturnsLoggedID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	opLogger, id := StartOperation(zap.New(core), "create_pair")
	opLogger.Info("done")

	require.NotEmpty(t, id)
	assert.Equal(t, id, logs.All()[0].ContextMap()["correlation_id"])
}
