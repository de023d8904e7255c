package testutil

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogCapture_DerivedLoggersShareBuffer(t *testing.T) {
	logger, logs := NewTestLogger(t)

	pipeline := logger.With(slog.String("component", "pipeline"))
	run := pipeline.With(slog.String("run_id", "r-1"))
	run.Warn("equity total missing, ranking skipped", slog.String("sheet", "VD510_TABEL_10C"))
	logger.Info("extraction started")

	records := logs.Records()
	require.Len(t, records, 2)
	assert.Equal(t, map[string]any{
		"component": "pipeline",
		"run_id":    "r-1",
		"sheet":     "VD510_TABEL_10C",
	}, records[0].Attrs)
	assert.Empty(t, records[1].Attrs)

	AssertLogContains(t, logs, slog.LevelWarn, "ranking skipped")
	AssertLogAttr(t, logs, "run_id", "r-1")
}

func TestLogCapture_GroupsFlattenToDottedKeys(t *testing.T) {
	logger, logs := NewTestLogger(t)

	logger.WithGroup("http").With(slog.Int("status", 413)).Info("upload rejected",
		slog.Group("limit", slog.Int64("bytes", 1<<20)))

	rec, ok := logs.Find("upload rejected")
	require.True(t, ok)
	assert.Equal(t, int64(413), rec.Attrs["http.status"])
	assert.Equal(t, int64(1<<20), rec.Attrs["http.limit.bytes"])

	_, ok = logs.Find("not logged")
	assert.False(t, ok)
}

func TestLogCapture_Levels(t *testing.T) {
	logger, logs := NewTestLogger(t)

	logger.Debug("sheet skipped")
	logger.Warn("column alias not found")
	logger.Warn("marker not found")
	logger.Error("persist failed")

	assert.Equal(t, []string{"column alias not found", "marker not found"}, logs.Messages(slog.LevelWarn))
	assert.Equal(t, []string{"sheet skipped"}, logs.Messages(slog.LevelDebug))
	assert.Empty(t, logs.Messages(slog.LevelInfo))
}

func TestLogCapture_Concurrent(t *testing.T) {
	logger, logs := NewTestLogger(nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.With(slog.Int("worker", n)).Info("workbook extracted")
		}(i)
	}
	wg.Wait()

	assert.Len(t, logs.Records(), 10)
}
